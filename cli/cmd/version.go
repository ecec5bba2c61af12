package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/mural/cli/render"
	"github.com/pithecene-io/mural/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version         string `json:"version"`
	ContractVersion string `json:"contract_version"`
	Commit          string `json:"commit"`
}

// VersionCommand returns the version command.
// The contract version is the relay handshake version; peers must agree
// on its major (and, before 1.0, minor) component.
func VersionCommand(_, commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  ReadOnlyFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}

		resp := VersionResponse{
			Version:         types.Version,
			ContractVersion: types.ContractVersion,
			Commit:          commit,
		}

		return r.View("", resp)
	}
}
