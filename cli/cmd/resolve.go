package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/mural/cli/reader"
	"github.com/pithecene-io/mural/cli/render"
)

// ResolveCommand returns the resolve command.
// Resolve prints the components a process would build for the given
// configuration without building any of them.
func ResolveCommand() *cli.Command {
	return &cli.Command{
		Name:   "resolve",
		Usage:  "Show the components a configuration resolves to",
		Flags:  append(TUIReadOnlyFlags(), SessionFlags()...),
		Action: resolveAction,
	}
}

func resolveAction(c *cli.Context) error {
	cfg, err := loadSettings(c)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	_, plan, err := resolveTopology(cfg)
	if err != nil {
		return err
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	view := reader.NewPlanView(plan)
	return r.View("inspect_plan", view)
}
