package cmd

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/mural/cli/render"
	"github.com/pithecene-io/mural/codec"
	"github.com/pithecene-io/mural/metrics"
	"github.com/pithecene-io/mural/scene"
)

// CodecCheck reports how a codec configuration string is applied and how
// well the result compresses the test pattern.
type CodecCheck struct {
	Requested   string  `json:"requested"`
	Effective   string  `json:"effective"`
	Accepted    bool    `json:"accepted"`
	Substituted bool    `json:"substituted"`
	RawBytes    int     `json:"raw_bytes"`
	WireBytes   int     `json:"wire_bytes"`
	Ratio       float64 `json:"ratio"`
}

// CodecsCommand returns the codecs command with subcommands.
func CodecsCommand() *cli.Command {
	return &cli.Command{
		Name:  "codecs",
		Usage: "List relay codecs or check a codec configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List registered codecs",
				Flags:  ReadOnlyFlags(),
				Action: codecsListAction,
			},
			{
				Name:      "check",
				Usage:     "Apply a codec configuration and compress one test frame",
				ArgsUsage: "<config>",
				Flags: append(ReadOnlyFlags(),
					&cli.IntFlag{Name: "width", Usage: "Test frame width", Value: defaultWidth},
					&cli.IntFlag{Name: "height", Usage: "Test frame height", Value: defaultHeight},
					&cli.BoolFlag{Name: "still", Usage: "Compress as a still (always loss-less)"},
				),
				Action: codecsCheckAction,
			},
		},
	}
}

func codecsListAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.View("", codec.NewManager().Names())
}

func codecsCheckAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if c.NArg() == 0 {
		return cli.Exit("codec configuration required, e.g. \"squirt 0 3\"", exitConfigError)
	}
	check, err := checkCodec(strings.Join(c.Args().Slice(), " "), c.Int("width"), c.Int("height"), !c.Bool("still"))
	if err != nil {
		return err
	}
	return r.View("", check)
}

// checkCodec applies config to a fresh manager and compresses one frame of
// the test pattern with the effective codec.
func checkCodec(config string, width, height int, interactive bool) (*CodecCheck, error) {
	collector := metrics.NewCollector("", "", "", "")
	m := codec.NewManager(codec.WithCollector(collector))
	out := &CodecCheck{Requested: config, Effective: m.Configure(config)}

	snap := collector.Snapshot()
	out.Accepted = snap.CodecRejected == 0
	out.Substituted = snap.CodecFallbacks > 0

	r, err := scene.New(scene.Config{Width: width, Height: height, Components: defaultComponents})
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("invalid test frame: %v", err), exitConfigError)
	}
	img, err := r.Capture()
	if err != nil {
		return nil, err
	}
	out.RawBytes = len(img.Pixels)
	out.WireBytes = out.RawBytes

	if comp := m.Compressor(); comp != nil {
		comp.SetImageResolution(img.Width, img.Height)
		payload, err := comp.Compress(img.Pixels, img.Components, comp.LossLess() || !interactive)
		if err != nil {
			return nil, fmt.Errorf("compress with %s: %w", comp.Name(), err)
		}
		// The relay sends raw pixels when compression does not shrink.
		out.WireBytes = min(len(payload), out.RawBytes)
	}
	out.Ratio = float64(out.RawBytes) / float64(out.WireBytes)
	return out, nil
}
