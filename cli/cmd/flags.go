// Package cmd provides CLI commands for the mural binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for select read-only commands (resolve, stats).
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (resolve, stats only)",
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// TUIReadOnlyFlags returns flags for commands that support TUI mode.
// This is an alias for ReadOnlyFlags, kept for documentation clarity.
func TUIReadOnlyFlags() []cli.Flag {
	return ReadOnlyFlags()
}

// SessionFlags returns the flags shared by serve, view and resolve. Each
// overrides the matching mural.yaml value when set.
func SessionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Path to mural.yaml", EnvVars: []string{"MURAL_CONFIG"}},
		&cli.StringFlag{Name: "role", Usage: "Process role: client, server, render_server, batch, data_only"},
		&cli.IntFlag{Name: "rank", Usage: "Rank of this process in the render group"},
		&cli.StringFlag{Name: "session", Usage: "Session ID (default: random UUID)"},
		&cli.StringFlag{Name: "log-level", Usage: "Log level: debug, info, warn, error"},

		// Cluster
		&cli.IntFlag{Name: "tile-columns", Usage: "Tile display columns"},
		&cli.IntFlag{Name: "tile-rows", Usage: "Tile display rows"},
		&cli.IntFlag{Name: "mullion-x", Usage: "Horizontal gap between tiles in pixels"},
		&cli.IntFlag{Name: "mullion-y", Usage: "Vertical gap between tiles in pixels"},
		&cli.IntFlag{Name: "display-nodes", Usage: "CAVE display nodes (ignored in tile mode)"},
		&cli.IntFlag{Name: "local-partitions", Usage: "Render partitions run in this process"},

		// Relay
		&cli.StringFlag{Name: "render-peer", Usage: "Render server address a client connects to"},
		&cli.StringFlag{Name: "client-peer", Usage: "Address a render server accepts its client on"},
		&cli.StringFlag{Name: "codec", Usage: "Codec configuration, e.g. \"squirt 0 3\" or \"lz4 1\""},
		&cli.BoolFlag{Name: "loss-less", Usage: "Force loss-less relay"},

		// Compositor
		&cli.StringFlag{Name: "compositor", Usage: "Compositor kind: icet or gather"},
		&cli.IntFlag{Name: "reduction-factor", Usage: "Image reduction factor while compositing"},
		&cli.BoolFlag{Name: "write-back", Usage: "Hand the composited image to every rank"},

		// Scene
		&cli.IntFlag{Name: "width", Usage: "Viewport width"},
		&cli.IntFlag{Name: "height", Usage: "Viewport height"},
		&cli.IntFlag{Name: "frames", Usage: "Frames to run (0: until interrupted)"},
		&cli.DurationFlag{Name: "interval", Usage: "Pause between frames"},

		// Storage
		&cli.StringFlag{Name: "storage-dataset", Usage: "Lode dataset ID (default: \"mural\")"},
		&cli.StringFlag{Name: "storage-backend", Usage: "Telemetry backend: fs or s3"},
		&cli.StringFlag{Name: "storage-path", Usage: "Storage path (fs: directory, s3: bucket/prefix)"},
		&cli.StringFlag{Name: "storage-region", Usage: "AWS region for S3 backend"},
		&cli.StringFlag{Name: "storage-policy", Usage: "Frame telemetry policy: strict or buffered (default: buffered)"},
		&cli.IntFlag{Name: "storage-batch-size", Usage: "Frame records per write with the buffered policy (default: 64)"},
		&cli.IntFlag{Name: "snapshots", Usage: "Archive a PNG every N frames (0: never)"},

		// Adapter
		&cli.StringFlag{Name: "adapter", Usage: "Session notification adapter: webhook or redis"},
		&cli.StringFlag{Name: "adapter-url", Usage: "Webhook URL or Redis URL"},
		&cli.StringFlag{Name: "adapter-channel", Usage: "Redis channel (may contain {role})"},
	}
}
