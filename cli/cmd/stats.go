package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	lodelibrary "github.com/justapithecus/lode/lode"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/mural/cli/reader"
	"github.com/pithecene-io/mural/cli/render"
	"github.com/pithecene-io/mural/lode"
)

// listWarningThreshold is the number of rows above which we warn about using --limit.
const listWarningThreshold = 100

// statsReadTimeout bounds one storage read.
const statsReadTimeout = 30 * time.Second

// StatsCommand returns the stats command with subcommands.
// Stats reads archived session telemetry back from storage.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show archived session telemetry (metrics, frames)",
		Subcommands: []*cli.Command{
			statsMetricsCommand(),
			statsFramesCommand(),
		},
	}
}

// storageReadFlags are the flags that locate archived telemetry.
func storageReadFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "storage-dataset", Usage: "Lode dataset ID (default: \"mural\")", Value: lode.DefaultDataset},
		&cli.StringFlag{Name: "storage-backend", Usage: "Storage backend: fs or s3", Value: "fs"},
		&cli.StringFlag{Name: "storage-path", Usage: "Storage path (fs: directory, s3: bucket/prefix)", Required: true},
		&cli.StringFlag{Name: "storage-region", Usage: "AWS region for S3 backend"},
		&cli.StringFlag{Name: "session", Usage: "Read records of a specific session ID"},
		&cli.StringFlag{Name: "role", Usage: "Filter by process role"},
	}
}

func statsMetricsCommand() *cli.Command {
	return &cli.Command{
		Name:   "metrics",
		Usage:  "Show the latest session metrics (relay, codec, compositor, storage)",
		Flags:  append(TUIReadOnlyFlags(), storageReadFlags()...),
		Action: statsMetricsAction,
	}
}

func statsMetricsAction(c *cli.Context) error {
	ds, err := buildReadDataset(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, statsReadTimeout)
	defer cancel()

	record, err := lode.QueryLatestMetrics(ctx, ds, c.String("session"), c.String("role"))
	if err != nil {
		return fmt.Errorf("failed to read metrics from Lode: %w", err)
	}
	snapshot, err := reader.ParseMetricsRecord(record)
	if err != nil {
		return fmt.Errorf("failed to parse metrics record: %w", err)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.View("stats_metrics", snapshot)
}

func statsFramesCommand() *cli.Command {
	return &cli.Command{
		Name:  "frames",
		Usage: "Show the most recent archived frame records",
		Flags: append(append(TUIReadOnlyFlags(), storageReadFlags()...),
			&cli.IntFlag{Name: "limit", Usage: "Maximum number of frames (0: all)", Value: 20},
		),
		Action: statsFramesAction,
	}
}

func statsFramesAction(c *cli.Context) error {
	ds, err := buildReadDataset(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, statsReadTimeout)
	defer cancel()

	limit := c.Int("limit")
	records, err := lode.QueryFrames(ctx, ds, c.String("session"), c.String("role"), limit)
	if err != nil {
		return fmt.Errorf("failed to read frames from Lode: %w", err)
	}
	frames := make([]reader.FrameSummary, 0, len(records))
	for _, rec := range records {
		f, err := reader.ParseFrameRecord(rec)
		if err != nil {
			return fmt.Errorf("failed to parse frame record: %w", err)
		}
		frames = append(frames, *f)
	}

	if limit <= 0 && len(frames) > listWarningThreshold && isStderrTTY() {
		fmt.Fprintf(os.Stderr, "Warning: %d frames returned. Use --limit to reduce output.\n", len(frames))
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.View("stats_frames", frames)
}

// buildReadDataset creates a Lode Dataset for reading based on CLI flags.
func buildReadDataset(c *cli.Context) (lodelibrary.Dataset, error) {
	dataset := c.String("storage-dataset")
	path := c.String("storage-path")
	switch backend := c.String("storage-backend"); backend {
	case "fs":
		return lode.NewReadDatasetFS(dataset, path)
	case "s3":
		bucket, prefix := lode.ParseS3Path(path)
		return lode.NewReadDatasetS3(c.Context, dataset, lode.S3Config{
			Bucket: bucket,
			Prefix: prefix,
			Region: c.String("storage-region"),
		})
	default:
		return nil, cli.Exit(fmt.Sprintf("unsupported storage-backend: %s (must be fs or s3)", backend), exitConfigError)
	}
}
