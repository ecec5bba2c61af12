package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/mural/cli/config"
	"github.com/pithecene-io/mural/lode"
	"github.com/pithecene-io/mural/topology"
)

// Scene defaults when neither mural.yaml nor flags set a viewport.
const (
	defaultWidth      = 320
	defaultHeight     = 240
	defaultComponents = 4
)

// flagSource is the subset of *cli.Context settings reads. Tests fake it.
type flagSource interface {
	IsSet(name string) bool
	String(name string) string
	Int(name string) int
	Bool(name string) bool
}

// loadSettings reads --config when given and applies every flag the user
// set on top of it.
func loadSettings(c *cli.Context) (*config.Config, error) {
	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	applyFlags(cfg, c)
	if c.IsSet("interval") {
		cfg.Interval.Duration = c.Duration("interval")
	}
	applyDefaults(cfg)
	return cfg, nil
}

// applyFlags overrides cfg with the flags present in f.
func applyFlags(cfg *config.Config, f flagSource) {
	str := func(name string, dst *string) {
		if f.IsSet(name) {
			*dst = f.String(name)
		}
	}
	num := func(name string, dst *int) {
		if f.IsSet(name) {
			*dst = f.Int(name)
		}
	}
	flag := func(name string, dst *bool) {
		if f.IsSet(name) {
			*dst = f.Bool(name)
		}
	}

	str("role", &cfg.Role)
	num("rank", &cfg.Rank)
	str("session", &cfg.Session)
	str("log-level", &cfg.LogLevel)

	num("tile-columns", &cfg.Cluster.TileColumns)
	num("tile-rows", &cfg.Cluster.TileRows)
	num("mullion-x", &cfg.Cluster.MullionX)
	num("mullion-y", &cfg.Cluster.MullionY)
	num("display-nodes", &cfg.Cluster.NumberOfDisplayNodes)
	num("local-partitions", &cfg.Cluster.NumberOfLocalPartitions)

	str("render-peer", &cfg.Peers.Render)
	str("client-peer", &cfg.Peers.Client)
	str("codec", &cfg.Codec)
	flag("loss-less", &cfg.LossLess)

	str("compositor", &cfg.Compositor.Kind)
	num("reduction-factor", &cfg.Compositor.ReductionFactor)
	flag("write-back", &cfg.Compositor.WriteBack)

	num("width", &cfg.Scene.Width)
	num("height", &cfg.Scene.Height)
	num("frames", &cfg.Frames)

	str("storage-dataset", &cfg.Storage.Dataset)
	str("storage-backend", &cfg.Storage.Backend)
	str("storage-path", &cfg.Storage.Path)
	str("storage-region", &cfg.Storage.Region)
	num("snapshots", &cfg.Storage.Snapshots)
	str("storage-policy", &cfg.Storage.Policy)
	num("storage-batch-size", &cfg.Storage.BatchSize)

	str("adapter", &cfg.Adapter.Type)
	str("adapter-url", &cfg.Adapter.URL)
	str("adapter-channel", &cfg.Adapter.Channel)
}

// applyDefaults fills values a session cannot run without.
func applyDefaults(cfg *config.Config) {
	if cfg.Session == "" {
		cfg.Session = uuid.NewString()
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Scene.Width == 0 {
		cfg.Scene.Width = defaultWidth
	}
	if cfg.Scene.Height == 0 {
		cfg.Scene.Height = defaultHeight
	}
	if cfg.Scene.Components == 0 {
		cfg.Scene.Components = defaultComponents
	}
	if cfg.Storage.Dataset == "" {
		cfg.Storage.Dataset = lode.DefaultDataset
	}
}

// resolveTopology converts cfg and reports configuration problems as exit
// code exitConfigError.
func resolveTopology(cfg *config.Config) (topology.Config, topology.Plan, error) {
	tc, err := cfg.ToTopology()
	if err != nil {
		return topology.Config{}, topology.Plan{}, cli.Exit(fmt.Sprintf("invalid configuration: %v", err), exitConfigError)
	}
	return tc, topology.Resolve(tc), nil
}
