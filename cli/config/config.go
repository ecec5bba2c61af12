package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/pithecene-io/mural/cave"
	"github.com/pithecene-io/mural/compositor"
	"github.com/pithecene-io/mural/scene"
	"github.com/pithecene-io/mural/topology"
	"github.com/pithecene-io/mural/types"
)

// Config represents a mural.yaml configuration file.
// All values are optional and act as defaults for the serve and view flags.
// CLI flags always override config values.
type Config struct {
	Role     string `yaml:"role"`
	Rank     int    `yaml:"rank"`
	Session  string `yaml:"session"`
	LogLevel string `yaml:"log_level"`

	Cluster    types.ClusterTopology `yaml:"cluster"`
	Peers      PeersConfig           `yaml:"peers"`
	Compositor CompositorConfig      `yaml:"compositor"`
	Codec      string                `yaml:"codec"`
	LossLess   bool                  `yaml:"loss_less"`
	Cave       CaveConfig            `yaml:"cave"`
	Scene      scene.Config          `yaml:"scene"`

	// Frames is the number of frames a render session runs. Zero runs
	// until interrupted.
	Frames   int      `yaml:"frames"`
	Interval Duration `yaml:"interval"`

	Storage StorageConfig `yaml:"storage"`
	Adapter AdapterConfig `yaml:"adapter"`
}

// PeersConfig holds the relay addresses.
type PeersConfig struct {
	// Render is the address a client dials.
	Render string `yaml:"render"`
	// Client is the address a render process listens on for its client.
	Client string `yaml:"client"`
}

// CompositorConfig selects and tunes the parallel compositor. Tile
// dimensions and mullions come from the cluster section.
type CompositorConfig struct {
	Kind            string `yaml:"kind"`
	ReductionFactor int    `yaml:"reduction_factor"`
	DataReplicated  bool   `yaml:"data_replicated"`
	WriteBack       bool   `yaml:"write_back"`
}

// CaveConfig holds the CAVE adapter settings and the screen list.
type CaveConfig struct {
	cave.Config `yaml:",inline"`
	Screens     []types.DisplayGeometry `yaml:"screens,omitempty"`
}

// StorageConfig holds telemetry archive defaults from the config file.
type StorageConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
	// Snapshots writes a PNG of every Nth relayed frame. Zero disables.
	Snapshots int `yaml:"snapshots"`
	// Policy selects frame telemetry flushing: strict or buffered.
	Policy        string   `yaml:"policy"`
	BatchSize     int      `yaml:"batch_size"`
	FlushInterval Duration `yaml:"flush_interval"`
}

// AdapterConfig holds session notification defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Secret  string            `yaml:"secret,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "16ms".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML writes the duration back in its string form.
func (d Duration) MarshalYAML() (any, error) {
	if d.Duration == 0 {
		return "", nil
	}
	return d.String(), nil
}

// ErrNoRole is returned by ToTopology when no role is configured.
var ErrNoRole = errors.New("config: role is required")

// ToTopology converts the file into the startup configuration of one
// process. It is the only place roles, compositor kinds and cluster values
// are parsed.
func (c *Config) ToTopology() (topology.Config, error) {
	if c.Role == "" {
		return topology.Config{}, ErrNoRole
	}
	role, err := types.ParseRole(c.Role)
	if err != nil {
		return topology.Config{}, err
	}
	if c.Rank < 0 {
		return topology.Config{}, fmt.Errorf("rank must be >= 0, got %d", c.Rank)
	}
	if err := c.Cluster.Validate(); err != nil {
		return topology.Config{}, err
	}
	kind := compositor.IceTStyle
	if c.Compositor.Kind != "" {
		kind, err = compositor.ParseKind(c.Compositor.Kind)
		if err != nil {
			return topology.Config{}, err
		}
		if kind == compositor.CaveAdapterOnly {
			return topology.Config{}, fmt.Errorf("%w: cave is selected by cluster.display_nodes, not compositor.kind", compositor.ErrKind)
		}
	}

	return topology.Config{
		Role:           role,
		Rank:           c.Rank,
		Cluster:        c.Cluster,
		RenderPeer:     c.Peers.Render,
		ClientPeer:     c.Peers.Client,
		CompositorKind: kind,
		Compositor: compositor.Config{
			ReductionFactor: c.Compositor.ReductionFactor,
			DataReplicated:  c.Compositor.DataReplicated,
			WriteBack:       c.Compositor.WriteBack,
		},
		Codec:         c.Codec,
		LossLessRelay: c.LossLess,
		Cave:          c.Cave.Config,
		Displays:      c.Cave.Screens,
	}, nil
}
