package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pithecene-io/mural/compositor"
	"github.com/pithecene-io/mural/types"
)

func TestLoad_FullConfig(t *testing.T) {
	yaml := `role: server
rank: 2
session: demo
log_level: debug

cluster:
  tile_columns: 2
  tile_rows: 1
  mullion_x: 8
  mullion_y: 0
  local_partitions: 2

peers:
  render: render-0:7420
  client: 0.0.0.0:7420

compositor:
  kind: gather
  reduction_factor: 2
  data_replicated: true
  write_back: true

codec: "squirt 0 3"
loss_less: true

cave:
  eye_separation: 0.065
  eye_position: [0, 1.7, 0]
  physical_aspect: 1.6
  screens:
    - rank: 0
      origin: [-1, 0, -1]
      edge_x: [2, 0, 0]
      edge_y: [0, 2, 0]

scene:
  width: 640
  height: 480
  components: 4

frames: 120
interval: 16ms

storage:
  dataset: mural
  backend: s3
  path: my-bucket/prefix
  region: us-east-1
  endpoint: https://example.com
  s3_path_style: true
  snapshots: 30

adapter:
  type: webhook
  url: https://hooks.example.com/mural
  headers:
    Authorization: Bearer token123
  secret: hunter2
  timeout: 10s
  retries: 3
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Top-level fields
	assertEqual(t, "role", cfg.Role, "server")
	assertEqual(t, "session", cfg.Session, "demo")
	assertEqual(t, "log_level", cfg.LogLevel, "debug")
	assertEqual(t, "codec", cfg.Codec, "squirt 0 3")
	if cfg.Rank != 2 {
		t.Errorf("rank: got %d, want 2", cfg.Rank)
	}
	if !cfg.LossLess {
		t.Error("expected loss_less=true")
	}
	if cfg.Frames != 120 {
		t.Errorf("frames: got %d, want 120", cfg.Frames)
	}
	if cfg.Interval.Duration != 16*time.Millisecond {
		t.Errorf("interval: got %v, want 16ms", cfg.Interval.Duration)
	}

	// Cluster
	want := types.ClusterTopology{TileColumns: 2, TileRows: 1, MullionX: 8, NumberOfLocalPartitions: 2}
	if cfg.Cluster != want {
		t.Errorf("cluster: got %+v, want %+v", cfg.Cluster, want)
	}

	// Peers
	assertEqual(t, "peers.render", cfg.Peers.Render, "render-0:7420")
	assertEqual(t, "peers.client", cfg.Peers.Client, "0.0.0.0:7420")

	// Compositor
	assertEqual(t, "compositor.kind", cfg.Compositor.Kind, "gather")
	if cfg.Compositor.ReductionFactor != 2 || !cfg.Compositor.DataReplicated || !cfg.Compositor.WriteBack {
		t.Errorf("compositor: got %+v", cfg.Compositor)
	}

	// CAVE
	if cfg.Cave.EyeSeparation != 0.065 {
		t.Errorf("cave.eye_separation: got %v", cfg.Cave.EyeSeparation)
	}
	if cfg.Cave.EyePosition != (types.Vec3{0, 1.7, 0}) {
		t.Errorf("cave.eye_position: got %v", cfg.Cave.EyePosition)
	}
	if len(cfg.Cave.Screens) != 1 {
		t.Fatalf("cave.screens: got %d, want 1", len(cfg.Cave.Screens))
	}
	if cfg.Cave.Screens[0].EdgeX != (types.Vec3{2, 0, 0}) {
		t.Errorf("cave.screens[0].edge_x: got %v", cfg.Cave.Screens[0].EdgeX)
	}

	// Scene
	if cfg.Scene.Width != 640 || cfg.Scene.Height != 480 || cfg.Scene.Components != 4 {
		t.Errorf("scene: got %+v", cfg.Scene)
	}

	// Storage
	assertEqual(t, "storage.backend", cfg.Storage.Backend, "s3")
	assertEqual(t, "storage.path", cfg.Storage.Path, "my-bucket/prefix")
	assertEqual(t, "storage.region", cfg.Storage.Region, "us-east-1")
	assertEqual(t, "storage.endpoint", cfg.Storage.Endpoint, "https://example.com")
	if !cfg.Storage.S3PathStyle {
		t.Error("expected storage.s3_path_style=true")
	}
	if cfg.Storage.Snapshots != 30 {
		t.Errorf("storage.snapshots: got %d, want 30", cfg.Storage.Snapshots)
	}

	// Adapter
	assertEqual(t, "adapter.type", cfg.Adapter.Type, "webhook")
	assertEqual(t, "adapter.url", cfg.Adapter.URL, "https://hooks.example.com/mural")
	assertEqual(t, "adapter.secret", cfg.Adapter.Secret, "hunter2")
	assertEqual(t, "adapter.headers.Authorization", cfg.Adapter.Headers["Authorization"], "Bearer token123")
	if cfg.Adapter.Timeout.Duration != 10*time.Second {
		t.Errorf("adapter.timeout: got %v, want 10s", cfg.Adapter.Timeout.Duration)
	}
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 3 {
		t.Errorf("adapter.retries: got %v, want 3", cfg.Adapter.Retries)
	}
}

func TestLoad_EmptyConfig(t *testing.T) {
	path := writeTemp(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed for empty config: %v", err)
	}
	if cfg.Role != "" || cfg.Codec != "" {
		t.Errorf("expected zero config, got %+v", cfg)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/mural.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error should say not found, got: %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTemp(t, "{{invalid yaml")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("MURAL_TEST_CODEC", "zstd 0 3")

	yaml := `codec: ${MURAL_TEST_CODEC}
role: ${MURAL_TEST_UNSET_ROLE:-client}
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "codec", cfg.Codec, "zstd 0 3")
	assertEqual(t, "role", cfg.Role, "client")
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	yaml := `role: server
bogus_key: should_fail
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}
	if !strings.Contains(err.Error(), "bogus_key") {
		t.Errorf("error should mention the unknown key, got: %v", err)
	}
}

func TestLoad_UnknownNestedKeyRejected(t *testing.T) {
	yaml := `cluster:
  tile_columns: 2
  unknown_field: bad
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown nested key, got nil")
	}
	if !strings.Contains(err.Error(), "unknown_field") {
		t.Errorf("error should mention the unknown key, got: %v", err)
	}
}

func TestLoad_WhitespaceOnlyConfig(t *testing.T) {
	path := writeTemp(t, "   \n  \n  \n")
	if _, err := Load(path); err != nil {
		t.Fatalf("Load failed for whitespace-only config: %v", err)
	}
}

func TestLoad_CommentsOnlyConfig(t *testing.T) {
	path := writeTemp(t, "# This is a comment\n# Another comment\n")
	if _, err := Load(path); err != nil {
		t.Fatalf("Load failed for comments-only config: %v", err)
	}
}

func TestLoad_RetriesZeroDistinctFromNil(t *testing.T) {
	yaml := `adapter:
  type: webhook
  url: https://example.com
  retries: 0
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Adapter.Retries == nil {
		t.Fatal("expected retries to be set")
	}
	if *cfg.Adapter.Retries != 0 {
		t.Errorf("expected retries=0, got %d", *cfg.Adapter.Retries)
	}
}

func TestLoad_RetriesOmittedIsNil(t *testing.T) {
	yaml := `adapter:
  type: webhook
  url: https://example.com
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Adapter.Retries != nil {
		t.Errorf("expected retries nil, got %d", *cfg.Adapter.Retries)
	}
}

func TestDuration_InvalidFormat(t *testing.T) {
	path := writeTemp(t, "interval: not-a-duration\n")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid duration, got nil")
	}
	if !strings.Contains(err.Error(), "not-a-duration") {
		t.Errorf("error should mention the bad value, got: %v", err)
	}
}

func TestDuration_EmptyIsZero(t *testing.T) {
	path := writeTemp(t, "interval: \"\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Interval.Duration != 0 {
		t.Errorf("expected zero duration, got %v", cfg.Interval.Duration)
	}
}

func TestDuration_MarshalYAML(t *testing.T) {
	got, err := Duration{Duration: 1500 * time.Millisecond}.MarshalYAML()
	if err != nil {
		t.Fatal(err)
	}
	if got != "1.5s" {
		t.Errorf("got %v, want 1.5s", got)
	}
}

func TestLoad_RedisAdapterConfig(t *testing.T) {
	yaml := `adapter:
  type: redis
  url: redis://localhost:6379/0
  channel: "mural:{role}"
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "adapter.type", cfg.Adapter.Type, "redis")
	assertEqual(t, "adapter.url", cfg.Adapter.URL, "redis://localhost:6379/0")
	assertEqual(t, "adapter.channel", cfg.Adapter.Channel, "mural:{role}")
}

func TestToTopology(t *testing.T) {
	cfg := &Config{
		Role:    "render-server",
		Rank:    1,
		Cluster: types.ClusterTopology{TileColumns: 2, TileRows: 2, MullionX: 4},
		Peers:   PeersConfig{Client: ":7420"},
		Compositor: CompositorConfig{
			Kind:            "gather",
			ReductionFactor: 2,
			WriteBack:       true,
		},
		Codec:    "lz4 0",
		LossLess: true,
		Cave:     CaveConfig{Screens: []types.DisplayGeometry{{Rank: 1}}},
	}

	got, err := cfg.ToTopology()
	if err != nil {
		t.Fatalf("ToTopology: %v", err)
	}
	if got.Role != types.RoleRenderServer {
		t.Errorf("role: got %q", got.Role)
	}
	if got.Rank != 1 || got.ClientPeer != ":7420" || got.RenderPeer != "" {
		t.Errorf("rank/peers: got %+v", got)
	}
	if got.CompositorKind != compositor.SimpleGather {
		t.Errorf("kind: got %v, want gather", got.CompositorKind)
	}
	if got.Compositor.ReductionFactor != 2 || !got.Compositor.WriteBack {
		t.Errorf("compositor: got %+v", got.Compositor)
	}
	if got.Codec != "lz4 0" || !got.LossLessRelay {
		t.Errorf("codec: got %q lossless=%v", got.Codec, got.LossLessRelay)
	}
	if len(got.Displays) != 1 || got.Displays[0].Rank != 1 {
		t.Errorf("displays: got %+v", got.Displays)
	}
}

func TestToTopology_DefaultKind(t *testing.T) {
	cfg := &Config{Role: "server"}
	got, err := cfg.ToTopology()
	if err != nil {
		t.Fatalf("ToTopology: %v", err)
	}
	if got.CompositorKind != compositor.IceTStyle {
		t.Errorf("kind: got %v, want icet", got.CompositorKind)
	}
}

func TestToTopology_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{name: "missing role", cfg: Config{}, wantErr: ErrNoRole},
		{name: "bad role", cfg: Config{Role: "viewer"}},
		{name: "negative rank", cfg: Config{Role: "server", Rank: -1}},
		{name: "negative tiles", cfg: Config{Role: "server", Cluster: types.ClusterTopology{TileColumns: -1}}},
		{name: "bad kind", cfg: Config{Role: "server", Compositor: CompositorConfig{Kind: "radix"}}, wantErr: compositor.ErrKind},
		{name: "cave kind", cfg: Config{Role: "server", Compositor: CompositorConfig{Kind: "cave"}}, wantErr: compositor.ErrKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.ToTopology()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// writeTemp writes content to a temp file and returns the path.
func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "mural.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func assertEqual(t *testing.T, field, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}

func TestLoad_RequiredEnvMissing(t *testing.T) {
	path := writeTemp(t, "peers:\n  render: ${MURAL_TEST_UNSET_PEER:?render address}\n")
	_, err := Load(path)
	if !errors.Is(err, ErrMissingEnv) {
		t.Fatalf("err = %v, want ErrMissingEnv", err)
	}
}

func TestLoad_NegativeCountsRejected(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"frames", "frames: -1\n", "frames"},
		{"snapshots", "storage:\n  snapshots: -2\n", "storage.snapshots"},
		{"interval", "interval: -5ms\n", "interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTemp(t, tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}
