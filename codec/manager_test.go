package codec

import (
	"testing"

	"github.com/pithecene-io/mural/metrics"
)

func TestManager_StartsDisabled(t *testing.T) {
	m := NewManager()
	if m.Compressor() != nil {
		t.Error("new manager should have no compressor")
	}
	if m.Configuration() != "" {
		t.Errorf("Configuration() = %q, want empty", m.Configuration())
	}
}

func TestManager_Configure(t *testing.T) {
	tests := []struct {
		config string
		want   string
		name   string
	}{
		{"lz4 1", "lz4 1", NameLZ4},
		{"squirt 0 5", "squirt 0 5", NameSquirt},
		{"  zlib 1 9 0 0  ", "zlib 1 9 0 0", NameZlib},
		{"zstd 1 3", "zstd 1 3", NameZstd},
	}
	for _, tt := range tests {
		t.Run(tt.config, func(t *testing.T) {
			m := NewManager()
			if got := m.Configure(tt.config); got != tt.want {
				t.Errorf("Configure(%q) = %q, want %q", tt.config, got, tt.want)
			}
			if m.Compressor() == nil || m.Compressor().Name() != tt.name {
				t.Errorf("Compressor() = %v, want %s", m.Compressor(), tt.name)
			}
		})
	}
}

func TestManager_UnknownNameKeepsPrevious(t *testing.T) {
	c := metrics.NewCollector("client", "", "", "")
	m := NewManager(WithCollector(c))
	m.Configure("squirt 0 3")
	before := m.Compressor()

	if got := m.Configure("jpeg 0 80"); got != "squirt 0 3" {
		t.Errorf("Configure(unknown) = %q, want %q", got, "squirt 0 3")
	}
	if m.Compressor() != before {
		t.Error("unknown name replaced the active codec")
	}
	if s := c.Snapshot(); s.CodecRejected != 1 {
		t.Errorf("CodecRejected = %d, want 1", s.CodecRejected)
	}
}

func TestManager_UnknownNameWithNothingConfigured(t *testing.T) {
	m := NewManager()
	if got := m.Configure("jpeg 0 80"); got != "" {
		t.Errorf("Configure(unknown) = %q, want empty", got)
	}
	if m.Compressor() != nil {
		t.Error("unknown name should leave compression disabled")
	}
}

func TestManager_MalformedKeepsPrevious(t *testing.T) {
	m := NewManager()
	m.Configure("zlib 0 6 1 0")
	before := m.Compressor()

	if got := m.Configure("zlib 0 6 9 0"); got != "zlib 0 6 1 0" {
		t.Errorf("Configure(malformed) = %q, want %q", got, "zlib 0 6 1 0")
	}
	if m.Compressor() != before {
		t.Error("malformed configuration replaced the active codec")
	}
	if got := m.Compressor().SaveConfiguration(); got != "zlib 0 6 1 0" {
		t.Errorf("active codec changed to %q", got)
	}
}

func TestManager_UnavailableSubstitutesLZ4(t *testing.T) {
	c := metrics.NewCollector("client", "", "", "")
	m := NewManager(WithCollector(c))

	if got := m.Configure("nvpipe 0 20"); got != "lz4 0" {
		t.Errorf("Configure(nvpipe) = %q, want %q", got, "lz4 0")
	}
	if m.Configuration() != "lz4 0" {
		t.Errorf("Configuration() = %q, want rewritten %q", m.Configuration(), "lz4 0")
	}
	if m.Compressor().Name() != NameLZ4 {
		t.Errorf("Compressor().Name() = %q, want lz4", m.Compressor().Name())
	}
	if s := c.Snapshot(); s.CodecFallbacks != 1 {
		t.Errorf("CodecFallbacks = %d, want 1", s.CodecFallbacks)
	}

	// A missing flag defaults to loss-less.
	if got := m.Configure("nvpipe"); got != "lz4 1" {
		t.Errorf("Configure(nvpipe) = %q, want %q", got, "lz4 1")
	}
}

func TestManager_VideoBackendMakesNvPipeAvailable(t *testing.T) {
	video := &fakeVideo{}
	m := NewManager(WithVideoBackend(video))

	if got := m.Configure("nvpipe 0 20"); got != "nvpipe 0 20" {
		t.Fatalf("Configure(nvpipe) = %q, want %q", got, "nvpipe 0 20")
	}
	c := m.Compressor()
	c.SetImageResolution(2, 1)
	if _, err := c.Compress([]byte{1, 2, 3, 4, 5, 6, 7, 8}, 4, false); err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	if video.encodes != 1 {
		t.Errorf("backend encodes = %d, want 1", video.encodes)
	}
}

func TestManager_NoneDisables(t *testing.T) {
	m := NewManager()
	m.Configure("lz4 1")
	for _, config := range []string{"none", "", "   "} {
		m.Configure("lz4 1")
		if got := m.Configure(config); got != "" {
			t.Errorf("Configure(%q) = %q, want empty", config, got)
		}
		if m.Compressor() != nil {
			t.Errorf("Configure(%q) left a compressor active", config)
		}
	}
}

func TestManager_ReconfigureSameCodecKeepsInstance(t *testing.T) {
	m := NewManager()
	m.Configure("squirt 0 1")
	first := m.Compressor()
	m.Configure("squirt 1 4")
	if m.Compressor() != first {
		t.Error("reconfiguring the same codec should reuse the instance")
	}
	if got := m.Configuration(); got != "squirt 1 4" {
		t.Errorf("Configuration() = %q, want %q", got, "squirt 1 4")
	}
}

func TestManager_SetLossLess(t *testing.T) {
	m := NewManager()
	m.SetLossLess(true) // no-op without a codec
	m.Configure("squirt 0 5")
	m.SetLossLess(true)
	if got := m.Configuration(); got != "squirt 1 5" {
		t.Errorf("Configuration() = %q, want %q", got, "squirt 1 5")
	}
}

func TestManager_Names(t *testing.T) {
	infos := NewManager().Names()
	want := []string{NameLZ4, NameNvPipe, NameSquirt, NameZlib, NameZstd}
	if len(infos) != len(want) {
		t.Fatalf("Names() has %d entries, want %d", len(infos), len(want))
	}
	for i, info := range infos {
		if info.Name != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, info.Name, want[i])
		}
		if info.Available != (info.Name != NameNvPipe) {
			t.Errorf("%s: Available = %v", info.Name, info.Available)
		}
	}

	withVideo := NewManager(WithVideoBackend(&fakeVideo{})).Names()
	for _, info := range withVideo {
		if !info.Available {
			t.Errorf("%s: unavailable with a video backend", info.Name)
		}
	}
}
