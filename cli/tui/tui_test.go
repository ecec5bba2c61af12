package tui

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pithecene-io/mural/cli/reader"
)

func TestIsTUISupported(t *testing.T) {
	tests := []struct {
		viewType string
		want     bool
	}{
		{"inspect_plan", true},
		{"stats_metrics", true},
		{"stats_frames", true},

		// Not supported
		{"codecs", false},
		{"version", false},
		{"serve", false},
		{"stats_unknown", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.viewType, func(t *testing.T) {
			got := IsTUISupported(tt.viewType)
			if got != tt.want {
				t.Errorf("IsTUISupported(%q) = %v, want %v", tt.viewType, got, tt.want)
			}
		})
	}
}

func TestRun_UnsupportedViewType(t *testing.T) {
	err := Run("codecs", nil)
	if err == nil {
		t.Error("Expected error for unsupported view type")
	}
}

func TestRenderStatsStatic_Metrics(t *testing.T) {
	snap := &reader.MetricsSnapshot{
		Ts:               "2026-10-17T12:00:00Z",
		Session:          "sess-1",
		Role:             "server",
		Codec:            "squirt 0 3",
		FramesSent:       42,
		RawBytes:         4000,
		WireBytes:        1000,
		CompressionRatio: 4,
		RawFallbacks:     map[string]int64{"squirt": 2},
	}

	out := RenderStatsStatic("stats_metrics", snap)
	for _, want := range []string{"sess-1", "42", "squirt=2", "4.00x"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderStatsStatic_Frames(t *testing.T) {
	frames := []reader.FrameSummary{
		{Seq: 1, HasImage: true, Width: 64, Height: 48, Codec: "lz4 0"},
		{Seq: 2},
		{Seq: 3, HasImage: true, Degraded: true},
	}
	out := RenderStatsStatic("stats_frames", frames)
	for _, want := range []string{"ok", "empty", "degraded", "lz4 0"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if got := RenderStatsStatic("stats_frames", []reader.FrameSummary{}); !strings.Contains(got, "no frames") {
		t.Errorf("empty frames output: %s", got)
	}
}

func TestRenderStatsStatic_WrongData(t *testing.T) {
	out := RenderStatsStatic("stats_metrics", "nope")
	if !strings.Contains(out, "Invalid data type") {
		t.Errorf("expected invalid data message, got: %s", out)
	}
}

func TestRenderInspectStatic_Plan(t *testing.T) {
	plan := &reader.PlanView{
		Role:       "server",
		Components: []string{"compositor:icet", "producer"},
		Compositor: "icet",
		Tiles:      "2x1",
		Mullions:   "8x0",
		Codec:      "lz4 0",
	}
	out := RenderInspectStatic("inspect_plan", plan)
	for _, want := range []string{"server", "distributed", "compositor:icet", "2x1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRankLabel(t *testing.T) {
	for _, rank := range []int64{0, 1, 7, -1} {
		if got := RankLabel(rank); !strings.Contains(got, fmt.Sprintf("r%d", rank)) {
			t.Errorf("RankLabel(%d) = %q", rank, got)
		}
	}
}
