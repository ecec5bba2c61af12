package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/pithecene-io/mural/types"
)

func TestLogger_IncludesProcessContext(t *testing.T) {
	var buf bytes.Buffer
	node := "wall-03"
	meta := &types.ProcessMeta{SessionID: "sess-1", Role: types.RoleServer, Rank: 3, Node: &node}
	l := NewLoggerAtLevel(meta, &buf, "debug")

	l.Warn("codec fallback", map[string]any{"requested": "nvpipe"})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if entry["session_id"] != "sess-1" {
		t.Errorf("session_id = %v, want sess-1", entry["session_id"])
	}
	if entry["role"] != "server" {
		t.Errorf("role = %v, want server", entry["role"])
	}
	if entry["rank"] != float64(3) {
		t.Errorf("rank = %v, want 3", entry["rank"])
	}
	if entry["node"] != "wall-03" {
		t.Errorf("node = %v, want wall-03", entry["node"])
	}
	if entry["level"] != "warn" {
		t.Errorf("level = %v, want warn", entry["level"])
	}
	fields, _ := entry["fields"].(map[string]any)
	if fields["requested"] != "nvpipe" {
		t.Errorf("fields.requested = %v, want nvpipe", fields["requested"])
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerAtLevel(&types.ProcessMeta{SessionID: "s"}, &buf, "warn")
	l.Info("dropped", nil)
	l.Debug("dropped", nil)
	if buf.Len() != 0 {
		t.Errorf("expected no output below warn, got %q", buf.String())
	}
	l.Error("kept", nil)
	if !strings.Contains(buf.String(), "kept") {
		t.Errorf("expected error entry, got %q", buf.String())
	}
}

func TestOrNop(t *testing.T) {
	l := OrNop(nil)
	// Must not panic.
	l.Info("ignored", map[string]any{"k": 1})
	l.Sugar().Infof("ignored %d", 1)
}
