package render

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Format
		wantErr bool
	}{
		{"json lowercase", "json", FormatJSON, false},
		{"json uppercase", "JSON", FormatJSON, false},
		{"table", "table", FormatTable, false},
		{"yaml", "yaml", FormatYAML, false},
		{"empty", "", "", false},
		{"invalid", "xml", "", true},
		{"invalid with message", "csv", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseFormat_InvalidErrorMessage(t *testing.T) {
	_, err := ParseFormat("xml")
	if err == nil {
		t.Fatal("expected error for invalid format")
	}
	if !strings.Contains(err.Error(), "json, table, or yaml") {
		t.Errorf("error message should mention valid formats, got: %v", err)
	}
}

func TestRenderer_JSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatJSON, false, &buf)

	data := map[string]string{"key": "value"}
	if err := r.Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, `"key"`) || !strings.Contains(got, `"value"`) {
		t.Errorf("JSON output missing expected content: %s", got)
	}
}

func TestRenderer_YAML(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatYAML, false, &buf)

	data := map[string]string{"key": "value"}
	if err := r.Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "key:") || !strings.Contains(got, "value") {
		t.Errorf("YAML output missing expected content: %s", got)
	}
}

func TestRenderer_Table_Struct(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, false, &buf)

	type TestStruct struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}

	data := TestStruct{Name: "test", Value: 42}
	if err := r.Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "name:") || !strings.Contains(got, "test") {
		t.Errorf("Table output missing name field: %s", got)
	}
	if !strings.Contains(got, "value:") || !strings.Contains(got, "42") {
		t.Errorf("Table output missing value field: %s", got)
	}
}

func TestRenderer_Table_Slice(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, false, &buf)

	type Item struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	data := []Item{
		{ID: "1", Name: "first"},
		{ID: "2", Name: "second"},
	}

	if err := r.Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	// Should have header row
	if !strings.Contains(got, "id") || !strings.Contains(got, "name") {
		t.Errorf("Table output missing headers: %s", got)
	}
	// Should have data rows
	if !strings.Contains(got, "first") || !strings.Contains(got, "second") {
		t.Errorf("Table output missing data: %s", got)
	}
}

func TestRenderer_Table_EmptySlice(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, false, &buf)

	data := []string{}
	if err := r.Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "(no results)") {
		t.Errorf("Empty slice should show '(no results)', got: %s", got)
	}
}

func TestRenderer_NoColor_DoesNotAffectJSON(t *testing.T) {
	// --no-color should not change JSON output
	var bufColor, bufNoColor bytes.Buffer

	rColor := NewRendererWithWriter(FormatJSON, false, &bufColor)
	rNoColor := NewRendererWithWriter(FormatJSON, true, &bufNoColor)

	data := map[string]string{"key": "value"}

	if err := rColor.Render(data); err != nil {
		t.Fatalf("Render with color failed: %v", err)
	}
	if err := rNoColor.Render(data); err != nil {
		t.Fatalf("Render without color failed: %v", err)
	}

	if bufColor.String() != bufNoColor.String() {
		t.Errorf("--no-color should not affect JSON output")
	}
}

func TestRenderer_Table_MapSorted(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, false, &buf)

	data := map[string]int{"zstd": 3, "lz4": 1, "squirt": 2}
	if err := r.Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	lz4, squirt, zstd := strings.Index(got, "lz4"), strings.Index(got, "squirt"), strings.Index(got, "zstd")
	if lz4 < 0 || lz4 > squirt || squirt > zstd {
		t.Errorf("map keys not sorted: %s", got)
	}
}

func TestRenderer_Table_StringSliceInline(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, false, &buf)

	type Plan struct {
		Role       string   `json:"role"`
		Components []string `json:"components"`
	}

	if err := r.Render(Plan{Role: "server", Components: []string{"compositor:icet", "producer"}}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if got := buf.String(); !strings.Contains(got, "compositor:icet, producer") {
		t.Errorf("components not rendered inline: %s", got)
	}
}

func TestRenderer_Table_FloatsAndDurations(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, false, &buf)

	data := struct {
		Ratio    float64       `json:"ratio"`
		Elapsed  time.Duration `json:"elapsed"`
		Frames   int64         `json:"frames"`
		WholeNum float64       `json:"whole"`
	}{Ratio: 0.123456, Elapsed: 1500 * time.Millisecond, Frames: 42, WholeNum: 3}

	if err := r.Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	output := buf.String()
	for _, want := range []string{"0.123", "1.5s", "42", "3"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
	if strings.Contains(output, "0.123456") {
		t.Errorf("ratio not rounded:\n%s", output)
	}
}

func TestRenderer_Table_BareList(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, true, &buf)

	if err := r.Render([]string{"lz4", "squirt", "zlib"}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if got, want := buf.String(), "lz4\nsquirt\nzlib\n"; got != want {
		t.Errorf("bare list = %q, want %q", got, want)
	}
}

func TestRenderer_Table_SkipsHiddenFields(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, true, &buf)

	type view struct {
		Codec  string  `json:"codec,omitempty"`
		Secret string  `json:"-"`
		Next   *string `json:"next"`
	}
	if err := r.Render(&view{Codec: "lz4 1", Secret: "hunter2"}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	got := buf.String()
	if !strings.Contains(got, "codec:") || !strings.Contains(got, "lz4 1") {
		t.Errorf("codec row missing: %s", got)
	}
	if strings.Contains(got, "hunter2") {
		t.Errorf("json:\"-\" field rendered: %s", got)
	}
	if !strings.Contains(got, "next:") {
		t.Errorf("nil pointer field missing: %s", got)
	}
}

func TestRenderer_ViewWithoutTUI(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatJSON, false, &buf)

	if err := r.View("", map[string]int{"frames": 3}); err != nil {
		t.Fatalf("View failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"frames": 3`) {
		t.Errorf("View did not fall back to Render: %s", buf.String())
	}
}

func TestRenderer_ViewUnsupportedTUI(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatJSON, false, &buf)
	r.tui, r.command = true, "version"

	err := r.View("", struct{}{})
	if err == nil || !strings.Contains(err.Error(), "--tui is not supported for version command") {
		t.Errorf("View() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("unsupported view wrote output: %s", buf.String())
	}
}
