// Package render writes the payloads of the read-only mural commands
// (resolve, stats, codecs, version) as json, yaml, an aligned table or,
// with --tui, an interactive view.
//
// Without --format, a terminal gets a table and anything else gets json.
// --no-color only strips the styling of table keys.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/mural/cli/tui"
)

// Format represents an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a --format value. Empty leaves the choice to the
// renderer.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatTable, FormatYAML, "":
		return f, nil
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// inlineLimit is the longest string list shown inline in a table cell.
const inlineLimit = 8

var keyStyle = tui.LabelStyle.UnsetWidth()

// Renderer writes one command's payload.
type Renderer struct {
	format  Format
	color   bool
	tui     bool
	command string
	out     io.Writer
}

// NewRenderer reads --format, --no-color and --tui from c.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = FormatJSON
		if isTTY(os.Stdout) {
			format = FormatTable
		}
	}
	r := NewRendererWithWriter(format, c.Bool("no-color"), os.Stdout)
	r.tui = c.Bool("tui")
	if c.Command != nil {
		r.command = c.Command.Name
	}
	return r, nil
}

// NewRendererWithWriter creates a non-interactive renderer writing to out.
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{format: format, color: !noColor, out: out}
}

// View shows data in the TUI view named view when --tui was given, and
// renders it like Render otherwise. An empty view means the command has
// no interactive form.
func (r *Renderer) View(view string, data any) error {
	if !r.tui {
		return r.Render(data)
	}
	if view == "" || !tui.IsTUISupported(view) {
		return cli.Exit(fmt.Sprintf("--tui is not supported for %s", r.commandName(view)), 1)
	}
	return tui.Run(view, data)
}

func (r *Renderer) commandName(view string) string {
	switch {
	case r.command != "":
		return r.command + " command"
	case view != "":
		return view
	default:
		return "this command"
	}
}

// Render writes data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	case FormatTable:
		return r.writeTable(tabulate(data))
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// table is a payload laid out in cells. Key-value tables have no header;
// their first column holds the keys.
type table struct {
	header []string
	rows   [][]string
	keyed  bool
}

func (r *Renderer) writeTable(t table) error {
	if t.header == nil && len(t.rows) == 0 {
		_, err := fmt.Fprintln(r.out, "(no results)")
		return err
	}
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	if t.header != nil {
		fmt.Fprintln(w, strings.Join(t.header, "\t"))
	}
	for _, row := range t.rows {
		if t.keyed && r.color {
			row = append([]string{keyStyle.Render(row[0])}, row[1:]...)
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

// tabulate lays out a list as one row per element and a struct or map as
// one row per key.
func tabulate(data any) table {
	v := indirect(reflect.ValueOf(data))
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return tabulateList(v)
	case reflect.Struct:
		t := table{keyed: true}
		for _, col := range columnsOf(v.Type()) {
			t.rows = append(t.rows, []string{col.name + ":", cell(v.FieldByIndex(col.index))})
		}
		return t
	case reflect.Map:
		t := table{keyed: true}
		for _, k := range sortedKeys(v) {
			t.rows = append(t.rows, []string{fmt.Sprint(k.Interface()) + ":", cell(v.MapIndex(k))})
		}
		return t
	case reflect.Invalid:
		return table{}
	default:
		return table{rows: [][]string{{cell(v)}}}
	}
}

func tabulateList(v reflect.Value) table {
	if v.Len() == 0 {
		return table{}
	}
	var t table
	first := indirect(v.Index(0))
	switch first.Kind() {
	case reflect.Struct:
		cols := columnsOf(first.Type())
		for _, col := range cols {
			t.header = append(t.header, col.name)
		}
		for i := range v.Len() {
			e := indirect(v.Index(i))
			row := make([]string, len(cols))
			for j, col := range cols {
				if e.IsValid() {
					row[j] = cell(e.FieldByIndex(col.index))
				}
			}
			t.rows = append(t.rows, row)
		}
	case reflect.Map:
		keys := sortedKeys(first)
		for _, k := range keys {
			t.header = append(t.header, fmt.Sprint(k.Interface()))
		}
		for i := range v.Len() {
			e := indirect(v.Index(i))
			row := make([]string, len(keys))
			for j, k := range keys {
				if e.IsValid() {
					row[j] = cell(e.MapIndex(k))
				}
			}
			t.rows = append(t.rows, row)
		}
	default:
		// A bare list, such as codec names: one value per line.
		for i := range v.Len() {
			t.rows = append(t.rows, []string{cell(v.Index(i))})
		}
	}
	return t
}

type column struct {
	name  string
	index []int
}

// columnsOf lists the exported fields of t under their json names.
func columnsOf(t reflect.Type) []column {
	var cols []column
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			continue
		case "":
			name = strings.ToLower(f.Name)
		}
		cols = append(cols, column{name: name, index: f.Index})
	}
	return cols
}

// cell formats one value for a table.
func cell(v reflect.Value) string {
	v = indirect(v)
	if !v.IsValid() {
		return ""
	}
	switch x := v.Interface().(type) {
	case time.Duration:
		return x.String()
	case time.Time:
		return x.Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	}
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return formatFloat(v.Float())
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.String && v.Len() <= inlineLimit {
			parts := make([]string, v.Len())
			for i := range parts {
				parts[i] = v.Index(i).String()
			}
			if len(parts) == 0 {
				return "-"
			}
			return strings.Join(parts, ", ")
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		return "{...}"
	default:
		return fmt.Sprint(v.Interface())
	}
}

// indirect follows pointers and interfaces. A nil pointer yields the zero
// Value.
func indirect(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// formatFloat prints f with at most three decimals and no trailing zeros.
func formatFloat(f float64) string {
	return strconv.FormatFloat(math.Round(f*1000)/1000, 'f', -1, 64)
}

// sortedKeys returns the keys of map v in string order, so table output
// is stable across runs.
func sortedKeys(v reflect.Value) []reflect.Value {
	keys := v.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
	})
	return keys
}

func isTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
