package output

import (
	"fmt"
	"io"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"
)

// maxCell is the widest cell printed outside wide mode.
const maxCell = 48

// TableFormatter prints rows aligned in columns.
//
// Slices of structs get one column per exported field, named after its
// json tag; `table:"-"` hides a field and `table:"wide"` shows it only in
// wide mode. Slices of maps (service records) get the union of their keys.
// A single struct or map prints as name/value pairs. Anything else falls
// back to indented JSON.
type TableFormatter struct {
	Wide      bool
	NoHeaders bool
}

// Format implements Formatter.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	if data == nil {
		return nil
	}

	var t *Table
	switch d := data.(type) {
	case *Table:
		t = d
	case Table:
		t = &d
	default:
		var ok bool
		if t, ok = toTable(reflect.ValueOf(data), f.Wide); !ok {
			return (&JSONFormatter{}).Format(w, data)
		}
	}
	if !f.Wide {
		t = t.clipped(maxCell)
	}
	return t.write(w, !f.NoHeaders)
}

func toTable(v reflect.Value, wide bool) (*Table, bool) {
	v = indirect(v)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return listTable(v, wide), true
	case reflect.Map:
		return pairTable("KEY", mapPairs(v)), true
	case reflect.Struct:
		return pairTable("FIELD", structPairs(v)), true
	default:
		return nil, false
	}
}

// column is one exported struct field shown in a table.
type column struct {
	name  string
	index int
}

func columns(t reflect.Type, wide bool) []column {
	var cols []column
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("table")
		if tag == "-" || (tag == "wide" && !wide) {
			continue
		}
		name := f.Name
		if j, _, _ := strings.Cut(f.Tag.Get("json"), ","); j != "" && j != "-" {
			name = j
		}
		cols = append(cols, column{name: name, index: i})
	}
	return cols
}

func listTable(v reflect.Value, wide bool) *Table {
	t := &Table{}
	if v.Len() == 0 {
		return t
	}

	first := indirect(v.Index(0))
	switch first.Kind() {
	case reflect.Map:
		return recordTable(v)
	case reflect.Struct:
		cols := columns(first.Type(), wide)
		for _, c := range cols {
			t.Headers = append(t.Headers, header(c.name))
		}
		for i := 0; i < v.Len(); i++ {
			elem := indirect(v.Index(i))
			row := make([]string, len(cols))
			for j, c := range cols {
				if elem.Kind() == reflect.Struct {
					row[j] = formatValue(elem.Field(c.index))
				}
			}
			t.Rows = append(t.Rows, row)
		}
	default:
		t.Headers = []string{"VALUE"}
		for i := 0; i < v.Len(); i++ {
			t.Rows = append(t.Rows, []string{formatValue(v.Index(i))})
		}
	}
	return t
}

// recordTable prints service records: "id" first, other keys sorted, and
// "-" where a record lacks a key.
func recordTable(v reflect.Value) *Table {
	seen := map[string]bool{}
	var keys []string
	for i := 0; i < v.Len(); i++ {
		elem := indirect(v.Index(i))
		if elem.Kind() != reflect.Map {
			continue
		}
		for _, k := range elem.MapKeys() {
			name := fmt.Sprint(k.Interface())
			if !seen[name] {
				seen[name] = true
				keys = append(keys, name)
			}
		}
	}
	slices.SortFunc(keys, func(a, b string) int {
		switch {
		case a == b:
			return 0
		case a == "id":
			return -1
		case b == "id":
			return 1
		}
		return strings.Compare(a, b)
	})

	t := &Table{}
	for _, k := range keys {
		t.Headers = append(t.Headers, header(k))
	}
	for i := 0; i < v.Len(); i++ {
		elem := indirect(v.Index(i))
		row := make([]string, len(keys))
		for j, k := range keys {
			row[j] = "-"
			if elem.Kind() != reflect.Map {
				continue
			}
			if val := elem.MapIndex(reflect.ValueOf(k)); val.IsValid() {
				row[j] = formatValue(val)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func mapPairs(v reflect.Value) [][]string {
	var rows [][]string
	iter := v.MapRange()
	for iter.Next() {
		rows = append(rows, []string{formatValue(iter.Key()), formatValue(iter.Value())})
	}
	slices.SortFunc(rows, func(a, b []string) int { return strings.Compare(a[0], b[0]) })
	return rows
}

func structPairs(v reflect.Value) [][]string {
	var rows [][]string
	for _, c := range columns(v.Type(), true) {
		rows = append(rows, []string{c.name, formatValue(v.Field(c.index))})
	}
	return rows
}

func pairTable(keyHeader string, rows [][]string) *Table {
	return &Table{Headers: []string{keyHeader, "VALUE"}, Rows: rows}
}

func indirect(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return v
		}
		v = v.Elem()
	}
	return v
}

var timeType = reflect.TypeOf(time.Time{})

// formatValue renders one cell.
func formatValue(v reflect.Value) string {
	v = indirect(v)
	if !v.IsValid() || !v.CanInterface() {
		return ""
	}
	if (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) && v.IsNil() {
		return ""
	}

	if v.Type() == timeType {
		t := v.Interface().(time.Time)
		if t.IsZero() {
			return "-"
		}
		return t.Format("2006-01-02 15:04")
	}
	if s, ok := v.Interface().(fmt.Stringer); ok {
		return s.String()
	}

	switch v.Kind() {
	case reflect.String:
		if v.Len() == 0 {
			return "-"
		}
		return v.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		// JSON numbers arrive as float64; ids must not print as "7.00".
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "-"
		}
		if v.Len() > 4 || !isScalar(v.Type().Elem()) {
			return fmt.Sprintf("[%d items]", v.Len())
		}
		parts := make([]string, v.Len())
		for i := range parts {
			parts[i] = formatValue(v.Index(i))
		}
		return strings.Join(parts, ",")
	case reflect.Map:
		if v.Len() == 0 {
			return "-"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	default:
		return fmt.Sprint(v.Interface())
	}
}

func isScalar(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct, reflect.Ptr:
		return false
	default:
		return true
	}
}

func header(name string) string {
	return strings.ToUpper(toSnakeCase(name))
}

// toSnakeCase inserts an underscore before every inner capital letter.
func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Table is pre-built tabular data.
type Table struct {
	Headers []string
	Rows    [][]string
}

// SetHeaders sets the header row.
func (t *Table) SetHeaders(headers ...string) {
	t.Headers = headers
}

// AddRow appends a row.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

func (t *Table) write(w io.Writer, headers bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if headers && len(t.Headers) > 0 {
		fmt.Fprintln(tw, strings.Join(t.Headers, "\t"))
	}
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// clipped returns a copy whose cells are at most n runes long.
func (t *Table) clipped(n int) *Table {
	out := &Table{Headers: t.Headers, Rows: make([][]string, len(t.Rows))}
	for i, row := range t.Rows {
		out.Rows[i] = make([]string, len(row))
		for j, cell := range row {
			out.Rows[i][j] = clip(cell, n)
		}
	}
	return out
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
