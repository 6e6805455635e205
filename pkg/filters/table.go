package filters

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/neurodesk/mdtemplate/pkg/mdtemplate"
)

const (
	// columnDelim separates the filters of a column spec, since "|" already
	// separates the stages of the enclosing pipeline.
	columnDelim = ">"
	// missingCell is written for cells whose pipeline fails on a row.
	missingCell = "-"
	noValues    = "No values"
)

// column is one table column. Inferred columns have no pipeline and show
// the row value under heading as is.
type column struct {
	heading string
	pipe    *mdtemplate.Pipeline
}

// tabularize renders a list of dicts (or a dict of dicts) as a markdown
// table. The optional row format lists the columns separated by ";", each a
// pipeline whose stages are separated by ">":
//
//	{{ spells|tabularize:"name>bold;level;school" }}
//
// For a dict of dicts the key of each entry is bound to the first column.
// Cells that fail to render are written as "-".
func (c *catalog) tabularize(val mdtemplate.Value, args []mdtemplate.Value) (mdtemplate.Value, error) {
	if err := checkArgs("tabularize", args, 0, 1); err != nil {
		return nil, err
	}
	var cols []column
	if len(args) > 0 {
		var err error
		if cols, err = c.columns(args[0].String()); err != nil {
			return nil, err
		}
	}

	rows, err := tableRows(val, cols)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return str(noValues), nil
	}
	if cols == nil {
		cols = inferColumns(rows)
	}

	var b strings.Builder
	headings := make([]string, len(cols))
	rules := make([]string, len(cols))
	for i, col := range cols {
		headings[i] = col.heading
		rules[i] = strings.Repeat("-", utf8.RuneCountInString(col.heading))
	}
	writeRow(&b, headings, " ")
	writeRow(&b, rules, "-")
	cells := make([]string, len(cols))
	for _, row := range rows {
		for i, col := range cols {
			cells[i] = col.cell(row)
		}
		writeRow(&b, cells, " ")
	}
	return str(b.String()), nil
}

// columns compiles a row format, caching the result per format string.
func (c *catalog) columns(format string) ([]column, error) {
	if cached, ok := c.tables.Load(format); ok {
		return cached.([]column), nil
	}
	var cols []column
	for _, spec := range strings.Split(format, ";") {
		pipe, err := c.reg.CompileDelim(spec, columnDelim)
		if err != nil {
			return nil, fmt.Errorf("tabularize column %q: %w", strings.TrimSpace(spec), err)
		}
		cols = append(cols, column{heading: pipe.Target, pipe: pipe})
	}
	c.tables.Store(format, cols)
	return cols, nil
}

// inferColumns uses the sorted union of the row keys as columns.
func inferColumns(rows []mdtemplate.Context) []column {
	seen := map[string]bool{}
	var keys []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	cols := make([]column, len(keys))
	for i, k := range keys {
		cols[i] = column{heading: k}
	}
	return cols
}

// tableRows turns the filter input into one context per row.
func tableRows(val mdtemplate.Value, cols []column) ([]mdtemplate.Context, error) {
	if d, ok := val.(mdtemplate.DictValue); ok && isDictOfDicts(d) {
		key := "_"
		if len(cols) > 0 {
			key = cols[0].heading
		}
		rows := make([]mdtemplate.Context, 0, len(d))
		for _, k := range d.Keys() {
			row := mdtemplate.Context{key: mdtemplate.StringValue(k)}
			for field, v := range d[k].(mdtemplate.DictValue) {
				if field != key {
					row[field] = v
				}
			}
			rows = append(rows, row)
		}
		return rows, nil
	}

	vals, err := items("tabularize", val)
	if err != nil {
		return nil, err
	}
	rows := make([]mdtemplate.Context, 0, len(vals))
	for i, v := range vals {
		d, ok := v.(mdtemplate.DictValue)
		if !ok {
			return nil, fmt.Errorf("tabularize: row %d is a %s, want dict", i, mdtemplate.TypeName(v))
		}
		rows = append(rows, mdtemplate.Context(d))
	}
	return rows, nil
}

func isDictOfDicts(d mdtemplate.DictValue) bool {
	if len(d) == 0 {
		return false
	}
	for _, v := range d {
		if _, ok := v.(mdtemplate.DictValue); !ok {
			return false
		}
	}
	return true
}

var cellEscaper = strings.NewReplacer("\r\n", " ", "\n", " ", "|", `\|`)

func (col column) cell(row mdtemplate.Context) string {
	var v mdtemplate.Value
	var err error
	if col.pipe != nil {
		v, err = col.pipe.Apply(row)
	} else if v = row[col.heading]; v == nil {
		err = mdtemplate.ErrMissingKey
	}
	if err != nil {
		return missingCell
	}
	return cellEscaper.Replace(strings.TrimSpace(v.String()))
}

func writeRow(b *strings.Builder, cells []string, fill string) {
	b.WriteByte('|')
	for _, c := range cells {
		b.WriteString(fill)
		b.WriteString(c)
		b.WriteString(fill)
		b.WriteByte('|')
	}
	b.WriteByte('\n')
}
