package render

import (
	"bytes"
	"fmt"
	"html/template"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"dataflow-gateway/internal/engine"
)

var tableTmpl = template.Must(template.New("table").Parse(
	`<table class="value-table"><thead><tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead>` +
		`<tbody>{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>{{end}}</tbody></table>`))

type table struct {
	Columns []string
	Rows    [][]string
}

// toTable accepts a record list, a column map or (for dicts) a single record.
func toTable(dataType string, data any) (table, error) {
	switch d := data.(type) {
	case nil:
		return table{}, nil
	case []any:
		var records []map[string]any
		seen := map[string]struct{}{}
		for i, item := range d {
			rec, ok := item.(map[string]any)
			if !ok {
				return table{}, fmt.Errorf("row %d is %T, not an object", i, item)
			}
			records = append(records, rec)
			for k := range rec {
				seen[k] = struct{}{}
			}
		}
		cols := slices.Sorted(maps.Keys(seen))
		t := table{Columns: cols}
		for _, rec := range records {
			row := make([]string, len(cols))
			for i, c := range cols {
				row[i] = scalarText(rec[c])
			}
			t.Rows = append(t.Rows, row)
		}
		return t, nil
	case map[string]any:
		cols := slices.Sorted(maps.Keys(d))
		if dataType == "dict" {
			row := make([]string, len(cols))
			for i, c := range cols {
				row[i] = scalarText(d[c])
			}
			return table{Columns: cols, Rows: [][]string{row}}, nil
		}
		t := table{Columns: cols}
		n := 0
		for _, c := range cols {
			col, ok := d[c].([]any)
			if !ok {
				return table{}, fmt.Errorf("column %q is %T, not a list", c, d[c])
			}
			n = max(n, len(col))
		}
		for r := 0; r < n; r++ {
			row := make([]string, len(cols))
			for i, c := range cols {
				if col := d[c].([]any); r < len(col) {
					row[i] = scalarText(col[r])
				}
			}
			t.Rows = append(t.Rows, row)
		}
		return t, nil
	}
	return table{}, fmt.Errorf("unsupported %s payload %T", dataType, data)
}

func (t table) project(cols []string) table {
	idx := make([]int, 0, len(cols))
	kept := make([]string, 0, len(cols))
	for _, c := range cols {
		if i := slices.Index(t.Columns, c); i >= 0 {
			idx = append(idx, i)
			kept = append(kept, c)
		}
	}
	out := table{Columns: kept}
	for _, row := range t.Rows {
		projected := make([]string, len(idx))
		for j, i := range idx {
			projected[j] = row[i]
		}
		out.Rows = append(out.Rows, projected)
	}
	return out
}

func (t table) applyFilters(filters []string, cfg map[string]any) table {
	cols := stringsConfig(cfg, "columns")
	for _, f := range filters {
		switch f {
		case FilterSelectColumns:
			if len(cols) > 0 {
				t = t.project(cols)
			}
		case FilterDropColumns:
			keep := slices.DeleteFunc(slices.Clone(t.Columns), func(c string) bool {
				return slices.Contains(cols, c)
			})
			t = t.project(keep)
		}
	}
	return t
}

func (r *Renderer) renderTable(req engine.RenderValueRequest, format string) (string, map[string]any, error) {
	t, err := toTable(req.Value.DataType, req.Value.Data)
	if err != nil {
		return "", nil, fmt.Errorf("render %s: %w", req.Value.DataType, err)
	}
	t = t.applyFilters(req.Filters, req.RenderConfig)

	total := len(t.Rows)
	offset := min(max(intConfig(req.RenderConfig, "row_offset", 0), 0), total)
	limit := intConfig(req.RenderConfig, "number_of_rows", r.maxRows)
	if limit <= 0 || limit > r.maxRows {
		limit = r.maxRows
	}
	end := min(offset+limit, total)
	t.Rows = t.Rows[offset:end]

	meta := map[string]any{
		"columns":        t.Columns,
		"total_rows":     total,
		"row_offset":     offset,
		"number_of_rows": end - offset,
	}
	if end < total {
		meta["next_page"] = pageConfig(req.RenderConfig, end, limit)
	}
	if offset > 0 {
		meta["previous_page"] = pageConfig(req.RenderConfig, max(offset-limit, 0), limit)
	}

	if format == FormatString {
		return tableText(t), meta, nil
	}
	var buf bytes.Buffer
	if err := tableTmpl.Execute(&buf, t); err != nil {
		return "", nil, fmt.Errorf("render table: %w", err)
	}
	return buf.String(), meta, nil
}

func pageConfig(base map[string]any, offset, limit int) map[string]any {
	cfg := maps.Clone(base)
	if cfg == nil {
		cfg = map[string]any{}
	}
	cfg["row_offset"] = offset
	cfg["number_of_rows"] = limit
	return cfg
}

func tableText(t table) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(t.Columns, "\t"))
	for _, row := range t.Rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
	return strings.TrimRight(buf.String(), "\n")
}
