// Package render turns engine values into HTML or plain-text representations.
package render

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"slices"
	"strconv"

	"dataflow-gateway/internal/blob"
	"dataflow-gateway/internal/engine"
)

const (
	FormatHTML   = "html"
	FormatString = "string"

	FilterSelectColumns = "select_columns"
	FilterDropColumns   = "drop_columns"
)

type kind int

const (
	kindUnsupported kind = iota
	kindScalar
	kindTable
	kindImage
)

func kindOf(dataType string) kind {
	switch dataType {
	case "string", "boolean", "integer", "float", "number", "none":
		return kindScalar
	case "dict", "table":
		return kindTable
	case "image":
		return kindImage
	}
	return kindUnsupported
}

func formatsFor(k kind) []string {
	switch k {
	case kindScalar, kindTable:
		return []string{FormatHTML, FormatString}
	case kindImage:
		return []string{FormatHTML}
	}
	return nil
}

// Renderer renders values; image payloads are read from the blob store.
type Renderer struct {
	blobs        blob.Store
	previewWidth int
	maxRows      int
}

func New(blobs blob.Store, previewWidth, maxRows int) *Renderer {
	if previewWidth <= 0 {
		previewWidth = 320
	}
	if maxRows <= 0 {
		maxRows = 100
	}
	return &Renderer{blobs: blobs, previewWidth: previewWidth, maxRows: maxRows}
}

// Render produces the first requested target format the value's type supports.
func (r *Renderer) Render(ctx context.Context, req engine.RenderValueRequest) (engine.RenderResult, error) {
	k := kindOf(req.Value.DataType)
	format, err := pickFormat(k, req.Value.DataType, req.TargetFormats)
	if err != nil {
		return engine.RenderResult{}, err
	}
	if err := checkFilters(k, req.Filters); err != nil {
		return engine.RenderResult{}, err
	}

	result := engine.RenderResult{
		ValueID:      req.Value.ID,
		DataType:     req.Value.DataType,
		TargetFormat: format,
		RenderConfig: req.RenderConfig,
	}
	switch k {
	case kindScalar:
		result.Rendered = renderScalar(req.Value.Data, format)
	case kindTable:
		result.Rendered, result.Metadata, err = r.renderTable(req, format)
	case kindImage:
		result.Rendered, result.Metadata, err = r.renderImage(ctx, req)
	}
	if err != nil {
		return engine.RenderResult{}, err
	}
	return result, nil
}

// Pipeline describes the render operation for a type, format and filter chain.
func (r *Renderer) Pipeline(dataType, targetFormat string, filters []string) (engine.Operation, error) {
	k := kindOf(dataType)
	if _, err := pickFormat(k, dataType, []string{targetFormat}); err != nil {
		return engine.Operation{}, err
	}
	if err := checkFilters(k, filters); err != nil {
		return engine.Operation{}, err
	}
	steps := []any{"render"}
	for _, f := range filters {
		steps = append(steps, "filter."+f)
	}
	return engine.Operation{
		ID:         fmt.Sprintf("render.%s.as.%s", dataType, targetFormat),
		ModuleType: "render.value",
		ModuleConfig: map[string]any{
			"source_type": dataType,
			"target_type": targetFormat,
			"filters":     slices.Clone(filters),
			"steps":       steps,
		},
		Doc: engine.Doc{Description: fmt.Sprintf("Render a '%s' value as %s.", dataType, targetFormat)},
		InputsSchema: map[string]engine.ValueSchema{
			"value":         {Type: dataType, Doc: engine.Doc{Description: "The value to render."}},
			"render_config": {Type: "dict", Optional: true, Doc: engine.Doc{Description: "Render options."}},
		},
		OutputsSchema: map[string]engine.ValueSchema{
			"render_value_result": {Type: "render_value_result", Doc: engine.Doc{Description: "The rendered value."}},
		},
	}, nil
}

func pickFormat(k kind, dataType string, requested []string) (string, error) {
	supported := formatsFor(k)
	if len(supported) == 0 {
		return "", fmt.Errorf("no renderer for data type %q: %w", dataType, engine.ErrInvalidOperation)
	}
	if len(requested) == 0 {
		return supported[0], nil
	}
	for _, f := range requested {
		if slices.Contains(supported, f) {
			return f, nil
		}
	}
	return "", fmt.Errorf("cannot render %q as %v: %w", dataType, requested, engine.ErrInvalidOperation)
}

func checkFilters(k kind, filters []string) error {
	for _, f := range filters {
		if k != kindTable || (f != FilterSelectColumns && f != FilterDropColumns) {
			return fmt.Errorf("unsupported render filter %q: %w", f, engine.ErrInvalidOperation)
		}
	}
	return nil
}

func renderScalar(v any, format string) string {
	text := scalarText(v)
	if format == FormatHTML {
		return "<pre>" + html.EscapeString(text) + "</pre>"
	}
	return text
}

func scalarText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}

func intConfig(cfg map[string]any, key string, def int) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func stringsConfig(cfg map[string]any, key string) []string {
	switch v := cfg[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v != "" {
			return []string{v}
		}
	}
	return nil
}
