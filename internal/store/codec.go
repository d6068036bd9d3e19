package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"dataflow-gateway/internal/engine"
)

// decodeJSON keeps numbers as json.Number so stored payloads are never
// squeezed through float64.
func decodeJSON(raw []byte, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

func encodeJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return raw, nil
}

// nullableJSON encodes v, returning nil for a nil value so the column stays NULL.
func nullableJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return encodeJSON(v)
}

type operationColumns struct {
	id, moduleType                     string
	config, doc, tags, inputs, outputs []byte
	internal                           bool
}

func (c operationColumns) decode() (engine.Operation, error) {
	op := engine.Operation{
		ID:         c.id,
		ModuleType: c.moduleType,
		Internal:   c.internal,
	}
	if err := decodeJSON(c.config, &op.ModuleConfig); err != nil {
		return op, fmt.Errorf("decode module config: %w", err)
	}
	if err := decodeJSON(c.doc, &op.Doc); err != nil {
		return op, fmt.Errorf("decode doc: %w", err)
	}
	if err := decodeJSON(c.tags, &op.Tags); err != nil {
		return op, fmt.Errorf("decode tags: %w", err)
	}
	if err := decodeJSON(c.inputs, &op.InputsSchema); err != nil {
		return op, fmt.Errorf("decode inputs schema: %w", err)
	}
	if err := decodeJSON(c.outputs, &op.OutputsSchema); err != nil {
		return op, fmt.Errorf("decode outputs schema: %w", err)
	}
	if op.InputsSchema == nil {
		op.InputsSchema = map[string]engine.ValueSchema{}
	}
	if op.OutputsSchema == nil {
		op.OutputsSchema = map[string]engine.ValueSchema{}
	}
	return op, nil
}

type operationPayload struct {
	config, doc, tags, inputs, outputs []byte
}

func encodeOperation(op engine.Operation) (operationPayload, error) {
	var p operationPayload
	var err error
	if p.config, err = encodeJSON(orEmptyMap(op.ModuleConfig)); err != nil {
		return p, err
	}
	if p.doc, err = encodeJSON(op.Doc); err != nil {
		return p, err
	}
	tags := op.Tags
	if tags == nil {
		tags = []string{}
	}
	if p.tags, err = encodeJSON(tags); err != nil {
		return p, err
	}
	if p.inputs, err = encodeJSON(op.InputsSchema); err != nil {
		return p, err
	}
	if p.outputs, err = encodeJSON(op.OutputsSchema); err != nil {
		return p, err
	}
	return p, nil
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func textPtr(s string, valid bool) *string {
	if valid {
		return &s
	}
	return nil
}
