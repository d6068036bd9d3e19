package jobs

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SubmitRequest is the body of a JSON job submission. Unrecognized top-level
// fields are kept in Extra.
type SubmitRequest struct {
	OperationID     string         `json:"operation_id"`
	OperationConfig map[string]any `json:"operation_config,omitempty"`
	Inputs          map[string]any `json:"inputs"`
	Extra           map[string]any `json:"-"`
}

var submitFields = map[string]struct{}{"operation_id": {}, "operation_config": {}, "inputs": {}}

func (r *SubmitRequest) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*r = SubmitRequest{}
	if v, ok := raw["operation_id"]; ok {
		if err := json.Unmarshal(v, &r.OperationID); err != nil {
			return fmt.Errorf("operation_id: %w", err)
		}
	}
	if v, ok := raw["operation_config"]; ok {
		if err := decodeNumbers(v, &r.OperationConfig); err != nil {
			return fmt.Errorf("operation_config: %w", err)
		}
	}
	if v, ok := raw["inputs"]; ok {
		if err := decodeNumbers(v, &r.Inputs); err != nil {
			return fmt.Errorf("inputs: %w", err)
		}
	}
	for k, v := range raw {
		if _, known := submitFields[k]; known {
			continue
		}
		var extra any
		if err := decodeNumbers(v, &extra); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		if r.Extra == nil {
			r.Extra = map[string]any{}
		}
		r.Extra[k] = extra
	}
	return nil
}

func (r SubmitRequest) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+3)
	for k, v := range r.Extra {
		out[k] = v
	}
	out["operation_id"] = r.OperationID
	out["inputs"] = r.Inputs
	if len(r.OperationConfig) > 0 {
		out["operation_config"] = r.OperationConfig
	}
	return json.Marshal(out)
}

// Validate checks the required field set.
func (r SubmitRequest) Validate() error {
	if r.OperationID == "" {
		return fmt.Errorf("operation_id is required")
	}
	return nil
}

func decodeNumbers(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}
