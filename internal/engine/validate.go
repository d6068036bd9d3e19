package engine

import (
	"encoding/json"
	"fmt"
	"math"
)

// ValidateInputs checks inputs against schema and returns a message per
// invalid field. An empty map means the inputs are acceptable. Fields not
// declared in the schema are ignored.
func ValidateInputs(schema map[string]ValueSchema, inputs map[string]any) map[string]string {
	invalid := map[string]string{}
	for name, field := range schema {
		v, ok := inputs[name]
		if !ok || v == nil {
			if field.Required() {
				invalid[name] = "value required"
			}
			continue
		}
		if msg := checkType(field.Type, v); msg != "" {
			invalid[name] = msg
		}
	}
	return invalid
}

func checkType(typeName string, v any) string {
	switch typeName {
	case "string":
		if _, ok := v.(string); !ok {
			return fmt.Sprintf("expected string, got %T", v)
		}
	case "boolean":
		if _, ok := v.(bool); !ok {
			return fmt.Sprintf("expected boolean, got %T", v)
		}
	case "integer":
		if !isInteger(v) {
			return fmt.Sprintf("expected integer, got %v", v)
		}
	case "float", "number":
		if !isNumber(v) {
			return fmt.Sprintf("expected number, got %v", v)
		}
	}
	return ""
}

func isInteger(v any) bool {
	switch n := v.(type) {
	case int, int32, int64:
		return true
	case float64:
		return n == math.Trunc(n)
	case json.Number:
		_, err := n.Int64()
		return err == nil
	}
	return false
}

func isNumber(v any) bool {
	switch n := v.(type) {
	case int, int32, int64, float32, float64:
		return true
	case json.Number:
		_, err := n.Float64()
		return err == nil
	}
	return false
}
