package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"dataflow-gateway/internal/engine"
)

// SubmitForm queues a job from HTML form fields. Form encoding omits
// unchecked checkboxes, so boolean inputs missing from fields are submitted
// as false. Values are converted to the types the schema declares where they
// parse; anything else is passed through as text for the engine to judge.
func (c *Controller) SubmitForm(ctx context.Context, operationID string, fields map[string]string) (engine.Job, error) {
	api, err := c.engines.Get(ctx)
	if err != nil {
		return engine.Job{}, err
	}
	op, err := api.GetOperation(ctx, operationID)
	if errors.Is(err, engine.ErrNotFound) {
		err = fmt.Errorf("operation %q: %w", operationID, engine.ErrInvalidOperation)
	}
	if err != nil {
		return engine.Job{}, c.submitFailed(operationID, err)
	}
	return c.Submit(ctx, SubmitRequest{
		OperationID: operationID,
		Inputs:      FormInputs(op.InputsSchema, fields),
	})
}

// FormInputs converts raw form fields into engine inputs for schema.
func FormInputs(schema map[string]engine.ValueSchema, fields map[string]string) map[string]any {
	inputs := make(map[string]any, len(fields))
	for name, raw := range fields {
		field, declared := schema[name]
		if !declared {
			inputs[name] = raw
			continue
		}
		if raw == "" && field.Type != "string" {
			// an empty text box means "not supplied"
			continue
		}
		inputs[name] = coerce(field.Type, raw)
	}
	for name, field := range schema {
		if _, ok := inputs[name]; !ok && field.Type == "boolean" {
			if _, sent := fields[name]; !sent {
				inputs[name] = false
			}
		}
	}
	return inputs
}

func coerce(typeName, raw string) any {
	switch typeName {
	case "boolean":
		switch strings.ToLower(raw) {
		case "on", "true", "1", "yes":
			return true
		case "off", "false", "0", "no":
			return false
		}
	case "integer":
		if _, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return json.Number(raw)
		}
	case "float", "number":
		if _, err := strconv.ParseFloat(raw, 64); err == nil {
			return json.Number(raw)
		}
	}
	return raw
}
