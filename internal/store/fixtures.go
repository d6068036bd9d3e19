package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"dataflow-gateway/internal/engine"
)

// Fixed ids for the demo registry so links stay stable across restarts.
var (
	DemoGreetingID = uuid.MustParse("7b1f4c1e-0d7a-4d8e-9a57-5c3c2f0e1a01")
	DemoTableID    = uuid.MustParse("7b1f4c1e-0d7a-4d8e-9a57-5c3c2f0e1a02")
	DemoWorkflowID = uuid.MustParse("7b1f4c1e-0d7a-4d8e-9a57-5c3c2f0e1a03")
)

func boolSchema(desc string, optional bool) engine.ValueSchema {
	return engine.ValueSchema{Type: "boolean", Optional: optional, Doc: engine.Doc{Description: desc}}
}

// DemoOperations is a small operation registry for development and tests.
func DemoOperations() []engine.Operation {
	return []engine.Operation{
		{
			ID:         "echo",
			ModuleType: "echo",
			Doc:        engine.Doc{Description: "Returns its input unchanged."},
			InputsSchema: map[string]engine.ValueSchema{
				"text": {Type: "string", Doc: engine.Doc{Description: "The text to echo."}},
			},
			OutputsSchema: map[string]engine.ValueSchema{
				"text": {Type: "string", Doc: engine.Doc{Description: "The echoed text."}},
			},
		},
		{
			ID:         "logic.and",
			ModuleType: "logic.and",
			Doc:        engine.Doc{Description: "Returns true if both inputs are true."},
			Tags:       []string{"logic"},
			InputsSchema: map[string]engine.ValueSchema{
				"a": boolSchema("A boolean describing this input state.", false),
				"b": boolSchema("A boolean describing this input state.", false),
			},
			OutputsSchema: map[string]engine.ValueSchema{"y": boolSchema("The result of the AND operation.", false)},
		},
		{
			ID:         "logic.not",
			ModuleType: "logic.not",
			Doc:        engine.Doc{Description: "Negates the input."},
			Tags:       []string{"logic"},
			InputsSchema: map[string]engine.ValueSchema{
				"a": boolSchema("The input boolean.", false),
			},
			OutputsSchema: map[string]engine.ValueSchema{"y": boolSchema("The negated input.", false)},
		},
		{
			ID:           "table.filter.select_columns",
			ModuleType:   "table.filter",
			ModuleConfig: map[string]any{"filter_name": "select_columns"},
			Doc:          engine.Doc{Description: "Keep only the listed columns of a table."},
			Tags:         []string{"table", "filter"},
			InputsSchema: map[string]engine.ValueSchema{
				"value":   {Type: "table", Doc: engine.Doc{Description: "The table."}},
				"columns": {Type: "list", Optional: true, Doc: engine.Doc{Description: "Columns to keep."}},
			},
			OutputsSchema: map[string]engine.ValueSchema{"value": {Type: "table", Doc: engine.Doc{Description: "The filtered table."}}},
		},
		{
			ID:         "render.table.as.html",
			ModuleType: "render.value",
			Internal:   true,
			Doc:        engine.Doc{Description: "Render a table as html."},
			InputsSchema: map[string]engine.ValueSchema{
				"value": {Type: "table"},
			},
			OutputsSchema: map[string]engine.ValueSchema{"render_value_result": {Type: "render_value_result"}},
		},
	}
}

// SeedDemo fills s with the demo registry. It is safe to call repeatedly.
func SeedDemo(ctx context.Context, s Store) error {
	for _, dt := range []engine.DataTypeInfo{
		{Name: "string", IsScalar: true, Doc: engine.Doc{Description: "A text value."}},
		{Name: "boolean", IsScalar: true, Doc: engine.Doc{Description: "A boolean value."}},
		{Name: "integer", IsScalar: true, Doc: engine.Doc{Description: "An integer value."}},
		{Name: "float", IsScalar: true, Doc: engine.Doc{Description: "A floating point value."}},
		{Name: "table", Doc: engine.Doc{Description: "Tabular data."}},
		{Name: "dict", Doc: engine.Doc{Description: "A mapping."}},
		{Name: "image", Doc: engine.Doc{Description: "An image."}},
	} {
		if err := s.PutDataType(ctx, dt); err != nil {
			return fmt.Errorf("seed data type %s: %w", dt.Name, err)
		}
	}
	for _, op := range DemoOperations() {
		if err := s.PutOperation(ctx, op); err != nil {
			return fmt.Errorf("seed operation %s: %w", op.ID, err)
		}
	}

	if _, err := s.GetValue(ctx, DemoGreetingID); err == nil {
		return nil
	}
	values := []engine.Value{
		{ID: DemoGreetingID, DataType: "string", Data: "hello world", Size: 11, Hash: "demo-greeting"},
		{ID: DemoTableID, DataType: "table", Size: 3, Hash: "demo-table", Data: []any{
			map[string]any{"name": "ada", "born": 1815},
			map[string]any{"name": "grace", "born": 1906},
			map[string]any{"name": "alan", "born": 1912},
		}},
	}
	for _, v := range values {
		if err := s.PutValue(ctx, v); err != nil {
			return fmt.Errorf("seed value %s: %w", v.ID, err)
		}
	}
	for alias, id := range map[string]uuid.UUID{"demo.greeting": DemoGreetingID, "demo.people": DemoTableID} {
		if err := s.PutAlias(ctx, alias, id); err != nil {
			return fmt.Errorf("seed alias %s: %w", alias, err)
		}
	}

	pipeline := engine.PipelineStructure{
		Name: "logic.nand",
		Doc:  engine.Doc{Description: "Returns false only if both inputs are true."},
		Steps: []engine.PipelineStep{
			{StepID: "and", ModuleType: "logic.and", Stage: 1},
			{StepID: "not", ModuleType: "logic.not", Stage: 2, InputLinks: map[string]string{"a": "and.y"}},
		},
		InputsSchema: map[string]engine.ValueSchema{
			"and.a": boolSchema("First input.", false),
			"and.b": boolSchema("Second input.", false),
		},
		OutputsSchema: map[string]engine.ValueSchema{"not.y": boolSchema("The NAND result.", false)},
	}
	if err := s.PutPipeline(ctx, pipeline); err != nil {
		return fmt.Errorf("seed pipeline: %w", err)
	}
	return s.PutWorkflow(ctx, engine.WorkflowInfo{
		ID:       DemoWorkflowID,
		Aliases:  []string{"demo.nand_workflow"},
		Doc:      engine.Doc{Description: "A workflow around the nand pipeline."},
		Pipeline: pipeline.Name,
	})
}
