package engine

import (
	"github.com/google/uuid"
)

// Doc holds a short description plus optional long-form documentation.
type Doc struct {
	Description string `json:"description"`
	Doc         string `json:"doc,omitempty"`
}

// ValueSchema describes one input or output field of an operation.
type ValueSchema struct {
	Type       string         `json:"type"`
	TypeConfig map[string]any `json:"type_config,omitempty"`
	Doc        Doc            `json:"doc"`
	Optional   bool           `json:"optional"`
	Default    any            `json:"default,omitempty"`
}

// Required reports whether a value has to be supplied for this field.
func (s ValueSchema) Required() bool {
	return !s.Optional && s.Default == nil
}

// Operation is a named, schema-described unit of computation.
type Operation struct {
	ID            string                 `json:"operation_id"`
	ModuleType    string                 `json:"module_type"`
	ModuleConfig  map[string]any         `json:"module_config,omitempty"`
	Doc           Doc                    `json:"doc"`
	Tags          []string               `json:"tags,omitempty"`
	Internal      bool                   `json:"is_internal"`
	InputsSchema  map[string]ValueSchema `json:"inputs_schema"`
	OutputsSchema map[string]ValueSchema `json:"outputs_schema"`
}

// OperationInfo is the descriptor returned by the operation queries.
type OperationInfo struct {
	Operation
	InputTypes  map[string]string `json:"input_types"`
	OutputTypes map[string]string `json:"output_types"`
}

// NewOperationInfo derives the info descriptor for op.
func NewOperationInfo(op Operation) OperationInfo {
	info := OperationInfo{
		Operation:   op,
		InputTypes:  make(map[string]string, len(op.InputsSchema)),
		OutputTypes: make(map[string]string, len(op.OutputsSchema)),
	}
	for name, schema := range op.InputsSchema {
		info.InputTypes[name] = schema.Type
	}
	for name, schema := range op.OutputsSchema {
		info.OutputTypes[name] = schema.Type
	}
	return info
}

// DataTypeInfo carries the characteristics of a registered data type.
type DataTypeInfo struct {
	Name     string `json:"type_name"`
	IsScalar bool   `json:"is_scalar"`
	Internal bool   `json:"is_internal"`
	Doc      Doc    `json:"doc"`
}

// Value is a materialized piece of data held by the engine.
type Value struct {
	ID         uuid.UUID      `json:"value_id"`
	DataType   string         `json:"data_type"`
	Status     string         `json:"value_status"`
	Size       int64          `json:"value_size"`
	Hash       string         `json:"value_hash"`
	Internal   bool           `json:"is_internal"`
	Aliases    []string       `json:"aliases,omitempty"`
	Data       any            `json:"data,omitempty"`
	ObjectKey  string         `json:"-"`
	Properties map[string]any `json:"properties,omitempty"`
	Created    Timestamp      `json:"created"`
}

// ValueInfo is the richer descriptor returned by the *_info queries.
type ValueInfo struct {
	ValueID    uuid.UUID      `json:"value_id"`
	DataType   string         `json:"data_type"`
	Status     string         `json:"value_status"`
	Size       int64          `json:"value_size"`
	Hash       string         `json:"value_hash"`
	Aliases    []string       `json:"aliases"`
	Properties map[string]any `json:"properties"`
	Serialized bool           `json:"is_serialized"`
	Created    Timestamp      `json:"created"`
}

// Info derives the info descriptor for v.
func (v Value) Info() ValueInfo {
	aliases := v.Aliases
	if aliases == nil {
		aliases = []string{}
	}
	props := v.Properties
	if props == nil {
		props = map[string]any{}
	}
	return ValueInfo{
		ValueID:    v.ID,
		DataType:   v.DataType,
		Status:     v.Status,
		Size:       v.Size,
		Hash:       v.Hash,
		Aliases:    aliases,
		Properties: props,
		Serialized: v.ObjectKey != "",
		Created:    v.Created,
	}
}

// ValueMap maps output field names to their materialized values.
type ValueMap map[string]Value

// SerializedData is the raw payload of a value as stored by the engine.
type SerializedData struct {
	ValueID  uuid.UUID `json:"value_id"`
	DataType string    `json:"data_type"`
	Codec    string    `json:"codec"`
	Size     int64     `json:"size"`
	Data     []byte    `json:"data"`
}

// RenderValueRequest parameterizes RenderValue.
type RenderValueRequest struct {
	Value         Value
	TargetFormats []string
	Filters       []string
	RenderConfig  map[string]any
}

// RenderResult is a rendered representation of a value.
type RenderResult struct {
	ValueID      uuid.UUID      `json:"value_id"`
	DataType     string         `json:"data_type"`
	TargetFormat string         `json:"target_format"`
	Rendered     string         `json:"rendered"`
	RenderConfig map[string]any `json:"render_config,omitempty"`
	Metadata     map[string]any `json:"render_metadata,omitempty"`
}

// PipelineStep is one module invocation inside a pipeline.
type PipelineStep struct {
	StepID       string            `json:"step_id"`
	ModuleType   string            `json:"module_type"`
	ModuleConfig map[string]any    `json:"module_config,omitempty"`
	InputLinks   map[string]string `json:"input_links,omitempty"`
	Stage        int               `json:"stage"`
}

// PipelineStructure describes the steps and external fields of a pipeline.
type PipelineStructure struct {
	Name          string                 `json:"pipeline_name"`
	Doc           Doc                    `json:"doc"`
	Steps         []PipelineStep         `json:"steps"`
	InputsSchema  map[string]ValueSchema `json:"pipeline_inputs_schema"`
	OutputsSchema map[string]ValueSchema `json:"pipeline_outputs_schema"`
}

// WorkflowInfo describes a stored workflow.
type WorkflowInfo struct {
	ID       uuid.UUID            `json:"workflow_id"`
	Aliases  []string             `json:"aliases"`
	Doc      Doc                  `json:"doc"`
	Pipeline string               `json:"pipeline,omitempty"`
	Inputs   map[string]uuid.UUID `json:"current_inputs,omitempty"`
	Outputs  map[string]uuid.UUID `json:"current_outputs,omitempty"`
	Created  Timestamp            `json:"created"`
}
