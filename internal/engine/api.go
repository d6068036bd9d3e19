// Package engine defines the surface through which the service talks to the
// data-and-workflow engine: job intake and monitoring, the operation and
// value registries, rendering, pipelines and workflows.
package engine

import (
	"context"

	"github.com/google/uuid"
)

// Jobs queues and observes job executions.
type Jobs interface {
	QueueJob(ctx context.Context, req JobRequest) (uuid.UUID, error)
	GetJob(ctx context.Context, id uuid.UUID) (Job, error)
	RetrieveJobResult(ctx context.Context, id uuid.UUID) (ValueMap, error)
	// QueuePosition is the zero-based place of a queued job in the intake.
	// Jobs no longer waiting report ErrNotFound.
	QueuePosition(ctx context.Context, id uuid.UUID) (int64, error)
}

// Operations exposes the operation and data type registries.
type Operations interface {
	GetOperation(ctx context.Context, id string) (Operation, error)
	GetOperationInfo(ctx context.Context, id string) (OperationInfo, error)
	GetOperationsInfo(ctx context.Context, m OperationMatcher) (map[string]OperationInfo, error)
	GetOperationIDs(ctx context.Context, m OperationMatcher) ([]string, error)
	CreateManifest(ctx context.Context, moduleOrOperation string, config map[string]any) (Manifest, error)
	GetDataType(ctx context.Context, name string) (DataTypeInfo, error)
}

// Values exposes the value store and its aliases.
type Values interface {
	GetValueIDs(ctx context.Context) ([]uuid.UUID, error)
	GetValue(ctx context.Context, ref string) (Value, error)
	ListValues(ctx context.Context, m ValueMatcher) (map[string]Value, error)
	GetValuesInfo(ctx context.Context, m ValueMatcher) (map[string]ValueInfo, error)
	ListAliases(ctx context.Context, m ValueMatcher) (map[string]Value, error)
	GetAliasNames(ctx context.Context, m ValueMatcher) ([]string, error)
	GetAliasesInfo(ctx context.Context, m ValueMatcher) (map[string]ValueInfo, error)
	SerializedData(ctx context.Context, ref string) (SerializedData, error)
	ValidateInputs(ctx context.Context, inputs map[string]any, schema map[string]ValueSchema) (map[string]string, error)
}

// Renderer turns values into presentable formats.
type Renderer interface {
	RenderValue(ctx context.Context, req RenderValueRequest) (RenderResult, error)
	AssembleRenderPipeline(ctx context.Context, dataType, targetFormat string, filters []string) (Operation, error)
}

// Pipelines exposes pipeline structure lookups.
type Pipelines interface {
	GetPipelineStructure(ctx context.Context, name string) (PipelineStructure, error)
}

// Workflows exposes stored workflows.
type Workflows interface {
	GetWorkflowIDs(ctx context.Context, m WorkflowMatcher) (map[string]WorkflowInfo, error)
	GetWorkflowAliases(ctx context.Context, m WorkflowMatcher) (map[string]WorkflowInfo, error)
	GetWorkflowInfo(ctx context.Context, ref string) (WorkflowInfo, error)
}

// API is the complete engine surface. Implementations must be safe for
// concurrent use.
type API interface {
	Jobs
	Operations
	Values
	Renderer
	Pipelines
	Workflows
	Close() error
}
