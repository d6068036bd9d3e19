package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"dataflow-gateway/internal/engine"
)

// Registry reads the engine's operation, job and value registries.
type Registry interface {
	GetOperation(ctx context.Context, id string) (engine.Operation, error)
	ListOperations(ctx context.Context) ([]engine.Operation, error)
	GetDataType(ctx context.Context, name string) (engine.DataTypeInfo, error)

	CreateJob(ctx context.Context, p CreateJobParams) (engine.Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (engine.Job, error)
	MarkJobFailed(ctx context.Context, id uuid.UUID, msg string) error
	JobResults(ctx context.Context, id uuid.UUID) (map[string]uuid.UUID, error)

	GetValue(ctx context.Context, id uuid.UUID) (engine.Value, error)
	ListValues(ctx context.Context) ([]engine.Value, error)
	ResolveAlias(ctx context.Context, alias string) (uuid.UUID, error)

	GetPipeline(ctx context.Context, name string) (engine.PipelineStructure, error)
	GetWorkflow(ctx context.Context, id uuid.UUID) (engine.WorkflowInfo, error)
	ListWorkflows(ctx context.Context) ([]engine.WorkflowInfo, error)

	RunMigrations(ctx context.Context) error
	Close()
}

// Seeder writes engine-side records. The engine owns these writes; the
// service only uses them for fixtures and tests.
type Seeder interface {
	PutDataType(ctx context.Context, dt engine.DataTypeInfo) error
	PutOperation(ctx context.Context, op engine.Operation) error
	PutValue(ctx context.Context, v engine.Value) error
	PutAlias(ctx context.Context, alias string, valueID uuid.UUID) error
	StartJob(ctx context.Context, id uuid.UUID) error
	CompleteJob(ctx context.Context, id uuid.UUID, results map[string]uuid.UUID) error
	PutPipeline(ctx context.Context, p engine.PipelineStructure) error
	PutWorkflow(ctx context.Context, w engine.WorkflowInfo) error
}

// Store is a registry that can also be seeded.
type Store interface {
	Registry
	Seeder
}

// CreateJobParams collects inputs required to insert a job.
type CreateJobParams struct {
	OperationID string
	Manifest    *engine.Manifest
	Inputs      map[string]any
}

// Open picks the implementation from the DSN scheme.
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgres(ctx, dsn)
	case strings.HasPrefix(dsn, "sqlite:"):
		return OpenSQLite(strings.TrimPrefix(strings.TrimPrefix(dsn, "sqlite:"), "//"))
	case strings.HasPrefix(dsn, "file:"):
		return OpenSQLite(dsn)
	}
	return nil, fmt.Errorf("unsupported registry dsn scheme: %q", dsn)
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, engine.ErrNotFound)
}
