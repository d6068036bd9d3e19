package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"dataflow-gateway/internal/engine"
	"dataflow-gateway/internal/queue"
	"dataflow-gateway/internal/store"
	"dataflow-gateway/internal/telemetry"
)

// QueueJob validates the request against the operation's inputs schema,
// records the job as queued and hands it to the engine intake.
func (b *Backend) QueueJob(ctx context.Context, req engine.JobRequest) (uuid.UUID, error) {
	op, err := b.resolveJobOperation(ctx, req)
	if err != nil {
		return uuid.Nil, err
	}
	if invalid := engine.ValidateInputs(op.InputsSchema, req.Inputs); len(invalid) > 0 {
		return uuid.Nil, &engine.InvalidInputError{Invalid: invalid}
	}

	// a job names either an operation or a manifest, never both
	params := store.CreateJobParams{OperationID: op.ID, Inputs: req.Inputs}
	if req.Manifest != nil {
		m := *req.Manifest
		m.OperationID = op.ID
		params.OperationID, params.Manifest = "", &m
	}
	job, err := b.registry.CreateJob(ctx, params)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create job: %w", err)
	}

	if err := b.intake.Enqueue(ctx, job.ID.String(), b.priority); err != nil {
		msg := fmt.Sprintf("enqueue: %v", err)
		if markErr := b.registry.MarkJobFailed(context.WithoutCancel(ctx), job.ID, msg); markErr != nil {
			b.log.Error("mark job failed", "job_id", job.ID, "error", markErr)
		}
		return uuid.Nil, fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}

	if depth, err := b.intake.ReadyDepth(ctx); err == nil {
		telemetry.IntakeDepthGauge.Set(float64(depth))
	}
	b.log.Debug("job queued", "job_id", job.ID, "operation_id", op.ID)
	return job.ID, nil
}

func (b *Backend) resolveJobOperation(ctx context.Context, req engine.JobRequest) (engine.Operation, error) {
	if req.Manifest == nil {
		op, err := b.registry.GetOperation(ctx, req.OperationID)
		return op, invalidOperation(req.OperationID, err)
	}
	if req.Manifest.OperationID != "" {
		op, err := b.registry.GetOperation(ctx, req.Manifest.OperationID)
		return op, invalidOperation(req.Manifest.OperationID, err)
	}
	op, err := b.operationForModule(ctx, req.Manifest.ModuleType)
	return op, invalidOperation(req.Manifest.ModuleType, err)
}

func (b *Backend) GetJob(ctx context.Context, id uuid.UUID) (engine.Job, error) {
	return b.registry.GetJob(ctx, id)
}

// RetrieveJobResult returns the outputs of a successful job.
func (b *Backend) RetrieveJobResult(ctx context.Context, id uuid.UUID) (engine.ValueMap, error) {
	job, err := b.registry.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	switch job.Status {
	case engine.StatusSuccess:
	case engine.StatusFailed:
		msg := ""
		if job.Error != nil {
			msg = *job.Error
		}
		return nil, &engine.JobFailedError{JobID: id, Message: msg}
	default:
		return nil, fmt.Errorf("job %s is %s: %w", id, job.Status, engine.ErrNotReady)
	}

	refs, err := b.registry.JobResults(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make(engine.ValueMap, len(refs))
	for field, valueID := range refs {
		v, err := b.registry.GetValue(ctx, valueID)
		if err != nil {
			return nil, fmt.Errorf("result %s: %w", field, err)
		}
		out[field] = v
	}
	return out, nil
}

func (b *Backend) QueuePosition(ctx context.Context, id uuid.UUID) (int64, error) {
	_, pos, err := b.intake.Position(ctx, id.String())
	if errors.Is(err, queue.ErrNotQueued) {
		return 0, fmt.Errorf("job %s in intake: %w", id, engine.ErrNotFound)
	}
	return pos, err
}
