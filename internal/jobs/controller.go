// Package jobs implements job submission and monitoring on top of the engine.
// Job state is never cached: every call re-reads the engine.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"dataflow-gateway/internal/engine"
	"dataflow-gateway/internal/telemetry"
)

// Controller drives the job lifecycle through the shared engine handle.
type Controller struct {
	engines *engine.Provider
	log     *slog.Logger
}

func NewController(engines *engine.Provider, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{engines: engines, log: log}
}

// Report is the observed state of a job. Results is set only for successful
// jobs and Error only for failed ones.
type Report struct {
	Job     engine.Job
	Results engine.ValueMap
	Error   *string
}

// Submit queues a job. A non-empty OperationConfig goes through manifest
// construction; otherwise the bare operation id is queued. Engine errors are
// logged and returned unchanged.
func (c *Controller) Submit(ctx context.Context, req SubmitRequest) (engine.Job, error) {
	api, err := c.engines.Get(ctx)
	if err != nil {
		return engine.Job{}, err
	}

	jobReq := engine.JobRequest{OperationID: req.OperationID, Inputs: req.Inputs}
	kind := "operation"
	if len(req.OperationConfig) > 0 {
		kind = "manifest"
		manifest, err := api.CreateManifest(ctx, req.OperationID, req.OperationConfig)
		if err != nil {
			return engine.Job{}, c.submitFailed(req.OperationID, err)
		}
		jobReq = engine.JobRequest{Manifest: &manifest, Inputs: req.Inputs}
	}

	id, err := api.QueueJob(ctx, jobReq)
	if err != nil {
		return engine.Job{}, c.submitFailed(req.OperationID, err)
	}
	job, err := api.GetJob(ctx, id)
	if err != nil {
		c.log.Error("read submitted job", "job_id", id, "operation_id", req.OperationID, "error", err)
		return engine.Job{}, err
	}
	telemetry.JobsSubmitted.WithLabelValues(kind).Inc()
	c.log.Info("job submitted", "job_id", id, "operation_id", req.OperationID, "kind", kind)
	return job, nil
}

func (c *Controller) submitFailed(operationID string, err error) error {
	telemetry.SubmitFailures.WithLabelValues(failureReason(err)).Inc()
	c.log.Error("submit job", "operation_id", operationID, "error", err)
	return err
}

func failureReason(err error) string {
	var invalid *engine.InvalidInputError
	switch {
	case errors.Is(err, engine.ErrInvalidOperation):
		return "invalid_operation"
	case errors.As(err, &invalid):
		return "invalid_inputs"
	}
	return "engine"
}

// Monitor re-reads the job. Results are fetched once per call, and only after
// the engine reports success.
func (c *Controller) Monitor(ctx context.Context, id uuid.UUID) (Report, error) {
	api, err := c.engines.Get(ctx)
	if err != nil {
		return Report{}, err
	}
	job, err := api.GetJob(ctx, id)
	if err != nil {
		c.log.Warn("monitor job", "job_id", id, "error", err)
		return Report{}, err
	}
	telemetry.MonitorPolls.WithLabelValues(string(job.Status)).Inc()

	report := Report{Job: job}
	switch job.Status {
	case engine.StatusSuccess:
		results, err := api.RetrieveJobResult(ctx, id)
		if err != nil {
			c.log.Error("retrieve job result", "job_id", id, "error", err)
			return Report{}, err
		}
		telemetry.ResultFetches.Inc()
		report.Results = results
	case engine.StatusFailed:
		report.Error = job.Error
		if report.Error == nil {
			msg := "job failed"
			report.Error = &msg
		}
	}
	return report, nil
}

// ParseJobID parses a job id. Malformed ids can never name a job, so they are
// reported as not found.
func ParseJobID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("job %q: %w", raw, engine.ErrNotFound)
	}
	return id, nil
}
