// Package backend implements engine.API as a client of an engine deployment:
// registries in SQL, job intake through Redis, payloads in object storage.
// Jobs are executed by the engine's own runners, never here.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"dataflow-gateway/internal/blob"
	"dataflow-gateway/internal/engine"
	"dataflow-gateway/internal/render"
	"dataflow-gateway/internal/store"
)

// Intake is the producer side of the engine's job queue.
type Intake interface {
	Enqueue(ctx context.Context, jobID string, priority string) error
	ReadyDepth(ctx context.Context) (int64, error)
	Position(ctx context.Context, jobID string) (string, int64, error)
}

// Options wires a Backend.
type Options struct {
	Registry store.Registry
	Intake   Intake
	Blobs    blob.Store
	Renderer *render.Renderer
	// Priority is the intake queue new jobs are pushed to.
	Priority string
	Logger   *slog.Logger
	// Closers run on Close after the registry is released.
	Closers []func() error
}

// Backend talks to the engine's registries and intake.
type Backend struct {
	registry store.Registry
	intake   Intake
	blobs    blob.Store
	renderer *render.Renderer
	priority string
	log      *slog.Logger
	closers  []func() error
}

var _ engine.API = (*Backend)(nil)

func New(opts Options) (*Backend, error) {
	if opts.Registry == nil {
		return nil, errors.New("backend: registry is required")
	}
	if opts.Intake == nil {
		return nil, errors.New("backend: intake is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = render.New(opts.Blobs, 0, 0)
	}
	return &Backend{
		registry: opts.Registry,
		intake:   opts.Intake,
		blobs:    opts.Blobs,
		renderer: renderer,
		priority: opts.Priority,
		log:      log,
		closers:  opts.Closers,
	}, nil
}

// Close releases the registry and every registered closer.
func (b *Backend) Close() error {
	b.registry.Close()
	var errs []error
	for _, c := range b.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// invalidOperation turns a registry miss into ErrInvalidOperation; other
// errors pass through.
func invalidOperation(id string, err error) error {
	if errors.Is(err, engine.ErrNotFound) {
		return fmt.Errorf("operation %q: %w", id, engine.ErrInvalidOperation)
	}
	return err
}
