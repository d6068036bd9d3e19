package engine

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"
)

var errProviderClosed = errors.New("engine provider closed")

// Factory constructs the engine handle.
type Factory func(ctx context.Context) (API, error)

// Provider hands out the process-wide engine handle. The handle is built on
// the first Get and reused for the lifetime of the Provider. Concurrent callers
// share one build; a failed build is retried by the next caller.
type Provider struct {
	mu      sync.Mutex
	factory Factory
	api     API
	closed  bool
	builds  singleflight.Group
}

// NewProvider wraps factory without calling it.
func NewProvider(factory Factory) *Provider {
	return &Provider{factory: factory}
}

// Static returns a Provider that always yields api.
func Static(api API) *Provider {
	return &Provider{api: api}
}

// Get returns the engine handle, constructing it if needed. A caller whose
// ctx ends while a build is in flight returns ctx.Err(); the build carries on
// for the remaining callers.
func (p *Provider) Get(ctx context.Context) (API, error) {
	if api, err := p.cached(); api != nil || err != nil {
		return api, err
	}
	// the handle outlives the request that triggered its construction
	build := context.WithoutCancel(ctx)
	ch := p.builds.DoChan("engine", func() (any, error) {
		return p.build(build)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(API), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Provider) cached() (API, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.closed:
		return nil, errProviderClosed
	case p.api != nil:
		return p.api, nil
	case p.factory == nil:
		return nil, errors.New("engine provider has no factory")
	}
	return nil, nil
}

func (p *Provider) build(ctx context.Context) (API, error) {
	if api, err := p.cached(); api != nil || err != nil {
		return api, err
	}
	api, err := p.factory(ctx)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		_ = api.Close()
		return nil, errProviderClosed
	}
	p.api = api
	return api, nil
}

// Close releases the handle if one was built. A build still in flight is
// closed as soon as it completes.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.api == nil {
		return nil
	}
	err := p.api.Close()
	p.api = nil
	return err
}
