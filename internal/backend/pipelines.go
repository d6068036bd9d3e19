package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"dataflow-gateway/internal/engine"
)

func (b *Backend) RenderValue(ctx context.Context, req engine.RenderValueRequest) (engine.RenderResult, error) {
	return b.renderer.Render(ctx, req)
}

func (b *Backend) AssembleRenderPipeline(_ context.Context, dataType, targetFormat string, filters []string) (engine.Operation, error) {
	return b.renderer.Pipeline(dataType, targetFormat, filters)
}

func (b *Backend) GetPipelineStructure(ctx context.Context, name string) (engine.PipelineStructure, error) {
	return b.registry.GetPipeline(ctx, name)
}

func (b *Backend) matchingWorkflows(ctx context.Context, m engine.WorkflowMatcher) ([]engine.WorkflowInfo, error) {
	all, err := b.registry.ListWorkflows(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, w := range all {
		if m.Match(w) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (b *Backend) GetWorkflowIDs(ctx context.Context, m engine.WorkflowMatcher) (map[string]engine.WorkflowInfo, error) {
	workflows, err := b.matchingWorkflows(ctx, m)
	if err != nil {
		return nil, err
	}
	out := make(map[string]engine.WorkflowInfo, len(workflows))
	for _, w := range workflows {
		out[w.ID.String()] = w
	}
	return out, nil
}

// GetWorkflowAliases keys workflows by every alias that contains all filters.
func (b *Backend) GetWorkflowAliases(ctx context.Context, m engine.WorkflowMatcher) (map[string]engine.WorkflowInfo, error) {
	workflows, err := b.matchingWorkflows(ctx, m)
	if err != nil {
		return nil, err
	}
	out := map[string]engine.WorkflowInfo{}
	for _, w := range workflows {
		for _, alias := range w.Aliases {
			if m.MatchAlias(alias) {
				out[alias] = w
			}
		}
	}
	return out, nil
}

// GetWorkflowInfo accepts a workflow id or one of its aliases.
func (b *Backend) GetWorkflowInfo(ctx context.Context, ref string) (engine.WorkflowInfo, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return b.registry.GetWorkflow(ctx, id)
	}
	all, err := b.registry.ListWorkflows(ctx)
	if err != nil {
		return engine.WorkflowInfo{}, err
	}
	alias := strings.TrimPrefix(ref, "alias:")
	for _, w := range all {
		for _, a := range w.Aliases {
			if a == alias {
				return w, nil
			}
		}
	}
	return engine.WorkflowInfo{}, fmt.Errorf("workflow %q: %w", ref, engine.ErrNotFound)
}
