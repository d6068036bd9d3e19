package backend

import (
	"context"
	"fmt"
	"maps"
	"sort"

	"dataflow-gateway/internal/engine"
)

func (b *Backend) GetOperation(ctx context.Context, id string) (engine.Operation, error) {
	return b.registry.GetOperation(ctx, id)
}

func (b *Backend) GetOperationInfo(ctx context.Context, id string) (engine.OperationInfo, error) {
	op, err := b.registry.GetOperation(ctx, id)
	if err != nil {
		return engine.OperationInfo{}, err
	}
	return engine.NewOperationInfo(op), nil
}

func (b *Backend) matchingOperations(ctx context.Context, m engine.OperationMatcher) ([]engine.Operation, error) {
	ops, err := b.registry.ListOperations(ctx)
	if err != nil {
		return nil, err
	}
	out := ops[:0]
	for _, op := range ops {
		if m.Match(op) {
			out = append(out, op)
		}
	}
	return out, nil
}

func (b *Backend) GetOperationsInfo(ctx context.Context, m engine.OperationMatcher) (map[string]engine.OperationInfo, error) {
	ops, err := b.matchingOperations(ctx, m)
	if err != nil {
		return nil, err
	}
	out := make(map[string]engine.OperationInfo, len(ops))
	for _, op := range ops {
		out[op.ID] = engine.NewOperationInfo(op)
	}
	return out, nil
}

func (b *Backend) GetOperationIDs(ctx context.Context, m engine.OperationMatcher) ([]string, error) {
	ops, err := b.matchingOperations(ctx, m)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(ops))
	for _, op := range ops {
		ids = append(ids, op.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

// operationForModule finds the first operation (by id) wrapping moduleType.
func (b *Backend) operationForModule(ctx context.Context, moduleType string) (engine.Operation, error) {
	ops, err := b.registry.ListOperations(ctx)
	if err != nil {
		return engine.Operation{}, err
	}
	for _, op := range ops {
		if op.ModuleType == moduleType {
			return op, nil
		}
	}
	return engine.Operation{}, fmt.Errorf("module %q: %w", moduleType, engine.ErrNotFound)
}

// CreateManifest resolves an operation id, or failing that a module type, and
// overlays config on the operation's module config.
func (b *Backend) CreateManifest(ctx context.Context, moduleOrOperation string, config map[string]any) (engine.Manifest, error) {
	op, err := b.registry.GetOperation(ctx, moduleOrOperation)
	if err != nil {
		op, err = b.operationForModule(ctx, moduleOrOperation)
	}
	if err != nil {
		return engine.Manifest{}, invalidOperation(moduleOrOperation, err)
	}
	merged := maps.Clone(op.ModuleConfig)
	if merged == nil {
		merged = map[string]any{}
	}
	maps.Copy(merged, config)
	return engine.Manifest{
		ModuleType:   op.ModuleType,
		ModuleConfig: merged,
		OperationID:  op.ID,
	}, nil
}

func (b *Backend) GetDataType(ctx context.Context, name string) (engine.DataTypeInfo, error) {
	return b.registry.GetDataType(ctx, name)
}
