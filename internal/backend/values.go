package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"dataflow-gateway/internal/engine"
)

func (b *Backend) GetValueIDs(ctx context.Context) ([]uuid.UUID, error) {
	values, err := b.registry.ListValues(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		ids = append(ids, v.ID)
	}
	return ids, nil
}

// GetValue accepts a value id or an alias, optionally prefixed with "alias:".
func (b *Backend) GetValue(ctx context.Context, ref string) (engine.Value, error) {
	id, err := b.resolveValueRef(ctx, ref)
	if err != nil {
		return engine.Value{}, err
	}
	return b.registry.GetValue(ctx, id)
}

func (b *Backend) resolveValueRef(ctx context.Context, ref string) (uuid.UUID, error) {
	if alias, ok := strings.CutPrefix(ref, "alias:"); ok {
		return b.registry.ResolveAlias(ctx, alias)
	}
	if id, err := uuid.Parse(strings.TrimPrefix(ref, "value:")); err == nil {
		return id, nil
	}
	return b.registry.ResolveAlias(ctx, ref)
}

func (b *Backend) matchingValues(ctx context.Context, m engine.ValueMatcher) ([]engine.Value, error) {
	values, err := b.registry.ListValues(ctx)
	if err != nil {
		return nil, err
	}
	out := values[:0]
	for _, v := range values {
		if m.Match(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (b *Backend) ListValues(ctx context.Context, m engine.ValueMatcher) (map[string]engine.Value, error) {
	values, err := b.matchingValues(ctx, m)
	if err != nil {
		return nil, err
	}
	out := make(map[string]engine.Value, len(values))
	for _, v := range values {
		out[v.ID.String()] = v
	}
	return out, nil
}

func (b *Backend) GetValuesInfo(ctx context.Context, m engine.ValueMatcher) (map[string]engine.ValueInfo, error) {
	values, err := b.matchingValues(ctx, m)
	if err != nil {
		return nil, err
	}
	out := make(map[string]engine.ValueInfo, len(values))
	for _, v := range values {
		out[v.ID.String()] = v.Info()
	}
	return out, nil
}

// ListAliases keys matching values by each of their accepted aliases.
func (b *Backend) ListAliases(ctx context.Context, m engine.ValueMatcher) (map[string]engine.Value, error) {
	m.HasAlias = true
	values, err := b.matchingValues(ctx, m)
	if err != nil {
		return nil, err
	}
	out := map[string]engine.Value{}
	for _, v := range values {
		for _, alias := range m.MatchingAliases(v) {
			out[alias] = v
		}
	}
	return out, nil
}

func (b *Backend) GetAliasNames(ctx context.Context, m engine.ValueMatcher) ([]string, error) {
	aliases, err := b.ListAliases(ctx, m)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(aliases))
	for alias := range aliases {
		names = append(names, alias)
	}
	sort.Strings(names)
	return names, nil
}

func (b *Backend) GetAliasesInfo(ctx context.Context, m engine.ValueMatcher) (map[string]engine.ValueInfo, error) {
	aliases, err := b.ListAliases(ctx, m)
	if err != nil {
		return nil, err
	}
	out := make(map[string]engine.ValueInfo, len(aliases))
	for alias, v := range aliases {
		out[alias] = v.Info()
	}
	return out, nil
}

// SerializedData returns the stored payload of a value. Values without an
// object key carry their data inline and are returned as JSON.
func (b *Backend) SerializedData(ctx context.Context, ref string) (engine.SerializedData, error) {
	v, err := b.GetValue(ctx, ref)
	if err != nil {
		return engine.SerializedData{}, err
	}
	out := engine.SerializedData{ValueID: v.ID, DataType: v.DataType}
	if v.ObjectKey == "" {
		raw, err := json.Marshal(v.Data)
		if err != nil {
			return engine.SerializedData{}, fmt.Errorf("encode inline data: %w", err)
		}
		out.Codec, out.Data = "json", raw
	} else {
		if b.blobs == nil {
			return engine.SerializedData{}, errors.New("no blob store configured")
		}
		raw, err := b.blobs.Get(ctx, v.ObjectKey)
		if err != nil {
			return engine.SerializedData{}, fmt.Errorf("value %s payload: %w", v.ID, err)
		}
		out.Codec, out.Data = "raw", raw
	}
	out.Size = int64(len(out.Data))
	return out, nil
}

func (b *Backend) ValidateInputs(_ context.Context, inputs map[string]any, schema map[string]engine.ValueSchema) (map[string]string, error) {
	return engine.ValidateInputs(schema, inputs), nil
}
