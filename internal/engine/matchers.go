package engine

import (
	"slices"
	"strings"
)

// OperationMatcher selects operations by id substrings.
type OperationMatcher struct {
	Filters         []string `json:"filters"`
	IncludeInternal bool     `json:"include_internal"`
}

// Match reports whether op passes every filter.
func (m OperationMatcher) Match(op Operation) bool {
	if op.Internal && !m.IncludeInternal {
		return false
	}
	for _, f := range m.Filters {
		if !strings.Contains(op.ID, f) {
			return false
		}
	}
	return true
}

// ValueMatcher selects values held by the engine.
type ValueMatcher struct {
	DataTypes     []string `json:"data_types"`
	MinSize       int64    `json:"min_size"`
	MaxSize       *int64   `json:"max_size"`
	AllowInternal bool     `json:"allow_internal"`
	HasAlias      bool     `json:"has_alias"`
	AliasMatchers []string `json:"alias_matchers"`
}

// Match reports whether v satisfies the matcher.
func (m ValueMatcher) Match(v Value) bool {
	if v.Internal && !m.AllowInternal {
		return false
	}
	if len(m.DataTypes) > 0 && !slices.Contains(m.DataTypes, v.DataType) {
		return false
	}
	if v.Size < m.MinSize {
		return false
	}
	if m.MaxSize != nil && v.Size > *m.MaxSize {
		return false
	}
	if m.HasAlias && len(v.Aliases) == 0 {
		return false
	}
	if len(m.AliasMatchers) > 0 && len(m.MatchingAliases(v)) == 0 {
		return false
	}
	return true
}

// MatchingAliases returns the aliases of v accepted by AliasMatchers; with no
// alias matchers every alias is accepted.
func (m ValueMatcher) MatchingAliases(v Value) []string {
	if len(m.AliasMatchers) == 0 {
		return v.Aliases
	}
	var out []string
	for _, alias := range v.Aliases {
		for _, f := range m.AliasMatchers {
			if strings.Contains(alias, f) {
				out = append(out, alias)
				break
			}
		}
	}
	return out
}

// WorkflowMatcher selects workflows by alias substrings.
type WorkflowMatcher struct {
	Filters []string `json:"filters"`
}

// Match reports whether any alias of w contains every filter.
func (m WorkflowMatcher) Match(w WorkflowInfo) bool {
	if len(m.Filters) == 0 {
		return true
	}
	return slices.ContainsFunc(w.Aliases, m.MatchAlias)
}

// MatchAlias reports whether alias contains every filter.
func (m WorkflowMatcher) MatchAlias(alias string) bool {
	for _, f := range m.Filters {
		if !strings.Contains(alias, f) {
			return false
		}
	}
	return true
}
