// Package skills defines the data model for the skill selection engine:
// skill records loaded from a markdown corpus, the per-request context the
// assistant runtime provides, and the selection result handed to the LLM
// invocation layer. Records are immutable once loaded; everything request
// scoped is created and discarded within a single selection call.
package skills

// Relation is a directed "see also" edge to another skill. Hard relations
// force inclusion of the target whenever the referencing skill is selected;
// soft relations are advisory and never force anything.
type Relation struct {
	ID   string `json:"id" yaml:"id"`
	Hard bool   `json:"hard,omitempty" yaml:"hard,omitempty"`
}

// Triggers holds the discrete activation conditions of a skill. Matching is
// case-insensitive and exact-token based; there is no fuzzy or substring
// matching anywhere in the engine.
type Triggers struct {
	Keywords    []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	FileTypes   []string `json:"file_types,omitempty" yaml:"file_types,omitempty"`
	Directories []string `json:"directories,omitempty" yaml:"directories,omitempty"`
}

// Record is a single skill document with its selection metadata. The engine
// never inspects Content beyond its length; it is an opaque blob owned by
// the corpus authors.
type Record struct {
	ID        string     `json:"id"`
	Tier      int        `json:"tier"`
	TokenCost int        `json:"token_cost"`
	Triggers  Triggers   `json:"triggers"`
	Related   []Relation `json:"related,omitempty"`
	// Requires lists the MCP connection names the skill depends on. A skill
	// with an unreachable requirement is excluded regardless of relevance.
	Requires []string `json:"requires,omitempty"`
	Content  string   `json:"-"`
	// Path is the source file the record was loaded from, kept for
	// diagnostics only.
	Path string `json:"path,omitempty"`
}

// RequestContext carries the working signals for one selection request.
type RequestContext struct {
	Keywords           []string `json:"keywords"`
	OpenFileExtensions []string `json:"open_file_extensions,omitempty"`
	ActiveDirectories  []string `json:"active_directories,omitempty"`
	TokenBudget        int      `json:"token_budget"`
	AvailableServices  []string `json:"available_services,omitempty"`
}

// ExclusionReason explains why a skill did not make it into the selection.
// Exclusions are routine outcomes, not errors.
type ExclusionReason string

const (
	// ExcludedBudget means the skill activated but did not fit the
	// remaining token budget.
	ExcludedBudget ExclusionReason = "budget"
	// ExcludedUnmetDependency means one or more of the skill's required
	// external services is unreachable.
	ExcludedUnmetDependency ExclusionReason = "unmet-dependency"
	// ExcludedZeroRelevance means no trigger matched the request context.
	ExcludedZeroRelevance ExclusionReason = "zero-relevance"
)

// SelectionResult is the outcome of one selection request. OrderedSkillIDs
// is highest priority first (tier ascending, then relevance descending) and
// TotalCost never exceeds the request's token budget.
type SelectionResult struct {
	RequestID       string                     `json:"request_id"`
	SnapshotVersion string                     `json:"snapshot_version"`
	OrderedSkillIDs []string                   `json:"ordered_skill_ids"`
	TotalCost       int                        `json:"total_cost"`
	Excluded        map[string]ExclusionReason `json:"excluded,omitempty"`
}

// Clone returns a deep copy so cached results can be handed out without
// aliasing the cached value.
func (r *SelectionResult) Clone() *SelectionResult {
	if r == nil {
		return nil
	}
	out := &SelectionResult{
		RequestID:       r.RequestID,
		SnapshotVersion: r.SnapshotVersion,
		TotalCost:       r.TotalCost,
	}
	out.OrderedSkillIDs = append([]string(nil), r.OrderedSkillIDs...)
	if r.Excluded != nil {
		out.Excluded = make(map[string]ExclusionReason, len(r.Excluded))
		for id, reason := range r.Excluded {
			out.Excluded[id] = reason
		}
	}
	return out
}
