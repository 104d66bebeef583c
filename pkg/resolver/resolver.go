// Package resolver expands an activated skill set with mandatory related
// skills and filters out skills whose external services are unreachable.
// The related-skill graph may contain cycles and self references, so every
// traversal runs over a visited set.
package resolver

import (
	"sort"
	"strings"

	"github.com/opus67/skillctx/pkg/matcher"
	"github.com/opus67/skillctx/pkg/registry"
	"github.com/opus67/skillctx/pkg/skills"
)

// Candidate is a skill that survived dependency resolution and is eligible
// for budget selection.
type Candidate struct {
	ID    string
	Tier  int
	Cost  int
	Score float64
}

// Result is the dependency-closed, filtered candidate set.
type Result struct {
	Candidates []Candidate
	// Excluded records skills removed for unreachable external services,
	// including hard dependents removed transitively.
	Excluded map[string]skills.ExclusionReason
}

// Resolve pulls in hard-related skills transitively and removes every
// candidate whose required external services are not all available. A pulled
// skill inherits the score of its strongest puller unless its own direct
// activation score is higher. Removing a skill for an unmet dependency also
// removes skills that hard-depend on it; soft dependents are untouched.
func Resolve(snap *registry.Snapshot, activations []matcher.Activation, available []string) *Result {
	scores := make(map[string]float64, len(activations))
	for _, act := range activations {
		scores[act.ID] = act.Score
	}

	// Expand hard relations. Scores only ever increase, so re-enqueueing a
	// visited node on a score improvement terminates even with cycles.
	queue := make([]string, 0, len(activations))
	for _, act := range activations {
		queue = append(queue, act.ID)
	}
	visited := make(map[string]bool, len(scores))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		rec, ok := snap.Get(id)
		if !ok {
			continue
		}
		visited[id] = true
		for _, rel := range rec.Related {
			if !rel.Hard || rel.ID == id {
				continue
			}
			if _, exists := snap.Get(rel.ID); !exists {
				continue
			}
			prev, known := scores[rel.ID]
			if !known || scores[id] > prev {
				scores[rel.ID] = maxFloat(prev, scores[id])
				queue = append(queue, rel.ID)
			} else if !visited[rel.ID] {
				queue = append(queue, rel.ID)
			}
		}
	}

	availableSet := make(map[string]bool, len(available))
	for _, svc := range available {
		availableSet[strings.ToLower(strings.TrimSpace(svc))] = true
	}

	excluded := map[string]skills.ExclusionReason{}
	for id := range scores {
		rec, ok := snap.Get(id)
		if !ok {
			continue
		}
		if !requirementsMet(rec, availableSet) {
			excluded[id] = skills.ExcludedUnmetDependency
		}
	}

	// Cascade over hard edges: a skill whose mandatory companion is gone is
	// unusable too. Monotone fixpoint, so cycles are harmless.
	for changed := true; changed; {
		changed = false
		for id := range scores {
			if _, gone := excluded[id]; gone {
				continue
			}
			rec, ok := snap.Get(id)
			if !ok {
				continue
			}
			for _, rel := range rec.Related {
				if !rel.Hard {
					continue
				}
				if _, gone := excluded[rel.ID]; gone {
					excluded[id] = skills.ExcludedUnmetDependency
					changed = true
					break
				}
			}
		}
	}

	result := &Result{Excluded: excluded}
	for id, score := range scores {
		if _, gone := excluded[id]; gone {
			continue
		}
		rec, ok := snap.Get(id)
		if !ok {
			continue
		}
		result.Candidates = append(result.Candidates, Candidate{
			ID:    rec.ID,
			Tier:  rec.Tier,
			Cost:  rec.TokenCost,
			Score: score,
		})
	}
	sort.Slice(result.Candidates, func(i, j int) bool {
		return result.Candidates[i].ID < result.Candidates[j].ID
	})
	return result
}

func requirementsMet(rec *skills.Record, available map[string]bool) bool {
	for _, svc := range rec.Requires {
		if !available[svc] {
			return false
		}
	}
	return true
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
