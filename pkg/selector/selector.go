// Package selector chooses the subset of candidate skills that maximizes
// aggregate relevance without exceeding the token budget. Tier is the
// primary ranking key: selection runs tier by tier (tier 1 first), solving a
// 0/1 knapsack within each tier over the budget left by earlier tiers.
// Candidate counts are small (tens) and token costs are bounded positive
// integers, so the pseudo-polynomial DP is cheap.
package selector

import (
	"math/bits"
	"sort"

	"github.com/opus67/skillctx/pkg/resolver"
	"github.com/opus67/skillctx/pkg/skills"
)

// maxTierCandidates bounds the knapsack to 64 items per tier so a chosen
// subset fits in a bitmask. A tier beyond that keeps its strongest 64.
const maxTierCandidates = 64

// Selection is the selector's output before the engine attaches request
// metadata: ordered ids (tier ascending, score descending, id ascending),
// their total cost, and the budget exclusions.
type Selection struct {
	OrderedIDs []string
	TotalCost  int
	Excluded   map[string]skills.ExclusionReason
}

// Select picks skills tier by tier under the budget. Within a tier, knapsack
// ties are broken by preferring higher total score, then lower total cost,
// then the lexicographically smallest id set. If the single top-ranked
// candidate cannot fit the entire budget on its own, the whole selection is
// empty: a truncated skill document is worse than none.
func Select(candidates []resolver.Candidate, budget int) *Selection {
	sel := &Selection{Excluded: map[string]skills.ExclusionReason{}}
	if len(candidates) == 0 {
		return sel
	}

	ranked := append([]resolver.Candidate(nil), candidates...)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Tier != ranked[j].Tier {
			return ranked[i].Tier < ranked[j].Tier
		}
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ID < ranked[j].ID
	})

	if budget <= 0 || ranked[0].Cost > budget {
		for _, c := range ranked {
			sel.Excluded[c.ID] = skills.ExcludedBudget
		}
		return sel
	}

	tiers := groupByTier(ranked)
	remaining := budget
	var chosen []resolver.Candidate

	for _, tier := range tiers {
		picked := knapsack(tier, remaining)
		for _, c := range picked {
			remaining -= c.Cost
			sel.TotalCost += c.Cost
		}
		chosen = append(chosen, picked...)

		pickedSet := make(map[string]bool, len(picked))
		for _, c := range picked {
			pickedSet[c.ID] = true
		}
		for _, c := range tier {
			if !pickedSet[c.ID] {
				sel.Excluded[c.ID] = skills.ExcludedBudget
			}
		}
	}

	sort.Slice(chosen, func(i, j int) bool {
		if chosen[i].Tier != chosen[j].Tier {
			return chosen[i].Tier < chosen[j].Tier
		}
		if chosen[i].Score != chosen[j].Score {
			return chosen[i].Score > chosen[j].Score
		}
		return chosen[i].ID < chosen[j].ID
	})
	for _, c := range chosen {
		sel.OrderedIDs = append(sel.OrderedIDs, c.ID)
	}
	return sel
}

// groupByTier splits the ranked candidates into per-tier groups, ascending.
// Input is already sorted with tier as the primary key.
func groupByTier(ranked []resolver.Candidate) [][]resolver.Candidate {
	var tiers [][]resolver.Candidate
	for i := 0; i < len(ranked); {
		j := i
		for j < len(ranked) && ranked[j].Tier == ranked[i].Tier {
			j++
		}
		tiers = append(tiers, ranked[i:j])
		i = j
	}
	return tiers
}

// dpState is one reachable knapsack weight class: the best subset (by score,
// then cost, then lexicographic id set) among subsets of that total cost.
type dpState struct {
	score float64
	cost  int
	mask  uint64
	ok    bool
}

// knapsack maximizes total score within the remaining budget for one tier.
// Items are indexed in ascending id order so bitmask comparison yields the
// lexicographic id-set tie-break in O(1).
func knapsack(tier []resolver.Candidate, budget int) []resolver.Candidate {
	if budget <= 0 {
		return nil
	}

	items := append([]resolver.Candidate(nil), tier...)
	if len(items) > maxTierCandidates {
		// tier is ranked score-desc already; keep the strongest.
		items = items[:maxTierCandidates]
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	width := 0
	for _, it := range items {
		width += it.Cost
	}
	if width > budget {
		width = budget
	}

	best := make([]dpState, width+1)
	best[0].ok = true

	for idx, it := range items {
		if it.Cost > width {
			continue
		}
		for w := width; w >= it.Cost; w-- {
			base := best[w-it.Cost]
			if !base.ok {
				continue
			}
			next := dpState{
				score: base.score + it.Score,
				cost:  base.cost + it.Cost,
				mask:  base.mask | 1<<uint(idx),
				ok:    true,
			}
			if betterState(next, best[w]) {
				best[w] = next
			}
		}
	}

	final := best[0]
	for w := 1; w <= width; w++ {
		if best[w].ok && betterState(best[w], final) {
			final = best[w]
		}
	}

	var picked []resolver.Candidate
	for idx := range items {
		if final.mask&(1<<uint(idx)) != 0 {
			picked = append(picked, items[idx])
		}
	}
	return picked
}

// betterState orders subsets by score descending, total cost ascending, then
// lexicographically smallest id set. With items in ascending id order, the
// sorted-id-list comparison reduces to mask arithmetic: both sets share all
// members below the lowest differing bit, so the set holding that bit comes
// first unless the other set has nothing beyond it (strict-prefix case).
func betterState(a, b dpState) bool {
	if !b.ok {
		return a.ok
	}
	if !a.ok {
		return false
	}
	if a.score != b.score {
		return a.score > b.score
	}
	if a.cost != b.cost {
		return a.cost < b.cost
	}
	diff := a.mask ^ b.mask
	if diff == 0 {
		return false
	}
	low := uint(bits.TrailingZeros64(diff))
	if a.mask&(1<<low) != 0 {
		return b.mask>>(low+1) != 0
	}
	return a.mask>>(low+1) == 0
}
