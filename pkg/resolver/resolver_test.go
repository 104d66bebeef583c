package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opus67/skillctx/pkg/matcher"
	"github.com/opus67/skillctx/pkg/registry"
	"github.com/opus67/skillctx/pkg/skills"
)

func activation(id string, tier int, score float64) matcher.Activation {
	return matcher.Activation{ID: id, Tier: tier, Score: score}
}

func TestHardRelationPulledIn(t *testing.T) {
	snap := registry.NewSnapshot(
		&skills.Record{ID: "a", Tier: 1, TokenCost: 10, Related: []skills.Relation{
			{ID: "b", Hard: true},
			{ID: "c", Hard: false},
		}},
		&skills.Record{ID: "b", Tier: 2, TokenCost: 10},
		&skills.Record{ID: "c", Tier: 2, TokenCost: 10},
	)

	res := Resolve(snap, []matcher.Activation{activation("a", 1, 6)}, nil)

	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "a", res.Candidates[0].ID)
	assert.Equal(t, "b", res.Candidates[1].ID)
	// b inherits the puller's score.
	assert.Equal(t, 6.0, res.Candidates[1].Score)
}

func TestHardRelationTransitive(t *testing.T) {
	snap := registry.NewSnapshot(
		&skills.Record{ID: "a", Tier: 1, TokenCost: 10, Related: []skills.Relation{{ID: "b", Hard: true}}},
		&skills.Record{ID: "b", Tier: 1, TokenCost: 10, Related: []skills.Relation{{ID: "c", Hard: true}}},
		&skills.Record{ID: "c", Tier: 1, TokenCost: 10},
	)

	res := Resolve(snap, []matcher.Activation{activation("a", 1, 3)}, nil)
	require.Len(t, res.Candidates, 3)
}

func TestCycleSafe(t *testing.T) {
	snap := registry.NewSnapshot(
		&skills.Record{ID: "a", Tier: 1, TokenCost: 10, Related: []skills.Relation{{ID: "b", Hard: true}}},
		&skills.Record{ID: "b", Tier: 1, TokenCost: 10, Related: []skills.Relation{{ID: "a", Hard: true}}},
	)

	res := Resolve(snap, []matcher.Activation{activation("a", 1, 3)}, nil)
	require.Len(t, res.Candidates, 2)
}

func TestSelfReferenceIgnored(t *testing.T) {
	snap := registry.NewSnapshot(
		&skills.Record{ID: "a", Tier: 1, TokenCost: 10, Related: []skills.Relation{{ID: "a", Hard: true}}},
	)
	res := Resolve(snap, []matcher.Activation{activation("a", 1, 3)}, nil)
	require.Len(t, res.Candidates, 1)
}

func TestInheritedScoreIsMaxOfOwnAndPuller(t *testing.T) {
	snap := registry.NewSnapshot(
		&skills.Record{ID: "a", Tier: 1, TokenCost: 10, Related: []skills.Relation{{ID: "b", Hard: true}}},
		&skills.Record{ID: "b", Tier: 2, TokenCost: 10},
	)

	// b also activated directly with a higher score than its puller.
	res := Resolve(snap, []matcher.Activation{
		activation("a", 1, 3),
		activation("b", 2, 9),
	}, nil)

	require.Len(t, res.Candidates, 2)
	assert.Equal(t, 9.0, res.Candidates[1].Score)

	// And the other way around: the puller's score wins when higher.
	res = Resolve(snap, []matcher.Activation{
		activation("a", 1, 9),
		activation("b", 2, 3),
	}, nil)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, 9.0, res.Candidates[1].Score)
}

func TestUnmetDependencyExcluded(t *testing.T) {
	snap := registry.NewSnapshot(
		&skills.Record{ID: "a", Tier: 1, TokenCost: 10, Requires: []string{"neynar"}},
		&skills.Record{ID: "b", Tier: 1, TokenCost: 10, Requires: []string{"context7"}},
	)

	res := Resolve(snap, []matcher.Activation{
		activation("a", 1, 9),
		activation("b", 1, 3),
	}, []string{"context7"})

	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "b", res.Candidates[0].ID)
	assert.Equal(t, skills.ExcludedUnmetDependency, res.Excluded["a"])
}

func TestUnmetDependencyCascadesOverHardEdges(t *testing.T) {
	snap := registry.NewSnapshot(
		&skills.Record{ID: "a", Tier: 1, TokenCost: 10, Related: []skills.Relation{{ID: "b", Hard: true}}},
		&skills.Record{ID: "b", Tier: 2, TokenCost: 10, Requires: []string{"offline-svc"}},
		&skills.Record{ID: "c", Tier: 1, TokenCost: 10, Related: []skills.Relation{{ID: "b", Hard: false}}},
	)

	res := Resolve(snap, []matcher.Activation{
		activation("a", 1, 3),
		activation("c", 1, 3),
	}, nil)

	// a loses its mandatory companion; c only referenced b softly and stays.
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "c", res.Candidates[0].ID)
	assert.Equal(t, skills.ExcludedUnmetDependency, res.Excluded["a"])
	assert.Equal(t, skills.ExcludedUnmetDependency, res.Excluded["b"])
}

func TestUnknownRelatedIDIgnored(t *testing.T) {
	snap := registry.NewSnapshot(
		&skills.Record{ID: "a", Tier: 1, TokenCost: 10, Related: []skills.Relation{{ID: "ghost", Hard: true}}},
	)
	res := Resolve(snap, []matcher.Activation{activation("a", 1, 3)}, nil)
	require.Len(t, res.Candidates, 1)
	assert.Empty(t, res.Excluded)
}

func TestSoftRelationNeverPulls(t *testing.T) {
	snap := registry.NewSnapshot(
		&skills.Record{ID: "a", Tier: 1, TokenCost: 10, Related: []skills.Relation{{ID: "b", Hard: false}}},
		&skills.Record{ID: "b", Tier: 2, TokenCost: 10},
	)
	res := Resolve(snap, []matcher.Activation{activation("a", 1, 3)}, nil)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "a", res.Candidates[0].ID)
}
