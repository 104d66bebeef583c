package engine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opus67/skillctx/pkg/registry"
	"github.com/opus67/skillctx/pkg/skills"
)

func writeCorpus(t *testing.T, files map[string]string) *registry.Registry {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	reg, err := registry.New(registry.WithDirs(dir))
	require.NoError(t, err)
	_, err = reg.Load(context.Background())
	require.NoError(t, err)
	return reg
}

var twoTierCorpus = map[string]string{
	"a.md": "---\nid: a\ntier: 1\ntoken_cost: 100\nkeywords: [docker]\n---\n\nSkill a.\n",
	"b.md": "---\nid: b\ntier: 2\ntoken_cost: 50\nkeywords: [docker]\n---\n\nSkill b.\n",
}

func TestSelectTightBudgetKeepsTierOne(t *testing.T) {
	reg := writeCorpus(t, twoTierCorpus)
	eng, err := New(reg)
	require.NoError(t, err)

	out, err := eng.Select(context.Background(), &skills.RequestContext{
		Keywords:    []string{"docker"},
		TokenBudget: 120,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, out.Result.OrderedSkillIDs)
	assert.Equal(t, 100, out.Result.TotalCost)
	assert.Equal(t, skills.ExcludedBudget, out.Result.Excluded["b"])
	assert.Contains(t, out.Context, "Skill a.")
	assert.NotContains(t, out.Context, "Skill b.")
}

func TestSelectLargerBudgetTakesBoth(t *testing.T) {
	reg := writeCorpus(t, twoTierCorpus)
	eng, err := New(reg)
	require.NoError(t, err)

	out, err := eng.Select(context.Background(), &skills.RequestContext{
		Keywords:    []string{"docker"},
		TokenBudget: 200,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, out.Result.OrderedSkillIDs)
	assert.Equal(t, 150, out.Result.TotalCost)
}

func TestSelectUnmetDependency(t *testing.T) {
	reg := writeCorpus(t, map[string]string{
		"c.md": "---\nid: c\ntier: 1\ntoken_cost: 10\nkeywords: [farcaster]\nmcp: [neynar]\n---\n\nSkill c.\n",
	})
	eng, err := New(reg)
	require.NoError(t, err)

	out, err := eng.Select(context.Background(), &skills.RequestContext{
		Keywords:          []string{"farcaster"},
		TokenBudget:       1000,
		AvailableServices: []string{"context7"},
	})
	require.NoError(t, err)

	assert.Empty(t, out.Result.OrderedSkillIDs)
	assert.Equal(t, skills.ExcludedUnmetDependency, out.Result.Excluded["c"])
}

func TestSelectOverflowReturnsEmpty(t *testing.T) {
	reg := writeCorpus(t, map[string]string{
		"big.md": "---\nid: big\ntier: 1\ntoken_cost: 500\nkeywords: [docker]\n---\n\nBig.\n",
	})
	eng, err := New(reg)
	require.NoError(t, err)

	out, err := eng.Select(context.Background(), &skills.RequestContext{
		Keywords:    []string{"docker"},
		TokenBudget: 400,
	})
	require.NoError(t, err)
	assert.Empty(t, out.Result.OrderedSkillIDs)
	assert.Empty(t, out.Context)
	assert.Equal(t, skills.ExcludedBudget, out.Result.Excluded["big"])
}

func TestSelectZeroRelevanceRecorded(t *testing.T) {
	reg := writeCorpus(t, twoTierCorpus)
	eng, err := New(reg)
	require.NoError(t, err)

	out, err := eng.Select(context.Background(), &skills.RequestContext{
		Keywords:    []string{"kubernetes"},
		TokenBudget: 1000,
	})
	require.NoError(t, err)

	assert.Empty(t, out.Result.OrderedSkillIDs)
	assert.Equal(t, skills.ExcludedZeroRelevance, out.Result.Excluded["a"])
	assert.Equal(t, skills.ExcludedZeroRelevance, out.Result.Excluded["b"])
}

func TestSelectDeterministic(t *testing.T) {
	reg := writeCorpus(t, twoTierCorpus)

	// Two engines with disjoint caches must agree byte for byte.
	eng1, err := New(reg, WithCacheSize(0))
	require.NoError(t, err)
	eng2, err := New(reg)
	require.NoError(t, err)

	req := &skills.RequestContext{Keywords: []string{"docker"}, TokenBudget: 120}

	out1, err := eng1.Select(context.Background(), req)
	require.NoError(t, err)
	out2, err := eng2.Select(context.Background(), req)
	require.NoError(t, err)

	json1, err := json.Marshal(out1.Result)
	require.NoError(t, err)
	json2, err := json.Marshal(out2.Result)
	require.NoError(t, err)
	assert.Equal(t, string(json1), string(json2))
	assert.Equal(t, out1.Context, out2.Context)
}

func TestSelectCacheHitReturnsIndependentCopy(t *testing.T) {
	reg := writeCorpus(t, twoTierCorpus)
	eng, err := New(reg)
	require.NoError(t, err)

	req := &skills.RequestContext{Keywords: []string{"docker"}, TokenBudget: 200}

	first, err := eng.Select(context.Background(), req)
	require.NoError(t, err)
	// Mutating a returned result must not poison the cache.
	first.Result.OrderedSkillIDs[0] = "tampered"

	second, err := eng.Select(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, second.Result.OrderedSkillIDs)
}

func TestReloadInvalidatesCache(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"),
		[]byte("---\nid: a\ntier: 1\ntoken_cost: 100\nkeywords: [docker]\n---\n\nSkill a.\n"), 0o644))

	reg, err := registry.New(registry.WithDirs(dir))
	require.NoError(t, err)
	_, err = reg.Load(context.Background())
	require.NoError(t, err)

	eng, err := New(reg)
	require.NoError(t, err)

	req := &skills.RequestContext{Keywords: []string{"docker"}, TokenBudget: 200}
	first, err := eng.Select(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, first.Result.OrderedSkillIDs)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"),
		[]byte("---\nid: b\ntier: 1\ntoken_cost: 50\nkeywords: [docker]\n---\n\nSkill b.\n"), 0o644))
	_, err = reg.Load(context.Background())
	require.NoError(t, err)

	second, err := eng.Select(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, second.Result.OrderedSkillIDs)
	assert.NotEqual(t, first.Result.SnapshotVersion, second.Result.SnapshotVersion)
}

func TestSelectRejectsInvalidRequests(t *testing.T) {
	reg := writeCorpus(t, twoTierCorpus)
	eng, err := New(reg)
	require.NoError(t, err)

	_, err = eng.Select(context.Background(), nil)
	assert.Error(t, err)

	_, err = eng.Select(context.Background(), &skills.RequestContext{Keywords: []string{"docker"}})
	assert.Error(t, err)
}

func TestHardRelationSelectedTogether(t *testing.T) {
	reg := writeCorpus(t, map[string]string{
		"main.md": "---\nid: main\ntier: 1\ntoken_cost: 40\nkeywords: [deploy]\nrelated:\n  - id: helper\n    hard: true\n---\n\nMain.\n",
		"help.md": "---\nid: helper\ntier: 2\ntoken_cost: 30\nkeywords: [unrelated-term]\n---\n\nHelper.\n",
	})
	eng, err := New(reg)
	require.NoError(t, err)

	out, err := eng.Select(context.Background(), &skills.RequestContext{
		Keywords:    []string{"deploy"},
		TokenBudget: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "helper"}, out.Result.OrderedSkillIDs)
	assert.Equal(t, 70, out.Result.TotalCost)
}
