package assembler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opus67/skillctx/pkg/registry"
	"github.com/opus67/skillctx/pkg/skills"
)

func TestAssembleOrderAndDelimiter(t *testing.T) {
	snap := registry.NewSnapshot(
		&skills.Record{ID: "a", Tier: 1, TokenCost: 10, Content: "Alpha content.\n"},
		&skills.Record{ID: "b", Tier: 2, TokenCost: 10, Content: "Beta content.\n"},
	)
	result := &skills.SelectionResult{OrderedSkillIDs: []string{"a", "b"}}

	out, err := Assemble(snap, result)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "<!-- skill: a (tier 1) -->\n\nAlpha content."))
	assert.Contains(t, out, Delimiter)
	assert.Contains(t, out, "<!-- skill: b (tier 2) -->\n\nBeta content.")
	assert.Less(t, strings.Index(out, "Alpha"), strings.Index(out, "Beta"))
}

func TestAssembleEmptySelection(t *testing.T) {
	snap := registry.NewSnapshot()
	out, err := Assemble(snap, &skills.SelectionResult{})
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = Assemble(snap, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestAssembleNeverTruncates(t *testing.T) {
	content := strings.Repeat("x", 10000)
	snap := registry.NewSnapshot(
		&skills.Record{ID: "big", Tier: 1, TokenCost: 10, Content: content},
	)
	out, err := Assemble(snap, &skills.SelectionResult{OrderedSkillIDs: []string{"big"}})
	require.NoError(t, err)
	assert.Contains(t, out, content)
}

func TestAssembleUnknownIDFails(t *testing.T) {
	snap := registry.NewSnapshot()
	_, err := Assemble(snap, &skills.SelectionResult{OrderedSkillIDs: []string{"ghost"}})
	assert.Error(t, err)
}

func TestAssembleDeterministic(t *testing.T) {
	snap := registry.NewSnapshot(
		&skills.Record{ID: "a", Tier: 1, TokenCost: 10, Content: "one"},
		&skills.Record{ID: "b", Tier: 1, TokenCost: 10, Content: "two"},
	)
	result := &skills.SelectionResult{OrderedSkillIDs: []string{"b", "a"}}

	first, err := Assemble(snap, result)
	require.NoError(t, err)
	second, err := Assemble(snap, result)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
