// Package assembler turns a selection result into the final injectable
// context string. It is a pure formatting pass: the budget constraint is
// enforced upstream, so no document is ever truncated here.
package assembler

import (
	"strings"
	"text/template"

	"github.com/pkg/errors"

	"github.com/opus67/skillctx/pkg/registry"
	"github.com/opus67/skillctx/pkg/skills"
)

// Delimiter separates skill documents in the assembled context.
const Delimiter = "\n\n---\n\n"

var headerTmpl = template.Must(template.New("header").Parse(
	"<!-- skill: {{.ID}} (tier {{.Tier}}) -->\n\n"))

// Assemble concatenates the selected skills' content in result order, each
// prefixed with a one-line header naming the skill. Returns an error if the
// result references an id missing from the snapshot, which indicates the
// caller mixed a result with a different snapshot.
func Assemble(snap *registry.Snapshot, result *skills.SelectionResult) (string, error) {
	if result == nil || len(result.OrderedSkillIDs) == 0 {
		return "", nil
	}

	var sb strings.Builder
	for i, id := range result.OrderedSkillIDs {
		rec, ok := snap.Get(id)
		if !ok {
			return "", errors.Errorf("selected skill %q not in snapshot %s", id, snap.Version())
		}
		if i > 0 {
			sb.WriteString(Delimiter)
		}
		if err := headerTmpl.Execute(&sb, rec); err != nil {
			return "", errors.Wrap(err, "failed to render skill header")
		}
		sb.WriteString(strings.TrimRight(rec.Content, "\n"))
	}
	return sb.String(), nil
}
