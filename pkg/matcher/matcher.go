// Package matcher scores skill records against a request context. Scoring is
// a weighted count of exact, case-insensitive trigger matches: query keywords
// are the strongest signal, open file types secondary, and the active
// directory a weak tertiary boolean signal.
package matcher

import (
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/opus67/skillctx/pkg/registry"
	"github.com/opus67/skillctx/pkg/skills"
)

// Weights holds the per-signal scoring weights. The invariant
// Keyword > FileType >= Directory > 0 keeps explicit query intent dominant.
type Weights struct {
	Keyword   float64
	FileType  float64
	Directory float64
}

// DefaultWeights returns the stock weight policy.
func DefaultWeights() Weights {
	return Weights{Keyword: 3.0, FileType: 2.0, Directory: 1.0}
}

// Validate rejects weight configurations that break the signal ordering.
func (w Weights) Validate() error {
	if w.Directory <= 0 {
		return errors.New("directory weight must be positive")
	}
	if w.FileType < w.Directory {
		return errors.New("file type weight must be >= directory weight")
	}
	if w.Keyword <= w.FileType {
		return errors.New("keyword weight must be > file type weight")
	}
	return nil
}

// Activation is one activated skill with its relevance score.
type Activation struct {
	ID    string
	Tier  int
	Score float64
}

// Match scores every record in the snapshot against ctx and returns the
// activated skills ordered by score descending, then tier ascending, then id.
// Records with a zero score are not activated. Iteration is over the
// snapshot's sorted id list, so output never depends on map or load order.
func Match(snap *registry.Snapshot, ctx *skills.RequestContext, w Weights) []Activation {
	keywords := toSet(lowerAll(ctx.Keywords))
	extensions := toSet(normalizeExtensions(ctx.OpenFileExtensions))
	directories := normalizeActiveDirs(ctx.ActiveDirectories)

	var out []Activation
	for _, id := range snap.IDs() {
		rec, ok := snap.Get(id)
		if !ok {
			continue
		}
		score := Score(rec, keywords, extensions, directories, w)
		if score <= 0 {
			continue
		}
		out = append(out, Activation{ID: rec.ID, Tier: rec.Tier, Score: score})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Tier != out[j].Tier {
			return out[i].Tier < out[j].Tier
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Score computes the weighted trigger-match score of a single record. The
// signal sets must already be normalized (lowercased, cleaned).
func Score(rec *skills.Record, keywords, extensions map[string]bool, directories []string, w Weights) float64 {
	score := 0.0
	for _, kw := range rec.Triggers.Keywords {
		if keywords[kw] {
			score += w.Keyword
		}
	}
	for _, ft := range rec.Triggers.FileTypes {
		if extensions[ft] {
			score += w.FileType
		}
	}
	if matchesAnyDirectory(rec.Triggers.Directories, directories) {
		score += w.Directory
	}
	return score
}

// matchesAnyDirectory reports whether any trigger directory is a
// segment-aligned prefix or suffix of any active directory. Suffix matching
// covers corpus triggers like "/locales" against a workspace path such as
// "/home/dev/app/locales".
func matchesAnyDirectory(triggers, active []string) bool {
	for _, trig := range triggers {
		for _, dir := range active {
			if dir == trig ||
				strings.HasPrefix(dir, trig+"/") ||
				strings.HasSuffix(dir, trig) {
				return true
			}
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func normalizeExtensions(in []string) []string {
	out := make([]string, 0, len(in))
	for _, ext := range in {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.Contains(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

func normalizeActiveDirs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, dir := range in {
		dir = strings.ToLower(strings.TrimSpace(dir))
		if dir == "" {
			continue
		}
		out = append(out, path.Clean("/"+strings.ReplaceAll(dir, "\\", "/")))
	}
	return out
}

func toSet(in []string) map[string]bool {
	set := make(map[string]bool, len(in))
	for _, s := range in {
		set[s] = true
	}
	return set
}
