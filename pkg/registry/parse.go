package registry

import (
	"bytes"
	"path"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
	"gopkg.in/yaml.v3"

	"github.com/opus67/skillctx/pkg/skills"
)

// metadata is the typed form of a skill file's YAML frontmatter.
type metadata struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Tier        int            `yaml:"tier"`
	TokenCost   int            `yaml:"token_cost"`
	Keywords    []string       `yaml:"keywords"`
	FileTypes   []string       `yaml:"file_types"`
	Directories []string       `yaml:"directories"`
	MCP         []string       `yaml:"mcp"`
	Related     []relatedEntry `yaml:"related"`
}

// relatedEntry accepts either a bare skill id (soft relation) or a mapping
// with an explicit hard flag.
type relatedEntry struct {
	ID   string
	Hard bool
}

func (r *relatedEntry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&r.ID)
	}
	var aux struct {
		ID   string `yaml:"id"`
		Hard bool   `yaml:"hard"`
	}
	if err := value.Decode(&aux); err != nil {
		return err
	}
	r.ID = aux.ID
	r.Hard = aux.Hard
	return nil
}

// parseRecord parses one skill file into a Record. YAML frontmatter is the
// primary metadata format; files without frontmatter fall back to the legacy
// blockquote header format the original corpus uses.
func parseRecord(filePath string, content []byte, est CostEstimator) (*skills.Record, error) {
	m, err := parseFrontmatter(content)
	if err != nil {
		return nil, err
	}
	if m == nil {
		var ok bool
		m, ok = parseLegacy(content)
		if !ok {
			return nil, errors.New("missing skill metadata (no frontmatter or legacy header)")
		}
	}

	id := m.ID
	if id == "" {
		id = m.Name
	}
	if id == "" {
		return nil, errors.New("skill id is required")
	}
	if m.Tier <= 0 {
		return nil, errors.Errorf("skill %q: tier must be a positive integer", id)
	}

	body := extractBody(string(content))

	cost := m.TokenCost
	if cost <= 0 {
		if est == nil {
			return nil, errors.Errorf("skill %q: token_cost must be a positive integer", id)
		}
		cost, err = est.EstimateTokens(body)
		if err != nil {
			return nil, errors.Wrapf(err, "skill %q: failed to estimate token cost", id)
		}
		if cost <= 0 {
			cost = 1
		}
	}

	related := make([]skills.Relation, 0, len(m.Related))
	for _, entry := range m.Related {
		if entry.ID == "" || entry.ID == id {
			continue
		}
		related = append(related, skills.Relation{ID: entry.ID, Hard: entry.Hard})
	}

	return &skills.Record{
		ID:        id,
		Tier:      m.Tier,
		TokenCost: cost,
		Triggers: skills.Triggers{
			Keywords:    normalizeKeywords(m.Keywords),
			FileTypes:   normalizeFileTypes(m.FileTypes),
			Directories: normalizeDirectories(m.Directories),
		},
		Related:  related,
		Requires: normalizeKeywords(m.MCP),
		Content:  body,
		Path:     filePath,
	}, nil
}

// parseFrontmatter returns nil metadata (not an error) when the file has no
// frontmatter block at all.
func parseFrontmatter(content []byte) (*metadata, error) {
	if !bytes.HasPrefix(content, []byte("---")) {
		return nil, nil
	}

	md := goldmark.New(goldmark.WithExtensions(meta.Meta))
	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return nil, errors.Wrap(err, "failed to parse markdown")
	}

	raw := meta.Get(pctx)
	if raw == nil {
		return nil, nil
	}

	// Round-trip the loosely typed frontmatter map through YAML to decode it
	// into the closed metadata struct.
	encoded, err := yaml.Marshal(raw)
	if err != nil {
		return nil, errors.Wrap(err, "failed to re-encode frontmatter")
	}
	var m metadata
	if err := yaml.Unmarshal(encoded, &m); err != nil {
		return nil, errors.Wrap(err, "invalid frontmatter")
	}
	return &m, nil
}

// extractBody strips the YAML frontmatter block, returning the document body.
func extractBody(content string) string {
	if !strings.HasPrefix(content, "---") {
		return content
	}
	lines := strings.Split(content, "\n")
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return strings.TrimLeft(strings.Join(lines[i+1:], "\n"), "\n")
		}
	}
	return content
}

func normalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, kw := range in {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}

// normalizeFileTypes lowercases entries and gives bare extensions a leading
// dot ("go" -> ".go"). Entries that already name a file ("i18n.config.ts")
// are kept verbatim.
func normalizeFileTypes(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, ft := range in {
		ft = strings.ToLower(strings.Trim(strings.TrimSpace(ft), "`"))
		if ft == "" {
			continue
		}
		if !strings.Contains(ft, ".") {
			ft = "." + ft
		}
		if seen[ft] {
			continue
		}
		seen[ft] = true
		out = append(out, ft)
	}
	return out
}

// normalizeDirectories cleans and lowercases directory prefixes, always with
// a leading slash and forward slashes.
func normalizeDirectories(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, dir := range in {
		dir = strings.ToLower(strings.Trim(strings.TrimSpace(dir), "`"))
		if dir == "" {
			continue
		}
		dir = path.Clean("/" + strings.ReplaceAll(dir, "\\", "/"))
		if dir == "/" || seen[dir] {
			continue
		}
		seen[dir] = true
		out = append(out, dir)
	}
	return out
}
