package registry

import (
	"regexp"
	"strconv"
	"strings"
)

// The original corpus carries its metadata as a blockquote header:
//
//	> **ID:** `i18n-expert`
//	> **Tier:** 3
//	> **Token Cost:** 5000
//	> **MCP Connections:** context7, firecrawl
//
// and trigger lists as bullets under a "When to Use" section:
//
//	- **Keywords:** i18n, translation, locale
//	- **File Types:** `.json` (locale files), `i18n.ts`
//	- **Directories:** `/locales`, `/i18n`
//
// parseLegacy recovers metadata from that format so the engine can load the
// corpus unmodified.

var (
	legacyFieldRe  = regexp.MustCompile(`(?i)^>\s*\*\*([a-z ]+):\*\*\s*(.*)$`)
	legacyBulletRe = regexp.MustCompile(`(?i)^[-*]\s*\*\*([a-z ]+):\*\*\s*(.*)$`)
	parenNoteRe    = regexp.MustCompile(`\([^)]*\)`)
)

func parseLegacy(content []byte) (*metadata, bool) {
	m := &metadata{}
	found := false

	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)

		if match := legacyFieldRe.FindStringSubmatch(line); match != nil {
			key := strings.ToLower(strings.TrimSpace(match[1]))
			value := strings.TrimSpace(match[2])
			switch key {
			case "id":
				m.ID = strings.Trim(value, "`")
				found = m.ID != ""
			case "tier":
				m.Tier = parseLegacyInt(value)
			case "token cost":
				m.TokenCost = parseLegacyInt(value)
			case "mcp connections", "mcp":
				m.MCP = splitLegacyList(value)
			}
			continue
		}

		if match := legacyBulletRe.FindStringSubmatch(line); match != nil {
			key := strings.ToLower(strings.TrimSpace(match[1]))
			value := strings.TrimSpace(match[2])
			switch key {
			case "keywords":
				m.Keywords = splitLegacyList(value)
			case "file types":
				m.FileTypes = splitLegacyList(value)
			case "directories":
				m.Directories = splitLegacyList(value)
			case "related skills", "related":
				// The legacy format cannot express hardness; related
				// skills are always soft.
				for _, id := range splitLegacyList(value) {
					m.Related = append(m.Related, relatedEntry{ID: id})
				}
			}
		}
	}

	if !found {
		return nil, false
	}
	return m, true
}

// parseLegacyInt tolerates thousands separators ("5,000").
func parseLegacyInt(s string) int {
	s = strings.ReplaceAll(strings.Trim(s, "`"), ",", "")
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// splitLegacyList splits a comma-separated list, dropping backticks and
// parenthetical notes like "(locale files)".
func splitLegacyList(s string) []string {
	s = parenNoteRe.ReplaceAllString(s, "")
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Trim(strings.TrimSpace(part), "`")
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
