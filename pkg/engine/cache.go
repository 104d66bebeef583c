package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/opus67/skillctx/pkg/matcher"
	"github.com/opus67/skillctx/pkg/skills"
)

// cache memoizes selection outputs. Entries are keyed by a hash that
// includes the snapshot version, and the whole cache is purged the first
// time a new snapshot version is observed, so a registry reload invalidates
// everything at once with no per-entry bookkeeping.
type cache struct {
	mu      sync.Mutex
	version string
	entries *lru.Cache[string, cacheEntry]
}

func (c *cache) get(version, key string) (cacheEntry, bool) {
	c.syncVersion(version)
	return c.entries.Get(key)
}

func (c *cache) put(version, key string, entry cacheEntry) {
	c.syncVersion(version)
	c.entries.Add(key, entry)
}

func (c *cache) syncVersion(version string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.version != version {
		c.entries.Purge()
		c.version = version
	}
}

// requestKey canonicalizes a request into a stable signature. Signal order
// never affects scoring, so every set-valued field is sorted after the same
// normalization the matcher applies.
func requestKey(version string, req *skills.RequestContext, w matcher.Weights) string {
	var sb strings.Builder
	sb.WriteString(version)
	sb.WriteByte('\n')
	writeSorted(&sb, "k", req.Keywords)
	writeSorted(&sb, "f", req.OpenFileExtensions)
	writeSorted(&sb, "d", req.ActiveDirectories)
	writeSorted(&sb, "s", req.AvailableServices)
	fmt.Fprintf(&sb, "b:%d\nw:%g,%g,%g\n", req.TokenBudget, w.Keyword, w.FileType, w.Directory)

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

func writeSorted(sb *strings.Builder, prefix string, values []string) {
	normalized := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			normalized = append(normalized, v)
		}
	}
	sort.Strings(normalized)
	sb.WriteString(prefix)
	sb.WriteByte(':')
	sb.WriteString(strings.Join(normalized, "\x1f"))
	sb.WriteByte('\n')
}
