// Package registry loads skill markdown files into an immutable in-memory
// snapshot. Reloads build a complete new snapshot before publishing it with
// an atomic pointer swap, so concurrent readers always observe either the
// old or the new corpus, never a mix.
package registry

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/opus67/skillctx/pkg/logger"
	"github.com/opus67/skillctx/pkg/skills"
)

// Snapshot is an immutable view of the loaded corpus. All lookups on a
// snapshot are safe for concurrent use without locking.
type Snapshot struct {
	version string
	records map[string]*skills.Record
	ids     []string
}

// Version returns the unique identifier of this snapshot, regenerated on
// every load. Cache keys incorporate it so a reload invalidates everything.
func (s *Snapshot) Version() string { return s.version }

// Get returns the record with the given id.
func (s *Snapshot) Get(id string) (*skills.Record, bool) {
	rec, ok := s.records[id]
	return rec, ok
}

// IDs returns all record ids in lexicographic order. The returned slice is
// shared and must not be mutated.
func (s *Snapshot) IDs() []string { return s.ids }

// Len returns the number of records in the snapshot.
func (s *Snapshot) Len() int { return len(s.records) }

func emptySnapshot() *Snapshot {
	return &Snapshot{
		version: uuid.NewString(),
		records: map[string]*skills.Record{},
	}
}

// NewSnapshot builds a snapshot directly from records, for corpora that are
// constructed programmatically rather than loaded from disk. Duplicate ids
// keep the first record.
func NewSnapshot(records ...*skills.Record) *Snapshot {
	byID := make(map[string]*skills.Record, len(records))
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		if rec == nil || rec.ID == "" {
			continue
		}
		if _, dup := byID[rec.ID]; dup {
			continue
		}
		byID[rec.ID] = rec
		ids = append(ids, rec.ID)
	}
	sort.Strings(ids)
	return &Snapshot{
		version: uuid.NewString(),
		records: byID,
		ids:     ids,
	}
}

// LoadReport summarizes one corpus load. Skipped files and duplicate ids are
// warnings, never fatal: one bad file must not prevent the rest of the
// corpus from loading.
type LoadReport struct {
	Loaded   int
	Skipped  map[string]error
	Warnings *multierror.Error
}

// Registry owns the current snapshot and knows how to rebuild it from disk.
type Registry struct {
	dirs      []string
	estimator CostEstimator
	snap      atomic.Pointer[Snapshot]
}

// Option configures a Registry.
type Option func(*Registry) error

// WithDirs sets the directories scanned for skill markdown files.
func WithDirs(dirs ...string) Option {
	return func(r *Registry) error {
		if len(dirs) == 0 {
			return errors.New("at least one skill directory must be specified")
		}
		r.dirs = dirs
		return nil
	}
}

// WithDefaultDirs scans the repo-local ./skills directory and the user-global
// ~/.skillctx/skills directory, in that precedence order.
func WithDefaultDirs() Option {
	return func(r *Registry) error {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "failed to get user home directory")
		}
		r.dirs = []string{
			"./skills",
			filepath.Join(homeDir, ".skillctx", "skills"),
		}
		return nil
	}
}

// WithCostEstimator supplies a token-cost estimator used for records whose
// metadata omits token_cost. Without one, such records are rejected.
func WithCostEstimator(e CostEstimator) Option {
	return func(r *Registry) error {
		r.estimator = e
		return nil
	}
}

// New creates a Registry. The snapshot is empty until the first Load.
func New(opts ...Option) (*Registry, error) {
	r := &Registry{}
	if len(opts) == 0 {
		opts = []Option{WithDefaultDirs()}
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if len(r.dirs) == 0 {
		if err := WithDefaultDirs()(r); err != nil {
			return nil, err
		}
	}
	r.snap.Store(emptySnapshot())
	return r, nil
}

// Snapshot returns the current snapshot. O(1) and safe to call from any
// number of goroutines while a Load is in progress.
func (r *Registry) Snapshot() *Snapshot {
	return r.snap.Load()
}

// Load re-parses the corpus and atomically publishes a new snapshot. Files
// that fail to parse are skipped with a warning; a duplicate id keeps the
// first-seen record. File paths are walked in sorted order so duplicate
// resolution does not depend on directory iteration order.
func (r *Registry) Load(ctx context.Context) (*LoadReport, error) {
	log := logger.G(ctx)
	report := &LoadReport{Skipped: map[string]error{}}

	var paths []string
	for _, dir := range r.dirs {
		entries, err := collectSkillFiles(dir)
		if err != nil {
			// A missing directory is normal (e.g. no user-global corpus).
			log.WithField("dir", dir).WithError(err).Debug("skipping skill directory")
			continue
		}
		paths = append(paths, entries...)
	}
	sort.Strings(paths)

	records := make(map[string]*skills.Record, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			err = errors.Wrap(err, "failed to read skill file")
			report.Skipped[path] = err
			report.Warnings = multierror.Append(report.Warnings, errors.Wrap(err, path))
			log.WithField("path", path).WithError(err).Warn("skipping unreadable skill file")
			continue
		}

		rec, err := parseRecord(path, content, r.estimator)
		if err != nil {
			report.Skipped[path] = err
			report.Warnings = multierror.Append(report.Warnings, errors.Wrap(err, path))
			log.WithField("path", path).WithError(err).Warn("skipping malformed skill file")
			continue
		}

		if existing, dup := records[rec.ID]; dup {
			err := errors.Errorf("duplicate skill id %q (first seen in %s)", rec.ID, existing.Path)
			report.Skipped[path] = err
			report.Warnings = multierror.Append(report.Warnings, errors.Wrap(err, path))
			log.WithFields(map[string]interface{}{
				"path": path,
				"id":   rec.ID,
			}).Warn("skipping duplicate skill id")
			continue
		}

		records[rec.ID] = rec
		report.Loaded++
	}

	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	snap := &Snapshot{
		version: uuid.NewString(),
		records: records,
		ids:     ids,
	}
	r.snap.Store(snap)

	log.WithFields(map[string]interface{}{
		"loaded":  report.Loaded,
		"skipped": len(report.Skipped),
		"version": snap.version,
	}).Info("skill registry loaded")

	return report, nil
}

// collectSkillFiles returns every markdown file under dir. README files are
// corpus documentation, not skills.
func collectSkillFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".md") {
			return nil
		}
		if strings.EqualFold(name, "README.md") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}
