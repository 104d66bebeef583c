// Package engine wires the selection pipeline together: registry snapshot
// read, trigger matching, dependency resolution, budget selection, and
// context assembly, with an LRU memoization layer keyed by the snapshot
// version and a canonicalized request signature. Selection is a pure
// function of (snapshot, request), so concurrent requests need no locking
// beyond the cache's own.
package engine

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/opus67/skillctx/pkg/assembler"
	"github.com/opus67/skillctx/pkg/logger"
	"github.com/opus67/skillctx/pkg/matcher"
	"github.com/opus67/skillctx/pkg/registry"
	"github.com/opus67/skillctx/pkg/resolver"
	"github.com/opus67/skillctx/pkg/selector"
	"github.com/opus67/skillctx/pkg/skills"
	"github.com/opus67/skillctx/pkg/telemetry"
)

const defaultCacheSize = 256

// Output bundles the selection result with the assembled context string.
type Output struct {
	Result  *skills.SelectionResult
	Context string
}

type cacheEntry struct {
	result  *skills.SelectionResult
	context string
}

// Engine runs selection requests against the registry's current snapshot.
type Engine struct {
	reg     *registry.Registry
	weights matcher.Weights
	cache   *cache
}

// Option configures an Engine.
type Option func(*Engine) error

// WithWeights overrides the default trigger weights.
func WithWeights(w matcher.Weights) Option {
	return func(e *Engine) error {
		if err := w.Validate(); err != nil {
			return err
		}
		e.weights = w
		return nil
	}
}

// WithCacheSize sets the selection cache capacity. Zero disables caching.
func WithCacheSize(size int) Option {
	return func(e *Engine) error {
		if size < 0 {
			return errors.New("cache size must not be negative")
		}
		if size == 0 {
			e.cache = nil
			return nil
		}
		inner, err := lru.New[string, cacheEntry](size)
		if err != nil {
			return errors.Wrap(err, "failed to create selection cache")
		}
		e.cache = &cache{entries: inner}
		return nil
	}
}

// New creates an Engine over the given registry.
func New(reg *registry.Registry, opts ...Option) (*Engine, error) {
	if reg == nil {
		return nil, errors.New("registry is required")
	}
	e := &Engine{reg: reg, weights: matcher.DefaultWeights()}
	inner, err := lru.New[string, cacheEntry](defaultCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create selection cache")
	}
	e.cache = &cache{entries: inner}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Select runs the full pipeline for one request. Identical (snapshot,
// request) pairs produce byte-identical results: the request id is derived
// from the request signature, not generated randomly.
func (e *Engine) Select(ctx context.Context, req *skills.RequestContext) (*Output, error) {
	if req == nil {
		return nil, errors.New("request context is required")
	}
	if req.TokenBudget <= 0 {
		return nil, errors.New("token budget must be a positive integer")
	}

	snap := e.reg.Snapshot()
	key := requestKey(snap.Version(), req, e.weights)
	requestID := key[:16]

	log := logger.G(ctx).WithField("request_id", requestID)
	ctx = logger.WithLogger(ctx, log)

	if e.cache != nil {
		if entry, ok := e.cache.get(snap.Version(), key); ok {
			log.Debug("selection cache hit")
			return &Output{Result: entry.result.Clone(), Context: entry.context}, nil
		}
	}

	var out *Output
	err := telemetry.WithSpan(ctx, "engine.select", func(ctx context.Context) error {
		telemetry.SetAttributes(ctx,
			attribute.String("skillctx.snapshot_version", snap.Version()),
			attribute.Int("skillctx.token_budget", req.TokenBudget),
			attribute.Int("skillctx.corpus_size", snap.Len()),
		)

		var activations []matcher.Activation
		telemetry.WithSpanFunc(ctx, "engine.match", func(context.Context) {
			activations = matcher.Match(snap, req, e.weights)
		})

		var resolved *resolver.Result
		telemetry.WithSpanFunc(ctx, "engine.resolve", func(context.Context) {
			resolved = resolver.Resolve(snap, activations, req.AvailableServices)
		})

		var selection *selector.Selection
		telemetry.WithSpanFunc(ctx, "engine.budget", func(context.Context) {
			selection = selector.Select(resolved.Candidates, req.TokenBudget)
		})

		result := &skills.SelectionResult{
			RequestID:       requestID,
			SnapshotVersion: snap.Version(),
			OrderedSkillIDs: selection.OrderedIDs,
			TotalCost:       selection.TotalCost,
			Excluded:        mergeExclusions(snap, activations, resolved, selection),
		}

		var assembled string
		aerr := telemetry.WithSpan(ctx, "engine.assemble", func(context.Context) error {
			var err error
			assembled, err = assembler.Assemble(snap, result)
			return err
		})
		if aerr != nil {
			return aerr
		}

		log.WithFields(map[string]interface{}{
			"selected":   len(result.OrderedSkillIDs),
			"total_cost": result.TotalCost,
			"excluded":   len(result.Excluded),
		}).Debug("selection complete")

		out = &Output{Result: result, Context: assembled}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		e.cache.put(snap.Version(), key, cacheEntry{result: out.Result.Clone(), context: out.Context})
	}
	return out, nil
}

// mergeExclusions builds the full exclusion map: zero-relevance for skills
// that never activated (and were not pulled in), unmet-dependency from the
// resolver, and budget from the selector. Later stages take precedence.
func mergeExclusions(snap *registry.Snapshot, activations []matcher.Activation, resolved *resolver.Result, selection *selector.Selection) map[string]skills.ExclusionReason {
	reached := make(map[string]bool, len(activations))
	for _, act := range activations {
		reached[act.ID] = true
	}
	for _, cand := range resolved.Candidates {
		reached[cand.ID] = true
	}
	for id := range resolved.Excluded {
		reached[id] = true
	}

	excluded := map[string]skills.ExclusionReason{}
	for _, id := range snap.IDs() {
		if !reached[id] {
			excluded[id] = skills.ExcludedZeroRelevance
		}
	}
	for id, reason := range resolved.Excluded {
		excluded[id] = reason
	}
	for id, reason := range selection.Excluded {
		excluded[id] = reason
	}
	return excluded
}
