// Package flow orchestrates one finalize pass: parallel signal
// resolution, scoring, trust filtering, the optional safety check, and the
// final merge.
package flow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/outfitlab/matchflow/internal/engine"
	"github.com/outfitlab/matchflow/internal/merge"
	"github.com/outfitlab/matchflow/internal/model"
	"github.com/outfitlab/matchflow/internal/safety"
	"github.com/outfitlab/matchflow/internal/service"
	"github.com/outfitlab/matchflow/internal/trust"
)

// ErrSuperseded indicates a newer target replaced this run while it was in
// flight. The stale result is discarded, never merged.
var ErrSuperseded = errors.New("run superseded by a newer target")

// maxResolveWorkers bounds concurrent signal resolutions per run.
const maxResolveWorkers = 5

// Options configures one runner.
type Options struct {
	// Identifier is the stable user or anonymous id used for rollout
	// bucketing of the safety check.
	Identifier string
	Selection  safety.SelectionConfig
}

// Runner executes the three-stage refinement pipeline. Independent runs
// share nothing but the bounded caches inside the collaborators.
type Runner struct {
	resolver service.SignalResolver
	scorer   *engine.Scorer
	filter   *trust.Filter
	checker  *safety.Client
	merger   *merge.Merger
	logger   *slog.Logger
	opts     Options
	revision atomic.Uint64
}

// NewRunner creates a runner. resolver and checker may be nil: without a
// resolver the engine scores on whatever signals items carry, and without
// a checker the safety stage is skipped entirely.
func NewRunner(resolver service.SignalResolver, scorer *engine.Scorer, filter *trust.Filter, checker *safety.Client, opts Options, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if scorer == nil {
		scorer = engine.New()
	}
	if filter == nil {
		filter = trust.New(logger)
	}
	return &Runner{
		resolver: resolver,
		scorer:   scorer,
		filter:   filter,
		checker:  checker,
		merger:   merge.New(logger),
		logger:   logger,
		opts:     opts,
	}
}

// Run executes one full pass for the target. A later Run supersedes any
// in-flight one: the superseded pass completes its remote work but its
// result is discarded with ErrSuperseded.
func (r *Runner) Run(ctx context.Context, target model.Item, candidates []model.Item) (model.FinalizedMatches, error) {
	if err := target.Validate(); err != nil {
		return model.FinalizedMatches{}, err
	}

	rev := r.revision.Add(1)

	// The trust filter must not see partial signal state: resolve
	// everything (or let it definitively fail) before moving on.
	target, candidates = r.resolveAll(ctx, target, candidates)
	if r.stale(rev) {
		return model.FinalizedMatches{}, ErrSuperseded
	}

	ceResult := r.scorer.Evaluate(target, candidates)

	itemByID := make(map[string]model.Item, len(candidates))
	for _, c := range candidates {
		itemByID[c.ID] = c
	}

	highIDs := ceResult.HighIDs()
	trustCands := make([]trust.Candidate, 0, len(highIDs))
	for _, e := range ceResult.High() {
		it := itemByID[e.ItemID]
		trustCands = append(trustCands, trust.Candidate{
			ID:       e.ItemID,
			Category: it.Category,
			Signals:  it.Signals,
			CEScore:  e.RawScore,
		})
	}
	tfResult := r.filter.Evaluate(target.Signals, trustCands, highIDs)

	var safetyResult *safety.BatchResult
	if r.checker != nil && r.checker.EnabledFor(r.opts.Identifier) {
		evalByID := make(map[string]model.PairEvaluation, len(ceResult.Evaluations))
		for _, e := range ceResult.Evaluations {
			evalByID[e.ItemID] = e
		}
		kept := make([]safety.KeptCandidate, 0, len(tfResult.HighFinal))
		for _, id := range tfResult.HighFinal {
			kept = append(kept, safety.KeptCandidate{
				ItemID:   id,
				PairType: evalByID[id].PairType,
				Signals:  itemByID[id].Signals,
				Decision: tfResult.Decisions[id],
				CEScore:  evalByID[id].RawScore,
			})
		}
		pairs := safety.SelectCandidates(target.Signals, kept, r.opts.Selection)
		if len(pairs) > 0 {
			res := r.checker.CheckBatch(ctx, target.Signals, pairs)
			safetyResult = &res
		}
	}

	if r.stale(rev) {
		return model.FinalizedMatches{}, ErrSuperseded
	}

	return r.merger.Finalize(ceResult, candidates, tfResult, safetyResult), nil
}

// stale reports whether a newer run has started since rev.
func (r *Runner) stale(rev uint64) bool {
	return r.revision.Load() != rev
}

// resolveAll fetches signals for the target and every candidate with a
// bounded worker pool. Failures degrade to nil signals; they never fail
// the run.
func (r *Runner) resolveAll(ctx context.Context, target model.Item, candidates []model.Item) (model.Item, []model.Item) {
	if r.resolver == nil {
		return target, candidates
	}

	items := make([]model.Item, 0, len(candidates)+1)
	items = append(items, target)
	items = append(items, candidates...)

	sem := make(chan struct{}, maxResolveWorkers)
	var wg sync.WaitGroup

	for i := range items {
		if items[i].Signals != nil {
			continue
		}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			signals, err := r.resolver.Resolve(ctx, items[idx])
			if err != nil {
				r.logger.Debug("signal resolution failed, degrading to unknown",
					"item_id", items[idx].ID,
					"error", err)
				return
			}
			items[idx].Signals = signals
		}(i)
	}

	wg.Wait()

	return items[0], items[1:]
}
