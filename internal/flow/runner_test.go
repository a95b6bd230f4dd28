package flow

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outfitlab/matchflow/internal/model"
	"github.com/outfitlab/matchflow/internal/safety"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signalsWith(arch model.Archetype, band model.FormalityBand, confidence float64) *model.StyleSignals {
	return &model.StyleSignals{
		Archetype: model.ArchetypeSignal{Primary: arch, Confidence: confidence},
		Formality: model.FormalitySignal{Band: band, Confidence: confidence},
		Statement: model.StatementSignal{Level: model.StatementBalanced, Confidence: 0.8},
		Season:    model.SeasonSignal{Weight: model.SeasonMid, Confidence: 0.8},
		Palette:   model.PaletteSignal{Colors: []string{"black", "white"}, Confidence: 0.85},
		Pattern:   model.PatternSignal{Level: model.PatternSolid, Confidence: 0.8},
		Material:  model.MaterialSignal{Family: model.MaterialKnit, Confidence: 0.7},
	}
}

type fakeResolver struct {
	calls   atomic.Int64
	block   chan struct{}
	failFor map[string]bool
	signals *model.StyleSignals
}

func (r *fakeResolver) Resolve(ctx context.Context, item model.Item) (*model.StyleSignals, error) {
	r.calls.Add(1)
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.failFor[item.ID] {
		return nil, errors.New("no image on file")
	}
	if r.signals != nil {
		return r.signals, nil
	}
	return signalsWith(model.ArchetypeClassic, model.FormalitySmartCasual, 0.9), nil
}

func TestRunEndToEndWithoutSafety(t *testing.T) {
	r := NewRunner(nil, nil, nil, nil, Options{}, testLogger())

	target := model.Item{ID: "t1", Category: model.CategoryTops,
		Signals: signalsWith(model.ArchetypeClassic, model.FormalityDressy, 0.9)}
	candidates := []model.Item{
		{ID: "good", Category: model.CategoryBottoms,
			Signals: signalsWith(model.ArchetypeClassic, model.FormalityDressy, 0.9)},
		{ID: "drift", Category: model.CategoryBottoms,
			Signals: signalsWith(model.ArchetypeGlam, model.FormalityDressy, 0.9)},
		{ID: "clash", Category: model.CategoryBottoms,
			Signals: signalsWith(model.ArchetypeStreet, model.FormalityCasual, 0.9)},
	}

	out, err := r.Run(context.Background(), target, candidates)
	require.NoError(t, err)
	require.NoError(t, out.Validate())

	assert.Equal(t, model.FinalTierHigh, out.TierByID["good"])
	// Glam bridges from classic, so the score stays HIGH but the trust
	// filter pulls the pair back to near.
	assert.Equal(t, model.FinalTierNear, out.TierByID["drift"])
	assert.Equal(t, model.ActionDemote, out.ActionByID["drift"])
	// The severe clash is already capped below both bands by the engine.
	assert.NotContains(t, out.TierByID, "clash")
}

func TestRunValidatesTarget(t *testing.T) {
	r := NewRunner(nil, nil, nil, nil, Options{}, testLogger())
	_, err := r.Run(context.Background(), model.Item{}, nil)
	assert.Error(t, err)
}

func TestRunResolvesMissingSignals(t *testing.T) {
	resolver := &fakeResolver{}
	r := NewRunner(resolver, nil, nil, nil, Options{}, testLogger())

	target := model.Item{ID: "t1", Category: model.CategoryTops,
		Signals: signalsWith(model.ArchetypeClassic, model.FormalitySmartCasual, 0.9)}
	candidates := []model.Item{
		{ID: "c1", Category: model.CategoryBottoms},
		{ID: "c2", Category: model.CategoryShoes},
	}

	out, err := r.Run(context.Background(), target, candidates)
	require.NoError(t, err)
	require.NoError(t, out.Validate())

	assert.Equal(t, int64(2), resolver.calls.Load(), "only signal-less items hit the resolver")
	assert.Equal(t, model.FinalTierHigh, out.TierByID["c1"])
}

func TestRunDegradesOnResolverFailure(t *testing.T) {
	resolver := &fakeResolver{failFor: map[string]bool{"c1": true}}
	r := NewRunner(resolver, nil, nil, nil, Options{}, testLogger())

	target := model.Item{ID: "t1", Category: model.CategoryTops,
		Signals: signalsWith(model.ArchetypeClassic, model.FormalitySmartCasual, 0.9)}
	candidates := []model.Item{{ID: "c1", Category: model.CategoryBottoms}}

	out, err := r.Run(context.Background(), target, candidates)
	require.NoError(t, err, "resolution failure degrades, never fails the run")
	require.NoError(t, out.Validate())
	// With signals unknown the engine renormalizes onto type compatibility
	// and the trust filter keeps rather than penalizes.
	assert.Contains(t, out.TierByID, "c1")
}

func TestRunSupersededByNewerTarget(t *testing.T) {
	block := make(chan struct{})
	resolver := &fakeResolver{block: block}
	r := NewRunner(resolver, nil, nil, nil, Options{}, testLogger())

	staleTarget := model.Item{ID: "t1", Category: model.CategoryTops,
		Signals: signalsWith(model.ArchetypeClassic, model.FormalitySmartCasual, 0.9)}
	staleCands := []model.Item{{ID: "c1", Category: model.CategoryBottoms}}

	errCh := make(chan error, 1)
	go func() {
		_, err := r.Run(context.Background(), staleTarget, staleCands)
		errCh <- err
	}()

	// Wait for the first run to be parked inside resolution, then start a
	// newer one whose items need no resolver.
	require.Eventually(t, func() bool { return resolver.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)

	fresh := model.Item{ID: "t2", Category: model.CategoryTops,
		Signals: signalsWith(model.ArchetypeClassic, model.FormalityDressy, 0.9)}
	freshCands := []model.Item{{ID: "c2", Category: model.CategoryBottoms,
		Signals: signalsWith(model.ArchetypeClassic, model.FormalityDressy, 0.9)}}

	out, err := r.Run(context.Background(), fresh, freshCands)
	require.NoError(t, err)
	require.NoError(t, out.Validate())

	close(block)
	assert.ErrorIs(t, <-errCh, ErrSuperseded, "the stale run's result is discarded")
}

func TestRunAppliesSafetyVerdicts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Pairs []struct {
				ItemID string `json:"item_id"`
			} `json:"pairs"`
		}
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		if len(body.Pairs) == 0 {
			http.Error(w, "no pairs", http.StatusBadRequest)
			return
		}

		resp := map[string]any{
			"effective_dry_run": false,
			"verdicts": []map[string]any{
				{"item_id": body.Pairs[0].ItemID, "action": "demote", "reason": "ai-demoted"},
			},
		}
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	checker, err := safety.NewClient(safety.Config{
		Endpoint:       srv.URL,
		RolloutPercent: 100,
	}, nil, testLogger())
	require.NoError(t, err)
	defer checker.Close()

	r := NewRunner(nil, nil, nil, checker,
		Options{Identifier: "user-1", Selection: safety.DefaultSelectionConfig()}, testLogger())

	// Low archetype and formality confidence keeps the pair in HIGH but
	// makes it ambiguous enough to escalate.
	target := model.Item{ID: "t1", Category: model.CategoryTops,
		Signals: signalsWith(model.ArchetypeClassic, model.FormalitySmartCasual, 0.9)}
	candidates := []model.Item{{ID: "shaky", Category: model.CategoryBottoms,
		Signals: signalsWith(model.ArchetypeClassic, model.FormalitySmartCasual, 0.4)}}

	out, err := r.Run(context.Background(), target, candidates)
	require.NoError(t, err)
	require.NoError(t, out.Validate())

	assert.Equal(t, model.FinalTierNear, out.TierByID["shaky"])
	assert.Equal(t, model.ActionDemote, out.ActionByID["shaky"])
}

func TestRunSafetySkippedOutsideRollout(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	checker, err := safety.NewClient(safety.Config{Endpoint: srv.URL, RolloutPercent: 0}, nil, testLogger())
	require.NoError(t, err)
	defer checker.Close()

	r := NewRunner(nil, nil, nil, checker,
		Options{Identifier: "user-1", Selection: safety.DefaultSelectionConfig()}, testLogger())

	target := model.Item{ID: "t1", Category: model.CategoryTops,
		Signals: signalsWith(model.ArchetypeClassic, model.FormalitySmartCasual, 0.9)}
	candidates := []model.Item{{ID: "shaky", Category: model.CategoryBottoms,
		Signals: signalsWith(model.ArchetypeClassic, model.FormalitySmartCasual, 0.4)}}

	out, err := r.Run(context.Background(), target, candidates)
	require.NoError(t, err)
	assert.Equal(t, int64(0), calls.Load())
	assert.Equal(t, model.FinalTierHigh, out.TierByID["shaky"],
		"without the safety check the pipeline result stands")
}
