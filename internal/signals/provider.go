// Package signals resolves per-item style fingerprints from a bounded
// in-memory cache, a durable store, or a remote generator, in that order.
package signals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/outfitlab/matchflow/internal/common"
	"github.com/outfitlab/matchflow/internal/model"
	"github.com/outfitlab/matchflow/internal/service"
)

// ImageSource supplies the raw image for an item when remote generation is
// needed. Owned by the capture subsystem.
type ImageSource interface {
	ImageFor(ctx context.Context, itemID string) (ImagePayload, error)
}

// Config holds configuration for the provider.
type Config struct {
	CacheTTL  time.Duration
	CacheSize int
	StoreTTL  time.Duration
	Limits    PayloadLimits
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		CacheTTL:  20 * time.Minute,
		CacheSize: 256,
		StoreTTL:  7 * 24 * time.Hour,
		Limits:    DefaultPayloadLimits(),
	}
}

// Provider implements service.SignalResolver. It never blocks the scoring
// engine: callers treat a resolution failure as "signals unavailable" and
// degrade the dependent facets to unknown.
type Provider struct {
	cache  *signalCache
	store  service.SignalStore
	gen    Generator
	images ImageSource
	group  singleflight.Group
	cfg    Config
	logger *slog.Logger
}

// NewProvider creates a provider. store, gen, and images may each be nil;
// resolution simply skips the tiers it has no collaborator for.
func NewProvider(cfg Config, store service.SignalStore, gen Generator, images ImageSource, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultConfig().CacheTTL
	}
	if cfg.StoreTTL == 0 {
		cfg.StoreTTL = DefaultConfig().StoreTTL
	}
	return &Provider{
		cache:  newSignalCache(cfg.CacheTTL, cfg.CacheSize),
		store:  store,
		gen:    gen,
		images: images,
		cfg:    cfg,
		logger: logger,
	}
}

// Resolve returns the item's style fingerprint or ErrSignalsUnavailable.
// Concurrent resolutions of the same item collapse into one lookup chain;
// both callers receive the same result.
func (p *Provider) Resolve(ctx context.Context, item model.Item) (*model.StyleSignals, error) {
	if item.Signals != nil {
		// Upstream capture already attached a fingerprint.
		return item.Signals, nil
	}
	if signals, found := p.cache.get(item.ID); found {
		p.logger.Debug("signal cache hit", "item_id", item.ID)
		return signals, nil
	}

	v, err, _ := p.group.Do(item.ID, func() (any, error) {
		return p.resolveSlow(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	signals, ok := v.(*model.StyleSignals)
	if !ok || signals == nil {
		return nil, common.ErrSignalsUnavailable
	}
	return signals, nil
}

// resolveSlow walks store then generator. Only successful generations are
// cached; errors are never cached.
func (p *Provider) resolveSlow(ctx context.Context, item model.Item) (*model.StyleSignals, error) {
	if p.store != nil {
		signals, err := p.store.GetSignals(ctx, item.ID)
		switch {
		case err == nil && signals != nil:
			p.cache.set(item.ID, signals)
			return signals, nil
		case err != nil && !errors.Is(err, common.ErrNotFound) && !errors.Is(err, common.ErrExpired):
			p.logger.Warn("durable signal lookup failed, falling through",
				"item_id", item.ID,
				"error", err)
		}
	}

	if p.gen == nil || p.images == nil {
		return nil, fmt.Errorf("%w: no generation path for item %s", common.ErrSignalsUnavailable, item.ID)
	}

	payload, err := p.images.ImageFor(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching image: %v", common.ErrSignalsUnavailable, err)
	}

	payload, err = PreparePayload(payload, p.cfg.Limits)
	if err != nil {
		if errors.Is(err, common.ErrPayloadTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: preparing payload: %v", common.ErrSignalsUnavailable, err)
	}

	// Durable rows are also keyed by the image's perceptual hash, so a
	// re-encoded copy of the same photo under a different item id still
	// hits the store instead of paying for another generation.
	contentKey, keyErr := PerceptualKey(payload)
	if keyErr != nil {
		p.logger.Debug("perceptual key unavailable",
			"item_id", item.ID,
			"error", keyErr)
		contentKey = ""
	}
	if contentKey != "" && p.store != nil {
		if signals, err := p.store.GetSignals(ctx, contentKey); err == nil && signals != nil {
			p.logger.Debug("content key hit",
				"item_id", item.ID,
				"content_key", contentKey)
			p.cache.set(item.ID, signals)
			if err := p.store.SaveSignals(ctx, item.ID, signals, time.Now().Add(p.cfg.StoreTTL)); err != nil {
				p.logger.Warn("persisting signals failed",
					"item_id", item.ID,
					"error", err)
			}
			return signals, nil
		}
	}

	start := time.Now()
	var signals *model.StyleSignals
	err = common.WithRetry(ctx, func() error {
		var gerr error
		signals, gerr = p.gen.Generate(ctx, item.ID, payload)
		if gerr != nil {
			return &common.RetryableError{
				Err:       gerr,
				Retryable: errors.Is(gerr, ErrGeneratorRateLimited) || errors.Is(gerr, ErrGeneratorNetwork),
			}
		}
		return nil
	}, service.RetryOptions{
		MaxAttempts:  2,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
	})
	if err != nil {
		p.logger.Warn("signal generation failed",
			"item_id", item.ID,
			"elapsed", time.Since(start),
			"error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrSignalsUnavailable, err)
	}

	p.cache.set(item.ID, signals)
	if p.store != nil {
		expiry := time.Now().Add(p.cfg.StoreTTL)
		keys := []string{item.ID}
		if contentKey != "" {
			keys = append(keys, contentKey)
		}
		for _, storeKey := range keys {
			if err := p.store.SaveSignals(ctx, storeKey, signals, expiry); err != nil {
				p.logger.Warn("persisting signals failed",
					"item_id", item.ID,
					"store_key", storeKey,
					"error", err)
			}
		}
	}

	p.logger.Info("signals generated",
		"item_id", item.ID,
		"archetype", signals.Archetype.Primary,
		"formality", signals.Formality.Band,
		"elapsed", time.Since(start))
	return signals, nil
}

// CacheSize reports the number of live cache entries.
func (p *Provider) CacheSize() int {
	return p.cache.size()
}

// Close stops the cache's cleanup goroutine.
func (p *Provider) Close() {
	p.cache.Close()
}
