// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/outfitlab/matchflow/internal/model"
)

// SignalStore is the durable store consulted between the in-memory cache
// and the remote generator. Rows carry an expiry and are never returned
// past it.
type SignalStore interface {
	GetSignals(ctx context.Context, itemID string) (*model.StyleSignals, error)
	SaveSignals(ctx context.Context, itemID string, signals *model.StyleSignals, expiresAt time.Time) error
}

// VerdictStore persists safety verdicts keyed by the confidence-stripped
// request hash. The server-negotiated effective mode travels with the
// batch: an observe-only batch must never come back as apply-mode.
type VerdictStore interface {
	GetVerdicts(ctx context.Context, requestKey string) ([]model.SafetyVerdict, bool, error)
	SaveVerdicts(ctx context.Context, requestKey string, verdicts []model.SafetyVerdict, effectiveDryRun bool, expiresAt time.Time) error
}

// Store combines the persistence contracts plus lifecycle management.
type Store interface {
	SignalStore
	VerdictStore
	Migrate(ctx context.Context) error
	Close() error
}

// SignalResolver resolves an item's style fingerprint, from cache, durable
// store, or remote generation.
type SignalResolver interface {
	Resolve(ctx context.Context, item model.Item) (*model.StyleSignals, error)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
