package safety

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/outfitlab/matchflow/internal/model"
	"github.com/outfitlab/matchflow/internal/service"
)

// Config holds configuration for the safety-check client.
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
	CacheTTL time.Duration
	// DryRun is the requested mode; the server's effective mode wins.
	DryRun bool
	// RolloutPercent gates the feature by identifier bucket.
	RolloutPercent int
	Selection      SelectionConfig
}

// CallStats describes how one batch was satisfied.
type CallStats struct {
	CacheHit    bool
	LiveCalls   int
	Latency     time.Duration
	Failed      bool
	RateLimited bool
}

// BatchResult is the outcome of one safety check.
type BatchResult struct {
	Verdicts []model.SafetyVerdict
	// EffectiveDryRun is the server-negotiated mode. When true, verdicts
	// are observe-only and must not be applied.
	EffectiveDryRun bool
	Stats           CallStats
}

// Client talks to the remote verdict service. Failure of any kind degrades
// to fallback keep verdicts: the deterministic pipeline result is never
// blocked or altered by a safety-check failure.
type Client struct {
	httpClient *http.Client
	cache      *verdictCache
	store      service.VerdictStore
	group      singleflight.Group
	cfg        Config
	logger     *slog.Logger
}

// NewClient creates a safety-check client. store may be nil.
func NewClient(cfg Config, store service.VerdictStore, logger *slog.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("safety endpoint is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		cfg:    cfg,
		store:  store,
		logger: logger,
		cache:  newVerdictCache(cfg.CacheTTL),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// EnabledFor reports whether the identifier falls inside the rollout.
func (c *Client) EnabledFor(identifier string) bool {
	return Eligible(identifier, c.cfg.RolloutPercent)
}

// Close stops background goroutines.
func (c *Client) Close() {
	c.cache.Close()
}

type wireSignals struct {
	Archetype string   `json:"archetype"`
	Secondary string   `json:"secondary,omitempty"`
	Formality string   `json:"formality"`
	Statement string   `json:"statement"`
	Season    string   `json:"season"`
	Palette   []string `json:"palette"`
	Pattern   string   `json:"pattern"`
	Material  string   `json:"material"`
}

type wirePair struct {
	ItemID            string      `json:"item_id"`
	PairType          string      `json:"pair_type"`
	ArchetypeDistance string      `json:"archetype_distance"`
	Signals           wireSignals `json:"signals"`
}

type checkRequest struct {
	RequestID     string     `json:"request_id"`
	PolicyVersion string     `json:"policy_version"`
	DryRun        bool       `json:"dry_run"`
	TargetKey     string     `json:"target_key"`
	Pairs         []wirePair `json:"pairs"`
}

type wireVerdict struct {
	ItemID     string   `json:"item_id"`
	Action     string   `json:"action"`
	Reason     string   `json:"reason"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type checkResponse struct {
	Verdicts        []wireVerdict `json:"verdicts"`
	EffectiveDryRun bool          `json:"effective_dry_run"`
	Stats           struct {
		CacheHits int `json:"cache_hits"`
		LiveCalls int `json:"live_calls"`
		LatencyMS int `json:"latency_ms"`
	} `json:"stats"`
	RateLimited bool `json:"rate_limited"`
}

// CheckBatch evaluates the selected pairs in one remote call. Identical
// concurrent requests collapse into a single network round trip; both
// callers receive the same resolved verdict set. The in-flight entry is
// cleaned up on success and failure alike.
func (c *Client) CheckBatch(ctx context.Context, targetSignals *model.StyleSignals, pairs []PairDescriptor) BatchResult {
	if len(pairs) == 0 {
		return BatchResult{EffectiveDryRun: c.cfg.DryRun}
	}
	if len(pairs) > MaxBatchSize {
		pairs = pairs[:MaxBatchSize]
	}

	key := RequestKey(targetSignals, pairs)

	if verdicts, dryRun, found := c.cache.get(key); found {
		c.logger.Debug("safety verdict cache hit", "request_key", key, "verdicts", len(verdicts))
		return BatchResult{
			Verdicts:        verdicts,
			EffectiveDryRun: dryRun,
			Stats:           CallStats{CacheHit: true},
		}
	}

	if c.store != nil {
		// The persisted effective mode wins over the requested one: a batch
		// the server forced to observe-only stays observe-only on replay.
		if verdicts, dryRun, err := c.store.GetVerdicts(ctx, key); err == nil && len(verdicts) > 0 {
			for i := range verdicts {
				verdicts[i].Provenance = model.ProvenanceCache
			}
			c.cache.set(key, verdicts, dryRun)
			return BatchResult{
				Verdicts:        verdicts,
				EffectiveDryRun: dryRun,
				Stats:           CallStats{CacheHit: true},
			}
		}
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		return c.checkLive(ctx, key, targetSignals, pairs), nil
	})
	if err != nil {
		// checkLive never returns an error; belt and braces.
		return c.fallback(pairs, err)
	}
	res, ok := v.(BatchResult)
	if !ok {
		return c.fallback(pairs, errors.New("unexpected in-flight result type"))
	}
	if shared {
		c.logger.Debug("safety request deduplicated", "request_key", key)
	}
	return res
}

// checkLive performs the actual network call. All failures degrade to
// fallback keep verdicts so the caller's pipeline result stands untouched.
func (c *Client) checkLive(ctx context.Context, key string, targetSignals *model.StyleSignals, pairs []PairDescriptor) BatchResult {
	req := checkRequest{
		RequestID:     uuid.NewString(),
		PolicyVersion: PolicyVersion,
		DryRun:        c.cfg.DryRun,
		TargetKey:     SignalKey(targetSignals),
		Pairs:         make([]wirePair, len(pairs)),
	}
	for i, p := range pairs {
		req.Pairs[i] = wirePair{
			ItemID:            p.ItemID,
			PairType:          string(p.PairType),
			ArchetypeDistance: string(p.ArchetypeDistance),
			Signals:           toWireSignals(p.CandidateSignals),
		}
	}

	start := time.Now()
	resp, err := c.post(ctx, req)
	latency := time.Since(start)
	if err != nil {
		c.logger.Warn("safety check failed, failing open",
			"request_key", key,
			"latency", latency,
			"error", err)
		return c.fallback(pairs, err)
	}

	verdicts := make([]model.SafetyVerdict, 0, len(resp.Verdicts))
	for _, w := range resp.Verdicts {
		action := model.Action(w.Action)
		if action.Severity() < 0 {
			c.logger.Error("safety verdict carries unknown action, dropping",
				"item_id", w.ItemID,
				"action", w.Action)
			continue
		}
		verdicts = append(verdicts, model.SafetyVerdict{
			ItemID:     w.ItemID,
			Action:     action,
			Reason:     model.VerdictReason(w.Reason),
			Confidence: w.Confidence,
			Provenance: model.ProvenanceLive,
			Latency:    latency,
		})
	}

	c.cache.set(key, verdicts, resp.EffectiveDryRun)
	if c.store != nil {
		expiry := time.Now().Add(c.cfg.CacheTTL)
		if c.cfg.CacheTTL == 0 {
			expiry = time.Now().Add(30 * time.Minute)
		}
		if err := c.store.SaveVerdicts(ctx, key, verdicts, resp.EffectiveDryRun, expiry); err != nil {
			c.logger.Warn("persisting verdicts failed", "request_key", key, "error", err)
		}
	}

	c.logger.Info("safety check completed",
		"request_key", key,
		"pairs", len(pairs),
		"verdicts", len(verdicts),
		"effective_dry_run", resp.EffectiveDryRun,
		"latency", latency)

	return BatchResult{
		Verdicts:        verdicts,
		EffectiveDryRun: resp.EffectiveDryRun,
		Stats: CallStats{
			LiveCalls:   1,
			Latency:     latency,
			RateLimited: resp.RateLimited,
		},
	}
}

func (c *Client) post(ctx context.Context, req checkRequest) (*checkResponse, error) {
	jsonBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("safety service error (status %d): %s", resp.StatusCode, string(body))
	}

	var parsed checkResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &parsed, nil
}

// fallback builds keep verdicts for every pair so the merge is a no-op:
// the worst case on remote failure is simply "safety check did not run".
func (c *Client) fallback(pairs []PairDescriptor, cause error) BatchResult {
	reason := model.ReasonErrorFallback
	if errors.Is(cause, context.DeadlineExceeded) {
		reason = model.ReasonTimeoutFallback
	}

	verdicts := make([]model.SafetyVerdict, len(pairs))
	for i, p := range pairs {
		verdicts[i] = model.SafetyVerdict{
			ItemID:     p.ItemID,
			Action:     model.ActionKeep,
			Reason:     reason,
			Provenance: model.ProvenanceLive,
		}
	}
	return BatchResult{
		Verdicts:        verdicts,
		EffectiveDryRun: true, // observe-only; a failed check never applies
		Stats:           CallStats{Failed: true},
	}
}

func toWireSignals(s *model.StyleSignals) wireSignals {
	if s == nil {
		return wireSignals{}
	}
	return wireSignals{
		Archetype: string(s.Archetype.Primary),
		Secondary: string(s.Archetype.Secondary),
		Formality: string(s.Formality.Band),
		Statement: string(s.Statement.Level),
		Season:    string(s.Season.Weight),
		Palette:   s.Palette.Normalized(),
		Pattern:   string(s.Pattern.Level),
		Material:  string(s.Material.Family),
	}
}
