package signals

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/outfitlab/matchflow/internal/common"
	"github.com/outfitlab/matchflow/internal/model"
)

// Typed generator failures. Callers branch on these instead of parsing
// error strings.
var (
	// ErrGeneratorRateLimited indicates the remote generator throttled us.
	// It wraps common.ErrRateLimit so retry backoff jumps straight to the
	// maximum delay.
	ErrGeneratorRateLimited = fmt.Errorf("signal generator rate limited: %w", common.ErrRateLimit)
	// ErrGeneratorTimeout indicates the call exceeded its deadline.
	ErrGeneratorTimeout = errors.New("signal generator timed out")
	// ErrGeneratorMalformed indicates an unparseable response.
	ErrGeneratorMalformed = errors.New("signal generator returned malformed response")
	// ErrGeneratorNetwork indicates a transport-level failure.
	ErrGeneratorNetwork = errors.New("signal generator network error")
)

// Generator produces a style fingerprint from an item image.
type Generator interface {
	Generate(ctx context.Context, itemID string, payload ImagePayload) (*model.StyleSignals, error)
}

// GeneratorConfig configures the HTTP generator client.
type GeneratorConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// httpGenerator implements Generator against the remote style-signal
// service.
type httpGenerator struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
}

// NewHTTPGenerator creates a generator client.
func NewHTTPGenerator(cfg GeneratorConfig) (Generator, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("generator endpoint is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &httpGenerator{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
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

type generateRequest struct {
	ItemID      string `json:"item_id"`
	ImageBase64 string `json:"image_base64"`
	MIME        string `json:"mime"`
}

type facetPayload struct {
	Value      string  `json:"value"`
	Secondary  string  `json:"secondary,omitempty"`
	Confidence float64 `json:"confidence"`
}

type palettePayload struct {
	Colors     []string `json:"colors"`
	Confidence float64  `json:"confidence"`
}

type generateResponse struct {
	Archetype facetPayload   `json:"archetype"`
	Formality facetPayload   `json:"formality"`
	Statement facetPayload   `json:"statement"`
	Season    facetPayload   `json:"season"`
	Palette   palettePayload `json:"palette"`
	Pattern   facetPayload   `json:"pattern"`
	Material  facetPayload   `json:"material"`
}

// Generate sends the item image and maps the response onto StyleSignals.
func (g *httpGenerator) Generate(ctx context.Context, itemID string, payload ImagePayload) (*model.StyleSignals, error) {
	reqBody := generateRequest{
		ItemID:      itemID,
		ImageBase64: base64.StdEncoding.EncodeToString(payload.Data),
		MIME:        payload.MIME,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrGeneratorTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrGeneratorNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrGeneratorNetwork, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: %s", ErrGeneratorRateLimited, string(body))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d: %s", ErrGeneratorNetwork, resp.StatusCode, string(body))
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneratorMalformed, err)
	}

	signals := parsed.toSignals()
	if !signals.Archetype.Known() && !signals.Formality.Known() && !signals.Palette.Known() {
		return nil, fmt.Errorf("%w: no usable facets in response", ErrGeneratorMalformed)
	}
	return signals, nil
}

func (r generateResponse) toSignals() *model.StyleSignals {
	return &model.StyleSignals{
		GeneratedAt: time.Now().UTC(),
		Archetype: model.ArchetypeSignal{
			Primary:    model.Archetype(r.Archetype.Value),
			Secondary:  model.Archetype(r.Archetype.Secondary),
			Confidence: r.Archetype.Confidence,
		},
		Formality: model.FormalitySignal{
			Band:       model.FormalityBand(r.Formality.Value),
			Confidence: r.Formality.Confidence,
		},
		Statement: model.StatementSignal{
			Level:      model.StatementLevel(r.Statement.Value),
			Confidence: r.Statement.Confidence,
		},
		Season: model.SeasonSignal{
			Weight:     model.SeasonWeight(r.Season.Value),
			Confidence: r.Season.Confidence,
		},
		Palette: model.PaletteSignal{
			Colors:     r.Palette.Colors,
			Confidence: r.Palette.Confidence,
		},
		Pattern: model.PatternSignal{
			Level:      model.PatternLevel(r.Pattern.Value),
			Confidence: r.Pattern.Confidence,
		},
		Material: model.MaterialSignal{
			Family:     model.MaterialFamily(r.Material.Value),
			Confidence: r.Material.Confidence,
		},
	}
}
