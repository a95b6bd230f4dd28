package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/outfitlab/matchflow/internal/cli"
	"github.com/outfitlab/matchflow/internal/common"
	"github.com/outfitlab/matchflow/internal/flow"
	"github.com/outfitlab/matchflow/internal/model"
	"github.com/outfitlab/matchflow/internal/safety"
	"github.com/outfitlab/matchflow/internal/service"
	"github.com/outfitlab/matchflow/internal/signals"
	"github.com/outfitlab/matchflow/internal/storage"
)

// signalsInput mirrors the persisted fingerprint shape so input files and
// stored rows share one format.
type signalsInput struct {
	Archetype   string   `json:"archetype"`
	Secondary   string   `json:"secondary,omitempty"`
	ArchConf    float64  `json:"archetype_confidence"`
	Formality   string   `json:"formality"`
	FormConf    float64  `json:"formality_confidence"`
	Statement   string   `json:"statement"`
	StmtConf    float64  `json:"statement_confidence"`
	Season      string   `json:"season"`
	SeasonConf  float64  `json:"season_confidence"`
	Palette     []string `json:"palette"`
	PaletteConf float64  `json:"palette_confidence"`
	Pattern     string   `json:"pattern"`
	PatternConf float64  `json:"pattern_confidence"`
	Material    string   `json:"material"`
	MatConf     float64  `json:"material_confidence"`
}

func (in *signalsInput) toModel() *model.StyleSignals {
	if in == nil {
		return nil
	}
	return &model.StyleSignals{
		Archetype: model.ArchetypeSignal{
			Primary:    model.Archetype(in.Archetype),
			Secondary:  model.Archetype(in.Secondary),
			Confidence: in.ArchConf,
		},
		Formality: model.FormalitySignal{Band: model.FormalityBand(in.Formality), Confidence: in.FormConf},
		Statement: model.StatementSignal{Level: model.StatementLevel(in.Statement), Confidence: in.StmtConf},
		Season:    model.SeasonSignal{Weight: model.SeasonWeight(in.Season), Confidence: in.SeasonConf},
		Palette:   model.PaletteSignal{Colors: in.Palette, Confidence: in.PaletteConf},
		Pattern:   model.PatternSignal{Level: model.PatternLevel(in.Pattern), Confidence: in.PatternConf},
		Material:  model.MaterialSignal{Family: model.MaterialFamily(in.Material), Confidence: in.MatConf},
	}
}

type itemInput struct {
	ID       string        `json:"id"`
	Category string        `json:"category"`
	Signals  *signalsInput `json:"signals,omitempty"`
	// Image is an optional path to the item's photo, used to generate a
	// fingerprint remotely when none is attached or stored.
	Image string `json:"image,omitempty"`
}

func (in itemInput) toModel() model.Item {
	return model.Item{
		ID:       in.ID,
		Category: model.Category(in.Category),
		Signals:  in.Signals.toModel(),
	}
}

type jobInput struct {
	Target     itemInput   `json:"target"`
	Candidates []itemInput `json:"candidates"`
}

type fileInput struct {
	Jobs []jobInput `json:"jobs"`
}

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run the match refinement pipeline over an input file",
		Long: `Reads a JSON file describing one or more targets with their candidate
items, runs scoring, trust filtering, and (when configured) the remote
safety check, and prints the finalized match tiers.`,
		RunE: runEvaluate,
	}

	cmd.Flags().StringP("input", "i", "", "JSON input file (required)")
	cmd.Flags().String("identifier", "", "stable user identifier for safety rollout bucketing")
	cmd.Flags().Bool("no-store", false, "skip the durable signal store")
	_ = cmd.MarkFlagRequired("input")
	_ = viper.BindPFlag("user.identifier", cmd.Flags().Lookup("identifier"))

	return cmd
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	inputPath, _ := cmd.Flags().GetString("input")
	noStore, _ := cmd.Flags().GetBool("no-store")

	jobs, err := loadJobs(inputPath)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return fmt.Errorf("input file %s contains no jobs", inputPath)
	}

	logger := slog.Default()
	ctx := cmd.Context()

	var store *storage.SQLiteStore
	if !noStore {
		s, err := openStore()
		if err != nil {
			logger.Warn("durable store unavailable, continuing without it", "error", err)
		} else {
			store = s
			defer func() { _ = store.Close() }()
			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
		}
	}

	gen, err := buildGenerator()
	if err != nil {
		return err
	}
	images := imageSourceFor(jobs)

	var resolver *signals.Provider
	if store != nil || (gen != nil && images != nil) {
		resolver = signals.NewProvider(signals.DefaultConfig(), signalStoreArg(store), gen, images, logger)
		defer resolver.Close()
	}

	checker, err := buildChecker(verdictStoreArg(store), logger)
	if err != nil {
		return err
	}
	if checker != nil {
		defer checker.Close()
	}

	opts := flow.Options{
		Identifier: viper.GetString("user.identifier"),
		Selection:  safety.DefaultSelectionConfig(),
	}

	reporter := cli.NewReporter(cmd.OutOrStdout())
	if len(jobs) > 1 {
		reporter.StartProgress(len(jobs))
	}

	failures := 0
	for _, job := range jobs {
		target := job.Target.toModel()
		candidates := make([]model.Item, len(job.Candidates))
		for i, c := range job.Candidates {
			candidates[i] = c.toModel()
		}

		// Each target gets its own runner so one job's supersede
		// accounting can never discard another's result.
		runner := flow.NewRunner(resolverArg(resolver), nil, nil, checker, opts, logger)

		matches, err := runner.Run(ctx, target, candidates)
		if err != nil {
			if errors.Is(err, flow.ErrSuperseded) {
				continue
			}
			failures++
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatError(
				fmt.Sprintf("evaluating %s: %v", target.ID, err)))
			reporter.Advance()
			continue
		}

		reporter.Advance()
		reporter.RenderMatches(target.ID, matches)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d jobs failed", failures, len(jobs))
	}
	return nil
}

func loadJobs(path string) ([]jobInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("could not read input file %s", path), err)
	}

	var file fileInput
	if err := json.Unmarshal(data, &file); err == nil && len(file.Jobs) > 0 {
		return file.Jobs, nil
	}

	// A bare single job is also accepted.
	var job jobInput
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, common.NewUserError(fmt.Sprintf("input file %s is not valid JSON", path), err)
	}
	if job.Target.ID == "" {
		return nil, nil
	}
	return []jobInput{job}, nil
}

// resolverArg avoids handing the runner a typed-nil interface when no
// store is available.
func resolverArg(p *signals.Provider) service.SignalResolver {
	if p == nil {
		return nil
	}
	return p
}

func signalStoreArg(s *storage.SQLiteStore) service.SignalStore {
	if s == nil {
		return nil
	}
	return s
}

func verdictStoreArg(s *storage.SQLiteStore) service.VerdictStore {
	if s == nil {
		return nil
	}
	return s
}

// buildGenerator constructs the remote signal generator when an endpoint
// is configured.
func buildGenerator() (signals.Generator, error) {
	endpoint := viper.GetString("signals.endpoint")
	if endpoint == "" {
		return nil, nil
	}

	cfg := signals.GeneratorConfig{
		Endpoint: endpoint,
		APIKey:   viper.GetString("signals.api_key"),
	}
	if t := viper.GetDuration("signals.timeout"); t > 0 {
		cfg.Timeout = t
	}

	gen, err := signals.NewHTTPGenerator(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build signal generator: %w", err)
	}
	return gen, nil
}

// fileImageSource serves item photos from paths named in the input file.
type fileImageSource struct {
	paths map[string]string
}

func imageSourceFor(jobs []jobInput) signals.ImageSource {
	paths := make(map[string]string)
	collect := func(in itemInput) {
		if in.Image != "" {
			paths[in.ID] = in.Image
		}
	}
	for _, job := range jobs {
		collect(job.Target)
		for _, c := range job.Candidates {
			collect(c)
		}
	}
	if len(paths) == 0 {
		return nil
	}
	return fileImageSource{paths: paths}
}

func (s fileImageSource) ImageFor(_ context.Context, itemID string) (signals.ImagePayload, error) {
	path, ok := s.paths[itemID]
	if !ok {
		return signals.ImagePayload{}, fmt.Errorf("%w: no image for item %s", common.ErrNotFound, itemID)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return signals.ImagePayload{}, fmt.Errorf("reading image %s: %w", path, err)
	}
	return signals.ImagePayload{Data: data, MIME: imageMIME(path)}, nil
}

func imageMIME(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

// buildChecker constructs the safety client when an endpoint is configured.
func buildChecker(store service.VerdictStore, logger *slog.Logger) (*safety.Client, error) {
	endpoint := viper.GetString("safety.endpoint")
	if endpoint == "" {
		return nil, nil
	}

	cfg := safety.Config{
		Endpoint:       endpoint,
		APIKey:         viper.GetString("safety.api_key"),
		DryRun:         viper.GetBool("safety.dry_run"),
		RolloutPercent: viper.GetInt("safety.rollout_percent"),
		Selection:      safety.DefaultSelectionConfig(),
	}
	if t := viper.GetDuration("safety.timeout"); t > 0 {
		cfg.Timeout = t
	}
	if ttl := viper.GetDuration("safety.cache_ttl"); ttl > 0 {
		cfg.CacheTTL = ttl
	} else {
		cfg.CacheTTL = 30 * time.Minute
	}

	client, err := safety.NewClient(cfg, store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build safety client: %w", err)
	}
	return client, nil
}
