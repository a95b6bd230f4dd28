package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/outfitlab/matchflow/internal/cli"
	"github.com/outfitlab/matchflow/internal/common"
)

func signalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signals <item-id>",
		Short: "Show the stored style fingerprint for an item",
		Args:  cobra.ExactArgs(1),
		RunE:  runSignals,
	}
}

func runSignals(cmd *cobra.Command, args []string) error {
	itemID := args[0]

	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	signals, err := store.GetSignals(ctx, itemID)
	switch {
	case errors.Is(err, common.ErrNotFound):
		cmd.Println(cli.FormatWarning(fmt.Sprintf("no fingerprint stored for %s", itemID)))
		return nil
	case errors.Is(err, common.ErrExpired):
		cmd.Println(cli.FormatWarning(fmt.Sprintf("fingerprint for %s has expired", itemID)))
		return nil
	case err != nil:
		return err
	}

	content := fmt.Sprintf(
		"archetype   %s", signals.Archetype.Primary)
	if signals.Archetype.Secondary != "" {
		content += fmt.Sprintf(" / %s", signals.Archetype.Secondary)
	}
	content += fmt.Sprintf(" (%.2f)\n", signals.Archetype.Confidence)
	content += fmt.Sprintf("formality   %s (%.2f)\n", signals.Formality.Band, signals.Formality.Confidence)
	content += fmt.Sprintf("statement   %s (%.2f)\n", signals.Statement.Level, signals.Statement.Confidence)
	content += fmt.Sprintf("season      %s (%.2f)\n", signals.Season.Weight, signals.Season.Confidence)
	content += fmt.Sprintf("palette     %v (%.2f)\n", signals.Palette.Normalized(), signals.Palette.Confidence)
	content += fmt.Sprintf("pattern     %s (%.2f)\n", signals.Pattern.Level, signals.Pattern.Confidence)
	content += fmt.Sprintf("material    %s (%.2f)\n", signals.Material.Family, signals.Material.Confidence)
	if !signals.GeneratedAt.IsZero() {
		content += cli.SubtleStyle.Render(fmt.Sprintf("generated %s", signals.GeneratedAt.Format("2006-01-02 15:04:05")))
	}

	cmd.Println(cli.RenderBox("Fingerprint for "+itemID, content))
	return nil
}
