package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/outfitlab/matchflow/internal/cli"
)

func pruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete expired fingerprints and verdicts from the store",
		RunE:  runPrune,
	}
}

func runPrune(cmd *cobra.Command, _ []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	pruned, err := store.PruneExpired(ctx)
	if err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}

	cmd.Println(cli.FormatSuccess(fmt.Sprintf("pruned %d expired rows", pruned)))
	return nil
}
