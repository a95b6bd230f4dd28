package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/outfitlab/matchflow/internal/cli"
	"github.com/outfitlab/matchflow/internal/safety"
)

func bucketCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bucket <identifier>",
		Short: "Show the safety-check rollout bucket for an identifier",
		Long: `Maps a stable user or anonymous identifier to its deterministic 0-99
rollout bucket and reports whether the configured rollout percentage
includes it.`,
		Args: cobra.ExactArgs(1),
		RunE: runBucket,
	}

	cmd.Flags().Int("percent", -1, "rollout percentage to check against (default: config)")

	return cmd
}

func runBucket(cmd *cobra.Command, args []string) error {
	identifier := args[0]

	percent, _ := cmd.Flags().GetInt("percent")
	if percent < 0 {
		percent = viper.GetInt("safety.rollout_percent")
	}

	bucket := safety.Bucket(identifier)
	cmd.Println(fmt.Sprintf("identifier %s → bucket %d", identifier, bucket))

	if safety.Eligible(identifier, percent) {
		cmd.Println(cli.FormatSuccess(fmt.Sprintf("inside the %d%% rollout", percent)))
	} else {
		cmd.Println(cli.FormatInfo(fmt.Sprintf("outside the %d%% rollout", percent)))
	}
	return nil
}
