package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"podcast-archiver/internal/models"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show catalog statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			setup, err := ctx.ensureSetup(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := setup.Catalog.GetStats(cmd.Context())
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}
}

func printStats(out io.Writer, stats models.Stats) {
	fmt.Fprintf(out, "Episodes: %d\n", stats.EpisodeCount)
	fmt.Fprintf(out, "Podcasts: %d\n", stats.DistinctFeedCount)
	fmt.Fprintf(out, "Size:     %.1f MB\n", stats.TotalMB())
}
