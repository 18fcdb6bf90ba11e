package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"podcast-archiver/internal/pipeline"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Catalogue objects already present in the remote store",
		RunE: func(cmd *cobra.Command, args []string) error {
			setup, err := ctx.ensureSetup(cmd.Context())
			if err != nil {
				return err
			}
			results, err := setup.Orchestrator.Sync(cmd.Context())
			if err != nil {
				return err
			}
			return printSyncResults(cmd.OutOrStdout(), results)
		},
	}
}

func printSyncResults(out io.Writer, results []pipeline.SyncResult) error {
	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(out, "%s: error: %v\n", r.Podcast, r.Err)
			continue
		}
		if r.Failed > 0 {
			failed++
			fmt.Fprintf(out, "%s: %d listed, %d imported, %d failed\n", r.Podcast, r.Listed, r.Imported, r.Failed)
			continue
		}
		fmt.Fprintf(out, "%s: %d listed, %d imported\n", r.Podcast, r.Listed, r.Imported)
	}
	if failed > 0 {
		return fmt.Errorf("sync failed for %d podcast(s)", failed)
	}
	return nil
}
