package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"podcast-archiver/internal/pipeline"
)

func newRenameCommand(ctx *commandContext) *cobra.Command {
	var (
		apply   bool
		podcast string
	)

	cmd := &cobra.Command{
		Use:   "rename",
		Short: "Rename remote episodes to the <seq>-<name> convention",
		Long:  "Rename remote episodes to the <seq>-<name> convention. Without --apply the renames are only listed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			setup, err := ctx.ensureSetup(cmd.Context())
			if err != nil {
				return err
			}
			plans, err := setup.Orchestrator.Rename(cmd.Context(), podcast, apply)
			if err != nil {
				return err
			}
			return printRenamePlans(cmd.OutOrStdout(), plans, apply)
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "Perform the renames instead of listing them")
	cmd.Flags().StringVar(&podcast, "podcast", "", "Only rename episodes of this podcast")
	return cmd
}

func printRenamePlans(out io.Writer, plans []pipeline.RenamePlan, apply bool) error {
	if len(plans) == 0 {
		fmt.Fprintln(out, "Nothing to rename")
		return nil
	}

	var failed int
	for _, p := range plans {
		switch {
		case p.Err != nil:
			failed++
			fmt.Fprintf(out, "[%s] %s -> %s: error: %v\n", p.Podcast, p.CurrentName, p.DesiredName, p.Err)
		case p.Applied:
			fmt.Fprintf(out, "[%s] renamed %s -> %s\n", p.Podcast, p.CurrentName, p.DesiredName)
		default:
			fmt.Fprintf(out, "[%s] would rename %s -> %s\n", p.Podcast, p.CurrentName, p.DesiredName)
		}
	}
	if !apply {
		fmt.Fprintf(out, "%d rename(s) pending; rerun with --apply\n", len(plans))
	}
	if failed > 0 {
		return fmt.Errorf("%d rename(s) failed", failed)
	}
	return nil
}
