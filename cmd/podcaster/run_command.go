package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"podcast-archiver/internal/config"
	"podcast-archiver/internal/models"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a pass over every enabled podcast",
		Long: "Run a pass over every enabled podcast. Without --once a pass runs immediately " +
			"and then every check_interval_hours until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			setup, err := ctx.ensureSetup(cmd.Context())
			if err != nil {
				return err
			}

			if once {
				summary, err := setup.Orchestrator.RunOnce(cmd.Context(), models.RunTypeProcess)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), summary.String())
				return nil
			}

			doc, err := config.LoadPodcasts(setup.Env)
			if err != nil {
				return err
			}
			return setup.Orchestrator.RunForever(cmd.Context(), doc.Settings.CheckInterval(), models.RunTypeScheduled)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Run a single pass and exit")
	return cmd
}
