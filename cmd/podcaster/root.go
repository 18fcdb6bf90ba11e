package main

import (
	"context"

	"github.com/spf13/cobra"

	"podcast-archiver/internal/app"
)

// commandContext opens the shared setup on first use.
type commandContext struct {
	setup *app.Setup
}

func (c *commandContext) ensureSetup(ctx context.Context) (*app.Setup, error) {
	if c.setup != nil {
		return c.setup, nil
	}
	setup, err := app.NewSetup(ctx, "podcaster")
	if err != nil {
		return nil, err
	}
	c.setup = setup
	return setup, nil
}

func (c *commandContext) close() {
	if c.setup != nil {
		c.setup.Close()
		c.setup = nil
	}
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "podcaster",
		Short:         "Archive podcast feeds into an object store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newStatsCommand(ctx))
	rootCmd.AddCommand(newSyncCommand(ctx))
	rootCmd.AddCommand(newRenameCommand(ctx))

	return rootCmd
}
