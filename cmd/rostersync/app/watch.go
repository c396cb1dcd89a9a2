package app

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/agentstation/rostersync/internal/watch"
	"github.com/agentstation/rostersync/pkg/constants"
	"github.com/agentstation/rostersync/pkg/errors"
)

// NewWatchCommand creates the watch command: run, then re-run whenever the
// pool changes.
func (a *App) NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "watch",
		GroupID: "pipeline",
		Short:   "Re-run the pipeline whenever the asset pool changes",
		Long: `Watch runs the full pipeline once, then again each time files are added
to or changed in the pool and the pool has been quiet for the debounce
interval. Failed runs are logged and the watch continues; a bootstrap
failure such as an unreachable remote ends it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := a.Context(cmd.Context())
			debounce, _ := cmd.Flags().GetDuration("debounce")

			// Fail fast on configuration and input problems
			if _, err := a.Client(ctx, AllStores); err != nil {
				return err
			}
			if _, err := a.loadInputs(); err != nil {
				return err
			}
			pool, err := NewPool(a.config)
			if err != nil {
				return err
			}

			w := watch.New(pool.Dir)
			w.Filter = pool.Filter
			w.Debounce = debounce

			err = w.Run(ctx, func(ctx context.Context) error {
				return a.runOnce(ctx, cmd, AllStores)
			})
			if errors.Is(err, context.Canceled) {
				a.logger.Info().Msg("Watch stopped")
				return nil
			}
			return err
		},
	}
	addSourceFlags(cmd)
	addSyncFlags(cmd)
	addUploadFlags(cmd)
	addOutputFlag(cmd)
	cmd.Flags().Duration("debounce", constants.WatchDebounce, "how long the pool must be quiet before a re-run")
	return cmd
}
