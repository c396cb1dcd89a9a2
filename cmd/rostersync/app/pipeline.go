package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/rostersync/pkg/differ"
	"github.com/agentstation/rostersync/pkg/errors"
	"github.com/agentstation/rostersync/pkg/roster"
	"github.com/agentstation/rostersync/pkg/sync"
)

// inputs are the loaded entity and bridge sources.
type inputs struct {
	Entities []roster.EntityRecord
	Rejected int
	Bridge   []roster.BridgeRecord
}

// loadInputs reads the entity roster and, when configured, the bridge.
func (a *App) loadInputs() (*inputs, error) {
	cfg := a.config
	if cfg.Input.Entities == "" {
		return nil, errors.NewConfigError("input", "no entity roster given (--entities or input.entities)", nil)
	}

	r, err := roster.LoadEntities(cfg.Input.Entities, cfg.Fields.WithDefaults(roster.DefaultEntityFields()))
	if err != nil {
		return nil, err
	}
	for _, rej := range r.Rejected {
		a.logger.Warn().Int("index", rej.Index).Str("reason", rej.Reason).Msg("Rejected entity record")
	}

	in := &inputs{Entities: r.Entities, Rejected: len(r.Rejected)}
	if cfg.Bridge.Path != "" {
		in.Bridge, err = roster.LoadBridge(cfg.Bridge.Path, cfg.Bridge.Fields.WithDefaults(roster.DefaultBridgeFields()))
		if err != nil {
			return nil, err
		}
	}
	a.logger.Debug().Int("entities", len(in.Entities)).Int("rejected", in.Rejected).
		Int("bridge", len(in.Bridge)).Msg("Loaded inputs")
	return in, nil
}

// syncOptions translates config and global flags into run options.
func (a *App) syncOptions(rejected int) ([]sync.Option, error) {
	cfg := a.config
	strategy, err := differ.ParseApplyStrategy(cfg.Sync.ApplyStrategy)
	if err != nil {
		return nil, errors.WrapValidation("apply", err)
	}
	return []sync.Option{
		sync.WithDryRun(a.flags.DryRun),
		sync.WithTimeout(cfg.Sync.Timeout),
		sync.WithConcurrency(cfg.Sync.Concurrency),
		sync.WithPageSize(cfg.Remote.PageSize),
		sync.WithApplyStrategy(strategy),
		sync.WithUploadAll(cfg.Sync.UploadAll),
		sync.WithReportPath(cfg.Report.Path),
		sync.WithOutputPath(cfg.Output.Path),
		sync.WithRejected(rejected),
	}, nil
}

// runPipeline loads inputs, runs the selected stages and prints the
// report. Any failed item makes the command fail after the report is out.
func (a *App) runPipeline(cmd *cobra.Command, needs Stores, stages ...sync.Option) error {
	return a.runOnce(a.Context(cmd.Context()), cmd, needs, stages...)
}

func (a *App) runOnce(ctx context.Context, cmd *cobra.Command, needs Stores, stages ...sync.Option) error {
	client, err := a.Client(ctx, needs)
	if err != nil {
		return err
	}
	in, err := a.loadInputs()
	if err != nil {
		return err
	}
	opts, err := a.syncOptions(in.Rejected)
	if err != nil {
		return err
	}

	result, err := client.Run(ctx, in.Entities, in.Bridge, append(opts, stages...)...)
	if result != nil {
		if perr := a.printReport(cmd, result.Report); perr != nil && err == nil {
			err = perr
		}
	}
	if err != nil {
		return err
	}
	if result.HasFailures() {
		return fmt.Errorf("run finished with %d failed items", result.Report.Failed())
	}
	return nil
}
