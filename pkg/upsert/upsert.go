// Package upsert applies a create-or-update plan to a remote.Store, one
// item at a time, isolating per-item failures.
package upsert

import (
	"context"

	"github.com/agentstation/rostersync/pkg/constants"
	"github.com/agentstation/rostersync/pkg/differ"
	"github.com/agentstation/rostersync/pkg/errors"
	"github.com/agentstation/rostersync/pkg/logging"
	"github.com/agentstation/rostersync/pkg/remote"
	"github.com/agentstation/rostersync/pkg/report"
	"github.com/agentstation/rostersync/pkg/roster"
)

// Engine synchronizes entity records.
type Engine struct {
	Store         remote.Store
	PageSize      int
	DryRun        bool
	ProgressEvery int
	Strategy      differ.ApplyStrategy
	Payload       PayloadFunc
}

// New returns an engine with default page size, progress cadence and columns.
func New(store remote.Store) *Engine {
	return &Engine{
		Store:         store,
		PageSize:      constants.DefaultPageSize,
		ProgressEvery: constants.RecordProgressEvery,
		Strategy:      differ.ApplyAll,
		Payload:       ColumnPayload(DefaultColumns()),
	}
}

func (e *Engine) stageContext(ctx context.Context) context.Context {
	return logging.WithStage(logging.WithRemote(ctx, e.Store.Name()), report.StageRecords)
}

// Prepare fetches the remote key inventory. A failure is a bootstrap error.
func (e *Engine) Prepare(ctx context.Context) (remote.KeyIndex, error) {
	return remote.FetchKeyIndex(e.stageContext(ctx), e.Store, e.PageSize)
}

// Sync fetches the key inventory and applies every change. Only a failed
// inventory fetch is returned as an error before any item is attempted.
func (e *Engine) Sync(ctx context.Context, entities []roster.EntityRecord) (*differ.Plan, []report.Outcome, error) {
	idx, err := e.Prepare(ctx)
	if err != nil {
		return nil, nil, err
	}
	return e.Apply(ctx, idx, entities)
}

// Apply classifies entities against idx and sends each change. Keys
// created here are added to idx. If ctx ends mid-run the remaining items
// are recorded as failed and ctx's error is returned with the outcomes.
func (e *Engine) Apply(ctx context.Context, idx remote.KeyIndex, entities []roster.EntityRecord) (*differ.Plan, []report.Outcome, error) {
	ctx = e.stageContext(ctx)
	logger := logging.FromContext(ctx)
	if idx == nil {
		idx = make(remote.KeyIndex)
	}

	plan := differ.Classify(entities, idx).Filter(e.Strategy)
	logger.Info().Int("creates", len(plan.Creates)).Int("updates", len(plan.Updates)).
		Int("skipped", len(plan.Skipped)).Bool("dry_run", e.DryRun).Msg(plan.String())

	changes := plan.Changes()
	outcomes := make([]report.Outcome, 0, len(changes))
	var counts [4]int
	for i, c := range changes {
		if err := ctx.Err(); err != nil {
			for _, rest := range changes[i:] {
				outcomes = append(outcomes, report.Outcome{
					Key: rest.Key(), Action: report.Failed,
					Detail: report.Truncate("not attempted: "+err.Error(), constants.MaxDetailLength),
				})
			}
			return plan, outcomes, err
		}

		o := e.apply(ctx, c, idx)
		outcomes = append(outcomes, o)
		counts[o.Action]++

		if e.ProgressEvery > 0 && (i+1)%e.ProgressEvery == 0 {
			logger.Info().Int("done", i+1).Int("total", len(changes)).
				Int("created", counts[report.Created]).Int("updated", counts[report.Updated]).
				Int("failed", counts[report.Failed]).Msg("Record sync progress")
		}
	}

	logger.Info().Int("created", counts[report.Created]).Int("updated", counts[report.Updated]).
		Int("failed", counts[report.Failed]).Msg("Record sync complete")
	return plan, outcomes, nil
}

// apply sends one change. A key created earlier in this run is in idx, so
// a repeated key becomes an update instead of a second insert.
func (e *Engine) apply(ctx context.Context, c differ.Change, idx remote.KeyIndex) report.Outcome {
	key := c.Key()
	ctx = logging.WithEntity(ctx, key)
	payload := e.Payload(c.Entity)

	remoteID, exists := idx.Lookup(key)
	if e.DryRun {
		if exists {
			return report.Outcome{Key: key, Action: report.Updated, Detail: "dry run"}
		}
		idx[key] = ""
		return report.Outcome{Key: key, Action: report.Created, Detail: "dry run"}
	}

	if exists {
		if err := e.Store.Update(ctx, remoteID, payload); err != nil {
			return e.fail(logging.WithOperation(ctx, "update"), key, err)
		}
		return report.Outcome{Key: key, Action: report.Updated}
	}

	id, err := e.Store.Create(ctx, payload)
	if err != nil {
		return e.fail(logging.WithOperation(ctx, "create"), key, err)
	}
	idx[key] = id
	return report.Outcome{Key: key, Action: report.Created, Detail: id}
}

func (e *Engine) fail(ctx context.Context, key string, err error) report.Outcome {
	logging.FromContext(ctx).Warn().Err(err).Msg("Record sync failed")
	return report.Fail(key, errors.NewSyncError(report.StageRecords, key, err), constants.MaxDetailLength)
}
