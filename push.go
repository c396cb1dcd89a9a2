package rostersync

import (
	"context"

	"github.com/agentstation/rostersync/pkg/differ"
	"github.com/agentstation/rostersync/pkg/remote"
	"github.com/agentstation/rostersync/pkg/report"
	"github.com/agentstation/rostersync/pkg/roster"
	"github.com/agentstation/rostersync/pkg/sync"
	"github.com/agentstation/rostersync/pkg/upsert"
)

// Push creates or updates one remote record per entity, keyed by natural
// key. Entities should already be relinked so the asset column is set.
func (c *client) Push(ctx context.Context, entities []roster.EntityRecord, opts ...sync.Option) (*differ.Plan, []report.Outcome, error) {
	o := sync.Defaults().Apply(opts...)
	if err := o.Validate(); err != nil {
		return nil, nil, err
	}
	ctx = c.ctx(ctx)

	engine, err := c.recordEngine(o)
	if err != nil {
		return nil, nil, err
	}
	keys, err := engine.Prepare(ctx)
	if err != nil {
		return nil, nil, err
	}
	return c.push(ctx, engine, keys, entities)
}

func (c *client) recordEngine(o *sync.Options) (*upsert.Engine, error) {
	store, err := c.remote()
	if err != nil {
		return nil, err
	}
	engine := upsert.New(store)
	engine.DryRun = o.DryRun
	engine.PageSize = o.PageSize
	engine.Strategy = o.ApplyStrategy
	engine.Payload = upsert.ColumnPayload(c.options.columns)
	return engine, nil
}

func (c *client) push(ctx context.Context, engine *upsert.Engine, keys remote.KeyIndex, entities []roster.EntityRecord) (*differ.Plan, []report.Outcome, error) {
	plan, outcomes, err := engine.Apply(ctx, keys, entities)
	c.hooks.triggerOutcomes(report.StageRecords, outcomes)
	return plan, outcomes, err
}
