package rostersync

import (
	"context"

	"github.com/agentstation/rostersync/pkg/assets"
	"github.com/agentstation/rostersync/pkg/index"
	"github.com/agentstation/rostersync/pkg/logging"
	"github.com/agentstation/rostersync/pkg/relink"
	"github.com/agentstation/rostersync/pkg/report"
	"github.com/agentstation/rostersync/pkg/resolver"
	"github.com/agentstation/rostersync/pkg/roster"
	"github.com/agentstation/rostersync/pkg/sync"
)

// Reconciliation is the outcome of matching entities against the pool.
// Entities and Matches are parallel.
type Reconciliation struct {
	Assets   []assets.AssetFile
	Index    *index.Index
	Entities []roster.EntityRecord
	Matches  []resolver.MatchResult
	Relinks  []report.Outcome // Nil when relinking did not run
}

// Matched is the number of entities resolved to an asset.
func (r *Reconciliation) Matched() int {
	n := 0
	for _, m := range r.Matches {
		if m.Matched() {
			n++
		}
	}
	return n
}

// Match scans the pool, builds the index and resolves every entity. The
// pool is not modified.
func (c *client) Match(ctx context.Context, entities []roster.EntityRecord, bridge []roster.BridgeRecord) (*Reconciliation, error) {
	pool, err := c.pool()
	if err != nil {
		return nil, err
	}
	rec, err := c.match(c.ctx(ctx), pool, entities, bridge)
	if err != nil {
		return nil, err
	}
	c.hooks.triggerMatches(entities, rec.Matches)
	return rec, nil
}

func (c *client) match(ctx context.Context, pool *assets.Pool, entities []roster.EntityRecord, bridge []roster.BridgeRecord) (*Reconciliation, error) {
	n := c.normalizer()
	files, err := pool.Scan(ctx, n)
	if err != nil {
		return nil, err
	}

	idx := index.Build(files, bridge, n)
	matches := resolver.New(idx).ResolveAll(entities)

	rec := &Reconciliation{
		Assets:   files,
		Index:    idx,
		Entities: entities,
		Matches:  matches,
	}
	logging.FromContext(ctx).Info().
		Int("assets", idx.Stats.Assets).
		Int("repaired", idx.Stats.Repaired).
		Int("bridge_names", idx.Stats.BridgeNames).
		Int("entities", len(entities)).
		Int("matched", rec.Matched()).
		Msg("Resolved entities")
	return rec, nil
}

// Reconcile matches entities and copies each matched asset to its
// canonical name. The returned entities carry AssetRef for every link that
// exists on disk afterwards.
func (c *client) Reconcile(ctx context.Context, entities []roster.EntityRecord, bridge []roster.BridgeRecord, opts ...sync.Option) (*Reconciliation, error) {
	o := sync.Defaults().Apply(opts...)
	pool, err := c.pool()
	if err != nil {
		return nil, err
	}
	ctx = c.ctx(ctx)

	rec, err := c.match(ctx, pool, entities, bridge)
	if err != nil {
		return nil, err
	}
	c.hooks.triggerMatches(entities, rec.Matches)

	rec.Entities, rec.Relinks, err = c.relink(ctx, pool, rec, o)
	return rec, err
}

func (c *client) relink(ctx context.Context, pool *assets.Pool, rec *Reconciliation, o *sync.Options) ([]roster.EntityRecord, []report.Outcome, error) {
	ctx = logging.WithStage(ctx, report.StageRelinks)
	entities, outcomes, err := relink.New(pool, o.DryRun).RelinkAll(ctx, rec.Entities, rec.Matches)
	c.hooks.triggerOutcomes(report.StageRelinks, outcomes)
	return entities, outcomes, err
}
