package rostersync

import (
	"context"

	"github.com/agentstation/rostersync/pkg/assets"
	"github.com/agentstation/rostersync/pkg/report"
	"github.com/agentstation/rostersync/pkg/roster"
	"github.com/agentstation/rostersync/pkg/sync"
	"github.com/agentstation/rostersync/pkg/uploader"
)

// Upload pushes assets to the blob store. By default only the canonical
// assets linked from entities are sent; with UploadAll every pool file is.
func (c *client) Upload(ctx context.Context, entities []roster.EntityRecord, opts ...sync.Option) ([]report.Outcome, error) {
	o := sync.Defaults().Apply(opts...)
	if err := o.Validate(); err != nil {
		return nil, err
	}
	pool, err := c.pool()
	if err != nil {
		return nil, err
	}
	ctx = c.ctx(ctx)

	files := linkedFiles(entities)
	if o.UploadAll {
		if files, err = c.poolFiles(ctx, pool); err != nil {
			return nil, err
		}
	}

	x, err := c.uploadExecutor(pool, o)
	if err != nil {
		return nil, err
	}
	listing, err := x.Prepare(ctx)
	if err != nil {
		return nil, err
	}
	return c.upload(ctx, x, listing, files)
}

func (c *client) uploadExecutor(pool *assets.Pool, o *sync.Options) (*uploader.Executor, error) {
	store, err := c.blobs()
	if err != nil {
		return nil, err
	}
	x := uploader.New(store, pool)
	x.Concurrency = o.Concurrency
	x.DryRun = o.DryRun
	return x, nil
}

func (c *client) upload(ctx context.Context, x *uploader.Executor, listing uploader.Listing, files []string) ([]report.Outcome, error) {
	outcomes, err := x.Upload(ctx, listing, files)
	c.hooks.triggerOutcomes(report.StageUploads, outcomes)
	return outcomes, err
}

func (c *client) poolFiles(ctx context.Context, pool *assets.Pool) ([]string, error) {
	scanned, err := pool.Scan(ctx, nil)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(scanned))
	for _, f := range scanned {
		names = append(names, f.RawName)
	}
	return names, nil
}

// linkedFiles returns the asset names entities are linked to.
func linkedFiles(entities []roster.EntityRecord) []string {
	var names []string
	for _, e := range entities {
		if e.HasAsset() {
			names = append(names, e.AssetRef)
		}
	}
	return names
}
