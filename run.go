package rostersync

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/agentstation/rostersync/pkg/assets"
	"github.com/agentstation/rostersync/pkg/blob"
	"github.com/agentstation/rostersync/pkg/errors"
	"github.com/agentstation/rostersync/pkg/logging"
	"github.com/agentstation/rostersync/pkg/relink"
	"github.com/agentstation/rostersync/pkg/remote"
	"github.com/agentstation/rostersync/pkg/report"
	"github.com/agentstation/rostersync/pkg/roster"
	"github.com/agentstation/rostersync/pkg/sync"
	"github.com/agentstation/rostersync/pkg/uploader"
	"github.com/agentstation/rostersync/pkg/upsert"
)

// Run executes resolution, relinking, record sync and uploads in order and
// builds a report of everything that happened.
//
// Per-item failures never stop the run; they are counted in the report.
// Bootstrap steps (pool scan, key inventory, bucket provisioning and
// listing) all run before the first copy or remote write, so a bootstrap
// failure leaves the pool and both stores untouched. On a bootstrap failure
// or cancellation the report is marked aborted, still written when
// ReportPath is set, and returned in the result alongside the error.
func (c *client) Run(ctx context.Context, entities []roster.EntityRecord, bridge []roster.BridgeRecord, opts ...sync.Option) (*sync.Result, error) {
	o := sync.Defaults().Apply(opts...)
	if err := o.Validate(); err != nil {
		return nil, err
	}
	pool, err := c.pool()
	if err != nil {
		return nil, err
	}
	if !o.SkipRecords {
		if _, err := c.remote(); err != nil {
			return nil, err
		}
	}
	if !o.SkipUploads {
		if _, err := c.blobs(); err != nil {
			return nil, err
		}
	}

	runID := uuid.NewString()
	ctx = logging.WithRunID(c.ctx(ctx), runID)
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}
	logger := logging.FromContext(ctx)

	rep := report.New(runID, o.DryRun)
	rep.Rejected = o.Rejected
	result := &sync.Result{Entities: entities, Report: rep}

	logger.Info().
		Int("entities", len(entities)).
		Int("bridge", len(bridge)).
		Bool("dry_run", o.DryRun).
		Msg("Starting run")

	err = c.run(ctx, pool, bridge, o, result)
	if err != nil {
		rep.Abort(err)
		logger.Error().Err(err).Msg("Run aborted")
	}
	rep.Finish()
	c.hooks.triggerReport(rep)

	if werr := c.writeOutputs(ctx, result, o); werr != nil && err == nil {
		err = werr
	}

	logger.Info().
		Dur("duration", rep.Duration().Round(time.Millisecond)).
		Int("failed", rep.Failed()).
		Msg(result.Summary())
	return result, err
}

func (c *client) run(ctx context.Context, pool *assets.Pool, bridge []roster.BridgeRecord, o *sync.Options, result *sync.Result) error {
	rep := result.Report

	rec, err := c.match(ctx, pool, result.Entities, bridge)
	if err != nil {
		return err
	}
	result.Matches = rec.Matches
	rep.SetMatches(result.Entities, rec.Matches)
	c.hooks.triggerMatches(result.Entities, rec.Matches)

	remotes, err := c.prepare(ctx, pool, o)
	if err != nil {
		return err
	}

	if !o.SkipRelink {
		entities, outcomes, err := c.relink(ctx, pool, rec, o)
		result.Entities = entities
		rep.AddStage(report.StageRelinks, outcomes)
		if err != nil {
			return err
		}
	}

	if remotes.records != nil {
		plan, outcomes, err := c.push(ctx, remotes.records, remotes.keys, result.Entities)
		result.Plan = plan
		if plan != nil {
			rep.AddStage(report.StageRecords, outcomes)
		}
		if err != nil {
			return err
		}
	}

	if remotes.uploads != nil {
		files, err := c.uploadCandidates(ctx, pool, rec, result.Entities, o)
		if err != nil {
			return err
		}
		outcomes, err := c.upload(ctx, remotes.uploads, remotes.listing, files)
		if outcomes != nil {
			rep.AddStage(report.StageUploads, outcomes)
		}
		if err != nil {
			return err
		}
		rep.PublicURL = blob.PublicURL(c.options.blobs, "")
	}
	return nil
}

// prepared is the remote state read before any item is touched.
type prepared struct {
	records *upsert.Engine
	keys    remote.KeyIndex
	uploads *uploader.Executor
	listing uploader.Listing
}

// prepare fetches the key inventory and provisions and lists the bucket
// for every stage that will run. A failure here aborts the run before
// anything is copied, written or uploaded.
func (c *client) prepare(ctx context.Context, pool *assets.Pool, o *sync.Options) (*prepared, error) {
	p := &prepared{}
	if !o.SkipRecords {
		engine, err := c.recordEngine(o)
		if err != nil {
			return nil, err
		}
		if p.keys, err = engine.Prepare(ctx); err != nil {
			return nil, err
		}
		p.records = engine
	}
	if !o.SkipUploads {
		x, err := c.uploadExecutor(pool, o)
		if err != nil {
			return nil, err
		}
		if p.listing, err = x.Prepare(ctx); err != nil {
			return nil, err
		}
		p.uploads = x
	}
	return p, nil
}

// uploadCandidates lists what the uploads stage should send. A dry run
// never copies, so the canonical names relinking would have produced are
// added from the matches.
func (c *client) uploadCandidates(ctx context.Context, pool *assets.Pool, rec *Reconciliation, entities []roster.EntityRecord, o *sync.Options) ([]string, error) {
	files := linkedFiles(entities)
	if o.UploadAll {
		scanned, err := c.poolFiles(ctx, pool)
		if err != nil {
			return nil, err
		}
		files = append(files, scanned...)
	}
	if o.DryRun && !o.SkipRelink {
		r := relink.New(pool, true)
		for i, m := range rec.Matches {
			if m.Matched() && i < len(entities) && !entities[i].HasAsset() {
				files = append(files, r.CanonicalName(entities[i], m))
			}
		}
	}
	return files, nil
}

// writeOutputs saves the report and the relinked roster when asked to.
// Both are written even when the run aborted.
func (c *client) writeOutputs(ctx context.Context, result *sync.Result, o *sync.Options) error {
	logger := logging.FromContext(ctx)
	var errs []error

	if o.ReportPath != "" {
		if err := result.Report.Write(o.ReportPath); err != nil {
			errs = append(errs, err)
		} else {
			logger.Info().Str("path", o.ReportPath).Msg("Wrote report")
		}
	}

	if o.OutputPath != "" {
		if err := roster.SaveEntities(o.OutputPath, result.Entities, c.options.fields); err != nil {
			errs = append(errs, err)
		} else {
			logger.Info().Str("path", o.OutputPath).Int("entities", len(result.Entities)).Msg("Wrote relinked roster")
		}
	}

	return errors.Join(errs...)
}
