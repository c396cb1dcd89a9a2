// Package uploader pushes canonical pool files to a blob store with a
// bounded worker pool, skipping objects that already exist remotely.
package uploader

import (
	"context"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/agentstation/rostersync/pkg/assets"
	"github.com/agentstation/rostersync/pkg/blob"
	"github.com/agentstation/rostersync/pkg/constants"
	"github.com/agentstation/rostersync/pkg/errors"
	"github.com/agentstation/rostersync/pkg/logging"
	"github.com/agentstation/rostersync/pkg/report"
)

// Executor uploads files from Pool to Store.
type Executor struct {
	Store         blob.Store
	Pool          *assets.Pool
	Concurrency   int
	DryRun        bool
	ProgressEvery int
}

// New returns an executor with the default width and progress cadence.
func New(store blob.Store, pool *assets.Pool) *Executor {
	return &Executor{
		Store:         store,
		Pool:          pool,
		Concurrency:   constants.DefaultUploadConcurrency,
		ProgressEvery: constants.UploadProgressEvery,
	}
}

func (x *Executor) width() int {
	switch {
	case x.Concurrency <= 0:
		return constants.DefaultUploadConcurrency
	case x.Concurrency > constants.MaxUploadConcurrency:
		return constants.MaxUploadConcurrency
	}
	return x.Concurrency
}

// Listing is the set of object names already in the bucket.
type Listing map[string]struct{}

// Has reports whether name is already uploaded.
func (l Listing) Has(name string) bool {
	_, ok := l[name]
	return ok
}

func (x *Executor) stageContext(ctx context.Context) context.Context {
	return logging.WithStage(logging.WithRemote(ctx, x.Store.Name()), report.StageUploads)
}

// Prepare provisions the bucket and lists it once. Any failure is a
// bootstrap error. A dry run does not provision, and a bucket that does
// not exist yet lists as empty.
func (x *Executor) Prepare(ctx context.Context) (Listing, error) {
	ctx = x.stageContext(ctx)

	if !x.DryRun {
		bctx, cancel := context.WithTimeout(ctx, constants.BucketTimeout)
		err := x.Store.EnsureBucket(bctx)
		cancel()
		if err != nil {
			return nil, errors.WrapBootstrap("ensure bucket", err)
		}
	}

	existing, err := x.Store.List(ctx)
	if err != nil {
		if !x.DryRun || !errors.IsNotFound(err) {
			return nil, errors.WrapBootstrap("list objects", err)
		}
		existing = nil
	}
	listing := make(Listing, len(existing))
	for _, name := range existing {
		listing[name] = struct{}{}
	}
	logging.FromContext(ctx).Debug().Int("objects", len(listing)).Msg("Listed bucket")
	return listing, nil
}

// UploadAll prepares the bucket and uploads every named pool file not
// already in it. See Upload.
func (x *Executor) UploadAll(ctx context.Context, files []string) ([]report.Outcome, error) {
	listing, err := x.Prepare(ctx)
	if err != nil {
		return nil, err
	}
	return x.Upload(ctx, listing, files)
}

// Upload sends every named file missing from listing. Each file succeeds
// or fails on its own. If ctx ends, dispatching stops, in-flight uploads
// run to completion and the rest are recorded as failed, and ctx's error
// is returned alongside the outcomes.
func (x *Executor) Upload(ctx context.Context, listing Listing, files []string) ([]report.Outcome, error) {
	ctx = x.stageContext(ctx)
	logger := logging.FromContext(ctx)

	names := dedupe(files)

	collector := report.NewCollector(len(names))
	pending := make([]string, 0, len(names))
	for _, name := range names {
		if listing.Has(name) {
			collector.Add(report.Outcome{Key: name, Action: report.Skipped, Detail: "already uploaded"})
			continue
		}
		pending = append(pending, name)
	}

	logger.Info().Int("files", len(names)).Int("existing", len(listing)).
		Int("pending", len(pending)).Int("concurrency", x.width()).Bool("dry_run", x.DryRun).
		Msg("Starting uploads")

	if x.DryRun {
		for _, name := range pending {
			collector.Add(report.Outcome{Key: name, Action: report.Created, Detail: "dry run"})
		}
		return collector.Outcomes(), nil
	}

	var (
		g     errgroup.Group
		done  atomic.Int64
		total = int64(len(pending))
	)
	g.SetLimit(x.width())

	var cancelled error
	for i, name := range pending {
		if err := ctx.Err(); err != nil {
			cancelled = err
			for _, rest := range pending[i:] {
				collector.Add(report.Outcome{
					Key: rest, Action: report.Failed,
					Detail: report.Truncate("not attempted: "+err.Error(), constants.MaxDetailLength),
				})
			}
			break
		}

		g.Go(func() error {
			collector.Add(x.upload(ctx, name))
			n := done.Add(1)
			if x.ProgressEvery > 0 && n%int64(x.ProgressEvery) == 0 {
				logger.Info().Int64("done", n).Int64("total", total).Msg("Upload progress")
			}
			return nil
		})
	}
	_ = g.Wait()

	outcomes := collector.Outcomes()
	counts := report.Tally(outcomes)
	logger.Info().Int("uploaded", counts[report.Created]).Int("skipped", counts[report.Skipped]).
		Int("failed", counts[report.Failed]).Msg("Uploads complete")
	return outcomes, cancelled
}

// upload sends one file. Errors never escape; they become FAILED outcomes.
func (x *Executor) upload(ctx context.Context, name string) report.Outcome {
	fail := func(err error) report.Outcome {
		logging.FromContext(ctx).Warn().Err(err).Str("asset", name).Msg("Upload failed")
		return report.Fail(name, errors.NewSyncError(report.StageUploads, name, err), constants.MaxDetailLength)
	}

	f, err := x.Pool.Open(name)
	if err != nil {
		return fail(err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fail(errors.WrapIO("stat", x.Pool.Path(name), err))
	}

	uctx, cancel := context.WithTimeout(ctx, constants.UploadTimeout)
	defer cancel()
	if err := x.Store.Put(uctx, name, f, info.Size(), assets.ContentType(name), true); err != nil {
		return fail(err)
	}
	return report.Outcome{Key: name, Action: report.Created}
}

func dedupe(files []string) []string {
	seen := make(map[string]struct{}, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
