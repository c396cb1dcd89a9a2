// Package rostersync links a roster of entities to the photo files that
// belong to them and synchronizes both into a remote backend.
//
// A run goes through four stages. Reconciliation scans a local asset pool,
// resolves each entity to at most one asset and copies matched assets to
// canonical names derived from the entity's natural key. The records stage
// creates or updates one remote row per entity. The uploads stage pushes
// the canonical assets to a blob store. A report summarizes every stage.
//
// Re-running is always safe: record writes are keyed by natural key, copies
// never overwrite, and uploads skip objects the store already lists.
//
// Example usage:
//
//	client, err := rostersync.New(
//	    rostersync.WithPoolDir("./photos"),
//	    rostersync.WithRemote(store),
//	    rostersync.WithBlobStore(bucket),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	r, err := roster.LoadEntities("staff.json", roster.DefaultEntityFields())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := client.Run(ctx, r.Entities, nil, sync.WithDryRun(true))
//	fmt.Println(result.Summary())
package rostersync

import (
	"context"

	"github.com/agentstation/rostersync/pkg/assets"
	"github.com/agentstation/rostersync/pkg/blob"
	"github.com/agentstation/rostersync/pkg/differ"
	"github.com/agentstation/rostersync/pkg/errors"
	"github.com/agentstation/rostersync/pkg/logging"
	"github.com/agentstation/rostersync/pkg/normalize"
	"github.com/agentstation/rostersync/pkg/remote"
	"github.com/agentstation/rostersync/pkg/report"
	"github.com/agentstation/rostersync/pkg/roster"
	"github.com/agentstation/rostersync/pkg/sync"
)

// Compile-time interface check to ensure proper implementation.
var _ Client = (*client)(nil)

// Reconciler links entities to pool assets.
type Reconciler interface {
	// Match resolves entities against the pool without touching it.
	Match(ctx context.Context, entities []roster.EntityRecord, bridge []roster.BridgeRecord) (*Reconciliation, error)

	// Reconcile resolves entities and relinks matched assets.
	Reconcile(ctx context.Context, entities []roster.EntityRecord, bridge []roster.BridgeRecord, opts ...sync.Option) (*Reconciliation, error)
}

// Pusher writes entity records to the remote store.
type Pusher interface {
	Push(ctx context.Context, entities []roster.EntityRecord, opts ...sync.Option) (*differ.Plan, []report.Outcome, error)
}

// Uploader writes linked assets to the blob store.
type Uploader interface {
	Upload(ctx context.Context, entities []roster.EntityRecord, opts ...sync.Option) ([]report.Outcome, error)
}

// Runner runs every stage and reports.
type Runner interface {
	Run(ctx context.Context, entities []roster.EntityRecord, bridge []roster.BridgeRecord, opts ...sync.Option) (*sync.Result, error)
}

// Client is the reconciliation and sync engine.
type Client interface {
	Reconciler
	Pusher
	Uploader
	Runner

	// Hooks provides access to event callback registration
	Hooks
}

// client is the internal implementation of the Client interface.
type client struct {
	options *options
	hooks   *hooks
}

// New creates a Client. Stores are optional at construction; an operation
// that needs a missing one fails with a ConfigError.
func New(opts ...Option) (Client, error) {
	o, err := defaults().apply(opts...)
	if err != nil {
		return nil, err
	}
	return &client{options: o, hooks: newHooks()}, nil
}

// ctx attaches the configured logger, if any.
func (c *client) ctx(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.options.logger != nil {
		ctx = logging.WithLogger(ctx, c.options.logger)
	}
	return ctx
}

func (c *client) pool() (*assets.Pool, error) {
	if c.options.pool == nil {
		return nil, errors.NewConfigError("pool", "no asset pool configured", nil)
	}
	return c.options.pool, nil
}

func (c *client) remote() (remote.Store, error) {
	if c.options.remote == nil {
		return nil, errors.NewConfigError("remote", "no remote store configured", nil)
	}
	return c.options.remote, nil
}

func (c *client) blobs() (blob.Store, error) {
	if c.options.blobs == nil {
		return nil, errors.NewConfigError("blob", "no blob store configured", nil)
	}
	return c.options.blobs, nil
}

func (c *client) normalizer() *normalize.Normalizer {
	if c.options.normalizer == nil {
		return normalize.Default()
	}
	return c.options.normalizer
}
