package rostersync

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/rostersync/pkg/assets"
	"github.com/agentstation/rostersync/pkg/blob"
	"github.com/agentstation/rostersync/pkg/errors"
	"github.com/agentstation/rostersync/pkg/normalize"
	"github.com/agentstation/rostersync/pkg/remote"
	"github.com/agentstation/rostersync/pkg/roster"
	"github.com/agentstation/rostersync/pkg/upsert"
)

// Option is a function that configures a Client.
type Option func(*options) error

// options holds the client's collaborators. Everything a run depends on is
// set here explicitly.
type options struct {
	pool       *assets.Pool
	remote     remote.Store
	blobs      blob.Store
	normalizer *normalize.Normalizer
	fields     roster.FieldMap
	columns    upsert.Columns
	logger     *zerolog.Logger
}

func defaults() *options {
	return &options{
		fields:  roster.DefaultEntityFields(),
		columns: upsert.DefaultColumns(),
	}
}

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithPool configures the local asset pool.
func WithPool(pool *assets.Pool) Option {
	return func(o *options) error {
		if pool == nil || pool.Dir == "" {
			return errors.NewValidationError("pool", pool, "pool directory is required")
		}
		o.pool = pool
		return nil
	}
}

// WithPoolDir configures the asset pool from a directory with the default
// filter.
func WithPoolDir(dir string) Option {
	return WithPool(assets.NewPool(dir))
}

// WithRemote configures the record store.
func WithRemote(store remote.Store) Option {
	return func(o *options) error {
		o.remote = store
		return nil
	}
}

// WithBlobStore configures the object store.
func WithBlobStore(store blob.Store) Option {
	return func(o *options) error {
		o.blobs = store
		return nil
	}
}

// WithNormalizer configures filename repair and key normalization.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(o *options) error {
		o.normalizer = n
		return nil
	}
}

// WithFieldMap configures the field names used when writing the relinked
// roster back out.
func WithFieldMap(m roster.FieldMap) Option {
	return func(o *options) error {
		o.fields = m.WithDefaults(roster.DefaultEntityFields())
		return nil
	}
}

// WithColumns configures the remote columns entity fields map to.
func WithColumns(c upsert.Columns) Option {
	return func(o *options) error {
		if c.Key == "" {
			return errors.NewValidationError("columns.key", c, "key column is required")
		}
		o.columns = c
		return nil
	}
}

// WithLogger configures the logger attached to every operation's context.
func WithLogger(logger *zerolog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}
