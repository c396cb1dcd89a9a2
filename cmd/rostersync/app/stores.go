package app

import (
	"context"
	"fmt"

	"github.com/agentstation/rostersync"
	"github.com/agentstation/rostersync/internal/config"
	"github.com/agentstation/rostersync/internal/gcsblob"
	"github.com/agentstation/rostersync/internal/matcher"
	"github.com/agentstation/rostersync/internal/pgstore"
	"github.com/agentstation/rostersync/internal/postgrest"
	"github.com/agentstation/rostersync/internal/storageapi"
	"github.com/agentstation/rostersync/pkg/assets"
	"github.com/agentstation/rostersync/pkg/blob"
	"github.com/agentstation/rostersync/pkg/errors"
	"github.com/agentstation/rostersync/pkg/normalize"
	"github.com/agentstation/rostersync/pkg/remote"
	"github.com/agentstation/rostersync/pkg/upsert"
)

// NewRemote builds the record store selected by remote.kind.
func NewRemote(cfg *config.Config) (remote.Store, error) {
	r := cfg.Remote
	switch r.Kind {
	case config.RemotePostgREST:
		store, err := postgrest.New(postgrest.Config{
			URL:       r.URL,
			Key:       r.Key,
			Table:     r.Table,
			KeyColumn: r.KeyColumn,
			IDColumn:  r.IDColumn,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.RemotePostgres:
		store, err := pgstore.New(pgstore.Config{
			DSN:       r.DSN,
			Table:     r.Table,
			KeyColumn: r.KeyColumn,
			IDColumn:  r.IDColumn,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.RemoteMemory:
		return remote.NewMemory(r.KeyColumn), nil
	}
	return nil, errors.NewConfigError("remote", fmt.Sprintf("unknown remote.kind %q", r.Kind), nil)
}

// NewBlob builds the object store selected by blob.kind. Supabase storage
// shares the project URL and key with the PostgREST remote.
func NewBlob(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	b := cfg.Blob
	switch b.Kind {
	case config.BlobSupabase:
		store, err := storageapi.New(storageapi.Config{
			URL:           cfg.Remote.URL,
			Key:           cfg.Remote.Key,
			Bucket:        b.Bucket,
			Public:        b.Public,
			FileSizeLimit: b.FileSizeLimit,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BlobGCS:
		store, err := gcsblob.New(ctx, gcsblob.Config{
			Bucket:    b.Bucket,
			Project:   b.Project,
			CDNDomain: b.CDNDomain,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BlobLocal:
		return &blob.Local{Dir: b.Dir, BaseURL: b.BaseURL}, nil
	case config.BlobMemory:
		return blob.NewMemory(), nil
	}
	return nil, errors.NewConfigError("blob", fmt.Sprintf("unknown blob.kind %q", b.Kind), nil)
}

// NewPool builds the asset pool with the configured filename filter.
func NewPool(cfg *config.Config) (*assets.Pool, error) {
	excludes := append(append([]string{}, matcher.DefaultExcludes...), cfg.Pool.Exclude...)
	filter, err := matcher.NewFilter(cfg.Pool.Include, excludes)
	if err != nil {
		return nil, errors.NewConfigError("pool", "invalid include or exclude pattern", err)
	}
	return &assets.Pool{Dir: cfg.Pool.Dir, Filter: filter}, nil
}

// NewNormalizer builds the normalizer with the configured repair encodings.
func NewNormalizer(cfg *config.Config) (*normalize.Normalizer, error) {
	r, err := normalize.NewRepairer(cfg.Encoding.Corrupted, cfg.Encoding.Original)
	if err != nil {
		return nil, errors.NewConfigError("encoding", "unsupported encoding", err)
	}
	return normalize.New(r), nil
}

// clientOptions translates config into engine options, excluding stores.
func clientOptions(cfg *config.Config) ([]rostersync.Option, error) {
	pool, err := NewPool(cfg)
	if err != nil {
		return nil, err
	}
	n, err := NewNormalizer(cfg)
	if err != nil {
		return nil, err
	}
	return []rostersync.Option{
		rostersync.WithPool(pool),
		rostersync.WithNormalizer(n),
		rostersync.WithFieldMap(cfg.Fields),
		rostersync.WithColumns(upsert.Columns{
			Key:           cfg.Remote.KeyColumn,
			Name:          cfg.Remote.NameColumn,
			RomanizedName: cfg.Remote.RomanizedColumn,
			Asset:         cfg.Remote.AssetColumn,
		}),
	}, nil
}
