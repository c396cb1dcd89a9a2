// Package blob defines the remote object store canonical assets are
// uploaded to, with in-memory and local-directory implementations.
package blob

import (
	"context"
	"io"
)

// Store is a flat, filename-addressed object bucket.
type Store interface {
	// EnsureBucket creates the bucket if it does not exist. A bucket that
	// appears concurrently counts as success.
	EnsureBucket(ctx context.Context) error
	// List returns every object name in the bucket.
	List(ctx context.Context) ([]string, error)
	// Put writes one object. With upsert false an existing object is an
	// ErrAlreadyExists error.
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string, upsert bool) error
	// Name identifies the store in logs and reports.
	Name() string
}

// URLer is implemented by stores whose objects have a public URL.
type URLer interface {
	PublicURL(name string) string
}

// PublicURL returns the public URL of name in s, or "" if s has none.
func PublicURL(s Store, name string) string {
	if u, ok := s.(URLer); ok {
		return u.PublicURL(name)
	}
	return ""
}
