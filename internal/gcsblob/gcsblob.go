// Package gcsblob implements blob.Store over a Google Cloud Storage bucket.
package gcsblob

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/agentstation/rostersync/pkg/blob"
	"github.com/agentstation/rostersync/pkg/constants"
	"github.com/agentstation/rostersync/pkg/errors"
	"github.com/agentstation/rostersync/pkg/logging"
)

// Config addresses one bucket.
type Config struct {
	Bucket    string
	Project   string // required only to create the bucket
	CDNDomain string // optional host for public URLs
}

// Store is a GCS bucket.
type Store struct {
	client *storage.Client
	cfg    Config
}

var (
	_ blob.Store = (*Store)(nil)
	_ blob.URLer = (*Store)(nil)
)

// New creates a storage client with application default credentials, or
// with whatever opts supply.
func New(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Store, error) {
	if cfg.Bucket == "" {
		cfg.Bucket = constants.DefaultBucket
	}
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.NewConfigError("gcs", "failed to create storage client", err)
	}
	return &Store{client: client, cfg: cfg}, nil
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Name implements blob.Store.
func (s *Store) Name() string {
	return "gcs"
}

// EnsureBucket implements blob.Store.
func (s *Store) EnsureBucket(ctx context.Context) error {
	bucket := s.client.Bucket(s.cfg.Bucket)
	_, err := bucket.Attrs(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrBucketNotExist) {
		return s.mapErr(err, "")
	}
	if s.cfg.Project == "" {
		return errors.NewConfigError("gcs", fmt.Sprintf("bucket %s does not exist and no project is set to create it", s.cfg.Bucket), err)
	}
	if err := bucket.Create(ctx, s.cfg.Project, &storage.BucketAttrs{}); err != nil {
		mapped := s.mapErr(err, "")
		if errors.IsAlreadyExists(mapped) {
			return nil
		}
		return mapped
	}
	logging.FromContext(ctx).Info().Str("bucket", s.cfg.Bucket).Str("project", s.cfg.Project).Msg("Created bucket")
	return nil
}

// List implements blob.Store.
func (s *Store) List(ctx context.Context) ([]string, error) {
	it := s.client.Bucket(s.cfg.Bucket).Objects(ctx, &storage.Query{Projection: storage.ProjectionNoACL})
	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, s.mapErr(err, "")
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

// Put implements blob.Store. Without upsert the write is conditional on
// the object not existing.
func (s *Store) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string, upsert bool) error {
	obj := s.client.Bucket(s.cfg.Bucket).Object(name)
	if !upsert {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}
	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	if size > 0 && size < googleapi.DefaultUploadChunkSize {
		w.ChunkSize = 0
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return s.mapErr(err, name)
	}
	if err := w.Close(); err != nil {
		return s.mapErr(err, name)
	}
	return nil
}

// PublicURL implements blob.URLer.
func (s *Store) PublicURL(name string) string {
	host := "storage.googleapis.com/" + url.PathEscape(s.cfg.Bucket)
	if s.cfg.CDNDomain != "" {
		host = s.cfg.CDNDomain
	}
	return "https://" + host + "/" + url.PathEscape(name)
}

// mapErr converts googleapi errors into the shared error types.
func (s *Store) mapErr(err error, name string) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return errors.NewNotFoundError("object", name)
		}
		return &errors.APIError{Remote: s.Name(), Message: err.Error(), Err: err}
	}
	if gerr.Code == http.StatusPreconditionFailed {
		return &errors.ResourceError{Operation: "put", Resource: "object", ID: name, Message: "object exists", Err: errors.ErrAlreadyExists}
	}
	return &errors.APIError{Remote: s.Name(), StatusCode: gerr.Code, Message: gerr.Message, Err: err}
}
