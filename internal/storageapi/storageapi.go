// Package storageapi implements blob.Store over the Supabase Storage API.
package storageapi

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/agentstation/rostersync/internal/transport"
	"github.com/agentstation/rostersync/pkg/blob"
	"github.com/agentstation/rostersync/pkg/constants"
	"github.com/agentstation/rostersync/pkg/errors"
	"github.com/agentstation/rostersync/pkg/logging"
)

// DefaultAllowedMIMETypes are accepted by buckets this package creates.
var DefaultAllowedMIMETypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// Config addresses one bucket.
type Config struct {
	URL              string
	Key              string
	Bucket           string
	Public           bool
	FileSizeLimit    int64
	AllowedMIMETypes []string
	PageSize         int
}

// Store is a Supabase Storage bucket.
type Store struct {
	client *transport.Client
	cfg    Config
}

var (
	_ blob.Store = (*Store)(nil)
	_ blob.URLer = (*Store)(nil)
)

// New returns a store for cfg. Unset fields get defaults.
func New(cfg Config) (*Store, error) {
	if cfg.Key == "" {
		return nil, errors.NewConfigError("storage", "service key is required", nil)
	}
	if cfg.Bucket == "" {
		cfg.Bucket = constants.DefaultBucket
	}
	if cfg.FileSizeLimit <= 0 {
		cfg.FileSizeLimit = constants.DefaultFileSizeLimit
	}
	if cfg.AllowedMIMETypes == nil {
		cfg.AllowedMIMETypes = DefaultAllowedMIMETypes
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = constants.DefaultObjectPageSize
	}
	client, err := transport.New(cfg.URL, cfg.Key, &transport.SupabaseAuth{}, "storage")
	if err != nil {
		return nil, err
	}
	return &Store{client: client, cfg: cfg}, nil
}

// WithHTTPClient replaces the underlying HTTP client.
func (s *Store) WithHTTPClient(h *http.Client) *Store {
	s.client.WithHTTPClient(h)
	return s
}

// Name implements blob.Store.
func (s *Store) Name() string {
	return "storage"
}

type bucketRequest struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Public           bool     `json:"public"`
	FileSizeLimit    int64    `json:"file_size_limit,omitempty"`
	AllowedMIMETypes []string `json:"allowed_mime_types,omitempty"`
}

// EnsureBucket implements blob.Store: check, then create. A create that
// loses a race to another process is treated as success.
func (s *Store) EnsureBucket(ctx context.Context) error {
	logger := logging.FromContext(ctx)

	resp, err := s.client.DoJSON(ctx, http.MethodGet, nil, nil, nil, "storage", "v1", "bucket", s.cfg.Bucket)
	if err != nil {
		return err
	}
	err = transport.Expect(resp, s.Name(), http.StatusOK)
	if err == nil {
		logger.Debug().Str("bucket", s.cfg.Bucket).Msg("Bucket exists")
		return nil
	}
	if !isMissingBucket(err) {
		return err
	}

	body := bucketRequest{
		ID:               s.cfg.Bucket,
		Name:             s.cfg.Bucket,
		Public:           s.cfg.Public,
		FileSizeLimit:    s.cfg.FileSizeLimit,
		AllowedMIMETypes: s.cfg.AllowedMIMETypes,
	}
	resp, err = s.client.DoJSON(ctx, http.MethodPost, nil, body, nil, "storage", "v1", "bucket")
	if err != nil {
		return err
	}
	err = transport.Expect(resp, s.Name(), http.StatusOK, http.StatusCreated)
	if err != nil && !isDuplicate(err) {
		return err
	}
	logger.Info().Str("bucket", s.cfg.Bucket).Bool("public", s.cfg.Public).Msg("Created bucket")
	return nil
}

// Storage answers a missing bucket with 404 or, on older releases, a 400
// whose body names the error.
func isMissingBucket(err error) bool {
	var apiErr *errors.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusNotFound ||
		(apiErr.StatusCode == http.StatusBadRequest && containsAny(apiErr.Message, "not found"))
}

func isDuplicate(err error) bool {
	var apiErr *errors.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusConflict ||
		(apiErr.StatusCode == http.StatusBadRequest && containsAny(apiErr.Message, "already exists", "Duplicate"))
}

type listRequest struct {
	Prefix string `json:"prefix"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
	SortBy struct {
		Column string `json:"column"`
		Order  string `json:"order"`
	} `json:"sortBy"`
}

type listEntry struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// List implements blob.Store, paging until a short page.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var names []string
	for offset := 0; ; {
		req := listRequest{Limit: s.cfg.PageSize, Offset: offset}
		req.SortBy.Column = "name"
		req.SortBy.Order = "asc"

		pctx, cancel := context.WithTimeout(ctx, constants.ListTimeout)
		resp, err := s.client.DoJSON(pctx, http.MethodPost, nil, req, nil, "storage", "v1", "object", "list", s.cfg.Bucket)
		if err != nil {
			cancel()
			return nil, err
		}
		var page []listEntry
		err = transport.DecodeResponse(resp, s.Name(), &page, http.StatusOK)
		cancel()
		if err != nil {
			return nil, err
		}
		for _, e := range page {
			// Folders come back with a null id.
			if e.ID == "" || e.Name == "" {
				continue
			}
			names = append(names, e.Name)
		}
		offset += len(page)
		if len(page) < s.cfg.PageSize {
			break
		}
	}
	return names, nil
}

// Put implements blob.Store.
func (s *Store) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string, upsert bool) error {
	method := http.MethodPost
	if upsert {
		method = http.MethodPut
	}
	req, err := s.client.NewRequest(ctx, method, nil, r, "storage", "v1", "object", s.cfg.Bucket, name)
	if err != nil {
		return err
	}
	if upsert {
		req.Header.Set("x-upsert", "true")
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Cache-Control", "max-age=3600")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	err = transport.Expect(resp, s.Name(), http.StatusOK, http.StatusCreated)
	if err != nil && isDuplicate(err) {
		return &errors.ResourceError{Operation: "put", Resource: "object", ID: name, Message: "object exists", Err: errors.ErrAlreadyExists}
	}
	return err
}

// PublicURL implements blob.URLer.
func (s *Store) PublicURL(name string) string {
	return s.client.URL(nil, "storage", "v1", "object", "public", s.cfg.Bucket, name)
}

func containsAny(s string, subs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
