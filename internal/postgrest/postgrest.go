// Package postgrest implements remote.Store over a PostgREST endpoint such
// as the Supabase REST API.
package postgrest

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/agentstation/rostersync/internal/transport"
	"github.com/agentstation/rostersync/pkg/constants"
	"github.com/agentstation/rostersync/pkg/errors"
	"github.com/agentstation/rostersync/pkg/remote"
	"github.com/agentstation/rostersync/pkg/roster"
)

// Config addresses one table.
type Config struct {
	URL       string // project URL, e.g. https://xyz.supabase.co
	Key       string // service role key
	Table     string
	KeyColumn string
	IDColumn  string
}

// Store is a PostgREST-backed remote.Store.
type Store struct {
	client *transport.Client
	cfg    Config
}

var _ remote.Store = (*Store)(nil)

// New returns a store for cfg. Empty table and column names get defaults.
func New(cfg Config) (*Store, error) {
	if cfg.Table == "" {
		cfg.Table = constants.DefaultTable
	}
	if cfg.KeyColumn == "" {
		cfg.KeyColumn = constants.DefaultKeyColumn
	}
	if cfg.IDColumn == "" {
		cfg.IDColumn = constants.DefaultIDColumn
	}
	if cfg.Key == "" {
		return nil, errors.NewConfigError("postgrest", "service key is required", nil)
	}
	client, err := transport.New(cfg.URL, cfg.Key, &transport.SupabaseAuth{}, "postgrest")
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

// Name implements remote.Store.
func (s *Store) Name() string {
	return "postgrest"
}

func (s *Store) table() []string {
	return []string{"rest", "v1", s.cfg.Table}
}

// ListKeys implements remote.Store. Rows are ordered by id so offsets are
// stable across pages.
func (s *Store) ListKeys(ctx context.Context, offset, limit int) ([]remote.KeyRow, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.ListTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("select", s.cfg.IDColumn+","+s.cfg.KeyColumn)
	q.Set("order", s.cfg.IDColumn+".asc")
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))

	resp, err := s.client.DoJSON(ctx, http.MethodGet, q, nil, nil, s.table()...)
	if err != nil {
		return nil, err
	}
	var rows []map[string]any
	if err := transport.DecodeResponse(resp, s.Name(), &rows, http.StatusOK, http.StatusPartialContent); err != nil {
		return nil, err
	}

	out := make([]remote.KeyRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, remote.KeyRow{
			NaturalKey: roster.Stringify(row[s.cfg.KeyColumn]),
			RemoteID:   roster.Stringify(row[s.cfg.IDColumn]),
		})
	}
	return out, nil
}

// Create implements remote.Store. The inserted row is returned so its id
// can be indexed.
func (s *Store) Create(ctx context.Context, payload map[string]any) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DefaultHTTPTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("select", s.cfg.IDColumn)
	header := http.Header{"Prefer": {"return=representation"}}

	resp, err := s.client.DoJSON(ctx, http.MethodPost, q, payload, header, s.table()...)
	if err != nil {
		return "", err
	}
	var rows []map[string]any
	if err := transport.DecodeResponse(resp, s.Name(), &rows, http.StatusOK, http.StatusCreated); err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", errors.NewResourceError("create", "record", "", errors.New("no row returned"))
	}
	id := roster.Stringify(rows[0][s.cfg.IDColumn])
	if id == "" {
		return "", errors.NewResourceError("create", "record", "", errors.New("row has no "+s.cfg.IDColumn))
	}
	return id, nil
}

// Update implements remote.Store.
func (s *Store) Update(ctx context.Context, remoteID string, patch map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DefaultHTTPTimeout)
	defer cancel()

	q := url.Values{}
	q.Set(s.cfg.IDColumn, "eq."+remoteID)
	header := http.Header{"Prefer": {"return=minimal"}}

	resp, err := s.client.DoJSON(ctx, http.MethodPatch, q, patch, header, s.table()...)
	if err != nil {
		return err
	}
	return transport.Expect(resp, s.Name(), http.StatusOK, http.StatusNoContent)
}
