// Package pgstore implements remote.Store directly against a Postgres
// table, for projects reachable by DSN rather than through PostgREST.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lib/pq"

	"github.com/agentstation/rostersync/pkg/constants"
	"github.com/agentstation/rostersync/pkg/errors"
	"github.com/agentstation/rostersync/pkg/remote"
)

// uniqueViolation is the SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// Config addresses one table.
type Config struct {
	DSN       string
	Table     string
	KeyColumn string
	IDColumn  string
}

// Store is a Postgres-backed remote.Store. The connection is opened on
// first use.
type Store struct {
	cfg    Config
	openDB sqlOpenFunc

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

var _ remote.Store = (*Store)(nil)

// New returns a store for cfg. Empty table and column names get defaults.
func New(cfg Config) (*Store, error) {
	cfg.DSN = strings.TrimSpace(cfg.DSN)
	if cfg.DSN == "" {
		return nil, errors.NewConfigError("postgres", "dsn is required", nil)
	}
	if cfg.Table == "" {
		cfg.Table = constants.DefaultTable
	}
	if cfg.KeyColumn == "" {
		cfg.KeyColumn = constants.DefaultKeyColumn
	}
	if cfg.IDColumn == "" {
		cfg.IDColumn = constants.DefaultIDColumn
	}
	return &Store{cfg: cfg, openDB: sql.Open}, nil
}

// Name implements remote.Store.
func (s *Store) Name() string {
	return "postgres"
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureReady(ctx context.Context) error {
	s.initOnce.Do(func() {
		db, err := s.openDB("postgres", s.cfg.DSN)
		if err != nil {
			s.initErr = errors.NewConfigError("postgres", "open database", err)
			return
		}
		pctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
		defer cancel()
		if err := db.PingContext(pctx); err != nil {
			_ = db.Close()
			s.initErr = &errors.APIError{Remote: s.Name(), Message: err.Error(), Err: err}
			return
		}
		s.db = db
	})
	return s.initErr
}

// ListKeys implements remote.Store.
func (s *Store) ListKeys(ctx context.Context, offset, limit int) ([]remote.KeyRow, error) {
	if err := s.ensureReady(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, constants.ListTimeout)
	defer cancel()

	id, key := pq.QuoteIdentifier(s.cfg.IDColumn), pq.QuoteIdentifier(s.cfg.KeyColumn)
	query := fmt.Sprintf("SELECT %s::text, COALESCE(%s::text, '') FROM %s ORDER BY %s OFFSET $1 LIMIT $2",
		id, key, pq.QuoteIdentifier(s.cfg.Table), id)
	rows, err := s.db.QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, s.wrap("list", "", err)
	}
	defer rows.Close()

	out := make([]remote.KeyRow, 0, limit)
	for rows.Next() {
		var row remote.KeyRow
		if err := rows.Scan(&row.RemoteID, &row.NaturalKey); err != nil {
			return nil, s.wrap("list", "", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("list", "", err)
	}
	return out, nil
}

// Create implements remote.Store.
func (s *Store) Create(ctx context.Context, payload map[string]any) (string, error) {
	if err := s.ensureReady(ctx); err != nil {
		return "", err
	}
	query, args, err := buildInsert(s.cfg.Table, s.cfg.IDColumn, payload)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	var id string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return "", s.wrap("create", "", err)
	}
	return id, nil
}

// Update implements remote.Store.
func (s *Store) Update(ctx context.Context, remoteID string, patch map[string]any) error {
	if err := s.ensureReady(ctx); err != nil {
		return err
	}
	query, args, err := buildUpdate(s.cfg.Table, s.cfg.IDColumn, remoteID, patch)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return s.wrap("update", remoteID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NewNotFoundError("record", remoteID)
	}
	return nil
}

func (s *Store) wrap(op, id string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return &errors.ResourceError{Operation: op, Resource: "record", ID: id, Message: pqErr.Message, Err: errors.ErrAlreadyExists}
	}
	return errors.WrapResource(op, "record", id, err)
}

// columns returns payload's keys in a stable order.
func columns(payload map[string]any) []string {
	cols := make([]string, 0, len(payload))
	for c := range payload {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// value converts nested values to JSON text for json/jsonb columns.
func value(v any) (any, error) {
	switch v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
	return v, nil
}

func buildInsert(table, idColumn string, payload map[string]any) (string, []any, error) {
	if len(payload) == 0 {
		return "", nil, errors.NewValidationError("payload", nil, "empty insert")
	}
	cols := columns(payload)
	quoted := make([]string, len(cols))
	params := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		v, err := value(payload[c])
		if err != nil {
			return "", nil, errors.WrapValidation(c, err)
		}
		quoted[i] = pq.QuoteIdentifier(c)
		params[i] = fmt.Sprintf("$%d", i+1)
		args[i] = v
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s::text",
		pq.QuoteIdentifier(table), strings.Join(quoted, ", "), strings.Join(params, ", "), pq.QuoteIdentifier(idColumn))
	return query, args, nil
}

func buildUpdate(table, idColumn, remoteID string, patch map[string]any) (string, []any, error) {
	if len(patch) == 0 {
		return "", nil, errors.NewValidationError("patch", nil, "empty update")
	}
	cols := columns(patch)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		v, err := value(patch[c])
		if err != nil {
			return "", nil, errors.WrapValidation(c, err)
		}
		sets[i] = fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(c), i+1)
		args = append(args, v)
	}
	args = append(args, remoteID)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s::text = $%d",
		pq.QuoteIdentifier(table), strings.Join(sets, ", "), pq.QuoteIdentifier(idColumn), len(args))
	return query, args, nil
}
