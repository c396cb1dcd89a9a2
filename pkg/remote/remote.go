// Package remote defines the persisted store that entity records are
// synchronized into, and the key inventory rebuilt from it on every run.
package remote

import (
	"context"

	"github.com/agentstation/rostersync/pkg/constants"
	"github.com/agentstation/rostersync/pkg/errors"
	"github.com/agentstation/rostersync/pkg/logging"
)

// KeyRow pairs a natural key with the store-assigned record id.
type KeyRow struct {
	NaturalKey string `json:"naturalKey"`
	RemoteID   string `json:"remoteId"`
}

// Store is a key-addressable table.
type Store interface {
	// ListKeys returns up to limit rows starting at offset. Fewer rows than
	// limit means there are no more.
	ListKeys(ctx context.Context, offset, limit int) ([]KeyRow, error)
	// Create inserts a record and returns its new remote id.
	Create(ctx context.Context, payload map[string]any) (string, error)
	// Update applies a partial patch to the record with the given id.
	Update(ctx context.Context, remoteID string, patch map[string]any) error
	// Name identifies the store in logs and reports.
	Name() string
}

// KeyIndex maps natural keys to remote ids for one run.
type KeyIndex map[string]string

// Lookup returns the remote id for a natural key.
func (k KeyIndex) Lookup(naturalKey string) (string, bool) {
	id, ok := k[naturalKey]
	return id, ok
}

// FetchKeyIndex pages through the whole inventory, stopping at the first
// short page. Any failure is a bootstrap error. Rows with an empty key are
// ignored; for repeated keys the first row wins.
func FetchKeyIndex(ctx context.Context, store Store, pageSize int) (KeyIndex, error) {
	if pageSize <= 0 {
		pageSize = constants.DefaultPageSize
	}
	logger := logging.FromContext(ctx)
	idx := make(KeyIndex)
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.WrapBootstrap("fetch key index", err)
		}
		rows, err := store.ListKeys(ctx, offset, pageSize)
		if err != nil {
			return nil, errors.WrapBootstrap("fetch key index", err)
		}
		for _, row := range rows {
			if row.NaturalKey == "" {
				continue
			}
			if _, seen := idx[row.NaturalKey]; !seen {
				idx[row.NaturalKey] = row.RemoteID
			}
		}
		offset += len(rows)
		logger.Debug().Int("offset", offset).Int("page", len(rows)).Msg("Fetched key page")
		if len(rows) < pageSize {
			break
		}
	}
	logger.Info().Int("keys", len(idx)).Msg("Fetched remote key index")
	return idx, nil
}
