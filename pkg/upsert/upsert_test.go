package upsert

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/rostersync/pkg/differ"
	"github.com/agentstation/rostersync/pkg/errors"
	"github.com/agentstation/rostersync/pkg/logging"
	"github.com/agentstation/rostersync/pkg/remote"
	"github.com/agentstation/rostersync/pkg/report"
	"github.com/agentstation/rostersync/pkg/roster"
)

func entity(key string) roster.EntityRecord {
	return roster.EntityRecord{NaturalKey: key, DisplayName: "name " + key}
}

func seededStore(keys ...string) *remote.Memory {
	m := remote.NewMemory("emp_id")
	for _, k := range keys {
		m.Seed(map[string]any{"emp_id": k})
	}
	return m
}

// flakyStore fails creates and updates for chosen keys.
type flakyStore struct {
	*remote.Memory
	fail map[string]error
}

func (f *flakyStore) Create(ctx context.Context, payload map[string]any) (string, error) {
	if err, ok := f.fail[fmt.Sprint(payload["emp_id"])]; ok {
		return "", err
	}
	return f.Memory.Create(ctx, payload)
}

func (f *flakyStore) Update(ctx context.Context, id string, patch map[string]any) error {
	if err, ok := f.fail[fmt.Sprint(patch["emp_id"])]; ok {
		return err
	}
	return f.Memory.Update(ctx, id, patch)
}

type brokenList struct{ *remote.Memory }

func (brokenList) ListKeys(context.Context, int, int) ([]remote.KeyRow, error) {
	return nil, errors.NewAPIError("memory", 401, "bad key")
}

func TestSyncCreatesAndUpdates(t *testing.T) {
	store := seededStore("1", "2")
	e := New(store)

	plan, outcomes, err := e.Sync(context.Background(), []roster.EntityRecord{entity("1"), entity("3"), entity("2")})
	require.NoError(t, err)

	assert.Len(t, plan.Creates, 1)
	assert.Len(t, plan.Updates, 2)
	require.Len(t, outcomes, 3)
	assert.Equal(t, []string{"1", "3", "2"}, []string{outcomes[0].Key, outcomes[1].Key, outcomes[2].Key})
	assert.Equal(t, report.Updated, outcomes[0].Action)
	assert.Equal(t, report.Created, outcomes[1].Action)
	assert.Equal(t, report.Updated, outcomes[2].Action)

	assert.Equal(t, 1, store.Creates)
	assert.Equal(t, 2, store.Updates)
	assert.Equal(t, []string{"1", "2", "3"}, store.Keys())

	rec, ok := store.Get("1")
	require.True(t, ok)
	assert.Equal(t, "name 1", rec["full_name"])
}

func TestSyncIsIdempotent(t *testing.T) {
	store := seededStore()
	entities := []roster.EntityRecord{entity("10"), entity("11"), entity("12")}

	_, first, err := New(store).Sync(context.Background(), entities)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Tally(first)[report.Created])

	_, second, err := New(store).Sync(context.Background(), entities)
	require.NoError(t, err)
	counts := report.Tally(second)
	assert.Equal(t, 0, counts[report.Created])
	assert.Equal(t, 3, counts[report.Updated])
	assert.Equal(t, 3, store.Len())
}

func TestSyncRepeatedKeyCreatesOnce(t *testing.T) {
	store := seededStore()
	_, outcomes, err := New(store).Sync(context.Background(), []roster.EntityRecord{entity("7"), entity("7")})
	require.NoError(t, err)

	require.Len(t, outcomes, 2)
	assert.Equal(t, report.Created, outcomes[0].Action)
	assert.Equal(t, report.Updated, outcomes[1].Action)
	assert.Equal(t, 1, store.Len())
}

func TestSyncDryRunMakesNoCalls(t *testing.T) {
	store := seededStore("1")
	e := New(store)
	e.DryRun = true

	_, outcomes, err := e.Sync(context.Background(), []roster.EntityRecord{entity("1"), entity("2")})
	require.NoError(t, err)

	counts := report.Tally(outcomes)
	assert.Equal(t, 1, counts[report.Created])
	assert.Equal(t, 1, counts[report.Updated])
	assert.Zero(t, store.Creates)
	assert.Zero(t, store.Updates)
	assert.Equal(t, 1, store.Len())
}

func TestSyncIsolatesItemFailures(t *testing.T) {
	long := errors.NewAPIError("memory", 400, strings.Repeat("x", 300))
	store := &flakyStore{Memory: seededStore("1"), fail: map[string]error{"2": long, "1": errors.New("boom")}}

	_, outcomes, err := New(store).Sync(context.Background(), []roster.EntityRecord{entity("1"), entity("2"), entity("3")})
	require.NoError(t, err)

	require.Len(t, outcomes, 3)
	assert.Equal(t, report.Failed, outcomes[0].Action)
	assert.Contains(t, outcomes[0].Detail, "boom")
	assert.Equal(t, report.Failed, outcomes[1].Action)
	assert.LessOrEqual(t, len([]rune(outcomes[1].Detail)), 100)
	assert.Equal(t, report.Created, outcomes[2].Action)
}

func TestSyncBootstrapFailure(t *testing.T) {
	store := brokenList{seededStore()}
	plan, outcomes, err := New(store).Sync(context.Background(), []roster.EntityRecord{entity("1")})
	require.Error(t, err)
	assert.True(t, errors.IsBootstrap(err))
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
	assert.Nil(t, plan)
	assert.Empty(t, outcomes)
	assert.Zero(t, store.Creates)
}

func TestPrepareThenApply(t *testing.T) {
	store := seededStore("1")
	e := New(store)

	idx, err := e.Prepare(context.Background())
	require.NoError(t, err)
	assert.Len(t, idx, 1)

	plan, outcomes, err := e.Apply(context.Background(), idx, []roster.EntityRecord{entity("1"), entity("2")})
	require.NoError(t, err)
	assert.Len(t, plan.Updates, 1)
	assert.Len(t, plan.Creates, 1)
	assert.Len(t, outcomes, 2)
	assert.Equal(t, 1, store.Creates)
	assert.Contains(t, idx, "2", "created keys are added to the index")
}

func TestPrepareBootstrapFailure(t *testing.T) {
	store := brokenList{seededStore()}
	idx, err := New(store).Prepare(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsBootstrap(err))
	assert.Nil(t, idx)
	assert.Zero(t, store.Creates)
}

func TestSyncLogFields(t *testing.T) {
	logs := logging.CaptureLoggingForTest(t)
	store := &flakyStore{Memory: seededStore(), fail: map[string]error{"2": errors.NewAPIError("memory", 500, "boom")}}

	_, _, err := New(store).Sync(context.Background(), []roster.EntityRecord{entity("1"), entity("2")})
	require.NoError(t, err)

	for _, line := range logs.Lines() {
		assert.LessOrEqual(t, strings.Count(line, `"remote":`), 1, line)
		assert.LessOrEqual(t, strings.Count(line, `"natural_key":`), 1, line)
	}
	assert.True(t, logs.ContainsAll("Fetched remote key index", `"remote":"memory"`))
	assert.True(t, logs.ContainsAll("Record sync failed", `"natural_key":"2"`, `"operation":"create"`))
}

// cancelStore cancels the run after the first create.
type cancelStore struct {
	*remote.Memory
	cancel context.CancelFunc
}

func (c *cancelStore) Create(ctx context.Context, payload map[string]any) (string, error) {
	id, err := c.Memory.Create(ctx, payload)
	c.cancel()
	return id, err
}

func TestSyncCancellationMarksRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := &cancelStore{Memory: seededStore(), cancel: cancel}

	_, outcomes, err := New(store).Sync(ctx, []roster.EntityRecord{entity("1"), entity("2"), entity("3")})
	require.ErrorIs(t, err, context.Canceled)

	require.Len(t, outcomes, 3)
	assert.Equal(t, report.Created, outcomes[0].Action)
	for _, o := range outcomes[1:] {
		assert.Equal(t, report.Failed, o.Action)
		assert.True(t, strings.HasPrefix(o.Detail, "not attempted"), o.Detail)
	}
	assert.Equal(t, 1, store.Len())
}

func TestSyncApplyStrategy(t *testing.T) {
	store := seededStore("1")
	e := New(store)
	e.Strategy = differ.ApplyUpdatesOnly

	plan, outcomes, err := e.Sync(context.Background(), []roster.EntityRecord{entity("1"), entity("2")})
	require.NoError(t, err)
	assert.Empty(t, plan.Creates)
	require.Len(t, outcomes, 1)
	assert.Equal(t, "1", outcomes[0].Key)
	assert.Zero(t, store.Creates)
}

func TestColumnPayload(t *testing.T) {
	payload := ColumnPayload(DefaultColumns())

	got := payload(roster.EntityRecord{
		NaturalKey:    "42",
		DisplayName:   "山田 太郎",
		RomanizedName: "YAMADA TARO",
		Attributes:    map[string]any{"dept": "sales"},
	})
	assert.Equal(t, map[string]any{
		"emp_id":          "42",
		"full_name":       "山田 太郎",
		"full_name_roman": "YAMADA TARO",
		"dept":            "sales",
	}, got)

	got = payload(roster.EntityRecord{NaturalKey: "42", SourceAssetRef: "old.jpg"})
	assert.NotContains(t, got, "photo")

	got = payload(roster.EntityRecord{NaturalKey: "42", AssetRef: "42.jpg", SourceAssetRef: "old.jpg"})
	assert.Equal(t, "42.jpg", got["photo"])
	_, hasName := got["full_name"]
	assert.False(t, hasName)
}
