package rostersync

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/rostersync/pkg/blob"
	"github.com/agentstation/rostersync/pkg/differ"
	"github.com/agentstation/rostersync/pkg/errors"
	"github.com/agentstation/rostersync/pkg/logging"
	"github.com/agentstation/rostersync/pkg/remote"
	"github.com/agentstation/rostersync/pkg/report"
	"github.com/agentstation/rostersync/pkg/resolver"
	"github.com/agentstation/rostersync/pkg/roster"
	"github.com/agentstation/rostersync/pkg/sync"
)

type fixture struct {
	dir     string
	records *remote.Memory
	objects *blob.Memory
	client  Client
}

func newFixture(t *testing.T, files ...string) *fixture {
	t.Helper()
	logging.DisableLoggingForTest(t)
	dir := t.TempDir()
	for _, name := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("img-"+name), 0o644))
	}
	f := &fixture{
		dir:     dir,
		records: remote.NewMemory("emp_id"),
		objects: blob.NewMemory(),
	}
	c, err := New(WithPoolDir(dir), WithRemote(f.records), WithBlobStore(f.objects))
	require.NoError(t, err)
	f.client = c
	return f
}

func (f *fixture) exists(name string) bool {
	_, err := os.Stat(filepath.Join(f.dir, name))
	return err == nil
}

func staff() []roster.EntityRecord {
	return []roster.EntityRecord{
		{NaturalKey: "1001", DisplayName: "Sato Hanako"},
		{NaturalKey: "1002", DisplayName: "Tanaka Taro"},
		{NaturalKey: "1003", DisplayName: "Nobody Here"},
	}
}

func stageCount(t *testing.T, r *report.Report, stage string, a report.Action) int {
	t.Helper()
	st, ok := r.Stage(stage)
	require.True(t, ok, "stage %s missing", stage)
	return st.Count(a)
}

func TestNewRequiresPoolDir(t *testing.T) {
	_, err := New(WithPoolDir(""))
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestMissingStoresAreConfigErrors(t *testing.T) {
	c, err := New(WithPoolDir(t.TempDir()))
	require.NoError(t, err)

	_, err = c.Run(context.Background(), staff(), nil)
	var cfgErr *errors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "remote", cfgErr.Component)

	_, err = c.Run(context.Background(), staff(), nil, sync.WithSkipRecords(true))
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "blob", cfgErr.Component)
}

func TestMatch(t *testing.T) {
	f := newFixture(t, "1001.jpg", "Tanaka_Taro.png")

	rec, err := f.client.Match(context.Background(), staff(), nil)
	require.NoError(t, err)

	require.Len(t, rec.Matches, 3)
	assert.Equal(t, resolver.ExactID, rec.Matches[0].Strategy)
	assert.Equal(t, resolver.FilenameContainment, rec.Matches[1].Strategy)
	assert.False(t, rec.Matches[2].Matched())
	assert.Equal(t, 2, rec.Matched())
	assert.Len(t, rec.Assets, 2)
	assert.Nil(t, rec.Relinks)

	// Matching never writes to the pool.
	assert.False(t, f.exists("1002.png"))
}

func TestReconcile(t *testing.T) {
	f := newFixture(t, "1001.jpg", "Tanaka_Taro.png")

	rec, err := f.client.Reconcile(context.Background(), staff(), nil)
	require.NoError(t, err)

	assert.Equal(t, "1001.jpg", rec.Entities[0].AssetRef)
	assert.Equal(t, "1002.png", rec.Entities[1].AssetRef)
	assert.Empty(t, rec.Entities[2].AssetRef)
	assert.True(t, f.exists("1002.png"))
	assert.True(t, f.exists("Tanaka_Taro.png"), "original must be kept")

	counts := report.Tally(rec.Relinks)
	assert.Equal(t, 1, counts[report.Created])
	assert.Equal(t, 1, counts[report.Skipped])
}

func TestRunEndToEnd(t *testing.T) {
	f := newFixture(t, "1001.jpg", "Tanaka_Taro.png", "stray.gif")
	f.records.Seed(map[string]any{"emp_id": "1001", "full_name": "old"})

	result, err := f.client.Run(context.Background(), staff(), nil)
	require.NoError(t, err)
	rep := result.Report

	assert.NotEmpty(t, rep.RunID)
	assert.False(t, rep.FinishedAt.IsZero())
	assert.Equal(t, 3, rep.Entities)
	assert.Equal(t, 2, rep.Matching.WithAsset)
	assert.Equal(t, 1, rep.UnmatchedTotal)
	assert.False(t, result.HasFailures())

	assert.Equal(t, 1, stageCount(t, rep, report.StageRelinks, report.Created))
	assert.Equal(t, 1, stageCount(t, rep, report.StageRecords, report.Updated))
	assert.Equal(t, 2, stageCount(t, rep, report.StageRecords, report.Created))
	assert.Equal(t, 2, stageCount(t, rep, report.StageUploads, report.Created))

	assert.Equal(t, 3, f.records.Len())
	keys := f.records.Keys()
	sort.Strings(keys)
	assert.Equal(t, []string{"1001", "1002", "1003"}, keys)

	_, _, ok := f.objects.Object("1002.png")
	assert.True(t, ok)
	_, _, ok = f.objects.Object("stray.gif")
	assert.False(t, ok, "unlinked pool files are not uploaded by default")

	require.NotNil(t, result.Plan)
	assert.Len(t, result.Plan.Creates, 2)
}

func TestRunIsIdempotent(t *testing.T) {
	f := newFixture(t, "1001.jpg", "Tanaka_Taro.png")

	_, err := f.client.Run(context.Background(), staff(), nil)
	require.NoError(t, err)
	second, err := f.client.Run(context.Background(), staff(), nil)
	require.NoError(t, err)

	rep := second.Report
	assert.Equal(t, 3, f.records.Len())
	assert.Equal(t, 0, stageCount(t, rep, report.StageRecords, report.Created))
	assert.Equal(t, 3, stageCount(t, rep, report.StageRecords, report.Updated))
	assert.Equal(t, 0, stageCount(t, rep, report.StageRelinks, report.Created))
	assert.Equal(t, 2, stageCount(t, rep, report.StageUploads, report.Skipped))
	assert.Equal(t, 2, f.objects.Len())
}

func TestRunDryRunMutatesNothing(t *testing.T) {
	f := newFixture(t, "1001.jpg", "Tanaka_Taro.png")

	result, err := f.client.Run(context.Background(), staff(), nil, sync.WithDryRun(true))
	require.NoError(t, err)

	assert.False(t, f.exists("1002.png"))
	assert.Zero(t, f.records.Len())
	assert.Zero(t, f.objects.Len())

	rep := result.Report
	assert.True(t, rep.DryRun)
	assert.Equal(t, 3, stageCount(t, rep, report.StageRecords, report.Created))
	// Both the existing canonical file and the would-be copy are planned.
	assert.Equal(t, 2, stageCount(t, rep, report.StageUploads, report.Created))
	assert.Contains(t, result.Summary(), "(Dry run)")
}

func TestRunUploadAll(t *testing.T) {
	f := newFixture(t, "1001.jpg", "stray.gif")

	result, err := f.client.Run(context.Background(), staff(), nil, sync.WithUploadAll(true))
	require.NoError(t, err)

	assert.Equal(t, 2, stageCount(t, result.Report, report.StageUploads, report.Created))
	_, _, ok := f.objects.Object("stray.gif")
	assert.True(t, ok)
}

func TestRunSkipStages(t *testing.T) {
	f := newFixture(t, "Tanaka_Taro.png")

	result, err := f.client.Run(context.Background(), staff(), nil,
		sync.WithSkipRelink(true), sync.WithSkipUploads(true))
	require.NoError(t, err)

	_, ok := result.Report.Stage(report.StageRelinks)
	assert.False(t, ok)
	_, ok = result.Report.Stage(report.StageUploads)
	assert.False(t, ok)
	assert.False(t, f.exists("1002.png"))
	assert.Empty(t, result.Entities[1].AssetRef)

	rec, ok := f.records.Get(firstID(t, f.records, "1002"))
	require.True(t, ok)
	_, hasPhoto := rec["photo"]
	assert.False(t, hasPhoto)
}

func firstID(t *testing.T, m *remote.Memory, key string) string {
	t.Helper()
	rows, err := m.ListKeys(context.Background(), 0, 100)
	require.NoError(t, err)
	for _, r := range rows {
		if r.NaturalKey == key {
			return r.RemoteID
		}
	}
	t.Fatalf("key %s not found", key)
	return ""
}

func TestRunApplyStrategy(t *testing.T) {
	f := newFixture(t)
	f.records.Seed(map[string]any{"emp_id": "1001"})

	result, err := f.client.Run(context.Background(), staff(), nil,
		sync.WithApplyStrategy(differ.ApplyUpdatesOnly), sync.WithSkipUploads(true))
	require.NoError(t, err)

	assert.Equal(t, 1, f.records.Len())
	assert.Equal(t, 1, stageCount(t, result.Report, report.StageRecords, report.Updated))
}

type brokenRemote struct{ *remote.Memory }

func (brokenRemote) ListKeys(context.Context, int, int) ([]remote.KeyRow, error) {
	return nil, errors.NewAPIError("memory", 401, "invalid key")
}

func TestRunBootstrapFailureWritesAbortedReport(t *testing.T) {
	logging.DisableLoggingForTest(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1001.jpg"), []byte("x"), 0o644))
	objects := blob.NewMemory()
	c, err := New(WithPoolDir(dir), WithRemote(brokenRemote{remote.NewMemory("emp_id")}), WithBlobStore(objects))
	require.NoError(t, err)

	out := t.TempDir()
	reportPath := filepath.Join(out, "report.json")
	result, err := c.Run(context.Background(), staff(), nil, sync.WithReportPath(reportPath))
	require.Error(t, err)
	assert.True(t, errors.IsBootstrap(err))
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))

	require.NotNil(t, result)
	assert.NotEmpty(t, result.Report.Aborted)
	assert.True(t, result.HasFailures())
	_, ok := result.Report.Stage(report.StageUploads)
	assert.False(t, ok, "uploads must not run after a bootstrap failure")
	_, ok = result.Report.Stage(report.StageRelinks)
	assert.False(t, ok, "relink must not run after a bootstrap failure")
	assert.Zero(t, objects.Len())

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var written map[string]any
	require.NoError(t, json.Unmarshal(data, &written))
	assert.NotEmpty(t, written["aborted"])
}

type unprovisionableBlob struct{ *blob.Memory }

func (unprovisionableBlob) EnsureBucket(context.Context) error {
	return errors.NewAPIError("storage", 503, "service unavailable")
}

func TestRunBucketFailureTouchesNothing(t *testing.T) {
	logging.DisableLoggingForTest(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Tanaka_Taro.png"), []byte("x"), 0o644))
	records := remote.NewMemory("emp_id")
	objects := blob.NewMemory()
	c, err := New(WithPoolDir(dir), WithRemote(records), WithBlobStore(unprovisionableBlob{objects}))
	require.NoError(t, err)

	result, err := c.Run(context.Background(), staff(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsBootstrap(err))
	assert.True(t, errors.Is(err, errors.ErrRemoteUnavailable))

	assert.Zero(t, records.Creates)
	assert.Zero(t, records.Len())
	assert.Zero(t, objects.Len())
	_, err = os.Stat(filepath.Join(dir, "1002.png"))
	assert.True(t, os.IsNotExist(err), "no canonical copy before bootstrap completes")

	assert.NotEmpty(t, result.Report.Aborted)
	for _, stage := range []string{report.StageRelinks, report.StageRecords, report.StageUploads} {
		_, ok := result.Report.Stage(stage)
		assert.False(t, ok, "stage %s must not run", stage)
	}
}

func TestRunMissingPoolIsBootstrap(t *testing.T) {
	logging.DisableLoggingForTest(t)
	c, err := New(WithPoolDir(filepath.Join(t.TempDir(), "missing")),
		WithRemote(remote.NewMemory("emp_id")), WithBlobStore(blob.NewMemory()))
	require.NoError(t, err)

	result, err := c.Run(context.Background(), staff(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsBootstrap(err))
	assert.Empty(t, result.Report.Stages)
}

func TestRunWritesOutputs(t *testing.T) {
	f := newFixture(t, "Tanaka_Taro.png")
	out := t.TempDir()
	reportPath := filepath.Join(out, "report.md")
	outputPath := filepath.Join(out, "staff.json")

	_, err := f.client.Run(context.Background(), staff(), nil,
		sync.WithReportPath(reportPath), sync.WithOutputPath(outputPath), sync.WithRejected(2))
	require.NoError(t, err)

	md, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.NotEmpty(t, md)

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	var records []map[string]any
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 3)
	assert.Equal(t, "1002", records[1]["empId"])
	assert.Equal(t, "1002.png", records[1]["avatar"])
	assert.NotContains(t, records[2], "avatar")
}

func TestRunCanceled(t *testing.T) {
	f := newFixture(t, "1001.jpg")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.client.Run(ctx, staff(), nil)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.NotEmpty(t, result.Report.Aborted)
	assert.Zero(t, f.records.Len())
}

func TestRunInvalidOptions(t *testing.T) {
	f := newFixture(t)
	_, err := f.client.Run(context.Background(), staff(), nil, sync.WithConcurrency(0))
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestHooks(t *testing.T) {
	f := newFixture(t, "1001.jpg")

	var matched []string
	stages := map[string]int{}
	var finished *report.Report
	f.client.OnMatch(func(e roster.EntityRecord, m resolver.MatchResult) {
		if m.Matched() {
			matched = append(matched, e.NaturalKey)
		}
	})
	f.client.OnOutcome(func(stage string, _ report.Outcome) { stages[stage]++ })
	f.client.OnReport(func(r *report.Report) { finished = r })

	result, err := f.client.Run(context.Background(), staff(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"1001"}, matched)
	assert.Equal(t, 1, stages[report.StageRelinks])
	assert.Equal(t, 3, stages[report.StageRecords])
	assert.Equal(t, 1, stages[report.StageUploads])
	assert.Same(t, result.Report, finished)
}

func TestPushAndUpload(t *testing.T) {
	f := newFixture(t, "1001.jpg", "stray.gif")
	entities := []roster.EntityRecord{{NaturalKey: "1001", AssetRef: "1001.jpg"}}

	plan, outcomes, err := f.client.Push(context.Background(), entities)
	require.NoError(t, err)
	assert.Len(t, plan.Creates, 1)
	require.Len(t, outcomes, 1)
	assert.Equal(t, report.Created, outcomes[0].Action)

	rec, ok := f.records.Get(firstID(t, f.records, "1001"))
	require.True(t, ok)
	assert.Equal(t, "1001.jpg", rec["photo"])

	outcomes, err = f.client.Upload(context.Background(), entities)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, 1, f.objects.Len())

	outcomes, err = f.client.Upload(context.Background(), entities, sync.WithUploadAll(true))
	require.NoError(t, err)
	counts := report.Tally(outcomes)
	assert.Equal(t, 1, counts[report.Skipped])
	assert.Equal(t, 1, counts[report.Created])
}
