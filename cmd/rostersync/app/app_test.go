package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/rostersync/pkg/blob"
	"github.com/agentstation/rostersync/pkg/errors"
	"github.com/agentstation/rostersync/pkg/logging"
	"github.com/agentstation/rostersync/pkg/remote"
)

type workspace struct {
	dir      string
	pool     string
	entities string
	config   string
}

// newWorkspace writes a pool, a roster and a config file selecting the
// in-memory stores, and isolates the environment.
func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, k := range []string{"SUPABASE_URL", "SUPABASE_SERVICE_ROLE_KEY", "SUPABASE_SERVICE_KEY", "DATABASE_URL", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}

	w := &workspace{dir: t.TempDir()}
	w.pool = filepath.Join(w.dir, "photos")
	require.NoError(t, os.Mkdir(w.pool, 0o755))
	for _, name := range []string{"1001.jpg", "Tanaka_Taro.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(w.pool, name), []byte(name), 0o644))
	}

	w.entities = filepath.Join(w.dir, "staff.json")
	require.NoError(t, os.WriteFile(w.entities, []byte(`[
  {"empId": 1001, "fullName": "Sato Hanako"},
  {"empId": 1002, "fullName": "Tanaka Taro"},
  {"empId": "", "fullName": "No Key"}
]`), 0o644))

	w.config = filepath.Join(w.dir, "rostersync.yaml")
	require.NoError(t, os.WriteFile(w.config, []byte(`input:
  entities: `+w.entities+`
pool:
  dir: `+w.pool+`
remote:
  kind: memory
blob:
  kind: memory
`), 0o644))
	return w
}

type harness struct {
	app     *App
	out     *bytes.Buffer
	records *remote.Memory
	objects *blob.Memory
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		out:     &bytes.Buffer{},
		records: remote.NewMemory("emp_id"),
		objects: blob.NewMemory(),
	}
	a, err := New("1.2.3", "abc123", "2026-01-01", "test",
		WithLogger(logging.NewNopLogger()),
		WithOutput(h.out),
		WithRemote(h.records),
		WithBlobStore(h.objects),
	)
	require.NoError(t, err)
	h.app = a
	return h
}

func (h *harness) execute(args ...string) error {
	return h.app.Execute(context.Background(), args)
}

func TestVersionCommand(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.execute("version", "-v"))

	out := h.out.String()
	assert.Contains(t, out, "rostersync 1.2.3")
	assert.Contains(t, out, "commit:   abc123")
	assert.Nil(t, h.app.Config(), "version must not load configuration")
}

func TestRunCommand(t *testing.T) {
	w := newWorkspace(t)
	h := newHarness(t)

	require.NoError(t, h.execute("--config", w.config, "run", "-o", "json"))

	assert.Equal(t, []string{"1001", "1002"}, h.records.Keys())
	assert.Equal(t, 2, h.objects.Len())
	_, err := os.Stat(filepath.Join(w.pool, "1002.png"))
	assert.NoError(t, err)

	var rep map[string]any
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &rep))
	assert.EqualValues(t, 2, rep["entities"])
	assert.EqualValues(t, 1, rep["rejected"])
}

func TestRunCommandDryRun(t *testing.T) {
	w := newWorkspace(t)
	h := newHarness(t)

	require.NoError(t, h.execute("--config", w.config, "--dry-run", "run", "-o", "table"))

	assert.Zero(t, h.records.Len())
	assert.Zero(t, h.objects.Len())
	_, err := os.Stat(filepath.Join(w.pool, "1002.png"))
	assert.True(t, os.IsNotExist(err))
	assert.Contains(t, h.out.String(), "(dry run)")
}

func TestRunCommandFlagOverrides(t *testing.T) {
	w := newWorkspace(t)
	h := newHarness(t)

	other := filepath.Join(w.dir, "other.json")
	require.NoError(t, os.WriteFile(other, []byte(`[{"empId": "2001", "fullName": "Someone"}]`), 0o644))
	reportPath := filepath.Join(w.dir, "report.yaml")

	require.NoError(t, h.execute("--config", w.config, "run",
		"--entities", other, "--skip-uploads", "--report", reportPath, "-o", "json"))

	assert.Equal(t, []string{"2001"}, h.records.Keys())
	assert.Zero(t, h.objects.Len())
	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "runId")
}

func TestMatchCommand(t *testing.T) {
	w := newWorkspace(t)
	h := newHarness(t)

	require.NoError(t, h.execute("--config", w.config, "match", "-o", "json"))

	var matches []map[string]any
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &matches))
	require.Len(t, matches, 2)
	assert.Equal(t, "EXACT_ID", matches[0]["strategy"])
	assert.Zero(t, h.records.Len())
	_, err := os.Stat(filepath.Join(w.pool, "1002.png"))
	assert.True(t, os.IsNotExist(err), "match must not write to the pool")
}

func TestRelinkCommandWritesRoster(t *testing.T) {
	w := newWorkspace(t)
	h := newHarness(t)
	outPath := filepath.Join(w.dir, "relinked.json")

	require.NoError(t, h.execute("--config", w.config, "relink", "--output", outPath, "-o", "json"))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"avatar": "1002.png"`)
	assert.Zero(t, h.records.Len())
	assert.Zero(t, h.objects.Len())
}

func TestPushAndUploadCommands(t *testing.T) {
	w := newWorkspace(t)
	h := newHarness(t)

	require.NoError(t, h.execute("--config", w.config, "push", "-o", "json"))
	assert.Equal(t, 2, h.records.Len())
	assert.Zero(t, h.objects.Len())

	h.out.Reset()
	require.NoError(t, h.execute("--config", w.config, "upload", "-o", "json"))
	assert.Equal(t, 2, h.objects.Len())
}

// putFailingBlob accepts the bucket but rejects every object.
type putFailingBlob struct{ *blob.Memory }

func (*putFailingBlob) Put(context.Context, string, io.Reader, int64, string, bool) error {
	return errors.New("disk full")
}

func TestRunCommandMissingEntities(t *testing.T) {
	w := newWorkspace(t)
	require.NoError(t, os.WriteFile(w.config, []byte("pool:\n  dir: "+w.pool+"\nremote:\n  kind: memory\nblob:\n  kind: memory\n"), 0o644))
	h := newHarness(t)

	err := h.execute("--config", w.config, "run")
	var cfgErr *errors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "input", cfgErr.Component)
}

func TestInvalidFormat(t *testing.T) {
	w := newWorkspace(t)
	h := newHarness(t)

	err := h.execute("--config", w.config, "match", "-o", "xml")
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestRunCommandReportsFailures(t *testing.T) {
	w := newWorkspace(t)
	out := &bytes.Buffer{}
	a, err := New("dev", "", "", "",
		WithLogger(logging.NewNopLogger()),
		WithOutput(out),
		WithRemote(remote.NewMemory("emp_id")),
		WithBlobStore(&putFailingBlob{Memory: blob.NewMemory()}),
	)
	require.NoError(t, err)

	err = a.Execute(context.Background(), []string{"--config", w.config, "run", "-o", "table"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "2 failed items"), err.Error())
	assert.Contains(t, out.String(), "Errors (2 of 2)")
}
