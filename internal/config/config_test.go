package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/rostersync/pkg/errors"
)

// isolate points HOME at an empty directory and clears variables that
// would leak in from the developer's shell.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, k := range []string{"SUPABASE_URL", "SUPABASE_SERVICE_ROLE_KEY", "SUPABASE_SERVICE_KEY", "DATABASE_URL"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "photos", cfg.Pool.Dir)
	assert.Equal(t, "ISO-8859-1", cfg.Encoding.Corrupted)
	assert.Equal(t, "Shift_JIS", cfg.Encoding.Original)
	assert.Equal(t, "empId", cfg.Fields.Key)
	assert.Equal(t, "resumeId", cfg.Bridge.Fields.Key)
	assert.Equal(t, RemotePostgREST, cfg.Remote.Kind)
	assert.Equal(t, "staff", cfg.Remote.Table)
	assert.Equal(t, 1000, cfg.Remote.PageSize)
	assert.Equal(t, BlobSupabase, cfg.Blob.Kind)
	assert.True(t, cfg.Blob.Public)
	assert.Equal(t, int64(5*1024*1024), cfg.Blob.FileSizeLimit)
	assert.Equal(t, 5, cfg.Sync.Concurrency)
	assert.Equal(t, 30*time.Minute, cfg.Sync.Timeout)
	assert.Empty(t, cfg.ConfigFile)
}

func TestLoadSupabaseEnv(t *testing.T) {
	isolate(t)
	t.Setenv("SUPABASE_URL", "https://xyz.supabase.co")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "service")
	t.Setenv("ROSTERSYNC_SYNC_CONCURRENCY", "9")
	t.Setenv("ROSTERSYNC_BLOB_BUCKET", "staff-photos")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "https://xyz.supabase.co", cfg.Remote.URL)
	assert.Equal(t, "service", cfg.Remote.Key)
	assert.Equal(t, 9, cfg.Sync.Concurrency)
	assert.Equal(t, "staff-photos", cfg.Blob.Bucket)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "rostersync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
pool:
  dir: /data/photos
  exclude: ["*.bak"]
fields:
  key: employee_no
remote:
  kind: postgres
  dsn: postgres://localhost/hr
blob:
  kind: local
  dir: /data/bucket
sync:
  apply_strategy: updates-only
`), 0o644))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.ConfigFile)
	assert.Equal(t, "/data/photos", cfg.Pool.Dir)
	assert.Equal(t, []string{"*.bak"}, cfg.Pool.Exclude)
	assert.Equal(t, "employee_no", cfg.Fields.Key)
	assert.Equal(t, "fullName", cfg.Fields.Name, "unset keys keep their defaults")
	assert.Equal(t, RemotePostgres, cfg.Remote.Kind)
	assert.Equal(t, "updates-only", cfg.Sync.ApplyStrategy)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	var cfgErr *errors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Pool:   Pool{Dir: "photos"},
			Remote: Remote{Kind: RemoteMemory},
			Blob:   Blob{Kind: BlobMemory},
			Sync:   Sync{Concurrency: 5, ApplyStrategy: "all"},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"postgrest without key", func(c *Config) { c.Remote = Remote{Kind: RemotePostgREST, URL: "https://x"} }},
		{"postgres without dsn", func(c *Config) { c.Remote.Kind = RemotePostgres }},
		{"unknown remote", func(c *Config) { c.Remote.Kind = "mongo" }},
		{"supabase blob without url", func(c *Config) { c.Blob.Kind = BlobSupabase }},
		{"local blob without dir", func(c *Config) { c.Blob.Kind = BlobLocal }},
		{"unknown blob", func(c *Config) { c.Blob.Kind = "s3" }},
		{"zero concurrency", func(c *Config) { c.Sync.Concurrency = 0 }},
		{"bad strategy", func(c *Config) { c.Sync.ApplyStrategy = "some" }},
		{"no pool", func(c *Config) { c.Pool.Dir = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			var cfgErr *errors.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestValidateForSkipsUnusedStores(t *testing.T) {
	c := &Config{
		Pool:   Pool{Dir: "photos"},
		Remote: Remote{Kind: RemotePostgres},
		Blob:   Blob{Kind: BlobLocal},
		Sync:   Sync{Concurrency: 5, ApplyStrategy: "all"},
	}
	assert.NoError(t, c.ValidateFor(false, false))
	assert.Error(t, c.ValidateFor(true, false))
	assert.Error(t, c.ValidateFor(false, true))

	c.Remote.DSN = "postgres://localhost/db"
	assert.NoError(t, c.ValidateFor(true, false))
}
