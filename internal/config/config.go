// Package config loads rostersync configuration from .env files, a YAML
// config file and the environment, in that order of increasing precedence.
// Command-line flags are applied on top by the CLI.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/rostersync/pkg/constants"
	"github.com/agentstation/rostersync/pkg/differ"
	"github.com/agentstation/rostersync/pkg/errors"
	"github.com/agentstation/rostersync/pkg/roster"
)

// EnvPrefix prefixes every environment variable read by AutomaticEnv.
const EnvPrefix = "ROSTERSYNC"

// Remote store kinds.
const (
	RemotePostgREST = "postgrest"
	RemotePostgres  = "postgres"
	RemoteMemory    = "memory"
)

// Blob store kinds.
const (
	BlobSupabase = "supabase"
	BlobGCS      = "gcs"
	BlobLocal    = "local"
	BlobMemory   = "memory"
)

// Config is the full run configuration. It is a plain value handed to
// constructors; nothing reads viper after Load returns.
type Config struct {
	ConfigFile string `mapstructure:"-"`

	Input    Input           `mapstructure:"input"`
	Pool     Pool            `mapstructure:"pool"`
	Encoding Encoding        `mapstructure:"encoding"`
	Fields   roster.FieldMap `mapstructure:"fields"`
	Bridge   Bridge          `mapstructure:"bridge"`
	Remote   Remote          `mapstructure:"remote"`
	Blob     Blob            `mapstructure:"blob"`
	Sync     Sync            `mapstructure:"sync"`
	Report   Report          `mapstructure:"report"`
	Output   Output          `mapstructure:"output"`
}

// Input names the entity source file.
type Input struct {
	Entities string `mapstructure:"entities"`
}

// Pool is the local asset directory.
type Pool struct {
	Dir     string   `mapstructure:"dir"`
	Include []string `mapstructure:"include"`
	Exclude []string `mapstructure:"exclude"`
}

// Encoding names the code pages used to repair mis-decoded filenames.
type Encoding struct {
	Corrupted string `mapstructure:"corrupted"`
	Original  string `mapstructure:"original"`
}

// Bridge names the optional bridge source and its field names.
type Bridge struct {
	Path   string          `mapstructure:"path"`
	Fields roster.FieldMap `mapstructure:"fields"`
}

// Remote addresses the record store.
type Remote struct {
	Kind            string `mapstructure:"kind"`
	URL             string `mapstructure:"url"`
	Key             string `mapstructure:"key"`
	DSN             string `mapstructure:"dsn"`
	Table           string `mapstructure:"table"`
	KeyColumn       string `mapstructure:"key_column"`
	IDColumn        string `mapstructure:"id_column"`
	NameColumn      string `mapstructure:"name_column"`
	RomanizedColumn string `mapstructure:"romanized_column"`
	AssetColumn     string `mapstructure:"asset_column"`
	PageSize        int    `mapstructure:"page_size"`
}

// Blob addresses the object store.
type Blob struct {
	Kind          string `mapstructure:"kind"`
	Bucket        string `mapstructure:"bucket"`
	Public        bool   `mapstructure:"public"`
	FileSizeLimit int64  `mapstructure:"file_size_limit"`
	Project       string `mapstructure:"project"`
	Dir           string `mapstructure:"dir"`
	BaseURL       string `mapstructure:"base_url"`
	CDNDomain     string `mapstructure:"cdn_domain"`
}

// Sync tunes the remote-facing stages.
type Sync struct {
	Concurrency   int           `mapstructure:"concurrency"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ApplyStrategy string        `mapstructure:"apply_strategy"`
	UploadAll     bool          `mapstructure:"upload_all"`
}

// Report is where the run report goes.
type Report struct {
	Path string `mapstructure:"path"`
}

// Output is where the relinked roster goes.
type Output struct {
	Path string `mapstructure:"path"`
}

// SetDefaults registers every key so AutomaticEnv can override it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("input.entities", "")
	v.SetDefault("pool.dir", "photos")
	v.SetDefault("pool.include", []string{})
	v.SetDefault("pool.exclude", []string{})
	v.SetDefault("encoding.corrupted", constants.DefaultCorruptedEncoding)
	v.SetDefault("encoding.original", constants.DefaultOriginalEncoding)

	def := roster.DefaultEntityFields()
	v.SetDefault("fields.key", def.Key)
	v.SetDefault("fields.name", def.Name)
	v.SetDefault("fields.romanized_name", def.RomanizedName)
	v.SetDefault("fields.asset", def.Asset)

	bdef := roster.DefaultBridgeFields()
	v.SetDefault("bridge.path", "")
	v.SetDefault("bridge.fields.key", bdef.Key)
	v.SetDefault("bridge.fields.name", bdef.Name)
	v.SetDefault("bridge.fields.romanized_name", bdef.RomanizedName)
	v.SetDefault("bridge.fields.asset", bdef.Asset)

	v.SetDefault("remote.kind", RemotePostgREST)
	v.SetDefault("remote.url", "")
	v.SetDefault("remote.key", "")
	v.SetDefault("remote.dsn", "")
	v.SetDefault("remote.table", constants.DefaultTable)
	v.SetDefault("remote.key_column", constants.DefaultKeyColumn)
	v.SetDefault("remote.id_column", constants.DefaultIDColumn)
	v.SetDefault("remote.name_column", "full_name")
	v.SetDefault("remote.romanized_column", "full_name_roman")
	v.SetDefault("remote.asset_column", constants.DefaultAssetColumn)
	v.SetDefault("remote.page_size", constants.DefaultPageSize)

	v.SetDefault("blob.kind", BlobSupabase)
	v.SetDefault("blob.bucket", constants.DefaultBucket)
	v.SetDefault("blob.public", true)
	v.SetDefault("blob.file_size_limit", constants.DefaultFileSizeLimit)
	v.SetDefault("blob.project", "")
	v.SetDefault("blob.dir", "")
	v.SetDefault("blob.base_url", "")
	v.SetDefault("blob.cdn_domain", "")

	v.SetDefault("sync.concurrency", constants.DefaultUploadConcurrency)
	v.SetDefault("sync.timeout", constants.SyncTimeout)
	v.SetDefault("sync.apply_strategy", string(differ.ApplyAll))
	v.SetDefault("sync.upload_all", false)

	v.SetDefault("report.path", "")
	v.SetDefault("output.path", "")
}

// Load reads configuration into a fresh Config. configFile may be empty, in
// which case .rostersync.yaml is looked for in the home and working
// directories; a missing file is not an error.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	loadEnvFiles()

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	if err := bindSupabaseEnv(v); err != nil {
		return nil, err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".rostersync")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.NewConfigError("config", "failed to read config file", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.NewConfigError("config", "failed to decode config", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	return cfg, nil
}

// loadEnvFiles loads .env then .env.local. Variables already set in the
// process environment are never overwritten.
func loadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}

// bindSupabaseEnv lets the project's standard variable names stand in for
// the prefixed ones.
func bindSupabaseEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"remote.url": {EnvPrefix + "_REMOTE_URL", "SUPABASE_URL"},
		"remote.key": {EnvPrefix + "_REMOTE_KEY", "SUPABASE_SERVICE_ROLE_KEY", "SUPABASE_SERVICE_KEY"},
		"remote.dsn": {EnvPrefix + "_REMOTE_DSN", "DATABASE_URL"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return errors.NewConfigError("config", fmt.Sprintf("failed to bind %s", key), err)
		}
	}
	return nil
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	return c.ValidateFor(true, true)
}

// ValidateFor checks the settings every command needs, plus the record
// store and blob store settings when asked for.
func (c *Config) ValidateFor(records, blobs bool) error {
	if c.Pool.Dir == "" {
		return errors.NewConfigError("pool", "pool.dir is required", nil)
	}
	if c.Sync.Concurrency < 1 || c.Sync.Concurrency > constants.MaxUploadConcurrency {
		return errors.NewConfigError("sync", fmt.Sprintf("sync.concurrency must be between 1 and %d", constants.MaxUploadConcurrency), nil)
	}
	if _, err := differ.ParseApplyStrategy(c.Sync.ApplyStrategy); err != nil {
		return errors.NewConfigError("sync", "invalid sync.apply_strategy", err)
	}
	if records {
		if err := c.validateRemote(); err != nil {
			return err
		}
	}
	if blobs {
		if err := c.validateBlob(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateRemote() error {
	switch c.Remote.Kind {
	case RemotePostgREST:
		if c.Remote.URL == "" || c.Remote.Key == "" {
			return errors.NewConfigError("remote", "postgrest needs remote.url and remote.key (SUPABASE_URL, SUPABASE_SERVICE_ROLE_KEY)", nil)
		}
	case RemotePostgres:
		if c.Remote.DSN == "" {
			return errors.NewConfigError("remote", "postgres needs remote.dsn (DATABASE_URL)", nil)
		}
	case RemoteMemory:
	default:
		return errors.NewConfigError("remote", fmt.Sprintf("unknown remote.kind %q", c.Remote.Kind), nil)
	}
	return nil
}

func (c *Config) validateBlob() error {
	switch c.Blob.Kind {
	case BlobSupabase:
		if c.Remote.URL == "" || c.Remote.Key == "" {
			return errors.NewConfigError("blob", "supabase storage needs remote.url and remote.key", nil)
		}
	case BlobLocal:
		if c.Blob.Dir == "" {
			return errors.NewConfigError("blob", "local blob store needs blob.dir", nil)
		}
	case BlobGCS, BlobMemory:
	default:
		return errors.NewConfigError("blob", fmt.Sprintf("unknown blob.kind %q", c.Blob.Kind), nil)
	}
	return nil
}
