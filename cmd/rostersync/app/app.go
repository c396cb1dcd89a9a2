// Package app provides the application context and dependency management
// for the rostersync CLI. Configuration is loaded once flags are parsed;
// stores and the engine client are built lazily from it.
package app

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/agentstation/rostersync"
	"github.com/agentstation/rostersync/internal/config"
	"github.com/agentstation/rostersync/pkg/blob"
	"github.com/agentstation/rostersync/pkg/errors"
	"github.com/agentstation/rostersync/pkg/logging"
	"github.com/agentstation/rostersync/pkg/remote"
)

// App holds everything a command needs.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	flags  *Flags
	viper  *viper.Viper
	config *config.Config

	logger      *zerolog.Logger
	fixedLogger bool // set by WithLogger; flags do not replace it

	out io.Writer // command output, stdout when nil

	// Stores (lazy-initialized)
	mu      sync.Mutex
	records remote.Store
	objects blob.Store
}

// New creates an App with the given version information.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	a := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		flags:   &Flags{},
		viper:   viper.New(),
	}

	logger := NewLogger(a.flags)
	a.logger = &logger

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Config returns the loaded configuration, or nil before a command runs.
func (a *App) Config() *config.Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// loadConfig reads configuration unless one was injected.
func (a *App) loadConfig() error {
	if a.config != nil {
		return nil
	}
	cfg, err := config.Load(a.viper, a.flags.ConfigFile)
	if err != nil {
		return err
	}
	a.config = cfg
	return nil
}

// Stores selects which remote stores a command needs.
type Stores int

// Store selections.
const (
	RecordStore Stores = 1 << iota
	BlobStore

	NoStores  Stores = 0
	AllStores        = RecordStore | BlobStore
)

// Client returns an engine client wired to the stores a command needs.
// Stores are built from config on first use and reused afterwards.
func (a *App) Client(ctx context.Context, needs Stores) (rostersync.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.config == nil {
		return nil, errors.NewConfigError("app", "configuration not loaded", nil)
	}
	if err := a.config.ValidateFor(needs&RecordStore != 0 && a.records == nil, needs&BlobStore != 0 && a.objects == nil); err != nil {
		return nil, err
	}

	opts, err := clientOptions(a.config)
	if err != nil {
		return nil, err
	}
	opts = append(opts, rostersync.WithLogger(a.logger))

	if needs&RecordStore != 0 {
		if a.records == nil {
			store, err := NewRemote(a.config)
			if err != nil {
				return nil, err
			}
			a.records = store
		}
		opts = append(opts, rostersync.WithRemote(a.records))
	}
	if needs&BlobStore != 0 {
		if a.objects == nil {
			store, err := NewBlob(ctx, a.config)
			if err != nil {
				return nil, err
			}
			a.objects = store
		}
		opts = append(opts, rostersync.WithBlobStore(a.objects))
	}

	c, err := rostersync.New(opts...)
	if err != nil {
		return nil, errors.WrapResource("create", "client", "", err)
	}
	return c, nil
}

// Context attaches the app logger to ctx.
func (a *App) Context(ctx context.Context) context.Context {
	return logging.WithLogger(ctx, a.logger)
}

// Shutdown releases store connections.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for _, s := range []any{a.records, a.objects} {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a configuration, skipping file and environment loading.
func WithConfig(cfg *config.Config) Option {
	return func(a *App) error {
		a.config = cfg
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		a.fixedLogger = true
		return nil
	}
}

// WithRemote sets the record store instead of building one from config.
func WithRemote(store remote.Store) Option {
	return func(a *App) error {
		a.records = store
		return nil
	}
}

// WithBlobStore sets the object store instead of building one from config.
func WithBlobStore(store blob.Store) Option {
	return func(a *App) error {
		a.objects = store
		return nil
	}
}

// WithOutput sends command output to w instead of stdout.
func WithOutput(w io.Writer) Option {
	return func(a *App) error {
		a.out = w
		return nil
	}
}
