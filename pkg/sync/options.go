// Package sync provides options and results for a reconcile-and-sync run.
package sync

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agentstation/rostersync/pkg/constants"
	"github.com/agentstation/rostersync/pkg/differ"
	"github.com/agentstation/rostersync/pkg/errors"
)

// Options controls one run of Client.Run.
type Options struct {
	// Orchestration control
	DryRun  bool          // Classify and report without mutating anything
	Timeout time.Duration // Timeout for the entire run (0 disables it)

	// Remote behavior
	Concurrency   int                  // Upload worker pool width
	PageSize      int                  // Rows per key inventory page
	ApplyStrategy differ.ApplyStrategy // Which planned record changes to send

	// Stage selection
	SkipRelink  bool // Do not copy matched assets to canonical names
	SkipRecords bool // Do not create or update remote records
	SkipUploads bool // Do not upload assets
	UploadAll   bool // Upload every pool file, not only linked ones

	// Output control
	ReportPath string // Where to write the run report (empty means don't)
	OutputPath string // Where to write the relinked roster (empty means don't)

	// Input accounting
	Rejected int // Source records dropped before the run, for the report
}

// Option is a function that configures sync Options.
type Option func(*Options)

// Defaults returns the default sync options.
func Defaults() *Options {
	return &Options{
		Timeout:       constants.SyncTimeout,
		Concurrency:   constants.DefaultUploadConcurrency,
		PageSize:      constants.DefaultPageSize,
		ApplyStrategy: differ.ApplyAll,
	}
}

// Apply applies the given options to the sync options.
func (s *Options) Apply(opts ...Option) *Options {
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate checks if the sync options are valid.
func (s *Options) Validate() error {
	if s.Timeout < 0 {
		return &errors.ValidationError{
			Field:   "Timeout",
			Value:   s.Timeout,
			Message: "timeout must be non-negative",
		}
	}

	if s.Concurrency < 1 || s.Concurrency > constants.MaxUploadConcurrency {
		return &errors.ValidationError{
			Field:   "Concurrency",
			Value:   s.Concurrency,
			Message: fmt.Sprintf("concurrency must be between 1 and %d", constants.MaxUploadConcurrency),
		}
	}

	if s.PageSize < 1 {
		return &errors.ValidationError{
			Field:   "PageSize",
			Value:   s.PageSize,
			Message: "page size must be positive",
		}
	}

	if _, err := differ.ParseApplyStrategy(string(s.ApplyStrategy)); err != nil {
		return errors.WrapValidation("ApplyStrategy", err)
	}

	for field, path := range map[string]string{"ReportPath": s.ReportPath, "OutputPath": s.OutputPath} {
		if path == "" {
			continue
		}
		dir := filepath.Dir(path)
		if dir == "." || dir == "/" {
			continue
		}
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return &errors.ValidationError{
				Field:   field,
				Value:   path,
				Message: fmt.Sprintf("output directory '%s' does not exist", dir),
			}
		}
	}

	return nil
}

// WithDryRun configures dry run mode.
func WithDryRun(dryRun bool) Option {
	return func(opts *Options) {
		opts.DryRun = dryRun
	}
}

// WithTimeout configures the run timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.Timeout = timeout
	}
}

// WithConcurrency configures the upload worker pool width.
func WithConcurrency(n int) Option {
	return func(opts *Options) {
		opts.Concurrency = n
	}
}

// WithPageSize configures the key inventory page size.
func WithPageSize(n int) Option {
	return func(opts *Options) {
		opts.PageSize = n
	}
}

// WithApplyStrategy limits which record changes are sent.
func WithApplyStrategy(strategy differ.ApplyStrategy) Option {
	return func(opts *Options) {
		opts.ApplyStrategy = strategy
	}
}

// WithSkipRelink disables the relink stage.
func WithSkipRelink(skip bool) Option {
	return func(opts *Options) {
		opts.SkipRelink = skip
	}
}

// WithSkipRecords disables the record upsert stage.
func WithSkipRecords(skip bool) Option {
	return func(opts *Options) {
		opts.SkipRecords = skip
	}
}

// WithSkipUploads disables the upload stage.
func WithSkipUploads(skip bool) Option {
	return func(opts *Options) {
		opts.SkipUploads = skip
	}
}

// WithUploadAll uploads every pool file instead of only linked assets.
func WithUploadAll(all bool) Option {
	return func(opts *Options) {
		opts.UploadAll = all
	}
}

// WithReportPath configures where the run report is written.
func WithReportPath(path string) Option {
	return func(opts *Options) {
		opts.ReportPath = path
	}
}

// WithOutputPath configures where the relinked roster is written.
func WithOutputPath(path string) Option {
	return func(opts *Options) {
		opts.OutputPath = path
	}
}

// WithRejected records how many source records were dropped on load.
func WithRejected(n int) Option {
	return func(opts *Options) {
		opts.Rejected = n
	}
}
