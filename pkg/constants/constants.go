// Package constants provides shared constants used throughout the rostersync codebase.
// This includes timeouts, limits, file permissions, and the batch cadences that
// should be consistent across the reconciliation and sync stages.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the standard timeout for a single remote store request
	DefaultHTTPTimeout = 60 * time.Second

	// BucketTimeout bounds bucket existence checks and creation
	BucketTimeout = 10 * time.Second

	// ListTimeout bounds a single remote listing page
	ListTimeout = 30 * time.Second

	// UploadTimeout bounds a single blob upload
	UploadTimeout = 2 * time.Minute

	// DatabaseTimeout bounds a single SQL statement against the remote store
	DatabaseTimeout = 5 * time.Second

	// SyncTimeout is the default timeout for a whole run (0 disables it)
	SyncTimeout = 30 * time.Minute

	// ShutdownTimeout is how long in-flight work gets after an interrupt
	ShutdownTimeout = 5 * time.Second

	// WatchDebounce is how long the watcher waits for the pool to settle
	WatchDebounce = 2 * time.Second
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Limit constants define page sizes, concurrency and report bounds
const (
	// DefaultPageSize is the number of rows requested per key inventory page
	DefaultPageSize = 1000

	// DefaultObjectPageSize is the number of names requested per object list page
	DefaultObjectPageSize = 1000

	// DefaultUploadConcurrency is the default number of concurrent uploads
	DefaultUploadConcurrency = 5

	// MaxUploadConcurrency caps the configurable upload width
	MaxUploadConcurrency = 64

	// RecordProgressEvery is the cadence of record upsert progress logs
	RecordProgressEvery = 200

	// UploadProgressEvery is the cadence of upload progress logs
	UploadProgressEvery = 25

	// MaxDetailLength bounds the error detail stored per failed item
	MaxDetailLength = 100

	// MaxUnmatchedReported bounds the unmatched list in the report
	MaxUnmatchedReported = 50

	// MaxErrorsShown is the number of error details shown in the summary
	MaxErrorsShown = 5

	// DefaultFileSizeLimit is the per-object size limit set on new buckets (5 MiB)
	DefaultFileSizeLimit = 5 * 1024 * 1024
)

// Naming defaults
const (
	// FallbackExtension is used when an asset has no recognized extension
	FallbackExtension = "jpg"

	// DefaultBucket is the blob bucket holding canonical assets
	DefaultBucket = "photos"

	// DefaultTable is the remote table holding entity records
	DefaultTable = "staff"

	// DefaultKeyColumn is the remote column holding the natural key
	DefaultKeyColumn = "emp_id"

	// DefaultIDColumn is the remote column holding the store-assigned id
	DefaultIDColumn = "id"

	// DefaultAssetColumn is the remote column holding the canonical asset name
	DefaultAssetColumn = "photo"

	// DefaultCorruptedEncoding is the single-byte code page names were misread through
	DefaultCorruptedEncoding = "ISO-8859-1"

	// DefaultOriginalEncoding is the multi-byte encoding names were written in
	DefaultOriginalEncoding = "Shift_JIS"
)
