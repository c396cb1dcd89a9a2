package assets

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/agentstation/rostersync/internal/matcher"
	"github.com/agentstation/rostersync/pkg/constants"
	"github.com/agentstation/rostersync/pkg/errors"
	"github.com/agentstation/rostersync/pkg/logging"
)

// Repairer repairs corrupted filenames.
type Repairer interface {
	Repair(raw string) (string, bool)
}

// Pool is a flat directory of asset files.
type Pool struct {
	Dir    string
	Filter *matcher.Filter
}

// NewPool returns a pool over dir using matcher.DefaultFilter.
func NewPool(dir string) *Pool {
	return &Pool{Dir: dir, Filter: matcher.DefaultFilter()}
}

// Scan enumerates regular files once, sorted by raw name. Failure to read
// the directory is a bootstrap error.
func (p *Pool) Scan(ctx context.Context, repairer Repairer) ([]AssetFile, error) {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		return nil, errors.WrapBootstrap("scan pool", errors.WrapIO("scan", p.Dir, err))
	}

	logger := logging.FromContext(ctx)
	files := make([]AssetFile, 0, len(entries))
	repaired := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.Type().IsRegular() || !p.Filter.Keep(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			logger.Warn().Err(err).Str("asset", entry.Name()).Msg("Skipping unreadable asset")
			continue
		}
		af := AssetFile{
			RawName:   entry.Name(),
			Extension: ExtensionOf(entry.Name(), constants.FallbackExtension),
			SizeBytes: info.Size(),
		}
		if repairer != nil {
			if name, ok := repairer.Repair(entry.Name()); ok {
				af.RepairedName = name
				repaired++
			}
		}
		files = append(files, af)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RawName < files[j].RawName })
	logger.Debug().Int("files", len(files)).Int("repaired", repaired).Str("dir", p.Dir).Msg("Scanned asset pool")
	return files, nil
}

// Path joins a filename onto the pool directory.
func (p *Pool) Path(name string) string {
	return filepath.Join(p.Dir, filepath.Base(name))
}

// Open opens a pool file for reading.
func (p *Pool) Open(name string) (*os.File, error) {
	f, err := os.Open(p.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("asset", name)
		}
		return nil, errors.WrapIO("open", p.Path(name), err)
	}
	return f, nil
}

// Stat returns file info for a pool file.
func (p *Pool) Stat(name string) (fs.FileInfo, error) {
	info, err := os.Stat(p.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("asset", name)
		}
		return nil, errors.WrapIO("stat", p.Path(name), err)
	}
	return info, nil
}

// Exists reports whether name is present in the pool.
func (p *Pool) Exists(name string) bool {
	_, err := p.Stat(name)
	return err == nil
}

// CopyNoClobber copies src to dst inside the pool. It never overwrites: if
// dst exists the copy is abandoned with an ErrAlreadyExists error.
func (p *Pool) CopyNoClobber(src, dst string) error {
	return CopyNoClobber(p.Path(src), p.Path(dst))
}

// CopyNoClobber copies the file at src to a new file at dst, keeping the
// source modification time. A partial destination is removed on failure.
func CopyNoClobber(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return errors.WrapIO("open", src, err)
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return errors.WrapIO("stat", src, err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, constants.FilePermissions)
	if err != nil {
		if os.IsExist(err) {
			return &errors.ResourceError{
				Operation: "copy", Resource: "asset", ID: filepath.Base(dst),
				Message: "destination exists", Err: errors.ErrAlreadyExists,
			}
		}
		return errors.WrapIO("create", dst, err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = errors.WrapIO("close", dst, cerr)
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return errors.WrapIO("copy", dst, err)
	}
	if err = out.Sync(); err != nil {
		return errors.WrapIO("sync", dst, err)
	}
	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())
	return nil
}
