package blob

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"

	"github.com/agentstation/rostersync/pkg/constants"
	"github.com/agentstation/rostersync/pkg/errors"
)

// Local mirrors the bucket into a directory.
type Local struct {
	Dir     string
	BaseURL string // optional, used for PublicURL
}

// NewLocal returns a directory-backed store.
func NewLocal(dir string) *Local {
	return &Local{Dir: dir}
}

// Name implements Store.
func (l *Local) Name() string {
	return "local"
}

// EnsureBucket implements Store.
func (l *Local) EnsureBucket(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(l.Dir, constants.DirPermissions); err != nil {
		return errors.WrapIO("create", l.Dir, err)
	}
	return nil
}

// List implements Store.
func (l *Local) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return nil, errors.WrapIO("list", l.Dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Put implements Store. The object is written to a temporary file and
// renamed into place.
func (l *Local) Put(ctx context.Context, name string, r io.Reader, _ int64, _ string, upsert bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if name != filepath.Base(name) || name == "." || name == ".." {
		return errors.NewValidationError("name", name, "object names must not contain a path")
	}
	dst := filepath.Join(l.Dir, name)
	if !upsert {
		if _, err := os.Stat(dst); err == nil {
			return &errors.ResourceError{Operation: "put", Resource: "object", ID: name, Message: "object exists", Err: errors.ErrAlreadyExists}
		}
	}

	tmp, err := os.CreateTemp(l.Dir, "."+name+".*.part")
	if err != nil {
		return errors.WrapIO("create", dst, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return errors.WrapIO("write", dst, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapIO("write", dst, err)
	}
	if err := os.Chmod(tmp.Name(), constants.FilePermissions); err != nil {
		return errors.WrapIO("chmod", dst, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return errors.WrapIO("rename", dst, err)
	}
	return nil
}

// PublicURL implements URLer when BaseURL is set.
func (l *Local) PublicURL(name string) string {
	if l.BaseURL == "" {
		return ""
	}
	u, err := url.JoinPath(l.BaseURL, name)
	if err != nil {
		return ""
	}
	return u
}
