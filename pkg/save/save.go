package save

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/rostersync/pkg/constants"
	"github.com/agentstation/rostersync/pkg/errors"
)

// Marshal encodes v in the given format. JSON output is indented.
func Marshal(v any, f Format) ([]byte, error) {
	switch f {
	case FormatYAML:
		return yaml.Marshal(v)
	case FormatJSON:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, errors.NewValidationError("format", f.String(), "unsupported format")
}

// Unmarshal decodes data in the given format into v.
func Unmarshal(data []byte, f Format, v any) error {
	switch f {
	case FormatYAML:
		return yaml.Unmarshal(data, v)
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		return dec.Decode(v)
	}
	return errors.NewValidationError("format", f.String(), "unsupported format")
}

// Write encodes v and sends it to the configured writer, or to the
// configured path when no writer is set. Parent directories are created.
func Write(v any, opts ...Option) error {
	o := Defaults().Apply(opts...)
	data, err := Marshal(v, o.Format())
	if err != nil {
		return errors.WrapParse(o.Format().String(), o.Path(), err)
	}

	if w := o.Writer(); w != nil {
		_, err := w.Write(data)
		return errors.WrapIO("write", o.Path(), err)
	}
	if o.Path() == "" {
		return errors.NewValidationError("path", "", "either a path or a writer is required")
	}
	if dir := filepath.Dir(o.Path()); dir != "." {
		if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
			return errors.WrapIO("mkdir", dir, err)
		}
	}
	return errors.WrapIO("write", o.Path(), os.WriteFile(o.Path(), data, constants.FilePermissions))
}

// ReadFile decodes the file at path into v, choosing the format by extension.
func ReadFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFoundError("file", path)
		}
		return errors.WrapIO("read", path, err)
	}
	f := FormatFromPath(path)
	if err := Unmarshal(data, f, v); err != nil {
		return errors.WrapParse(f.String(), path, err)
	}
	return nil
}
