package normalize

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/japanese"

	"github.com/agentstation/rostersync/pkg/errors"
)

// Repairer reverses a filename corruption where bytes written in Original
// were read one byte at a time through Corrupted.
type Repairer struct {
	Corrupted encoding.Encoding
	Original  encoding.Encoding
}

// DefaultRepairer undoes Shift_JIS names that were read as ISO-8859-1.
func DefaultRepairer() *Repairer {
	return &Repairer{
		Corrupted: charmap.ISO8859_1,
		Original:  japanese.ShiftJIS,
	}
}

// NewRepairer looks both encodings up by IANA name, e.g. "ISO-8859-1" and "Shift_JIS".
func NewRepairer(corruptedName, originalName string) (*Repairer, error) {
	corrupted, err := lookup("encoding.corrupted", corruptedName)
	if err != nil {
		return nil, err
	}
	original, err := lookup("encoding.original", originalName)
	if err != nil {
		return nil, err
	}
	return &Repairer{Corrupted: corrupted, Original: original}, nil
}

func lookup(field, name string) (encoding.Encoding, error) {
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, errors.NewValidationError(field, name, fmt.Sprintf("unknown encoding %q", name))
	}
	if enc == nil {
		return nil, errors.NewValidationError(field, name, fmt.Sprintf("encoding %q is not supported", name))
	}
	return enc, nil
}

// Repair returns the repaired name and true, or false when raw cannot be
// expressed in the corrupting code page, is not valid in the original
// encoding, or does not change.
func (r *Repairer) Repair(raw string) (string, bool) {
	if r == nil || raw == "" {
		return "", false
	}
	b, err := r.Corrupted.NewEncoder().Bytes([]byte(raw))
	if err != nil {
		return "", false
	}
	decoded, err := r.Original.NewDecoder().Bytes(b)
	if err != nil || !utf8.Valid(decoded) {
		return "", false
	}
	repaired := string(decoded)
	if strings.ContainsRune(repaired, utf8.RuneError) || repaired == raw {
		return "", false
	}
	return repaired, true
}

var defaultRepairer = DefaultRepairer()

// RepairEncoding applies the default ISO-8859-1 to Shift_JIS repair.
func RepairEncoding(raw string) (string, bool) {
	return defaultRepairer.Repair(raw)
}
