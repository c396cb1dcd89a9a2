package roster

import (
	"github.com/agentstation/rostersync/pkg/errors"
	"github.com/agentstation/rostersync/pkg/save"
)

// Rejected is a source record that will not take part in the run.
type Rejected struct {
	Index  int    `json:"index" yaml:"index"`
	Key    string `json:"key,omitempty" yaml:"key,omitempty"`
	Reason string `json:"reason" yaml:"reason"`
}

// Roster is the deduplicated entity set for one run.
type Roster struct {
	Entities []EntityRecord
	Rejected []Rejected
}

// FromRecords converts flat records in order. Records with an empty key are
// rejected, and for a duplicated key the first occurrence wins.
func FromRecords(records []map[string]any, m FieldMap) *Roster {
	r := &Roster{Entities: make([]EntityRecord, 0, len(records))}
	seen := make(map[string]bool, len(records))
	for i, rec := range records {
		e, err := FromFields(rec, m)
		if err != nil {
			r.Rejected = append(r.Rejected, Rejected{Index: i, Reason: err.Error()})
			continue
		}
		if seen[e.NaturalKey] {
			r.Rejected = append(r.Rejected, Rejected{Index: i, Key: e.NaturalKey, Reason: "duplicate natural key"})
			continue
		}
		seen[e.NaturalKey] = true
		r.Entities = append(r.Entities, e)
	}
	return r
}

// LoadEntities reads a JSON or YAML array of flat entity records.
func LoadEntities(path string, m FieldMap) (*Roster, error) {
	var records []map[string]any
	if err := save.ReadFile(path, &records); err != nil {
		return nil, err
	}
	return FromRecords(records, m), nil
}

// LoadBridge reads a JSON or YAML array of flat bridge records. A missing
// file yields an empty bridge.
func LoadBridge(path string, m FieldMap) ([]BridgeRecord, error) {
	if path == "" {
		return nil, nil
	}
	var records []map[string]any
	if err := save.ReadFile(path, &records); err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]BridgeRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, BridgeFromFields(rec, m))
	}
	return out, nil
}

// SaveEntities writes entities back out as flat records, with the asset
// field set for every linked entity.
func SaveEntities(path string, entities []EntityRecord, m FieldMap) error {
	records := make([]map[string]any, 0, len(entities))
	for _, e := range entities {
		records = append(records, e.ToFields(m))
	}
	return save.Write(records, save.WithPath(path))
}
