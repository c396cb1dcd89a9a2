package differ

import (
	"github.com/agentstation/rostersync/pkg/remote"
	"github.com/agentstation/rostersync/pkg/roster"
)

// Classify splits entities into creates and updates by natural key. Entities
// with an empty key are skipped. Every other entity lands in exactly one of
// Creates or Updates.
func Classify(entities []roster.EntityRecord, idx remote.KeyIndex) *Plan {
	p := &Plan{
		Creates: []Change{},
		Updates: []Change{},
	}
	for i, e := range entities {
		if e.NaturalKey == "" {
			p.Skipped = append(p.Skipped, e)
			continue
		}
		if id, ok := idx.Lookup(e.NaturalKey); ok {
			p.Updates = append(p.Updates, Change{Type: ChangeTypeUpdate, Entity: e, RemoteID: id, Index: i})
			continue
		}
		p.Creates = append(p.Creates, Change{Type: ChangeTypeCreate, Entity: e, Index: i})
	}
	return p
}
