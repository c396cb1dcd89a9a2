// Package differ classifies local entities against the remote key
// inventory into creates and updates.
package differ

import (
	"fmt"
	"strings"

	"github.com/agentstation/rostersync/pkg/roster"
)

// ChangeType represents the type of change.
type ChangeType string

const (
	// ChangeTypeCreate indicates the natural key is not in the remote store.
	ChangeTypeCreate ChangeType = "create"
	// ChangeTypeUpdate indicates the natural key is present remotely.
	ChangeTypeUpdate ChangeType = "update"
)

// Change is one planned remote operation. RemoteID is set for updates.
type Change struct {
	Type     ChangeType          `json:"type" yaml:"type"`
	Entity   roster.EntityRecord `json:"entity" yaml:"entity"`
	RemoteID string              `json:"remoteId,omitempty" yaml:"remoteId,omitempty"`

	// Index is the entity's position in the classified input.
	Index int `json:"-" yaml:"-"`
}

// Key is the natural key of the changed entity.
func (c Change) Key() string {
	return c.Entity.NaturalKey
}

// Plan is the classification of one local entity set.
type Plan struct {
	Creates []Change              `json:"creates" yaml:"creates"`
	Updates []Change              `json:"updates" yaml:"updates"`
	Skipped []roster.EntityRecord `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// Len is the number of planned operations.
func (p *Plan) Len() int {
	return len(p.Creates) + len(p.Updates)
}

// IsEmpty returns true when nothing needs to be sent.
func (p *Plan) IsEmpty() bool {
	return p.Len() == 0
}

// Changes returns every change in input order.
func (p *Plan) Changes() []Change {
	out := make([]Change, 0, p.Len())
	ci, ui := 0, 0
	for ci < len(p.Creates) || ui < len(p.Updates) {
		switch {
		case ui >= len(p.Updates):
			out = append(out, p.Creates[ci])
			ci++
		case ci >= len(p.Creates):
			out = append(out, p.Updates[ui])
			ui++
		case p.Creates[ci].Index < p.Updates[ui].Index:
			out = append(out, p.Creates[ci])
			ci++
		default:
			out = append(out, p.Updates[ui])
			ui++
		}
	}
	return out
}

// String returns a human-readable summary of the plan.
func (p *Plan) String() string {
	if p.IsEmpty() {
		return "No changes planned"
	}
	parts := []string{}
	if len(p.Creates) > 0 {
		parts = append(parts, fmt.Sprintf("%d to create", len(p.Creates)))
	}
	if len(p.Updates) > 0 {
		parts = append(parts, fmt.Sprintf("%d to update", len(p.Updates)))
	}
	if len(p.Skipped) > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", len(p.Skipped)))
	}
	return fmt.Sprintf("Plan: %s", strings.Join(parts, ", "))
}

// ApplyStrategy represents which planned changes to send.
type ApplyStrategy string

const (
	// ApplyAll sends creates and updates.
	ApplyAll ApplyStrategy = "all"

	// ApplyUpdatesOnly only touches records that already exist remotely.
	ApplyUpdatesOnly ApplyStrategy = "updates-only"

	// ApplyCreatesOnly only inserts records that are missing remotely.
	ApplyCreatesOnly ApplyStrategy = "creates-only"
)

// ParseApplyStrategy validates a strategy name. Empty means ApplyAll.
func ParseApplyStrategy(s string) (ApplyStrategy, error) {
	switch ApplyStrategy(s) {
	case "", ApplyAll:
		return ApplyAll, nil
	case ApplyUpdatesOnly, ApplyCreatesOnly:
		return ApplyStrategy(s), nil
	}
	return "", fmt.Errorf("unknown apply strategy %q (want all, updates-only or creates-only)", s)
}

// Filter returns a plan holding only the changes the strategy allows.
func (p *Plan) Filter(strategy ApplyStrategy) *Plan {
	filtered := &Plan{Creates: []Change{}, Updates: []Change{}, Skipped: p.Skipped}
	switch strategy {
	case ApplyUpdatesOnly:
		filtered.Updates = p.Updates
	case ApplyCreatesOnly:
		filtered.Creates = p.Creates
	default:
		return p
	}
	return filtered
}
