package rostersync

import (
	"sync"

	"github.com/agentstation/rostersync/pkg/report"
	"github.com/agentstation/rostersync/pkg/resolver"
	"github.com/agentstation/rostersync/pkg/roster"
)

// Hook function types for run events
type (
	// MatchHook is called once per entity after resolution
	MatchHook func(e roster.EntityRecord, m resolver.MatchResult)

	// OutcomeHook is called once per outcome when a stage completes
	OutcomeHook func(stage string, o report.Outcome)

	// ReportHook is called with the finished report at the end of a run
	ReportHook func(r *report.Report)
)

// Hooks registers callbacks for run events. Callbacks run synchronously on
// the calling goroutine, after the stage they belong to.
type Hooks interface {
	OnMatch(fn MatchHook)
	OnOutcome(fn OutcomeHook)
	OnReport(fn ReportHook)
}

// hooks manages event callbacks for runs
type hooks struct {
	mu        sync.RWMutex
	onMatch   []MatchHook
	onOutcome []OutcomeHook
	onReport  []ReportHook
}

// newHooks creates a new hooks instance
func newHooks() *hooks {
	return &hooks{}
}

// OnMatch registers a callback for resolution results
func (c *client) OnMatch(fn MatchHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onMatch = append(c.hooks.onMatch, fn)
}

// OnOutcome registers a callback for stage outcomes
func (c *client) OnOutcome(fn OutcomeHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onOutcome = append(c.hooks.onOutcome, fn)
}

// OnReport registers a callback for finished reports
func (c *client) OnReport(fn ReportHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onReport = append(c.hooks.onReport, fn)
}

func (h *hooks) triggerMatches(entities []roster.EntityRecord, matches []resolver.MatchResult) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.onMatch) == 0 {
		return
	}
	for i, m := range matches {
		if i >= len(entities) {
			break
		}
		for _, fn := range h.onMatch {
			fn(entities[i], m)
		}
	}
}

func (h *hooks) triggerOutcomes(stage string, outcomes []report.Outcome) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, o := range outcomes {
		for _, fn := range h.onOutcome {
			fn(stage, o)
		}
	}
}

func (h *hooks) triggerReport(r *report.Report) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onReport {
		fn(r)
	}
}
