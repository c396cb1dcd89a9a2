package sync

import (
	"fmt"
	"strings"

	"github.com/agentstation/rostersync/pkg/differ"
	"github.com/agentstation/rostersync/pkg/report"
	"github.com/agentstation/rostersync/pkg/resolver"
	"github.com/agentstation/rostersync/pkg/roster"
)

// Result is everything a run produced. Report is always set, even when
// the run returned an error.
type Result struct {
	Entities []roster.EntityRecord  // Entities after relinking
	Matches  []resolver.MatchResult // One per entity, same order
	Plan     *differ.Plan           // Nil when records were skipped or bootstrap failed
	Report   *report.Report
}

// HasFailures returns true if any item failed or the run aborted.
func (r *Result) HasFailures() bool {
	if r == nil || r.Report == nil {
		return false
	}
	return r.Report.Failed() > 0 || r.Report.Aborted != ""
}

// Summary returns a one-line human-readable summary of the run.
func (r *Result) Summary() string {
	if r == nil || r.Report == nil {
		return "No run"
	}
	rep := r.Report

	var parts []string
	parts = append(parts, fmt.Sprintf("%d entities, %d with asset", rep.Matching.Total, rep.Matching.WithAsset))
	for _, st := range rep.Stages {
		parts = append(parts, fmt.Sprintf("%s: %d created, %d updated, %d skipped, %d failed",
			st.Name, st.Count(report.Created), st.Count(report.Updated), st.Count(report.Skipped), st.Count(report.Failed)))
	}

	summary := strings.Join(parts, "; ")
	if rep.DryRun {
		summary += " (Dry run)"
	}
	if rep.Aborted != "" {
		summary += " (Aborted)"
	}
	return summary
}
