package report

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/agentstation/rostersync/pkg/constants"
	"github.com/agentstation/rostersync/pkg/resolver"
	"github.com/agentstation/rostersync/pkg/roster"
	"github.com/agentstation/rostersync/pkg/save"
)

// Stage names.
const (
	StageRelinks = "relinks"
	StageRecords = "records"
	StageUploads = "uploads"
)

// Unmatched is an entity no strategy could link to an asset.
type Unmatched struct {
	NaturalKey    string `json:"naturalKey" yaml:"naturalKey"`
	DisplayName   string `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	RomanizedName string `json:"romanizedName,omitempty" yaml:"romanizedName,omitempty"`
}

// ErrorDetail is one failed item shown in the summary.
type ErrorDetail struct {
	Stage  string `json:"stage" yaml:"stage"`
	Key    string `json:"key" yaml:"key"`
	Detail string `json:"detail" yaml:"detail"`
}

// Matching summarizes resolution.
type Matching struct {
	Total      int            `json:"total" yaml:"total"`
	WithAsset  int            `json:"withAsset" yaml:"withAsset"`
	ByStrategy map[string]int `json:"byStrategy" yaml:"byStrategy"`
}

// Stage summarizes the outcomes of one pipeline stage.
type Stage struct {
	Name   string         `json:"name" yaml:"name"`
	Counts map[string]int `json:"counts" yaml:"counts"`
	Total  int            `json:"total" yaml:"total"`
}

// Count returns the number of outcomes with the given action.
func (s Stage) Count(a Action) int {
	return s.Counts[a.String()]
}

// Report is the run-level summary. It is built even when the run aborts.
type Report struct {
	RunID      string    `json:"runId" yaml:"runId"`
	StartedAt  time.Time `json:"startedAt" yaml:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitzero" yaml:"finishedAt,omitempty"`
	DryRun     bool      `json:"dryRun" yaml:"dryRun"`

	Entities int `json:"entities" yaml:"entities"`
	Rejected int `json:"rejected" yaml:"rejected"`

	Matching Matching `json:"matching" yaml:"matching"`
	Stages   []Stage  `json:"stages" yaml:"stages"`

	Unmatched      []Unmatched   `json:"unmatched" yaml:"unmatched"`
	UnmatchedTotal int           `json:"unmatchedTotal" yaml:"unmatchedTotal"`
	Errors         []ErrorDetail `json:"errors" yaml:"errors"`
	ErrorTotal     int           `json:"errorTotal" yaml:"errorTotal"`

	PublicURL string `json:"publicUrl,omitempty" yaml:"publicUrl,omitempty"`
	Aborted   string `json:"aborted,omitempty" yaml:"aborted,omitempty"`

	maxUnmatched int
	maxErrors    int
}

// New starts a report for one run.
func New(runID string, dryRun bool) *Report {
	return &Report{
		RunID:        runID,
		StartedAt:    time.Now().UTC(),
		DryRun:       dryRun,
		Matching:     Matching{ByStrategy: map[string]int{}},
		Unmatched:    []Unmatched{},
		Errors:       []ErrorDetail{},
		maxUnmatched: constants.MaxUnmatchedReported,
		maxErrors:    constants.MaxErrorsShown,
	}
}

// SetMatches records resolution results. Entities and matches are parallel.
func (r *Report) SetMatches(entities []roster.EntityRecord, matches []resolver.MatchResult) {
	r.Entities = len(entities)
	r.Matching = Matching{Total: len(matches), ByStrategy: make(map[string]int)}
	for s, n := range resolver.Counts(matches) {
		r.Matching.ByStrategy[s.String()] = n
	}
	r.Unmatched = r.Unmatched[:0]
	r.UnmatchedTotal = 0
	for i, m := range matches {
		if m.Matched() {
			r.Matching.WithAsset++
			continue
		}
		r.UnmatchedTotal++
		if len(r.Unmatched) < r.maxUnmatched && i < len(entities) {
			e := entities[i]
			r.Unmatched = append(r.Unmatched, Unmatched{
				NaturalKey:    e.NaturalKey,
				DisplayName:   e.DisplayName,
				RomanizedName: e.RomanizedName,
			})
		}
	}
}

// AddStage records the outcomes of one stage and keeps the first failures.
func (r *Report) AddStage(name string, outcomes []Outcome) {
	st := Stage{Name: name, Counts: make(map[string]int, len(actionNames)), Total: len(outcomes)}
	for a, n := range Tally(outcomes) {
		st.Counts[a.String()] = n
	}
	for _, o := range outcomes {
		if o.Action != Failed {
			continue
		}
		r.ErrorTotal++
		if len(r.Errors) < r.maxErrors {
			r.Errors = append(r.Errors, ErrorDetail{Stage: name, Key: o.Key, Detail: o.Detail})
		}
	}
	r.Stages = append(r.Stages, st)
}

// Stage returns the named stage summary.
func (r *Report) Stage(name string) (Stage, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return Stage{}, false
}

// Abort records the error that stopped the run.
func (r *Report) Abort(err error) {
	if err != nil {
		r.Aborted = err.Error()
	}
}

// Failed is the total number of failed items across stages.
func (r *Report) Failed() int {
	return r.ErrorTotal
}

// Finish stamps the end time.
func (r *Report) Finish() {
	r.FinishedAt = time.Now().UTC()
}

// Duration is the run's wall time, or zero before Finish.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Write saves the report. A .md path gets the markdown summary, .yaml or
// .yml gets YAML, anything else JSON.
func (r *Report) Write(path string) error {
	if strings.EqualFold(filepath.Ext(path), ".md") {
		return r.WriteMarkdownFile(path)
	}
	return save.Write(r, save.WithPath(path))
}
