package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/agentstation/rostersync/pkg/resolver"
)

// Render writes the terminal summary: counts per strategy and per stage
// outcome, the unmatched entities and the first few errors.
func (r *Report) Render(w io.Writer) error {
	mode := ""
	if r.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(w, "Run %s%s\n", r.RunID, mode)
	fmt.Fprintf(w, "Entities: %d, rejected: %d, with asset: %d/%d\n\n",
		r.Entities, r.Rejected, r.Matching.WithAsset, r.Matching.Total)

	if err := renderTable(w, []string{"Strategy", "Count"}, r.strategyRows()); err != nil {
		return err
	}

	if len(r.Stages) > 0 {
		fmt.Fprintln(w)
		if err := renderTable(w, stageHeader(), r.stageRows()); err != nil {
			return err
		}
	}

	if r.UnmatchedTotal > 0 {
		fmt.Fprintf(w, "\nUnmatched (%d of %d):\n", len(r.Unmatched), r.UnmatchedTotal)
		if err := renderTable(w, []string{"Key", "Name", "Romanized"}, r.unmatchedRows()); err != nil {
			return err
		}
	}

	if r.ErrorTotal > 0 {
		fmt.Fprintf(w, "\nErrors (%d of %d):\n", len(r.Errors), r.ErrorTotal)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  [%s] %s: %s\n", e.Stage, e.Key, e.Detail)
		}
	}

	if r.PublicURL != "" {
		fmt.Fprintf(w, "\nPublic URL: %s\n", r.PublicURL)
	}
	if r.Aborted != "" {
		fmt.Fprintf(w, "\nAborted: %s\n", r.Aborted)
	}
	return nil
}

func renderTable(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewTable(w)
	h := make([]any, len(header))
	for i, v := range header {
		h[i] = v
	}
	table.Header(h...)
	for _, row := range rows {
		cells := make([]any, len(row))
		for i, v := range row {
			cells[i] = v
		}
		if err := table.Append(cells...); err != nil {
			return err
		}
	}
	return table.Render()
}

func (r *Report) strategyRows() [][]string {
	rows := make([][]string, 0, len(resolver.Strategies()))
	for _, s := range resolver.Strategies() {
		rows = append(rows, []string{s.String(), strconv.Itoa(r.Matching.ByStrategy[s.String()])})
	}
	return rows
}

func stageHeader() []string {
	header := []string{"Stage"}
	for _, a := range Actions() {
		header = append(header, a.String())
	}
	return header
}

func (r *Report) stageRows() [][]string {
	rows := make([][]string, 0, len(r.Stages))
	for _, st := range r.Stages {
		row := []string{st.Name}
		for _, a := range Actions() {
			row = append(row, strconv.Itoa(st.Count(a)))
		}
		rows = append(rows, row)
	}
	return rows
}

func (r *Report) unmatchedRows() [][]string {
	rows := make([][]string, 0, len(r.Unmatched))
	for _, u := range r.Unmatched {
		rows = append(rows, []string{u.NaturalKey, u.DisplayName, u.RomanizedName})
	}
	return rows
}
