package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	md "github.com/nao1215/markdown"

	"github.com/agentstation/rostersync/pkg/constants"
	"github.com/agentstation/rostersync/pkg/errors"
)

// Markdown writes the summary as a markdown document, suitable for
// attaching to a ticket or a pull request.
func (r *Report) Markdown(w io.Writer) error {
	doc := md.NewMarkdown(w).H1(fmt.Sprintf("Sync run %s", r.RunID))

	facts := []string{
		fmt.Sprintf("Started: %s", r.StartedAt.Format("2006-01-02 15:04:05 MST")),
		fmt.Sprintf("Dry run: %t", r.DryRun),
		fmt.Sprintf("Entities: %d (rejected %d)", r.Entities, r.Rejected),
		fmt.Sprintf("With asset: %d of %d", r.Matching.WithAsset, r.Matching.Total),
	}
	if d := r.Duration(); d > 0 {
		facts = append(facts, fmt.Sprintf("Duration: %s", d.Round(time.Millisecond)))
	}
	if r.Aborted != "" {
		facts = append(facts, fmt.Sprintf("Aborted: %s", r.Aborted))
	}
	doc.BulletList(facts...)

	doc.H2("Matching").Table(md.TableSet{Header: []string{"Strategy", "Count"}, Rows: r.strategyRows()})

	if len(r.Stages) > 0 {
		doc.H2("Stages").Table(md.TableSet{Header: stageHeader(), Rows: r.stageRows()})
	}
	if r.UnmatchedTotal > 0 {
		doc.H2(fmt.Sprintf("Unmatched (%d of %d)", len(r.Unmatched), r.UnmatchedTotal)).
			Table(md.TableSet{Header: []string{"Key", "Name", "Romanized"}, Rows: r.unmatchedRows()})
	}
	if r.ErrorTotal > 0 {
		items := make([]string, 0, len(r.Errors))
		for _, e := range r.Errors {
			items = append(items, fmt.Sprintf("%s %s: %s", e.Stage, md.Code(e.Key), e.Detail))
		}
		doc.H2(fmt.Sprintf("Errors (%d of %d)", len(r.Errors), r.ErrorTotal)).BulletList(items...)
	}
	return doc.Build()
}

// WriteMarkdownFile writes the markdown summary to path.
func (r *Report) WriteMarkdownFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
		return errors.WrapIO("mkdir", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.WrapIO("create", path, err)
	}
	if err := r.Markdown(f); err != nil {
		_ = f.Close()
		return errors.WrapIO("write", path, err)
	}
	return errors.WrapIO("close", path, f.Close())
}
