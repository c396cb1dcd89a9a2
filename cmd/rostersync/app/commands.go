package app

import (
	"fmt"
	"runtime"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/agentstation/rostersync/internal/cmd/output"
	"github.com/agentstation/rostersync/pkg/report"
	"github.com/agentstation/rostersync/pkg/sync"
)

// NewRunCommand creates the run command: every stage, in order.
func (a *App) NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		GroupID: "pipeline",
		Short:   "Match, relink, sync records and upload assets",
		Long: `Run resolves every entity to an asset in the pool, copies matched assets
to canonical names, creates or updates one remote record per entity and
uploads the linked assets. A report of every stage is printed and, with
--report, written to a file.`,
		Example: `  rostersync run -e staff.json -p ./photos
  rostersync run --dry-run --report report.md
  rostersync run --skip-uploads --apply updates-only`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			skipRelink, _ := cmd.Flags().GetBool("skip-relink")
			skipRecords, _ := cmd.Flags().GetBool("skip-records")
			skipUploads, _ := cmd.Flags().GetBool("skip-uploads")

			needs := AllStores
			if skipRecords {
				needs &^= RecordStore
			}
			if skipUploads {
				needs &^= BlobStore
			}
			return a.runPipeline(cmd, needs,
				sync.WithSkipRelink(skipRelink),
				sync.WithSkipRecords(skipRecords),
				sync.WithSkipUploads(skipUploads),
			)
		},
	}
	addSourceFlags(cmd)
	addSyncFlags(cmd)
	addUploadFlags(cmd)
	addOutputFlag(cmd)
	cmd.Flags().Bool("skip-relink", false, "do not copy matched assets to canonical names")
	cmd.Flags().Bool("skip-records", false, "do not create or update remote records")
	cmd.Flags().Bool("skip-uploads", false, "do not upload assets")
	return cmd
}

// NewMatchCommand creates the match command: resolution only.
func (a *App) NewMatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "match",
		GroupID: "stages",
		Short:   "Show which asset each entity resolves to",
		Long: `Match scans the pool and resolves every entity without writing anything,
locally or remotely.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := a.Context(cmd.Context())
			client, err := a.Client(ctx, NoStores)
			if err != nil {
				return err
			}
			in, err := a.loadInputs()
			if err != nil {
				return err
			}

			rec, err := client.Match(ctx, in.Entities, in.Bridge)
			if err != nil {
				return err
			}

			format := output.DetectFormat(a.flags.Format)
			if format != output.FormatTable {
				return output.NewFormatter(format).Format(cmd.OutOrStdout(), rec.Matches)
			}
			rows := make([][]string, 0, len(rec.Matches))
			for i, m := range rec.Matches {
				asset, score := "", ""
				if m.Matched() {
					asset = m.MatchedAsset.Name()
				}
				if m.Score > 0 {
					score = strconv.Itoa(m.Score)
				}
				rows = append(rows, []string{m.NaturalKey, in.Entities[i].DisplayName, m.Strategy.String(), asset, score})
			}
			if err := output.NewFormatter(format).Format(cmd.OutOrStdout(), output.Data{
				Headers: []string{"Key", "Name", "Strategy", "Asset", "Score"},
				Rows:    rows,
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d entities matched\n", rec.Matched(), len(rec.Matches))
			return nil
		},
	}
	addSourceFlags(cmd)
	return cmd
}

// NewRelinkCommand creates the relink command: resolution and canonical copies.
func (a *App) NewRelinkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "relink",
		GroupID: "stages",
		Short:   "Copy matched assets to canonical names",
		Long: `Relink resolves every entity and copies its matched asset to
<natural key>.<extension> in the pool. Originals are kept and existing
canonical files are never overwritten. With --output the roster is written
back out with the asset field set.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runPipeline(cmd, NoStores,
				sync.WithSkipRecords(true),
				sync.WithSkipUploads(true),
			)
		},
	}
	addSourceFlags(cmd)
	addOutputFlag(cmd)
	cmd.Flags().String("report", "", "write the run report to this path (.json, .yaml or .md)")
	bindConfigKey(cmd.Flags(), "report", "report.path")
	return cmd
}

// NewPushCommand creates the push command: relink then sync records.
func (a *App) NewPushCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "push",
		GroupID: "stages",
		Short:   "Create or update remote records",
		Long: `Push relinks assets and then creates or updates one remote record per
entity, keyed by natural key. Assets are not uploaded.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			skipRelink, _ := cmd.Flags().GetBool("skip-relink")
			return a.runPipeline(cmd, RecordStore,
				sync.WithSkipRelink(skipRelink),
				sync.WithSkipUploads(true),
			)
		},
	}
	addSourceFlags(cmd)
	addSyncFlags(cmd)
	addOutputFlag(cmd)
	cmd.Flags().Bool("skip-relink", false, "do not copy matched assets to canonical names")
	return cmd
}

// NewUploadCommand creates the upload command: relink then upload assets.
func (a *App) NewUploadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "upload",
		GroupID: "stages",
		Short:   "Upload assets to the object store",
		Long: `Upload relinks assets and uploads every linked canonical asset that is
not already in the bucket. With --all every pool file is uploaded.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			skipRelink, _ := cmd.Flags().GetBool("skip-relink")
			return a.runPipeline(cmd, BlobStore,
				sync.WithSkipRelink(skipRelink),
				sync.WithSkipRecords(true),
			)
		},
	}
	addSourceFlags(cmd)
	addSyncFlags(cmd)
	addUploadFlags(cmd)
	cmd.Flags().Bool("skip-relink", false, "do not copy matched assets to canonical names")
	return cmd
}

// NewVersionCommand creates the version command.
func (a *App) NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Show version information",
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("rostersync %s\n", a.version)
			if a.flags.Verbose {
				cmd.Printf("  commit:   %s\n", a.commit)
				cmd.Printf("  built:    %s\n", a.date)
				cmd.Printf("  built by: %s\n", a.builtBy)
				cmd.Printf("  go:       %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			}
		},
	}
}

func addUploadFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("all", false, "upload every pool file, not only linked assets")
	bindConfigKey(cmd.Flags(), "all", "sync.upload_all")
}

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().String("output", "", "write the relinked roster to this path")
	bindConfigKey(cmd.Flags(), "output", "output.path")
}

// printReport writes the run report in the selected format.
func (a *App) printReport(cmd *cobra.Command, rep *report.Report) error {
	format := output.DetectFormat(a.flags.Format)
	if format == output.FormatTable {
		return rep.Render(cmd.OutOrStdout())
	}
	return output.NewFormatter(format).Format(cmd.OutOrStdout(), rep)
}
