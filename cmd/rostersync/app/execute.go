package app

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/rostersync/internal/cmd/output"
)

// Execute runs the CLI with the given arguments.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand creates the root cobra command with all subcommands.
func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "rostersync",
		Short:   "Link a staff roster to its photos and sync both to a remote store",
		Version: a.version,
		Long: `rostersync reconciles a roster of entities with a directory of photo
files whose names are unreliable, copies every matched photo to a canonical
name derived from the entity's key, and synchronizes the records and photos
into a remote database and object store.

Every command is safe to re-run: records are created or updated by natural
key, copies never overwrite, and uploads skip objects that already exist.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.AddGroup(&cobra.Group{ID: "pipeline", Title: "Pipeline Commands:"})
	rootCmd.AddGroup(&cobra.Group{ID: "stages", Title: "Stage Commands:"})

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.flags.ConfigFile, "config", "", "config file (default is $HOME/.rostersync.yaml)")
	flags.BoolVarP(&a.flags.Verbose, "verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	flags.BoolVarP(&a.flags.Quiet, "quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	flags.BoolVar(&a.flags.NoColor, "no-color", false, "disable colored output")
	flags.StringVar(&a.flags.LogLevel, "log-level", "", "log level: trace, debug, info, warn, error (overrides -v/-q)")
	flags.StringVarP(&a.flags.Format, "format", "o", "", "output format: table, json, yaml")
	flags.BoolVar(&a.flags.DryRun, "dry-run", false, "report what would change without writing anything")

	rootCmd.SetVersionTemplate("rostersync {{.Version}}\n")
	if a.out != nil {
		rootCmd.SetOut(a.out)
	}

	a.registerCommands(rootCmd)
	return rootCmd
}

// setupCommand is called before any command runs. It rebuilds the logger
// from the parsed flags and loads configuration with the command's flag
// overrides bound.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	if _, err := output.ParseFormat(a.flags.Format); err != nil {
		return err
	}

	if !a.fixedLogger {
		logger := NewLogger(a.flags)
		a.logger = &logger
	}

	if cmd.Annotations[skipConfigAnnotation] == "true" {
		return nil
	}
	if err := a.bindConfigFlags(cmd); err != nil {
		return err
	}
	if err := a.loadConfig(); err != nil {
		return err
	}
	if a.config.ConfigFile != "" {
		a.logger.Debug().Str("file", a.config.ConfigFile).Msg("Loaded config file")
	}
	return nil
}

// skipConfigAnnotation marks commands that need no configuration.
const skipConfigAnnotation = "rostersync/skip-config"

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	// Pipeline commands
	rootCmd.AddCommand(a.NewRunCommand())
	rootCmd.AddCommand(a.NewWatchCommand())

	// Stage commands
	rootCmd.AddCommand(a.NewMatchCommand())
	rootCmd.AddCommand(a.NewRelinkCommand())
	rootCmd.AddCommand(a.NewPushCommand())
	rootCmd.AddCommand(a.NewUploadCommand())

	// Utility commands
	rootCmd.AddCommand(a.NewVersionCommand())
}

// ExitOnError prints err and exits with status 1. It does nothing for a
// nil error.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
