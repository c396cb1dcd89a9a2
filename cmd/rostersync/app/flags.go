package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/agentstation/rostersync/pkg/errors"
)

// Flags holds the global flag values.
type Flags struct {
	ConfigFile string
	Verbose    bool
	Quiet      bool
	NoColor    bool
	LogLevel   string
	Format     string
	DryRun     bool

	// Logging destinations come from the environment only
	LogFormat string
	LogOutput string
}

// configKeyAnnotation marks a flag as an override for a config key.
const configKeyAnnotation = "rostersync/config-key"

// bindConfigKey records that flag name overrides config key. The binding
// is applied in setupCommand, for the command being executed only, so
// several commands can offer the same override.
func bindConfigKey(flags *pflag.FlagSet, name, key string) {
	if err := flags.SetAnnotation(name, configKeyAnnotation, []string{key}); err != nil {
		panic("programming error: failed to annotate flag " + name + ": " + err.Error())
	}
}

// bindConfigFlags binds every annotated flag of cmd into the app's viper.
func (a *App) bindConfigFlags(cmd *cobra.Command) error {
	var err error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		keys, ok := f.Annotations[configKeyAnnotation]
		if !ok || len(keys) == 0 || err != nil {
			return
		}
		if bindErr := a.viper.BindPFlag(keys[0], f); bindErr != nil {
			err = errors.NewConfigError("flags", "failed to bind --"+f.Name, bindErr)
		}
	})
	return err
}

// addSourceFlags adds the input overrides shared by every pipeline command.
func addSourceFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("entities", "e", "", "entity roster file (JSON or YAML)")
	f.StringP("pool", "p", "", "asset pool directory")
	f.StringP("bridge", "b", "", "bridge records file (JSON or YAML)")
	bindConfigKey(f, "entities", "input.entities")
	bindConfigKey(f, "pool", "pool.dir")
	bindConfigKey(f, "bridge", "bridge.path")
}

// addSyncFlags adds the remote-facing overrides.
func addSyncFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("concurrency", 0, "concurrent uploads")
	f.Duration("timeout", 0, "timeout for the whole run (0 disables it)")
	f.String("apply", "", "which record changes to send: all, updates-only, creates-only")
	f.String("report", "", "write the run report to this path (.json, .yaml or .md)")
	bindConfigKey(f, "concurrency", "sync.concurrency")
	bindConfigKey(f, "timeout", "sync.timeout")
	bindConfigKey(f, "apply", "sync.apply_strategy")
	bindConfigKey(f, "report", "report.path")
}
