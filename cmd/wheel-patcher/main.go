package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/open-edge-platform/wheel-patcher/internal/config"
	"github.com/open-edge-platform/wheel-patcher/internal/utils/logger"
)

var (
	cfgFile  string
	logLevel string
	helpers  *config.ConfigHelpers
)

func main() {
	err := createRootCommand().Execute()
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// createRootCommand builds the root command with every subcommand and
// the logging hooks attached.
func createRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "wheel-patcher",
		Short: "patch, rebuild, and inspect Python wheels",
		Long: `wheel-patcher applies unified-diff patches to Python wheels and
repackages them deterministically, keeping the RECORD manifest in sync
with the patched contents. It can also assemble wheels from scratch,
compare and verify RECORD manifests, and fetch wheels for patching.`,
		SilenceUsage: true,
	}
	root.SetGlobalNormalizationFunc(normalizeFlagName)

	root.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default "+config.DefaultConfigFile+" in the working directory)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level: debug, info, warn, or error")
	root.PersistentFlags().BoolP("verbose", "v", false,
		"shorthand for --log-level debug")

	root.AddCommand(createPatchCommand())
	root.AddCommand(createBuildCommand())
	root.AddCommand(createCompareCommand())
	root.AddCommand(createVerifyCommand())
	root.AddCommand(createFetchCommand())

	attachLoggingHooks(root)
	return root
}

// normalizeFlagName lets underscore-spelled flag names resolve to their
// dashed forms.
func normalizeFlagName(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// resolveRequestedLogLevel returns the level asked for on the command
// line: an explicit --log-level wins, --verbose means debug, and empty
// defers to the config file.
func resolveRequestedLogLevel(cmd *cobra.Command) string {
	if logLevel != "" {
		return logLevel
	}
	if cmd != nil {
		if verbose, err := cmd.Flags().GetBool("verbose"); err == nil && verbose {
			return "debug"
		}
	}
	return ""
}

// attachLoggingHooks wires config loading and logger setup into every
// subcommand before it runs.
func attachLoggingHooks(root *cobra.Command) {
	for _, cmd := range root.Commands() {
		cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
			return initLogger(cmd)
		}
	}
}

// initLogger loads the global config and installs the logger at the
// resolved level.
func initLogger(cmd *cobra.Command) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	helpers = config.NewConfigHelpers(cfg)

	level := resolveRequestedLogLevel(cmd)
	if level == "" {
		level = helpers.LogLevel()
	}
	return logger.Setup(level)
}

// ensureHelpers covers code paths exercised without the pre-run hook.
func ensureHelpers() *config.ConfigHelpers {
	if helpers == nil {
		helpers = config.NewConfigHelpers(config.Default())
	}
	return helpers
}
