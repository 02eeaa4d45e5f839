// Gray Logic Scenes - scene automation engine
//
// graylogic-scenes runs multi-stage scenes against the Gray Logic device
// bus. In serve mode it loads scenes from SQLite (and optionally a YAML
// file), mirrors device state from MQTT and executes scenes on request.
// The one-shot subcommands validate, import and dry-run scene files.
//
// Usage:
//
//	graylogic-scenes [--config FILE] [--log-level LEVEL] <command>
//
// Commands:
//
//	serve     Run the engine until interrupted
//	run       Execute one scene from a YAML file and print the outcome
//	validate  Check a YAML scene file
//	import    Store the scenes of a YAML file in the database
//	history   Show recent executions of a scene
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-scenes/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-scenes/internal/infrastructure/logging"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
	noColor    bool
}

func main() {
	// Cancel on Ctrl+C or SIGTERM so every command shuts down cleanly.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "graylogic-scenes",
		Short:         "Gray Logic scene automation engine",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "configuration file (default $GRAYLOGIC_CONFIG or "+defaultConfigPath+")")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable coloured output")

	root.PersistentPreRun = func(*cobra.Command, []string) {
		if opts.noColor {
			color.NoColor = true
		}
	}

	root.AddCommand(
		newServeCmd(opts),
		newRunCmd(opts),
		newValidateCmd(opts),
		newImportCmd(opts),
		newHistoryCmd(opts),
	)

	return root
}

// getConfigPath returns the configuration file path.
// The --config flag wins, then GRAYLOGIC_CONFIG, then the default.
func (o *globalOptions) getConfigPath() string {
	if o.configPath != "" {
		return o.configPath
	}
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadConfig loads the configuration file. When optional is true and no
// file was requested explicitly, a missing default file falls back to the
// built-in defaults.
func (o *globalOptions) loadConfig(optional bool) (*config.Config, error) {
	path := o.getConfigPath()
	explicit := o.configPath != "" || os.Getenv("GRAYLOGIC_CONFIG") != ""

	var cfg *config.Config
	if _, statErr := os.Stat(path); optional && !explicit && os.IsNotExist(statErr) {
		cfg = config.Default()
	} else {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

// newLogger builds the configured logger.
func newLogger(cfg *config.Config) *logging.Logger {
	return logging.New(cfg.Logging, version)
}
