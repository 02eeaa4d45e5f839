package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-scenes/internal/automation"
	"github.com/nerrad567/gray-logic-scenes/internal/device"
	"github.com/nerrad567/gray-logic-scenes/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-scenes/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-scenes/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-scenes/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-scenes/internal/state"
	"github.com/nerrad567/gray-logic-scenes/migrations"
)

// runOptions holds the flags of the run command.
type runOptions struct {
	live    bool
	settle  time.Duration
	timeout time.Duration
}

// runReport is printed by the run command.
type runReport struct {
	Executions []automation.SceneExecution `json:"executions"`
	Scope      map[string]map[string]any   `json:"scope"`
	Commands   []commandReport             `json:"commands,omitempty"`
}

type commandReport struct {
	Device  string         `json:"device"`
	Feature device.Feature `json:"feature"`
	Value   any            `json:"value"`
}

func newRunCmd(opts *globalOptions) *cobra.Command {
	ro := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <scenes-file> <selector>",
		Short: "Execute one scene from a YAML file and print the outcome",
		Long: `Loads the scenes of a YAML file, executes one of them and prints every
execution record, the shared result scope and (in dry-run mode) the device
commands that would have been sent.

By default no command leaves the process. With --live the scene drives real
devices over MQTT, using retained bridge state collected during --settle.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(!ro.live)
			if err != nil {
				return err
			}
			cfg.Logging.Output = "stderr"
			return runScene(cmd.Context(), cmd.OutOrStdout(), cfg, args[0], args[1], ro)
		},
	}

	cmd.Flags().BoolVar(&ro.live, "live", false, "send device commands over MQTT instead of a dry run")
	cmd.Flags().DurationVar(&ro.settle, "settle", 500*time.Millisecond, "time to collect retained device state before executing (--live only)")
	cmd.Flags().DurationVar(&ro.timeout, "timeout", time.Minute, "maximum time to wait for the scene and its chained scenes")

	return cmd
}

// runScene executes selector from path and writes a runReport to out.
func runScene(ctx context.Context, out io.Writer, cfg *config.Config, path, selector string, ro *runOptions) error {
	log := newLogger(cfg)

	scenes, err := automation.LoadScenesFile(path)
	if err != nil {
		return err
	}

	store := state.NewStore()
	var commander device.Commander
	var dryRun *device.DryRunCommander

	if ro.live {
		mqttClient, connErr := mqtt.Connect(cfg.MQTT)
		if connErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", connErr)
		}
		defer func() {
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)

		if subErr := state.NewSubscriber(store, log).Start(mqttClient, byte(cfg.MQTT.QoS)); subErr != nil {
			return subErr
		}
		if sleepErr := sleepContext(ctx, ro.settle); sleepErr != nil {
			return sleepErr
		}
		log.Info("device state collected",
			"devices", len(store.Keys(state.EntityDevice)),
			"features", len(store.Keys(state.EntityDeviceFeature)),
		)
		commander = device.NewMQTTCommander(mqttClient, store, device.WithLogger(log))
	} else {
		dryRun = device.NewDryRunCommander(log)
		commander = dryRun
	}

	var (
		mu         sync.Mutex
		executions []automation.SceneExecution
	)
	collect := automation.ExecutionObserverFunc(func(_ context.Context, exec *automation.SceneExecution) {
		mu.Lock()
		executions = append(executions, *exec)
		mu.Unlock()
	})

	registry := automation.NewRegistry(nil)
	registry.SetLogger(log)
	engine := automation.NewEngine(registry, automation.EngineOptions{
		States:           store,
		Commander:        commander,
		StageConcurrency: cfg.Engine.StageConcurrency,
		CommandTimeout:   cfg.GetCommandTimeout(),
		Observers:        []automation.ExecutionObserver{collect},
		Logger:           log,
	})
	defer engine.Close() //nolint:errcheck // Close never fails

	for i := range scenes {
		if addErr := engine.AddScene(&scenes[i]); addErr != nil {
			return addErr
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, ro.timeout)
	defer cancel()

	scope := automation.NewScope()
	if execErr := engine.Execute(waitCtx, selector, scope); execErr != nil {
		return execErr
	}
	if waitErr := engine.Wait(waitCtx); waitErr != nil {
		return fmt.Errorf("waiting for scene %q: %w", selector, waitErr)
	}

	mu.Lock()
	report := runReport{
		Executions: append([]automation.SceneExecution(nil), executions...),
		Scope:      scope.Snapshot(),
	}
	mu.Unlock()

	if dryRun != nil {
		for _, c := range dryRun.Calls() {
			report.Commands = append(report.Commands, commandReport{Device: c.Device, Feature: c.Feature, Value: c.Value})
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func newValidateCmd(_ *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <scenes-file>",
		Short: "Check a YAML scene file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenes, err := automation.LoadScenesFile(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i := range scenes {
				fmt.Fprintf(out, "%s\t%d stages\t%d actions\n", scenes[i].Selector, len(scenes[i].Actions), scenes[i].ActionCount())
			}
			fmt.Fprintln(out, color.GreenString("%d scenes OK", len(scenes)))
			return nil
		},
	}
}

func newImportCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <scenes-file>",
		Short: "Store the scenes of a YAML file in the database",
		Long:  "Validates every scene first; nothing is written if any scene is invalid. Existing scenes with the same selector are replaced.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(true)
			if err != nil {
				return err
			}
			cfg.Logging.Output = "stderr"

			scenes, err := automation.LoadScenesFile(args[0])
			if err != nil {
				return err
			}

			return withDatabase(cmd.Context(), cfg, func(db *database.DB) error {
				registry := automation.NewRegistry(automation.NewSQLiteRepository(db.DB))
				registry.SetLogger(newLogger(cfg))

				for i := range scenes {
					if saveErr := registry.SaveScene(cmd.Context(), &scenes[i]); saveErr != nil {
						return fmt.Errorf("saving scene %q: %w", scenes[i].Selector, saveErr)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d scenes into %s\n", len(scenes), db.Path())
				return nil
			})
		},
	}
}

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <selector>",
		Short: "Show recent executions of a scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(true)
			if err != nil {
				return err
			}
			cfg.Logging.Output = "stderr"

			return withDatabase(cmd.Context(), cfg, func(db *database.DB) error {
				execs, listErr := automation.NewSQLiteRepository(db.DB).ListExecutions(cmd.Context(), args[0], limit)
				if listErr != nil {
					return listErr
				}
				return printHistory(cmd.OutOrStdout(), execs)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "number of executions to show (max 100)")

	return cmd
}

// withDatabase opens and migrates the configured database for fn.
func withDatabase(ctx context.Context, cfg *config.Config, fn func(db *database.DB) error) error {
	log := newLogger(cfg)

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer closeDatabase(db, log)

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return fn(db)
}

func closeDatabase(db *database.DB, log *logging.Logger) {
	if err := db.Close(); err != nil {
		log.Error("error closing database", "error", err)
	}
}

func printHistory(out io.Writer, execs []automation.SceneExecution) error {
	if len(execs) == 0 {
		_, err := fmt.Fprintln(out, "no executions recorded")
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSTATUS\tSTAGES\tFAILED\tDURATION\tROOT")
	for _, e := range execs {
		status := string(e.Status)
		if e.AbortStage != nil {
			status = fmt.Sprintf("%s@%d", status, *e.AbortStage)
		}
		status = statusColor(e.Status).Sprint(status)
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%d\t%dms\t%s\n",
			e.StartedAt.Local().Format(time.DateTime),
			status,
			e.StagesRun, e.StagesTotal,
			e.ActionsFailed,
			e.DurationMS,
			e.RootID,
		)
	}
	return tw.Flush()
}

// statusColor picks the history colour of an execution status.
func statusColor(status automation.ExecutionStatus) *color.Color {
	switch status {
	case automation.StatusCompleted:
		return color.New(color.FgGreen)
	case automation.StatusAborted:
		return color.New(color.FgYellow)
	case automation.StatusNotFound:
		return color.New(color.FgHiBlack)
	default:
		return color.New(color.FgRed)
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
