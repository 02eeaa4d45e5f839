package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-scenes/internal/automation"
	"github.com/nerrad567/gray-logic-scenes/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-scenes/internal/infrastructure/mqtt"
)

const testScenes = `
scenes:
  - selector: evening
    name: Evening
    actions:
      - - type: light.turn-on
          devices: [light-hall, light-lounge]
        - type: scene.start
          scene: blinds-down
  - selector: blinds-down
    name: Blinds down
    actions:
      - - type: switch.turn-off
          devices: [blind-motor-1]
`

// ─── Helpers ───────────────────────────────────────────────────────

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

// execute runs the root command in an empty working directory so no stray
// configs/config.yaml is picked up.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("GRAYLOGIC_CONFIG", "")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := root.ExecuteContext(ctx)
	return out.String(), err
}

// testConfig writes a config file using a database under dir.
func testConfig(t *testing.T, dir string) string {
	t.Helper()
	return writeFile(t, dir, "config.yaml", `
site:
  id: test-site
database:
  path: `+filepath.Join(dir, "scenes.db")+`
  wal_mode: true
  busy_timeout: 5
logging:
  level: error
  format: text
  output: stderr
metrics:
  enabled: false
`)
}

// ─── Root Command ──────────────────────────────────────────────────

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	want := []string{"serve", "run", "validate", "import", "history"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered (err=%v)", name, err)
		}
	}

	for _, flag := range []string{"config", "log-level", "no-color"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag --%s missing", flag)
		}
	}
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	if _, err := execute(t, "bogus"); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

// ─── Config Loading ────────────────────────────────────────────────

func TestLoadConfig_OptionalFallsBackToDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GRAYLOGIC_CONFIG", "")

	opts := &globalOptions{logLevel: "debug"}
	cfg, err := opts.loadConfig(true)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Site.ID == "" {
		t.Error("defaults not applied")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadConfig_RequiredMissingFails(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GRAYLOGIC_CONFIG", "")

	opts := &globalOptions{}
	if _, err := opts.loadConfig(false); err == nil {
		t.Fatal("expected error when the default config file is missing")
	}
}

func TestLoadConfig_ExplicitMissingFails(t *testing.T) {
	t.Setenv("GRAYLOGIC_CONFIG", "")

	opts := &globalOptions{configPath: filepath.Join(t.TempDir(), "missing.yaml")}
	if _, err := opts.loadConfig(true); err == nil {
		t.Fatal("an explicitly requested config must exist even for optional loads")
	}
}

func TestGetConfigPath(t *testing.T) {
	tests := []struct {
		name string
		flag string
		env  string
		want string
	}{
		{"default", "", "", defaultConfigPath},
		{"env", "", "/etc/graylogic/env.yaml", "/etc/graylogic/env.yaml"},
		{"flag wins", "/tmp/flag.yaml", "/etc/graylogic/env.yaml", "/tmp/flag.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GRAYLOGIC_CONFIG", tt.env)
			opts := &globalOptions{configPath: tt.flag}
			if got := opts.getConfigPath(); got != tt.want {
				t.Errorf("getConfigPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ─── validate ──────────────────────────────────────────────────────

func TestValidateCmd(t *testing.T) {
	path := writeFile(t, t.TempDir(), "scenes.yaml", testScenes)

	out, err := execute(t, "--no-color", "validate", path)
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}
	if !strings.Contains(out, "2 scenes OK") {
		t.Errorf("output = %q, want summary line", out)
	}
	if !strings.Contains(out, "evening\t1 stages\t2 actions") {
		t.Errorf("output = %q, want per-scene line for evening", out)
	}
}

func TestValidateCmd_InvalidFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "scenes.yaml", `
scenes:
  - selector: Bad Selector
    name: Bad
    actions: []
`)

	if _, err := execute(t, "validate", path); err == nil {
		t.Fatal("expected validation error")
	}
}

// ─── run ───────────────────────────────────────────────────────────

func TestRunCmd_DryRun(t *testing.T) {
	path := writeFile(t, t.TempDir(), "scenes.yaml", testScenes)

	out, err := execute(t, "run", path, "evening")
	if err != nil {
		t.Fatalf("run error = %v", err)
	}

	var report runReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decoding report: %v\n%s", err, out)
	}

	if len(report.Executions) != 2 {
		t.Fatalf("executions = %d, want 2 (scene and its chained scene)", len(report.Executions))
	}
	if report.Executions[0].SceneSelector != "evening" || report.Executions[1].SceneSelector != "blinds-down" {
		t.Errorf("execution order = %s, %s", report.Executions[0].SceneSelector, report.Executions[1].SceneSelector)
	}
	for _, exec := range report.Executions {
		if exec.Status != automation.StatusCompleted {
			t.Errorf("%s status = %s, want completed", exec.SceneSelector, exec.Status)
		}
		if exec.RootID != report.Executions[0].RootID {
			t.Error("chained execution should share the root scope")
		}
	}

	devices := map[string]bool{}
	for _, c := range report.Commands {
		devices[c.Device] = true
	}
	for _, d := range []string{"light-hall", "light-lounge", "blind-motor-1"} {
		if !devices[d] {
			t.Errorf("dry run did not record a command for %s", d)
		}
	}
}

func TestRunCmd_UnknownScene(t *testing.T) {
	path := writeFile(t, t.TempDir(), "scenes.yaml", testScenes)

	out, err := execute(t, "run", path, "missing")
	if err != nil {
		t.Fatalf("run error = %v", err)
	}

	var report runReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decoding report: %v", err)
	}
	if len(report.Executions) != 1 || report.Executions[0].Status != automation.StatusNotFound {
		t.Errorf("executions = %+v, want one not_found record", report.Executions)
	}
	if len(report.Commands) != 0 {
		t.Errorf("commands = %d, want 0", len(report.Commands))
	}
}

func TestRunCmd_RequiresTwoArgs(t *testing.T) {
	if _, err := execute(t, "run", "scenes.yaml"); err == nil {
		t.Fatal("expected argument error")
	}
}

// ─── import / history ──────────────────────────────────────────────

func TestImportThenHistory(t *testing.T) {
	dir := t.TempDir()
	cfgPath := testConfig(t, dir)
	scenesPath := writeFile(t, dir, "scenes.yaml", testScenes)

	out, err := execute(t, "--config", cfgPath, "import", scenesPath)
	if err != nil {
		t.Fatalf("import error = %v", err)
	}
	if !strings.Contains(out, "imported 2 scenes") {
		t.Errorf("import output = %q", out)
	}

	// Importing again replaces rather than duplicates.
	if _, err := execute(t, "--config", cfgPath, "import", scenesPath); err != nil {
		t.Fatalf("re-import error = %v", err)
	}

	out, err = execute(t, "--config", cfgPath, "history", "evening", "--limit", "5")
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if !strings.Contains(out, "no executions recorded") {
		t.Errorf("history output = %q", out)
	}
}

func TestPrintHistory(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = noColor })

	stage := 1
	execs := []automation.SceneExecution{
		{
			SceneSelector: "evening",
			RootID:        "root-1",
			Status:        automation.StatusAborted,
			StagesTotal:   3,
			StagesRun:     2,
			AbortStage:    &stage,
			DurationMS:    42,
			StartedAt:     time.Now(),
		},
	}

	var buf bytes.Buffer
	if err := printHistory(&buf, execs); err != nil {
		t.Fatalf("printHistory() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"STATUS", "aborted@1", "2/3", "42ms", "root-1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

// ─── MQTT Execute Requests ─────────────────────────────────────────

type fakeExecutor struct {
	selectors []string
	scopes    []*automation.Scope
	err       error
}

func (f *fakeExecutor) Execute(_ context.Context, selector string, scope *automation.Scope) error {
	f.selectors = append(f.selectors, selector)
	f.scopes = append(f.scopes, scope)
	return f.err
}

func TestExecuteRequestHandler(t *testing.T) {
	exec := &fakeExecutor{}
	handler := executeRequestHandler(context.Background(), exec, logging.Default())

	if err := handler(mqtt.Topics{}.SceneExecute("evening"), nil); err != nil {
		t.Fatalf("handler() error = %v", err)
	}
	if len(exec.selectors) != 1 || exec.selectors[0] != "evening" {
		t.Fatalf("selectors = %v, want [evening]", exec.selectors)
	}
	if exec.scopes[0] != nil {
		t.Error("requests must start a new root execution")
	}
}

func TestExecuteRequestHandler_BadTopic(t *testing.T) {
	exec := &fakeExecutor{}
	handler := executeRequestHandler(context.Background(), exec, logging.Default())

	err := handler("graylogic/core/scene/evening/executed", nil)
	if !errors.Is(err, mqtt.ErrInvalidTopic) {
		t.Errorf("error = %v, want ErrInvalidTopic", err)
	}
	if len(exec.selectors) != 0 {
		t.Error("engine should not be called for a bad topic")
	}
}

func TestExecuteRequestHandler_EngineError(t *testing.T) {
	exec := &fakeExecutor{err: automation.ErrEngineClosed}
	handler := executeRequestHandler(context.Background(), exec, logging.Default())

	err := handler(mqtt.Topics{}.SceneExecute("evening"), nil)
	if !errors.Is(err, automation.ErrEngineClosed) {
		t.Errorf("error = %v, want ErrEngineClosed", err)
	}
}

// ─── Metrics Server ────────────────────────────────────────────────

func TestMetricsServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	automation.NewMetrics(reg)

	healthy := true
	srv := newMetricsServer("127.0.0.1:0", reg, func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("mqtt: not connected")
	})

	tests := []struct {
		name     string
		path     string
		healthy  bool
		wantCode int
		wantBody string
	}{
		{"metrics", "/metrics", true, http.StatusOK, "graylogic_scenes_queue_pending"},
		{"healthy", "/healthz", true, http.StatusOK, "ok"},
		{"unhealthy", "/healthz", false, http.StatusServiceUnavailable, "not connected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			healthy = tt.healthy
			rec := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body missing %q:\n%s", tt.wantBody, rec.Body.String())
			}
		})
	}
}
