package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/danielpatrickdp/ownership-engine/internal/active"
	"github.com/danielpatrickdp/ownership-engine/internal/config"
	"github.com/danielpatrickdp/ownership-engine/internal/hybrid"
	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
	"github.com/danielpatrickdp/ownership-engine/internal/registry"
	"github.com/danielpatrickdp/ownership-engine/internal/retrain"
	"github.com/danielpatrickdp/ownership-engine/internal/snapshot"
)

const fixture = "../replay/testdata/labeled_cases.json"

// #region helpers
func init() {
	color.NoColor = true
}

// workspace writes a config that keeps the store and snapshots in a temp dir.
func workspace(t *testing.T) (cfgPath, dir string) {
	t.Helper()
	dir = t.TempDir()
	cfgPath = filepath.Join(dir, "ownctl.yaml")
	body := "storage:\n" +
		"  db_path: " + filepath.Join(dir, "own.db") + "\n" +
		"  snapshot_dir: " + filepath.Join(dir, "snap") + "\n" +
		"retrain:\n" +
		"  min_train_samples: 7\n" +
		"  min_validation_samples: 1\n" +
		"  min_test_samples: 1\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath, dir
}

func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd("test")
	var out, logs bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&logs)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := root.Execute()
	return out.String(), err
}

func writeInput(t *testing.T, dir, name string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal input: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func testApp(t *testing.T, cfgPath string) *app {
	t.Helper()
	c, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &app{config: c.WithLogger(logger), logger: logger}
}

func mallocFreed() ownership.Features {
	return ownership.NewFeaturesBuilder().PointerDepth(1).Allocation(ownership.AllocMalloc).Deallocations(1).Build()
}

// #endregion helpers

func TestNewRootCmd(t *testing.T) {
	root := NewRootCmd("1.0.0")
	if root.Use != "ownctl" {
		t.Fatalf("expected Use=ownctl, got %q", root.Use)
	}
	for _, name := range []string{"classify", "tune", "registry", "retrain", "queue", "errors", "abtest"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("flag 'config' not registered")
	}
}

func TestEnvOr(t *testing.T) {
	t.Setenv(ConfigEnv, "")
	if got := envOr(ConfigEnv, "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv(ConfigEnv, "/etc/ownctl.toml")
	if got := envOr(ConfigEnv, "fallback"); got != "/etc/ownctl.toml" {
		t.Fatalf("expected env value, got %q", got)
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("mode: psychic\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, path, "registry", "list"); err == nil {
		t.Fatal("expected invalid mode to be rejected")
	}
}

func TestClassifyRulesAndErrorTracking(t *testing.T) {
	cfg, dir := workspace(t)
	wrong := ownership.Vec
	input := writeInput(t, dir, "vars.json", []classifyInput{
		{Variable: "buf", SourceFile: "a.c", SourceLine: 3, Features: mallocFreed()},
		{Variable: "arr", SourceFile: "a.c", SourceLine: 9, Features: mallocFreed(), Expected: &wrong},
	})
	metrics := filepath.Join(dir, "own.prom")

	out, err := run(t, cfg, "classify", "--input", input, "--mode", "rules", "--log", "--metrics", metrics, "--json")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	var results []hybrid.Result
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Kind != ownership.Owned || r.Method != hybrid.RuleBased {
			t.Errorf("%s: expected Owned via rule-based, got %s via %s", r.Variable, r.Kind, r.Method)
		}
	}

	tracker, err := snapshot.LoadTracker(filepath.Join(dir, "snap", errorsFile))
	if err != nil {
		t.Fatalf("load tracker: %v", err)
	}
	if tracker.ErrorCount() != 1 {
		t.Fatalf("expected 1 recorded error, got %d", tracker.ErrorCount())
	}
	if e := tracker.Errors()[0]; e.Variable != "arr" || e.Expected != ownership.Vec {
		t.Fatalf("unexpected error record %+v", e)
	}

	data, err := os.ReadFile(metrics)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(data), `ownership_classifier_decisions_total{kind="Owned",method="rule-based"} 2`) {
		t.Fatalf("metrics missing decision count:\n%s", data)
	}

	out, err = run(t, cfg, "errors", "report")
	if err != nil {
		t.Fatalf("errors report: %v", err)
	}
	if !strings.Contains(out, "## Error Tracking Report") {
		t.Fatalf("unexpected report:\n%s", out)
	}
}

func TestTuneFixture(t *testing.T) {
	cfg, _ := workspace(t)
	out, err := run(t, cfg, "tune", "--fixture", fixture)
	if err != nil {
		t.Fatalf("tune: %v", err)
	}
	if !strings.Contains(out, "## Threshold Tuning Report") {
		t.Fatalf("missing report header:\n%s", out)
	}

	out, err = run(t, cfg, "tune", "--fixture", fixture, "--criteria", "bogus")
	if err == nil {
		t.Fatalf("expected unknown criteria error, got output:\n%s", out)
	}
}

func TestQueueAddLabelExport(t *testing.T) {
	cfg, dir := workspace(t)
	input := writeInput(t, dir, "verdicts.json", []queueInput{
		{Variable: "sure", Features: mallocFreed(), Prediction: ownership.NewPrediction(ownership.Owned, 0.95)},
		{Variable: "unsure", Features: mallocFreed(), Prediction: ownership.NewPrediction(ownership.Borrowed, 0.4)},
	})

	out, err := run(t, cfg, "queue", "add", "--input", input)
	if err != nil {
		t.Fatalf("queue add: %v", err)
	}
	if !strings.Contains(out, "1 of 2 verdicts queued") {
		t.Fatalf("unexpected add output:\n%s", out)
	}

	out, err = run(t, cfg, "queue", "label", "--kind", "Owned")
	if err != nil {
		t.Fatalf("queue label: %v", err)
	}
	if !strings.Contains(out, "unsure labeled Owned (model said Borrowed)") {
		t.Fatalf("unexpected label output:\n%s", out)
	}

	out, err = run(t, cfg, "queue", "stats", "--json")
	if err != nil {
		t.Fatalf("queue stats: %v", err)
	}
	if !strings.Contains(out, `"labeled": 1`) || !strings.Contains(out, `"pending": 0`) {
		t.Fatalf("unexpected stats:\n%s", out)
	}

	if _, err := run(t, cfg, "queue", "export"); err != nil {
		t.Fatalf("queue export: %v", err)
	}
	st, err := testApp(t, cfg).openStore()
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if n, err := st.CountSamples(); err != nil || n != 1 {
		t.Fatalf("expected 1 exported sample, got %d (%v)", n, err)
	}
}

func TestClassifyWithoutModelQueuesNothing(t *testing.T) {
	cfg, dir := workspace(t)
	input := writeInput(t, dir, "vars.json", []classifyInput{
		{Variable: "p", Features: mallocFreed()},
		{Variable: "q", Features: mallocFreed()},
	})
	if _, err := run(t, cfg, "classify", "--input", input, "--mode", "ensemble", "--json"); err != nil {
		t.Fatalf("classify: %v", err)
	}

	q, err := snapshot.LoadQueue(filepath.Join(dir, "snap", queueFile), active.Uncertainty, 100)
	if err != nil {
		t.Fatalf("load queue: %v", err)
	}
	if st := q.Stats(); st.Pending != 0 || st.TotalProcessed != 0 {
		t.Fatalf("null model verdicts reached the queue: %+v", st)
	}
}

func TestQueueLabelRejectsUnknownKind(t *testing.T) {
	cfg, _ := workspace(t)
	if _, err := run(t, cfg, "queue", "label", "--kind", "Box"); !errors.Is(err, ownership.ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestRetrainPromotesAndPersists(t *testing.T) {
	cfg, dir := workspace(t)
	a := testApp(t, cfg)
	samples := writeInput(t, dir, "samples.json", mustFixtureSamples(t))

	var out bytes.Buffer
	trainer := retrain.FixedTrainer{Metrics: retrain.NewTrainingMetrics(0.95, 0.93)}
	if err := retrainWith(context.Background(), a, trainer, retrainOptions{samples: samples}, &out); err != nil {
		t.Fatalf("retrain: %v", err)
	}
	if !strings.Contains(out.String(), "promoted 1.0.0") {
		t.Fatalf("unexpected outcome: %s", out.String())
	}

	st, err := a.openStore()
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	execs, err := st.ListExecutions(0)
	if err != nil || len(execs) != 1 || execs[0].Status != retrain.StatusPromoted {
		t.Fatalf("expected one promoted execution, got %+v (%v)", execs, err)
	}
	entries, err := st.ListEntries()
	if err != nil || len(entries) != 1 || entries[0].Version != registry.DefaultVersion() {
		t.Fatalf("expected 1.0.0 registered, got %+v (%v)", entries, err)
	}

	listing, err := run(t, cfg, "registry", "list")
	if err != nil {
		t.Fatalf("registry list: %v", err)
	}
	if !strings.Contains(listing, "1.0.0") {
		t.Fatalf("registry list missing version:\n%s", listing)
	}
}

func TestRetrainInsufficientData(t *testing.T) {
	cfg, _ := workspace(t)
	a := testApp(t, cfg)
	var out bytes.Buffer
	if err := retrainWith(context.Background(), a, retrain.NullTrainer{}, retrainOptions{}, &out); err != nil {
		t.Fatalf("retrain: %v", err)
	}
	if !strings.Contains(out.String(), "insufficient data: 0 < 9") {
		t.Fatalf("unexpected outcome: %s", out.String())
	}
}

func TestRegistryEmpty(t *testing.T) {
	cfg, _ := workspace(t)
	out, err := run(t, cfg, "registry", "list")
	if err != nil {
		t.Fatalf("registry list: %v", err)
	}
	if !strings.Contains(out, "No model versions registered.") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if _, err := run(t, cfg, "registry", "rollback"); !errors.Is(err, registry.ErrInsufficientHistory) {
		t.Fatalf("expected ErrInsufficientHistory, got %v", err)
	}
}

func TestRegistryCheckReportsHarness(t *testing.T) {
	cfg, _ := workspace(t)
	out, err := run(t, cfg, "registry", "check", "--fixture", fixture, "--auto-rollback")
	if err != nil {
		t.Fatalf("registry check: %v", err)
	}
	// the Null model scores zero on every check
	if !strings.Contains(out, "accuracy") || !strings.Contains(out, "FAIL") {
		t.Fatalf("expected failing checks:\n%s", out)
	}
	if !strings.Contains(out, "no rollback") {
		t.Fatalf("empty registry should not roll back:\n%s", out)
	}
}

func TestABTestFixtureAndReport(t *testing.T) {
	cfg, dir := workspace(t)
	out, err := run(t, cfg, "abtest", "--fixture", fixture, "--assignment", "round-robin")
	if err != nil {
		t.Fatalf("abtest: %v", err)
	}
	if !strings.Contains(out, "## A/B Test Report: rules-vs-hybrid") {
		t.Fatalf("missing report header:\n%s", out)
	}
	if !strings.Contains(out, "no significant improvement") {
		t.Fatalf("ten cases cannot be significant:\n%s", out)
	}

	obs, err := snapshot.LoadObservations(filepath.Join(dir, "snap", observationsFile))
	if err != nil || len(obs) != 10 {
		t.Fatalf("expected 10 stored observations, got %d (%v)", len(obs), err)
	}

	out, err = run(t, cfg, "abtest", "report")
	if err != nil {
		t.Fatalf("abtest report: %v", err)
	}
	if !strings.Contains(out, "## A/B Test Report: rules-vs-hybrid") {
		t.Fatalf("missing rebuilt report header:\n%s", out)
	}
}

func mustFixtureSamples(t *testing.T) []retrain.Sample {
	t.Helper()
	samples, err := fixtureSamples(fixture)
	if err != nil {
		t.Fatalf("load fixture samples: %v", err)
	}
	return samples
}
