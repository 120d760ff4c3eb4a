package replay

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/ownership-engine/internal/hybrid"
	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
)

// #region fixture-tests

func loadLabeled(t *testing.T) *Fixture {
	t.Helper()
	f, err := LoadFixture(filepath.Join("testdata", "labeled_cases.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	return f
}

// TestFixture_LabeledCases replays the labeled fixture and compares each
// case's kind and method against the recorded expectations.
func TestFixture_LabeledCases(t *testing.T) {
	f := loadLabeled(t)
	config := f.Config.ToReplayConfig()
	config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	results := Replay(f.ToCases(), config)

	if len(results) != len(f.Cases) {
		t.Fatalf("expected %d results, got %d", len(f.Cases), len(results))
	}
	for i, fc := range f.Cases {
		actual := results[i]
		if actual.Variable != fc.Variable {
			t.Errorf("case %d: expected variable=%s, got %s", i, fc.Variable, actual.Variable)
		}
		if fc.ExpectedMethod != nil && actual.Result.Method != *fc.ExpectedMethod {
			t.Errorf("case %d (%s): expected method=%s, got %s (reason: %s)",
				i, fc.Variable, *fc.ExpectedMethod, actual.Result.Method, actual.Result.Reasoning)
		}
	}
}

func TestFixture_ParsesConfigAndVerdicts(t *testing.T) {
	f := loadLabeled(t)

	if f.Config.Mode != hybrid.ModeHybrid || !f.Config.MLEnabled || f.Config.Threshold != 0.65 {
		t.Fatalf("unexpected config %+v", f.Config)
	}
	cases := f.ToCases()
	if cases[0].Features.AllocationSite != ownership.AllocMalloc || cases[0].Features.DeallocationCount != 1 {
		t.Fatalf("features not parsed: %+v", cases[0].Features)
	}
	if cases[7].ML != nil {
		t.Fatal("expected no recorded model verdict for cursor")
	}
	ctx := cases[9]
	if ctx.ML == nil || ctx.ML.Fallback == nil || *ctx.ML.Fallback != ownership.RawPointer {
		t.Fatalf("expected fallback RawPointer on ctx, got %+v", ctx.ML)
	}
	if ctx.Rule.Variable != "ctx" || ctx.SourceLine != 60 {
		t.Fatalf("unexpected ctx case %+v", ctx)
	}
}

func TestLoadFixture_NotFound(t *testing.T) {
	_, err := LoadFixture("testdata/nonexistent.json")
	if err == nil {
		t.Fatal("expected error for missing fixture")
	}
}

func TestLoadFixture_Malformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	os.WriteFile(path, []byte("{not json"), 0644)

	_, err := LoadFixture(path)
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestLoadFixture_UnknownKind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad_kind.json")
	os.WriteFile(path, []byte(`{"cases":[{"variable":"p","rule":{"kind":"Box"},"expected":"Owned"}]}`), 0644)

	if _, err := LoadFixture(path); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

// #endregion fixture-tests
