package store

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
	"github.com/danielpatrickdp/ownership-engine/internal/registry"
	"github.com/danielpatrickdp/ownership-engine/internal/retrain"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func quietManagerConfig() registry.ManagerConfig {
	c := registry.DefaultManagerConfig()
	c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return c
}

func makeEntry(major, minor uint32, acc float64) registry.Entry {
	m := registry.NewQualityMetrics(acc, 0.9, 0.9, 0.9, 0.8, 0.1, 500)
	return registry.NewEntry(registry.Version{Major: major, Minor: minor}, m, "test model", "models/test.bin")
}

func TestEmptyRegistryLoads(t *testing.T) {
	s := tempDB(t)

	m, err := s.LoadRegistry(quietManagerConfig())
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("expected empty registry, got %d entries", m.Len())
	}
	if _, ok := m.Active(); ok {
		t.Fatal("expected no active version")
	}
}

func TestRegistryRoundTrip(t *testing.T) {
	s := tempDB(t)
	m := registry.New(quietManagerConfig())

	if _, err := m.Register(makeEntry(1, 0, 0.90)); err != nil {
		t.Fatalf("register 1.0: %v", err)
	}
	if _, err := m.Register(makeEntry(1, 1, 0.95)); err != nil {
		t.Fatalf("register 1.1: %v", err)
	}
	if _, err := m.Rollback("manual check"); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if err := s.SaveRegistry(m); err != nil {
		t.Fatalf("SaveRegistry: %v", err)
	}

	loaded, err := s.LoadRegistry(quietManagerConfig())
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if loaded.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", loaded.Len())
	}
	active, ok := loaded.Active()
	if !ok || active.Version != (registry.Version{Major: 1}) {
		t.Fatalf("expected v1.0.0 active, got %+v", active)
	}
	rolled, _ := loaded.Get(registry.Version{Major: 1, Minor: 1})
	if !rolled.RolledBack || rolled.RollbackReason != "manual check" {
		t.Fatalf("expected v1.1.0 rolled back with reason, got %+v", rolled)
	}
	if rolled.Metrics.Accuracy != 0.95 || rolled.Metrics.SampleCount != 500 {
		t.Fatalf("metrics not preserved: %+v", rolled.Metrics)
	}

	orig, _ := m.Get(registry.Version{Major: 1, Minor: 1})
	if !rolled.ReleasedAt.Equal(orig.ReleasedAt) {
		t.Fatalf("released_at drifted: %v vs %v", rolled.ReleasedAt, orig.ReleasedAt)
	}

	rbs := loaded.Rollbacks()
	if len(rbs) != 1 || rbs[0].From.String() != "v1.1.0" || rbs[0].To.String() != "v1.0.0" || !rbs[0].Success {
		t.Fatalf("unexpected rollbacks %+v", rbs)
	}
}

func TestSaveRegistryReplacesPreviousState(t *testing.T) {
	s := tempDB(t)
	m := registry.New(quietManagerConfig())
	m.Register(makeEntry(1, 0, 0.90))
	if err := s.SaveRegistry(m); err != nil {
		t.Fatalf("first save: %v", err)
	}
	m.Register(makeEntry(2, 0, 0.97))
	if err := s.SaveRegistry(m); err != nil {
		t.Fatalf("second save: %v", err)
	}

	entries, err := s.ListEntries()
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !entries[1].IsActive || entries[0].IsActive {
		t.Fatal("expected only v2.0.0 active")
	}
}

func TestLoadRegistryRejectsTwoActive(t *testing.T) {
	s := tempDB(t)
	for _, v := range []string{"v1.0.0", "v1.1.0"} {
		_, err := s.DB().Exec(
			`INSERT INTO model_entries (version, major, minor, patch, metrics_json, released_at, is_active, rolled_back)
			 VALUES (?, 1, ?, 0, '{}', ?, 1, 0)`,
			v, v[3:4], time.Now().UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	if _, err := s.LoadRegistry(quietManagerConfig()); err == nil {
		t.Fatal("expected error for two active entries")
	}
}

func TestExecutionsRoundTrip(t *testing.T) {
	s := tempDB(t)
	v := registry.Version{Major: 1, Minor: 2}
	execs := []retrain.Execution{
		{ID: uuid.New(), Timestamp: time.Now().UTC(), Status: retrain.StatusInsufficientData, Detail: "insufficient data: 3 < 1000", SampleCount: 3},
		{ID: uuid.New(), Timestamp: time.Now().UTC(), Status: retrain.StatusPromoted, Version: &v, Detail: "promoted v1.2.0 (active)", SampleCount: 1200},
		{ID: uuid.New(), Timestamp: time.Now().UTC(), Status: retrain.StatusDegraded, Degradation: 0.04, SampleCount: 1200},
	}
	for _, e := range execs {
		if err := s.SaveExecution(e); err != nil {
			t.Fatalf("SaveExecution: %v", err)
		}
	}

	all, err := s.ListExecutions(0)
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 executions, got %d", len(all))
	}
	if all[1].ID != execs[1].ID || all[1].Version == nil || *all[1].Version != v {
		t.Fatalf("unexpected second execution %+v", all[1])
	}
	if all[0].Version != nil {
		t.Fatal("expected nil version on insufficient data")
	}
	if all[2].Degradation != 0.04 {
		t.Fatalf("expected degradation 0.04, got %f", all[2].Degradation)
	}

	latest, err := s.ListExecutions(2)
	if err != nil {
		t.Fatalf("ListExecutions(2): %v", err)
	}
	if len(latest) != 2 || latest[0].ID != execs[1].ID || latest[1].ID != execs[2].ID {
		t.Fatalf("expected the two latest in order, got %+v", latest)
	}
}

func TestSaveExecutionOverwrites(t *testing.T) {
	s := tempDB(t)
	e := retrain.Execution{ID: uuid.New(), Timestamp: time.Now().UTC(), Status: retrain.StatusTrainingError, Detail: "first"}
	s.SaveExecution(e)
	e.Detail = "second"
	if err := s.SaveExecution(e); err != nil {
		t.Fatalf("SaveExecution: %v", err)
	}
	all, _ := s.ListExecutions(0)
	if len(all) != 1 || all[0].Detail != "second" {
		t.Fatalf("expected one overwritten execution, got %+v", all)
	}
}

func TestSamplesRoundTrip(t *testing.T) {
	s := tempDB(t)
	f := ownership.NewFeaturesBuilder().
		PointerDepth(2).
		Allocation(ownership.AllocMalloc).
		Deallocations(1).
		Aliases(3).
		Reads(40000).
		Writes(7).
		NullChecks(2).
		Build()
	samples := []retrain.Sample{
		retrain.NewSample(f, ownership.Owned, "alloc.c", 12),
		retrain.NewSample(ownership.Features{}, ownership.RawPointer, "", 0),
	}
	if err := s.AddSamples(samples); err != nil {
		t.Fatalf("AddSamples: %v", err)
	}

	n, err := s.CountSamples()
	if err != nil || n != 2 {
		t.Fatalf("expected 2 samples, got %d (%v)", n, err)
	}
	loaded, err := s.LoadSamples()
	if err != nil {
		t.Fatalf("LoadSamples: %v", err)
	}
	if loaded[0] != samples[0] {
		t.Fatalf("sample 0 mismatch:\n got %+v\nwant %+v", loaded[0], samples[0])
	}
	if loaded[1] != samples[1] {
		t.Fatalf("sample 1 mismatch:\n got %+v\nwant %+v", loaded[1], samples[1])
	}
}

func TestLoadSamplesRejectsUnknownLabel(t *testing.T) {
	s := tempDB(t)
	_, err := s.DB().Exec(
		`INSERT INTO training_samples (features, label, created_at) VALUES (?, 'Box', ?)`,
		encodeVector(ownership.Features{}.Vector()), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err = s.LoadSamples()
	if !errors.Is(err, ownership.ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestVectorEncodingRoundTrip(t *testing.T) {
	v := []float32{0, 1.5, -2, 3e6}
	got := decodeVector(encodeVector(v))
	if len(got) != len(v) {
		t.Fatalf("length mismatch %d vs %d", len(got), len(v))
	}
	for i := range v {
		if got[i] != v[i] {
			t.Fatalf("index %d: %f vs %f", i, got[i], v[i])
		}
	}
}
