package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/ownership-engine/internal/abtest"
	"github.com/danielpatrickdp/ownership-engine/internal/hybrid"
	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
	"github.com/danielpatrickdp/ownership-engine/internal/registry"
	"github.com/danielpatrickdp/ownership-engine/internal/retrain"
)

func result(kind ownership.Kind, method hybrid.Method, confidence float64) hybrid.Result {
	return hybrid.Result{Variable: "p", Kind: kind, Method: method, Confidence: confidence}
}

func TestSinksAreIndependent(t *testing.T) {
	a, b := NewSink(), NewSink()
	a.RecordDecision(result(ownership.Owned, hybrid.RuleBased, 0.9))

	assert.Equal(t, 1.0, testutil.ToFloat64(a.decisions.WithLabelValues("rule-based", "Owned")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.decisions.WithLabelValues("rule-based", "Owned")))
}

func TestRecordDecision(t *testing.T) {
	s := NewSink()
	s.RecordDecision(result(ownership.Owned, hybrid.MachineLearning, 0.9))
	s.RecordDecision(result(ownership.Owned, hybrid.MachineLearning, 0.8))
	s.RecordDecision(result(ownership.Slice, hybrid.Fallback, 0.4))

	assert.Equal(t, 2.0, testutil.ToFloat64(s.decisions.WithLabelValues("ml", "Owned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.decisions.WithLabelValues("fallback", "Slice")))
	assert.Equal(t, 2, testutil.CollectAndCount(s.decisions))
	assert.Equal(t, 2, testutil.CollectAndCount(s.confidence))
}

func TestActiveVersionMovesWithRollback(t *testing.T) {
	s := NewSink()
	s.SetActiveVersion(registry.Version{Major: 1, Minor: 1})
	require.Equal(t, 1, testutil.CollectAndCount(s.activeModel))

	s.RecordRollback(registry.RollbackResult{
		Success: true,
		From:    registry.Version{Major: 1, Minor: 1},
		To:      registry.Version{Major: 1},
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(s.rollbacks))
	assert.Equal(t, 1, testutil.CollectAndCount(s.activeModel))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.activeModel.WithLabelValues("1.0.0")))

	s.RecordRollback(registry.RollbackResult{Success: false})
	assert.Equal(t, 1.0, testutil.ToFloat64(s.rollbacks))
}

func TestRecordOutcome(t *testing.T) {
	s := NewSink()
	s.RecordOutcome(retrain.Outcome{Status: retrain.StatusInsufficientData})
	s.RecordOutcome(retrain.Outcome{Status: retrain.StatusPromoted, Version: registry.Version{Major: 2}, Activated: true})

	assert.Equal(t, 1.0, testutil.ToFloat64(s.executions.WithLabelValues("insufficient_data")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.executions.WithLabelValues("promoted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.activeModel.WithLabelValues("2.0.0")))
}

func TestRecordObservation(t *testing.T) {
	s := NewSink()
	gt := ownership.Owned
	s.RecordObservation(abtest.NewObservation(abtest.Treatment, result(ownership.Owned, hybrid.MachineLearning, 0.9), &gt, time.Millisecond))
	s.RecordObservation(abtest.NewObservation(abtest.Control, result(ownership.Slice, hybrid.RuleBased, 0.9), nil, time.Millisecond))

	assert.Equal(t, 1.0, testutil.ToFloat64(s.observations.WithLabelValues("treatment", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.observations.WithLabelValues("control", "unknown")))
}

func TestWriteTextfile(t *testing.T) {
	s := NewSink()
	s.RecordDecision(result(ownership.Vec, hybrid.RuleBased, 0.95))
	s.RecordLatency(200 * time.Microsecond)
	s.SetPending(3)

	path := filepath.Join(t.TempDir(), "ownership.prom")
	require.NoError(t, s.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, `ownership_classifier_decisions_total{kind="Vec",method="rule-based"} 1`), text)
	assert.Contains(t, text, "ownership_active_pending 3")
	assert.Contains(t, text, "ownership_classifier_latency_seconds_count 1")
}
