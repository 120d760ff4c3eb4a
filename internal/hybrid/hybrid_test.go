package hybrid

import (
	"math"
	"strings"
	"testing"

	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
)

// #region helpers
type stubModel struct {
	pred ownership.Prediction
}

func (s stubModel) Predict(ownership.Features) ownership.Prediction { return s.pred }
func (s stubModel) Name() string                                    { return "stub" }

func makeInference(kind ownership.Kind, conf float64) ownership.Inference {
	return ownership.Inference{Variable: "p", Kind: kind, Confidence: conf, Reason: "test rule"}
}

func enabled(threshold float64, pred ownership.Prediction) *Classifier {
	return NewWithModel(Config{Threshold: threshold, MLEnabled: true}, stubModel{pred: pred})
}

// #endregion helpers

// #region config-tests
func TestNew_Defaults(t *testing.T) {
	c := New(DefaultConfig())
	if c.Threshold() != 0.65 {
		t.Errorf("expected threshold 0.65, got %f", c.Threshold())
	}
	if c.MLEnabled() {
		t.Error("expected ML disabled by default")
	}
	if c.Model().Name() != "null" {
		t.Errorf("expected null model, got %s", c.Model().Name())
	}
}

func TestSetThreshold_Clamps(t *testing.T) {
	c := New(Config{Threshold: 1.5})
	if c.Threshold() != 1 {
		t.Errorf("expected constructor clamp to 1, got %f", c.Threshold())
	}
	c.SetThreshold(-0.3)
	if c.Threshold() != 0 {
		t.Errorf("expected 0, got %f", c.Threshold())
	}
}

// #endregion config-tests

// #region classify-tests
func TestClassifyRuleOnly(t *testing.T) {
	r := New(DefaultConfig()).ClassifyRuleOnly(makeInference(ownership.Owned, 0.9))
	if r.Method != RuleBased || r.Kind != ownership.Owned || r.MLResult != nil {
		t.Fatalf("unexpected result %+v", r)
	}
	if r.Reasoning != "Rule-based: test rule" {
		t.Errorf("unexpected reasoning %q", r.Reasoning)
	}
}

func TestClassifyHybrid_DisabledUsesRules(t *testing.T) {
	c := NewWithModel(DefaultConfig(), stubModel{pred: ownership.NewPrediction(ownership.Vec, 0.99)})
	r := c.ClassifyHybrid(makeInference(ownership.Owned, 0.9), ownership.Features{})
	if r.Method != RuleBased || r.Kind != ownership.Owned {
		t.Fatalf("expected rule-based Owned, got %s %s", r.Method, r.Kind)
	}
}

func TestClassifyHybrid_ConfidentML(t *testing.T) {
	c := enabled(0.65, ownership.NewPrediction(ownership.Vec, 0.8))
	r := c.ClassifyHybrid(makeInference(ownership.Owned, 0.9), ownership.Features{})
	if r.Method != MachineLearning || r.Kind != ownership.Vec || r.Confidence != 0.8 {
		t.Fatalf("unexpected result %+v", r)
	}
	if r.RuleResult == nil || *r.RuleResult != ownership.Owned {
		t.Error("rule verdict should be retained")
	}
	if r.Reasoning != "ML prediction (confidence 0.80): Vec" {
		t.Errorf("unexpected reasoning %q", r.Reasoning)
	}
}

func TestClassifyHybrid_ExactThresholdUsesML(t *testing.T) {
	c := enabled(0.65, ownership.NewPrediction(ownership.Vec, 0.65))
	r := c.ClassifyHybrid(makeInference(ownership.Owned, 0.9), ownership.Features{})
	if r.Method != MachineLearning {
		t.Fatalf("expected ML at threshold, got %s", r.Method)
	}
}

func TestClassifyHybrid_LowConfidenceFallsBack(t *testing.T) {
	c := enabled(0.65, ownership.NewPrediction(ownership.Borrowed, 0.3))
	r := c.ClassifyHybrid(makeInference(ownership.Owned, 0.9), ownership.Features{})
	if r.Method != Fallback || r.Kind != ownership.Owned || r.Confidence != 0.9 {
		t.Fatalf("expected Fallback Owned@0.9, got %+v", r)
	}
	if !r.UsedFallback() || !r.MLRejected() {
		t.Error("expected fallback and ML rejection flags")
	}
	if !strings.HasPrefix(r.Reasoning, "Fallback to rules (ML confidence 0.30 < threshold 0.65)") {
		t.Errorf("unexpected reasoning %q", r.Reasoning)
	}
}

func TestClassifyEnsemble_AgreeBoosts(t *testing.T) {
	c := enabled(0.65, ownership.NewPrediction(ownership.Owned, 0.8))
	r := c.ClassifyEnsemble(makeInference(ownership.Owned, 0.9), ownership.Features{})
	want := (0.9 + 0.8) / 2 * 1.1
	if r.Method != Hybrid || math.Abs(r.Confidence-want) > 1e-9 {
		t.Fatalf("expected Hybrid@%.4f, got %s@%.4f", want, r.Method, r.Confidence)
	}
}

func TestClassifyEnsemble_BoostCapped(t *testing.T) {
	c := enabled(0.65, ownership.NewPrediction(ownership.Owned, 1.0))
	r := c.ClassifyEnsemble(makeInference(ownership.Owned, 0.95), ownership.Features{})
	if r.Confidence != 1.0 {
		t.Fatalf("expected capped 1.0, got %f", r.Confidence)
	}
}

func TestClassifyEnsemble_DisagreeHigherWins(t *testing.T) {
	c := enabled(0.65, ownership.NewPrediction(ownership.Vec, 0.95))
	r := c.ClassifyEnsemble(makeInference(ownership.Owned, 0.9), ownership.Features{})
	if r.Method != MachineLearning || r.Kind != ownership.Vec {
		t.Fatalf("expected ML Vec, got %s %s", r.Method, r.Kind)
	}

	c = enabled(0.65, ownership.NewPrediction(ownership.Vec, 0.5))
	r = c.ClassifyEnsemble(makeInference(ownership.Owned, 0.9), ownership.Features{})
	if r.Method != RuleBased || r.Kind != ownership.Owned {
		t.Fatalf("expected rules Owned, got %s %s", r.Method, r.Kind)
	}
}

func TestClassifyEnsemble_TieFavorsRules(t *testing.T) {
	c := enabled(0.65, ownership.NewPrediction(ownership.Vec, 0.7))
	r := c.ClassifyEnsemble(makeInference(ownership.Owned, 0.7), ownership.Features{})
	if r.Method != RuleBased || r.Kind != ownership.Owned {
		t.Fatalf("expected tie to favor rules, got %s %s", r.Method, r.Kind)
	}
	if !strings.HasPrefix(r.Reasoning, "Rules win (conf 0.70 >= ML 0.70)") {
		t.Fatalf("unexpected reasoning %q", r.Reasoning)
	}
}

func TestClassifyEnsemble_ConfidenceBounded(t *testing.T) {
	for _, rc := range []float64{0, 0.3, 0.65, 1, 1.4} {
		for _, mc := range []float64{0, 0.5, 0.99, 1} {
			for _, mk := range []ownership.Kind{ownership.Owned, ownership.Slice} {
				c := enabled(0.65, ownership.Prediction{Kind: mk, Confidence: mc})
				r := c.ClassifyEnsemble(makeInference(ownership.Owned, rc), ownership.Features{})
				if r.Confidence < 0 || r.Confidence > 1 {
					t.Fatalf("rule=%.2f ml=%.2f: confidence %f out of range", rc, mc, r.Confidence)
				}
			}
		}
	}
}

// #endregion classify-tests

// #region metrics-tests
func TestMetrics_Record(t *testing.T) {
	var m Metrics
	if m.AgreementRate() != 1 {
		t.Errorf("expected agreement 1.0 with no comparisons, got %f", m.AgreementRate())
	}

	c := enabled(0.65, ownership.NewPrediction(ownership.Vec, 0.8))
	m.Record(c.ClassifyRuleOnly(makeInference(ownership.Owned, 0.9)))
	m.Record(c.ClassifyHybrid(makeInference(ownership.Owned, 0.9), ownership.Features{}))
	c.SetThreshold(0.9)
	m.Record(c.ClassifyHybrid(makeInference(ownership.Vec, 0.9), ownership.Features{}))

	if m.Total != 3 || m.RuleBased != 1 || m.MLUsed != 1 || m.Fallback != 1 {
		t.Fatalf("unexpected counts %+v", m)
	}
	if m.Agreements != 1 || m.Disagreements != 1 {
		t.Errorf("expected 1 agreement and 1 disagreement, got %+v", m)
	}
	if math.Abs(m.MLUsageRate()-1.0/3) > 1e-9 || math.Abs(m.FallbackRate()-1.0/3) > 1e-9 {
		t.Errorf("unexpected rates ml=%f fallback=%f", m.MLUsageRate(), m.FallbackRate())
	}
	if m.AgreementRate() != 0.5 {
		t.Errorf("expected agreement 0.5, got %f", m.AgreementRate())
	}
}

func TestMethod_TextRoundTrip(t *testing.T) {
	for _, m := range AllMethods() {
		b, _ := m.MarshalText()
		var got Method
		if err := got.UnmarshalText(b); err != nil || got != m {
			t.Errorf("round trip %s: got %s err=%v", m, got, err)
		}
	}
}

// #endregion metrics-tests

// #region mode-tests
func TestClassify_DispatchesByMode(t *testing.T) {
	c := enabled(0.65, ownership.NewPrediction(ownership.Vec, 0.9))
	inf := makeInference(ownership.Owned, 0.8)

	if r := c.Classify(ModeRules, inf, ownership.Features{}); r.Method != RuleBased || r.Kind != ownership.Owned {
		t.Errorf("rules: got %s/%s", r.Method, r.Kind)
	}
	if r := c.Classify(ModeHybrid, inf, ownership.Features{}); r.Method != MachineLearning || r.Kind != ownership.Vec {
		t.Errorf("hybrid: got %s/%s", r.Method, r.Kind)
	}
	if r := c.Classify(ModeEnsemble, inf, ownership.Features{}); r.Method != MachineLearning || r.Kind != ownership.Vec {
		t.Errorf("ensemble: got %s/%s", r.Method, r.Kind)
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{ModeRules, ModeHybrid, ModeEnsemble} {
		got, err := ParseMode(m.String())
		if err != nil || got != m {
			t.Errorf("parse %s: got %s err=%v", m, got, err)
		}
	}
	if _, err := ParseMode("vote"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

// #endregion mode-tests
