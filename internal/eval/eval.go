package eval

import (
	"fmt"

	"github.com/danielpatrickdp/ownership-engine/internal/classifier"
	"github.com/danielpatrickdp/ownership-engine/internal/registry"
	"github.com/danielpatrickdp/ownership-engine/internal/retrain"
)

// #region evaluate
// Evaluate classifies every sample with c and tallies the confusion counts.
func Evaluate(c classifier.Classifier, samples []retrain.Sample) EvaluationMetrics {
	return EvaluateWithThreshold(c, samples, DefaultEvalConfig().ConfidenceThreshold)
}

// EvaluateWithThreshold is Evaluate with an explicit fallback gate.
func EvaluateWithThreshold(c classifier.Classifier, samples []retrain.Sample, threshold float64) EvaluationMetrics {
	m := newEvaluationMetrics()
	m.Total = len(samples)
	for _, s := range samples {
		p := c.Classify(s.Features)
		m.ConfidenceSum += p.Confidence
		if p.Confidence < threshold {
			m.LowConfidence++
		}
		if p.Kind == s.Label {
			m.Correct++
			m.TruePositives[s.Label]++
			continue
		}
		m.FalsePositives[p.Kind]++
		m.FalseNegatives[s.Label]++
	}
	return m
}

// ToQualityMetrics converts confusion counts into registry metrics.
func ToQualityMetrics(m EvaluationMetrics) registry.QualityMetrics {
	return registry.NewQualityMetrics(
		m.Accuracy(),
		m.MicroPrecision(),
		m.MicroRecall(),
		m.MacroF1(),
		m.AvgConfidence(),
		m.FallbackRate(),
		uint64(m.Total),
	)
}

// #endregion evaluate

// #region eval-harness
// Harness checks evaluation results against registry quality thresholds.
type Harness struct {
	config EvalConfig
}

// NewHarness creates a harness with the given configuration.
func NewHarness(config EvalConfig) *Harness {
	return &Harness{config: config}
}

// Run checks sample count, accuracy, micro precision, micro recall and macro F1.
func (h *Harness) Run(m EvaluationMetrics, t registry.QualityThresholds) EvalResult {
	checks := []EvalMetric{
		{Name: "samples", Value: float64(m.Total), Threshold: float64(h.config.MinSamples)},
		{Name: "accuracy", Value: m.Accuracy(), Threshold: t.MinAccuracy},
		{Name: "precision", Value: m.MicroPrecision(), Threshold: t.MinPrecision},
		{Name: "recall", Value: m.MicroRecall(), Threshold: t.MinRecall},
		{Name: "f1", Value: m.MacroF1(), Threshold: t.MinF1},
	}

	passed := true
	var failReasons []string
	for i := range checks {
		checks[i].Pass = checks[i].Value >= checks[i].Threshold
		if !checks[i].Pass {
			passed = false
			failReasons = append(failReasons, fmt.Sprintf("%s %.4f below %.4f", checks[i].Name, checks[i].Value, checks[i].Threshold))
		}
	}

	reason := "all checks passed"
	if !passed {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return EvalResult{
		Passed:  passed,
		Metrics: checks,
		Reason:  reason,
	}
}

// #endregion eval-harness
