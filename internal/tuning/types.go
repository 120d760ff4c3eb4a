package tuning

import (
	"fmt"

	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
)

// #region validation-sample
// ValidationSample is one labeled case used to score thresholds offline.
type ValidationSample struct {
	TrueLabel      ownership.Kind `json:"true_label"`
	RulePrediction ownership.Kind `json:"rule_prediction"`
	MLPrediction   ownership.Kind `json:"ml_prediction"`
	MLConfidence   float64        `json:"ml_confidence"`
}

// NewValidationSample builds a sample with MLConfidence clamped to [0,1].
func NewValidationSample(truth, rule, ml ownership.Kind, mlConfidence float64) ValidationSample {
	return ValidationSample{
		TrueLabel:      truth,
		RulePrediction: rule,
		MLPrediction:   ml,
		MLConfidence:   ownership.Clamp01(mlConfidence),
	}
}

func (s ValidationSample) RuleCorrect() bool { return s.RulePrediction == s.TrueLabel }
func (s ValidationSample) MLCorrect() bool   { return s.MLPrediction == s.TrueLabel }

// UsesML reports whether the hybrid classifier at threshold t would take the ML verdict.
func (s ValidationSample) UsesML(t float64) bool {
	return s.MLConfidence >= t
}

// HybridPrediction is the verdict the hybrid classifier would return at threshold t.
func (s ValidationSample) HybridPrediction(t float64) ownership.Kind {
	if s.UsesML(t) {
		return s.MLPrediction
	}
	return s.RulePrediction
}

func (s ValidationSample) HybridCorrect(t float64) bool {
	return s.HybridPrediction(t) == s.TrueLabel
}

// #endregion validation-sample

// #region criteria
// Criteria selects the optimal threshold from the evaluated table.
type Criteria uint8

const (
	MaxAccuracy Criteria = iota
	MaxF1
	BalancedAccuracyFallback
	MinFallbackAboveBaseline
)

var criteriaNames = [...]string{
	MaxAccuracy:              "max-accuracy",
	MaxF1:                    "max-f1",
	BalancedAccuracyFallback: "balanced",
	MinFallbackAboveBaseline: "min-fallback",
}

func (c Criteria) String() string {
	if int(c) < len(criteriaNames) {
		return criteriaNames[c]
	}
	return fmt.Sprintf("Criteria(%d)", uint8(c))
}

// ParseCriteria is the inverse of String.
func ParseCriteria(s string) (Criteria, error) {
	for i, n := range criteriaNames {
		if n == s {
			return Criteria(i), nil
		}
	}
	return MaxAccuracy, fmt.Errorf("unknown selection criteria %q", s)
}

// #endregion criteria

// #region metrics
// Metrics scores hybrid-at-threshold predictions.
type Metrics struct {
	Threshold    float64 `json:"threshold"`
	SampleCount  int     `json:"sample_count"`
	Accuracy     float64 `json:"accuracy"`
	Precision    float64 `json:"precision"`
	Recall       float64 `json:"recall"`
	F1           float64 `json:"f1_score"`
	FallbackRate float64 `json:"fallback_rate"`
	MLUsageRate  float64 `json:"ml_usage_rate"`
}

// Calculate scores samples at threshold t. Precision and recall are global
// correct-vs-incorrect counts: every miss is both a false positive and a
// false negative. Empty input never uses ML.
func Calculate(samples []ValidationSample, t float64) Metrics {
	if len(samples) == 0 {
		return Metrics{Threshold: t, FallbackRate: 1}
	}

	var correct, usingML, usingRules int
	var tp, fp, fn int
	for _, s := range samples {
		if s.HybridCorrect(t) {
			correct++
			tp++
		} else {
			fp++
			fn++
		}
		if s.UsesML(t) {
			usingML++
		} else {
			usingRules++
		}
	}

	n := float64(len(samples))
	m := Metrics{
		Threshold:    t,
		SampleCount:  len(samples),
		Accuracy:     float64(correct) / n,
		FallbackRate: float64(usingRules) / n,
		MLUsageRate:  float64(usingML) / n,
	}
	if tp+fp > 0 {
		m.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		m.Recall = float64(tp) / float64(tp+fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

// #endregion metrics

// #region result
// Result is the outcome of a tuning run.
type Result struct {
	OptimalThreshold float64   `json:"optimal_threshold"`
	Criteria         Criteria  `json:"-"`
	CriteriaName     string    `json:"criteria"`
	Optimal          Metrics   `json:"optimal_metrics"`
	All              []Metrics `json:"all_thresholds"`
	BaselineAccuracy float64   `json:"baseline_accuracy"`
	MLOnlyAccuracy   float64   `json:"ml_only_accuracy"`
	Improvement      float64   `json:"improvement_over_baseline"`
}

// #endregion result
