package eval

import "github.com/danielpatrickdp/ownership-engine/internal/ownership"

// #region eval-config
// EvalConfig holds the checks Harness applies besides the quality thresholds.
type EvalConfig struct {
	MinSamples          int     // fail when fewer samples were evaluated
	ConfidenceThreshold float64 // predictions below this count as fallbacks
}

// DefaultEvalConfig returns MinSamples 1 and the 0.65 confidence gate.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MinSamples:          1,
		ConfidenceThreshold: ownership.ConfidenceThreshold,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name      string
	Value     float64
	Threshold float64
	Pass      bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of a harness run.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// #endregion eval-result

// #region evaluation-metrics
// EvaluationMetrics are confusion counts for one classifier over labeled samples.
type EvaluationMetrics struct {
	TruePositives  map[ownership.Kind]int
	FalsePositives map[ownership.Kind]int
	FalseNegatives map[ownership.Kind]int
	Total          int
	Correct        int
	ConfidenceSum  float64
	LowConfidence  int
}

func newEvaluationMetrics() EvaluationMetrics {
	return EvaluationMetrics{
		TruePositives:  make(map[ownership.Kind]int),
		FalsePositives: make(map[ownership.Kind]int),
		FalseNegatives: make(map[ownership.Kind]int),
	}
}

func (m EvaluationMetrics) Accuracy() float64 {
	if m.Total == 0 {
		return 0
	}
	return float64(m.Correct) / float64(m.Total)
}

func (m EvaluationMetrics) Precision(k ownership.Kind) float64 {
	return ratio(m.TruePositives[k], m.TruePositives[k]+m.FalsePositives[k])
}

func (m EvaluationMetrics) Recall(k ownership.Kind) float64 {
	return ratio(m.TruePositives[k], m.TruePositives[k]+m.FalseNegatives[k])
}

func (m EvaluationMetrics) F1(k ownership.Kind) float64 {
	return harmonic(m.Precision(k), m.Recall(k))
}

// MacroF1 averages F1 over the kinds with at least one true positive.
func (m EvaluationMetrics) MacroF1() float64 {
	var sum float64
	var n int
	for _, k := range ownership.AllKinds() {
		if m.TruePositives[k] == 0 {
			continue
		}
		sum += m.F1(k)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// MicroPrecision pools counts across kinds.
func (m EvaluationMetrics) MicroPrecision() float64 {
	tp, fp := sum(m.TruePositives), sum(m.FalsePositives)
	return ratio(tp, tp+fp)
}

// MicroRecall pools counts across kinds.
func (m EvaluationMetrics) MicroRecall() float64 {
	tp, fn := sum(m.TruePositives), sum(m.FalseNegatives)
	return ratio(tp, tp+fn)
}

func (m EvaluationMetrics) AvgConfidence() float64 {
	if m.Total == 0 {
		return 0
	}
	return m.ConfidenceSum / float64(m.Total)
}

// FallbackRate is the share of predictions that fell under the confidence gate.
func (m EvaluationMetrics) FallbackRate() float64 {
	if m.Total == 0 {
		return 1
	}
	return float64(m.LowConfidence) / float64(m.Total)
}

// #endregion evaluation-metrics

// #region helpers
func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func harmonic(p, r float64) float64 {
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func sum(counts map[ownership.Kind]int) int {
	var n int
	for _, c := range counts {
		n += c
	}
	return n
}

// #endregion helpers
