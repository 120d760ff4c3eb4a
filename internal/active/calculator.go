package active

import (
	"math"

	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
)

// #region calculator
// Calculator scores how uncertain a prediction is, in [0,1].
type Calculator struct {
	threshold float64
}

// NewCalculator creates a calculator; threshold is clamped to [0,1].
func NewCalculator(confidenceThreshold float64) Calculator {
	return Calculator{threshold: ownership.Clamp01(confidenceThreshold)}
}

// DefaultCalculator uses the standard 0.65 confidence threshold.
func DefaultCalculator() Calculator {
	return NewCalculator(ownership.ConfidenceThreshold)
}

func (c Calculator) Threshold() float64 { return c.threshold }

// IsUncertain reports whether confidence falls below the threshold.
func (c Calculator) IsUncertain(p ownership.Prediction) bool {
	return p.Confidence < c.threshold
}

// Calculate scores p under strategy s.
func (c Calculator) Calculate(p ownership.Prediction, s Strategy) float64 {
	switch s {
	case Margin:
		return ownership.Clamp01(marginScore(p))
	case Entropy:
		return entropyScore(p.Confidence)
	case Random:
		return pseudoRandomScore(p)
	default:
		return ownership.Clamp01(1 - p.Confidence)
	}
}

// marginScore estimates the runner-up at 80% of the primary confidence.
func marginScore(p ownership.Prediction) float64 {
	if p.Fallback == nil {
		return 1 - p.Confidence
	}
	margin := p.Confidence - p.Confidence*0.8
	return 1 - math.Min(margin, 1)
}

// entropyScore is the binary entropy of p, 1.0 at p=0.5 and 0 at the extremes.
func entropyScore(p float64) float64 {
	if p <= 0 || p >= 1 {
		return 0
	}
	h := -p*math.Log2(p) - (1-p)*math.Log2(1-p)
	return math.Min(h, 1)
}

// pseudoRandomScore is stable across runs so regenerated datasets match.
func pseudoRandomScore(p ownership.Prediction) float64 {
	var kindHash float64
	switch p.Kind {
	case ownership.Owned:
		kindHash = 0.1
	case ownership.Borrowed:
		kindHash = 0.2
	case ownership.BorrowedMut:
		kindHash = 0.3
	case ownership.Shared:
		kindHash = 0.4
	case ownership.RawPointer:
		kindHash = 0.5
	case ownership.Vec:
		kindHash = 0.6
	case ownership.Slice:
		kindHash = 0.7
	case ownership.SliceMut:
		kindHash = 0.8
	}
	return math.Mod((kindHash+p.Confidence*0.3)*7, 1)
}

// #endregion calculator
