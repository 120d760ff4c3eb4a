package active

import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
)

// #region strategy
// Strategy is how uncertainty is scored for sample selection.
type Strategy uint8

const (
	Uncertainty Strategy = iota
	Margin
	Entropy
	Random
)

var strategyNames = [...]string{
	Uncertainty: "uncertainty",
	Margin:      "margin",
	Entropy:     "entropy",
	Random:      "random",
}

func (s Strategy) String() string {
	if int(s) < len(strategyNames) {
		return strategyNames[s]
	}
	return fmt.Sprintf("Strategy(%d)", uint8(s))
}

// ParseStrategy is the inverse of String.
func ParseStrategy(name string) (Strategy, error) {
	for i, n := range strategyNames {
		if n == name {
			return Strategy(i), nil
		}
	}
	return Uncertainty, fmt.Errorf("unknown selection strategy %q", name)
}

func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Strategy) UnmarshalText(b []byte) error {
	parsed, err := ParseStrategy(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// #endregion strategy

// #region uncertain-sample
// UncertainSample is one decision queued for human labeling.
type UncertainSample struct {
	ID          uint64               `json:"id" msgpack:"id"`
	Variable    string               `json:"variable" msgpack:"variable"`
	SourceFile  string               `json:"source_file,omitempty" msgpack:"source_file,omitempty"`
	SourceLine  uint32               `json:"source_line,omitempty" msgpack:"source_line,omitempty"`
	Features    ownership.Features   `json:"features" msgpack:"features"`
	Prediction  ownership.Prediction `json:"prediction" msgpack:"prediction"`
	Uncertainty float64              `json:"uncertainty_score" msgpack:"uncertainty_score"`
	Strategy    Strategy             `json:"strategy" msgpack:"strategy"`
	Label       *ownership.Kind      `json:"label,omitempty" msgpack:"label,omitempty"`
	QueuedAt    time.Time            `json:"queued_at" msgpack:"queued_at"`
	LabeledAt   *time.Time           `json:"labeled_at,omitempty" msgpack:"labeled_at,omitempty"`
}

// NewUncertainSample creates an unlabeled sample; the queue assigns its ID.
func NewUncertainSample(variable string, f ownership.Features, p ownership.Prediction, uncertainty float64, s Strategy) UncertainSample {
	return UncertainSample{
		Variable:    variable,
		Features:    f,
		Prediction:  p,
		Uncertainty: ownership.Clamp01(uncertainty),
		Strategy:    s,
		QueuedAt:    time.Now().UTC(),
	}
}

// WithSource attaches a source location.
func (s UncertainSample) WithSource(file string, line uint32) UncertainSample {
	s.SourceFile = file
	s.SourceLine = line
	return s
}

func (s *UncertainSample) IsLabeled() bool { return s.Label != nil }

// ApplyLabel records a human label. A sample is labeled at most once; later
// calls return false and change nothing.
func (s *UncertainSample) ApplyLabel(kind ownership.Kind) bool {
	if s.IsLabeled() {
		return false
	}
	now := time.Now().UTC()
	s.Label = &kind
	s.LabeledAt = &now
	return true
}

// PredictionCorrect reports whether the prediction matched the label; ok is
// false while unlabeled.
func (s *UncertainSample) PredictionCorrect() (correct, ok bool) {
	if s.Label == nil {
		return false, false
	}
	return *s.Label == s.Prediction.Kind, true
}

// #endregion uncertain-sample

// #region stats
// Stats summarizes queue state.
type Stats struct {
	Pending            int     `json:"pending"`
	Labeled            int     `json:"labeled"`
	TotalProcessed     uint64  `json:"total_processed"`
	AvgUncertainty     float64 `json:"avg_uncertainty"`
	PredictionAccuracy float64 `json:"prediction_accuracy"`
}

// #endregion stats
