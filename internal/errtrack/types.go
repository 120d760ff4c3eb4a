package errtrack

import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
)

// #region inference-error
// InferenceError is one wrong ownership decision with its context.
type InferenceError struct {
	ID         uint64           `json:"id" msgpack:"id"`
	Variable   string           `json:"variable" msgpack:"variable"`
	SourceFile string           `json:"source_file" msgpack:"source_file"`
	SourceLine uint32           `json:"source_line" msgpack:"source_line"`
	Predicted  ownership.Kind   `json:"predicted" msgpack:"predicted"`
	Expected   ownership.Kind   `json:"expected" msgpack:"expected"`
	Confidence float64          `json:"confidence" msgpack:"confidence"`
	CFeatures  []string         `json:"c_features,omitempty" msgpack:"c_features,omitempty"`
	RustError  string           `json:"rust_error,omitempty" msgpack:"rust_error,omitempty"`
	Defect     ownership.Defect `json:"defect" msgpack:"defect"`
	Timestamp  time.Time        `json:"timestamp" msgpack:"timestamp"`
}

// NewInferenceError creates an error record stamped with the current time.
func NewInferenceError(variable, file string, line uint32, predicted, expected ownership.Kind, confidence float64, defect ownership.Defect) InferenceError {
	return InferenceError{
		Variable:   variable,
		SourceFile: file,
		SourceLine: line,
		Predicted:  predicted,
		Expected:   expected,
		Confidence: ownership.Clamp01(confidence),
		Defect:     defect,
		Timestamp:  time.Now().UTC(),
	}
}

// WithFeatures sets the C features seen around the variable.
func (e InferenceError) WithFeatures(features ...string) InferenceError {
	e.CFeatures = append([]string(nil), features...)
	return e
}

// WithRustError attaches the compiler diagnostic, if any.
func (e InferenceError) WithRustError(code string) InferenceError {
	e.RustError = code
	return e
}

func (e InferenceError) hasFeature(name string) bool {
	for _, f := range e.CFeatures {
		if f == name {
			return true
		}
	}
	return false
}

// #endregion inference-error

// #region stats
// PatternStats counts outcomes for one pattern.
type PatternStats struct {
	Count          uint64  `json:"count" msgpack:"count"`
	FailureCount   uint64  `json:"failure_count" msgpack:"failure_count"`
	SuccessCount   uint64  `json:"success_count" msgpack:"success_count"`
	Suspiciousness float64 `json:"suspiciousness" msgpack:"suspiciousness"`
}

func (p PatternStats) FailureRate() float64 {
	if p.Count == 0 {
		return 0
	}
	return float64(p.FailureCount) / float64(p.Count)
}

func (p *PatternStats) record(failure bool) {
	p.Count++
	if failure {
		p.FailureCount++
	} else {
		p.SuccessCount++
	}
}

// FeatureSuspiciousness is the Tarantula score of one C feature.
type FeatureSuspiciousness struct {
	Feature      string  `json:"feature"`
	Score        float64 `json:"score"`
	TotalCount   uint64  `json:"total_count"`
	FailureCount uint64  `json:"failure_count"`
	SuccessCount uint64  `json:"success_count"`
}

func (f FeatureSuspiciousness) IsSuspicious() bool       { return f.Score > 0.5 }
func (f FeatureSuspiciousness) IsHighlySuspicious() bool { return f.Score > 0.7 }

// DefectCount is one row of the defect distribution.
type DefectCount struct {
	Defect ownership.Defect `json:"defect"`
	Count  uint64           `json:"count"`
}

// Correlation counts failures where a feature co-occurred with a defect.
type Correlation struct {
	Feature  string           `json:"feature"`
	Defect   ownership.Defect `json:"defect"`
	Failures uint64           `json:"failures"`
}

// #endregion stats

// #region suggestion
type Priority uint8

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityMedium
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "Critical"
	case PriorityHigh:
		return "High"
	case PriorityMedium:
		return "Medium"
	case PriorityLow:
		return "Low"
	}
	return fmt.Sprintf("Priority(%d)", uint8(p))
}

func (p Priority) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Priority) UnmarshalText(b []byte) error {
	for _, c := range []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow} {
		if c.String() == string(b) {
			*p = c
			return nil
		}
	}
	return fmt.Errorf("unknown priority %q", string(b))
}

type Category uint8

const (
	FeatureHandling Category = iota
	DefectPrevention
	TrainingData
	Configuration
)

func (c Category) String() string {
	switch c {
	case FeatureHandling:
		return "FeatureHandling"
	case DefectPrevention:
		return "DefectPrevention"
	case TrainingData:
		return "TrainingData"
	case Configuration:
		return "Configuration"
	}
	return fmt.Sprintf("Category(%d)", uint8(c))
}

func (c Category) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Category) UnmarshalText(b []byte) error {
	for _, v := range []Category{FeatureHandling, DefectPrevention, TrainingData, Configuration} {
		if v.String() == string(b) {
			*c = v
			return nil
		}
	}
	return fmt.Errorf("unknown category %q", string(b))
}

// Suggestion is an improvement derived from the error analysis.
type Suggestion struct {
	Priority        Priority          `json:"priority" msgpack:"priority"`
	Category        Category          `json:"category" msgpack:"category"`
	Description     string            `json:"description" msgpack:"description"`
	AffectedFeature string            `json:"affected_feature,omitempty" msgpack:"affected_feature,omitempty"`
	AffectedDefect  *ownership.Defect `json:"affected_defect,omitempty" msgpack:"affected_defect,omitempty"`
}

// #endregion suggestion
