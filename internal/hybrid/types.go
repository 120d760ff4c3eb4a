package hybrid

import (
	"fmt"

	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
)

// #region method
// Method records which decision path produced a Result.
type Method uint8

const (
	RuleBased Method = iota
	MachineLearning
	Fallback
	Hybrid
)

var methodNames = [...]string{
	RuleBased:       "rule-based",
	MachineLearning: "ml",
	Fallback:        "fallback",
	Hybrid:          "hybrid",
}

// AllMethods returns every method in declaration order.
func AllMethods() []Method {
	return []Method{RuleBased, MachineLearning, Fallback, Hybrid}
}

func (m Method) String() string {
	if int(m) < len(methodNames) {
		return methodNames[m]
	}
	return fmt.Sprintf("Method(%d)", uint8(m))
}

// ParseMethod is the inverse of String.
func ParseMethod(s string) (Method, error) {
	for i, n := range methodNames {
		if n == s {
			return Method(i), nil
		}
	}
	return RuleBased, fmt.Errorf("unknown classification method %q", s)
}

func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Method) UnmarshalText(b []byte) error {
	parsed, err := ParseMethod(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// #endregion method

// #region mode
// Mode selects which decision strategy Classify applies.
type Mode uint8

const (
	ModeRules Mode = iota
	ModeHybrid
	ModeEnsemble
)

var modeNames = [...]string{
	ModeRules:    "rules",
	ModeHybrid:   "hybrid",
	ModeEnsemble: "ensemble",
}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

func ParseMode(s string) (Mode, error) {
	for i, n := range modeNames {
		if n == s {
			return Mode(i), nil
		}
	}
	return ModeRules, fmt.Errorf("unknown classification mode %q", s)
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// #endregion mode

// #region config
// DefaultConfidenceThreshold is the ML confidence needed to override rules.
const DefaultConfidenceThreshold = 0.65

// Config holds the hybrid classifier's gating parameters.
type Config struct {
	Threshold float64 `json:"threshold" yaml:"threshold" toml:"threshold"`
	MLEnabled bool    `json:"ml_enabled" yaml:"ml_enabled" toml:"ml_enabled"`
}

// DefaultConfig returns threshold 0.65 with ML disabled.
func DefaultConfig() Config {
	return Config{Threshold: DefaultConfidenceThreshold}
}

// #endregion config

// #region result
// Result is the audited final decision for one variable.
type Result struct {
	Variable   string                `json:"variable"`
	Kind       ownership.Kind        `json:"kind"`
	Confidence float64               `json:"confidence"`
	Method     Method                `json:"method"`
	RuleResult *ownership.Kind       `json:"rule_result,omitempty"`
	MLResult   *ownership.Prediction `json:"ml_result,omitempty"`
	Reasoning  string                `json:"reasoning"`
}

// UsedFallback reports whether rules were used because ML was not trusted.
func (r Result) UsedFallback() bool {
	return r.Method == Fallback
}

// MLRejected reports whether an ML verdict was available but discarded.
func (r Result) MLRejected() bool {
	return r.MLResult != nil && r.Method == Fallback
}

// #endregion result
