package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/ownership-engine/internal/hybrid"
	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string        `json:"description"`
	Config      FixtureConfig `json:"config"`
	Cases       []FixtureCase `json:"cases"`
}

// FixtureConfig mirrors hybrid.Config plus the decision mode.
type FixtureConfig struct {
	Threshold float64     `json:"threshold"`
	MLEnabled bool        `json:"ml_enabled"`
	Mode      hybrid.Mode `json:"mode"`
}

// FixtureVerdict is a recorded rule or model verdict.
type FixtureVerdict struct {
	Kind       ownership.Kind  `json:"kind"`
	Confidence float64         `json:"confidence"`
	Reason     string          `json:"reason,omitempty"`
	Fallback   *ownership.Kind `json:"fallback,omitempty"`
}

// FixtureCase is one labeled variable with its recorded verdicts.
type FixtureCase struct {
	Variable       string             `json:"variable"`
	SourceFile     string             `json:"source_file,omitempty"`
	SourceLine     uint32             `json:"source_line,omitempty"`
	Features       ownership.Features `json:"features"`
	Rule           FixtureVerdict     `json:"rule"`
	ML             *FixtureVerdict    `json:"ml,omitempty"`
	Expected       ownership.Kind     `json:"expected"`
	ExpectedMethod *hybrid.Method     `json:"expected_method,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToCase converts a FixtureCase to a domain Case.
func (fc *FixtureCase) ToCase() Case {
	c := Case{
		Variable:   fc.Variable,
		SourceFile: fc.SourceFile,
		SourceLine: fc.SourceLine,
		Features:   fc.Features,
		Rule: ownership.Inference{
			Variable:   fc.Variable,
			Kind:       fc.Rule.Kind,
			Confidence: ownership.Clamp01(fc.Rule.Confidence),
			Reason:     fc.Rule.Reason,
		},
		Expected: fc.Expected,
	}
	if fc.ML != nil {
		p := ownership.NewPrediction(fc.ML.Kind, fc.ML.Confidence)
		if fc.ML.Fallback != nil {
			p = p.WithFallback(*fc.ML.Fallback)
		}
		c.ML = &p
	}
	return c
}

// ToCases converts every fixture case in order.
func (f *Fixture) ToCases() []Case {
	out := make([]Case, len(f.Cases))
	for i := range f.Cases {
		out[i] = f.Cases[i].ToCase()
	}
	return out
}

// ToReplayConfig converts a FixtureConfig to a domain ReplayConfig.
func (fc *FixtureConfig) ToReplayConfig() ReplayConfig {
	config := DefaultReplayConfig()
	config.Classifier = hybrid.Config{Threshold: fc.Threshold, MLEnabled: fc.MLEnabled}
	config.Mode = fc.Mode
	return config
}

// #endregion fixture-loader
