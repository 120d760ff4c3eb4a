package abtest

import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/ownership-engine/internal/hybrid"
	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
)

// #region variant
// Variant is an experiment arm.
type Variant uint8

const (
	Control Variant = iota
	Treatment
)

func (v Variant) String() string {
	switch v {
	case Control:
		return "control"
	case Treatment:
		return "treatment"
	}
	return fmt.Sprintf("Variant(%d)", uint8(v))
}

func (v Variant) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

func (v *Variant) UnmarshalText(b []byte) error {
	switch string(b) {
	case "control":
		*v = Control
	case "treatment":
		*v = Treatment
	default:
		return fmt.Errorf("unknown variant %q", string(b))
	}
	return nil
}

// #endregion variant

// #region observation
// Observation is one classified variable in one arm.
type Observation struct {
	Variant     Variant         `json:"variant" msgpack:"variant"`
	Variable    string          `json:"variable" msgpack:"variable"`
	Predicted   ownership.Kind  `json:"predicted" msgpack:"predicted"`
	GroundTruth *ownership.Kind `json:"ground_truth,omitempty" msgpack:"ground_truth,omitempty"`
	Confidence  float64         `json:"confidence" msgpack:"confidence"`
	Method      hybrid.Method   `json:"method" msgpack:"method"`
	Latency     time.Duration   `json:"latency" msgpack:"latency"`
	Correct     *bool           `json:"correct,omitempty" msgpack:"correct,omitempty"`
}

// NewObservation records r. Correct is set only when ground truth is known.
func NewObservation(v Variant, r hybrid.Result, groundTruth *ownership.Kind, latency time.Duration) Observation {
	obs := Observation{
		Variant:    v,
		Variable:   r.Variable,
		Predicted:  r.Kind,
		Confidence: r.Confidence,
		Method:     r.Method,
		Latency:    latency,
	}
	if groundTruth != nil {
		gt := *groundTruth
		correct := gt == r.Kind
		obs.GroundTruth = &gt
		obs.Correct = &correct
	}
	return obs
}

// #endregion observation

// #region variant-metrics
// VariantMetrics accumulate observations for one arm.
type VariantMetrics struct {
	Count            uint64                    `json:"count" msgpack:"count"`
	Correct          uint64                    `json:"correct" msgpack:"correct"`
	WithGroundTruth  uint64                    `json:"with_ground_truth" msgpack:"with_ground_truth"`
	ConfidenceSum    float64                   `json:"confidence_sum" msgpack:"confidence_sum"`
	LatencySumMicros uint64                    `json:"latency_sum_us" msgpack:"latency_sum_us"`
	ByKind           map[ownership.Kind]uint64 `json:"by_kind" msgpack:"by_kind"`
	ByMethod         map[hybrid.Method]uint64  `json:"by_method" msgpack:"by_method"`
}

func NewVariantMetrics() VariantMetrics {
	return VariantMetrics{
		ByKind:   make(map[ownership.Kind]uint64),
		ByMethod: make(map[hybrid.Method]uint64),
	}
}

func (m *VariantMetrics) Record(obs Observation) {
	if m.ByKind == nil {
		m.ByKind = make(map[ownership.Kind]uint64)
	}
	if m.ByMethod == nil {
		m.ByMethod = make(map[hybrid.Method]uint64)
	}
	m.Count++
	m.ConfidenceSum += obs.Confidence
	m.LatencySumMicros += uint64(obs.Latency.Microseconds())
	m.ByKind[obs.Predicted]++
	m.ByMethod[obs.Method]++
	if obs.Correct != nil {
		m.WithGroundTruth++
		if *obs.Correct {
			m.Correct++
		}
	}
}

// Accuracy is over ground-truthed observations only.
func (m VariantMetrics) Accuracy() float64 {
	if m.WithGroundTruth == 0 {
		return 0
	}
	return float64(m.Correct) / float64(m.WithGroundTruth)
}

func (m VariantMetrics) AvgConfidence() float64 {
	if m.Count == 0 {
		return 0
	}
	return m.ConfidenceSum / float64(m.Count)
}

func (m VariantMetrics) AvgLatencyMicros() float64 {
	if m.Count == 0 {
		return 0
	}
	return float64(m.LatencySumMicros) / float64(m.Count)
}

// #endregion variant-metrics
