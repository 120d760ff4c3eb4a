package abtest

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
)

const (
	// MinGroundTruthPerArm is the sample size below which no arm is declared better.
	MinGroundTruthPerArm = 30
	// MinReportObservations is the total below which reports ask for more data.
	MinReportObservations = 100
)

// #region experiment
// Experiment compares a control and a treatment configuration.
type Experiment struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Control     VariantMetrics `json:"control"`
	Treatment   VariantMetrics `json:"treatment"`
	StartedAt   time.Time      `json:"started_at"`
	EndedAt     time.Time      `json:"ended_at,omitzero"`
}

func NewExperiment(name, description string) *Experiment {
	return &Experiment{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Control:     NewVariantMetrics(),
		Treatment:   NewVariantMetrics(),
		StartedAt:   time.Now().UTC(),
	}
}

// Record routes obs to its arm.
func (e *Experiment) Record(obs Observation) {
	switch obs.Variant {
	case Control:
		e.Control.Record(obs)
	case Treatment:
		e.Treatment.Record(obs)
	}
}

func (e *Experiment) End()           { e.EndedAt = time.Now().UTC() }
func (e *Experiment) IsActive() bool { return e.EndedAt.IsZero() }

func (e *Experiment) TotalObservations() uint64 {
	return e.Control.Count + e.Treatment.Count
}

func (e *Experiment) AccuracyLift() float64 {
	return e.Treatment.Accuracy() - e.Control.Accuracy()
}

func (e *Experiment) ConfidenceLift() float64 {
	return e.Treatment.AvgConfidence() - e.Control.AvgConfidence()
}

func (e *Experiment) LatencyDiffMicros() float64 {
	return e.Treatment.AvgLatencyMicros() - e.Control.AvgLatencyMicros()
}

// ChiSquared is the 2x2 statistic on correct and incorrect counts per arm.
// It is 0 when any expected cell is empty.
func (e *Experiment) ChiSquared() float64 {
	cc := float64(e.Control.Correct)
	cw := float64(e.Control.WithGroundTruth - e.Control.Correct)
	tc := float64(e.Treatment.Correct)
	tw := float64(e.Treatment.WithGroundTruth - e.Treatment.Correct)

	total := cc + cw + tc + tw
	if total == 0 {
		return 0
	}
	rowC, rowT := cc+cw, tc+tw
	colCorrect, colWrong := cc+tc, cw+tw

	cells := [4][2]float64{
		{cc, rowC * colCorrect / total},
		{cw, rowC * colWrong / total},
		{tc, rowT * colCorrect / total},
		{tw, rowT * colWrong / total},
	}
	var chi float64
	for _, c := range cells {
		if c[1] <= 0 {
			return 0
		}
		d := c[0] - c[1]
		chi += d * d / c[1]
	}
	return chi
}

// PValue maps the statistic onto the df=1 critical values.
func PValue(chiSquared float64) float64 {
	switch {
	case chiSquared > 6.63:
		return 0.01
	case chiSquared > 3.84:
		return 0.05
	}
	return 0.5
}

// IsTreatmentBetter requires MinGroundTruthPerArm labeled observations in each
// arm, then significance at p < 0.05 with treatment ahead.
func (e *Experiment) IsTreatmentBetter() (better bool, pValue float64) {
	if e.Control.WithGroundTruth < MinGroundTruthPerArm || e.Treatment.WithGroundTruth < MinGroundTruthPerArm {
		return false, 1
	}
	p := PValue(e.ChiSquared())
	return p < 0.05 && e.Treatment.Accuracy() > e.Control.Accuracy(), p
}

// #endregion experiment

// #region report
// Markdown renders the experiment report.
func (e *Experiment) Markdown() string {
	better, p := e.IsTreatmentBetter()
	status := "ACTIVE"
	if !e.IsActive() {
		status = "COMPLETED"
	}
	var recommendation string
	switch {
	case better:
		recommendation = "✅ ADOPT TREATMENT - Statistically significant improvement"
	case e.TotalObservations() < MinReportObservations:
		recommendation = "⏳ INSUFFICIENT DATA - Need more observations"
	default:
		recommendation = "❌ KEEP CONTROL - No significant improvement"
	}
	betterText := "No"
	if better {
		betterText = "Yes"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## A/B Test Report: %s\n\n", e.Name)
	fmt.Fprintf(&b, "**Status**: %s | **Description**: %s\n\n", status, e.Description)
	b.WriteString("### Summary\n\n")
	b.WriteString("| Metric | Control | Treatment | Lift |\n")
	b.WriteString("|--------|---------|-----------|------|\n")
	fmt.Fprintf(&b, "| Observations | %d | %d | - |\n", e.Control.Count, e.Treatment.Count)
	fmt.Fprintf(&b, "| Accuracy | %.1f%% | %.1f%% | %+.1f%% |\n",
		e.Control.Accuracy()*100, e.Treatment.Accuracy()*100, e.AccuracyLift()*100)
	fmt.Fprintf(&b, "| Avg Confidence | %.2f | %.2f | %+.2f |\n",
		e.Control.AvgConfidence(), e.Treatment.AvgConfidence(), e.ConfidenceLift())
	fmt.Fprintf(&b, "| Avg Latency | %.0fμs | %.0fμs | %+.0fμs |\n\n",
		e.Control.AvgLatencyMicros(), e.Treatment.AvgLatencyMicros(), e.LatencyDiffMicros())
	b.WriteString("### Statistical Analysis\n\n")
	fmt.Fprintf(&b, "- **Chi-squared p-value**: %.3f\n", p)
	fmt.Fprintf(&b, "- **Treatment better?**: %s\n", betterText)
	fmt.Fprintf(&b, "- **Recommendation**: %s\n\n", recommendation)
	b.WriteString("### Control Group Distribution\n\n")
	b.WriteString(distribution(e.Control))
	b.WriteString("\n\n### Treatment Group Distribution\n\n")
	b.WriteString(distribution(e.Treatment))
	b.WriteString("\n")
	return b.String()
}

func distribution(m VariantMetrics) string {
	var lines []string
	for _, k := range ownership.AllKinds() {
		n := m.ByKind[k]
		if n == 0 {
			continue
		}
		var pct float64
		if m.Count > 0 {
			pct = float64(n) / float64(m.Count) * 100
		}
		lines = append(lines, fmt.Sprintf("- %s: %d (%.1f%%)", k, n, pct))
	}
	if len(lines) == 0 {
		return "- No data"
	}
	return strings.Join(lines, "\n")
}

// #endregion report
