package tuning

import (
	"slices"

	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
)

// #region config
// DefaultThreshold is returned when there is nothing to tune against.
const DefaultThreshold = 0.65

// DefaultCandidates is the threshold grid evaluated when none is configured.
func DefaultCandidates() []float64 {
	return []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.65, 0.7, 0.8, 0.9}
}

// #endregion config

// #region tuner
// Tuner evaluates candidate thresholds against labeled samples.
type Tuner struct {
	candidates []float64
	criteria   Criteria
}

// NewTuner creates a tuner over the default grid selecting by MaxAccuracy.
func NewTuner() *Tuner {
	return &Tuner{candidates: DefaultCandidates(), criteria: MaxAccuracy}
}

// WithCandidates replaces the grid. Values are clamped, sorted and deduplicated.
func (t *Tuner) WithCandidates(candidates []float64) *Tuner {
	t.candidates = t.candidates[:0:0]
	for _, c := range candidates {
		t.AddCandidate(c)
	}
	return t
}

// WithCriteria sets the selection criterion.
func (t *Tuner) WithCriteria(c Criteria) *Tuner {
	t.criteria = c
	return t
}

// AddCandidate inserts one threshold, keeping the grid sorted and unique.
func (t *Tuner) AddCandidate(threshold float64) {
	v := ownership.Clamp01(threshold)
	i, found := slices.BinarySearch(t.candidates, v)
	if found {
		return
	}
	t.candidates = slices.Insert(t.candidates, i, v)
}

// Candidates returns a copy of the grid.
func (t *Tuner) Candidates() []float64 {
	return slices.Clone(t.candidates)
}

func (t *Tuner) Criteria() Criteria { return t.criteria }

// Tune scores every candidate and picks one by the configured criterion.
// Empty input returns DefaultThreshold with zeroed metrics.
func (t *Tuner) Tune(samples []ValidationSample) Result {
	if len(samples) == 0 {
		return Result{
			OptimalThreshold: DefaultThreshold,
			Criteria:         t.criteria,
			CriteriaName:     t.criteria.String(),
			Optimal:          Calculate(nil, DefaultThreshold),
		}
	}

	var ruleCorrect, mlCorrect int
	for _, s := range samples {
		if s.RuleCorrect() {
			ruleCorrect++
		}
		if s.MLCorrect() {
			mlCorrect++
		}
	}
	n := float64(len(samples))
	baseline := float64(ruleCorrect) / n

	all := make([]Metrics, len(t.candidates))
	for i, c := range t.candidates {
		all[i] = Calculate(samples, c)
	}

	optimal := t.selectOptimal(all, baseline)
	return Result{
		OptimalThreshold: optimal.Threshold,
		Criteria:         t.criteria,
		CriteriaName:     t.criteria.String(),
		Optimal:          optimal,
		All:              all,
		BaselineAccuracy: baseline,
		MLOnlyAccuracy:   float64(mlCorrect) / n,
		Improvement:      optimal.Accuracy - baseline,
	}
}

func (t *Tuner) selectOptimal(all []Metrics, baseline float64) Metrics {
	if len(all) == 0 {
		return Calculate(nil, DefaultThreshold)
	}

	switch t.criteria {
	case MaxF1:
		return lastMax(all, func(m Metrics) float64 { return m.F1 })
	case BalancedAccuracyFallback:
		return lastMax(all, func(m Metrics) float64 { return 0.7*m.Accuracy + 0.3*m.MLUsageRate })
	case MinFallbackAboveBaseline:
		var best *Metrics
		for i := range all {
			if all[i].Accuracy < baseline {
				continue
			}
			if best == nil || all[i].FallbackRate < best.FallbackRate {
				best = &all[i]
			}
		}
		if best != nil {
			return *best
		}
		return lastMax(all, func(m Metrics) float64 { return m.Accuracy })
	default:
		return lastMax(all, func(m Metrics) float64 { return m.Accuracy })
	}
}

// lastMax returns the highest-scoring entry; ties keep the later candidate.
func lastMax(all []Metrics, score func(Metrics) float64) Metrics {
	best := 0
	for i := 1; i < len(all); i++ {
		if score(all[i]) >= score(all[best]) {
			best = i
		}
	}
	return all[best]
}

// FindOptimalThreshold tunes with the default grid and criterion.
func FindOptimalThreshold(samples []ValidationSample) float64 {
	return NewTuner().Tune(samples).OptimalThreshold
}

// #endregion tuner
