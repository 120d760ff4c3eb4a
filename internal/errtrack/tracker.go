package errtrack

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
)

type featureDefect struct {
	feature string
	defect  ownership.Defect
}

// #region tracker
// Tracker attributes inference failures to C features with Tarantula scoring.
type Tracker struct {
	errors         []InferenceError
	featureStats   map[string]*PatternStats
	defectStats    map[ownership.Defect]*PatternStats
	pairStats      map[featureDefect]*PatternStats
	totalSuccesses uint64
	totalFailures  uint64
	nextID         uint64
}

func NewTracker() *Tracker {
	return &Tracker{
		featureStats: make(map[string]*PatternStats),
		defectStats:  make(map[ownership.Defect]*PatternStats),
		pairStats:    make(map[featureDefect]*PatternStats),
		nextID:       1,
	}
}

func statsFor[K comparable](m map[K]*PatternStats, k K) *PatternStats {
	s, ok := m[k]
	if !ok {
		s = &PatternStats{}
		m[k] = s
	}
	return s
}

// RecordError stores e under a fresh ID and bumps every failure counter it
// touches. The assigned ID is returned.
func (t *Tracker) RecordError(e InferenceError) uint64 {
	e.ID = t.nextID
	t.nextID++
	t.add(e)
	return e.ID
}

func (t *Tracker) add(e InferenceError) {
	t.totalFailures++
	statsFor(t.defectStats, e.Defect).record(true)
	for _, f := range e.CFeatures {
		statsFor(t.featureStats, f).record(true)
		statsFor(t.pairStats, featureDefect{f, e.Defect}).record(true)
	}
	t.errors = append(t.errors, e)
}

// RecordSuccess counts a correct decision for the given features.
func (t *Tracker) RecordSuccess(features ...string) {
	t.totalSuccesses++
	for _, f := range features {
		statsFor(t.featureStats, f).record(false)
	}
}

// Errors returns a copy of every recorded error.
func (t *Tracker) Errors() []InferenceError { return slices.Clone(t.errors) }
func (t *Tracker) ErrorCount() int          { return len(t.errors) }
func (t *Tracker) SuccessCount() uint64     { return t.totalSuccesses }

// FeatureStats returns the counters for one feature.
func (t *Tracker) FeatureStats(feature string) (PatternStats, bool) {
	s, ok := t.featureStats[feature]
	if !ok {
		return PatternStats{}, false
	}
	return *s, true
}

// Suspiciousness scores every feature, highest first. Ties sort by name.
func (t *Tracker) Suspiciousness() []FeatureSuspiciousness {
	totalFailed := float64(max(t.totalFailures, 1))
	totalPassed := float64(max(t.totalSuccesses, 1))

	out := make([]FeatureSuspiciousness, 0, len(t.featureStats))
	for name, s := range t.featureStats {
		failed := float64(s.FailureCount) / totalFailed
		passed := float64(s.SuccessCount) / totalPassed
		var score float64
		if failed+passed > 0 {
			score = failed / (failed + passed)
		}
		s.Suspiciousness = score
		out = append(out, FeatureSuspiciousness{
			Feature:      name,
			Score:        score,
			TotalCount:   s.Count,
			FailureCount: s.FailureCount,
			SuccessCount: s.SuccessCount,
		})
	}
	slices.SortFunc(out, func(a, b FeatureSuspiciousness) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.Feature, b.Feature)
	})
	return out
}

// TopSuspicious returns at most n of the highest-scoring features.
func (t *Tracker) TopSuspicious(n int) []FeatureSuspiciousness {
	all := t.Suspiciousness()
	return all[:min(max(n, 0), len(all))]
}

func (t *Tracker) ErrorsByDefect(d ownership.Defect) []InferenceError {
	var out []InferenceError
	for _, e := range t.errors {
		if e.Defect == d {
			out = append(out, e)
		}
	}
	return out
}

func (t *Tracker) ErrorsByFeature(feature string) []InferenceError {
	var out []InferenceError
	for _, e := range t.errors {
		if e.hasFeature(feature) {
			out = append(out, e)
		}
	}
	return out
}

// DefectDistribution counts errors per defect category.
func (t *Tracker) DefectDistribution() map[ownership.Defect]uint64 {
	dist := make(map[ownership.Defect]uint64)
	for _, e := range t.errors {
		dist[e.Defect]++
	}
	return dist
}

// RankedDefects is the defect distribution ordered by count, then category.
func (t *Tracker) RankedDefects() []DefectCount {
	dist := t.DefectDistribution()
	out := make([]DefectCount, 0, len(dist))
	keys := make([]ownership.Defect, 0, len(dist))
	for d := range dist {
		keys = append(keys, d)
	}
	slices.Sort(keys)
	for _, d := range keys {
		out = append(out, DefectCount{Defect: d, Count: dist[d]})
	}
	slices.SortStableFunc(out, func(a, b DefectCount) int {
		return cmp.Compare(b.Count, a.Count)
	})
	return out
}

// FeatureDistribution counts how often each feature appears among errors.
func (t *Tracker) FeatureDistribution() map[string]uint64 {
	dist := make(map[string]uint64)
	for _, e := range t.errors {
		for _, f := range e.CFeatures {
			dist[f]++
		}
	}
	return dist
}

// FeatureDefectCorrelation lists failures per (feature, defect) pair, sorted
// by feature then defect.
func (t *Tracker) FeatureDefectCorrelation() []Correlation {
	out := make([]Correlation, 0, len(t.pairStats))
	for k, s := range t.pairStats {
		out = append(out, Correlation{Feature: k.feature, Defect: k.defect, Failures: s.FailureCount})
	}
	slices.SortFunc(out, func(a, b Correlation) int {
		if c := strings.Compare(a.Feature, b.Feature); c != 0 {
			return c
		}
		return cmp.Compare(a.Defect, b.Defect)
	})
	return out
}

// #endregion tracker

// #region suggestions
// Suggestions derives improvement actions from the current counters.
func (t *Tracker) Suggestions() []Suggestion {
	var out []Suggestion
	for _, fs := range t.TopSuspicious(5) {
		if !fs.IsHighlySuspicious() {
			continue
		}
		out = append(out, Suggestion{
			Priority: PriorityHigh,
			Category: FeatureHandling,
			Description: fmt.Sprintf("Improve handling of '%s' (suspiciousness: %.2f, %d failures)",
				fs.Feature, fs.Score, fs.FailureCount),
			AffectedFeature: fs.Feature,
		})
	}

	ranked := t.RankedDefects()
	for _, dc := range ranked[:min(3, len(ranked))] {
		if dc.Count <= 5 {
			continue
		}
		priority := PriorityMedium
		if dc.Count > 20 {
			priority = PriorityHigh
		}
		d := dc.Defect
		out = append(out, Suggestion{
			Priority:       priority,
			Category:       DefectPrevention,
			Description:    fmt.Sprintf("Address %s defect category (%d occurrences)", d, dc.Count),
			AffectedDefect: &d,
		})
	}
	return out
}

// #endregion suggestions

// #region report
// Markdown renders the error tracking report.
func (t *Tracker) Markdown() string {
	var b strings.Builder
	b.WriteString("## Error Tracking Report (CITL Analysis)\n\n")

	errs := t.ErrorCount()
	total := uint64(errs) + t.totalSuccesses
	var rate float64
	if total > 0 {
		rate = float64(errs) / float64(total) * 100
	}
	b.WriteString("### Summary\n\n")
	b.WriteString("| Metric | Value |\n|--------|-------|\n")
	fmt.Fprintf(&b, "| Total Errors | %d |\n", errs)
	fmt.Fprintf(&b, "| Total Successes | %d |\n", t.totalSuccesses)
	fmt.Fprintf(&b, "| Error Rate | %.1f%% |\n\n", rate)

	b.WriteString("### Top Suspicious Features (Tarantula)\n\n")
	b.WriteString("| Feature | Score | Failures | Successes |\n")
	b.WriteString("|---------|-------|----------|----------|\n")
	top := t.TopSuspicious(10)
	for _, fs := range top[:min(5, len(top))] {
		fmt.Fprintf(&b, "| %s | %.2f | %d | %d |\n", fs.Feature, fs.Score, fs.FailureCount, fs.SuccessCount)
	}
	b.WriteString("\n")

	b.WriteString("### Defect Distribution\n\n")
	ranked := t.RankedDefects()
	for _, dc := range ranked[:min(5, len(ranked))] {
		pct := float64(dc.Count) / float64(max(errs, 1)) * 100
		fmt.Fprintf(&b, "- %s: %d (%.1f%%)\n", dc.Defect, dc.Count, pct)
	}
	b.WriteString("\n")

	if suggestions := t.Suggestions(); len(suggestions) > 0 {
		b.WriteString("### Improvement Suggestions\n\n")
		for i, s := range suggestions {
			fmt.Fprintf(&b, "%d. **[%s]** %s\n", i+1, s.Priority, s.Description)
		}
	}
	return b.String()
}

// #endregion report

// #region state
// State is the persisted form of a Tracker.
type State struct {
	Errors           []InferenceError  `json:"errors" msgpack:"errors"`
	FeatureSuccesses map[string]uint64 `json:"feature_successes" msgpack:"feature_successes"`
	TotalSuccesses   uint64            `json:"total_successes" msgpack:"total_successes"`
	NextID           uint64            `json:"next_id" msgpack:"next_id"`
}

// State captures the tracker for persistence.
func (t *Tracker) State() State {
	succ := make(map[string]uint64, len(t.featureStats))
	for name, s := range t.featureStats {
		if s.SuccessCount > 0 {
			succ[name] = s.SuccessCount
		}
	}
	return State{
		Errors:           slices.Clone(t.errors),
		FeatureSuccesses: succ,
		TotalSuccesses:   t.totalSuccesses,
		NextID:           t.nextID,
	}
}

// RestoreTracker rebuilds every counter from persisted state.
func RestoreTracker(st State) *Tracker {
	t := NewTracker()
	for _, e := range st.Errors {
		t.add(e)
		if e.ID >= t.nextID {
			t.nextID = e.ID + 1
		}
	}
	for name, n := range st.FeatureSuccesses {
		s := statsFor(t.featureStats, name)
		s.Count += n
		s.SuccessCount += n
	}
	t.totalSuccesses = st.TotalSuccesses
	t.nextID = max(t.nextID, st.NextID)
	return t
}

// #endregion state
