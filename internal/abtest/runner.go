package abtest

import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/ownership-engine/internal/hybrid"
	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
)

// DefaultSeed seeds Random assignment.
const DefaultSeed uint64 = 42

// #region assignment
// Assignment decides which arm each observation goes to.
type Assignment uint8

const (
	RoundRobin Assignment = iota
	Random
	AllControl
	AllTreatment
)

var assignmentNames = [...]string{
	RoundRobin:   "round-robin",
	Random:       "random",
	AllControl:   "all-control",
	AllTreatment: "all-treatment",
}

func (a Assignment) String() string {
	if int(a) < len(assignmentNames) {
		return assignmentNames[a]
	}
	return fmt.Sprintf("Assignment(%d)", uint8(a))
}

func ParseAssignment(s string) (Assignment, error) {
	for i, n := range assignmentNames {
		if n == s {
			return Assignment(i), nil
		}
	}
	return RoundRobin, fmt.Errorf("unknown assignment strategy %q", s)
}

func (a Assignment) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Assignment) UnmarshalText(b []byte) error {
	parsed, err := ParseAssignment(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// #endregion assignment

// #region runner
// Runner assigns arms and records results into one experiment.
type Runner struct {
	experiment *Experiment
	strategy   Assignment
	seed       uint64
	counter    uint64
	now        func() time.Time
}

func NewRunner(name, description string, strategy Assignment) *Runner {
	return &Runner{
		experiment: NewExperiment(name, description),
		strategy:   strategy,
		seed:       DefaultSeed,
		now:        time.Now,
	}
}

// WithSeed reseeds Random assignment.
func (r *Runner) WithSeed(seed uint64) *Runner {
	r.seed = seed
	return r
}

func (r *Runner) Experiment() *Experiment { return r.experiment }
func (r *Runner) Strategy() Assignment    { return r.strategy }

// Assign picks the arm for the next observation. Random steps a 64-bit LCG
// so runs are reproducible.
func (r *Runner) Assign() Variant {
	var v Variant
	switch r.strategy {
	case RoundRobin:
		if r.counter%2 == 1 {
			v = Treatment
		}
	case Random:
		// the low bit of a power-of-two LCG alternates; the high bit does not
		r.seed = r.seed*6364136223846793005 + 1
		if r.seed>>63 == 1 {
			v = Treatment
		}
	case AllTreatment:
		v = Treatment
	}
	r.counter++
	return v
}

// Record adds one classified result to the experiment.
func (r *Runner) Record(v Variant, result hybrid.Result, groundTruth *ownership.Kind, latency time.Duration) {
	r.experiment.Record(NewObservation(v, result, groundTruth, latency))
}

// TimedRecord runs classify, measures its latency and records the result.
func (r *Runner) TimedRecord(v Variant, classify func() hybrid.Result, groundTruth *ownership.Kind) hybrid.Result {
	start := r.now()
	result := classify()
	r.Record(v, result, groundTruth, r.now().Sub(start))
	return result
}

// Finish ends the experiment and returns its report.
func (r *Runner) Finish() string {
	r.experiment.End()
	return r.experiment.Markdown()
}

// #endregion runner
