package active

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
)

// DefaultMinUncertainty is the lowest score that still gets queued.
const DefaultMinUncertainty = 0.35

// #region config
// LearnerConfig configures a Learner.
type LearnerConfig struct {
	Strategy            Strategy `json:"strategy" yaml:"strategy" toml:"strategy"`
	MinUncertainty      float64  `json:"min_uncertainty" yaml:"min_uncertainty" toml:"min_uncertainty"`
	ConfidenceThreshold float64  `json:"confidence_threshold" yaml:"confidence_threshold" toml:"confidence_threshold"`
	MaxPending          int      `json:"max_pending" yaml:"max_pending" toml:"max_pending"`
}

// DefaultLearnerConfig returns uncertainty sampling with the standard gates.
func DefaultLearnerConfig() LearnerConfig {
	return LearnerConfig{
		Strategy:            Uncertainty,
		MinUncertainty:      DefaultMinUncertainty,
		ConfidenceThreshold: ownership.ConfidenceThreshold,
		MaxPending:          DefaultMaxPending,
	}
}

// #endregion config

// #region learner
// Learner scores predictions and queues the uncertain ones for labeling.
type Learner struct {
	calc           Calculator
	queue          *Queue
	minUncertainty float64
}

// NewLearner creates a learner with an empty queue.
func NewLearner(config LearnerConfig) *Learner {
	return NewLearnerWithQueue(config, NewQueue(config.Strategy, config.MaxPending))
}

// NewLearnerWithQueue creates a learner around an existing (restored) queue.
// The queue's strategy wins over config.Strategy.
func NewLearnerWithQueue(config LearnerConfig, q *Queue) *Learner {
	return &Learner{
		calc:           NewCalculator(config.ConfidenceThreshold),
		queue:          q,
		minUncertainty: ownership.Clamp01(config.MinUncertainty),
	}
}

func (l *Learner) Queue() *Queue           { return l.queue }
func (l *Learner) Calculator() Calculator  { return l.calc }
func (l *Learner) MinUncertainty() float64 { return l.minUncertainty }

// Process scores p and queues it when the score clears MinUncertainty.
func (l *Learner) Process(variable string, f ownership.Features, p ownership.Prediction) (uncertainty float64, queued bool) {
	strategy := l.queue.Strategy()
	uncertainty = l.calc.Calculate(p, strategy)
	if uncertainty < l.minUncertainty {
		return uncertainty, false
	}
	l.queue.Enqueue(NewUncertainSample(variable, f, p, uncertainty, strategy))
	return uncertainty, true
}

func (l *Learner) Next() (UncertainSample, bool)        { return l.queue.Next() }
func (l *Learner) NextBatch(n int) []UncertainSample    { return l.queue.NextBatch(n) }
func (l *Learner) SubmitLabeled(s UncertainSample) bool { return l.queue.SubmitLabeled(s) }
func (l *Learner) TrainingSamples() []UncertainSample   { return l.queue.Labeled() }
func (l *Learner) TakeTrainingSamples() []UncertainSample {
	return l.queue.TakeLabeled()
}
func (l *Learner) Stats() Stats { return l.queue.Stats() }

func (l *Learner) IsUncertain(p ownership.Prediction) bool {
	return l.calc.IsUncertain(p)
}

// Markdown renders the queue report.
func (l *Learner) Markdown() string {
	st := l.Stats()
	var b strings.Builder
	b.WriteString("## Active Learning Report\n\n")
	b.WriteString("### Queue Status\n\n")
	b.WriteString("| Metric | Value |\n|--------|-------|\n")
	fmt.Fprintf(&b, "| Strategy | %s |\n", l.queue.Strategy())
	fmt.Fprintf(&b, "| Pending Samples | %d |\n", st.Pending)
	fmt.Fprintf(&b, "| Labeled Samples | %d |\n", st.Labeled)
	fmt.Fprintf(&b, "| Total Processed | %d |\n", st.TotalProcessed)
	fmt.Fprintf(&b, "| Avg Uncertainty | %.2f |\n", st.AvgUncertainty)
	fmt.Fprintf(&b, "| Prediction Accuracy | %.1f%% |\n\n", st.PredictionAccuracy*100)
	b.WriteString("### Configuration\n\n")
	b.WriteString("| Parameter | Value |\n|-----------|-------|\n")
	fmt.Fprintf(&b, "| Min Uncertainty | %.2f |\n", l.minUncertainty)
	fmt.Fprintf(&b, "| Confidence Threshold | %.2f |\n", l.calc.Threshold())
	return b.String()
}

// #endregion learner
