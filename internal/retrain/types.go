package retrain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
	"github.com/danielpatrickdp/ownership-engine/internal/registry"
)

// #region sample
// Sample is one labeled training example.
type Sample struct {
	Features   ownership.Features `json:"features" msgpack:"features"`
	Label      ownership.Kind     `json:"label" msgpack:"label"`
	SourceFile string             `json:"source_file" msgpack:"source_file"`
	LineNumber uint32             `json:"line_number" msgpack:"line_number"`
}

func NewSample(f ownership.Features, label ownership.Kind, file string, line uint32) Sample {
	return Sample{Features: f, Label: label, SourceFile: file, LineNumber: line}
}

// #endregion sample

// #region config
// Config configures a retraining Pipeline.
type Config struct {
	MinPrecision    float64      `json:"min_precision" yaml:"min_precision" toml:"min_precision"`
	MinRecall       float64      `json:"min_recall" yaml:"min_recall" toml:"min_recall"`
	MaxDegradation  float64      `json:"max_degradation" yaml:"max_degradation" toml:"max_degradation"`
	CVFolds         int          `json:"cv_folds" yaml:"cv_folds" toml:"cv_folds"`
	MinTrain        int          `json:"min_train_samples" yaml:"min_train_samples" toml:"min_train_samples"`
	MinValidation   int          `json:"min_validation_samples" yaml:"min_validation_samples" toml:"min_validation_samples"`
	MinTest         int          `json:"min_test_samples" yaml:"min_test_samples" toml:"min_test_samples"`
	TrainRatio      float64      `json:"train_ratio" yaml:"train_ratio" toml:"train_ratio"`
	ValidationRatio float64      `json:"validation_ratio" yaml:"validation_ratio" toml:"validation_ratio"`
	Logger          *slog.Logger `json:"-" yaml:"-" toml:"-"`
}

func DefaultConfig() Config {
	return Config{
		MinPrecision:    0.85,
		MinRecall:       0.80,
		MaxDegradation:  0.02,
		CVFolds:         5,
		MinTrain:        700,
		MinValidation:   150,
		MinTest:         150,
		TrainRatio:      0.70,
		ValidationRatio: 0.15,
		Logger:          slog.Default(),
	}
}

// MinSamples is the total sample count a cycle needs before splitting.
func (c Config) MinSamples() int {
	return c.MinTrain + c.MinValidation + c.MinTest
}

// #endregion config

// #region split
// Split partitions samples for training, validation and testing.
type Split struct {
	Train      []Sample
	Validation []Sample
	Test       []Sample
}

// SplitSamples splits in order by the configured ratios (floored). The
// remainder goes to the test set.
func SplitSamples(samples []Sample, config Config) Split {
	n := len(samples)
	trainEnd := min(int(float64(n)*config.TrainRatio), n)
	valEnd := min(trainEnd+int(float64(n)*config.ValidationRatio), n)
	return Split{
		Train:      samples[:trainEnd:trainEnd],
		Validation: samples[trainEnd:valEnd:valEnd],
		Test:       samples[valEnd:],
	}
}

func (s Split) Total() int { return len(s.Train) + len(s.Validation) + len(s.Test) }

// MeetsMinimums reports whether every partition is large enough.
func (s Split) MeetsMinimums(config Config) bool {
	return len(s.Train) >= config.MinTrain &&
		len(s.Validation) >= config.MinValidation &&
		len(s.Test) >= config.MinTest
}

// #endregion split

// #region metrics
// ClassMetrics are per-kind scores reported by a trainer.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	Support   int     `json:"support"`
}

// TrainingMetrics are what a trainer reports for one run.
type TrainingMetrics struct {
	Precision      float64                         `json:"precision"`
	Recall         float64                         `json:"recall"`
	F1             float64                         `json:"f1_score"`
	TrainingLoss   float64                         `json:"training_loss"`
	ValidationLoss float64                         `json:"validation_loss"`
	ClassMetrics   map[ownership.Kind]ClassMetrics `json:"class_metrics,omitempty"`
	Duration       time.Duration                   `json:"duration"`
}

// NewTrainingMetrics derives F1 from precision and recall.
func NewTrainingMetrics(precision, recall float64) TrainingMetrics {
	var f1 float64
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return TrainingMetrics{Precision: precision, Recall: recall, F1: f1}
}

func (m TrainingMetrics) MeetsThresholds(config Config) bool {
	return m.Precision >= config.MinPrecision && m.Recall >= config.MinRecall
}

// QualityMetrics maps training results onto registry metrics. Accuracy is
// approximated by F1.
func (m TrainingMetrics) QualityMetrics(samples uint64) registry.QualityMetrics {
	return registry.NewQualityMetrics(m.F1, m.Precision, m.Recall, m.F1, 0.9, 0, samples)
}

// #endregion metrics

// #region trainer
// Trainer produces a model from a split. Its algorithm is opaque here.
type Trainer interface {
	Train(ctx context.Context, split Split) (TrainingMetrics, error)
}

// TrainerFunc adapts a function to Trainer.
type TrainerFunc func(ctx context.Context, split Split) (TrainingMetrics, error)

func (f TrainerFunc) Train(ctx context.Context, split Split) (TrainingMetrics, error) {
	return f(ctx, split)
}

// ErrNullTrainer is returned by NullTrainer.
var ErrNullTrainer = errors.New("null trainer cannot train")

// NullTrainer is the trainer of a deployment without a learned model.
type NullTrainer struct{}

func (NullTrainer) Train(context.Context, Split) (TrainingMetrics, error) {
	return TrainingMetrics{}, ErrNullTrainer
}

// FixedTrainer reports the same metrics on every run.
type FixedTrainer struct {
	Metrics TrainingMetrics
}

func (f FixedTrainer) Train(ctx context.Context, _ Split) (TrainingMetrics, error) {
	if err := ctx.Err(); err != nil {
		return TrainingMetrics{}, err
	}
	return f.Metrics, nil
}

// #endregion trainer

// #region outcome
// Status classifies a retraining cycle.
type Status string

const (
	StatusPromoted          Status = "promoted"
	StatusQualityGateFailed Status = "quality_gate_failed"
	StatusDegraded          Status = "degraded"
	StatusInsufficientData  Status = "insufficient_data"
	StatusTrainingError     Status = "training_error"
)

// Outcome is the result of one cycle. Which fields are set depends on Status:
//
//	promoted: Version, Activated, Metrics
//	quality_gate_failed: Reason, Metrics
//	degraded: Degradation, Metrics, Current
//	insufficient_data: Actual, Required
//	training_error: Reason
type Outcome struct {
	Status      Status
	Version     registry.Version
	Activated   bool
	Metrics     *TrainingMetrics
	Current     *registry.QualityMetrics
	Reason      string
	Degradation float64
	Actual      int
	Required    int
}

func (o Outcome) IsSuccess() bool { return o.Status == StatusPromoted }

// Summary is a one-line description for logs and history.
func (o Outcome) Summary() string {
	switch o.Status {
	case StatusPromoted:
		if o.Activated {
			return fmt.Sprintf("promoted %s (active)", o.Version)
		}
		return fmt.Sprintf("promoted %s (not activated)", o.Version)
	case StatusQualityGateFailed:
		return "quality gate failed: " + o.Reason
	case StatusDegraded:
		return fmt.Sprintf("degraded by %.4f", o.Degradation)
	case StatusInsufficientData:
		return fmt.Sprintf("insufficient data: %d < %d", o.Actual, o.Required)
	case StatusTrainingError:
		return "training error: " + o.Reason
	}
	return string(o.Status)
}

// #endregion outcome

// #region execution
// Execution is the recorded history of one cycle.
type Execution struct {
	ID          uuid.UUID         `json:"id"`
	Timestamp   time.Time         `json:"timestamp"`
	Status      Status            `json:"status"`
	Version     *registry.Version `json:"version,omitempty"`
	Detail      string            `json:"detail"`
	Degradation float64           `json:"degradation,omitempty"`
	SampleCount int               `json:"sample_count"`
}

// #endregion execution
