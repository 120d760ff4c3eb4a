package retrain

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/ownership-engine/internal/registry"
)

// ManualRollbackReason is recorded on rollbacks requested through a pipeline.
const ManualRollbackReason = "Manual rollback via pipeline"

// #region pipeline
// Pipeline runs train, gate, compare and register cycles against a version
// manager. It holds no lock; run one cycle at a time.
type Pipeline struct {
	config  Config
	trainer Trainer
	manager *registry.Manager
	history []Execution
	logger  *slog.Logger
	now     func() time.Time
}

// NewPipeline creates a pipeline. A nil manager gets a default one.
func NewPipeline(trainer Trainer, manager *registry.Manager, config Config) *Pipeline {
	if manager == nil {
		manager = registry.New(registry.DefaultManagerConfig())
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		config:  config,
		trainer: trainer,
		manager: manager,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (p *Pipeline) Config() Config                  { return p.config }
func (p *Pipeline) SetConfig(c Config)              { p.config = c }
func (p *Pipeline) Manager() *registry.Manager      { return p.manager }
func (p *Pipeline) Current() (registry.Entry, bool) { return p.manager.Active() }

// History returns every recorded execution, oldest first.
func (p *Pipeline) History() []Execution { return slices.Clone(p.history) }

// LoadHistory replaces the execution history with persisted records.
func (p *Pipeline) LoadHistory(execs []Execution) { p.history = slices.Clone(execs) }

// SuccessRate is the fraction of executions that promoted a model.
func (p *Pipeline) SuccessRate() float64 {
	if len(p.history) == 0 {
		return 0
	}
	var n int
	for _, e := range p.history {
		if e.Status == StatusPromoted {
			n++
		}
	}
	return float64(n) / float64(len(p.history))
}

// Rollback activates an explicit version.
func (p *Pipeline) Rollback(v registry.Version) (registry.RollbackResult, error) {
	return p.manager.RollbackTo(v, ManualRollbackReason)
}

// Execute runs one cycle. Every outcome, rejection or not, is recorded in
// the history.
func (p *Pipeline) Execute(ctx context.Context, samples []Sample) Outcome {
	out := p.execute(ctx, samples)
	p.record(out, len(samples))
	return out
}

func (p *Pipeline) execute(ctx context.Context, samples []Sample) Outcome {
	required := p.config.MinSamples()
	if len(samples) < required {
		return Outcome{Status: StatusInsufficientData, Actual: len(samples), Required: required}
	}

	split := SplitSamples(samples, p.config)
	if !split.MeetsMinimums(p.config) {
		return Outcome{Status: StatusInsufficientData, Actual: split.Total(), Required: required}
	}

	start := time.Now()
	metrics, err := p.trainer.Train(ctx, split)
	if err != nil {
		return Outcome{Status: StatusTrainingError, Reason: err.Error()}
	}
	if metrics.Duration == 0 {
		metrics.Duration = time.Since(start)
	}

	if !metrics.MeetsThresholds(p.config) {
		return Outcome{
			Status: StatusQualityGateFailed,
			Reason: fmt.Sprintf("Precision %.2f < %.2f or Recall %.2f < %.2f",
				metrics.Precision, p.config.MinPrecision, metrics.Recall, p.config.MinRecall),
			Metrics: &metrics,
		}
	}

	if active, ok := p.manager.Active(); ok {
		if d := active.Metrics.F1 - metrics.F1; d > p.config.MaxDegradation {
			current := active.Metrics
			return Outcome{Status: StatusDegraded, Degradation: d, Metrics: &metrics, Current: &current}
		}
	}

	version := p.nextVersion()
	entry := registry.NewEntry(version, metrics.QualityMetrics(uint64(len(split.Validation))),
		"Retrained model", fmt.Sprintf("models/%s.bin", version))
	activated, err := p.manager.Register(entry)
	if err != nil {
		return Outcome{Status: StatusTrainingError, Reason: fmt.Sprintf("register: %v", err)}
	}
	return Outcome{Status: StatusPromoted, Version: version, Activated: activated, Metrics: &metrics}
}

// nextVersion bumps minor from the active version, or from the latest
// registered one when that is newer.
func (p *Pipeline) nextVersion() registry.Version {
	active, hasActive := p.manager.Active()
	latest, hasLatest := p.manager.Latest()
	switch {
	case hasActive && (!hasLatest || !active.Version.Less(latest.Version)):
		return active.Version.BumpMinor()
	case hasLatest:
		return latest.Version.BumpMinor()
	}
	return registry.DefaultVersion()
}

func (p *Pipeline) record(out Outcome, sampleCount int) {
	exec := Execution{
		ID:          uuid.New(),
		Timestamp:   p.now(),
		Status:      out.Status,
		Detail:      out.Summary(),
		Degradation: out.Degradation,
		SampleCount: sampleCount,
	}
	if out.Status == StatusPromoted {
		v := out.Version
		exec.Version = &v
	}
	p.history = append(p.history, exec)

	attrs := []any{
		slog.String("execution_id", exec.ID.String()),
		slog.String("status", string(out.Status)),
		slog.Int("samples", sampleCount),
	}
	if out.IsSuccess() {
		p.logger.Info("retraining promoted model", append(attrs, slog.String("version", out.Version.String()), slog.Bool("activated", out.Activated))...)
		return
	}
	p.logger.Warn("retraining rejected", append(attrs, slog.String("detail", exec.Detail))...)
}

// #endregion pipeline
