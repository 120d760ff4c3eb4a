package replay

import (
	"log/slog"

	"github.com/danielpatrickdp/ownership-engine/internal/hybrid"
	"github.com/danielpatrickdp/ownership-engine/internal/model"
	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
	"github.com/danielpatrickdp/ownership-engine/internal/retrain"
	"github.com/danielpatrickdp/ownership-engine/internal/tuning"
)

// #region types
// Case is a single labeled variable recorded for replay.
type Case struct {
	Variable   string
	SourceFile string
	SourceLine uint32
	Features   ownership.Features
	Rule       ownership.Inference
	ML         *ownership.Prediction // nil when no model verdict was recorded
	Expected   ownership.Kind
}

// ReplayConfig bundles the classifier config and mode for a replay run.
type ReplayConfig struct {
	Classifier hybrid.Config
	Mode       hybrid.Mode
	Logger     *slog.Logger
}

// DefaultReplayConfig replays in hybrid mode with ML enabled at 0.65.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		Classifier: hybrid.Config{Threshold: hybrid.DefaultConfidenceThreshold, MLEnabled: true},
		Mode:       hybrid.ModeHybrid,
		Logger:     slog.Default(),
	}
}

// ReplayResult captures the outcome of replaying one case.
type ReplayResult struct {
	Variable    string
	Result      hybrid.Result
	Expected    ownership.Kind
	Correct     bool
	RuleCorrect bool
	MLCorrect   bool // false when no model verdict was recorded
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalCases  int
	Correct     int
	RuleCorrect int
	MLCorrect   int
	MLRecorded  int
	Methods     hybrid.Metrics
}

func (s ReplaySummary) Accuracy() float64     { return frac(s.Correct, s.TotalCases) }
func (s ReplaySummary) RuleAccuracy() float64 { return frac(s.RuleCorrect, s.TotalCases) }
func (s ReplaySummary) MLAccuracy() float64   { return frac(s.MLCorrect, s.MLRecorded) }

// #endregion types

// #region recorded-model
// recorded replays one stored model verdict.
type recorded struct {
	pred ownership.Prediction
}

func (r recorded) Predict(ownership.Features) ownership.Prediction { return r.pred }
func (r recorded) Name() string                                    { return "recorded" }

// ClassifyCase points classifier at c's recorded verdict, or the Null model
// when none was recorded, and classifies c in mode.
func ClassifyCase(classifier *hybrid.Classifier, mode hybrid.Mode, c Case) hybrid.Result {
	var m model.Model = model.Null{}
	if c.ML != nil {
		m = recorded{pred: *c.ML}
	}
	classifier.SetModel(m)
	return classifier.Classify(mode, c.Rule, c.Features)
}

// #endregion recorded-model

// #region replay
// Replay runs every case through a hybrid classifier whose model returns the
// case's recorded verdict. Operates entirely in-memory.
func Replay(cases []Case, config ReplayConfig) []ReplayResult {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	classifier := hybrid.New(config.Classifier)
	results := make([]ReplayResult, 0, len(cases))

	for _, c := range cases {
		r := ClassifyCase(classifier, config.Mode, c)
		res := ReplayResult{
			Variable:    c.Variable,
			Result:      r,
			Expected:    c.Expected,
			Correct:     r.Kind == c.Expected,
			RuleCorrect: c.Rule.Kind == c.Expected,
			MLCorrect:   c.ML != nil && c.ML.Kind == c.Expected,
		}
		results = append(results, res)

		logger.Debug("replayed case",
			slog.String("variable", c.Variable),
			slog.String("kind", r.Kind.String()),
			slog.String("method", r.Method.String()),
			slog.Bool("correct", res.Correct))
	}

	s := Summarize(cases, results)
	logger.Info("replay complete",
		slog.String("mode", config.Mode.String()),
		slog.Int("cases", s.TotalCases),
		slog.Float64("accuracy", s.Accuracy()),
		slog.Float64("rule_accuracy", s.RuleAccuracy()))
	return results
}

// #endregion replay

// #region summary
// Summarize computes aggregate stats from replay results.
func Summarize(cases []Case, results []ReplayResult) ReplaySummary {
	s := ReplaySummary{TotalCases: len(results)}
	for _, r := range results {
		s.Methods.Record(r.Result)
		if r.Correct {
			s.Correct++
		}
		if r.RuleCorrect {
			s.RuleCorrect++
		}
		if r.MLCorrect {
			s.MLCorrect++
		}
	}
	for _, c := range cases {
		if c.ML != nil {
			s.MLRecorded++
		}
	}
	return s
}

// #endregion summary

// #region conversions
// ValidationSamples turns cases into threshold-tuning samples. Cases without
// a recorded verdict use the Null model's prediction.
func ValidationSamples(cases []Case) []tuning.ValidationSample {
	out := make([]tuning.ValidationSample, len(cases))
	for i, c := range cases {
		p := model.Null{}.Predict(c.Features)
		if c.ML != nil {
			p = *c.ML
		}
		out[i] = tuning.NewValidationSample(c.Expected, c.Rule.Kind, p.Kind, p.Confidence)
	}
	return out
}

// TrainingSamples turns cases into labeled retraining samples.
func TrainingSamples(cases []Case) []retrain.Sample {
	out := make([]retrain.Sample, len(cases))
	for i, c := range cases {
		out[i] = retrain.NewSample(c.Features, c.Expected, c.SourceFile, c.SourceLine)
	}
	return out
}

// #endregion conversions

func frac(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
