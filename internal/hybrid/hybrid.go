package hybrid

import (
	"fmt"

	"github.com/danielpatrickdp/ownership-engine/internal/model"
	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
)

// #region classifier
// Classifier combines the rule verdict with an optional learned model.
type Classifier struct {
	threshold float64
	mlEnabled bool
	model     model.Model
}

// New creates a classifier backed by the Null model.
func New(config Config) *Classifier {
	return NewWithModel(config, model.Null{})
}

// NewWithModel creates a classifier backed by m.
func NewWithModel(config Config, m model.Model) *Classifier {
	if m == nil {
		m = model.Null{}
	}
	return &Classifier{
		threshold: ownership.Clamp01(config.Threshold),
		mlEnabled: config.MLEnabled,
		model:     m,
	}
}

func (c *Classifier) Threshold() float64 { return c.threshold }

// SetThreshold updates the ML cutoff, clamped to [0,1].
func (c *Classifier) SetThreshold(t float64) { c.threshold = ownership.Clamp01(t) }

func (c *Classifier) MLEnabled() bool { return c.mlEnabled }
func (c *Classifier) EnableML()       { c.mlEnabled = true }
func (c *Classifier) DisableML()      { c.mlEnabled = false }

func (c *Classifier) Model() model.Model { return c.model }

// SetModel swaps the learned model; nil installs the Null model.
func (c *Classifier) SetModel(m model.Model) {
	if m == nil {
		m = model.Null{}
	}
	c.model = m
}

// #endregion classifier

// #region classify
// Classify dispatches to the strategy named by mode.
func (c *Classifier) Classify(mode Mode, inf ownership.Inference, f ownership.Features) Result {
	switch mode {
	case ModeHybrid:
		return c.ClassifyHybrid(inf, f)
	case ModeEnsemble:
		return c.ClassifyEnsemble(inf, f)
	}
	return c.ClassifyRuleOnly(inf)
}

// ClassifyRuleOnly wraps the rule verdict unchanged.
func (c *Classifier) ClassifyRuleOnly(inf ownership.Inference) Result {
	kind := inf.Kind
	return Result{
		Variable:   inf.Variable,
		Kind:       kind,
		Confidence: ownership.Clamp01(inf.Confidence),
		Method:     RuleBased,
		RuleResult: &kind,
		Reasoning:  "Rule-based: " + inf.Reason,
	}
}

// ClassifyHybrid uses the model when its confidence reaches the threshold,
// otherwise the rules. Both verdicts are kept on the result.
func (c *Classifier) ClassifyHybrid(inf ownership.Inference, f ownership.Features) Result {
	if !c.mlEnabled {
		return c.ClassifyRuleOnly(inf)
	}

	ruleKind := inf.Kind
	pred := c.predict(f)

	if pred.Confidence >= c.threshold {
		return Result{
			Variable:   inf.Variable,
			Kind:       pred.Kind,
			Confidence: pred.Confidence,
			Method:     MachineLearning,
			RuleResult: &ruleKind,
			MLResult:   &pred,
			Reasoning:  fmt.Sprintf("ML prediction (confidence %.2f): %s", pred.Confidence, pred.Kind),
		}
	}

	return Result{
		Variable:   inf.Variable,
		Kind:       ruleKind,
		Confidence: ownership.Clamp01(inf.Confidence),
		Method:     Fallback,
		RuleResult: &ruleKind,
		MLResult:   &pred,
		Reasoning: fmt.Sprintf("Fallback to rules (ML confidence %.2f < threshold %.2f): %s",
			pred.Confidence, c.threshold, inf.Reason),
	}
}

// ClassifyEnsemble always consults both sides. Agreement boosts confidence;
// on disagreement the strictly more confident side wins, ties go to rules.
func (c *Classifier) ClassifyEnsemble(inf ownership.Inference, f ownership.Features) Result {
	ruleKind := inf.Kind
	ruleConf := ownership.Clamp01(inf.Confidence)
	pred := c.predict(f)

	if ruleKind == pred.Kind {
		boosted := min(1.0, (ruleConf+pred.Confidence)/2*1.1)
		return Result{
			Variable:   inf.Variable,
			Kind:       ruleKind,
			Confidence: boosted,
			Method:     Hybrid,
			RuleResult: &ruleKind,
			MLResult:   &pred,
			Reasoning:  fmt.Sprintf("Hybrid (rules + ML agree): boosted confidence %.2f", boosted),
		}
	}

	if pred.Confidence > ruleConf {
		return Result{
			Variable:   inf.Variable,
			Kind:       pred.Kind,
			Confidence: pred.Confidence,
			Method:     MachineLearning,
			RuleResult: &ruleKind,
			MLResult:   &pred,
			Reasoning:  fmt.Sprintf("ML wins (conf %.2f > rules %.2f): %s", pred.Confidence, ruleConf, pred.Kind),
		}
	}

	return Result{
		Variable:   inf.Variable,
		Kind:       ruleKind,
		Confidence: ruleConf,
		Method:     RuleBased,
		RuleResult: &ruleKind,
		MLResult:   &pred,
		Reasoning:  fmt.Sprintf("Rules win (conf %.2f >= ML %.2f): %s", ruleConf, pred.Confidence, inf.Reason),
	}
}

func (c *Classifier) predict(f ownership.Features) ownership.Prediction {
	p := c.model.Predict(f)
	p.Confidence = ownership.Clamp01(p.Confidence)
	return p
}

// #endregion classify
