package registry

import "fmt"

// MaxAccuracyRegression is the largest accuracy drop versus the active
// version that still passes the gate.
const MaxAccuracyRegression = 0.05

// #region violation
// ViolationType enumerates quality gate failures.
type ViolationType string

const (
	ViolationAccuracy   ViolationType = "accuracy"
	ViolationPrecision  ViolationType = "precision"
	ViolationRecall     ViolationType = "recall"
	ViolationF1         ViolationType = "f1"
	ViolationRegression ViolationType = "regression"
)

// Violation is one failed quality check.
type Violation struct {
	Type   ViolationType
	Reason string
}

// #endregion violation

// #region decision
// GateAction is the gate verdict.
type GateAction string

const (
	ActionAccept GateAction = "accept"
	ActionReject GateAction = "reject"
)

// GateDecision is the output of a gate evaluation.
type GateDecision struct {
	Action     GateAction
	Reason     string
	Violations []Violation // non-empty iff rejected
}

func (d GateDecision) Accepted() bool { return d.Action == ActionAccept }

// #endregion decision

// #region gate
// Gate checks model quality against thresholds and against the active model.
type Gate struct {
	thresholds QualityThresholds
}

func NewGate(thresholds QualityThresholds) *Gate {
	return &Gate{thresholds: thresholds}
}

func (g *Gate) Thresholds() QualityThresholds { return g.thresholds }

// Evaluate checks every threshold, then the regression against active when
// one is given. The reason names the first failure.
func (g *Gate) Evaluate(m QualityMetrics, active *QualityMetrics) GateDecision {
	t := g.thresholds
	var violations []Violation

	if m.Accuracy < t.MinAccuracy {
		violations = append(violations, Violation{
			Type:   ViolationAccuracy,
			Reason: fmt.Sprintf("accuracy %.2f below %.2f", m.Accuracy, t.MinAccuracy),
		})
	}
	if m.Precision < t.MinPrecision {
		violations = append(violations, Violation{
			Type:   ViolationPrecision,
			Reason: fmt.Sprintf("precision %.2f below %.2f", m.Precision, t.MinPrecision),
		})
	}
	if m.Recall < t.MinRecall {
		violations = append(violations, Violation{
			Type:   ViolationRecall,
			Reason: fmt.Sprintf("recall %.2f below %.2f", m.Recall, t.MinRecall),
		})
	}
	if m.F1 < t.MinF1 {
		violations = append(violations, Violation{
			Type:   ViolationF1,
			Reason: fmt.Sprintf("f1 %.2f below %.2f", m.F1, t.MinF1),
		})
	}
	if len(violations) > 0 {
		return GateDecision{
			Action:     ActionReject,
			Reason:     fmt.Sprintf("Quality below thresholds: accuracy=%.2f (min=%.2f)", m.Accuracy, t.MinAccuracy),
			Violations: violations,
		}
	}

	if active != nil && m.Accuracy < active.Accuracy-MaxAccuracyRegression {
		reason := fmt.Sprintf("Accuracy regression: %.2f → %.2f (>5%% drop)", active.Accuracy, m.Accuracy)
		return GateDecision{
			Action:     ActionReject,
			Reason:     reason,
			Violations: []Violation{{Type: ViolationRegression, Reason: reason}},
		}
	}

	return GateDecision{
		Action: ActionAccept,
		Reason: fmt.Sprintf("passed gate: accuracy=%.2f f1=%.2f", m.Accuracy, m.F1),
	}
}

// #endregion gate
