package logging

import (
	"time"

	"github.com/danielpatrickdp/ownership-engine/internal/hybrid"
	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
)

// #region decision-entry
// DecisionEntry is a single row in the decision_log table.
type DecisionEntry struct {
	ID           int64
	ModelVersion string // empty when no learned model was loaded
	Variable     string
	Kind         ownership.Kind
	Confidence   float64
	Method       hybrid.Method
	RuleKind     *ownership.Kind
	MLKind       *ownership.Kind
	MLConfidence float64
	Reasoning    string
	CreatedAt    time.Time
}

// NewDecisionEntry captures a hybrid result for the audit trail.
func NewDecisionEntry(r hybrid.Result, modelVersion string) DecisionEntry {
	e := DecisionEntry{
		ModelVersion: modelVersion,
		Variable:     r.Variable,
		Kind:         r.Kind,
		Confidence:   r.Confidence,
		Method:       r.Method,
		RuleKind:     r.RuleResult,
		Reasoning:    r.Reasoning,
	}
	if r.MLResult != nil {
		k := r.MLResult.Kind
		e.MLKind = &k
		e.MLConfidence = r.MLResult.Confidence
	}
	return e
}

// #endregion decision-entry
