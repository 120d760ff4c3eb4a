package logging

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/danielpatrickdp/ownership-engine/internal/hybrid"
	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
)

// #region log-decision
// LogDecision writes a decision entry to the decision_log table.
func LogDecision(db *sql.DB, entry DecisionEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var mlConfidence interface{}
	if entry.MLKind != nil {
		mlConfidence = entry.MLConfidence
	}

	_, err := db.Exec(
		`INSERT INTO decision_log (model_version, variable, kind, confidence, method, rule_kind, ml_kind, ml_confidence, reasoning, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullIfEmpty(entry.ModelVersion),
		entry.Variable,
		entry.Kind.String(),
		entry.Confidence,
		entry.Method.String(),
		kindOrNull(entry.RuleKind),
		kindOrNull(entry.MLKind),
		mlConfidence,
		nullIfEmpty(entry.Reasoning),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region list-decisions
// ListDecisions returns the most recent entries, newest first.
func ListDecisions(db *sql.DB, limit int) ([]DecisionEntry, error) {
	rows, err := db.Query(
		`SELECT id, model_version, variable, kind, confidence, method, rule_kind, ml_kind, ml_confidence, reasoning, created_at
		 FROM decision_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionEntry
	for rows.Next() {
		var e DecisionEntry
		var modelVersion, ruleKind, mlKind, reasoning sql.NullString
		var mlConfidence sql.NullFloat64
		var kind, method, createdStr string

		if err := rows.Scan(&e.ID, &modelVersion, &e.Variable, &kind, &e.Confidence, &method,
			&ruleKind, &mlKind, &mlConfidence, &reasoning, &createdStr); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		if e.Kind, err = ownership.ParseKind(kind); err != nil {
			return nil, fmt.Errorf("decision %d: %w", e.ID, err)
		}
		if e.Method, err = hybrid.ParseMethod(method); err != nil {
			return nil, fmt.Errorf("decision %d: %w", e.ID, err)
		}
		if e.RuleKind, err = parseNullKind(ruleKind); err != nil {
			return nil, fmt.Errorf("decision %d rule kind: %w", e.ID, err)
		}
		if e.MLKind, err = parseNullKind(mlKind); err != nil {
			return nil, fmt.Errorf("decision %d ml kind: %w", e.ID, err)
		}
		e.ModelVersion = modelVersion.String
		e.MLConfidence = mlConfidence.Float64
		e.Reasoning = reasoning.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion list-decisions

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func kindOrNull(k *ownership.Kind) interface{} {
	if k == nil {
		return nil
	}
	return k.String()
}

func parseNullKind(s sql.NullString) (*ownership.Kind, error) {
	if !s.Valid {
		return nil, nil
	}
	k, err := ownership.ParseKind(s.String)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// #endregion helpers
