package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/ownership-engine/internal/registry"
	"github.com/danielpatrickdp/ownership-engine/internal/retrain"
)

// #region save-execution
// SaveExecution records one retraining cycle. Saving the same ID twice
// overwrites the earlier row.
func (s *Store) SaveExecution(e retrain.Execution) error {
	var version interface{}
	if e.Version != nil {
		version = e.Version.String()
	}
	_, err := s.db.Exec(
		`INSERT INTO pipeline_executions (id, status, version, detail, degradation, sample_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status, version = excluded.version,
		 detail = excluded.detail, degradation = excluded.degradation,
		 sample_count = excluded.sample_count, created_at = excluded.created_at`,
		e.ID.String(), string(e.Status), version, nullIfEmpty(e.Detail), e.Degradation,
		e.SampleCount, e.Timestamp.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save execution: %w", err)
	}
	return nil
}

// #endregion save-execution

// #region list-executions
// ListExecutions returns the latest limit executions in insertion order. A limit of
// zero or less returns all of them.
func (s *Store) ListExecutions(limit int) ([]retrain.Execution, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT id, status, version, detail, degradation, sample_count, created_at
		 FROM (SELECT rowid AS seq, * FROM pipeline_executions ORDER BY seq DESC LIMIT ?)
		 ORDER BY seq ASC`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var out []retrain.Execution
	for rows.Next() {
		var e retrain.Execution
		var idStr, status, createdStr string
		var version, detail sql.NullString

		if err := rows.Scan(&idStr, &status, &version, &detail, &e.Degradation, &e.SampleCount, &createdStr); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		if e.ID, err = uuid.Parse(idStr); err != nil {
			return nil, fmt.Errorf("parse execution id: %w", err)
		}
		if version.Valid {
			v, err := registry.ParseVersion(version.String)
			if err != nil {
				return nil, fmt.Errorf("parse execution version: %w", err)
			}
			e.Version = &v
		}
		e.Status = retrain.Status(status)
		e.Detail = detail.String
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion list-executions
