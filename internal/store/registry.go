package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielpatrickdp/ownership-engine/internal/registry"
)

// #region save-registry
// SaveRegistry replaces the persisted version history and rollbacks with the
// manager's current state.
func (s *Store) SaveRegistry(m *registry.Manager) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM model_entries`); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM rollbacks`); err != nil {
		return fmt.Errorf("clear rollbacks: %w", err)
	}

	for _, e := range m.History() {
		metricsJSON, err := json.Marshal(e.Metrics)
		if err != nil {
			return fmt.Errorf("marshal metrics %s: %w", e.Version, err)
		}
		_, err = tx.Exec(
			`INSERT INTO model_entries (version, major, minor, patch, metrics_json, released_at,
			 description, artifact_path, is_active, rolled_back, rollback_reason)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.Version.String(), e.Version.Major, e.Version.Minor, e.Version.Patch,
			string(metricsJSON), e.ReleasedAt.Format(time.RFC3339Nano),
			nullIfEmpty(e.Description), nullIfEmpty(e.ArtifactPath),
			e.IsActive, e.RolledBack, nullIfEmpty(e.RollbackReason),
		)
		if err != nil {
			return fmt.Errorf("insert entry %s: %w", e.Version, err)
		}
	}

	for _, r := range m.Rollbacks() {
		_, err := tx.Exec(
			`INSERT INTO rollbacks (success, from_version, to_version, reason, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			r.Success, r.From.String(), r.To.String(), nullIfEmpty(r.Reason),
			r.Timestamp.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert rollback: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// #endregion save-registry

// #region load-registry
// LoadRegistry rebuilds a manager from the persisted history. An empty
// database yields an empty manager.
func (s *Store) LoadRegistry(config registry.ManagerConfig) (*registry.Manager, error) {
	entries, err := s.ListEntries()
	if err != nil {
		return nil, err
	}
	rollbacks, err := s.ListRollbacks()
	if err != nil {
		return nil, err
	}
	m, err := registry.Restore(config, entries, rollbacks)
	if err != nil {
		return nil, fmt.Errorf("restore registry: %w", err)
	}
	return m, nil
}

// ListEntries returns every persisted version, oldest first.
func (s *Store) ListEntries() ([]registry.Entry, error) {
	rows, err := s.db.Query(
		`SELECT version, metrics_json, released_at, description, artifact_path,
		 is_active, rolled_back, rollback_reason
		 FROM model_entries ORDER BY major, minor, patch`,
	)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []registry.Entry
	for rows.Next() {
		var e registry.Entry
		var versionStr, metricsJSON, releasedStr string
		var description, artifactPath, rollbackReason sql.NullString

		if err := rows.Scan(&versionStr, &metricsJSON, &releasedStr, &description, &artifactPath,
			&e.IsActive, &e.RolledBack, &rollbackReason); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if e.Version, err = registry.ParseVersion(versionStr); err != nil {
			return nil, fmt.Errorf("parse version: %w", err)
		}
		if err := json.Unmarshal([]byte(metricsJSON), &e.Metrics); err != nil {
			return nil, fmt.Errorf("unmarshal metrics %s: %w", versionStr, err)
		}
		e.ReleasedAt, _ = time.Parse(time.RFC3339Nano, releasedStr)
		e.Description = description.String
		e.ArtifactPath = artifactPath.String
		e.RollbackReason = rollbackReason.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListRollbacks returns every persisted rollback in the order it happened.
func (s *Store) ListRollbacks() ([]registry.RollbackResult, error) {
	rows, err := s.db.Query(
		`SELECT success, from_version, to_version, reason, created_at FROM rollbacks ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list rollbacks: %w", err)
	}
	defer rows.Close()

	var out []registry.RollbackResult
	for rows.Next() {
		var r registry.RollbackResult
		var fromStr, toStr, createdStr string
		var reason sql.NullString
		if err := rows.Scan(&r.Success, &fromStr, &toStr, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan rollback: %w", err)
		}
		if r.From, err = registry.ParseVersion(fromStr); err != nil {
			return nil, fmt.Errorf("parse from version: %w", err)
		}
		if r.To, err = registry.ParseVersion(toStr); err != nil {
			return nil, fmt.Errorf("parse to version: %w", err)
		}
		r.Reason = reason.String
		r.Timestamp, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, r)
	}
	return out, rows.Err()
}

// #endregion load-registry
