package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
	"github.com/danielpatrickdp/ownership-engine/internal/retrain"
)

// #region add-samples
// AddSamples appends labeled samples in a single transaction.
func (s *Store) AddSamples(samples []retrain.Sample) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, sm := range samples {
		_, err := tx.Exec(
			`INSERT INTO training_samples (features, label, source_file, line_number, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			encodeVector(sm.Features.Vector()), sm.Label.String(),
			nullIfEmpty(sm.SourceFile), sm.LineNumber, now,
		)
		if err != nil {
			return fmt.Errorf("insert sample: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// #endregion add-samples

// #region load-samples
// LoadSamples returns every stored sample in insertion order.
func (s *Store) LoadSamples() ([]retrain.Sample, error) {
	rows, err := s.db.Query(
		`SELECT features, label, source_file, line_number FROM training_samples ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("load samples: %w", err)
	}
	defer rows.Close()

	var out []retrain.Sample
	for rows.Next() {
		var blob []byte
		var label string
		var file sql.NullString
		var sm retrain.Sample

		if err := rows.Scan(&blob, &label, &file, &sm.LineNumber); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		if sm.Features, err = ownership.FeaturesFromVector(decodeVector(blob)); err != nil {
			return nil, fmt.Errorf("decode features: %w", err)
		}
		if sm.Label, err = ownership.ParseKind(label); err != nil {
			return nil, fmt.Errorf("decode label: %w", err)
		}
		sm.SourceFile = file.String
		out = append(out, sm)
	}
	return out, rows.Err()
}

// CountSamples returns the number of stored samples.
func (s *Store) CountSamples() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM training_samples`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count samples: %w", err)
	}
	return n, nil
}

// #endregion load-samples

// #region vector-encoding
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// #endregion vector-encoding

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
