package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// SchemaVersion is bumped whenever an envelope payload changes shape.
const SchemaVersion uint16 = 1

// Payload kinds.
const (
	KindQueue        = "active-queue"
	KindErrors       = "error-tracker"
	KindObservations = "abtest-observations"
	KindSuggestions  = "suggestions"
)

var (
	ErrSchemaMismatch = errors.New("snapshot schema mismatch")
	ErrKindMismatch   = errors.New("snapshot kind mismatch")
)

// Envelope wraps every payload on disk.
type Envelope struct {
	Schema  uint16             `msgpack:"schema"`
	Kind    string             `msgpack:"kind"`
	SavedAt time.Time          `msgpack:"saved_at"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// Save encodes v under kind and atomically replaces path.
func Save[T any](path, kind string, v T) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", kind, err)
	}
	env := Envelope{
		Schema:  SchemaVersion,
		Kind:    kind,
		SavedAt: time.Now().UTC(),
		Payload: payload,
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	f, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if err := msgpack.NewEncoder(f).Encode(&env); err != nil {
		f.Close()
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// Load decodes the payload at path. A missing file reports found=false with
// no error.
func Load[T any](path, kind string) (v T, found bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return v, false, nil
		}
		return v, false, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	var env Envelope
	if err := msgpack.NewDecoder(f).Decode(&env); err != nil {
		return v, false, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Schema != SchemaVersion {
		return v, false, fmt.Errorf("%s: schema %d, want %d: %w", path, env.Schema, SchemaVersion, ErrSchemaMismatch)
	}
	if env.Kind != kind {
		return v, false, fmt.Errorf("%s: holds %q, want %q: %w", path, env.Kind, kind, ErrKindMismatch)
	}
	if err := msgpack.Unmarshal(env.Payload, &v); err != nil {
		return v, false, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return v, true, nil
}
