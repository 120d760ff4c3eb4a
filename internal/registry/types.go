package registry

import (
	"cmp"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
)

var (
	ErrStaleVersion        = errors.New("version must be greater than current")
	ErrInsufficientHistory = errors.New("not enough versions to rollback")
	ErrNoActiveVersion     = errors.New("no active version")
	ErrNoRollbackTarget    = errors.New("no previous version available for rollback")
	ErrVersionNotFound     = errors.New("version not found")
	ErrAlreadyActive       = errors.New("target is already the active version")
	ErrInvalidVersion      = errors.New("invalid version")
)

// #region version
// Version is a semantic model version.
type Version struct {
	Major uint32
	Minor uint32
	Patch uint32
}

// DefaultVersion is the first version ever registered.
func DefaultVersion() Version { return Version{Major: 1} }

// ParseVersion reads "1.2.3" or "v1.2.3".
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(strings.TrimLeft(s, "v"), ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("parse %q: %w", s, ErrInvalidVersion)
	}
	var nums [3]uint32
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return Version{}, fmt.Errorf("parse %q: %w", s, ErrInvalidVersion)
		}
		nums[i] = uint32(n)
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

func (v Version) String() string {
	return fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare orders versions by major, minor, then patch.
func (v Version) Compare(o Version) int {
	if c := cmp.Compare(v.Major, o.Major); c != 0 {
		return c
	}
	if c := cmp.Compare(v.Minor, o.Minor); c != 0 {
		return c
	}
	return cmp.Compare(v.Patch, o.Patch)
}

func (v Version) Less(o Version) bool { return v.Compare(o) < 0 }

func (v Version) BumpMajor() Version { return Version{Major: v.Major + 1} }
func (v Version) BumpMinor() Version { return Version{Major: v.Major, Minor: v.Minor + 1} }
func (v Version) BumpPatch() Version {
	return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
}

func (v Version) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

func (v *Version) UnmarshalText(b []byte) error {
	parsed, err := ParseVersion(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// #endregion version

// #region quality
// QualityMetrics describes how a model version performed on validation data.
type QualityMetrics struct {
	Accuracy      float64 `json:"accuracy" msgpack:"accuracy"`
	Precision     float64 `json:"precision" msgpack:"precision"`
	Recall        float64 `json:"recall" msgpack:"recall"`
	F1            float64 `json:"f1_score" msgpack:"f1_score"`
	AvgConfidence float64 `json:"avg_confidence" msgpack:"avg_confidence"`
	FallbackRate  float64 `json:"fallback_rate" msgpack:"fallback_rate"`
	SampleCount   uint64  `json:"sample_count" msgpack:"sample_count"`
}

// NewQualityMetrics clamps every rate into [0,1].
func NewQualityMetrics(accuracy, precision, recall, f1, avgConfidence, fallbackRate float64, samples uint64) QualityMetrics {
	return QualityMetrics{
		Accuracy:      ownership.Clamp01(accuracy),
		Precision:     ownership.Clamp01(precision),
		Recall:        ownership.Clamp01(recall),
		F1:            ownership.Clamp01(f1),
		AvgConfidence: ownership.Clamp01(avgConfidence),
		FallbackRate:  ownership.Clamp01(fallbackRate),
		SampleCount:   samples,
	}
}

// EmptyQualityMetrics is the metrics of a model that has seen nothing.
func EmptyQualityMetrics() QualityMetrics {
	return QualityMetrics{FallbackRate: 1}
}

// MeetsThresholds reports whether every gated metric clears its minimum.
func (m QualityMetrics) MeetsThresholds(t QualityThresholds) bool {
	return m.Accuracy >= t.MinAccuracy &&
		m.Precision >= t.MinPrecision &&
		m.Recall >= t.MinRecall &&
		m.F1 >= t.MinF1
}

// BetterThan compares by accuracy, falling back to F1 when accuracies are
// within one point of each other.
func (m QualityMetrics) BetterThan(o QualityMetrics) bool {
	if d := m.Accuracy - o.Accuracy; d > 0.01 || d < -0.01 {
		return m.Accuracy > o.Accuracy
	}
	return m.F1 > o.F1
}

// QualityThresholds are the minimums a version needs to be activated.
type QualityThresholds struct {
	MinAccuracy  float64 `json:"min_accuracy" yaml:"min_accuracy" toml:"min_accuracy"`
	MinPrecision float64 `json:"min_precision" yaml:"min_precision" toml:"min_precision"`
	MinRecall    float64 `json:"min_recall" yaml:"min_recall" toml:"min_recall"`
	MinF1        float64 `json:"min_f1" yaml:"min_f1" toml:"min_f1"`
}

func DefaultQualityThresholds() QualityThresholds {
	return QualityThresholds{
		MinAccuracy:  0.85,
		MinPrecision: 0.80,
		MinRecall:    0.80,
		MinF1:        0.80,
	}
}

// #endregion quality

// #region entry
// Entry is one registered model version.
type Entry struct {
	Version        Version        `json:"version" msgpack:"version"`
	Metrics        QualityMetrics `json:"metrics" msgpack:"metrics"`
	ReleasedAt     time.Time      `json:"released_at" msgpack:"released_at"`
	Description    string         `json:"description" msgpack:"description"`
	ArtifactPath   string         `json:"artifact_path" msgpack:"artifact_path"`
	IsActive       bool           `json:"is_active" msgpack:"is_active"`
	RolledBack     bool           `json:"rolled_back" msgpack:"rolled_back"`
	RollbackReason string         `json:"rollback_reason,omitempty" msgpack:"rollback_reason,omitempty"`
}

// NewEntry creates an inactive entry released now.
func NewEntry(v Version, m QualityMetrics, description, artifactPath string) Entry {
	return Entry{
		Version:      v,
		Metrics:      m,
		ReleasedAt:   time.Now().UTC(),
		Description:  description,
		ArtifactPath: artifactPath,
	}
}

// RollbackResult records one rollback.
type RollbackResult struct {
	Success   bool      `json:"success" msgpack:"success"`
	From      Version   `json:"from_version" msgpack:"from_version"`
	To        Version   `json:"to_version" msgpack:"to_version"`
	Reason    string    `json:"reason" msgpack:"reason"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
}

// #endregion entry
