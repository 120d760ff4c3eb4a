package registry

import (
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// DefaultMaxHistory is how many versions a manager retains.
const DefaultMaxHistory = 10

// #region config
// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Thresholds QualityThresholds `json:"thresholds" yaml:"thresholds" toml:"thresholds"`
	MaxHistory int               `json:"max_history" yaml:"max_history" toml:"max_history"`
	Logger     *slog.Logger      `json:"-" yaml:"-" toml:"-"`
}

func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Thresholds: DefaultQualityThresholds(),
		MaxHistory: DefaultMaxHistory,
		Logger:     slog.Default(),
	}
}

// #endregion config

// #region manager
// Manager keeps the version history, the active version and rollbacks.
// It holds no lock; callers serialize mutation.
type Manager struct {
	entries    []Entry // oldest first
	active     int     // index into entries, -1 when none
	gate       *Gate
	maxHistory int
	rollbacks  []RollbackResult
	logger     *slog.Logger
}

// New creates an empty manager. MaxHistory is raised to at least 2 so a
// rollback target can survive pruning.
func New(config ManagerConfig) *Manager {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxHistory := config.MaxHistory
	if maxHistory == 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Manager{
		active:     -1,
		gate:       NewGate(config.Thresholds),
		maxHistory: max(maxHistory, 2),
		logger:     logger,
	}
}

// Restore rebuilds a manager from persisted entries (oldest first) and
// rollback history.
func Restore(config ManagerConfig, entries []Entry, rollbacks []RollbackResult) (*Manager, error) {
	m := New(config)
	for i, e := range entries {
		if i > 0 && e.Version.Compare(entries[i-1].Version) <= 0 {
			return nil, fmt.Errorf("restore %s after %s: %w", e.Version, entries[i-1].Version, ErrStaleVersion)
		}
		if e.IsActive {
			if m.active >= 0 {
				return nil, fmt.Errorf("restore: both %s and %s marked active", entries[m.active].Version, e.Version)
			}
			m.active = i
		}
	}
	m.entries = slices.Clone(entries)
	m.rollbacks = slices.Clone(rollbacks)
	m.prune()
	return m, nil
}

func (m *Manager) Thresholds() QualityThresholds { return m.gate.Thresholds() }
func (m *Manager) Gate() *Gate                   { return m.gate }
func (m *Manager) MaxHistory() int               { return m.maxHistory }
func (m *Manager) Len() int                      { return len(m.entries) }

// Active returns the active entry.
func (m *Manager) Active() (Entry, bool) {
	if m.active < 0 {
		return Entry{}, false
	}
	return m.entries[m.active], true
}

// Latest returns the most recently registered entry.
func (m *Manager) Latest() (Entry, bool) {
	if len(m.entries) == 0 {
		return Entry{}, false
	}
	return m.entries[len(m.entries)-1], true
}

// History returns every retained entry, oldest first.
func (m *Manager) History() []Entry { return slices.Clone(m.entries) }

// Rollbacks returns every rollback in the order it happened.
func (m *Manager) Rollbacks() []RollbackResult { return slices.Clone(m.rollbacks) }

// Get looks up an entry by version.
func (m *Manager) Get(v Version) (Entry, bool) {
	i := m.indexOf(v)
	if i < 0 {
		return Entry{}, false
	}
	return m.entries[i], true
}

func (m *Manager) indexOf(v Version) int {
	return slices.IndexFunc(m.entries, func(e Entry) bool { return e.Version == v })
}

// Register appends e to the history. It is activated only when it clears the
// quality thresholds and beats the active version; otherwise it is kept for
// audit. A version not newer than the latest is rejected with no change.
func (m *Manager) Register(e Entry) (activated bool, err error) {
	if latest, ok := m.Latest(); ok && e.Version.Compare(latest.Version) <= 0 {
		return false, fmt.Errorf("register %s: current is %s: %w", e.Version, latest.Version, ErrStaleVersion)
	}

	activated = e.Metrics.MeetsThresholds(m.gate.Thresholds())
	if active, ok := m.Active(); ok && activated {
		activated = e.Metrics.BetterThan(active.Metrics)
	}

	e.IsActive = activated
	if activated && m.active >= 0 {
		m.entries[m.active].IsActive = false
	}
	m.entries = append(m.entries, e)
	if activated {
		m.active = len(m.entries) - 1
	}
	m.prune()

	m.logger.Info("model version registered",
		slog.String("version", e.Version.String()),
		slog.Bool("activated", activated),
		slog.Float64("accuracy", e.Metrics.Accuracy),
		slog.Float64("f1", e.Metrics.F1))
	return activated, nil
}

// Rollback reverts to the most recent non-rolled-back entry other than the
// active one, newer entries included.
func (m *Manager) Rollback(reason string) (RollbackResult, error) {
	if len(m.entries) < 2 {
		return RollbackResult{}, fmt.Errorf("rollback: %w", ErrInsufficientHistory)
	}
	if m.active < 0 {
		return RollbackResult{}, fmt.Errorf("rollback: %w", ErrNoActiveVersion)
	}
	target := -1
	for i := len(m.entries) - 1; i >= 0; i-- {
		if i != m.active && !m.entries[i].RolledBack {
			target = i
			break
		}
	}
	if target < 0 {
		return RollbackResult{}, fmt.Errorf("rollback from %s: %w", m.entries[m.active].Version, ErrNoRollbackTarget)
	}
	return m.switchTo(target, reason), nil
}

// RollbackTo activates an explicit version, clearing any earlier rollback
// mark on it.
func (m *Manager) RollbackTo(v Version, reason string) (RollbackResult, error) {
	target := m.indexOf(v)
	if target < 0 {
		return RollbackResult{}, fmt.Errorf("rollback to %s: %w", v, ErrVersionNotFound)
	}
	if m.active < 0 {
		return RollbackResult{}, fmt.Errorf("rollback to %s: %w", v, ErrNoActiveVersion)
	}
	if target == m.active {
		return RollbackResult{}, fmt.Errorf("rollback to %s: %w", v, ErrAlreadyActive)
	}
	return m.switchTo(target, reason), nil
}

func (m *Manager) switchTo(target int, reason string) RollbackResult {
	cur := &m.entries[m.active]
	cur.IsActive = false
	cur.RolledBack = true
	cur.RollbackReason = reason

	next := &m.entries[target]
	next.IsActive = true
	next.RolledBack = false
	next.RollbackReason = ""

	result := RollbackResult{
		Success:   true,
		From:      cur.Version,
		To:        next.Version,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
	m.active = target
	m.rollbacks = append(m.rollbacks, result)
	m.logger.Warn("model version rolled back",
		slog.String("from", result.From.String()),
		slog.String("to", result.To.String()),
		slog.String("reason", reason))
	return result
}

// CheckQuality evaluates live metrics against the thresholds and the active
// version. It returns the failure reason, or false when quality is fine.
func (m *Manager) CheckQuality(metrics QualityMetrics) (string, bool) {
	var active *QualityMetrics
	if e, ok := m.Active(); ok {
		active = &e.Metrics
	}
	d := m.gate.Evaluate(metrics, active)
	if d.Accepted() {
		return "", false
	}
	return d.Reason, true
}

// AutoRollbackIfNeeded rolls back when CheckQuality fails. A failed rollback
// is logged and reported as no rollback.
func (m *Manager) AutoRollbackIfNeeded(metrics QualityMetrics) (RollbackResult, bool) {
	reason, failing := m.CheckQuality(metrics)
	if !failing {
		return RollbackResult{}, false
	}
	result, err := m.Rollback("Auto-rollback: " + reason)
	if err != nil {
		m.logger.Error("auto-rollback failed", slog.String("reason", reason), slog.Any("error", err))
		return RollbackResult{}, false
	}
	return result, true
}

// prune drops the oldest entries beyond maxHistory, stopping at the active
// entry.
func (m *Manager) prune() {
	drop := 0
	for len(m.entries)-drop > m.maxHistory {
		if m.active == drop {
			break
		}
		drop++
	}
	if drop == 0 {
		return
	}
	m.entries = slices.Delete(m.entries, 0, drop)
	if m.active >= 0 {
		m.active -= drop
	}
}

// #endregion manager
