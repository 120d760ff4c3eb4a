package registry

import (
	"fmt"
	"strings"
	"time"
)

// #region report
// Markdown renders the version report, newest version first.
func (m *Manager) Markdown() string {
	return m.markdownAt(time.Now())
}

func (m *Manager) markdownAt(now time.Time) string {
	var b strings.Builder
	b.WriteString("## Model Version Report\n\n")

	if active, ok := m.Active(); ok {
		fmt.Fprintf(&b, "**Active Version**: %s | Accuracy: %.1f%% | F1: %.3f\n\n",
			active.Version, active.Metrics.Accuracy*100, active.Metrics.F1)
	} else {
		b.WriteString("**Active Version**: None\n\n")
	}

	b.WriteString("### Version History\n\n")
	b.WriteString("| Version | Accuracy | F1 | Status | Released |\n")
	b.WriteString("|---------|----------|----|---------|---------|\n")
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		fmt.Fprintf(&b, "| %s | %.1f%% | %.3f | %s | %s |\n",
			e.Version, e.Metrics.Accuracy*100, e.Metrics.F1, entryStatus(e), releasedAgo(e.ReleasedAt, now))
	}

	if len(m.rollbacks) > 0 {
		b.WriteString("\n### Rollback History\n\n")
		for _, rb := range m.rollbacks {
			fmt.Fprintf(&b, "- %s → %s: %s\n", rb.From, rb.To, rb.Reason)
		}
	}
	return b.String()
}

func entryStatus(e Entry) string {
	switch {
	case e.IsActive:
		return "✅ Active"
	case e.RolledBack:
		return "🔙 Rolled Back"
	default:
		return "📦 Available"
	}
}

func releasedAgo(released, now time.Time) string {
	age := now.Sub(released)
	if days := int(age.Hours() / 24); days > 0 {
		return fmt.Sprintf("%dd ago", days)
	}
	if hours := int(age.Hours()); hours > 0 {
		return fmt.Sprintf("%dh ago", hours)
	}
	return "recent"
}

// #endregion report
