package tuning

import (
	"fmt"
	"strings"
)

// #region markdown
// Markdown renders the tuning result as a human-readable report.
func (r Result) Markdown() string {
	var table strings.Builder
	table.WriteString("| Threshold | Accuracy | F1 | Fallback Rate | ML Usage |\n")
	table.WriteString("|-----------|----------|----|--------------|---------|\n")
	for _, m := range r.All {
		fmt.Fprintf(&table, "| %.2f | %.1f%% | %.3f | %.1f%% | %.1f%% |\n",
			m.Threshold, m.Accuracy*100, m.F1, m.FallbackRate*100, m.MLUsageRate*100)
	}

	recommendation := "❌ **KEEP RULES ONLY**: No improvement from ML enhancement"
	if r.Improvement > 0 {
		recommendation = fmt.Sprintf("✅ **ADOPT HYBRID**: %.1f%% accuracy improvement at threshold %.2f",
			r.Improvement*100, r.OptimalThreshold)
	}

	var b strings.Builder
	b.WriteString("## Threshold Tuning Report\n\n")
	b.WriteString("### Optimal Configuration\n\n")
	b.WriteString("| Parameter | Value |\n|-----------|-------|\n")
	fmt.Fprintf(&b, "| **Optimal Threshold** | %.2f |\n", r.OptimalThreshold)
	fmt.Fprintf(&b, "| **Selection Criteria** | %s |\n", r.CriteriaName)
	fmt.Fprintf(&b, "| **Accuracy** | %.1f%% |\n", r.Optimal.Accuracy*100)
	fmt.Fprintf(&b, "| **F1 Score** | %.3f |\n", r.Optimal.F1)
	fmt.Fprintf(&b, "| **Fallback Rate** | %.1f%% |\n\n", r.Optimal.FallbackRate*100)

	b.WriteString("### Comparison to Baselines\n\n")
	b.WriteString("| Method | Accuracy |\n|--------|----------|\n")
	fmt.Fprintf(&b, "| Rules Only (baseline) | %.1f%% |\n", r.BaselineAccuracy*100)
	fmt.Fprintf(&b, "| ML Only (threshold=0) | %.1f%% |\n", r.MLOnlyAccuracy*100)
	fmt.Fprintf(&b, "| **Hybrid (optimal)** | **%.1f%%** |\n", r.Optimal.Accuracy*100)
	fmt.Fprintf(&b, "| Improvement | %+.1f%% |\n\n", r.Improvement*100)

	b.WriteString("### All Thresholds\n\n")
	b.WriteString(table.String())
	b.WriteString("\n### Recommendation\n\n")
	b.WriteString(recommendation)
	b.WriteString("\n")
	return b.String()
}

// #endregion markdown
