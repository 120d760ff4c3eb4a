package hybrid

// #region metrics
// Metrics tallies decision paths across many Results.
type Metrics struct {
	Total         uint64 `json:"total"`
	RuleBased     uint64 `json:"rule_based"`
	MLUsed        uint64 `json:"ml_used"`
	Fallback      uint64 `json:"fallback"`
	Hybrid        uint64 `json:"hybrid"`
	Agreements    uint64 `json:"agreements"`
	Disagreements uint64 `json:"disagreements"`
}

// Record counts one result. Agreement is tracked whenever both verdicts exist.
func (m *Metrics) Record(r Result) {
	m.Total++
	switch r.Method {
	case RuleBased:
		m.RuleBased++
	case MachineLearning:
		m.MLUsed++
	case Fallback:
		m.Fallback++
	case Hybrid:
		m.Hybrid++
	}

	if r.RuleResult != nil && r.MLResult != nil {
		if *r.RuleResult == r.MLResult.Kind {
			m.Agreements++
		} else {
			m.Disagreements++
		}
	}
}

func (m Metrics) MLUsageRate() float64 {
	if m.Total == 0 {
		return 0
	}
	return float64(m.MLUsed) / float64(m.Total)
}

func (m Metrics) FallbackRate() float64 {
	if m.Total == 0 {
		return 0
	}
	return float64(m.Fallback) / float64(m.Total)
}

// AgreementRate is 1.0 when nothing has been compared yet.
func (m Metrics) AgreementRate() float64 {
	both := m.Agreements + m.Disagreements
	if both == 0 {
		return 1
	}
	return float64(m.Agreements) / float64(both)
}

// #endregion metrics
