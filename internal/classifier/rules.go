package classifier

import "github.com/danielpatrickdp/ownership-engine/internal/ownership"

// #region weights
// RuleWeights are the confidences reported by each rule.
type RuleWeights struct {
	MallocFree float64 `json:"malloc_free" yaml:"malloc_free" toml:"malloc_free"`
	ArrayAlloc float64 `json:"array_alloc" yaml:"array_alloc" toml:"array_alloc"`
	ConstQual  float64 `json:"const_qual" yaml:"const_qual" toml:"const_qual"`
	WriteOps   float64 `json:"write_ops" yaml:"write_ops" toml:"write_ops"`
	SizeParam  float64 `json:"size_param" yaml:"size_param" toml:"size_param"`
}

// DefaultRuleWeights returns the production rule confidences.
func DefaultRuleWeights() RuleWeights {
	return RuleWeights{
		MallocFree: 0.95,
		ArrayAlloc: 0.90,
		ConstQual:  0.85,
		WriteOps:   0.80,
		SizeParam:  0.75,
	}
}

// DefaultConfidence is reported when no rule matches.
const DefaultConfidence = 0.3

// #endregion weights

// #region rule-based
// RuleBased is the deterministic baseline classifier. First matching rule wins.
type RuleBased struct {
	weights RuleWeights
}

// NewRuleBased creates a rule classifier with the given weights.
func NewRuleBased(weights RuleWeights) *RuleBased {
	return &RuleBased{weights: weights}
}

func (r *RuleBased) Name() string { return "RuleBasedClassifier" }

// IsTrained is always true; rules need no training.
func (r *RuleBased) IsTrained() bool { return true }

func (r *RuleBased) Classify(f ownership.Features) Prediction {
	kind, conf, _ := r.match(f)
	return NewPrediction(kind, conf)
}

// Infer produces the verdict in the form the hybrid classifier consumes,
// with a reason naming the rule that fired.
func (r *RuleBased) Infer(variable string, f ownership.Features) ownership.Inference {
	kind, conf, reason := r.match(f)
	return ownership.Inference{
		Variable:   variable,
		Kind:       kind,
		Confidence: ownership.Clamp01(conf),
		Reason:     reason,
	}
}

func (r *RuleBased) match(f ownership.Features) (ownership.Kind, float64, string) {
	heap := f.AllocationSite.IsHeap()
	slice := f.IsArrayDecay && f.HasSizeParam

	// 1. malloc + free, scalar
	if heap && f.DeallocationCount > 0 && !f.HasSizeParam {
		return ownership.Owned, r.weights.MallocFree, "heap allocation freed in scope"
	}

	// 2. malloc + free, sized or decayed
	if heap && (f.HasSizeParam || f.IsArrayDecay) && f.DeallocationCount > 0 {
		return ownership.Vec, r.weights.ArrayAlloc, "sized heap allocation freed in scope"
	}

	// 3. const, never freed
	if f.IsConst && f.DeallocationCount == 0 {
		if slice {
			return ownership.Slice, r.weights.SizeParam, "const array parameter with length"
		}
		return ownership.Borrowed, r.weights.ConstQual, "const pointer never freed"
	}

	// 4. written through, not owned
	if !f.IsConst && f.WriteCount > 0 && f.DeallocationCount == 0 && !heap {
		if slice {
			return ownership.SliceMut, r.weights.SizeParam, "mutable array parameter with length"
		}
		return ownership.BorrowedMut, r.weights.WriteOps, "written through, never freed"
	}

	// 5. decayed array with length
	if slice {
		if f.IsConst {
			return ownership.Slice, r.weights.SizeParam, "array with length parameter"
		}
		return ownership.SliceMut, r.weights.SizeParam, "array with length parameter"
	}

	return ownership.RawPointer, DefaultConfidence, "no ownership pattern matched"
}

// #endregion rule-based
