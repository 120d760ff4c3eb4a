package classifier

import "github.com/danielpatrickdp/ownership-engine/internal/ownership"

// #region prediction
// Alternative is a runner-up verdict with its own confidence.
type Alternative struct {
	Kind       ownership.Kind
	Confidence float64
}

// Prediction is the output of a Classifier.
type Prediction struct {
	Kind         ownership.Kind
	Confidence   float64
	Alternatives []Alternative
}

// NewPrediction builds a prediction with confidence clamped to [0,1].
func NewPrediction(kind ownership.Kind, confidence float64) Prediction {
	return Prediction{Kind: kind, Confidence: ownership.Clamp01(confidence)}
}

// WithAlternative appends a runner-up verdict.
func (p Prediction) WithAlternative(kind ownership.Kind, confidence float64) Prediction {
	p.Alternatives = append(p.Alternatives, Alternative{Kind: kind, Confidence: ownership.Clamp01(confidence)})
	return p
}

// IsConfident reports whether confidence reaches threshold.
func (p Prediction) IsConfident(threshold float64) bool {
	return p.Confidence >= threshold
}

// #endregion prediction

// #region classifier
// Classifier maps a feature vector to an ownership verdict.
type Classifier interface {
	Classify(f ownership.Features) Prediction
	Name() string
	IsTrained() bool
}

// ClassifyBatch runs c over every feature set in order.
func ClassifyBatch(c Classifier, features []ownership.Features) []Prediction {
	out := make([]Prediction, len(features))
	for i, f := range features {
		out[i] = c.Classify(f)
	}
	return out
}

// #endregion classifier
