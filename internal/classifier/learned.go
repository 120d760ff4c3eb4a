package classifier

import (
	"github.com/danielpatrickdp/ownership-engine/internal/model"
	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
)

// #region learned
// Learned presents a model.Model as a Classifier so it can join an Ensemble
// or be scored by the evaluation harness. A model fallback kind becomes the
// single alternative.
type Learned struct {
	model model.Model
}

func NewLearned(m model.Model) *Learned {
	if m == nil {
		m = model.Null{}
	}
	return &Learned{model: m}
}

func (l *Learned) Name() string { return l.model.Name() }

// IsTrained is false only for the Null sentinel.
func (l *Learned) IsTrained() bool {
	return !model.IsNull(l.model)
}

func (l *Learned) Classify(f ownership.Features) Prediction {
	p := l.model.Predict(f)
	out := NewPrediction(p.Kind, p.Confidence)
	if p.Fallback != nil && *p.Fallback != p.Kind {
		out = out.WithAlternative(*p.Fallback, 1-out.Confidence)
	}
	return out
}

// #endregion learned
