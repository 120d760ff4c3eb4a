package classifier

import "github.com/danielpatrickdp/ownership-engine/internal/ownership"

// #region ensemble
type member struct {
	classifier Classifier
	weight     float64
}

// Ensemble combines classifiers by confidence-weighted voting.
type Ensemble struct {
	name    string
	members []member
}

// NewEnsemble creates an empty ensemble.
func NewEnsemble(name string) *Ensemble {
	return &Ensemble{name: name}
}

// Add registers a classifier with a voting weight.
func (e *Ensemble) Add(c Classifier, weight float64) {
	e.members = append(e.members, member{classifier: c, weight: weight})
}

// Len returns the number of member classifiers.
func (e *Ensemble) Len() int { return len(e.members) }

func (e *Ensemble) Name() string { return e.name }

// IsTrained reports whether every member is trained.
func (e *Ensemble) IsTrained() bool {
	for _, m := range e.members {
		if !m.classifier.IsTrained() {
			return false
		}
	}
	return true
}

// Classify returns the kind with the highest weighted vote. Confidence is
// the winning vote divided by the total weight.
func (e *Ensemble) Classify(f ownership.Features) Prediction {
	if len(e.members) == 0 {
		return NewPrediction(ownership.RawPointer, 0)
	}

	votes := make(map[ownership.Kind]float64)
	var total float64
	for _, m := range e.members {
		p := m.classifier.Classify(f)
		votes[p.Kind] += m.weight * p.Confidence
		total += m.weight
	}

	best := ownership.RawPointer
	bestScore := -1.0
	for _, k := range ownership.AllKinds() {
		score, ok := votes[k]
		if ok && score > bestScore {
			best, bestScore = k, score
		}
	}

	if total <= 0 {
		return NewPrediction(best, 0)
	}

	pred := NewPrediction(best, bestScore/total)
	for _, k := range ownership.AllKinds() {
		if score, ok := votes[k]; ok && k != best {
			pred = pred.WithAlternative(k, score/total)
		}
	}
	return pred
}

// #endregion ensemble
