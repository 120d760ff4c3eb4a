package ownership

import (
	"errors"
	"fmt"
)

// ErrUnknownKind is returned when an ownership kind name cannot be parsed.
var ErrUnknownKind = errors.New("unknown ownership kind")

// #region kind
// Kind is the ownership discipline assigned to a pointer variable.
type Kind uint8

const (
	Owned Kind = iota
	Borrowed
	BorrowedMut
	Shared
	RawPointer
	Vec
	Slice
	SliceMut
)

var kindNames = [...]string{
	Owned:       "Owned",
	Borrowed:    "Borrowed",
	BorrowedMut: "BorrowedMut",
	Shared:      "Shared",
	RawPointer:  "RawPointer",
	Vec:         "Vec",
	Slice:       "Slice",
	SliceMut:    "SliceMut",
}

// AllKinds returns every kind in declaration order.
func AllKinds() []Kind {
	return []Kind{Owned, Borrowed, BorrowedMut, Shared, RawPointer, Vec, Slice, SliceMut}
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind is the inverse of String.
func ParseKind(name string) (Kind, error) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}
	return RawPointer, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// TargetType renders the safe type for this discipline around inner.
func (k Kind) TargetType(inner string) string {
	switch k {
	case Owned:
		return "Box<" + inner + ">"
	case Borrowed:
		return "&" + inner
	case BorrowedMut:
		return "&mut " + inner
	case Shared:
		return "Rc<" + inner + ">"
	case Vec:
		return "Vec<" + inner + ">"
	case Slice:
		return "&[" + inner + "]"
	case SliceMut:
		return "&mut [" + inner + "]"
	default:
		return "*const " + inner
	}
}

// RequiresUnsafe reports whether emitted code for this kind needs an unsafe block.
func (k Kind) RequiresUnsafe() bool {
	return k == RawPointer
}

func (k Kind) MarshalText() ([]byte, error) {
	if int(k) >= len(kindNames) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(k))
	}
	return []byte(kindNames[k]), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// #endregion kind

// #region prediction
// ConfidenceThreshold is the default cutoff above which a learned prediction is trusted.
const ConfidenceThreshold = 0.65

// Prediction is one classifier's verdict for a variable.
type Prediction struct {
	Kind       Kind    `json:"kind" msgpack:"kind"`
	Confidence float64 `json:"confidence" msgpack:"confidence"`
	Fallback   *Kind   `json:"fallback,omitempty" msgpack:"fallback,omitempty"`
}

// NewPrediction builds a prediction with confidence clamped to [0,1].
func NewPrediction(kind Kind, confidence float64) Prediction {
	return Prediction{Kind: kind, Confidence: Clamp01(confidence)}
}

// WithFallback returns a copy of p carrying a fallback kind.
func (p Prediction) WithFallback(kind Kind) Prediction {
	p.Fallback = &kind
	return p
}

// IsConfident reports whether the confidence clears ConfidenceThreshold.
func (p Prediction) IsConfident() bool {
	return p.Confidence >= ConfidenceThreshold
}

// EffectiveKind returns the kind to act on: the prediction when confident,
// otherwise the fallback, otherwise RawPointer.
func (p Prediction) EffectiveKind() Kind {
	if p.IsConfident() {
		return p.Kind
	}
	if p.Fallback != nil {
		return *p.Fallback
	}
	return RawPointer
}

// #endregion prediction

// #region inference
// Inference is the rule engine's verdict for one variable, produced upstream.
type Inference struct {
	Variable   string  `json:"variable"`
	Kind       Kind    `json:"kind"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// #endregion inference

// #region helpers
// Clamp01 bounds v to [0,1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
