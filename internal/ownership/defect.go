package ownership

import "fmt"

// #region severity
// Severity grades the impact of a defect category.
type Severity uint8

const (
	SeverityInfo Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	}
	return fmt.Sprintf("Severity(%d)", uint8(s))
}

// #endregion severity

// #region defect
// Defect is a category of ownership inference failure.
type Defect uint8

const (
	PointerMisclassification Defect = iota
	LifetimeInferenceGap
	DanglingPointerRisk
	AliasViolation
	UnsafeMinimizationFailure
	ArraySliceMismatch
	ResourceLeakPattern
	MutabilityMismatch
)

var defectNames = [...]string{
	PointerMisclassification:  "PointerMisclassification",
	LifetimeInferenceGap:      "LifetimeInferenceGap",
	DanglingPointerRisk:       "DanglingPointerRisk",
	AliasViolation:            "AliasViolation",
	UnsafeMinimizationFailure: "UnsafeMinimizationFailure",
	ArraySliceMismatch:        "ArraySliceMismatch",
	ResourceLeakPattern:       "ResourceLeakPattern",
	MutabilityMismatch:        "MutabilityMismatch",
}

// AllDefects returns every category in code order.
func AllDefects() []Defect {
	return []Defect{
		PointerMisclassification, LifetimeInferenceGap, DanglingPointerRisk, AliasViolation,
		UnsafeMinimizationFailure, ArraySliceMismatch, ResourceLeakPattern, MutabilityMismatch,
	}
}

func (d Defect) String() string {
	if int(d) < len(defectNames) {
		return defectNames[d]
	}
	return fmt.Sprintf("Defect(%d)", uint8(d))
}

// Code returns the stable diagnostic code, DECY-O-001 through DECY-O-008.
func (d Defect) Code() string {
	return fmt.Sprintf("DECY-O-%03d", int(d)+1)
}

// ParseDefectCode maps a diagnostic code back to its category.
func ParseDefectCode(code string) (Defect, bool) {
	for _, d := range AllDefects() {
		if d.Code() == code {
			return d, true
		}
	}
	return 0, false
}

func (d Defect) Description() string {
	switch d {
	case PointerMisclassification:
		return "Owning pointer classified as borrowing or vice versa"
	case LifetimeInferenceGap:
		return "Missing or incorrect lifetime annotations"
	case DanglingPointerRisk:
		return "Use-after-free pattern not caught"
	case AliasViolation:
		return "Multiple mutable aliases generated"
	case UnsafeMinimizationFailure:
		return "Unnecessary unsafe blocks in output"
	case ArraySliceMismatch:
		return "Array vs slice semantics error"
	case ResourceLeakPattern:
		return "Allocation without corresponding deallocation"
	case MutabilityMismatch:
		return "Const pointer vs mutable reference error"
	}
	return "Unknown defect"
}

func (d Defect) Severity() Severity {
	switch d {
	case DanglingPointerRisk, AliasViolation:
		return SeverityCritical
	case PointerMisclassification, LifetimeInferenceGap, MutabilityMismatch:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

func (d Defect) MarshalText() ([]byte, error) {
	if int(d) >= len(defectNames) {
		return nil, fmt.Errorf("unknown defect %d", uint8(d))
	}
	return []byte(d.Code()), nil
}

func (d *Defect) UnmarshalText(b []byte) error {
	parsed, ok := ParseDefectCode(string(b))
	if !ok {
		return fmt.Errorf("unknown defect code %q", string(b))
	}
	*d = parsed
	return nil
}

// #endregion defect
