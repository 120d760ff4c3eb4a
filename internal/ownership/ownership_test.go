package ownership

import (
	"encoding/json"
	"errors"
	"testing"
)

// #region kind-tests
func TestKind_StringRoundTrip(t *testing.T) {
	for _, k := range AllKinds() {
		got, err := ParseKind(k.String())
		if err != nil {
			t.Fatalf("ParseKind(%s): %v", k, err)
		}
		if got != k {
			t.Errorf("expected %s, got %s", k, got)
		}
	}
}

func TestParseKind_Unknown(t *testing.T) {
	_, err := ParseKind("Weak")
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestKind_TargetType(t *testing.T) {
	cases := map[Kind]string{
		Owned:       "Box<i32>",
		Borrowed:    "&i32",
		BorrowedMut: "&mut i32",
		Shared:      "Rc<i32>",
		RawPointer:  "*const i32",
		Vec:         "Vec<i32>",
		Slice:       "&[i32]",
		SliceMut:    "&mut [i32]",
	}
	for k, want := range cases {
		if got := k.TargetType("i32"); got != want {
			t.Errorf("%s: expected %q, got %q", k, want, got)
		}
	}
}

func TestKind_RequiresUnsafe(t *testing.T) {
	for _, k := range AllKinds() {
		if k.RequiresUnsafe() != (k == RawPointer) {
			t.Errorf("%s: unexpected RequiresUnsafe=%v", k, k.RequiresUnsafe())
		}
	}
}

func TestKind_JSONMapKey(t *testing.T) {
	in := map[Kind]int{Owned: 2, SliceMut: 1}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"Owned":2,"SliceMut":1}` {
		t.Fatalf("unexpected encoding %s", data)
	}
	var out map[Kind]int
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out[Owned] != 2 || out[SliceMut] != 1 {
		t.Errorf("unexpected decoded map %v", out)
	}
}

// #endregion kind-tests

// #region prediction-tests
func TestNewPrediction_Clamps(t *testing.T) {
	if p := NewPrediction(Owned, 1.7); p.Confidence != 1 {
		t.Errorf("expected 1, got %f", p.Confidence)
	}
	if p := NewPrediction(Owned, -0.2); p.Confidence != 0 {
		t.Errorf("expected 0, got %f", p.Confidence)
	}
}

func TestPrediction_EffectiveKind(t *testing.T) {
	confident := NewPrediction(Vec, 0.9)
	if confident.EffectiveKind() != Vec {
		t.Errorf("expected Vec, got %s", confident.EffectiveKind())
	}

	withFallback := NewPrediction(Vec, 0.4).WithFallback(Borrowed)
	if withFallback.EffectiveKind() != Borrowed {
		t.Errorf("expected Borrowed, got %s", withFallback.EffectiveKind())
	}

	bare := NewPrediction(Vec, 0.4)
	if bare.EffectiveKind() != RawPointer {
		t.Errorf("expected RawPointer, got %s", bare.EffectiveKind())
	}
}

func TestPrediction_IsConfidentBoundary(t *testing.T) {
	if !NewPrediction(Owned, ConfidenceThreshold).IsConfident() {
		t.Error("threshold confidence should be confident")
	}
	if NewPrediction(Owned, 0.64).IsConfident() {
		t.Error("0.64 should not be confident")
	}
}

// #endregion prediction-tests

// #region features-tests
func TestFeatures_VectorLayout(t *testing.T) {
	f := NewFeaturesBuilder().
		PointerDepth(2).
		Const(true).
		Allocation(AllocCalloc).
		Deallocations(1).
		Reads(7).
		Writes(3).
		NullChecks(4).
		Build()

	v := f.Vector()
	if len(v) != FeatureDimension {
		t.Fatalf("expected %d dims, got %d", FeatureDimension, len(v))
	}
	if v[0] != 2 || v[1] != 1 || v[4] != 2 || v[5] != 1 || v[8] != 7 || v[9] != 3 || v[11] != 4 {
		t.Errorf("unexpected head %v", v[:featureCount])
	}
	for i := featureCount; i < FeatureDimension; i++ {
		if v[i] != 0 {
			t.Fatalf("expected zero padding at %d, got %f", i, v[i])
		}
	}
}

func TestFeaturesFromVector_RoundTrip(t *testing.T) {
	f := NewFeaturesBuilder().
		PointerDepth(1).
		ArrayDecay(true).
		SizeParam(true).
		Allocation(AllocParameter).
		Aliases(2).
		Escapes(true).
		Reads(100000).
		Writes(12).
		Arithmetic(5).
		Build()

	got, err := FeaturesFromVector(f.Vector())
	if err != nil {
		t.Fatalf("FeaturesFromVector: %v", err)
	}
	if got != f {
		t.Errorf("expected %+v, got %+v", f, got)
	}
}

func TestFeatures_VectorSaturatesLargeCounts(t *testing.T) {
	exact := NewFeaturesBuilder().Reads(MaxVectorCount).Writes(MaxVectorCount - 1).Build()
	got, err := FeaturesFromVector(exact.Vector())
	if err != nil {
		t.Fatalf("FeaturesFromVector: %v", err)
	}
	if got != exact {
		t.Fatalf("counts up to the limit must round-trip: %+v != %+v", got, exact)
	}

	big := NewFeaturesBuilder().Reads(MaxVectorCount + 3).Writes(1 << 30).Build()
	v := big.Vector()
	if v[8] != MaxVectorCount || v[9] != MaxVectorCount {
		t.Fatalf("expected saturation at %d, got %v %v", MaxVectorCount, v[8], v[9])
	}
}

func TestFeaturesFromVector_OutOfRange(t *testing.T) {
	v := Features{}.Vector()
	v[0] = 300
	if _, err := FeaturesFromVector(v); err == nil {
		t.Fatal("expected error for pointer depth 300")
	}

	v = Features{}.Vector()
	v[4] = 9
	if _, err := FeaturesFromVector(v); err == nil {
		t.Fatal("expected error for allocation kind 9")
	}

	if _, err := FeaturesFromVector([]float32{1, 2}); err == nil {
		t.Fatal("expected error for short vector")
	}
}

func TestFeatures_Names(t *testing.T) {
	f := NewFeaturesBuilder().
		Allocation(AllocMalloc).
		Deallocations(1).
		ArrayDecay(true).
		Writes(1).
		Build()

	names := f.Names()
	want := []string{"malloc_free", "array_decay", "mutated"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("index %d: expected %s, got %s", i, want[i], names[i])
		}
	}
}

// #endregion features-tests

// #region defect-tests
func TestDefect_Codes(t *testing.T) {
	if PointerMisclassification.Code() != "DECY-O-001" {
		t.Errorf("unexpected code %s", PointerMisclassification.Code())
	}
	if MutabilityMismatch.Code() != "DECY-O-008" {
		t.Errorf("unexpected code %s", MutabilityMismatch.Code())
	}
	for _, d := range AllDefects() {
		got, ok := ParseDefectCode(d.Code())
		if !ok || got != d {
			t.Errorf("ParseDefectCode(%s) = %s, %v", d.Code(), got, ok)
		}
	}
	if _, ok := ParseDefectCode("DECY-O-999"); ok {
		t.Error("expected unknown code to fail")
	}
}

func TestDefect_Severity(t *testing.T) {
	cases := map[Defect]Severity{
		DanglingPointerRisk:       SeverityCritical,
		AliasViolation:            SeverityCritical,
		PointerMisclassification:  SeverityHigh,
		LifetimeInferenceGap:      SeverityHigh,
		MutabilityMismatch:        SeverityHigh,
		UnsafeMinimizationFailure: SeverityMedium,
		ArraySliceMismatch:        SeverityMedium,
		ResourceLeakPattern:       SeverityMedium,
	}
	for d, want := range cases {
		if d.Severity() != want {
			t.Errorf("%s: expected %s, got %s", d, want, d.Severity())
		}
	}
}

// #endregion defect-tests
