package ownership

import (
	"fmt"
	"math"

	"fortio.org/safecast"
)

// #region allocation-kind
// AllocationKind is where a pointer's memory comes from.
type AllocationKind uint8

const (
	AllocUnknown AllocationKind = iota
	AllocMalloc
	AllocCalloc
	AllocRealloc
	AllocStack
	AllocStatic
	AllocParameter
)

var allocNames = [...]string{
	AllocUnknown:   "unknown",
	AllocMalloc:    "malloc",
	AllocCalloc:    "calloc",
	AllocRealloc:   "realloc",
	AllocStack:     "stack",
	AllocStatic:    "static",
	AllocParameter: "parameter",
}

func (a AllocationKind) String() string {
	if int(a) < len(allocNames) {
		return allocNames[a]
	}
	return fmt.Sprintf("AllocationKind(%d)", uint8(a))
}

// IsHeap reports whether the allocation came from malloc or calloc.
func (a AllocationKind) IsHeap() bool {
	return a == AllocMalloc || a == AllocCalloc
}

func (a AllocationKind) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *AllocationKind) UnmarshalText(b []byte) error {
	for i, n := range allocNames {
		if n == string(b) {
			*a = AllocationKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown allocation kind %q", string(b))
}

// #endregion allocation-kind

// #region features
// FeatureDimension is the length of the model input vector.
const FeatureDimension = 142

// featureCount is the number of populated slots at the head of the vector.
const featureCount = 12

// MaxVectorCount is the largest read or write count a float32 slot holds
// exactly. Vector saturates larger counts to it.
const MaxVectorCount = 1 << 24

// Features is the usage-pattern summary of one pointer variable.
type Features struct {
	PointerDepth      uint8          `json:"pointer_depth" yaml:"pointer_depth" msgpack:"pointer_depth"`
	IsConst           bool           `json:"is_const" yaml:"is_const" msgpack:"is_const"`
	IsArrayDecay      bool           `json:"is_array_decay" yaml:"is_array_decay" msgpack:"is_array_decay"`
	HasSizeParam      bool           `json:"has_size_param" yaml:"has_size_param" msgpack:"has_size_param"`
	AllocationSite    AllocationKind `json:"allocation_site" yaml:"allocation_site" msgpack:"allocation_site"`
	DeallocationCount uint8          `json:"deallocation_count" yaml:"deallocation_count" msgpack:"deallocation_count"`
	AliasCount        uint8          `json:"alias_count" yaml:"alias_count" msgpack:"alias_count"`
	EscapeScope       bool           `json:"escape_scope" yaml:"escape_scope" msgpack:"escape_scope"`
	ReadCount         uint32         `json:"read_count" yaml:"read_count" msgpack:"read_count"`
	WriteCount        uint32         `json:"write_count" yaml:"write_count" msgpack:"write_count"`
	ArithmeticOps     uint8          `json:"arithmetic_ops" yaml:"arithmetic_ops" msgpack:"arithmetic_ops"`
	NullChecks        uint8          `json:"null_checks" yaml:"null_checks" msgpack:"null_checks"`
}

// Vector flattens the features into a FeatureDimension-long model input.
// Read and write counts above MaxVectorCount are saturated.
func (f Features) Vector() []float32 {
	v := make([]float32, FeatureDimension)
	v[0] = float32(f.PointerDepth)
	v[1] = boolf(f.IsConst)
	v[2] = boolf(f.IsArrayDecay)
	v[3] = boolf(f.HasSizeParam)
	v[4] = float32(f.AllocationSite)
	v[5] = float32(f.DeallocationCount)
	v[6] = float32(f.AliasCount)
	v[7] = boolf(f.EscapeScope)
	v[8] = float32(min(f.ReadCount, MaxVectorCount))
	v[9] = float32(min(f.WriteCount, MaxVectorCount))
	v[10] = float32(f.ArithmeticOps)
	v[11] = float32(f.NullChecks)
	return v
}

// FeaturesFromVector rebuilds Features from a vector produced by Vector.
func FeaturesFromVector(v []float32) (Features, error) {
	if len(v) < featureCount {
		return Features{}, fmt.Errorf("feature vector too short: %d < %d", len(v), featureCount)
	}

	var f Features
	var err error
	u8 := func(i int) uint8 {
		if err != nil {
			return 0
		}
		var out uint8
		out, err = safecast.Conv[uint8](int64(math.Round(float64(v[i]))))
		if err != nil {
			err = fmt.Errorf("slot %d: %w", i, err)
		}
		return out
	}
	u32 := func(i int) uint32 {
		if err != nil {
			return 0
		}
		var out uint32
		out, err = safecast.Conv[uint32](int64(math.Round(float64(v[i]))))
		if err != nil {
			err = fmt.Errorf("slot %d: %w", i, err)
		}
		return out
	}

	f.PointerDepth = u8(0)
	f.IsConst = v[1] != 0
	f.IsArrayDecay = v[2] != 0
	f.HasSizeParam = v[3] != 0
	alloc := u8(4)
	f.DeallocationCount = u8(5)
	f.AliasCount = u8(6)
	f.EscapeScope = v[7] != 0
	f.ReadCount = u32(8)
	f.WriteCount = u32(9)
	f.ArithmeticOps = u8(10)
	f.NullChecks = u8(11)
	if err != nil {
		return Features{}, fmt.Errorf("decode features: %w", err)
	}
	if int(alloc) >= len(allocNames) {
		return Features{}, fmt.Errorf("decode features: allocation kind %d out of range", alloc)
	}
	f.AllocationSite = AllocationKind(alloc)
	return f, nil
}

// Names returns the C-source feature tags present in f, used for fault localization.
func (f Features) Names() []string {
	var names []string
	if f.AllocationSite.IsHeap() && f.DeallocationCount > 0 {
		names = append(names, "malloc_free")
	}
	if f.IsArrayDecay {
		names = append(names, "array_decay")
	}
	if f.HasSizeParam {
		names = append(names, "size_param")
	}
	if f.IsConst {
		names = append(names, "const_qualified")
	}
	if f.ArithmeticOps > 0 {
		names = append(names, "pointer_arithmetic")
	}
	if f.NullChecks > 0 {
		names = append(names, "null_checks")
	}
	if f.AliasCount > 0 {
		names = append(names, "aliased")
	}
	if f.EscapeScope {
		names = append(names, "escapes_scope")
	}
	if f.PointerDepth > 1 {
		names = append(names, "multi_level")
	}
	if f.WriteCount > 0 {
		names = append(names, "mutated")
	}
	return names
}

func boolf(b bool) float32 {
	if b {
		return 1
	}
	return 0
}

// #endregion features

// #region builder
// FeaturesBuilder assembles Features fluently.
type FeaturesBuilder struct {
	f Features
}

// NewFeaturesBuilder starts from zero-valued Features.
func NewFeaturesBuilder() *FeaturesBuilder {
	return &FeaturesBuilder{}
}

func (b *FeaturesBuilder) PointerDepth(d uint8) *FeaturesBuilder {
	b.f.PointerDepth = d
	return b
}

func (b *FeaturesBuilder) Const(v bool) *FeaturesBuilder {
	b.f.IsConst = v
	return b
}

func (b *FeaturesBuilder) ArrayDecay(v bool) *FeaturesBuilder {
	b.f.IsArrayDecay = v
	return b
}

func (b *FeaturesBuilder) SizeParam(v bool) *FeaturesBuilder {
	b.f.HasSizeParam = v
	return b
}

func (b *FeaturesBuilder) Allocation(a AllocationKind) *FeaturesBuilder {
	b.f.AllocationSite = a
	return b
}

func (b *FeaturesBuilder) Deallocations(n uint8) *FeaturesBuilder {
	b.f.DeallocationCount = n
	return b
}

func (b *FeaturesBuilder) Aliases(n uint8) *FeaturesBuilder {
	b.f.AliasCount = n
	return b
}

func (b *FeaturesBuilder) Escapes(v bool) *FeaturesBuilder {
	b.f.EscapeScope = v
	return b
}

func (b *FeaturesBuilder) Reads(n uint32) *FeaturesBuilder {
	b.f.ReadCount = n
	return b
}

func (b *FeaturesBuilder) Writes(n uint32) *FeaturesBuilder {
	b.f.WriteCount = n
	return b
}

func (b *FeaturesBuilder) Arithmetic(n uint8) *FeaturesBuilder {
	b.f.ArithmeticOps = n
	return b
}

func (b *FeaturesBuilder) NullChecks(n uint8) *FeaturesBuilder {
	b.f.NullChecks = n
	return b
}

// Build returns the assembled Features by value.
func (b *FeaturesBuilder) Build() Features {
	return b.f
}

// #endregion builder
