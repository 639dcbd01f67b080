package ir

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf16"
)

// Kind identifies the scalar type of a value or of an array's elements.
type Kind uint8

const (
	// KindInvalid is the zero Kind; no value has it.
	KindInvalid Kind = iota
	// KindBool is a boolean scalar.
	KindBool
	// KindInt is a signed 64-bit integer scalar.
	KindInt
	// KindFloat is a 64-bit floating point scalar.
	KindFloat
	// KindString is a UTF-8 string scalar.
	KindString
	// KindNodeRef is a reference to a node in the address space.
	KindNodeRef
	// KindObject is a structured value. It has no grid cell mapping.
	KindObject
)

var kindNames = map[Kind]string{
	KindBool:    "bool",
	KindInt:     "int",
	KindFloat:   "float",
	KindString:  "string",
	KindNodeRef: "noderef",
	KindObject:  "object",
}

// String returns the lower-case kind name used in projects and scenarios.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind parses a kind name as written in a project file.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == strings.ToLower(strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return KindInvalid, fmt.Errorf("unknown kind %q", s)
}

// CellKind maps an array element kind to the kind of the grid cell that
// mirrors it. The second result is false when no cell type exists.
func CellKind(elem Kind) (Kind, bool) {
	switch elem {
	case KindBool, KindInt, KindFloat, KindString:
		return elem, true
	default:
		return KindInvalid, false
	}
}

// Value is a sealed interface over the value types held by variables.
// Only Bool, Int, Float, String, NodeRef, Object and Array implement it.
type Value interface {
	// Kind returns the scalar kind. For an Array it is the element kind.
	Kind() Kind
	value()
}

// Bool is a boolean value.
type Bool bool

// Int is an integer value.
type Int int64

// Float is a floating point value.
type Float float64

// String is a string value.
type String string

// NodeRef references a node by id. NodeRef(0) is the empty reference.
type NodeRef NodeID

// Object is a structured value. Use SortedKeys for deterministic iteration.
type Object map[string]Value

func (Bool) Kind() Kind    { return KindBool }
func (Int) Kind() Kind     { return KindInt }
func (Float) Kind() Kind   { return KindFloat }
func (String) Kind() Kind  { return KindString }
func (NodeRef) Kind() Kind { return KindNodeRef }
func (Object) Kind() Kind  { return KindObject }

func (Bool) value()    {}
func (Int) value()     {}
func (Float) value()   {}
func (String) value()  {}
func (NodeRef) value() {}
func (Object) value()  {}

// IsEmpty reports whether the reference points nowhere.
func (r NodeRef) IsEmpty() bool { return r == 0 }

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering.
// Go's default string comparison uses UTF-8 which produces a different order
// for characters outside the BMP.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

// Array is a homogeneously typed, row-major array of scalars.
//
// Dims holds the length of every dimension; Rank is len(Dims). A rank-1
// array of n elements has Dims == []int{n}.
type Array struct {
	Elem  Kind
	Dims  []int
	Items []Value
}

// Kind returns the element kind.
func (a Array) Kind() Kind { return a.Elem }

func (Array) value() {}

// NewArray builds a rank-1 array. Items must all be of kind elem.
func NewArray(elem Kind, items ...Value) Array {
	copied := make([]Value, len(items))
	copy(copied, items)
	return Array{Elem: elem, Dims: []int{len(items)}, Items: copied}
}

// NewMatrix builds a rank-2 array of rows x cols items in row-major order.
func NewMatrix(elem Kind, rows, cols int, items ...Value) (Array, error) {
	if rows*cols != len(items) {
		return Array{}, fmt.Errorf("matrix %dx%d needs %d items, got %d", rows, cols, rows*cols, len(items))
	}
	copied := make([]Value, len(items))
	copy(copied, items)
	return Array{Elem: elem, Dims: []int{rows, cols}, Items: copied}, nil
}

// Ints is a convenience constructor for rank-1 integer arrays.
func Ints(vals ...int64) Array {
	items := make([]Value, len(vals))
	for i, v := range vals {
		items[i] = Int(v)
	}
	return Array{Elem: KindInt, Dims: []int{len(vals)}, Items: items}
}

// Rank returns the number of dimensions.
func (a Array) Rank() int { return len(a.Dims) }

// Len returns the length of the first dimension.
func (a Array) Len() int {
	if len(a.Dims) == 0 {
		return 0
	}
	return a.Dims[0]
}

// At returns the element at index i of a rank-1 array.
func (a Array) At(i int) (Value, error) {
	if a.Rank() != 1 {
		return nil, fmt.Errorf("At requires rank 1, array has rank %d", a.Rank())
	}
	if i < 0 || i >= len(a.Items) {
		return nil, fmt.Errorf("index %d out of range [0,%d)", i, len(a.Items))
	}
	return a.Items[i], nil
}

// With returns a copy of a rank-1 array with element i replaced.
func (a Array) With(i int, v Value) (Array, error) {
	if a.Rank() != 1 {
		return Array{}, fmt.Errorf("With requires rank 1, array has rank %d", a.Rank())
	}
	if i < 0 || i >= len(a.Items) {
		return Array{}, fmt.Errorf("index %d out of range [0,%d)", i, len(a.Items))
	}
	if v == nil || v.Kind() != a.Elem {
		return Array{}, fmt.Errorf("element kind %s does not match array kind %s", kindOf(v), a.Elem)
	}
	if _, nested := v.(Array); nested {
		return Array{}, fmt.Errorf("array elements must be scalars")
	}
	out := a.Clone()
	out.Items[i] = v
	return out, nil
}

// Clone returns a copy that shares no slices with a.
func (a Array) Clone() Array {
	dims := make([]int, len(a.Dims))
	copy(dims, a.Dims)
	items := make([]Value, len(a.Items))
	copy(items, a.Items)
	return Array{Elem: a.Elem, Dims: dims, Items: items}
}

// Validate checks that dimensions and items agree and that every item is a
// scalar of the element kind.
func (a Array) Validate() error {
	if a.Elem == KindInvalid {
		return fmt.Errorf("array has no element kind")
	}
	n := 1
	for i, d := range a.Dims {
		if d < 0 {
			return fmt.Errorf("dimension %d is negative (%d)", i, d)
		}
		n *= d
	}
	if len(a.Dims) == 0 {
		n = 0
	}
	if n != len(a.Items) {
		return fmt.Errorf("dimensions %v need %d items, got %d", a.Dims, n, len(a.Items))
	}
	for i, item := range a.Items {
		if item == nil {
			return fmt.Errorf("item %d is nil", i)
		}
		if _, nested := item.(Array); nested {
			return fmt.Errorf("item %d is an array", i)
		}
		if item.Kind() != a.Elem {
			return fmt.Errorf("item %d has kind %s, want %s", i, item.Kind(), a.Elem)
		}
	}
	return nil
}

// Zero returns the zero value of a scalar kind.
func Zero(k Kind) Value {
	switch k {
	case KindBool:
		return Bool(false)
	case KindInt:
		return Int(0)
	case KindFloat:
		return Float(0)
	case KindString:
		return String("")
	case KindNodeRef:
		return NodeRef(0)
	case KindObject:
		return Object{}
	default:
		return nil
	}
}

// Equal reports whether two values are identical, including kind and shape.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Array:
		bv, ok := b.(Array)
		if !ok || !slices.Equal(av.Dims, bv.Dims) || len(av.Items) != len(bv.Items) {
			return false
		}
		for i := range av.Items {
			if !Equal(av.Items[i], bv.Items[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			if !Equal(v, bv[k]) {
				return false
			}
		}
		return true
	case Float:
		bv, ok := b.(Float)
		if !ok {
			return false
		}
		// NaN never equals itself; treat two NaNs as the same stored value.
		if math.IsNaN(float64(av)) && math.IsNaN(float64(bv)) {
			return true
		}
		return av == bv
	default:
		if _, isArr := b.(Array); isArr {
			return false
		}
		return a == b
	}
}

// IsArray reports whether v is an Array.
func IsArray(v Value) bool {
	_, ok := v.(Array)
	return ok
}

func kindOf(v Value) Kind {
	if v == nil {
		return KindInvalid
	}
	return v.Kind()
}
