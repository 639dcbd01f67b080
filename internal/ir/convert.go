package ir

import (
	"encoding/json"
	"fmt"
	"math"
)

// FromAny converts a decoded YAML, JSON or CUE value into a Value of the
// given kind. Nested lists become arrays whose dimensions follow the
// nesting; ragged nesting is rejected. A nil input yields the zero scalar.
func FromAny(kind Kind, raw any) (Value, error) {
	if list, ok := raw.([]any); ok {
		return arrayFromList(kind, list)
	}
	return scalarFromAny(kind, raw)
}

func arrayFromList(kind Kind, list []any) (Value, error) {
	dims, err := listDims(list)
	if err != nil {
		return nil, err
	}
	items := make([]Value, 0, len(list))
	var flatten func(xs []any, depth int) error
	flatten = func(xs []any, depth int) error {
		for i, x := range xs {
			if depth+1 < len(dims) {
				inner, _ := x.([]any)
				if err := flatten(inner, depth+1); err != nil {
					return fmt.Errorf("[%d]%w", i, err)
				}
				continue
			}
			v, err := scalarFromAny(kind, x)
			if err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
			items = append(items, v)
		}
		return nil
	}
	if err := flatten(list, 0); err != nil {
		return nil, err
	}
	return Array{Elem: kind, Dims: dims, Items: items}, nil
}

// listDims computes the dimensions of a rectangular nested list.
func listDims(list []any) ([]int, error) {
	dims := []int{len(list)}
	if len(list) == 0 {
		return dims, nil
	}
	first, nested := list[0].([]any)
	if !nested {
		for i, x := range list {
			if _, ok := x.([]any); ok {
				return nil, fmt.Errorf("ragged array: element %d is a list", i)
			}
		}
		return dims, nil
	}
	inner, err := listDims(first)
	if err != nil {
		return nil, err
	}
	for i, x := range list {
		sub, ok := x.([]any)
		if !ok {
			return nil, fmt.Errorf("ragged array: element %d is not a list", i)
		}
		subDims, err := listDims(sub)
		if err != nil {
			return nil, err
		}
		if len(subDims) != len(inner) {
			return nil, fmt.Errorf("ragged array: element %d has rank %d, want %d", i, len(subDims), len(inner))
		}
		for d := range inner {
			if subDims[d] != inner[d] {
				return nil, fmt.Errorf("ragged array: element %d has shape %v, want %v", i, subDims, inner)
			}
		}
	}
	return append(dims, inner...), nil
}

func scalarFromAny(kind Kind, raw any) (Value, error) {
	if raw == nil {
		if z := Zero(kind); z != nil {
			return z, nil
		}
		return nil, fmt.Errorf("no zero value for kind %s", kind)
	}
	if v, ok := raw.(Value); ok {
		if v.Kind() != kind {
			return nil, fmt.Errorf("value of kind %s where %s expected", v.Kind(), kind)
		}
		return v, nil
	}
	switch kind {
	case KindBool:
		if b, ok := raw.(bool); ok {
			return Bool(b), nil
		}
	case KindInt:
		if n, ok := toInt64(raw); ok {
			return Int(n), nil
		}
	case KindFloat:
		if f, ok := toFloat64(raw); ok {
			return Float(f), nil
		}
	case KindString:
		if s, ok := raw.(string); ok {
			return String(s), nil
		}
	case KindNodeRef:
		if n, ok := toInt64(raw); ok && n >= 0 {
			return NodeRef(NodeID(n)), nil
		}
	case KindObject:
		if m, ok := raw.(map[string]any); ok {
			obj := make(Object, len(m))
			for k, x := range m {
				v, err := FromAny(InferKind(x), x)
				if err != nil {
					return nil, fmt.Errorf("object[%q]: %w", k, err)
				}
				obj[k] = v
			}
			return obj, nil
		}
	}
	return nil, fmt.Errorf("cannot use %T (%v) as %s", raw, raw, kind)
}

// InferKind guesses the kind of a decoded value. Lists report the kind of
// their first scalar.
func InferKind(raw any) Kind {
	switch x := raw.(type) {
	case bool:
		return KindBool
	case string:
		return KindString
	case map[string]any:
		return KindObject
	case []any:
		if len(x) == 0 {
			return KindInt
		}
		return InferKind(x[0])
	case float32, float64:
		if f, _ := toFloat64(x); f == math.Trunc(f) {
			return KindInt
		}
		return KindFloat
	case json.Number:
		if _, err := x.Int64(); err == nil {
			return KindInt
		}
		return KindFloat
	default:
		if _, ok := toInt64(raw); ok {
			return KindInt
		}
		return KindInvalid
	}
}

func toInt64(raw any) (int64, bool) {
	switch n := raw.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), n <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int64(n), true
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
	}
	return 0, false
}

func toFloat64(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	if i, ok := toInt64(raw); ok {
		return float64(i), true
	}
	return 0, false
}

// ToAny converts a Value into plain Go data (bool, int64, float64, string,
// map[string]any, nested []any) for YAML/JSON output and comparisons.
func ToAny(v Value) any {
	switch val := v.(type) {
	case nil:
		return nil
	case Bool:
		return bool(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case String:
		return string(val)
	case NodeRef:
		return uint64(val)
	case Object:
		m := make(map[string]any, len(val))
		for k, x := range val {
			m[k] = ToAny(x)
		}
		return m
	case Array:
		if len(val.Dims) == 0 {
			return []any{}
		}
		out, _ := nestItems(val.Dims, val.Items)
		return out
	default:
		return nil
	}
}

func nestItems(dims []int, items []Value) ([]any, int) {
	out := make([]any, 0, dims[0])
	consumed := 0
	for i := 0; i < dims[0]; i++ {
		if len(dims) == 1 {
			if consumed < len(items) {
				out = append(out, ToAny(items[consumed]))
			}
			consumed++
			continue
		}
		sub, n := nestItems(dims[1:], items[consumed:])
		out = append(out, sub)
		consumed += n
	}
	return out, consumed
}
