package scene

import (
	"fmt"
	"strconv"
	"strings"
)

// vectorWidths maps fixed-width tuple type names to their arity.
var vectorWidths = map[string]int{
	"float2":     2,
	"texCoord2f": 2,
	"float3":     3,
	"double3":    3,
	"color3f":    3,
	"normal3f":   3,
	"point3f":    3,
	"vector3f":   3,
	"float4":     4,
	"quatf":      4,
}

// Coerce converts a loosely typed input value (decoded literal text or
// host input) into the canonical Go representation for typeName:
//
//	bool                     -> bool
//	int, int64, uint         -> int64
//	float, double            -> float64
//	string, token, asset     -> string
//	float2 ... vector3f      -> []float64 of the fixed width
//	matrix4d                 -> [][]float64, 4 rows of 4
//	T[]                      -> []any of coerced T
//
// Inputs outside the vocabulary or not convertible return
// ErrMutationRejected wrapped with the reason.
func Coerce(v any, typeName string) (any, error) {
	if elem, ok := strings.CutSuffix(typeName, "[]"); ok {
		items, err := toSlice(v)
		if err != nil {
			return nil, fmt.Errorf("type %s: %s: %w", typeName, err, ErrMutationRejected)
		}
		out := make([]any, len(items))
		for i, item := range items {
			cv, err := Coerce(item, elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = cv
		}
		return out, nil
	}

	switch typeName {
	case "bool":
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(x))
			if err != nil {
				return nil, rejectValue(v, typeName)
			}
			return b, nil
		}
	case "int", "int64", "uint", "uchar":
		switch x := v.(type) {
		case int:
			return int64(x), nil
		case int64:
			return x, nil
		case float64:
			if x == float64(int64(x)) {
				return int64(x), nil
			}
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
			if err != nil {
				return nil, rejectValue(v, typeName)
			}
			return n, nil
		}
	case "float", "double", "timecode":
		if f, ok := toFloat(v); ok {
			return f, nil
		}
		if s, ok := v.(string); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, rejectValue(v, typeName)
			}
			return f, nil
		}
	case "string", "token", "asset":
		switch x := v.(type) {
		case string:
			return x, nil
		case bool:
			return strconv.FormatBool(x), nil
		case int64:
			return strconv.FormatInt(x, 10), nil
		case float64:
			return strconv.FormatFloat(x, 'g', -1, 64), nil
		}
	case "matrix4d":
		rows, err := toSlice(v)
		if err != nil || len(rows) != 4 {
			return nil, rejectValue(v, typeName)
		}
		m := make([][]float64, 4)
		for i, row := range rows {
			vec, err := toFloatSlice(row, 4)
			if err != nil {
				return nil, rejectValue(v, typeName)
			}
			m[i] = vec
		}
		return m, nil
	default:
		if width, ok := vectorWidths[typeName]; ok {
			vec, err := toFloatSlice(v, width)
			if err != nil {
				return nil, rejectValue(v, typeName)
			}
			return vec, nil
		}
		return nil, fmt.Errorf("unknown type name %q: %w", typeName, ErrMutationRejected)
	}
	return nil, rejectValue(v, typeName)
}

// ValueTypeNames lists the scalar type names offered when authoring a
// new attribute, in menu order.
var ValueTypeNames = []string{
	"string", "token", "bool", "int", "float", "double",
	"color3f", "vector3f", "point3f", "normal3f", "float2", "float3", "matrix4d",
}

// KnownTypeName reports whether typeName (optionally []-suffixed) is in
// the coercion vocabulary.
func KnownTypeName(typeName string) bool {
	base, _ := strings.CutSuffix(typeName, "[]")
	switch base {
	case "bool", "int", "int64", "uint", "uchar", "float", "double", "timecode",
		"string", "token", "asset", "matrix4d":
		return true
	}
	_, ok := vectorWidths[base]
	return ok
}

func rejectValue(v any, typeName string) error {
	return fmt.Errorf("cannot coerce %v (%T) to %s: %w", v, v, typeName, ErrMutationRejected)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}

func toSlice(v any) ([]any, error) {
	switch x := v.(type) {
	case []any:
		return x, nil
	case []float64:
		out := make([]any, len(x))
		for i, f := range x {
			out[i] = f
		}
		return out, nil
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("%v (%T) is not a list", v, v)
}

func toFloatSlice(v any, width int) ([]float64, error) {
	items, err := toSlice(v)
	if err != nil {
		return nil, err
	}
	if len(items) != width {
		return nil, fmt.Errorf("want %d components, got %d", width, len(items))
	}
	out := make([]float64, width)
	for i, item := range items {
		f, ok := toFloat(item)
		if !ok {
			return nil, fmt.Errorf("component %d is not a number", i)
		}
		out[i] = f
	}
	return out, nil
}
