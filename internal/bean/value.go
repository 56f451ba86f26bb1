package bean

import (
	"encoding/json"
	"reflect"
)

// EqualsFunc reports whether assigning newValue over oldValue is a no-op.
type EqualsFunc func(oldValue, newValue any) bool

// DefaultEquals is the equality rule used unless a property overrides it.
// Scalars compare with ==. Structured values (maps, slices) always count
// as changed, even the identical reference, because nested mutation
// cannot be observed otherwise. nil over nil is unchanged.
func DefaultEquals(oldValue, newValue any) bool {
	if newValue == nil {
		return oldValue == nil
	}
	if isStructured(newValue) || isStructured(oldValue) {
		return false
	}
	if !isComparable(newValue) || !isComparable(oldValue) {
		return false
	}
	return oldValue == newValue
}

func isStructured(v any) bool {
	switch v.(type) {
	case nil, bool, float64, string:
		return false
	case map[string]any, []any:
		return true
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Pointer:
		return true
	}
	return false
}

func isComparable(v any) bool {
	if v == nil {
		return true
	}
	return reflect.TypeOf(v).Comparable()
}

// normalize maps Go values onto the JSON value model the store holds:
// every numeric kind becomes float64, foreign maps/slices/structs are
// converted through JSON. Functions and channels pass through untouched
// so the persistence layer can reject them.
func normalize(v any) any {
	switch t := v.(type) {
	case nil, bool, float64, string:
		return v
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32:
		return rv.Float()
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.String()
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Pointer:
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return v
		}
		var out any
		if err := json.Unmarshal(data, &out); err != nil {
			return v
		}
		return out
	}
	return v
}

// cloneValue deep-copies maps and slices of the JSON value model.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}
