package bean

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
)

// Type tags prefixed to locally persisted values.
const (
	tagObject = 'o'
	tagBool   = 'b'
	tagNumber = 'n'
	tagString = 's'
)

// Encode renders v as a type-tagged string: "o" + JSON for objects,
// arrays and nil, "b" + true/false, "n" + decimal, "s" + raw string.
func Encode(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return string(tagObject) + "null", nil
	case bool:
		return string(tagBool) + strconv.FormatBool(t), nil
	case float64:
		return string(tagNumber) + strconv.FormatFloat(t, 'f', -1, 64), nil
	case string:
		return string(tagString) + t, nil
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return "", &SerializationError{Kind: reflect.ValueOf(v).Kind().String()}
	}

	n := normalize(v)
	switch n.(type) {
	case bool, float64, string:
		return Encode(n)
	}

	data, err := json.Marshal(n)
	if err != nil {
		return "", &SerializationError{Kind: fmt.Sprintf("%T", v)}
	}
	return string(tagObject) + string(data), nil
}

// Decode reverses Encode. Objects are shallow-merged onto a copy of def
// when def is an object, so fields added to the defaults after the value
// was written survive. Arrays replace def wholesale. Untagged input is
// returned as a plain string.
func Decode(raw string, def any) (any, error) {
	if raw == "" {
		return "", nil
	}

	body := raw[1:]
	switch raw[0] {
	case tagObject:
		if body == "null" {
			return nil, nil
		}
		var decoded any
		if err := json.Unmarshal([]byte(body), &decoded); err != nil {
			return nil, fmt.Errorf("failed to decode object: %w", err)
		}
		obj, ok := decoded.(map[string]any)
		if !ok {
			return decoded, nil
		}
		base, ok := def.(map[string]any)
		if !ok {
			return obj, nil
		}
		merged := cloneValue(base).(map[string]any)
		for k, v := range obj {
			merged[k] = v
		}
		return merged, nil
	case tagBool:
		return body == "true", nil
	case tagNumber:
		f, err := strconv.ParseFloat(body, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode number: %w", err)
		}
		return f, nil
	case tagString:
		return body, nil
	}
	return raw, nil
}
