package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface over the JSON value kinds.
type Value interface {
	canonValue()
}

// Null is the JSON null literal.
type Null struct{}

func (Null) canonValue() {}

// String is a JSON string.
type String string

func (String) canonValue() {}

// Number is a JSON number kept in its source text form.
type Number string

func (Number) canonValue() {}

// Bool is a JSON boolean.
type Bool bool

func (Bool) canonValue() {}

// Array is a JSON array.
type Array []Value

func (Array) canonValue() {}

// Object is a JSON object. Use SortedKeys for deterministic iteration.
type Object map[string]Value

func (Object) canonValue() {}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
// Go's native string order is UTF-8 and differs for astral characters.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// Parse decodes a JSON document into a Value tree. Numbers keep their
// source text.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("canon parse: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("canon parse: trailing data after document")
	}
	return fromAny(raw)
}

// FromGo encodes v with encoding/json and parses the result. Custom
// MarshalJSON methods (such as bignum tagging) therefore apply.
func FromGo(v any) (Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canon: marshal %T: %w", v, err)
	}
	return Parse(data)
}

func fromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case json.Number:
		return Number(val), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			cv, err := fromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = cv
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			cv, err := fromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = cv
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
