package bignum

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TagKey is the object key used to tag big integers in JSON.
const TagKey = "$bigint"

type tagged struct {
	Value *string `json:"$bigint"`
}

// MarshalJSON encodes a as {"$bigint":"<decimal>"} so that values beyond the
// float64 safe range are never coerced through a JSON number.
func (a Int) MarshalJSON() ([]byte, error) {
	s := a.String()
	return json.Marshal(tagged{Value: &s})
}

// UnmarshalJSON accepts the tagged object, a bare decimal string, a JSON
// integer, or null (0). Numbers are parsed textually, never via float64.
func (a *Int) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("bignum: empty JSON value")
	}
	switch data[0] {
	case 'n':
		*a = Int{}
		return nil
	case '{':
		var t tagged
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("bignum: %w", err)
		}
		if t.Value == nil {
			return fmt.Errorf("bignum: object missing %q", TagKey)
		}
		return a.set(*t.Value)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("bignum: %w", err)
		}
		return a.set(s)
	default:
		return a.set(string(data))
	}
}

func (a *Int) set(s string) error {
	n, err := Parse(s)
	if err != nil {
		return err
	}
	*a = n
	return nil
}
