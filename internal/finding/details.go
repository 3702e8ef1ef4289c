package finding

import (
	"bytes"
	"encoding/json"
)

// Details is the free-form payload of a finding: either a plain string or a
// key/value mapping. The zero value is an empty mapping.
type Details struct {
	text   *string
	fields map[string]any
}

// TextDetails wraps a string payload.
func TextDetails(s string) Details {
	return Details{text: &s}
}

// FieldDetails wraps a mapping payload.
func FieldDetails(m map[string]any) Details {
	return Details{fields: m}
}

// Text returns the string payload and whether the details are a string.
func (d Details) Text() (string, bool) {
	if d.text == nil {
		return "", false
	}
	return *d.text, true
}

// Fields returns the mapping payload, nil when the details are a string or empty.
func (d Details) Fields() map[string]any {
	return d.fields
}

// Field returns a single mapping entry.
func (d Details) Field(key string) (any, bool) {
	if d.fields == nil {
		return nil, false
	}
	v, ok := d.fields[key]
	return v, ok
}

// Number returns a numeric mapping entry.
func (d Details) Number(key string) (float64, bool) {
	v, ok := d.Field(key)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// IsZero reports whether no payload was set.
func (d Details) IsZero() bool {
	return d.text == nil && d.fields == nil
}

// MarshalJSON writes the string or mapping; empty details encode as {}.
func (d Details) MarshalJSON() ([]byte, error) {
	if d.text != nil {
		return json.Marshal(*d.text)
	}
	if d.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d.fields)
}

// UnmarshalJSON accepts a string or an object. Any other JSON value is dropped.
func (d *Details) UnmarshalJSON(data []byte) error {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return err
	}
	*d = detailsFrom(v)
	return nil
}

func detailsFrom(v any) Details {
	switch t := v.(type) {
	case string:
		return TextDetails(t)
	case map[string]any:
		return FieldDetails(t)
	case Details:
		return t
	default:
		return Details{}
	}
}
