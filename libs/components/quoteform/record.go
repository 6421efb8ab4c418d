package quoteform

import (
	"bytes"
	"encoding/json"
)

// Record holds one value per declared field. A field can be empty but never
// absent, so the zero-cost copy semantics of an array are relied upon: pass
// Records by value to hand out snapshots.
type Record struct {
	values [fieldCount]string
}

// NewRecord returns a record with every field at its default.
func NewRecord() Record {
	var r Record
	for _, f := range Fields() {
		r.values[f] = f.defaultValue()
	}
	return r
}

// RecordFromMap builds a record from wire names. Fields missing from m keep
// their defaults; unknown keys are rejected.
func RecordFromMap(m map[string]string) (Record, error) {
	r := NewRecord()
	for name, value := range m {
		f, err := ParseField(name)
		if err != nil {
			return Record{}, err
		}
		r.values[f] = value
	}
	return r, nil
}

// Get returns the value of f, or "" for an undeclared field.
func (r Record) Get(f Field) string {
	if !f.Valid() {
		return ""
	}
	return r.values[f]
}

// With returns a copy of r with f set to value.
func (r Record) With(f Field, value string) Record {
	if f.Valid() {
		r.values[f] = value
	}
	return r
}

// Map returns every declared field keyed by wire name.
func (r Record) Map() map[string]string {
	m := make(map[string]string, fieldCount)
	for _, f := range Fields() {
		m[f.String()] = r.values[f]
	}
	return m
}

// Pair is a field name and value.
type Pair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Pairs lists the record in declaration order.
func (r Record) Pairs() []Pair {
	out := make([]Pair, 0, fieldCount)
	for _, f := range Fields() {
		out = append(out, Pair{Name: f.String(), Value: r.values[f]})
	}
	return out
}

// IsDefault reports whether every field still holds its default.
func (r Record) IsDefault() bool {
	return r == NewRecord()
}

// MarshalJSON renders the record as an object whose keys follow declaration
// order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range Fields() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.String())
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(r.values[f])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
