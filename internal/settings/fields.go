package settings

import (
	"sort"
	"strings"
)

// Field names a device-facing setting that can be applied independently.
type Field int

const (
	Frequency Field = iota
	Volume
	BlueLight
	BlueLightPulse
	RedLight
)

var fieldNames = map[Field]string{
	Frequency:      "frequency",
	Volume:         "volume",
	BlueLight:      "blueLight",
	BlueLightPulse: "blueLightPulse",
	RedLight:       "redLight",
}

func (f Field) String() string {
	if n, ok := fieldNames[f]; ok {
		return n
	}
	return "unknown"
}

// FieldSet is a set of fields.
type FieldSet map[Field]struct{}

func NewFieldSet(fields ...Field) FieldSet {
	s := make(FieldSet, len(fields))
	for _, f := range fields {
		s[f] = struct{}{}
	}
	return s
}

// AllFields selects every field.
func AllFields() FieldSet {
	return NewFieldSet(Frequency, Volume, BlueLight, BlueLightPulse, RedLight)
}

// LightFields selects the three LED fields.
func LightFields() FieldSet {
	return NewFieldSet(BlueLight, BlueLightPulse, RedLight)
}

func (s FieldSet) Has(f Field) bool {
	_, ok := s[f]
	return ok
}

func (s FieldSet) Add(f Field) { s[f] = struct{}{} }

func (s FieldSet) Empty() bool { return len(s) == 0 }

func (s FieldSet) String() string {
	names := make([]string, 0, len(s))
	for f := range s {
		names = append(names, f.String())
	}
	sort.Strings(names)
	return "{" + strings.Join(names, ",") + "}"
}
