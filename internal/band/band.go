// Package band holds the tuning rules for the AM and FM broadcast bands.
package band

import (
	"errors"
	"fmt"
	"strings"
)

// ErrOutOfRange is returned when a frequency lies outside every band.
var ErrOutOfRange = errors.New("frequency outside all bands")

// Band is one of the supported tuning ranges.
type Band int

const (
	AM Band = iota
	FM
)

// Direction of a tuning step.
type Direction int

const (
	Down Direction = -1
	Up   Direction = 1
)

// Range is a closed frequency interval.
type Range struct {
	Min Frequency
	Max Frequency
}

func (r Range) Contains(f Frequency) bool {
	return f >= r.Min && f <= r.Max
}

type spec struct {
	tag  string
	name string
	rng  Range
	step Frequency
}

// declaration order drives Next
var bands = [...]spec{
	AM: {tag: "am", name: "AM", rng: Range{Min: 520 * Kilohertz, Max: 1710 * Kilohertz}, step: 10 * Kilohertz},
	FM: {tag: "fm", name: "FM", rng: Range{Min: 87500 * Kilohertz, Max: 108 * Megahertz}, step: 200 * Kilohertz},
}

// All returns every band in declaration order.
func All() []Band {
	out := make([]Band, len(bands))
	for i := range bands {
		out[i] = Band(i)
	}
	return out
}

func (b Band) Valid() bool { return b >= 0 && int(b) < len(bands) }

func (b Band) Range() Range    { return bands[b].rng }
func (b Band) Step() Frequency { return bands[b].step }

// Name is the display name, e.g. "FM".
func (b Band) Name() string {
	if !b.Valid() {
		return fmt.Sprintf("Band(%d)", int(b))
	}
	return bands[b].name
}

// Tag is the lowercase persisted form, e.g. "fm".
func (b Band) Tag() string {
	if !b.Valid() {
		return ""
	}
	return bands[b].tag
}

func (b Band) String() string { return b.Name() }

// Next returns the cyclic successor of b.
func (b Band) Next() Band {
	return Band((int(b) + 1) % len(bands))
}

// Format renders f the way the band is usually displayed: whole kilohertz
// for AM, one decimal of megahertz for FM.
func (b Band) Format(f Frequency) string {
	if b == AM {
		return fmt.Sprintf("%d kHz", int64(f/Kilohertz))
	}
	return fmt.Sprintf("%.1f MHz", f.MHz())
}

func (b Band) MarshalText() ([]byte, error) {
	if !b.Valid() {
		return nil, fmt.Errorf("invalid band %d", int(b))
	}
	return []byte(b.Tag()), nil
}

func (b *Band) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// Parse accepts a band tag or name, case-insensitively.
func Parse(s string) (Band, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, sp := range bands {
		if sp.tag == s {
			return Band(i), nil
		}
	}
	return 0, fmt.Errorf("unknown band %q", s)
}

// Of returns the unique band whose range contains f.
func Of(f Frequency) (Band, error) {
	for i, sp := range bands {
		if sp.rng.Contains(f) {
			return Band(i), nil
		}
	}
	return 0, fmt.Errorf("%v: %w", f, ErrOutOfRange)
}

// ClampStep moves f one step in dir, saturating at the band limits.
// Stepping at a limit returns f unchanged.
func ClampStep(b Band, f Frequency, dir Direction) Frequency {
	r := b.Range()
	next := f + Frequency(dir)*b.Step()
	if next > r.Max {
		next = r.Max
	}
	if next < r.Min {
		next = r.Min
	}
	return next
}
