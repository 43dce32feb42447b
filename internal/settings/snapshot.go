// Package settings models the controller-owned radio settings and how they
// are loaded from and written to the preferences store.
package settings

import (
	"math"

	"github.com/shuang886/sharky/internal/band"
)

const (
	// MaxLight is the brightest LED value and the fastest pulse.
	MaxLight = 127

	DefaultBand           = band.FM
	DefaultAM             = 1050 * band.Kilohertz
	DefaultFM             = 88500 * band.Kilohertz
	DefaultVolume         = 1.0
	DefaultBlueLight      = MaxLight
	DefaultBlueLightPulse = 0
	DefaultRedLight       = 0
)

// Snapshot is the full set of controller-owned settings at a point in time.
// The tuned frequency is remembered per band, so the current frequency is
// always the remembered value of the current band.
type Snapshot struct {
	Band           band.Band
	AMFrequency    band.Frequency
	FMFrequency    band.Frequency
	Volume         float64
	BlueLight      int
	BlueLightPulse int
	RedLight       int
}

// Defaults returns the built-in settings used when nothing is persisted.
func Defaults() Snapshot {
	return Snapshot{
		Band:           DefaultBand,
		AMFrequency:    DefaultAM,
		FMFrequency:    DefaultFM,
		Volume:         DefaultVolume,
		BlueLight:      DefaultBlueLight,
		BlueLightPulse: DefaultBlueLightPulse,
		RedLight:       DefaultRedLight,
	}
}

// DefaultFrequency is the fallback frequency for b.
func DefaultFrequency(b band.Band) band.Frequency {
	if b == band.AM {
		return DefaultAM
	}
	return DefaultFM
}

// Frequency is the tuned frequency.
func (s Snapshot) Frequency() band.Frequency {
	return s.Remembered(s.Band)
}

// Remembered is the last frequency tuned in b.
func (s Snapshot) Remembered(b band.Band) band.Frequency {
	if b == band.AM {
		return s.AMFrequency
	}
	return s.FMFrequency
}

func (s Snapshot) remember(b band.Band, f band.Frequency) Snapshot {
	if b == band.AM {
		s.AMFrequency = f
	} else {
		s.FMFrequency = f
	}
	return s
}

// WithFrequency tunes to f, switching to whichever band contains it.
func (s Snapshot) WithFrequency(f band.Frequency) (Snapshot, error) {
	b, err := band.Of(f)
	if err != nil {
		return s, err
	}
	s = s.remember(b, f)
	s.Band = b
	return s, nil
}

// WithBand switches to b, restoring the frequency remembered for it.
func (s Snapshot) WithBand(b band.Band) Snapshot {
	s.Band = b
	return s
}

func (s Snapshot) WithVolume(v float64) Snapshot {
	s.Volume = ClampVolume(v)
	return s
}

func (s Snapshot) WithBlueLight(v int) Snapshot {
	s.BlueLight = ClampLight(v)
	return s
}

func (s Snapshot) WithBlueLightPulse(v int) Snapshot {
	s.BlueLightPulse = ClampLight(v)
	return s
}

func (s Snapshot) WithRedLight(v int) Snapshot {
	s.RedLight = ClampLight(v)
	return s
}

// ClampVolume limits v to [0, 1]. NaN maps to 0.
func ClampVolume(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ClampLight limits v to [0, MaxLight].
func ClampLight(v int) int {
	if v < 0 {
		return 0
	}
	if v > MaxLight {
		return MaxLight
	}
	return v
}

// Diff reports which device-facing fields differ between two snapshots.
// A band change counts as a frequency change.
func Diff(prev, next Snapshot) FieldSet {
	changed := NewFieldSet()
	if prev.Band != next.Band || prev.Frequency() != next.Frequency() {
		changed.Add(Frequency)
	}
	if prev.Volume != next.Volume {
		changed.Add(Volume)
	}
	if prev.BlueLight != next.BlueLight {
		changed.Add(BlueLight)
	}
	if prev.BlueLightPulse != next.BlueLightPulse {
		changed.Add(BlueLightPulse)
	}
	if prev.RedLight != next.RedLight {
		changed.Add(RedLight)
	}
	return changed
}
