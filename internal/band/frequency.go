package band

import (
	"math"
	"strconv"
)

// Frequency is a radio frequency in hertz. Integer hertz keeps stepping exact.
type Frequency int64

const (
	Hertz     Frequency = 1
	Kilohertz           = 1000 * Hertz
	Megahertz           = 1000 * Kilohertz
)

// KHz returns the frequency for v kilohertz.
func KHz(v float64) Frequency {
	return Frequency(math.Round(v * float64(Kilohertz)))
}

// MHz returns the frequency for v megahertz.
func MHz(v float64) Frequency {
	return Frequency(math.Round(v * float64(Megahertz)))
}

func (f Frequency) Hz() float64  { return float64(f) }
func (f Frequency) KHz() float64 { return float64(f) / float64(Kilohertz) }
func (f Frequency) MHz() float64 { return float64(f) / float64(Megahertz) }

// String formats in megahertz at or above 1 MHz and in kilohertz below it.
func (f Frequency) String() string {
	if f >= Megahertz {
		return strconv.FormatFloat(f.MHz(), 'f', 1, 64) + " MHz"
	}
	return strconv.FormatInt(int64(f/Kilohertz), 10) + " kHz"
}
