// Package command turns radio settings into the argument vector understood
// by the tuner's control handle.
package command

import (
	"strconv"

	"github.com/shuang886/sharky/internal/band"
	"github.com/shuang886/sharky/internal/settings"
)

// Flags of the control protocol. Each takes exactly one value.
const (
	FlagFM        = "-f"
	FlagAM        = "-a"
	FlagBlue      = "-b"
	FlagBluePulse = "-p"
	FlagRed       = "-r"
)

// Encode returns the tokens applying the selected fields of snap, in the
// order frequency, blue, pulse, red. Volume never produces tokens: it only
// drives the local playthrough gain. An empty result means there is nothing
// to send.
func Encode(fields settings.FieldSet, snap settings.Snapshot) []string {
	var argv []string

	if fields.Has(settings.Frequency) {
		argv = append(argv, Frequency(snap.Band, snap.Frequency())...)
	}
	if fields.Has(settings.BlueLight) {
		argv = append(argv, FlagBlue, strconv.Itoa(settings.ClampLight(snap.BlueLight)))
	}
	if fields.Has(settings.BlueLightPulse) {
		argv = append(argv, FlagBluePulse, strconv.Itoa(PulseWire(snap.BlueLightPulse)))
	}
	if fields.Has(settings.RedLight) {
		argv = append(argv, FlagRed, strconv.Itoa(settings.ClampLight(snap.RedLight)))
	}

	return argv
}

// Frequency encodes a tuning command: whole kilohertz for AM, megahertz with
// one decimal for FM.
func Frequency(b band.Band, f band.Frequency) []string {
	if b == band.AM {
		return []string{FlagAM, strconv.FormatInt(int64(f/band.Kilohertz), 10)}
	}
	return []string{FlagFM, strconv.FormatFloat(f.MHz(), 'f', 1, 64)}
}

// PulseWire maps a pulse setting to the device's inverted scale: 0 stays
// off, otherwise the device expects 128 minus the setting.
func PulseWire(v int) int {
	v = settings.ClampLight(v)
	if v == 0 {
		return 0
	}
	return 128 - v
}

// LightsOff is the command that turns every LED off.
func LightsOff() []string {
	return Encode(settings.LightFields(), settings.Snapshot{})
}
