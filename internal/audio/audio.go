package audio

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Capture discovers input devices and opens capture streams on them.
type Capture interface {
	ListDevices() ([]AudioDevice, error)
	Open(opts StreamOptions) (Stream, error)
	Close() error
}

// Stream is a running capture whose frames are fanned out to attached taps.
// Attaching or detaching a tap never interrupts the capture. Each stream
// also owns a playthrough output, exposed as a tap, whose gain can change
// while it plays.
type Stream interface {
	Attach(kind TapKind, tap Tap)
	Detach(kind TapKind)
	Playthrough() Tap
	SetGain(v float32)
	SampleRate() int
	Close() error
}

// StreamOptions selects the input device and frame format.
type StreamOptions struct {
	Device          AudioDevice
	SampleRate      int
	FramesPerBuffer int
}

// AudioDevice represents an audio input device
type AudioDevice struct {
	ID       string
	Name     string
	Channels int
	Default  bool
}

// Open picks the backend named by kind.
func Open(kind string, log zerolog.Logger) (Capture, error) {
	switch kind {
	case "", "portaudio":
		return NewPortAudio(log)
	case "pulse":
		return NewPulse(log)
	default:
		return nil, fmt.Errorf("unknown audio backend %q", kind)
	}
}

// FindByPrefix returns the first device whose name starts with one of prefixes.
func FindByPrefix(devices []AudioDevice, prefixes []string) (AudioDevice, bool) {
	for _, d := range devices {
		for _, p := range prefixes {
			if p != "" && strings.HasPrefix(d.Name, p) {
				return d, true
			}
		}
	}
	return AudioDevice{}, false
}

// downmixInterleaved averages interleaved channels into a new mono slice.
func downmixInterleaved(input []float32, channels, frames int) []float32 {
	out := make([]float32, frames)
	if channels <= 1 {
		copy(out, input[:frames])
		return out
	}
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += input[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
