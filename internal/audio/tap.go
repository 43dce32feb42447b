package audio

import (
	"math"
	"sync"
	"sync/atomic"
)

// TapKind identifies one of the optional consumers of a capture stream.
type TapKind int

const (
	Playthrough TapKind = iota
	Recognition
)

func (k TapKind) String() string {
	switch k {
	case Playthrough:
		return "playthrough"
	case Recognition:
		return "recognition"
	default:
		return "unknown"
	}
}

// Tap consumes captured mono frames. Frames are shared between taps and
// must not be modified. Consume is called on the capture goroutine and
// must not block.
type Tap interface {
	Consume(samples []float32)
}

// TapFunc adapts a function to Tap.
type TapFunc func(samples []float32)

func (f TapFunc) Consume(samples []float32) { f(samples) }

// tapSet fans frames out to the attached taps.
type tapSet struct {
	mu   sync.RWMutex
	taps map[TapKind]Tap
}

func newTapSet() *tapSet {
	return &tapSet{taps: map[TapKind]Tap{}}
}

func (s *tapSet) attach(kind TapKind, tap Tap) {
	s.mu.Lock()
	s.taps[kind] = tap
	s.mu.Unlock()
}

func (s *tapSet) detach(kind TapKind) {
	s.mu.Lock()
	delete(s.taps, kind)
	s.mu.Unlock()
}

func (s *tapSet) clear() {
	s.mu.Lock()
	s.taps = map[TapKind]Tap{}
	s.mu.Unlock()
}

func (s *tapSet) dispatch(samples []float32) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.taps {
		t.Consume(samples)
	}
}

// playthrough queues frames for a local output and scales them by a gain
// that may change at any time.
type playthrough struct {
	gain    atomic.Uint32
	frames  chan []float32
	pending []float32
}

func newPlaythrough(depth int) *playthrough {
	p := &playthrough{frames: make(chan []float32, depth)}
	p.SetGain(1)
	return p
}

// Consume drops the frame when the output has fallen behind.
func (p *playthrough) Consume(samples []float32) {
	select {
	case p.frames <- samples:
	default:
	}
}

func (p *playthrough) SetGain(v float32) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	p.gain.Store(math.Float32bits(v))
}

func (p *playthrough) Gain() float32 {
	return math.Float32frombits(p.gain.Load())
}

// read fills dst from queued frames without blocking, padding with silence.
// It is only called from the output goroutine and never fails.
func (p *playthrough) read(dst []float32) (int, error) {
	gain := p.Gain()
	n := 0
	for n < len(dst) {
		if len(p.pending) == 0 {
			select {
			case f := <-p.frames:
				p.pending = f
			default:
				clear(dst[n:])
				return len(dst), nil
			}
		}
		c := copy(dst[n:], p.pending)
		applyGain(dst[n:n+c], gain)
		p.pending = p.pending[c:]
		n += c
	}
	return n, nil
}

func applyGain(samples []float32, gain float32) {
	if gain == 1 {
		return
	}
	for i := range samples {
		samples[i] *= gain
	}
}
