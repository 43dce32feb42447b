package device

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/shuang886/sharky/internal/audio"
)

// ErrUnavailable reports that no radio could be opened.
var ErrUnavailable = errors.New("radio device unavailable")

const (
	DefaultHelper    = "shark2"
	DefaultQueueSize = 64
)

// DefaultNamePrefixes match the radio's audio endpoint.
var DefaultNamePrefixes = []string{"RadioSHARK", "radioSHARK"}

// Device is the radio as seen by its owner. SendCommand never blocks on
// I/O and commands are delivered in submission order. Stop halts capture
// and detaches every tap; Close additionally delivers any queued commands
// and releases the hardware. Both are idempotent.
type Device interface {
	SendCommand(argv []string)
	SetPlaythroughGain(v float64)
	AttachTap(kind audio.TapKind, tap audio.Tap)
	DetachTap(kind audio.TapKind)
	SampleRate() int
	Detached() bool
	Stop()
	Close() error
}

// Options configure Open.
type Options struct {
	NamePrefixes    []string
	Control         string
	SerialPort      string
	BaudRate        int
	Helper          string
	QueueSize       int
	SampleRate      int
	FramesPerBuffer int
}

// Session drives an attached radio.
type Session struct {
	transport Transport
	stream    audio.Stream
	log       zerolog.Logger

	queue chan []string
	done  chan struct{}

	mu      sync.Mutex
	closed  bool
	stopped bool
}

// Open connects to the radio's control channel and, when capture is
// available, starts its audio endpoint with playthrough attached. A
// missing audio endpoint leaves a control-only session; a missing
// control channel fails with ErrUnavailable.
func Open(opts Options, capture audio.Capture, log zerolog.Logger) (*Session, error) {
	log = log.With().Str("component", "device").Logger()

	transport, err := OpenTransport(opts, log)
	if err != nil {
		return nil, err
	}

	var stream audio.Stream
	if capture != nil {
		stream, err = openStream(opts, capture, log)
		if err != nil {
			log.Warn().Err(err).Msg("Radio audio unavailable, continuing without capture")
		}
	}

	return newSession(transport, stream, opts.QueueSize, log), nil
}

func openStream(opts Options, capture audio.Capture, log zerolog.Logger) (audio.Stream, error) {
	devices, err := capture.ListDevices()
	if err != nil {
		return nil, err
	}
	prefixes := opts.NamePrefixes
	if len(prefixes) == 0 {
		prefixes = DefaultNamePrefixes
	}
	dev, ok := audio.FindByPrefix(devices, prefixes)
	if !ok {
		return nil, fmt.Errorf("no audio device matching %v", prefixes)
	}
	log.Info().Str("device", dev.Name).Msg("Found radio audio endpoint")

	return capture.Open(audio.StreamOptions{
		Device:          dev,
		SampleRate:      opts.SampleRate,
		FramesPerBuffer: opts.FramesPerBuffer,
	})
}

func newSession(transport Transport, stream audio.Stream, queueSize int, log zerolog.Logger) *Session {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	s := &Session{
		transport: transport,
		stream:    stream,
		log:       log,
		queue:     make(chan []string, queueSize),
		done:      make(chan struct{}),
	}
	if stream != nil {
		stream.Attach(audio.Playthrough, stream.Playthrough())
	}
	go s.dispatch()
	return s
}

func (s *Session) dispatch() {
	defer close(s.done)
	for argv := range s.queue {
		if err := s.transport.Send(argv); err != nil {
			s.log.Debug().Err(err).Strs("argv", argv).Msg("Command failed")
		}
	}
}

// SendCommand enqueues argv for delivery. Empty lists are ignored. When
// the queue is full the command is dropped.
func (s *Session) SendCommand(argv []string) {
	if len(argv) == 0 {
		return
	}
	cmd := append([]string(nil), argv...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- cmd:
	default:
		s.log.Debug().Strs("argv", cmd).Msg("Command queue full, dropping")
	}
}

func (s *Session) SetPlaythroughGain(v float64) {
	if s.stream != nil {
		s.stream.SetGain(float32(v))
	}
}

func (s *Session) AttachTap(kind audio.TapKind, tap audio.Tap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil || s.stopped {
		return
	}
	s.stream.Attach(kind, tap)
}

func (s *Session) DetachTap(kind audio.TapKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil || s.stopped {
		return
	}
	s.stream.Detach(kind)
}

// SampleRate reports the capture rate, or zero without audio.
func (s *Session) SampleRate() int {
	if s.stream == nil {
		return 0
	}
	return s.stream.SampleRate()
}

func (s *Session) Detached() bool { return false }

func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	if s.stream != nil {
		if err := s.stream.Close(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to stop capture")
		}
	}
}

func (s *Session) Close() error {
	s.Stop()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	return s.transport.Close()
}

// detached stands in for a missing radio. Every operation is a no-op.
type detached struct{}

// Detached returns a Device that accepts and discards everything.
func Detached() Device { return detached{} }

func (detached) SendCommand([]string)               {}
func (detached) SetPlaythroughGain(float64)         {}
func (detached) AttachTap(audio.TapKind, audio.Tap) {}
func (detached) DetachTap(audio.TapKind)            {}
func (detached) SampleRate() int                    { return 0 }
func (detached) Detached() bool                     { return true }
func (detached) Stop()                              {}
func (detached) Close() error                       { return nil }
