package device

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/shuang886/sharky/internal/audio"
)

type recordingTransport struct {
	mu     sync.Mutex
	sent   [][]string
	gate   chan struct{}
	closed bool
}

func (r *recordingTransport) Send(argv []string) error {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, argv)
	return nil
}

func (r *recordingTransport) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recordingTransport) commands() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.sent...)
}

type fakeStream struct {
	mu       sync.Mutex
	taps     map[audio.TapKind]audio.Tap
	gain     float32
	closed   bool
	detaches int
}

func newFakeStream() *fakeStream {
	return &fakeStream{taps: map[audio.TapKind]audio.Tap{}}
}

func (f *fakeStream) Attach(kind audio.TapKind, tap audio.Tap) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taps[kind] = tap
}

func (f *fakeStream) Detach(kind audio.TapKind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detaches++
	delete(f.taps, kind)
}

func (f *fakeStream) Playthrough() audio.Tap { return audio.TapFunc(func([]float32) {}) }

func (f *fakeStream) SetGain(v float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gain = v
}

func (f *fakeStream) SampleRate() int { return 48000 }

func (f *fakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.taps = map[audio.TapKind]audio.Tap{}
	return nil
}

func (f *fakeStream) has(kind audio.TapKind) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.taps[kind]
	return ok
}

func TestCommandsDeliveredInOrder(t *testing.T) {
	tr := &recordingTransport{}
	s := newSession(tr, nil, 16, zerolog.Nop())

	want := [][]string{
		{"-f", "99.9"},
		{"-b", "127"},
		{"-p", "0"},
		{"-r", "0"},
	}
	for _, argv := range want {
		s.SendCommand(argv)
	}
	s.SendCommand(nil)

	if err := s.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	if got := tr.commands(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if !tr.closed {
		t.Error("expected transport to be closed")
	}
}

func TestSendCommandDoesNotBlock(t *testing.T) {
	tr := &recordingTransport{gate: make(chan struct{})}
	s := newSession(tr, nil, 2, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			s.SendCommand([]string{"-r", "1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SendCommand blocked on a stalled transport")
	}

	close(tr.gate)
	s.Close()

	// one in flight plus a full queue
	if n := len(tr.commands()); n < 1 || n > 3 {
		t.Errorf("expected overflow to be dropped, got %d delivered", n)
	}
}

func TestSendAfterCloseIgnored(t *testing.T) {
	tr := &recordingTransport{}
	s := newSession(tr, nil, 4, zerolog.Nop())
	s.Close()
	s.SendCommand([]string{"-f", "88.5"})

	if len(tr.commands()) != 0 {
		t.Error("expected no delivery after close")
	}
	if err := s.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
}

func TestCallerArgvCopied(t *testing.T) {
	tr := &recordingTransport{gate: make(chan struct{})}
	s := newSession(tr, nil, 4, zerolog.Nop())

	argv := []string{"-f", "99.9"}
	s.SendCommand(argv)
	argv[1] = "mutated"
	close(tr.gate)
	s.Close()

	if got := tr.commands(); got[0][1] != "99.9" {
		t.Errorf("expected queued command to be unaffected by caller mutation, got %v", got[0])
	}
}

func TestPlaythroughAttachedAndStopDetaches(t *testing.T) {
	stream := newFakeStream()
	s := newSession(&recordingTransport{}, stream, 4, zerolog.Nop())

	if !stream.has(audio.Playthrough) {
		t.Fatal("expected playthrough to be attached on open")
	}

	s.AttachTap(audio.Recognition, audio.TapFunc(func([]float32) {}))
	if !stream.has(audio.Recognition) {
		t.Fatal("expected recognition tap attached")
	}

	s.SetPlaythroughGain(0.25)
	if stream.gain != 0.25 {
		t.Errorf("expected gain 0.25, got %f", stream.gain)
	}
	if s.SampleRate() != 48000 {
		t.Errorf("expected stream sample rate, got %d", s.SampleRate())
	}

	s.Stop()
	if !stream.closed {
		t.Error("expected capture stopped")
	}
	if stream.has(audio.Recognition) || stream.has(audio.Playthrough) {
		t.Error("expected all taps removed after stop")
	}

	s.AttachTap(audio.Recognition, audio.TapFunc(func([]float32) {}))
	if stream.has(audio.Recognition) {
		t.Error("expected attach after stop to be ignored")
	}

	s.Stop()
	s.Close()
}

func TestDetachTapAfterStopIgnored(t *testing.T) {
	stream := newFakeStream()
	s := newSession(&recordingTransport{}, stream, 4, zerolog.Nop())

	s.AttachTap(audio.Recognition, audio.TapFunc(func([]float32) {}))
	s.DetachTap(audio.Recognition)
	if stream.has(audio.Recognition) {
		t.Fatal("expected recognition tap detached")
	}

	s.Stop()
	s.DetachTap(audio.Recognition)
	stream.mu.Lock()
	detaches := stream.detaches
	stream.mu.Unlock()
	if detaches != 1 {
		t.Errorf("expected the stopped stream left alone, got %d detaches", detaches)
	}
	s.Close()
}

func TestControlOnlySession(t *testing.T) {
	s := newSession(&recordingTransport{}, nil, 4, zerolog.Nop())
	s.SetPlaythroughGain(1)
	s.AttachTap(audio.Recognition, audio.TapFunc(func([]float32) {}))
	s.DetachTap(audio.Recognition)
	if s.SampleRate() != 0 {
		t.Errorf("expected zero sample rate without audio, got %d", s.SampleRate())
	}
	if s.Detached() {
		t.Error("a session with a transport is attached")
	}
	s.Close()
}

func TestDetached(t *testing.T) {
	d := Detached()
	d.SendCommand([]string{"-f", "99.9"})
	d.SetPlaythroughGain(0.5)
	d.AttachTap(audio.Recognition, audio.TapFunc(func([]float32) {}))
	d.DetachTap(audio.Recognition)
	d.Stop()
	if !d.Detached() {
		t.Error("expected detached")
	}
	if err := d.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOpenTransportUnavailable(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{name: "none", opts: Options{Control: ControlNone}},
		{name: "unknown", opts: Options{Control: "usb"}},
		{name: "serial unconfigured", opts: Options{Control: ControlSerial}},
		{name: "missing helper", opts: Options{Control: ControlExec, Helper: "sharky-helper-that-does-not-exist"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OpenTransport(tt.opts, zerolog.Nop())
			if !errors.Is(err, ErrUnavailable) {
				t.Errorf("expected ErrUnavailable, got %v", err)
			}
		})
	}
}

type fakeCapture struct {
	devices []audio.AudioDevice
	opened  *audio.AudioDevice
	stream  *fakeStream
}

func (f *fakeCapture) ListDevices() ([]audio.AudioDevice, error) { return f.devices, nil }

func (f *fakeCapture) Open(opts audio.StreamOptions) (audio.Stream, error) {
	f.opened = &opts.Device
	return f.stream, nil
}

func (f *fakeCapture) Close() error { return nil }

func TestOpenStreamMatchesPrefix(t *testing.T) {
	capture := &fakeCapture{
		devices: []audio.AudioDevice{{ID: "a", Name: "Webcam"}, {ID: "b", Name: "radioSHARK 2"}},
		stream:  newFakeStream(),
	}

	if _, err := openStream(Options{SampleRate: 48000}, capture, zerolog.Nop()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if capture.opened == nil || capture.opened.ID != "b" {
		t.Errorf("expected the radio endpoint to be opened, got %+v", capture.opened)
	}

	capture.devices = capture.devices[:1]
	if _, err := openStream(Options{}, capture, zerolog.Nop()); err == nil {
		t.Error("expected an error without a matching device")
	}
}
