package audio

import (
	"fmt"

	"github.com/jfreymuth/pulse"
	"github.com/rs/zerolog"
)

const pulseLatency = 0.05

type pulseCapture struct {
	client *pulse.Client
	log    zerolog.Logger
}

// NewPulse creates a capture backed by a PulseAudio (or PipeWire) server.
func NewPulse(log zerolog.Logger) (Capture, error) {
	client, err := pulse.NewClient(pulse.ClientApplicationName("sharky"))
	if err != nil {
		return nil, fmt.Errorf("connect to pulse: %w", err)
	}
	return &pulseCapture{client: client, log: log.With().Str("backend", "pulse").Logger()}, nil
}

func (p *pulseCapture) ListDevices() ([]AudioDevice, error) {
	sources, err := p.client.ListSources()
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	result := make([]AudioDevice, 0, len(sources))
	for _, s := range sources {
		result = append(result, AudioDevice{
			ID:       s.ID(),
			Name:     s.Name(),
			Channels: 1,
		})
	}
	return result, nil
}

func (p *pulseCapture) findSource(id string) (*pulse.Source, error) {
	sources, err := p.client.ListSources()
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	for _, s := range sources {
		if s.ID() == id {
			return s, nil
		}
	}
	return nil, fmt.Errorf("device not found: %s", id)
}

func (p *pulseCapture) Open(opts StreamOptions) (Stream, error) {
	source, err := p.findSource(opts.Device.ID)
	if err != nil {
		return nil, err
	}

	s := &pulseStream{
		taps:        newTapSet(),
		playthrough: newPlaythrough(playthroughDepth),
		sampleRate:  opts.SampleRate,
		log:         p.log.With().Str("device", source.Name()).Logger(),
	}

	s.record, err = p.client.NewRecord(pulse.Float32Writer(s.write),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(opts.SampleRate),
		pulse.RecordLatency(pulseLatency),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open record stream: %w", err)
	}

	s.playback, err = p.client.NewPlayback(pulse.Float32Reader(s.playthrough.read),
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(opts.SampleRate),
		pulse.PlaybackLatency(pulseLatency),
	)
	if err != nil {
		s.record.Close()
		return nil, fmt.Errorf("failed to open playback stream: %w", err)
	}

	s.record.Start()
	s.playback.Start()
	s.log.Info().Int("sample_rate", opts.SampleRate).Msg("Capture started")
	return s, nil
}

func (p *pulseCapture) Close() error {
	p.client.Close()
	return nil
}

type pulseStream struct {
	record      *pulse.RecordStream
	playback    *pulse.PlaybackStream
	taps        *tapSet
	playthrough *playthrough
	sampleRate  int
	log         zerolog.Logger
}

// write receives frames from the server; the buffer is reused afterwards.
func (s *pulseStream) write(buf []float32) (int, error) {
	frame := make([]float32, len(buf))
	copy(frame, buf)
	s.taps.dispatch(frame)
	return len(buf), nil
}

func (s *pulseStream) Attach(kind TapKind, tap Tap) { s.taps.attach(kind, tap) }
func (s *pulseStream) Detach(kind TapKind)          { s.taps.detach(kind) }
func (s *pulseStream) Playthrough() Tap             { return s.playthrough }
func (s *pulseStream) SetGain(v float32)            { s.playthrough.SetGain(v) }
func (s *pulseStream) SampleRate() int              { return s.sampleRate }

func (s *pulseStream) Close() error {
	s.taps.clear()
	s.record.Stop()
	s.playback.Stop()
	s.record.Close()
	s.playback.Close()
	s.log.Info().Msg("Capture stopped")
	return nil
}
