package audio

import (
	"context"
	"fmt"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const playthroughDepth = 8

type portAudioCapture struct {
	log zerolog.Logger
}

// NewPortAudio creates a new PortAudio-based audio capture
func NewPortAudio(log zerolog.Logger) (Capture, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &portAudioCapture{log: log.With().Str("backend", "portaudio").Logger()}, nil
}

func (p *portAudioCapture) ListDevices() ([]AudioDevice, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	result := make([]AudioDevice, 0, len(devices))
	defaultDevice, _ := portaudio.DefaultInputDevice()

	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			result = append(result, AudioDevice{
				ID:       d.Name,
				Name:     d.Name,
				Channels: d.MaxInputChannels,
				Default:  d == defaultDevice,
			})
		}
	}

	return result, nil
}

func (p *portAudioCapture) Open(opts StreamOptions) (Stream, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	var device *portaudio.DeviceInfo
	for _, d := range devices {
		if d.Name == opts.Device.ID && d.MaxInputChannels > 0 {
			device = d
			break
		}
	}
	if device == nil {
		return nil, fmt.Errorf("device not found: %s", opts.Device.ID)
	}

	output, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return nil, fmt.Errorf("failed to get default output device: %w", err)
	}

	channels := min(device.MaxInputChannels, 2)
	inBuf := make([]float32, opts.FramesPerBuffer*channels)
	in, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(opts.SampleRate),
		FramesPerBuffer: opts.FramesPerBuffer,
	}, inBuf)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}

	outBuf := make([]float32, opts.FramesPerBuffer)
	out, err := portaudio.OpenStream(portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   output,
			Channels: 1,
			Latency:  output.DefaultLowOutputLatency,
		},
		SampleRate:      float64(opts.SampleRate),
		FramesPerBuffer: opts.FramesPerBuffer,
	}, outBuf)
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("failed to open playthrough stream: %w", err)
	}

	if err := in.Start(); err != nil {
		in.Close()
		out.Close()
		return nil, fmt.Errorf("failed to start audio stream: %w", err)
	}
	if err := out.Start(); err != nil {
		in.Abort()
		in.Close()
		out.Close()
		return nil, fmt.Errorf("failed to start playthrough stream: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	eg, ctx := errgroup.WithContext(ctx)
	s := &portAudioStream{
		in:          in,
		out:         out,
		taps:        newTapSet(),
		playthrough: newPlaythrough(playthroughDepth),
		sampleRate:  opts.SampleRate,
		cancel:      cancel,
		eg:          eg,
		log:         p.log.With().Str("device", device.Name).Logger(),
	}

	eg.Go(func() error { return s.readLoop(ctx, inBuf, channels, opts.FramesPerBuffer) })
	eg.Go(func() error { return s.writeLoop(ctx, outBuf) })

	s.log.Info().Int("channels", channels).Int("sample_rate", opts.SampleRate).Msg("Capture started")
	return s, nil
}

func (p *portAudioCapture) Close() error {
	return portaudio.Terminate()
}

type portAudioStream struct {
	in, out     *portaudio.Stream
	taps        *tapSet
	playthrough *playthrough
	sampleRate  int
	cancel      context.CancelFunc
	eg          *errgroup.Group
	log         zerolog.Logger
}

func (s *portAudioStream) readLoop(ctx context.Context, buf []float32, channels, frames int) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := s.in.Read(); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// input overflow only means frames were lost
			if err == portaudio.InputOverflowed {
				continue
			}
			return fmt.Errorf("read capture: %w", err)
		}
		s.taps.dispatch(downmixInterleaved(buf, channels, frames))
	}
}

// writeLoop is paced by the blocking output write; an empty queue plays
// silence.
func (s *portAudioStream) writeLoop(ctx context.Context, buf []float32) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		s.playthrough.read(buf)
		if err := s.out.Write(); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if err == portaudio.OutputUnderflowed {
				continue
			}
			return fmt.Errorf("write playthrough: %w", err)
		}
	}
}

func (s *portAudioStream) Attach(kind TapKind, tap Tap) { s.taps.attach(kind, tap) }
func (s *portAudioStream) Detach(kind TapKind)          { s.taps.detach(kind) }
func (s *portAudioStream) Playthrough() Tap             { return s.playthrough }
func (s *portAudioStream) SetGain(v float32)            { s.playthrough.SetGain(v) }
func (s *portAudioStream) SampleRate() int              { return s.sampleRate }

func (s *portAudioStream) Close() error {
	s.taps.clear()
	s.cancel()
	s.in.Abort()
	s.out.Abort()
	err := s.eg.Wait()
	s.in.Close()
	s.out.Close()
	if err != nil {
		s.log.Warn().Err(err).Msg("Capture ended with error")
	}
	s.log.Info().Msg("Capture stopped")
	return err
}
