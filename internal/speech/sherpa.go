package speech

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"
	"github.com/rs/zerolog"

	"github.com/shuang886/sharky/internal/config"
)

const (
	featureSampleRate = 16000
	featureDim        = 80
	resultBuffer      = 16
)

// Sherpa is a streaming recognizer backed by sherpa-onnx. The model is
// fetched and loaded by Authorize so that StartSession never blocks on I/O.
type Sherpa struct {
	cfg config.SpeechConfig
	dir string
	log zerolog.Logger

	mu         sync.Mutex
	recognizer *sherpa.OnlineRecognizer
}

// New creates a recognizer for the configured model. Nothing is loaded
// until Authorize is called.
func New(cfg config.SpeechConfig, log zerolog.Logger) *Sherpa {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Sherpa{
		cfg: cfg,
		dir: filepath.Join(config.ModelsPath(), cfg.Model),
		log: log.With().Str("component", "speech").Str("model", cfg.Model).Logger(),
	}
}

// Authorize makes sure the model is present and loaded.
func (s *Sherpa) Authorize(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recognizer != nil {
		return true, nil
	}

	src, err := ensureModel(ctx, s.cfg.Model, s.dir)
	if err != nil {
		return false, err
	}

	var c sherpa.OnlineRecognizerConfig
	c.FeatConfig = sherpa.FeatureConfig{SampleRate: featureSampleRate, FeatureDim: featureDim}
	c.ModelConfig.Transducer.Encoder = filepath.Join(s.dir, src.encoder)
	c.ModelConfig.Transducer.Decoder = filepath.Join(s.dir, src.decoder)
	c.ModelConfig.Transducer.Joiner = filepath.Join(s.dir, src.joiner)
	c.ModelConfig.Tokens = filepath.Join(s.dir, src.tokens)
	c.ModelConfig.NumThreads = max(s.cfg.Threads, 1)
	c.ModelConfig.Provider = s.cfg.Provider
	c.DecodingMethod = "greedy_search"
	c.EnableEndpoint = 1
	c.Rule1MinTrailingSilence = 2.4
	c.Rule2MinTrailingSilence = 1.2
	c.Rule3MinUtteranceLength = 20

	recognizer := sherpa.NewOnlineRecognizer(&c)
	if recognizer == nil {
		return false, fmt.Errorf("failed to load model %s", s.cfg.Model)
	}
	s.recognizer = recognizer
	s.log.Info().Msg("Model loaded")
	return true, nil
}

func (s *Sherpa) StartSession(opts SessionOpts) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recognizer == nil {
		return nil, errors.New("model not loaded")
	}
	if opts.SampleRate <= 0 {
		return nil, errors.New("no audio to recognize")
	}

	return &sherpaSession{
		recognizer: s.recognizer,
		stream:     sherpa.NewOnlineStream(s.recognizer),
		sampleRate: opts.SampleRate,
		partials:   make(chan string, resultBuffer),
		finals:     make(chan string, resultBuffer),
	}, nil
}

func (s *Sherpa) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recognizer != nil {
		sherpa.DeleteOnlineRecognizer(s.recognizer)
		s.recognizer = nil
	}
	return nil
}

type sherpaSession struct {
	recognizer *sherpa.OnlineRecognizer
	sampleRate int

	mu       sync.Mutex
	stream   *sherpa.OnlineStream
	last     string
	partials chan string
	finals   chan string
}

func (s *sherpaSession) Feed(samples []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return ErrTaskEnded
	}

	s.stream.AcceptWaveform(s.sampleRate, samples)
	s.decode()

	if s.recognizer.IsEndpoint(s.stream) {
		if s.last != "" {
			send(s.finals, s.last)
		}
		s.recognizer.Reset(s.stream)
		s.last = ""
	}
	return nil
}

// decode drains ready frames and publishes a changed hypothesis.
func (s *sherpaSession) decode() {
	for s.recognizer.IsReady(s.stream) {
		s.recognizer.Decode(s.stream)
	}
	text := strings.TrimSpace(s.recognizer.GetResult(s.stream).Text)
	if text != s.last {
		s.last = text
		send(s.partials, text)
	}
}

func (s *sherpaSession) Partials() <-chan string { return s.partials }
func (s *sherpaSession) Finals() <-chan string   { return s.finals }

func (s *sherpaSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return nil
	}

	s.stream.InputFinished()
	s.decode()
	if s.last != "" {
		send(s.finals, s.last)
	}

	sherpa.DeleteOnlineStream(s.stream)
	s.stream = nil
	close(s.partials)
	close(s.finals)
	return nil
}

// send drops the result if nobody is keeping up.
func send(ch chan string, text string) {
	select {
	case ch <- text:
	default:
	}
}
