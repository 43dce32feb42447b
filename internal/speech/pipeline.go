package speech

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/shuang886/sharky/internal/audio"
)

// MaxTranscript is the number of trailing characters kept for display.
const MaxTranscript = 128

const feedDepth = 64

// State is the lifecycle of a Pipeline.
type State int

const (
	Idle State = iota
	Starting
	Listening
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Listening:
		return "listening"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Source is where the pipeline takes its audio from.
type Source interface {
	AttachTap(kind audio.TapKind, tap audio.Tap)
	DetachTap(kind audio.TapKind)
	SampleRate() int
}

// Update is what the owner sees of the pipeline.
type Update struct {
	// Starting is set while authorization is pending.
	Starting    bool
	Recognizing bool
	Text        string
}

// PipelineConfig wires a Pipeline to its owner.
type PipelineConfig struct {
	Recognizer Recognizer
	Authorizer Authorizer
	Source     Source
	Log        zerolog.Logger

	// Post runs fn on the owner's goroutine. It must not block.
	Post func(fn func())

	// OnUpdate is called on the owner's goroutine after every visible change.
	OnUpdate func(Update)
}

// Pipeline runs live recognition on the recognition tap of a Source.
// Every method, and every callback it posts, must run on the owner's
// goroutine; results of a superseded run are discarded.
type Pipeline struct {
	cfg PipelineConfig
	log zerolog.Logger

	state      State
	generation uint64
	cancel     context.CancelFunc
	session    Session
	transcript transcript

	// goroutines that may still call into the recognizer
	workers sync.WaitGroup
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.OnUpdate == nil {
		cfg.OnUpdate = func(Update) {}
	}
	return &Pipeline{
		cfg: cfg,
		log: cfg.Log.With().Str("component", "pipeline").Logger(),
	}
}

func (p *Pipeline) State() State { return p.state }

// Recognizing is true only while a task is live.
func (p *Pipeline) Recognizing() bool { return p.state == Listening }

// Text is the trailing transcript.
func (p *Pipeline) Text() string { return p.transcript.text() }

// Toggle starts recognition from Idle and cancels it otherwise.
func (p *Pipeline) Toggle() {
	if p.state == Idle {
		p.Start()
		return
	}
	p.Stop()
}

// Start requests authorization and, once granted, begins recognizing.
// It is a no-op unless Idle.
func (p *Pipeline) Start() {
	if p.state != Idle {
		return
	}

	p.generation++
	gen := p.generation
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.state = Starting
	p.log.Debug().Uint64("generation", gen).Msg("Requesting authorization")
	p.cfg.OnUpdate(Update{Starting: true, Text: p.transcript.text()})

	p.workers.Add(1)
	go func() {
		defer p.workers.Done()
		ok, err := p.cfg.Authorizer.Authorize(ctx)
		if err == nil && !ok {
			err = ErrDenied
		}
		p.cfg.Post(func() { p.authorized(ctx, gen, err) })
	}()
}

func (p *Pipeline) authorized(ctx context.Context, gen uint64, err error) {
	if gen != p.generation || p.state != Starting {
		return
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			p.log.Warn().Err(err).Msg("Recognition not started")
		}
		p.abandon()
		return
	}

	session, err := p.cfg.Recognizer.StartSession(SessionOpts{SampleRate: p.cfg.Source.SampleRate()})
	if err != nil {
		p.log.Warn().Err(err).Msg("Failed to start recognition session")
		p.abandon()
		return
	}
	p.session = session

	feed := make(chan []float32, feedDepth)
	p.cfg.Source.AttachTap(audio.Recognition, audio.TapFunc(func(samples []float32) {
		select {
		case feed <- samples:
		default:
		}
	}))

	p.workers.Add(1)
	go func() {
		defer p.workers.Done()
		p.feed(ctx, session, feed)
	}()
	go p.collect(gen, session)

	p.state = Listening
	p.transcript = transcript{}
	p.log.Info().Msg("Recognition started")
	p.cfg.OnUpdate(Update{Recognizing: true})
}

func (p *Pipeline) feed(ctx context.Context, session Session, feed <-chan []float32) {
	for {
		select {
		case <-ctx.Done():
			return
		case samples := <-feed:
			if err := session.Feed(samples); err != nil {
				if !errors.Is(err, ErrTaskEnded) {
					p.log.Debug().Err(err).Msg("Feed failed")
				}
				return
			}
		}
	}
}

func (p *Pipeline) collect(gen uint64, session Session) {
	partials, finals := session.Partials(), session.Finals()
	for partials != nil || finals != nil {
		select {
		case text, ok := <-partials:
			if !ok {
				partials = nil
				continue
			}
			p.cfg.Post(func() { p.hypothesis(gen, text, false) })
		case text, ok := <-finals:
			if !ok {
				finals = nil
				continue
			}
			p.cfg.Post(func() { p.hypothesis(gen, text, true) })
		}
	}
	p.cfg.Post(func() { p.ended(gen) })
}

func (p *Pipeline) hypothesis(gen uint64, text string, final bool) {
	if gen != p.generation || p.state != Listening {
		return
	}
	p.transcript.update(text, final)
	p.cfg.OnUpdate(Update{Recognizing: true, Text: p.transcript.text()})
}

func (p *Pipeline) ended(gen uint64) {
	if gen != p.generation || p.state != Listening {
		return
	}
	p.log.Info().Msg("Recognition task ended")
	p.teardown()
}

// Stop ends recognition. A stop request while Idle is a no-op.
func (p *Pipeline) Stop() { p.Cancel() }

// Cancel stops recognition from any state. It never blocks on the
// recognizer and is a no-op when Idle.
func (p *Pipeline) Cancel() {
	switch p.state {
	case Starting:
		p.abandon()
	case Listening:
		p.teardown()
	}
}

// Close cancels recognition and waits until the session is released and
// nothing started by the pipeline still uses the recognizer.
func (p *Pipeline) Close() {
	p.Cancel()
	p.workers.Wait()
}

// abandon returns to Idle from Starting.
func (p *Pipeline) abandon() {
	p.reset()
	p.cfg.OnUpdate(Update{Text: p.transcript.text()})
}

func (p *Pipeline) reset() {
	p.generation++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.state = Idle
}

func (p *Pipeline) teardown() {
	p.state = Stopping
	p.cfg.Source.DetachTap(audio.Recognition)

	if session := p.session; session != nil {
		p.session = nil
		p.workers.Add(1)
		go func() {
			defer p.workers.Done()
			if err := session.Close(); err != nil {
				p.log.Debug().Err(err).Msg("Failed to close recognition session")
			}
		}()
	}

	p.reset()
	p.log.Info().Msg("Recognition stopped")
	p.cfg.OnUpdate(Update{Recognizing: false, Text: p.transcript.text()})
}

// transcript joins committed utterances with the current hypothesis.
type transcript struct {
	committed string
	partial   string
}

func (t *transcript) update(text string, final bool) {
	text = strings.TrimSpace(text)
	if final {
		t.committed = Tail(join(t.committed, text), MaxTranscript)
		t.partial = ""
		return
	}
	t.partial = text
}

func (t transcript) text() string {
	return Tail(join(t.committed, t.partial), MaxTranscript)
}

func join(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}

// Tail returns the last n characters of s.
func Tail(s string, n int) string {
	count := utf8.RuneCountInString(s)
	if count <= n {
		return s
	}
	for i := range s {
		if count <= n {
			return s[i:]
		}
		count--
	}
	return ""
}
