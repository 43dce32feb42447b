package radio

import (
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/shuang886/sharky/internal/band"
	"github.com/shuang886/sharky/internal/command"
	"github.com/shuang886/sharky/internal/device"
	"github.com/shuang886/sharky/internal/notify"
	"github.com/shuang886/sharky/internal/settings"
	"github.com/shuang886/sharky/internal/speech"
	"github.com/shuang886/sharky/internal/store"
)

var (
	ErrClosed         = errors.New("radio controller closed")
	ErrUnknownStation = errors.New("no favorite with that id")
)

type Config struct {
	Store    store.Store
	Notifier notify.Notifier
	Logger   zerolog.Logger

	// Open connects the radio. Nil runs detached.
	Open func() (device.Device, error)

	// Recognizer and Authorizer enable live transcripts when both are set.
	Recognizer speech.Recognizer
	Authorizer speech.Authorizer
}

// Controller owns the radio state. Every mutation runs on a single loop
// goroutine; asynchronous results are posted back onto it.
type Controller struct {
	store    store.Store
	dev      device.Device
	rec      speech.Recognizer
	auth     speech.Authorizer
	notifier notify.Notifier
	log      zerolog.Logger

	calls chan func()
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once

	postMu sync.Mutex
	posted []func()
	wake   chan struct{}

	// loop-owned
	snap        settings.Snapshot
	favorites   []settings.Station
	pipeline    *speech.Pipeline
	starting    bool
	recognizing bool
	text        string
	subs        subscribers

	stateMu sync.RWMutex
	state   State
}

// New loads the persisted settings, opens the radio and brings it in line
// with them. It never fails: without a radio the controller runs detached.
func New(cfg Config) *Controller {
	log := cfg.Logger.With().Str("component", "radio").Logger()
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Discard{}
	}
	if cfg.Store == nil {
		cfg.Store = store.NewMemory()
	}

	c := &Controller{
		store:    cfg.Store,
		rec:      cfg.Recognizer,
		auth:     cfg.Authorizer,
		notifier: cfg.Notifier,
		log:      log,
		calls:    make(chan func()),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		wake:     make(chan struct{}, 1),
	}

	c.snap, c.favorites = settings.Load(cfg.Store, log)
	c.dev = c.openDevice(cfg.Open)

	// The radio resets the blue light on an early command, so the lights
	// are sent again last.
	c.dev.SendCommand(command.Encode(settings.AllFields(), c.snap))
	c.dev.SetPlaythroughGain(c.snap.Volume)
	c.dev.SendCommand(command.Encode(settings.LightFields(), c.snap))

	c.publish()
	log.Info().
		Str("band", c.snap.Band.Tag()).
		Stringer("frequency", c.snap.Frequency()).
		Bool("detached", c.dev.Detached()).
		Msg("Radio ready")

	go c.run()
	return c
}

func (c *Controller) openDevice(open func() (device.Device, error)) device.Device {
	if open == nil {
		c.log.Info().Msg("Running in preview mode")
		return device.Detached()
	}
	dev, err := open()
	if err != nil || dev == nil {
		c.log.Warn().Err(err).Msg("Radio unavailable, running detached")
		c.notifier.Notify("Radio offline", "No radio found. Settings will be kept but nothing is sent.")
		return device.Detached()
	}
	return dev
}

func (c *Controller) run() {
	defer close(c.done)
	for {
		select {
		case fn := <-c.calls:
			fn()
		case <-c.wake:
			c.drain()
		case <-c.quit:
			c.shutdown()
			return
		}
	}
}

// do runs fn on the loop and waits for it.
func (c *Controller) do(fn func()) error {
	finished := make(chan struct{})
	select {
	case c.calls <- func() { fn(); close(finished) }:
	case <-c.done:
		return ErrClosed
	}
	<-finished
	return nil
}

// post queues fn for the loop without blocking.
func (c *Controller) post(fn func()) {
	c.postMu.Lock()
	c.posted = append(c.posted, fn)
	c.postMu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Controller) drain() {
	c.postMu.Lock()
	fns := c.posted
	c.posted = nil
	c.postMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Close stops recognition and capture, turns the lights off and releases
// the radio. It is idempotent.
func (c *Controller) Close() error {
	c.once.Do(func() { close(c.quit) })
	<-c.done
	return nil
}

func (c *Controller) shutdown() {
	if c.pipeline != nil {
		c.pipeline.Close()
		c.pipeline = nil
	}
	c.dev.Stop()
	c.dev.SendCommand(command.LightsOff())
	if err := c.dev.Close(); err != nil {
		c.log.Warn().Err(err).Msg("Failed to release radio")
	}
	c.subs.closeAll()
	c.log.Info().Msg("Radio closed")
}

// commit applies next as one transaction: persist the changed keys, send
// the changed fields, then notify.
func (c *Controller) commit(next settings.Snapshot) {
	prev := c.snap
	changed := settings.Diff(prev, next)
	batch := settings.Changes(prev, next)
	if changed.Empty() && batch.Len() == 0 {
		return
	}

	c.snap = next
	if err := c.store.Write(batch); err != nil {
		c.log.Error().Err(err).Strs("keys", batch.Keys()).Msg("Failed to persist settings")
	}
	if changed.Has(settings.Volume) {
		c.dev.SetPlaythroughGain(next.Volume)
	}
	c.dev.SendCommand(command.Encode(changed, next))

	c.log.Debug().Stringer("fields", changed).Msg("Settings committed")
	c.publish()
}

func (c *Controller) saveFavorites(favorites []settings.Station) {
	c.favorites = favorites
	batch, err := settings.FavoritesBatch(favorites)
	if err == nil {
		err = c.store.Write(batch)
	}
	if err != nil {
		c.log.Error().Err(err).Msg("Failed to persist favorites")
	}
	c.publish()
}

func (c *Controller) recognitionAvailable() bool {
	return c.rec != nil && c.auth != nil && !c.dev.Detached() && c.dev.SampleRate() > 0
}

func (c *Controller) publish() {
	st := State{
		Band:                 c.snap.Band,
		Frequency:            c.snap.Frequency(),
		Volume:               c.snap.Volume,
		BlueLight:            c.snap.BlueLight,
		BlueLightPulse:       c.snap.BlueLightPulse,
		RedLight:             c.snap.RedLight,
		Favorites:            slices.Clone(c.favorites),
		Recognizing:          c.recognizing,
		RecognizedText:       c.text,
		RecognitionStarting:  c.starting,
		Detached:             c.dev.Detached(),
		RecognitionAvailable: c.recognitionAvailable(),
	}

	c.stateMu.Lock()
	c.state = st
	c.stateMu.Unlock()

	c.subs.send(st)
}

// State returns the latest published state.
func (c *Controller) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	st := c.state
	st.Favorites = slices.Clone(st.Favorites)
	return st
}

// Subscribe returns a channel that receives the state after every
// committed change, and a function to stop receiving. A slow reader only
// sees the latest state. The channel closes when the controller does.
func (c *Controller) Subscribe() (<-chan State, func()) {
	var (
		id int
		ch chan State
	)
	if err := c.do(func() {
		id, ch = c.subs.add()
		ch <- c.state
	}); err != nil {
		closed := make(chan State)
		close(closed)
		return closed, func() {}
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() { c.do(func() { c.subs.remove(id) }) })
	}
}

// TuneStep moves one step up or down within the band. At a band edge
// nothing happens.
func (c *Controller) TuneStep(dir band.Direction) error {
	return c.do(func() {
		cur := c.snap.Frequency()
		f := band.ClampStep(c.snap.Band, cur, dir)
		if f == cur {
			return
		}
		next, err := c.snap.WithFrequency(f)
		if err != nil {
			c.log.Error().Err(err).Stringer("frequency", f).Msg("Stepped outside every band")
			return
		}
		c.commit(next)
	})
}

// SetFrequency tunes to f, switching band if needed.
func (c *Controller) SetFrequency(f band.Frequency) error {
	var err error
	if doErr := c.do(func() { err = c.setFrequency(f) }); doErr != nil {
		return doErr
	}
	return err
}

func (c *Controller) setFrequency(f band.Frequency) error {
	next, err := c.snap.WithFrequency(f)
	if err != nil {
		c.log.Warn().Err(err).Stringer("frequency", f).Msg("Ignoring frequency")
		return err
	}
	c.commit(next)
	return nil
}

// SetBand switches to b at the frequency last tuned there.
func (c *Controller) SetBand(b band.Band) error {
	if !b.Valid() {
		return band.ErrOutOfRange
	}
	return c.do(func() { c.commit(c.snap.WithBand(b)) })
}

// NextBand cycles to the following band.
func (c *Controller) NextBand() error {
	return c.do(func() { c.commit(c.snap.WithBand(c.snap.Band.Next())) })
}

func (c *Controller) SetVolume(v float64) error {
	return c.do(func() { c.commit(c.snap.WithVolume(v)) })
}

func (c *Controller) SetBlueLight(v int) error {
	return c.do(func() { c.commit(c.snap.WithBlueLight(v)) })
}

func (c *Controller) SetBlueLightPulse(v int) error {
	return c.do(func() { c.commit(c.snap.WithBlueLightPulse(v)) })
}

func (c *Controller) SetRedLight(v int) error {
	return c.do(func() { c.commit(c.snap.WithRedLight(v)) })
}

// ToggleFavorite saves the tuned frequency as a favorite, or removes every
// favorite on it when there already is one.
func (c *Controller) ToggleFavorite() error {
	return c.do(func() {
		f := c.snap.Frequency()
		match := func(st settings.Station) bool { return st.Frequency == f }

		favorites := slices.Clone(c.favorites)
		if slices.ContainsFunc(favorites, match) {
			favorites = slices.DeleteFunc(favorites, match)
		} else {
			favorites = append(favorites, settings.NewStation(f))
		}
		c.saveFavorites(favorites)
	})
}

func (c *Controller) findFavorite(id string) int {
	return slices.IndexFunc(c.favorites, func(st settings.Station) bool { return st.ID == id })
}

// TuneFavorite tunes to the favorite with id.
func (c *Controller) TuneFavorite(id string) error {
	var err error
	if doErr := c.do(func() {
		i := c.findFavorite(id)
		if i < 0 {
			err = ErrUnknownStation
			return
		}
		err = c.setFrequency(c.favorites[i].Frequency)
	}); doErr != nil {
		return doErr
	}
	return err
}

// RenameFavorite sets the display name of a favorite; an empty name
// clears it.
func (c *Controller) RenameFavorite(id, name string) error {
	var err error
	if doErr := c.do(func() {
		i := c.findFavorite(id)
		if i < 0 {
			err = ErrUnknownStation
			return
		}
		favorites := slices.Clone(c.favorites)
		favorites[i].Name = strings.TrimSpace(name)
		c.saveFavorites(favorites)
	}); doErr != nil {
		return doErr
	}
	return err
}

func (c *Controller) RemoveFavorite(id string) error {
	var err error
	if doErr := c.do(func() {
		i := c.findFavorite(id)
		if i < 0 {
			err = ErrUnknownStation
			return
		}
		c.saveFavorites(slices.Delete(slices.Clone(c.favorites), i, i+1))
	}); doErr != nil {
		return doErr
	}
	return err
}

// ToggleRecognition starts live transcription, or stops it when running.
func (c *Controller) ToggleRecognition() error {
	return c.do(func() {
		if c.pipeline != nil && c.pipeline.State() != speech.Idle {
			c.pipeline.Stop()
			return
		}
		if !c.recognitionAvailable() {
			c.log.Info().Msg("Recognition unavailable")
			return
		}

		var p *speech.Pipeline
		p = speech.NewPipeline(speech.PipelineConfig{
			Recognizer: c.rec,
			Authorizer: c.auth,
			Source:     c.dev,
			Post:       c.post,
			OnUpdate: func(u speech.Update) {
				if p != c.pipeline {
					return
				}
				c.starting = u.Starting
				c.recognizing = u.Recognizing
				c.text = u.Text
				c.publish()
			},
			Log: c.log,
		})
		c.pipeline = p
		p.Start()
	})
}
