package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"
	"github.com/rs/zerolog"
	eventsource "github.com/stalexteam/eventsource_go"

	"github.com/shuang886/sharky/internal/band"
	"github.com/shuang886/sharky/internal/radio"
)

// retry interval sent to event stream clients, in milliseconds
const sseRetryTimeout = 5000

// Radio is the controller surface exposed over HTTP.
type Radio interface {
	State() radio.State
	Subscribe() (<-chan radio.State, func())
	TuneStep(dir band.Direction) error
	SetBand(b band.Band) error
	NextBand() error
	SetFrequency(f band.Frequency) error
	SetVolume(v float64) error
	SetBlueLight(v int) error
	SetBlueLightPulse(v int) error
	SetRedLight(v int) error
	ToggleFavorite() error
	TuneFavorite(id string) error
	RenameFavorite(id, name string) error
	RemoveFavorite(id string) error
	ToggleRecognition() error
}

// Server exposes the radio as a JSON API with a server-sent event stream
// of state changes.
type Server struct {
	radio   Radio
	echo    *echo.Echo
	eventID atomic.Int64
	stop    chan bool
	log     zerolog.Logger

	clientsMu sync.Mutex
	clients   map[*eventClient]struct{}
}

// eventClient is one connected event stream. An Encoder is not safe for
// concurrent use, and must not be written once its handler has returned.
type eventClient struct {
	mu      sync.Mutex
	encoder *eventsource.Encoder
	remote  string
	done    bool
}

func (c *eventClient) send(event eventsource.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return nil
	}
	return c.encoder.Encode(event)
}

func New(r Radio, log zerolog.Logger) *Server {
	s := &Server{
		radio:   r,
		stop:    make(chan bool),
		log:     log.With().Str("component", "remote").Logger(),
		clients: map[*eventClient]struct{}{},
	}
	s.echo = s.router()
	return s
}

func (s *Server) router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(s.requestLogger)

	api := e.Group("/api")
	api.GET("/state", s.getState)
	api.GET("/events", s.events)

	api.POST("/tune/:direction", s.tune)
	api.POST("/band", s.setBand)
	api.POST("/band/next", s.nextBand)
	api.POST("/frequency", s.setFrequency)
	api.POST("/volume", s.setVolume)
	api.POST("/lights", s.setLights)
	api.POST("/recognition/toggle", s.toggleRecognition)

	favorites := api.Group("/favorites")
	{
		favorites.POST("/toggle", s.toggleFavorite)
		favorites.POST("/:id/tune", s.tuneFavorite)
		favorites.PUT("/:id", s.renameFavorite)
		favorites.DELETE("/:id", s.removeFavorite)
	}

	return e
}

// Handler serves the API.
func (s *Server) Handler() http.Handler { return s.echo }

// Run serves on addr and forwards state changes to event clients until
// ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	updates, unsubscribe := s.radio.Subscribe()
	defer unsubscribe()
	go s.forward(updates)

	errs := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("Starting remote API")
		errs <- s.echo.Start(addr)
	}()

	select {
	case err := <-errs:
		close(s.stop)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	close(s.stop)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown remote API: %w", err)
	}
	s.log.Info().Msg("Remote API stopped")
	return nil
}

func (s *Server) forward(updates <-chan radio.State) {
	for st := range updates {
		s.Broadcast(st)
	}
}

// Broadcast sends st to every connected event client.
func (s *Server) Broadcast(st radio.State) {
	event, err := s.stateEvent(st)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to encode state event")
		return
	}

	s.clientsMu.Lock()
	clients := make([]*eventClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.Unlock()

	for _, c := range clients {
		if err := c.send(event); err != nil {
			s.log.Debug().Err(err).Str("remote", c.remote).Msg("State broadcast failed")
			s.removeClient(c)
		}
	}
}

func (s *Server) addClient(c *eventClient) {
	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	s.clientsMu.Unlock()
}

func (s *Server) removeClient(c *eventClient) {
	s.clientsMu.Lock()
	delete(s.clients, c)
	s.clientsMu.Unlock()
}

func (s *Server) clientCount() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

func (s *Server) stateEvent(st radio.State) (eventsource.Event, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return eventsource.Event{}, err
	}
	return eventsource.Event{
		ID:   fmt.Sprintf("%d", s.eventID.Add(1)),
		Type: "state",
		Data: data,
	}, nil
}

func (s *Server) events(c echo.Context) error {
	remote := c.RealIP()
	handler := eventsource.Handler(func(lastID string, encoder *eventsource.Encoder, stop <-chan bool) {
		s.stream(&eventClient{encoder: encoder, remote: remote}, stop)
	})
	handler.ServeHTTP(c.Response(), c.Request())
	return nil
}

// stream greets a new event client with the current state and holds the
// connection until it or the server goes away.
func (s *Server) stream(client *eventClient, stop <-chan bool) {
	s.log.Info().Str("remote", client.remote).Msg("Event client connected")
	defer func() {
		s.log.Debug().Str("remote", client.remote).Msg("Event client disconnected")
	}()

	event, err := s.stateEvent(s.radio.State())
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to encode state event")
		return
	}
	event.Retry = strconv.Itoa(sseRetryTimeout)

	// registered under the client lock so no broadcast overtakes the greeting
	client.mu.Lock()
	s.addClient(client)
	err = client.encoder.Encode(event)
	client.mu.Unlock()

	defer func() {
		s.removeClient(client)
		client.mu.Lock()
		client.done = true
		client.mu.Unlock()
	}()
	if err != nil {
		s.log.Debug().Err(err).Msg("Error sending state event")
		return
	}

	select {
	case <-stop:
	case <-s.stop:
	}
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		s.log.Debug().
			Str("method", c.Request().Method).
			Str("uri", c.Request().RequestURI).
			Int("status", c.Response().Status).
			Dur("latency", time.Since(start)).
			Msg("Request")
		return nil
	}
}
