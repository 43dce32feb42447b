package remote

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo"
	"github.com/rs/zerolog"
	eventsource "github.com/stalexteam/eventsource_go"

	"github.com/shuang886/sharky/internal/band"
	"github.com/shuang886/sharky/internal/radio"
	"github.com/shuang886/sharky/internal/settings"
)

type mockRadio struct {
	state radio.State
	calls []string
	err   error
}

func (m *mockRadio) record(call string) error {
	m.calls = append(m.calls, call)
	return m.err
}

func (m *mockRadio) State() radio.State { return m.state }

func (m *mockRadio) Subscribe() (<-chan radio.State, func()) {
	ch := make(chan radio.State)
	close(ch)
	return ch, func() {}
}

func (m *mockRadio) TuneStep(dir band.Direction) error {
	if dir == band.Up {
		return m.record("tune up")
	}
	return m.record("tune down")
}

func (m *mockRadio) SetBand(b band.Band) error { return m.record("band " + b.Tag()) }
func (m *mockRadio) NextBand() error           { return m.record("next band") }

func (m *mockRadio) SetFrequency(f band.Frequency) error {
	if _, err := band.Of(f); err != nil {
		return err
	}
	m.state.Frequency = f
	return m.record("frequency")
}

func (m *mockRadio) SetVolume(v float64) error {
	m.state.Volume = v
	return m.record("volume")
}

func (m *mockRadio) SetBlueLight(v int) error      { return m.record("blue") }
func (m *mockRadio) SetBlueLightPulse(v int) error { return m.record("pulse") }
func (m *mockRadio) SetRedLight(v int) error       { return m.record("red") }
func (m *mockRadio) ToggleFavorite() error         { return m.record("toggle favorite") }
func (m *mockRadio) ToggleRecognition() error      { return m.record("toggle recognition") }

func (m *mockRadio) TuneFavorite(id string) error {
	if id != "known" {
		return radio.ErrUnknownStation
	}
	return m.record("tune favorite")
}

func (m *mockRadio) RenameFavorite(id, name string) error {
	if id != "known" {
		return radio.ErrUnknownStation
	}
	return m.record("rename " + name)
}

func (m *mockRadio) RemoveFavorite(id string) error {
	if id != "known" {
		return radio.ErrUnknownStation
	}
	return m.record("remove favorite")
}

func serve(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func newTestServer() (*Server, *mockRadio) {
	r := &mockRadio{state: radio.State{Band: band.FM, Frequency: band.MHz(99.9), Volume: 1}}
	return New(r, zerolog.Nop()), r
}

func TestGetState(t *testing.T) {
	s, r := newTestServer()
	r.state.Favorites = []settings.Station{{ID: "a", Frequency: band.MHz(99.9), Name: "Jazz"}}

	rec := serve(s, http.MethodGet, "/api/state", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got["band"] != "fm" {
		t.Errorf("expected band tag, got %v", got["band"])
	}
	if got["frequency"] != float64(99900000) {
		t.Errorf("expected frequency in hertz, got %v", got["frequency"])
	}
	if favs, ok := got["favorites"].([]any); !ok || len(favs) != 1 {
		t.Errorf("expected one favorite, got %v", got["favorites"])
	}
}

func TestCommands(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		call   string
	}{
		{"tune up", http.MethodPost, "/api/tune/up", "", http.StatusOK, "tune up"},
		{"tune down", http.MethodPost, "/api/tune/down", "", http.StatusOK, "tune down"},
		{"tune sideways", http.MethodPost, "/api/tune/left", "", http.StatusBadRequest, ""},
		{"band", http.MethodPost, "/api/band", `{"band":"AM"}`, http.StatusOK, "band am"},
		{"bad band", http.MethodPost, "/api/band", `{"band":"sw"}`, http.StatusBadRequest, ""},
		{"next band", http.MethodPost, "/api/band/next", "", http.StatusOK, "next band"},
		{"frequency", http.MethodPost, "/api/frequency", `{"hz":101100000}`, http.StatusOK, "frequency"},
		{"frequency out of range", http.MethodPost, "/api/frequency", `{"hz":50000000}`, http.StatusUnprocessableEntity, ""},
		{"frequency missing", http.MethodPost, "/api/frequency", `{}`, http.StatusBadRequest, ""},
		{"volume", http.MethodPost, "/api/volume", `{"value":0.3}`, http.StatusOK, "volume"},
		{"volume missing", http.MethodPost, "/api/volume", `{}`, http.StatusBadRequest, ""},
		{"lights empty", http.MethodPost, "/api/lights", `{}`, http.StatusBadRequest, ""},
		{"favorite toggle", http.MethodPost, "/api/favorites/toggle", "", http.StatusOK, "toggle favorite"},
		{"favorite tune", http.MethodPost, "/api/favorites/known/tune", "", http.StatusOK, "tune favorite"},
		{"favorite tune unknown", http.MethodPost, "/api/favorites/nope/tune", "", http.StatusNotFound, ""},
		{"favorite rename", http.MethodPut, "/api/favorites/known", `{"name":"News"}`, http.StatusOK, "rename News"},
		{"favorite remove", http.MethodDelete, "/api/favorites/known", "", http.StatusOK, "remove favorite"},
		{"favorite remove unknown", http.MethodDelete, "/api/favorites/nope", "", http.StatusNotFound, ""},
		{"recognition", http.MethodPost, "/api/recognition/toggle", "", http.StatusOK, "toggle recognition"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, r := newTestServer()
			rec := serve(s, tt.method, tt.path, tt.body)

			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if tt.call == "" {
				if len(r.calls) != 0 {
					t.Errorf("expected no controller call, got %v", r.calls)
				}
				if !strings.Contains(rec.Body.String(), `"error"`) {
					t.Errorf("expected an error body, got %s", rec.Body.String())
				}
				return
			}
			if len(r.calls) != 1 || r.calls[0] != tt.call {
				t.Errorf("expected call %q, got %v", tt.call, r.calls)
			}
		})
	}
}

func TestLightsSubset(t *testing.T) {
	s, r := newTestServer()
	rec := serve(s, http.MethodPost, "/api/lights", `{"pulse":64,"red":0}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	want := []string{"pulse", "red"}
	if strings.Join(r.calls, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, r.calls)
	}
}

func TestClosedRadio(t *testing.T) {
	s, r := newTestServer()
	r.err = radio.ErrClosed

	rec := serve(s, http.MethodPost, "/api/band/next", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestResponseCarriesNewState(t *testing.T) {
	s, _ := newTestServer()
	rec := serve(s, http.MethodPost, "/api/volume", `{"value":0.3}`)

	var got radio.State
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Volume != 0.3 {
		t.Errorf("expected updated volume, got %f", got.Volume)
	}
}

func TestStateEvent(t *testing.T) {
	s, r := newTestServer()

	first, err := s.stateEvent(r.state)
	if err != nil {
		t.Fatal(err)
	}
	second, _ := s.stateEvent(r.state)

	if first.Type != "state" {
		t.Errorf("expected state event, got %q", first.Type)
	}
	if first.ID == second.ID {
		t.Error("expected increasing event ids")
	}
	if !strings.Contains(string(first.Data), `"frequency":99900000`) {
		t.Errorf("unexpected payload %s", first.Data)
	}

	// no clients connected
	s.Broadcast(r.state)
}

func TestEventStream(t *testing.T) {
	s, r := newTestServer()
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	defer close(s.stop)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/events", nil)
	req.Header.Set("Accept", "text/event-stream")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected an event stream, got %q", ct)
	}
	dec := eventsource.NewDecoder(resp.Body)

	var greeting eventsource.Event
	if err := dec.Decode(&greeting); err != nil {
		t.Fatal(err)
	}
	if greeting.Type != "state" || greeting.Retry != "5000" {
		t.Errorf("unexpected greeting %+v", greeting)
	}
	if !strings.Contains(string(greeting.Data), `"frequency":99900000`) {
		t.Errorf("expected the current state, got %s", greeting.Data)
	}

	next := r.state
	next.Volume = 0.5
	s.Broadcast(next)

	var update eventsource.Event
	if err := dec.Decode(&update); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(update.Data), `"volume":0.5`) {
		t.Errorf("expected the broadcast state, got %s", update.Data)
	}
	if update.ID == greeting.ID {
		t.Error("expected a new event id")
	}

	resp.Body.Close()
	deadline := time.Now().Add(2 * time.Second)
	for s.clientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected the client removed after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEventStreamRejectsOtherAccept(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotAcceptable {
		t.Errorf("expected 406, got %d", rec.Code)
	}
}
