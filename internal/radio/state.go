package radio

import (
	"slices"

	"github.com/shuang886/sharky/internal/band"
	"github.com/shuang886/sharky/internal/settings"
)

// State is the published view of the controller.
type State struct {
	Band           band.Band          `json:"band"`
	Frequency      band.Frequency     `json:"frequency"`
	Volume         float64            `json:"volume"`
	BlueLight      int                `json:"blueLight"`
	BlueLightPulse int                `json:"blueLightPulse"`
	RedLight       int                `json:"redLight"`
	Favorites      []settings.Station `json:"favorites"`
	Recognizing    bool               `json:"isRecognizing"`
	RecognizedText string             `json:"recognizedText"`

	// RecognitionStarting is set while authorization is pending.
	RecognitionStarting bool `json:"isRecognitionStarting"`

	// Detached is set when no radio could be opened.
	Detached bool `json:"detached"`

	// RecognitionAvailable is false without a recognizer or captured audio.
	RecognitionAvailable bool `json:"recognitionAvailable"`
}

// IsFavorite reports whether some favorite sits on the tuned frequency.
func (s State) IsFavorite() bool {
	return slices.ContainsFunc(s.Favorites, func(st settings.Station) bool {
		return st.Frequency == s.Frequency
	})
}

// Label formats the tuned frequency for its band.
func (s State) Label() string {
	return s.Band.Format(s.Frequency)
}

// subscribers hands each change to every listener, keeping only the
// latest state for a listener that has not caught up.
type subscribers struct {
	next int
	subs map[int]chan State
}

func (s *subscribers) add() (int, chan State) {
	if s.subs == nil {
		s.subs = map[int]chan State{}
	}
	s.next++
	ch := make(chan State, 1)
	s.subs[s.next] = ch
	return s.next, ch
}

func (s *subscribers) remove(id int) {
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *subscribers) send(st State) {
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- st
	}
}

func (s *subscribers) closeAll() {
	for id := range s.subs {
		s.remove(id)
	}
}
