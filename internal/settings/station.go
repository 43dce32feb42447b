package settings

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/shuang886/sharky/internal/band"
)

// Station is a favorite frequency.
type Station struct {
	ID        string         `msgpack:"id" json:"id"`
	Frequency band.Frequency `msgpack:"frequency" json:"frequency"`
	Name      string         `msgpack:"name,omitempty" json:"name,omitempty"`
}

func NewStation(f band.Frequency) Station {
	return Station{ID: uuid.NewString(), Frequency: f}
}

// Label is the name if set, otherwise the formatted frequency.
func (s Station) Label() string {
	if s.Name != "" {
		return s.Name
	}
	if b, err := band.Of(s.Frequency); err == nil {
		return b.Format(s.Frequency)
	}
	return s.Frequency.String()
}

func EncodeFavorites(favorites []Station) ([]byte, error) {
	if favorites == nil {
		favorites = []Station{}
	}
	data, err := msgpack.Marshal(favorites)
	if err != nil {
		return nil, fmt.Errorf("encode favorites: %w", err)
	}
	return data, nil
}

func DecodeFavorites(data []byte) ([]Station, error) {
	var favorites []Station
	if err := msgpack.Unmarshal(data, &favorites); err != nil {
		return nil, fmt.Errorf("decode favorites: %w", err)
	}
	return favorites, nil
}
