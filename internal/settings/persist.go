package settings

import (
	"errors"
	"math"

	"github.com/rs/zerolog"

	"github.com/shuang886/sharky/internal/band"
	"github.com/shuang886/sharky/internal/store"
)

// Preference keys. Frequencies are stored in hertz.
const (
	KeyBand           = "band"
	KeyAMFrequency    = "amFrequency"
	KeyFMFrequency    = "fmFrequency"
	KeyVolume         = "volume"
	KeyBlueLight      = "blueLight"
	KeyBlueLightPulse = "blueLightPulse"
	KeyRedLight       = "redLight"
	KeyFavorites      = "favorites"
)

// Load reads the persisted settings. Missing, corrupt or out-of-range values
// fall back to their defaults individually; Load never fails.
func Load(st store.Store, log zerolog.Logger) (Snapshot, []Station) {
	s := Defaults()

	if tag, err := st.String(KeyBand); err == nil {
		if b, err := band.Parse(tag); err == nil {
			s.Band = b
		} else {
			log.Warn().Str("band", tag).Msg("Ignoring persisted band")
		}
	} else {
		logReadError(log, KeyBand, err)
	}

	s.AMFrequency = loadFrequency(st, log, KeyAMFrequency, band.AM)
	s.FMFrequency = loadFrequency(st, log, KeyFMFrequency, band.FM)

	if v, err := st.Float(KeyVolume); err == nil && !math.IsNaN(v) {
		s.Volume = ClampVolume(v)
	} else {
		logReadError(log, KeyVolume, err)
	}

	s.BlueLight = loadLight(st, log, KeyBlueLight, s.BlueLight)
	s.BlueLightPulse = loadLight(st, log, KeyBlueLightPulse, s.BlueLightPulse)
	s.RedLight = loadLight(st, log, KeyRedLight, s.RedLight)

	return s, loadFavorites(st, log)
}

func loadFrequency(st store.Store, log zerolog.Logger, key string, b band.Band) band.Frequency {
	v, err := st.Float(key)
	if err != nil {
		logReadError(log, key, err)
		return DefaultFrequency(b)
	}
	if math.IsNaN(v) || !b.Range().Contains(band.Frequency(math.Round(v))) {
		log.Warn().Str("key", key).Float64("hz", v).Str("band", b.Name()).
			Msg("Persisted frequency outside band, using default")
		return DefaultFrequency(b)
	}
	return band.Frequency(math.Round(v))
}

func loadLight(st store.Store, log zerolog.Logger, key string, fallback int) int {
	v, err := st.Float(key)
	if err != nil || math.IsNaN(v) {
		logReadError(log, key, err)
		return fallback
	}
	return ClampLight(int(math.Round(v)))
}

// loadFavorites keeps stations in order, dropping duplicates by id and any
// station whose frequency no band can tune.
func loadFavorites(st store.Store, log zerolog.Logger) []Station {
	data, err := st.Blob(KeyFavorites)
	if err != nil {
		logReadError(log, KeyFavorites, err)
		return nil
	}
	decoded, err := DecodeFavorites(data)
	if err != nil {
		log.Warn().Err(err).Msg("Ignoring corrupt favorites")
		return nil
	}

	seen := make(map[string]bool, len(decoded))
	favorites := make([]Station, 0, len(decoded))
	for _, s := range decoded {
		if s.ID == "" || seen[s.ID] {
			continue
		}
		if _, err := band.Of(s.Frequency); err != nil {
			log.Warn().Err(err).Str("id", s.ID).Msg("Skipping favorite")
			continue
		}
		seen[s.ID] = true
		favorites = append(favorites, s)
	}
	return favorites
}

func logReadError(log zerolog.Logger, key string, err error) {
	if err == nil || errors.Is(err, store.ErrNotFound) {
		return
	}
	log.Warn().Err(err).Str("key", key).Msg("Unreadable preference, using default")
}

// Changes returns a batch holding every key whose value differs between
// prev and next. The batch is empty when nothing changed.
func Changes(prev, next Snapshot) *store.Batch {
	b := store.NewBatch()
	if prev.Band != next.Band {
		b.SetString(KeyBand, next.Band.Tag())
	}
	if prev.AMFrequency != next.AMFrequency {
		b.SetFloat(KeyAMFrequency, next.AMFrequency.Hz())
	}
	if prev.FMFrequency != next.FMFrequency {
		b.SetFloat(KeyFMFrequency, next.FMFrequency.Hz())
	}
	if prev.Volume != next.Volume {
		b.SetFloat(KeyVolume, next.Volume)
	}
	if prev.BlueLight != next.BlueLight {
		b.SetFloat(KeyBlueLight, float64(next.BlueLight))
	}
	if prev.BlueLightPulse != next.BlueLightPulse {
		b.SetFloat(KeyBlueLightPulse, float64(next.BlueLightPulse))
	}
	if prev.RedLight != next.RedLight {
		b.SetFloat(KeyRedLight, float64(next.RedLight))
	}
	return b
}

// FavoritesBatch returns a batch replacing the stored favorites.
func FavoritesBatch(favorites []Station) (*store.Batch, error) {
	data, err := EncodeFavorites(favorites)
	if err != nil {
		return nil, err
	}
	b := store.NewBatch()
	b.SetBlob(KeyFavorites, data)
	return b, nil
}
