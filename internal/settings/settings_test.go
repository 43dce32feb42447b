package settings

import (
	"math"
	"testing"

	"github.com/rs/zerolog"

	"github.com/shuang886/sharky/internal/band"
	"github.com/shuang886/sharky/internal/store"
)

func TestBandRoundTripRestoresFrequency(t *testing.T) {
	s := Defaults()
	s, err := s.WithFrequency(band.MHz(101.3))
	if err != nil {
		t.Fatal(err)
	}
	s, err = s.WithFrequency(770 * band.Kilohertz)
	if err != nil {
		t.Fatal(err)
	}
	if s.Band != band.AM {
		t.Fatalf("band = %v, want AM", s.Band)
	}

	s = s.WithBand(band.FM)
	if s.Frequency() != band.MHz(101.3) {
		t.Errorf("FM frequency = %v, want 101.3 MHz", s.Frequency())
	}
	s = s.WithBand(band.AM)
	if s.Frequency() != 770*band.Kilohertz {
		t.Errorf("AM frequency = %v, want 770 kHz", s.Frequency())
	}
}

func TestWithFrequencyOutOfRange(t *testing.T) {
	s := Defaults()
	got, err := s.WithFrequency(50 * band.Megahertz)
	if err == nil {
		t.Fatal("expected error")
	}
	if got != s {
		t.Error("snapshot changed on error")
	}
}

func TestClamps(t *testing.T) {
	if v := ClampVolume(1.5); v != 1 {
		t.Errorf("ClampVolume(1.5) = %v", v)
	}
	if v := ClampVolume(-1); v != 0 {
		t.Errorf("ClampVolume(-1) = %v", v)
	}
	if v := ClampVolume(math.NaN()); v != 0 {
		t.Errorf("ClampVolume(NaN) = %v", v)
	}
	if v := ClampLight(200); v != MaxLight {
		t.Errorf("ClampLight(200) = %v", v)
	}
	if v := ClampLight(-3); v != 0 {
		t.Errorf("ClampLight(-3) = %v", v)
	}
}

func TestDiff(t *testing.T) {
	base := Defaults()

	if d := Diff(base, base); !d.Empty() {
		t.Errorf("Diff of equal snapshots = %v", d)
	}

	d := Diff(base, base.WithBand(band.AM))
	if !d.Has(Frequency) || len(d) != 1 {
		t.Errorf("band switch diff = %v", d)
	}

	d = Diff(base, base.WithRedLight(10).WithVolume(0.5))
	if !d.Has(RedLight) || !d.Has(Volume) || d.Has(Frequency) || len(d) != 2 {
		t.Errorf("diff = %v", d)
	}

	// the remembered frequency of the other band is not a device change
	other := base
	other.AMFrequency = 600 * band.Kilohertz
	if d := Diff(base, other); !d.Empty() {
		t.Errorf("diff of inactive band = %v", d)
	}
}

func TestLoadDefaults(t *testing.T) {
	s, favorites := Load(store.NewMemory(), zerolog.Nop())
	if s != Defaults() {
		t.Errorf("Load on empty store = %+v", s)
	}
	if len(favorites) != 0 {
		t.Errorf("favorites = %v", favorites)
	}
}

func TestLoadPersisted(t *testing.T) {
	st := store.NewMemory()
	b := store.NewBatch()
	b.SetString(KeyBand, "fm")
	b.SetFloat(KeyFMFrequency, 99900000)
	b.SetFloat(KeyAMFrequency, 99900000) // 99.9 MHz is not an AM frequency
	b.SetFloat(KeyVolume, 0.4)
	b.SetFloat(KeyBlueLightPulse, 64)
	if err := st.Write(b); err != nil {
		t.Fatal(err)
	}

	s, _ := Load(st, zerolog.Nop())
	if s.Band != band.FM || s.Frequency() != band.MHz(99.9) {
		t.Errorf("band/frequency = %v %v", s.Band, s.Frequency())
	}
	if s.AMFrequency != DefaultAM {
		t.Errorf("AM frequency = %v, want default %v", s.AMFrequency, DefaultAM)
	}
	if s.Volume != 0.4 || s.BlueLightPulse != 64 {
		t.Errorf("volume/pulse = %v %v", s.Volume, s.BlueLightPulse)
	}
}

func TestLoadCorruptValues(t *testing.T) {
	st := store.NewMemory()
	st.Set(KeyBand, "shortwave")
	st.Set(KeyVolume, "loud")
	st.Set(KeyRedLight, 900.0)
	st.Set(KeyFavorites, []byte{0xff, 0x00})

	s, favorites := Load(st, zerolog.Nop())
	if s.Band != DefaultBand || s.Volume != DefaultVolume {
		t.Errorf("band/volume = %v %v", s.Band, s.Volume)
	}
	if s.RedLight != MaxLight {
		t.Errorf("red light = %v, want clamped %v", s.RedLight, MaxLight)
	}
	if favorites != nil {
		t.Errorf("favorites = %v", favorites)
	}
}

func TestLoadFavoritesSkipsInvalid(t *testing.T) {
	good := NewStation(band.MHz(99.9))
	dup := good
	dup.Name = "duplicate id"
	bad := NewStation(band.MHz(300))
	sameFreq := NewStation(band.MHz(99.9))

	data, err := EncodeFavorites([]Station{good, dup, bad, sameFreq})
	if err != nil {
		t.Fatal(err)
	}
	st := store.NewMemory()
	st.Set(KeyFavorites, data)

	_, favorites := Load(st, zerolog.Nop())
	if len(favorites) != 2 || favorites[0] != good || favorites[1] != sameFreq {
		t.Errorf("favorites = %+v", favorites)
	}
}

func TestChanges(t *testing.T) {
	prev := Defaults()
	next, err := prev.WithFrequency(band.MHz(99.9))
	if err != nil {
		t.Fatal(err)
	}
	b := Changes(prev, next)
	if b.Len() != 1 {
		t.Errorf("keys = %v, want only %s", b.Keys(), KeyFMFrequency)
	}

	next, err = prev.WithFrequency(1200 * band.Kilohertz)
	if err != nil {
		t.Fatal(err)
	}
	if b := Changes(prev, next); b.Len() != 2 {
		t.Errorf("keys = %v, want band and amFrequency", b.Keys())
	}

	if b := Changes(prev, prev); b.Len() != 0 {
		t.Errorf("keys = %v, want none", b.Keys())
	}
}

func TestStationLabel(t *testing.T) {
	s := NewStation(band.MHz(99.9))
	if s.Label() != "99.9 MHz" {
		t.Errorf("Label = %q", s.Label())
	}
	s.Name = "KQED"
	if s.Label() != "KQED" {
		t.Errorf("Label = %q", s.Label())
	}
	if s.ID == "" {
		t.Error("station has no id")
	}
}
