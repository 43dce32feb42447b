package tray

import (
	"context"
	"fmt"
	"math"

	"github.com/atotto/clipboard"
	"github.com/getlantern/systray"
	"github.com/rs/zerolog"

	"github.com/shuang886/sharky/internal/band"
	"github.com/shuang886/sharky/internal/radio"
	"github.com/shuang886/sharky/internal/speech"
)

const (
	favoriteSlots  = 12
	previewLength  = 48
	recordingEmoji = "🔴"
	offlineSuffix  = " (offline)"
)

// Radio is the controller surface the tray drives.
type Radio interface {
	State() radio.State
	Subscribe() (<-chan radio.State, func())
	TuneStep(dir band.Direction) error
	NextBand() error
	SetVolume(v float64) error
	SetBlueLight(v int) error
	SetBlueLightPulse(v int) error
	SetRedLight(v int) error
	ToggleFavorite() error
	TuneFavorite(id string) error
	ToggleRecognition() error
}

type preset struct {
	label string
	value int
}

var (
	volumePresets = []preset{{"Mute", 0}, {"25%", 25}, {"50%", 50}, {"75%", 75}, {"100%", 100}}
	lightPresets  = []preset{{"Off", 0}, {"Dim", 16}, {"Medium", 64}, {"Bright", 127}}
	pulsePresets  = []preset{{"Off", 0}, {"Slow", 1}, {"Medium", 64}, {"Fast", 127}}
)

type UI struct {
	radio   Radio
	version string
	commit  string
	log     zerolog.Logger
	onQuit  func()

	// Menu items
	mTuneUp     *systray.MenuItem
	mTuneDown   *systray.MenuItem
	mBand       *systray.MenuItem
	mFavorite   *systray.MenuItem
	mFavorites  *systray.MenuItem
	mRecognize  *systray.MenuItem
	mTranscript *systray.MenuItem
	mCopy       *systray.MenuItem

	volumeItems []*systray.MenuItem
	blueItems   []*systray.MenuItem
	pulseItems  []*systray.MenuItem
	redItems    []*systray.MenuItem
	slots       []*systray.MenuItem
	slotIDs     chan []string
}

func New(r Radio, version, commit string, log zerolog.Logger, onQuit func()) *UI {
	if onQuit == nil {
		onQuit = func() {}
	}
	return &UI{
		radio:   r,
		version: version,
		commit:  commit,
		log:     log.With().Str("component", "tray").Logger(),
		onQuit:  onQuit,
		slotIDs: make(chan []string, 1),
	}
}

// Run blocks until Quit is chosen or ctx is done.
func (u *UI) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		systray.Quit()
	}()
	systray.Run(u.onReady, u.onExit)
	return nil
}

func (u *UI) onReady() {
	systray.SetTooltip(fmt.Sprintf("sharky %s", u.version))

	u.mTuneUp = systray.AddMenuItem("Tune Up", "Step up one channel")
	u.mTuneDown = systray.AddMenuItem("Tune Down", "Step down one channel")
	u.mBand = systray.AddMenuItem("Band", "Switch band")
	systray.AddSeparator()

	mVolume := systray.AddMenuItem("Volume", "Playthrough volume")
	u.volumeItems = u.buildPresetMenu(mVolume, volumePresets, func(v int) { u.radio.SetVolume(float64(v) / 100) })

	mLights := systray.AddMenuItem("Lights", "Radio lights")
	mBlue := mLights.AddSubMenuItem("Blue", "")
	u.blueItems = u.buildPresetMenu(mBlue, lightPresets, func(v int) { u.radio.SetBlueLight(v) })
	mPulse := mLights.AddSubMenuItem("Blue Pulse", "")
	u.pulseItems = u.buildPresetMenu(mPulse, pulsePresets, func(v int) { u.radio.SetBlueLightPulse(v) })
	mRed := mLights.AddSubMenuItem("Red", "")
	u.redItems = u.buildPresetMenu(mRed, lightPresets, func(v int) { u.radio.SetRedLight(v) })
	systray.AddSeparator()

	u.mFavorite = systray.AddMenuItemCheckbox("Favorite", "Save this frequency", false)
	u.mFavorites = systray.AddMenuItem("Favorites", "Tune to a saved frequency")
	u.buildFavoriteSlots()
	systray.AddSeparator()

	u.mRecognize = systray.AddMenuItemCheckbox("Live Transcript", "Transcribe the broadcast", false)
	u.mTranscript = systray.AddMenuItem("", "Latest transcript")
	u.mTranscript.Disable()
	u.mTranscript.Hide()
	u.mCopy = systray.AddMenuItem("Copy Transcript", "Copy the transcript to the clipboard")
	systray.AddSeparator()

	mAbout := systray.AddMenuItem("About", "About sharky")
	mQuit := systray.AddMenuItem("Quit", "Exit application")

	updates, unsubscribe := u.radio.Subscribe()
	go u.watch(updates)
	go u.handleEvents(mAbout, mQuit, unsubscribe)
}

func (u *UI) buildPresetMenu(parent *systray.MenuItem, presets []preset, apply func(int)) []*systray.MenuItem {
	items := make([]*systray.MenuItem, len(presets))
	for i, p := range presets {
		item := parent.AddSubMenuItemCheckbox(p.label, "", false)
		items[i] = item

		go func(value int, menuItem *systray.MenuItem) {
			for range menuItem.ClickedCh {
				apply(value)
			}
		}(p.value, item)
	}
	return items
}

// buildFavoriteSlots adds a fixed pool of items, shown as favorites appear.
func (u *UI) buildFavoriteSlots() {
	u.slots = make([]*systray.MenuItem, favoriteSlots)
	clicks := make(chan int)
	for i := range u.slots {
		item := u.mFavorites.AddSubMenuItem("", "")
		item.Hide()
		u.slots[i] = item

		go func(slot int, menuItem *systray.MenuItem) {
			for range menuItem.ClickedCh {
				clicks <- slot
			}
		}(i, item)
	}

	go func() {
		var ids []string
		for {
			select {
			case ids = <-u.slotIDs:
			case slot := <-clicks:
				if slot < len(ids) {
					if err := u.radio.TuneFavorite(ids[slot]); err != nil {
						u.log.Warn().Err(err).Msg("Failed to tune favorite")
					}
				}
			}
		}
	}()
}

func (u *UI) handleEvents(mAbout, mQuit *systray.MenuItem, unsubscribe func()) {
	for {
		select {
		case <-u.mTuneUp.ClickedCh:
			u.radio.TuneStep(band.Up)
		case <-u.mTuneDown.ClickedCh:
			u.radio.TuneStep(band.Down)
		case <-u.mBand.ClickedCh:
			u.radio.NextBand()
		case <-u.mFavorite.ClickedCh:
			u.radio.ToggleFavorite()
		case <-u.mRecognize.ClickedCh:
			u.radio.ToggleRecognition()
		case <-u.mCopy.ClickedCh:
			u.copyTranscript()
		case <-mAbout.ClickedCh:
			u.showAbout()
		case <-mQuit.ClickedCh:
			unsubscribe()
			systray.Quit()
			return
		}
	}
}

func (u *UI) watch(updates <-chan radio.State) {
	for st := range updates {
		u.render(st)
	}
}

func (u *UI) render(st radio.State) {
	systray.SetTitle(title(st))

	u.mBand.SetTitle("Band: " + st.Band.Name())
	setChecked(u.mFavorite, st.IsFavorite())
	setChecked(u.mRecognize, st.Recognizing)
	if st.RecognitionStarting {
		u.mRecognize.SetTitle("Live Transcript (starting)")
	} else {
		u.mRecognize.SetTitle("Live Transcript")
	}

	if st.RecognitionAvailable || st.Recognizing {
		u.mRecognize.Enable()
	} else {
		u.mRecognize.Disable()
	}
	if st.RecognizedText != "" {
		u.mTranscript.SetTitle(speech.Tail(st.RecognizedText, previewLength))
		u.mTranscript.Show()
	} else {
		u.mTranscript.Hide()
	}

	checkPreset(u.volumeItems, volumePresets, int(math.Round(st.Volume*100)))
	checkPreset(u.blueItems, lightPresets, st.BlueLight)
	checkPreset(u.pulseItems, pulsePresets, st.BlueLightPulse)
	checkPreset(u.redItems, lightPresets, st.RedLight)

	ids := make([]string, 0, len(st.Favorites))
	for i, item := range u.slots {
		if i >= len(st.Favorites) {
			item.Hide()
			continue
		}
		fav := st.Favorites[i]
		ids = append(ids, fav.ID)
		item.SetTitle(fav.Label())
		item.Show()
	}
	if len(st.Favorites) > len(u.slots) {
		u.log.Debug().Int("favorites", len(st.Favorites)).Msg("More favorites than menu slots")
	}

	select {
	case <-u.slotIDs:
	default:
	}
	u.slotIDs <- ids
}

func (u *UI) copyTranscript() {
	text := u.radio.State().RecognizedText
	if text == "" {
		return
	}
	if err := clipboard.WriteAll(text); err != nil {
		u.log.Error().Err(err).Msg("Failed to copy transcript")
		return
	}
	u.log.Info().Int("chars", len(text)).Msg("Copied transcript")
}

func (u *UI) showAbout() {
	u.log.Info().Str("version", u.version).Str("commit", u.commit).Msg("sharky, a RadioSHARK controller")
}

func (u *UI) onExit() {
	u.onQuit()
}

func setChecked(item *systray.MenuItem, checked bool) {
	if checked {
		item.Check()
	} else {
		item.Uncheck()
	}
}

// checkPreset checks the preset nearest to value.
func checkPreset(items []*systray.MenuItem, presets []preset, value int) {
	nearest := nearestPreset(presets, value)
	for i, item := range items {
		setChecked(item, i == nearest)
	}
}

func nearestPreset(presets []preset, value int) int {
	best := 0
	for i, p := range presets {
		if abs(p.value-value) < abs(presets[best].value-value) {
			best = i
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// title is the menu bar text for st.
func title(st radio.State) string {
	t := "📻 " + st.Label()
	if st.Recognizing {
		t += " " + recordingEmoji
	}
	if st.Detached {
		t += offlineSuffix
	}
	return t
}
