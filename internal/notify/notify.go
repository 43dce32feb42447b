package notify

import (
	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"
)

// Notifier shows a message to the user outside the tray.
type Notifier interface {
	Notify(title string, message string)
}

// Desktop sends native desktop notifications.
type Desktop struct {
	log  zerolog.Logger
	icon string
}

// NewDesktop creates a notifier; icon may be empty.
func NewDesktop(log zerolog.Logger, icon string) *Desktop {
	return &Desktop{log: log.With().Str("component", "notify").Logger(), icon: icon}
}

func (d *Desktop) Notify(title string, message string) {
	d.log.Info().Str("title", title).Str("message", message).Msg("Sending notification")
	if err := beeep.Notify(title, message, d.icon); err != nil {
		d.log.Error().Err(err).Msg("Failed to send notification")
	}
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Notify(string, string) {}
