package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/shuang886/sharky/internal/audio"
	"github.com/shuang886/sharky/internal/config"
	"github.com/shuang886/sharky/internal/device"
	"github.com/shuang886/sharky/internal/logging"
	"github.com/shuang886/sharky/internal/notify"
	"github.com/shuang886/sharky/internal/permissions"
	"github.com/shuang886/sharky/internal/radio"
	"github.com/shuang886/sharky/internal/remote"
	"github.com/shuang886/sharky/internal/speech"
	"github.com/shuang886/sharky/internal/store"
	"github.com/shuang886/sharky/internal/tray"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "config file (default: platform config dir)")
	preview := flag.Bool("preview", false, "run without radio hardware")
	headless := flag.Bool("headless", os.Getenv("SHARKY_NO_TRAY") != "", "run without the tray menu")
	listen := flag.String("listen", "", "serve the remote API on this address")
	flag.Parse()

	// Load config from XDG/Library/AppData
	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		// Use default logger if config fails to load
		log := logging.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *preview {
		cfg.Preview = true
	}
	if *listen != "" {
		cfg.Remote.Listen = *listen
	}

	// Initialize logger with configured level
	log := logging.NewWithLevel(cfg.LogLevel)
	log.Info().Str("version", Version).Str("config", loader.Path()).Msg("sharky starting...")

	loader.Watch(func(next *config.Config) {
		log.Info().Str("level", next.LogLevel).Msg("Config reloaded")
		logging.SetLevel(next.LogLevel)
	}, func(err error) {
		log.Warn().Err(err).Msg("Ignoring invalid config change")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prefs, err := store.Open(cfg.Store.Backend, cfg.Store.Path, config.DataPath(), log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open preferences, settings will not persist")
		prefs = store.NewMemory()
	}

	var capture audio.Capture
	if !cfg.Preview {
		capture, err = audio.Open(cfg.Audio.Backend, log)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize audio")
			capture = nil
		}
	}

	var recognizer *speech.Sherpa
	rcfg := radio.Config{
		Store:    prefs,
		Notifier: notify.NewDesktop(log, ""),
		Logger:   log,
	}
	if !cfg.Preview {
		rcfg.Open = opener(cfg, capture, log)
	}
	if cfg.Speech.Enabled && capture != nil {
		recognizer = speech.New(cfg.Speech, log)
		rcfg.Recognizer = recognizer
		rcfg.Authorizer = speech.All(speech.AuthorizerFunc(permissions.AuthorizeCapture), recognizer)
	}

	controller := radio.New(rcfg)

	if cfg.Remote.Listen != "" {
		server := remote.New(controller, log)
		go func() {
			if err := server.Run(ctx, cfg.Remote.Listen); err != nil {
				log.Error().Err(err).Msg("Remote API failed")
			}
		}()
	}

	// Setup shutdown signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if *headless {
		log.Info().Msg("Running without tray")
		<-sigChan
	} else {
		go func() {
			<-sigChan
			cancel()
		}()

		// Start tray UI - MUST run on main thread
		trayUI := tray.New(controller, Version, Commit, log, cancel)
		if err := trayUI.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Tray error")
		}
	}

	log.Info().Msg("Shutting down...")
	cancel()
	if err := controller.Close(); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
	if recognizer != nil {
		recognizer.Close()
	}
	if capture != nil {
		capture.Close()
	}
	if err := prefs.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close preferences")
	}
}

// opener connects the radio described by cfg.
func opener(cfg *config.Config, capture audio.Capture, log zerolog.Logger) func() (device.Device, error) {
	opts := device.Options{
		NamePrefixes:    cfg.Device.NamePrefixes,
		Control:         cfg.Device.Control,
		SerialPort:      cfg.Device.SerialPort,
		BaudRate:        cfg.Device.BaudRate,
		Helper:          cfg.Device.Helper,
		QueueSize:       cfg.Device.QueueSize,
		SampleRate:      cfg.Audio.SampleRate,
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
	}
	return func() (device.Device, error) {
		session, err := device.Open(opts, capture, log)
		if err != nil {
			return nil, err
		}
		return session, nil
	}
}
