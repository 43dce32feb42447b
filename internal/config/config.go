package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const appName = "sharky"

type Config struct {
	LogLevel string       `mapstructure:"log_level"`
	Preview  bool         `mapstructure:"preview"` // run without hardware
	Device   DeviceConfig `mapstructure:"device"`
	Audio    AudioConfig  `mapstructure:"audio"`
	Store    StoreConfig  `mapstructure:"store"`
	Speech   SpeechConfig `mapstructure:"speech"`
	Remote   RemoteConfig `mapstructure:"remote"`
}

type DeviceConfig struct {
	NamePrefixes []string `mapstructure:"name_prefixes"`
	Control      string   `mapstructure:"control"` // "serial", "exec" or "none"
	SerialPort   string   `mapstructure:"serial_port"`
	BaudRate     int      `mapstructure:"baud_rate"`
	Helper       string   `mapstructure:"helper"`
	QueueSize    int      `mapstructure:"queue_size"`
}

type AudioConfig struct {
	Backend         string `mapstructure:"backend"` // "portaudio" or "pulse"
	SampleRate      int    `mapstructure:"sample_rate"`
	FramesPerBuffer int    `mapstructure:"frames_per_buffer"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend"` // "yaml" or "sqlite"
	Path    string `mapstructure:"path"`
}

type SpeechConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Model    string `mapstructure:"model"`
	Threads  int    `mapstructure:"threads"`
	Provider string `mapstructure:"provider"` // "cpu", "cuda", "coreml"
}

type RemoteConfig struct {
	Listen string `mapstructure:"listen"` // empty disables the API
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("preview", false)
	v.SetDefault("device.name_prefixes", []string{"RadioSHARK", "radioSHARK"})
	v.SetDefault("device.control", "exec")
	v.SetDefault("device.serial_port", "")
	v.SetDefault("device.baud_rate", 9600)
	v.SetDefault("device.helper", "shark2")
	v.SetDefault("device.queue_size", 64)
	v.SetDefault("audio.backend", "portaudio")
	v.SetDefault("audio.sample_rate", 48000)
	v.SetDefault("audio.frames_per_buffer", 1024)
	v.SetDefault("store.backend", "yaml")
	v.SetDefault("store.path", "")
	v.SetDefault("speech.enabled", true)
	v.SetDefault("speech.model", "streaming-zipformer-en-2023-06-26")
	v.SetDefault("speech.threads", 2)
	v.SetDefault("speech.provider", "cpu")
	v.SetDefault("remote.listen", "")
}

// Loader reads the config file and environment and can watch the file.
type Loader struct {
	v    *viper.Viper
	path string
	mu   sync.Mutex
}

// NewLoader prepares a loader for path, or the platform config file when
// path is empty. Environment variables prefixed SHARKY_ override the file.
func NewLoader(path string) *Loader {
	if path == "" {
		path = ConfigPath()
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(appName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	return &Loader{v: v, path: path}
}

// Path is the config file being read.
func (l *Loader) Path() string { return l.path }

// Load reads the config from disk or returns defaults
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", l.path, err)
		}
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", l.path, err)
	}
	return cfg, nil
}

// Load reads the platform config file.
func Load() (*Config, error) {
	return NewLoader("").Load()
}

// Watch calls fn with the reloaded config after each write to the file.
// Reload failures are passed to onError and leave the previous config in
// effect.
func (l *Loader) Watch(fn func(*Config), onError func(error)) {
	const (
		minTimeBetweenReloads = 500 * time.Millisecond
		delayAfterEvent       = 50 * time.Millisecond
	)

	var last time.Time

	l.v.OnConfigChange(func(event fsnotify.Event) {
		if event.Op&fsnotify.Write != fsnotify.Write {
			return
		}
		now := time.Now()
		// editors often write twice
		if now.Sub(last) < minTimeBetweenReloads {
			return
		}
		last = now

		<-time.After(delayAfterEvent)

		cfg, err := l.Load()
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		fn(cfg)
	})
	l.v.WatchConfig()
}

func configBase() string {
	switch runtime.GOOS {
	case "darwin":
		return os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		return os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return xdg
		}
		return os.Getenv("HOME") + "/.config"
	}
}

func dataBase() string {
	switch runtime.GOOS {
	case "darwin":
		return os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		return os.Getenv("LOCALAPPDATA")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return xdg
		}
		return os.Getenv("HOME") + "/.local/share"
	}
}

// ConfigPath returns the platform-specific config file path
func ConfigPath() string {
	return filepath.Join(configBase(), appName, "config.yaml")
}

// DataPath returns the platform-specific directory for persisted preferences
func DataPath() string {
	return filepath.Join(dataBase(), appName)
}

// ModelsPath returns the platform-specific models directory path
func ModelsPath() string {
	return filepath.Join(dataBase(), appName, "models")
}
