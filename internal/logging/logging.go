package logging

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a new zerolog logger with console and file output
func New() zerolog.Logger {
	return NewWithLevel("info")
}

// NewWithLevel is New with an explicit minimum level. Unknown levels
// fall back to info.
func NewWithLevel(level string) zerolog.Logger {
	logPath := LogPath()
	os.MkdirAll(filepath.Dir(logPath), 0755)

	file := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    8, // MB
		MaxBackups: 3,
	}

	return newLogger(level, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}, file)
}

func newLogger(level string, writers ...io.Writer) zerolog.Logger {
	SetLevel(level)
	return zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Caller().Logger()
}

// SetLevel changes the global minimum level.
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// LogPath returns platform-specific log file path
func LogPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Logs"
	case "windows":
		base = os.Getenv("LOCALAPPDATA")
	default:
		if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.local/state"
		}
	}

	return filepath.Join(base, "sharky", "sharky.log")
}
