package device

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/jacobsa/go-serial/serial"
	"github.com/rs/zerolog"
)

// Transport delivers encoded command argument lists to the radio.
type Transport interface {
	Send(argv []string) error
	Close() error
}

// Control names how commands reach the radio.
const (
	ControlSerial = "serial"
	ControlExec   = "exec"
	ControlNone   = "none"
)

// OpenTransport connects the control channel described by opts.
// Any failure wraps ErrUnavailable.
func OpenTransport(opts Options, log zerolog.Logger) (Transport, error) {
	switch opts.Control {
	case ControlSerial:
		return openSerial(opts, log)
	case "", ControlExec:
		return openExec(opts, log)
	case ControlNone:
		return nil, fmt.Errorf("%w: control disabled", ErrUnavailable)
	default:
		return nil, fmt.Errorf("%w: unknown control %q", ErrUnavailable, opts.Control)
	}
}

// serialTransport writes one line per command to a serial bridge.
type serialTransport struct {
	mu   sync.Mutex
	conn io.ReadWriteCloser
	port string
}

func openSerial(opts Options, log zerolog.Logger) (Transport, error) {
	if opts.SerialPort == "" || opts.BaudRate == 0 {
		return nil, fmt.Errorf("%w: serial port not configured", ErrUnavailable)
	}

	connOptions := serial.OpenOptions{
		PortName:        opts.SerialPort,
		BaudRate:        uint(opts.BaudRate),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
	}

	log.Debug().Str("port", opts.SerialPort).Int("baud", opts.BaudRate).Msg("Attempting serial connection")

	conn, err := serial.Open(connOptions)
	if err != nil {
		errMsg := err.Error()
		if strings.Contains(errMsg, "permission denied") {
			return nil, fmt.Errorf("%w: serial port %s access denied: %v", ErrUnavailable, opts.SerialPort, err)
		}
		return nil, fmt.Errorf("%w: open serial port %s: %v", ErrUnavailable, opts.SerialPort, err)
	}

	log.Info().Str("port", opts.SerialPort).Msg("Connected to serial bridge")
	return &serialTransport{conn: conn, port: opts.SerialPort}, nil
}

func (s *serialTransport) Send(argv []string) error {
	line := strings.Join(argv, " ") + "\n"
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return errors.New("serial transport closed")
	}
	if _, err := io.WriteString(s.conn, line); err != nil {
		return fmt.Errorf("write %s: %w", s.port, err)
	}
	return nil
}

func (s *serialTransport) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// execTransport runs a helper binary once per command, passing the
// arguments unchanged.
type execTransport struct {
	path string
}

func openExec(opts Options, log zerolog.Logger) (Transport, error) {
	helper := opts.Helper
	if helper == "" {
		helper = DefaultHelper
	}
	path, err := exec.LookPath(helper)
	if err != nil {
		return nil, fmt.Errorf("%w: helper %s: %v", ErrUnavailable, helper, err)
	}
	log.Info().Str("helper", path).Msg("Using command helper")
	return &execTransport{path: path}, nil
}

func (e *execTransport) Send(argv []string) error {
	out, err := exec.Command(e.path, argv...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", e.path, strings.Join(argv, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (e *execTransport) Close() error { return nil }
