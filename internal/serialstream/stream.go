// Package serialstream owns the serial connection to the microcontroller.
//
// A Stream serves two kinds of reads over one buffered reader: newline
// terminated lines for the text header, and timed reads that return whatever
// bytes are available for the binary payload. Both share the same buffer, so
// payload bytes that arrive together with the last header line are not lost.
package serialstream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
)

// Shortest timeout handed to the port. Some drivers treat zero as "block forever".
const minReadTimeout = time.Millisecond

var ErrClosed = errors.New("serial stream is closed")

// The subset of serial.Port used by a Stream.
//
// Read must return (0, nil) when a read timeout expires without data.
type Port interface {
	Read(p []byte) (n int, err error)
	SetReadTimeout(t time.Duration) error
	Close() error
}

type Stream struct {
	logger *slog.Logger
	name   string
	port   Port
	reader *bufio.Reader

	// Timeout currently applied to the port, to avoid reconfiguring it on every read
	readTimeout    time.Duration
	readTimeoutSet bool

	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool
}

// Open the serial port at endpoint with the given baud rate (8 data bits, no parity, one stop bit).
//
// The returned error wraps the *serial.PortError reported by the driver, if any.
func Open(endpoint string, baudRate int) (*Stream, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(endpoint, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", endpoint, err)
	}

	s := New(endpoint, port)
	s.logger.Debug("opened serial port", "baudRate", baudRate)
	return s, nil
}

// Wrap an already open port. The Stream takes ownership of the port and closes it on Close.
func New(name string, port Port) *Stream {
	return &Stream{
		logger: slog.Default().With("serial endpoint", name),
		name:   name,
		port:   port,
		reader: bufio.NewReader(port),
	}
}

func (s *Stream) setReadTimeout(t time.Duration) error {
	if t != serial.NoTimeout && t < minReadTimeout {
		t = minReadTimeout
	}
	if s.readTimeoutSet && s.readTimeout == t {
		return nil
	}
	if err := s.port.SetReadTimeout(t); err != nil {
		return fmt.Errorf("failed to set read timeout on %s: %w", s.name, err)
	}
	s.readTimeout = t
	s.readTimeoutSet = true
	return nil
}

// Read one line, blocking until a newline arrives.
// The returned line has its trailing "\n" and any "\r" removed.
func (s *Stream) ReadLine() (string, error) {
	if s.closed.Load() {
		return "", ErrClosed
	}
	if err := s.setReadTimeout(serial.NoTimeout); err != nil {
		return "", err
	}

	line, err := s.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Perform a single read, waiting at most timeout for data.
//
// Bytes already buffered (e.g. read alongside the header) are returned first without
// touching the port. Returns (0, nil) if the timeout elapsed with no data.
func (s *Stream) ReadTimeout(p []byte, timeout time.Duration) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if s.reader.Buffered() == 0 {
		if err := s.setReadTimeout(timeout); err != nil {
			return 0, err
		}
	}
	return s.reader.Read(p)
}

// Close the underlying port. Safe to call more than once, and from another
// goroutine to unblock a pending ReadLine.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.closeErr = s.port.Close()
		if s.closeErr != nil {
			s.logger.Error("error while closing serial port", "err", s.closeErr)
			return
		}
		s.logger.Debug("closed serial port")
	})
	return s.closeErr
}

// List the serial ports available on this machine.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	return ports, nil
}

const portNotFoundHint = "port not found, check the device is plugged in (see the ports command)"

// Describe a port error returned by Open in words a user can act on.
// Returns the empty string if the cause is not recognised.
func DescribePortError(err error) string {
	if errors.Is(err, fs.ErrNotExist) {
		return portNotFoundHint
	}
	var portErr *serial.PortError
	if !errors.As(err, &portErr) {
		return ""
	}
	switch portErr.Code() {
	case serial.PortNotFound:
		return portNotFoundHint
	case serial.PortBusy:
		return "port is busy, close any other program using it"
	case serial.PermissionDenied:
		return "permission denied, add your user to the dialout/uucp group or run with access to the device"
	case serial.InvalidSpeed:
		return "baud rate not supported by the device"
	default:
		return portErr.EncodedErrorString()
	}
}
