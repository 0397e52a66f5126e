// Package capture records one audio transmission from a serial stream into a .WAV file.
//
// A Session waits for the start marker, reads the sample rate and duration
// header, copies fixed size chunks of PCM into the output file until the
// duration elapses, then drains whatever the device still sends and
// finalizes the file. The session runs on a single goroutine and moves
// through its states strictly in order:
//
//	AwaitingStart -> HeaderRead -> Recording -> Draining -> Finalized
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Honorable-Knights-of-the-Roundtable/serialwav/internal/serialstream"
	"github.com/Honorable-Knights-of-the-Roundtable/serialwav/pkg/audiodevice"
	"github.com/Honorable-Knights-of-the-Roundtable/serialwav/pkg/audiodevice/device"
	"github.com/google/uuid"
)

// Size of the scratch buffer used while draining.
const drainBufferSize = 4096

var errSessionReused = errors.New("a capture session can only be run once")

// Stream is the byte source a Session reads from, normally a *serialstream.Stream.
type Stream interface {
	ReadLine() (string, error)
	ReadTimeout(p []byte, timeout time.Duration) (int, error)
	Close() error
}

type Opener func(endpoint string, baudRate int) (Stream, error)

type SinkFactory func(path string, properties audiodevice.DeviceProperties) (audiodevice.AudioSinkDevice, error)

func openSerialStream(endpoint string, baudRate int) (Stream, error) {
	stream, err := serialstream.Open(endpoint, baudRate)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func createWavFile(path string, properties audiodevice.DeviceProperties) (audiodevice.AudioSinkDevice, error) {
	sink, err := device.NewFileAudioOutputDevice(path, properties)
	if err != nil {
		return nil, err
	}
	return sink, nil
}

// Summary of a finished session.
type Result struct {
	OutputPath string
	Header     Header

	// Bytes written in full chunks while the duration was running
	RecordedBytes int
	Chunks        int

	// Bytes written after the duration elapsed: the last partial chunk plus the drain
	DrainedBytes int

	// Time spent in the recording window
	Elapsed time.Duration

	// Set if the window ended before the duration elapsed
	Interrupted bool
}

func (r Result) TotalBytes() int {
	return r.RecordedBytes + r.DrainedBytes
}

type Session struct {
	logger *slog.Logger
	config Config

	open       Opener
	createSink SinkFactory
	now        func() time.Time

	state   State
	started bool
}

type Option func(*Session)

// Replace the function used to open the stream, e.g. with a simulated device.
func WithOpener(open Opener) Option {
	return func(s *Session) {
		s.open = open
	}
}

func WithSinkFactory(createSink SinkFactory) Option {
	return func(s *Session) {
		s.createSink = createSink
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

func NewSession(config Config, opts ...Option) *Session {
	s := &Session{
		logger: slog.Default().With(
			"capture session uuid", uuid.New(),
		),
		config:     config,
		open:       openSerialStream,
		createSink: createWavFile,
		now:        time.Now,
		state:      StateAwaitingStart,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) transition(next State) error {
	if !s.state.canTransitionTo(next) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, s.state, next)
	}
	s.logger.Debug("session state change", "from", s.state, "to", next)
	s.state = next
	return nil
}

// Run the session to completion.
//
// The stream is closed on every return path, as is the output file once created.
// Cancelling ctx while waiting for the header aborts the session; cancelling it while
// recording ends the window early, and the file is still drained and finalized.
func (s *Session) Run(ctx context.Context) (result Result, err error) {
	if s.started {
		return Result{}, errSessionReused
	}
	s.started = true

	if err := s.config.Validate(); err != nil {
		return Result{}, err
	}

	stream, err := s.open(s.config.Endpoint, s.config.BaudRate)
	if err != nil {
		s.logger.Error("could not open stream", "endpoint", s.config.Endpoint, "err", err)
		return Result{}, &ConnectionError{
			Endpoint: s.config.Endpoint,
			Hint:     serialstream.DescribePortError(err),
			Err:      err,
		}
	}
	defer func() {
		if closeErr := stream.Close(); closeErr != nil && err == nil {
			err = &IOError{Op: "close stream", Path: s.config.Endpoint, Err: closeErr}
		}
	}()

	header, err := s.awaitHeader(ctx, stream)
	if err != nil {
		return Result{}, err
	}
	s.logger.Info(
		"received header",
		"sampleRate", header.SampleRate,
		"duration", header.Duration,
	)

	sink, err := s.createSink(s.config.OutputPath, audiodevice.MonoPCM16(header.SampleRate))
	if err != nil {
		return Result{}, &IOError{Op: "create output file", Path: s.config.OutputPath, Err: err}
	}
	sinkClosed := false
	defer func() {
		if !sinkClosed {
			sink.Close()
		}
	}()

	result = Result{
		OutputPath: s.config.OutputPath,
		Header:     header,
	}

	if err := s.transition(StateRecording); err != nil {
		return result, err
	}
	pending, err := s.record(ctx, stream, sink, header.Duration, &result)
	if err != nil {
		return result, err
	}

	if err := s.transition(StateDraining); err != nil {
		return result, err
	}
	drained, err := s.drain(stream)
	if err != nil {
		return result, err
	}
	tail := append(pending, drained...)
	if len(tail) > 0 {
		if _, err := sink.WriteFrames(tail); err != nil {
			return result, &IOError{Op: "write output file", Path: s.config.OutputPath, Err: err}
		}
	}
	result.DrainedBytes = len(tail)
	s.logger.Debug("drained stream", "pendingBytes", len(pending), "drainedBytes", len(drained))

	sinkClosed = true
	if err := sink.Close(); err != nil {
		return result, &IOError{Op: "finalize output file", Path: s.config.OutputPath, Err: err}
	}
	if err := s.transition(StateFinalized); err != nil {
		return result, err
	}

	s.logger.Debug(
		"session finalized",
		"recordedBytes", result.RecordedBytes,
		"drainedBytes", result.DrainedBytes,
		"chunks", result.Chunks,
		"elapsed", result.Elapsed,
	)
	return result, nil
}

// Wait for the start marker, then read the header.
// The stream is closed if ctx is cancelled, since line reads block without a timeout.
func (s *Session) awaitHeader(ctx context.Context, stream Stream) (Header, error) {
	stop := context.AfterFunc(ctx, func() {
		stream.Close()
	})

	s.logger.Info("waiting for start marker", "marker", s.config.StartMarker)
	header, err := s.readMarkerAndHeader(ctx, stream)

	// If stop reports false the stream was closed by cancellation
	if !stop() {
		return Header{}, fmt.Errorf("%s: %w", s.state, context.Cause(ctx))
	}
	if err != nil {
		return Header{}, err
	}
	if err := s.transition(StateHeaderRead); err != nil {
		return Header{}, err
	}
	return header, nil
}

func (s *Session) readMarkerAndHeader(ctx context.Context, stream Stream) (Header, error) {
	if err := s.awaitStart(ctx, stream); err != nil {
		return Header{}, err
	}
	return s.readHeader(stream)
}

// Discard lines until one equals the start marker.
func (s *Session) awaitStart(ctx context.Context, stream Stream) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := stream.ReadLine()
		if err != nil {
			return &IOError{Op: "read start marker", Path: s.config.Endpoint, Err: err}
		}
		if strings.TrimSpace(line) == s.config.StartMarker {
			return nil
		}
		s.logger.Debug("discarding line before start marker", "line", line)
	}
}

// Copy full chunks from the stream into sink until the duration elapses.
//
// Only whole chunks are written. The bytes of an incomplete chunk are returned
// so the drain can write them in order.
func (s *Session) record(
	ctx context.Context,
	stream Stream,
	sink audiodevice.AudioSinkDevice,
	duration time.Duration,
	result *Result,
) ([]byte, error) {
	chunk := make([]byte, s.config.ChunkSize)
	filled := 0

	start := s.now()
	deadline := start.Add(duration)
	defer func() {
		result.Elapsed = s.now().Sub(start)
	}()

	for {
		remaining := deadline.Sub(s.now())
		if remaining <= 0 {
			break
		}
		if ctx.Err() != nil {
			s.logger.Warn("recording interrupted", "remaining", remaining)
			result.Interrupted = true
			break
		}

		n, err := stream.ReadTimeout(chunk[filled:], min(remaining, s.config.PollInterval))
		filled += n
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Warn("stream ended before duration elapsed", "remaining", remaining)
				result.Interrupted = true
				break
			}
			return nil, &IOError{Op: "read stream", Path: s.config.Endpoint, Err: err}
		}
		if filled < len(chunk) {
			continue
		}

		if _, err := sink.WriteFrames(chunk); err != nil {
			return nil, &IOError{Op: "write output file", Path: s.config.OutputPath, Err: err}
		}
		result.RecordedBytes += len(chunk)
		result.Chunks++
		filled = 0
	}

	return chunk[:filled], nil
}

// Read whatever the stream still delivers within the drain timeout.
// Stops early at the first read that returns no data. A zero timeout performs
// one short read of the bytes already buffered.
func (s *Session) drain(stream Stream) ([]byte, error) {
	var drained []byte
	buf := make([]byte, drainBufferSize)
	deadline := s.now().Add(s.config.DrainTimeout)

	for {
		n, err := stream.ReadTimeout(buf, max(deadline.Sub(s.now()), 0))
		drained = append(drained, buf[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return drained, nil
			}
			return drained, &IOError{Op: "drain stream", Path: s.config.Endpoint, Err: err}
		}
		if n == 0 || !s.now().Before(deadline) {
			return drained, nil
		}
	}
}
