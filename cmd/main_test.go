package main

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/Honorable-Knights-of-the-Roundtable/serialwav/internal/capture"
	"github.com/Honorable-Knights-of-the-Roundtable/serialwav/pkg/audiodevice"
	"github.com/Honorable-Knights-of-the-Roundtable/serialwav/pkg/audiodevice/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "none.yaml"), "--loglevel", "none"))
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return out.String(), err
}

func TestInspectCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recording.wav")
	out, err := device.NewFileAudioOutputDevice(path, audiodevice.MonoPCM16(16000))
	require.NoError(t, err)
	_, err = out.WriteFrames(make([]byte, 8000))
	require.NoError(t, err)
	require.NoError(t, out.Close())

	output, err := executeRoot(t, "inspect", path)
	require.NoError(t, err)
	assert.Contains(t, output, "sample rate: 16000 Hz")
	assert.Contains(t, output, "channels:    1")
	assert.Contains(t, output, "bit depth:   16")
	assert.Contains(t, output, "pcm bytes:   8000")
	assert.Contains(t, output, "duration:    250ms")
}

func TestInspectCommandRequiresFile(t *testing.T) {
	_, err := executeRoot(t, "inspect")
	require.Error(t, err)

	// Usage errors are left for main to log
	var reported reportedError
	assert.False(t, errors.As(err, &reported))
}

func TestCaptureFailsOnMissingPort(t *testing.T) {
	_, err := executeRoot(t,
		"--endpoint", "/dev/serialwav-test-does-not-exist",
		"--output", filepath.Join(t.TempDir(), "never.wav"),
	)
	assert.ErrorContains(t, err, "could not connect to /dev/serialwav-test-does-not-exist")

	var reported reportedError
	assert.True(t, errors.As(err, &reported))
	var connErr *capture.ConnectionError
	assert.True(t, errors.As(err, &connErr))
}

// Device that sends a header and payload, then closes the connection.
type scriptedStream struct {
	lines   []string
	payload []byte
}

func (s *scriptedStream) ReadLine() (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *scriptedStream) ReadTimeout(p []byte, timeout time.Duration) (int, error) {
	if len(s.payload) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.payload)
	s.payload = s.payload[n:]
	return n, nil
}

func (s *scriptedStream) Close() error {
	return nil
}

func TestCaptureReportsSavedRecording(t *testing.T) {
	stream := &scriptedStream{
		lines:   []string{capture.DefaultStartMarker, "8000", "1000"},
		payload: make([]byte, 1000),
	}
	sessionOptions = []capture.Option{
		capture.WithOpener(func(endpoint string, baudRate int) (capture.Stream, error) {
			return stream, nil
		}),
	}
	t.Cleanup(func() { sessionOptions = nil })

	path := filepath.Join(t.TempDir(), "saved.wav")
	output, err := executeRoot(t, "--output", path)
	require.NoError(t, err)
	assert.Contains(t, output, "Recording saved as "+path+"\n")

	recording, err := device.NewFileAudioInputDevice(path)
	require.NoError(t, err)
	defer recording.Close()
	assert.Equal(t, audiodevice.MonoPCM16(8000), recording.GetDeviceProperties())
	assert.Equal(t, 1000, recording.PCMBytes())
}
