package capture

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Highest sample rate accepted in a header. The WAV encoder preallocates a
// minute of audio at the header rate.
const MaxSampleRate = 384000

// Longest duration, in milliseconds, that fits in a time.Duration.
const maxDurationMs = math.MaxInt64 / int64(time.Millisecond)

// Header sent by the microcontroller after the start marker.
type Header struct {
	SampleRate int
	Duration   time.Duration
}

// Parse one header line as a decimal integer in [1, limit].
func parseHeaderValue(field, line string, limit int64) (int64, error) {
	value, err := strconv.ParseInt(strings.TrimSpace(line), 10, 64)
	if err != nil {
		return 0, &ParseError{Field: field, Line: line, Err: err}
	}
	if value <= 0 {
		return 0, &ParseError{Field: field, Line: line, Err: ErrNonPositive}
	}
	if value > limit {
		return 0, &ParseError{Field: field, Line: line, Err: strconv.ErrRange}
	}
	return value, nil
}

// Read the sample rate line (Hz) then the duration line (milliseconds).
func (s *Session) readHeader(stream Stream) (Header, error) {
	readValue := func(field string, limit int64) (int64, error) {
		line, err := stream.ReadLine()
		if err != nil {
			return 0, &IOError{Op: "read " + field + " header", Path: s.config.Endpoint, Err: err}
		}
		return parseHeaderValue(field, line, limit)
	}

	sampleRate, err := readValue("sample rate", MaxSampleRate)
	if err != nil {
		return Header{}, err
	}
	durationMs, err := readValue("duration", maxDurationMs)
	if err != nil {
		return Header{}, err
	}

	return Header{
		SampleRate: int(sampleRate),
		Duration:   time.Duration(durationMs) * time.Millisecond,
	}, nil
}
