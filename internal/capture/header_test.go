package capture

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeaderValue(t *testing.T) {
	tests := []struct {
		field   string
		line    string
		limit   int64
		want    int64
		wantErr error
	}{
		{field: "sample rate", line: "16000", limit: MaxSampleRate, want: 16000},
		{field: "sample rate", line: " 44100 ", limit: MaxSampleRate, want: 44100},
		{field: "sample rate", line: "384000", limit: MaxSampleRate, want: MaxSampleRate},
		{field: "sample rate", line: "384001", limit: MaxSampleRate, wantErr: strconv.ErrRange},
		{field: "sample rate", line: "4294967297", limit: MaxSampleRate, wantErr: strconv.ErrRange},
		{field: "sample rate", line: "0", limit: MaxSampleRate, wantErr: ErrNonPositive},
		{field: "sample rate", line: "-1", limit: MaxSampleRate, wantErr: ErrNonPositive},
		{field: "sample rate", line: "abc", limit: MaxSampleRate, wantErr: strconv.ErrSyntax},
		{field: "sample rate", line: "", limit: MaxSampleRate, wantErr: strconv.ErrSyntax},
		{field: "sample rate", line: "1.5", limit: MaxSampleRate, wantErr: strconv.ErrSyntax},
		{field: "duration", line: "2000\r", limit: maxDurationMs, want: 2000},
		{field: "duration", line: "9223372036854", limit: maxDurationMs, want: 9223372036854},
		{field: "duration", line: "9223372036855", limit: maxDurationMs, wantErr: strconv.ErrRange},
		{field: "duration", line: "99999999999999999999", limit: maxDurationMs, wantErr: strconv.ErrRange},
	}

	for _, tt := range tests {
		t.Run(tt.field+"/"+tt.line, func(t *testing.T) {
			got, err := parseHeaderValue(tt.field, tt.line, tt.limit)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}

			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr))
			assert.Equal(t, tt.field, parseErr.Field)
			assert.Equal(t, tt.line, parseErr.Line)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestStateOrder(t *testing.T) {
	order := []State{StateAwaitingStart, StateHeaderRead, StateRecording, StateDraining, StateFinalized}
	for i, state := range order {
		for j, next := range order {
			assert.Equal(t, j == i+1, state.canTransitionTo(next), "%s -> %s", state, next)
		}
	}
	assert.Equal(t, "recording", StateRecording.String())
	assert.Equal(t, "unknown state 9", State(9).String())
}

func TestTransitionRejectsBackwardMoves(t *testing.T) {
	s := NewSession(DefaultConfig())
	require.NoError(t, s.transition(StateHeaderRead))
	require.NoError(t, s.transition(StateRecording))

	assert.ErrorIs(t, s.transition(StateHeaderRead), ErrInvalidTransition)
	assert.ErrorIs(t, s.transition(StateFinalized), ErrInvalidTransition)
	assert.Equal(t, StateRecording, s.State())
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	zeroDrain := DefaultConfig()
	zeroDrain.DrainTimeout = 0
	require.NoError(t, zeroDrain.Validate())

	err := Config{DrainTimeout: -1}.Validate()
	require.Error(t, err)
	for _, msg := range []string{"endpoint", "baud rate", "chunk size", "start marker", "output path", "poll interval", "drain timeout"} {
		assert.Contains(t, err.Error(), msg)
	}
}

func TestErrorMessages(t *testing.T) {
	cause := errors.New("boom")

	connErr := &ConnectionError{Endpoint: "COM7", Hint: "port is busy", Err: cause}
	assert.Equal(t, "could not connect to COM7: port is busy (boom)", connErr.Error())
	assert.ErrorIs(t, connErr, cause)

	parseErr := &ParseError{Field: "duration", Line: "2s", Err: cause}
	assert.Equal(t, `invalid duration header line "2s": boom`, parseErr.Error())

	ioErr := &IOError{Op: "create output file", Path: "out.wav", Err: cause}
	assert.Equal(t, "create output file out.wav: boom", ioErr.Error())
	assert.Equal(t, "read stream: boom", (&IOError{Op: "read stream", Err: cause}).Error())
	assert.ErrorIs(t, ioErr, cause)
}
