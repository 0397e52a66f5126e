package capture

import (
	"errors"
	"time"
)

const (
	DefaultEndpoint     = "COM7"
	DefaultBaudRate     = 115200
	DefaultChunkSize    = 512
	DefaultStartMarker  = "AUDIO_START"
	DefaultOutputPath   = "recording.wav"
	DefaultPollInterval = 10 * time.Millisecond
	DefaultDrainTimeout = time.Duration(0)
)

type Config struct {
	// Serial device identifier, e.g. /dev/ttyACM0 or COM7
	Endpoint string
	BaudRate int

	// Bytes appended to the output file at a time while recording
	ChunkSize   int
	StartMarker string
	OutputPath  string

	// Longest single read while recording
	PollInterval time.Duration

	// How long to keep reading after the duration elapsed. Zero performs a single short read.
	DrainTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Endpoint:     DefaultEndpoint,
		BaudRate:     DefaultBaudRate,
		ChunkSize:    DefaultChunkSize,
		StartMarker:  DefaultStartMarker,
		OutputPath:   DefaultOutputPath,
		PollInterval: DefaultPollInterval,
		DrainTimeout: DefaultDrainTimeout,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Endpoint == "" {
		errs = append(errs, errors.New("endpoint must not be empty"))
	}
	if c.BaudRate <= 0 {
		errs = append(errs, errors.New("baud rate must be positive"))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, errors.New("chunk size must be positive"))
	}
	if c.StartMarker == "" {
		errs = append(errs, errors.New("start marker must not be empty"))
	}
	if c.OutputPath == "" {
		errs = append(errs, errors.New("output path must not be empty"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	if c.DrainTimeout < 0 {
		errs = append(errs, errors.New("drain timeout must not be negative"))
	}
	return errors.Join(errs...)
}
