package utils

import (
	"github.com/Honorable-Knights-of-the-Roundtable/serialwav/internal/capture"
	"github.com/spf13/viper"
)

// Set the viper defaults for a capture session.
// Durations are stored as strings so config files and env vars share one format.
func SetViperDefaults() {
	viper.SetDefault("loglevel", "info")
	viper.SetDefault("logfile", "")
	viper.SetDefault("endpoint", capture.DefaultEndpoint)
	viper.SetDefault("baudrate", capture.DefaultBaudRate)
	viper.SetDefault("chunksize", capture.DefaultChunkSize)
	viper.SetDefault("startmarker", capture.DefaultStartMarker)
	viper.SetDefault("output", capture.DefaultOutputPath)
	viper.SetDefault("pollinterval", capture.DefaultPollInterval.String())
	viper.SetDefault("draintimeout", capture.DefaultDrainTimeout.String())
}
