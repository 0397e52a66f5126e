package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/Honorable-Knights-of-the-Roundtable/serialwav/internal/capture"
	"github.com/Honorable-Knights-of-the-Roundtable/serialwav/internal/utils"
	"github.com/spf13/viper"
)

const envPrefix = "SERIALWAV"

// Load defaults, the config file and environment overrides into the global viper instance.
//
// If configFilePath is empty, serialwav.yaml is searched for in the working directory
// and in $HOME/.config/serialwav. A missing config file is not an error.
func LoadConfig(configFilePath string) error {
	utils.SetViperDefaults()

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if configFilePath != "" {
		viper.SetConfigFile(configFilePath)
	} else {
		viper.SetConfigName("serialwav")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/serialwav")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			slog.Info("no config file found", "configFilePath", configFilePath)
			return nil
		}
		slog.Error("error during config read", "err", err)
		return err
	}

	slog.Debug("loaded config file", "configFile", viper.ConfigFileUsed())
	return nil
}

// Build the capture configuration from viper and validate it.
func CaptureConfig() (capture.Config, error) {
	config := capture.Config{
		Endpoint:     viper.GetString("endpoint"),
		BaudRate:     viper.GetInt("baudrate"),
		ChunkSize:    viper.GetInt("chunksize"),
		StartMarker:  viper.GetString("startmarker"),
		OutputPath:   viper.GetString("output"),
		PollInterval: viper.GetDuration("pollinterval"),
		DrainTimeout: viper.GetDuration("draintimeout"),
	}
	if err := config.Validate(); err != nil {
		return capture.Config{}, err
	}
	return config, nil
}
