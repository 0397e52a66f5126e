package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Honorable-Knights-of-the-Roundtable/serialwav/cmd/config"
	"github.com/Honorable-Knights-of-the-Roundtable/serialwav/internal/capture"
	"github.com/Honorable-Knights-of-the-Roundtable/serialwav/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	configFilePath string

	// Set when logs go to a file, closed on exit
	logFile *os.File

	// Extra options for every capture session, e.g. a simulated serial device in tests
	sessionOptions []capture.Option
)

// An error that has already been logged with a message specific to its kind.
type reportedError struct {
	error
}

func (e reportedError) Unwrap() error {
	return e.error
}

var rootCmd = &cobra.Command{
	Use:   "serialwav",
	Short: "Record audio streamed by a microcontroller over a serial port into a .WAV file",
	Long: `serialwav waits for the start marker on the serial port, reads the sample
rate (Hz) and duration (ms) header lines, then records the raw 16 bit mono PCM
that follows into a .WAV file until the duration elapses.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCapture,
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFilePath, "config", "c", "", "config file (default is ./serialwav.yaml or $HOME/.config/serialwav/serialwav.yaml)")
	flags.String("loglevel", "info", "log level: none, error, warn, info or debug")
	flags.String("logfile", "", "write JSON logs to this file instead of stderr")

	captureFlags := rootCmd.Flags()
	captureFlags.StringP("endpoint", "p", capture.DefaultEndpoint, "serial port the microcontroller is attached to")
	captureFlags.IntP("baudrate", "b", capture.DefaultBaudRate, "serial line speed")
	captureFlags.StringP("output", "o", capture.DefaultOutputPath, "path of the .WAV file to write (overwritten if present)")
	captureFlags.Int("chunksize", capture.DefaultChunkSize, "bytes appended to the file at a time while recording")
	captureFlags.String("startmarker", capture.DefaultStartMarker, "line that announces the start of a transmission")
	captureFlags.Duration("pollinterval", capture.DefaultPollInterval, "longest single serial read while recording")
	captureFlags.Duration("draintimeout", capture.DefaultDrainTimeout, "how long to keep reading after the duration elapsed")

	bindFlags(rootCmd)

	rootCmd.AddCommand(portsCmd, inspectCmd)
}

// Bind every flag except --config to the viper key of the same name,
// so flags override the config file and environment.
func bindFlags(cmd *cobra.Command) {
	for _, flags := range []*pflag.FlagSet{cmd.PersistentFlags(), cmd.Flags()} {
		flags.VisitAll(func(f *pflag.Flag) {
			if f.Name == "config" {
				return
			}
			if err := viper.BindPFlag(f.Name, f); err != nil {
				panic(err)
			}
		})
	}
}

func initConfig() {
	if err := config.LoadConfig(configFilePath); err != nil {
		slog.Error("error during config read", "err", err)
		os.Exit(1)
	}

	logFilePointer, err := utils.ConfigureDefaultLogger(
		viper.GetString("loglevel"),
		viper.GetString("logfile"),
		slog.HandlerOptions{},
	)
	if err != nil {
		slog.Error("error while configuring default logger", "err", err)
		os.Exit(1)
	}
	logFile = logFilePointer
}

func runCapture(cmd *cobra.Command, args []string) error {
	captureConfig, err := config.CaptureConfig()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		return reportedError{err}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info(
		"starting capture",
		"endpoint", captureConfig.Endpoint,
		"baudRate", captureConfig.BaudRate,
		"output", captureConfig.OutputPath,
	)

	result, err := capture.NewSession(captureConfig, sessionOptions...).Run(ctx)
	if err != nil {
		reportCaptureError(err)
		return reportedError{err}
	}

	slog.Info(
		"audio recording saved",
		"file", result.OutputPath,
		"sampleRate", result.Header.SampleRate,
		"bytes", result.TotalBytes(),
		"elapsed", result.Elapsed,
		"interrupted", result.Interrupted,
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Recording saved as %s\n", result.OutputPath)
	return nil
}

// Log a capture failure with a message specific to its kind.
func reportCaptureError(err error) {
	var (
		connErr  *capture.ConnectionError
		parseErr *capture.ParseError
		ioErr    *capture.IOError
	)
	switch {
	case errors.As(err, &connErr):
		slog.Error(
			"could not open the serial port, check the endpoint and baud rate",
			"endpoint", connErr.Endpoint,
			"hint", connErr.Hint,
			"err", connErr.Err,
		)
	case errors.As(err, &parseErr):
		slog.Error(
			"the device sent a malformed header, expected a positive integer in range",
			"field", parseErr.Field,
			"line", parseErr.Line,
			"err", parseErr.Err,
		)
	case errors.As(err, &ioErr):
		slog.Error(
			"i/o failure during capture",
			"op", ioErr.Op,
			"path", ioErr.Path,
			"err", ioErr.Err,
		)
	case errors.Is(err, context.Canceled):
		slog.Warn("capture cancelled before the recording started")
	default:
		slog.Error("capture failed", "err", err)
	}
}

func main() {
	err := rootCmd.Execute()
	if err != nil {
		// Usage errors are silenced by cobra and not yet logged
		var reported reportedError
		if !errors.As(err, &reported) {
			slog.Error("command failed", "err", err)
		}
	}
	if logFile != nil {
		logFile.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}
