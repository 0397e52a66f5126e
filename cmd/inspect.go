package main

import (
	"fmt"
	"log/slog"

	"github.com/Honorable-Knights-of-the-Roundtable/serialwav/pkg/audiodevice/device"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.wav>",
	Short: "Print the format and length of a recording",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recording, err := device.NewFileAudioInputDevice(args[0])
		if err != nil {
			slog.Error("could not inspect recording", "file", args[0], "err", err)
			return reportedError{err}
		}
		defer recording.Close()

		properties := recording.GetDeviceProperties()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "file:        %s\n", args[0])
		fmt.Fprintf(out, "sample rate: %d Hz\n", properties.SampleRate)
		fmt.Fprintf(out, "channels:    %d\n", properties.NumChannels)
		fmt.Fprintf(out, "bit depth:   %d\n", properties.BitDepth)
		fmt.Fprintf(out, "pcm bytes:   %d\n", recording.PCMBytes())
		fmt.Fprintf(out, "duration:    %s\n", recording.Duration())
		return nil
	},
}
