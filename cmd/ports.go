package main

import (
	"fmt"
	"log/slog"

	"github.com/Honorable-Knights-of-the-Roundtable/serialwav/internal/serialstream"
	"github.com/spf13/cobra"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List the serial ports available on this machine",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := serialstream.ListPorts()
		if err != nil {
			slog.Error("could not list serial ports", "err", err)
			return reportedError{err}
		}

		out := cmd.OutOrStdout()
		if len(ports) == 0 {
			fmt.Fprintln(out, "no serial ports found")
			return nil
		}
		for _, port := range ports {
			fmt.Fprintln(out, port)
		}
		return nil
	},
}
