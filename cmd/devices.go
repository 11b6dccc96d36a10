package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/0xlemi/precisepitch/internal/audio"
)

// devicesCommand lists the capture devices PortAudio can open
func devicesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio capture devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			devices, err := audio.Devices()
			if err != nil {
				return err
			}
			a.logger.Debug("listed capture devices", "count", len(devices))

			w := cmd.OutOrStdout()
			if len(devices) == 0 {
				fmt.Fprintln(w, "No capture devices found")
				return nil
			}

			yellow := color.New(color.FgYellow)
			for _, d := range devices {
				line := fmt.Sprintf("%3d  %-40s %-20s %d ch  %.0f Hz", d.Index, d.Name, d.HostAPI, d.MaxInputChannels, d.DefaultSampleRate)
				if d.IsDefault {
					yellow.Fprintln(w, line+"  (default)")
					continue
				}
				fmt.Fprintln(w, line)
			}
			return nil
		},
	}
}
