package main

import (
	"github.com/spf13/cobra"

	"github.com/0xlemi/precisepitch/internal/capture"
	"github.com/0xlemi/precisepitch/internal/ui"
)

// tuneCommand shows the live tuner
func tuneCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "tune",
		Short:       "Show the note, octave and cents of the input live",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{interactive: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			metrics, registry, err := a.newMetrics()
			if err != nil {
				return err
			}

			frames := make(chan capture.Frame, capture.FrameBufferSize)
			loop := a.newLoop(a.newDevice(), frames, metrics)
			if err := loop.Start(); err != nil {
				return err
			}
			defer loop.Stop()

			return a.runProgram(cmd.Context(), ui.NewModel("PrecisePitch - Tuner"), frames, registry)
		},
	}
}
