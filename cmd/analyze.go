package main

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/0xlemi/precisepitch/internal/audio"
	"github.com/0xlemi/precisepitch/internal/capture"
)

// analyzeCommand prints the pitch track of a WAV file
func analyzeCommand(a *app) *cobra.Command {
	var flat bool
	cmd := &cobra.Command{
		Use:   "analyze [input.wav]",
		Short: "Print the pitch track of a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.analyze(cmd, args[0], flat)
		},
	}
	cmd.Flags().BoolVar(&flat, "flat", false, "Name accidentals with flats")
	return cmd
}

func (a *app) analyze(cmd *cobra.Command, path string, flat bool) error {
	device := audio.NewWAVDevice(path, false)
	frames := make(chan capture.Frame, capture.FrameBufferSize)
	loop := a.newLoop(device, frames, nil)
	if err := loop.Start(); err != nil {
		return err
	}
	defer loop.Stop()

	// Seconds covered by one frame
	step := float64(audio.SuggestedSampleCount(device.SampleRate(), a.settings.Audio.MinFrequency)) /
		float64(device.SampleRate())

	w := cmd.OutOrStdout()
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	var pitched, total int
	for {
		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case f := <-frames:
			if f.Err != nil {
				if !errors.Is(f.Err, io.EOF) {
					return f.Err
				}
				fmt.Fprintf(w, "%d frames, %d with pitch\n", total, pitched)
				return nil
			}

			total++
			at := float64(f.Seq) * step
			if f.Pitch == nil {
				gray.Fprintf(w, "%7.2fs  %-4s %10s %12s %7.1f dB\n", at, "-", "", "", f.Level)
				continue
			}

			pitched++
			c := green
			if math.Abs(f.Pitch.Cent) > 10 {
				c = yellow
			}
			c.Fprintf(w, "%7.2fs  %-4s %7.2f Hz %+6.1f cents %7.1f dB\n",
				at, f.Pitch.Name(flat), f.Pitch.Frequency, f.Pitch.Cent, f.Level)
		}
	}
}
