package main

import (
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/0xlemi/precisepitch/internal/capture"
	"github.com/0xlemi/precisepitch/internal/follow"
	"github.com/0xlemi/precisepitch/internal/pitch"
	"github.com/0xlemi/precisepitch/internal/score"
	"github.com/0xlemi/precisepitch/internal/ui"
)

const defaultRandomCount = 16

type followOptions struct {
	key        string
	notes      string
	random     bool
	count      int
	twoOctaves bool
	auto       bool
}

// followCommand runs the note-follow exercise
func followCommand(a *app) *cobra.Command {
	opts := &followOptions{}
	cmd := &cobra.Command{
		Use:         "follow",
		Short:       "Play a scale or note sequence note by note",
		Long:        "Shows a sequence of notes and moves on once each one has been held in tune.",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{interactive: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := buildScore(opts, rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)))
			if err != nil {
				return err
			}
			return a.runFollow(cmd, doc, opts.auto)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.key, "key", "C", fmt.Sprintf("Major key, one of %v", score.Keys()))
	flags.StringVar(&opts.notes, "notes", "", `Explicit notes instead of a scale, e.g. "C2 E2 G2"`)
	flags.BoolVar(&opts.random, "random", false, "Random notes from the key's scale")
	flags.IntVar(&opts.count, "count", defaultRandomCount, "Number of random notes")
	flags.BoolVar(&opts.twoOctaves, "two-octaves", false, "Play the scale over two octaves")
	flags.BoolVar(&opts.auto, "auto", false, "Play the exercise automatically without audio input")
	flags.Int("hold-time", follow.DefaultHoldTime, "In-tune frames needed to finish a note")
	flags.Float64("tolerance", 20, "Accepted deviation in cents")
	flags.Int("smoothing", 5, "Histogram smoothing radius, 0 disables")
	return cmd
}

// buildScore turns the command options into a document
func buildScore(opts *followOptions, rng *rand.Rand) (*score.Document, error) {
	if opts.notes != "" {
		return score.Parse(opts.notes)
	}

	start, flat, err := score.Key(opts.key)
	if err != nil {
		return nil, err
	}

	var doc *score.Document
	switch {
	case opts.random:
		doc = score.RandomMajorSequence(start, max(opts.count, 1), rng)
	case opts.twoOctaves:
		doc = score.TwoOctaveMajorScale(start, true)
	default:
		doc = score.AscDescMajorScale(start)
	}
	doc.Flat = flat
	return doc, nil
}

func (a *app) runFollow(cmd *cobra.Command, doc *score.Document, auto bool) error {
	metrics, registry, err := a.newMetrics()
	if err != nil {
		return err
	}

	frames := make(chan capture.Frame, capture.FrameBufferSize)
	var source capture.Source
	if auto {
		source = capture.NewSynthetic(frames, capture.WithSyntheticLogger(a.logger))
	} else {
		source = a.newLoop(a.newDevice(), frames, metrics)
	}
	defer source.Stop()

	s := a.settings.Follow
	model := ui.NewFollowModel("PrecisePitch - "+doc.String(), doc, s.Tolerance)
	engine := follow.NewEngine(doc, model, source,
		follow.WithHoldTime(s.HoldTime),
		follow.WithSmoothing(s.Smoothing),
		follow.WithLogger(a.logger))
	model.Attach(engine)

	if err := a.runProgram(cmd.Context(), model, frames, registry); err != nil {
		return err
	}

	printSummary(cmd.OutOrStdout(), doc, model.Results(), model.Finished())
	return nil
}

// printSummary writes the per-note statistics after the TUI exits
func printSummary(w io.Writer, doc *score.Document, results []follow.NoteResult, finished bool) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No notes finished.")
		return
	}

	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	bold.Fprintf(w, "%-5s %8s %7s %7s %6s %6s\n", "Note", "Mean", "StdDev", "Time", "Frames", "Misses")
	var total time.Duration
	for _, r := range results {
		mean := r.Histogram.Mean()
		c := green
		switch {
		case math.Abs(mean) > 15:
			c = red
		case math.Abs(mean) > 5:
			c = yellow
		}
		name := pitch.NoteName(r.Target.Index, doc.Flat)
		c.Fprintf(w, "%-5s %+7.1f¢ %6.1f¢ %6.1fs %6d %6d\n",
			name, mean, r.Histogram.StdDev(), r.Duration.Seconds(), r.Frames, r.Misses)
		total += r.Duration
	}

	if finished {
		green.Fprintf(w, "Finished %d notes in %.1fs\n", len(results), total.Seconds())
	} else {
		yellow.Fprintf(w, "Stopped after %d of %d notes\n", len(results), doc.Len())
	}
}
