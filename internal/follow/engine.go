// Package follow implements the note-following exercise: it walks through a
// document of target notes and decides frame by frame whether the player
// holds the current one in tune.
package follow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/0xlemi/precisepitch/internal/capture"
	"github.com/0xlemi/precisepitch/internal/pitch"
)

// Errors
var (
	ErrEmptyDocument = errors.New("document has no notes")
	ErrInvalidState  = errors.New("operation not allowed in current state")
	ErrBadPosition   = errors.New("position outside document")
)

// DefaultHoldTime is the number of in-tune frames needed to finish a note
const DefaultHoldTime = 15

// State of the engine
type State int

const (
	Idle State = iota
	Active
	Paused
	Finished
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Paused:
		return "paused"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Document is the sequence of notes to follow
type Document interface {
	Len() int
	// Semitone returns the note index of position i (0 = 55Hz A)
	Semitone(i int) int
}

// Source is the pitch source the engine starts and stops
type Source interface {
	Start() error
	Stop()
}

// tunable sources can be told which frequency to produce
type tunable interface {
	SetExpectedFrequency(hz float64)
}

// TargetNote is the note currently expected from the player
type TargetNote struct {
	PitchClass int // 0..11, 0 = A
	Index      int // Note index, 0 = 55Hz A
}

// NoteResult summarizes how one note was played
type NoteResult struct {
	Position  int
	Target    TargetNote
	Histogram *Histogram
	Frames    int // All frames while the note was current
	InTune    int
	OutOfTune int // Right pitch class but rejected by the tuning policy
	Misses    int
	Silences  int
	Duration  time.Duration
}

// Option configures an Engine
type Option func(*Engine)

// WithHoldTime sets how many in-tune frames finish a note
func WithHoldTime(frames int) Option {
	return func(e *Engine) {
		if frames > 0 {
			e.holdTime = frames
		}
	}
}

// WithSmoothing filters each finished note's histogram with the given radius
func WithSmoothing(radius int) Option {
	return func(e *Engine) {
		e.smoothRadius = radius
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine is the note-following state machine. It is not safe for concurrent
// use; all calls must come from the goroutine consuming the pitch frames.
type Engine struct {
	doc          Document
	listener     Listener
	source       Source
	holdTime     int
	smoothRadius int
	logger       *slog.Logger

	state   State
	cursor  int
	ticks   int
	current NoteResult
	started time.Time
	results []NoteResult
}

// NewEngine creates an idle engine
func NewEngine(doc Document, listener Listener, source Source, opts ...Option) *Engine {
	e := &Engine{
		doc:      doc,
		listener: listener,
		source:   source,
		holdTime: DefaultHoldTime,
		logger:   slog.New(slog.DiscardHandler),
	}
	if e.listener == nil {
		e.listener = Funcs{}
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "follow")
	return e
}

// Start begins following at the first note and starts the source. If the
// source fails to start the engine is left Paused and the error is returned.
func (e *Engine) Start() error {
	if e.state != Idle {
		return fmt.Errorf("start while %s: %w", e.state, ErrInvalidState)
	}
	if e.doc == nil || e.doc.Len() == 0 {
		return ErrEmptyDocument
	}

	e.logger.Info("following started", "notes", e.doc.Len(), "hold_time", e.holdTime)
	e.listener.OnStartModel(e.doc)
	e.beginNote(0)

	return e.startSource()
}

// Pause stops the source and keeps the position, ticks and histogram.
// It does nothing unless the engine is Active.
func (e *Engine) Pause() {
	if e.state != Active {
		return
	}
	e.state = Paused
	if e.source != nil {
		e.source.Stop()
	}
	e.logger.Debug("following paused", "position", e.cursor, "ticks", e.ticks)
}

// Resume continues at position. Resuming where the engine paused keeps the
// accumulated ticks and histogram; any other position starts that note fresh.
func (e *Engine) Resume(position int) error {
	if e.state != Paused {
		return fmt.Errorf("resume while %s: %w", e.state, ErrInvalidState)
	}
	if position < 0 || position >= e.doc.Len() {
		return fmt.Errorf("resume at %d of %d: %w", position, e.doc.Len(), ErrBadPosition)
	}

	if position != e.cursor {
		e.beginNote(position)
	}
	e.logger.Debug("following resumed", "position", e.cursor, "ticks", e.ticks)
	return e.startSource()
}

// SourceStopped handles a source that ended on its own. The engine pauses
// without stopping the source again.
func (e *Engine) SourceStopped(err error) {
	if e.state != Active {
		return
	}
	e.state = Paused
	e.logger.Warn("pitch source stopped", "error", err, "position", e.cursor)
}

// HandleFrame dispatches a capture frame
func (e *Engine) HandleFrame(f capture.Frame) {
	if f.Err != nil {
		e.SourceStopped(f.Err)
		return
	}
	e.HandlePitch(f.Pitch)
}

// HandlePitch processes one measurement; nil means silence. Ignored unless Active.
func (e *Engine) HandlePitch(msg *pitch.MeasuredPitch) {
	if e.state != Active {
		return
	}

	e.current.Frames++
	if msg == nil {
		e.current.Silences++
		e.listener.OnSilence()
		return
	}

	diff := PitchClassDiff(msg.Note, e.current.Target.PitchClass)
	if diff == 0 {
		if e.listener.IsInTune(msg.Cent, e.ticks) {
			e.ticks = min(e.ticks+1, e.holdTime)
			e.current.InTune++
		} else {
			e.ticks = max(e.ticks-1, 0)
			e.current.OutOfTune++
		}
		e.current.Histogram.Add(msg.Cent)
	} else {
		e.ticks = max(e.ticks-2, 0)
		e.current.Misses++
		e.listener.OnNoteMiss(diff)
	}

	if e.ticks == e.holdTime {
		e.finishNote()
	}
}

// Run consumes frames until the document is finished, the source stops on
// its own, frames is closed or ctx is done. Frames arriving while paused are
// dropped.
func (e *Engine) Run(ctx context.Context, frames <-chan capture.Frame) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				return nil
			}
			e.HandleFrame(f)
			if f.Err != nil {
				return f.Err
			}
			if e.state == Finished {
				return nil
			}
		}
	}
}

// PitchClassDiff returns how many semitones note is away from the target
// pitch class, folded to -6..5 regardless of octave
func PitchClassDiff(note, targetClass int) int {
	return pitch.PitchClass(note+12-targetClass+6) - 6
}

// State returns the current state
func (e *Engine) State() State { return e.state }

// Position returns the index of the current note
func (e *Engine) Position() int { return e.cursor }

// Ticks returns the in-tune frames accumulated for the current note
func (e *Engine) Ticks() int { return e.ticks }

// HoldTime returns the ticks needed to finish a note
func (e *Engine) HoldTime() int { return e.holdTime }

// Current returns the statistics gathered so far for the current note
func (e *Engine) Current() NoteResult {
	r := e.current
	r.Histogram = r.Histogram.Clone()
	r.Duration = time.Since(e.started)
	return r
}

// Results returns the finished notes in document order of completion
func (e *Engine) Results() []NoteResult {
	return append([]NoteResult(nil), e.results...)
}

func (e *Engine) target(position int) TargetNote {
	semitone := e.doc.Semitone(position)
	return TargetNote{PitchClass: pitch.PitchClass(semitone), Index: semitone}
}

// beginNote makes position the current note with fresh statistics
func (e *Engine) beginNote(position int) {
	e.cursor = position
	e.ticks = 0
	e.started = time.Now()
	e.current = NoteResult{
		Position:  position,
		Target:    e.target(position),
		Histogram: NewHistogram(),
	}

	if t, ok := e.source.(tunable); ok {
		t.SetExpectedFrequency(pitch.Frequency(e.current.Target.Index))
	}
	e.listener.OnStartNote(position, e.current.Target)
}

func (e *Engine) finishNote() {
	result := e.current
	result.Duration = time.Since(e.started)
	if e.smoothRadius > 0 {
		result.Histogram.Filter(e.smoothRadius)
	}
	e.results = append(e.results, result)

	e.logger.Debug("note finished",
		"position", result.Position,
		"note", pitch.NoteName(result.Target.Index, false),
		"frames", result.Frames,
		"mean_cent", result.Histogram.Mean())
	e.listener.OnFinishedNote(result)

	next := e.cursor + 1
	if next >= e.doc.Len() {
		e.state = Finished
		if e.source != nil {
			e.source.Stop()
		}
		e.logger.Info("following finished", "notes", len(e.results))
		e.listener.OnFinishedModel(e.doc)
		return
	}
	e.beginNote(next)
}

func (e *Engine) startSource() error {
	if e.source == nil {
		e.state = Active
		return nil
	}
	if err := e.source.Start(); err != nil {
		e.state = Paused
		return fmt.Errorf("start pitch source: %w", err)
	}
	e.state = Active
	return nil
}
