package follow

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/0xlemi/precisepitch/internal/capture"
	"github.com/0xlemi/precisepitch/internal/pitch"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// notes is a minimal Document
type notes []int

func (n notes) Len() int           { return len(n) }
func (n notes) Semitone(i int) int { return n[i] }

type fakeSource struct {
	startErr error
	starts   int
	stops    int
	expected []float64
}

func (s *fakeSource) Start() error {
	if s.startErr != nil {
		return s.startErr
	}
	s.starts++
	return nil
}

func (s *fakeSource) Stop() { s.stops++ }

func (s *fakeSource) SetExpectedFrequency(hz float64) {
	s.expected = append(s.expected, hz)
}

// recorder logs every callback as a string
type recorder struct {
	events  []string
	results []NoteResult
	inTune  func(cent float64, ticks int) bool
}

func (r *recorder) OnStartModel(Document)    { r.events = append(r.events, "start-model") }
func (r *recorder) OnFinishedModel(Document) { r.events = append(r.events, "finished-model") }
func (r *recorder) OnSilence()               { r.events = append(r.events, "silence") }

func (r *recorder) OnStartNote(position int, target TargetNote) {
	r.events = append(r.events, fmt.Sprintf("start-note %d %d", position, target.PitchClass))
}

func (r *recorder) OnFinishedNote(result NoteResult) {
	r.events = append(r.events, fmt.Sprintf("finished-note %d", result.Position))
	r.results = append(r.results, result)
}

func (r *recorder) OnNoteMiss(diff int) {
	r.events = append(r.events, fmt.Sprintf("miss %d", diff))
}

func (r *recorder) IsInTune(cent float64, ticks int) bool {
	if r.inTune == nil {
		return true
	}
	return r.inTune(cent, ticks)
}

func measured(note int, cent float64) *pitch.MeasuredPitch {
	return &pitch.MeasuredPitch{Frequency: pitch.Frequency(note), Note: note, Cent: cent}
}

func TestEngineFinishesSingleNote(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	rec := &recorder{}
	e := NewEngine(notes{3}, rec, src)

	require.NoError(t, e.Start())
	assert.Equal(t, Active, e.State())
	assert.Equal(t, 1, src.starts)

	// Any octave of C counts
	for i := 0; i < DefaultHoldTime; i++ {
		e.HandlePitch(measured(15, 2))
	}

	assert.Equal(t, Finished, e.State())
	assert.Equal(t, []string{
		"start-model",
		"start-note 0 3",
		"finished-note 0",
		"finished-model",
	}, rec.events)
	assert.Equal(t, 1, src.stops)

	require.Len(t, rec.results, 1)
	res := rec.results[0]
	assert.Equal(t, DefaultHoldTime, res.Frames)
	assert.Equal(t, DefaultHoldTime, res.InTune)
	assert.Equal(t, DefaultHoldTime, res.Histogram.Total())
	assert.Equal(t, DefaultHoldTime, res.Histogram.Count(52))
	assert.Equal(t, TargetNote{PitchClass: 3, Index: 3}, res.Target)

	// Finished is terminal
	e.HandlePitch(measured(3, 0))
	assert.Len(t, rec.events, 4)
	require.ErrorIs(t, e.Start(), ErrInvalidState)
}

func TestEngineTicksAndMisses(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	e := NewEngine(notes{0, 2}, rec, nil)
	require.NoError(t, e.Start())

	// A wrong note with no ticks stays at zero
	e.HandlePitch(measured(1, 0))
	assert.Zero(t, e.Ticks())

	for i := 0; i < 5; i++ {
		e.HandlePitch(measured(12, 0))
	}
	assert.Equal(t, 5, e.Ticks())

	e.HandlePitch(measured(11, 0))
	assert.Equal(t, 3, e.Ticks())

	e.HandlePitch(measured(6, 0))
	e.HandlePitch(measured(5, 0))
	assert.Zero(t, e.Ticks())

	assert.Equal(t, []string{
		"start-model",
		"start-note 0 0",
		"miss 1",
		"miss -1",
		"miss -6",
		"miss 5",
	}, rec.events)
	assert.Equal(t, 4, e.Current().Misses)
}

func TestEngineSilenceKeepsTicks(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	e := NewEngine(notes{7}, rec, nil)
	require.NoError(t, e.Start())

	e.HandlePitch(measured(7, 0))
	e.HandlePitch(measured(7, 0))
	e.HandlePitch(nil)
	assert.Equal(t, 2, e.Ticks())
	assert.Contains(t, rec.events, "silence")
	assert.Equal(t, 1, e.Current().Silences)
}

func TestEngineTuningPolicy(t *testing.T) {
	t.Parallel()

	rec := &recorder{inTune: WithinCents(10)}
	e := NewEngine(notes{0}, rec, nil, WithHoldTime(3))
	require.NoError(t, e.Start())
	assert.Equal(t, 3, e.HoldTime())

	e.HandlePitch(measured(0, 5))
	e.HandlePitch(measured(0, -8))
	assert.Equal(t, 2, e.Ticks())

	e.HandlePitch(measured(0, 30))
	assert.Equal(t, 1, e.Ticks())

	cur := e.Current()
	assert.Equal(t, 2, cur.InTune)
	assert.Equal(t, 1, cur.OutOfTune)
	assert.Equal(t, 3, cur.Histogram.Total(), "out of tune frames are still recorded")
}

func TestEngineAdvances(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	rec := &recorder{}
	e := NewEngine(notes{3, 5, 7}, rec, src, WithHoldTime(2), WithSmoothing(4))
	require.NoError(t, e.Start())

	for _, n := range []int{3, 3, 5, 5} {
		e.HandlePitch(measured(n, 0))
	}
	assert.Equal(t, 2, e.Position())
	assert.Zero(t, e.Ticks())
	assert.Equal(t, Active, e.State())

	results := e.Results()
	require.Len(t, results, 2)
	assert.Equal(t, 0, results[0].Position)
	assert.Equal(t, 1, results[1].Position)
	assert.InDelta(t, 1.0, results[0].Histogram.Filtered(50), 1e-9)

	// Each new note retunes the source
	assert.Equal(t, []float64{pitch.Frequency(3), pitch.Frequency(5), pitch.Frequency(7)}, src.expected)
}

func TestEnginePauseResumeSamePosition(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	rec := &recorder{}
	e := NewEngine(notes{0, 2}, rec, src)
	require.NoError(t, e.Start())

	for i := 0; i < 4; i++ {
		e.HandlePitch(measured(0, 1))
	}
	events := len(rec.events)

	e.Pause()
	assert.Equal(t, Paused, e.State())
	assert.Equal(t, 1, src.stops)

	// Frames while paused are ignored
	e.HandlePitch(measured(0, 1))
	e.HandlePitch(measured(5, 1))
	e.HandlePitch(nil)
	assert.Equal(t, 4, e.Ticks())
	assert.Len(t, rec.events, events)

	// Pausing again is a no-op
	e.Pause()
	assert.Equal(t, 1, src.stops)

	require.NoError(t, e.Resume(0))
	assert.Equal(t, Active, e.State())
	assert.Equal(t, 0, e.Position())
	assert.Equal(t, 4, e.Ticks())
	assert.Equal(t, 4, e.Current().Histogram.Total())
	assert.Equal(t, 2, src.starts)
	assert.Len(t, rec.events, events)
}

func TestEngineResumeElsewhere(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	e := NewEngine(notes{0, 2, 4}, rec, &fakeSource{})
	require.NoError(t, e.Start())

	e.HandlePitch(measured(0, 1))
	e.Pause()

	require.ErrorIs(t, e.Resume(3), ErrBadPosition)
	require.ErrorIs(t, e.Resume(-1), ErrBadPosition)

	require.NoError(t, e.Resume(2))
	assert.Equal(t, 2, e.Position())
	assert.Zero(t, e.Ticks())
	assert.Zero(t, e.Current().Histogram.Total())
	assert.Equal(t, "start-note 2 4", rec.events[len(rec.events)-1])

	require.ErrorIs(t, e.Resume(0), ErrInvalidState)
}

func TestEngineStartErrors(t *testing.T) {
	t.Parallel()

	err := NewEngine(notes{}, nil, nil).Start()
	require.ErrorIs(t, err, ErrEmptyDocument)

	boom := errors.New("no device")
	src := &fakeSource{startErr: boom}
	e := NewEngine(notes{0}, nil, src)
	err = e.Start()
	require.ErrorIs(t, err, boom)
	assert.Equal(t, Paused, e.State())

	src.startErr = nil
	require.NoError(t, e.Resume(0))
	assert.Equal(t, Active, e.State())
}

func TestEngineSourceStopped(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	e := NewEngine(notes{0}, nil, src)
	require.NoError(t, e.Start())

	e.HandlePitch(measured(0, 0))
	e.HandleFrame(capture.Frame{Err: capture.ErrSourceStopped})
	assert.Equal(t, Paused, e.State())
	assert.Zero(t, src.stops, "source already ended")
	assert.Equal(t, 1, e.Ticks())
}

func TestPitchClassDiff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		note, target, want int
	}{
		{0, 0, 0},
		{12, 0, 0},
		{1, 0, 1},
		{11, 0, -1},
		{6, 0, -6},
		{5, 0, 5},
		{0, 11, 1},
		{3, 9, -6},
		{40, 3, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PitchClassDiff(tt.note, tt.target), "note %d target %d", tt.note, tt.target)
	}

	for note := 0; note < 48; note++ {
		for target := 0; target < 12; target++ {
			d := PitchClassDiff(note, target)
			assert.GreaterOrEqual(t, d, -6)
			assert.LessOrEqual(t, d, 5)
		}
	}
}

func TestEngineRun(t *testing.T) {
	t.Parallel()

	frames := make(chan capture.Frame, 64)
	e := NewEngine(notes{0, 3}, nil, nil, WithHoldTime(2))
	require.NoError(t, e.Start())

	for _, n := range []int{0, 0, 3, 3, 3} {
		frames <- capture.Frame{Pitch: measured(n, 0)}
	}

	require.NoError(t, e.Run(context.Background(), frames))
	assert.Equal(t, Finished, e.State())
	assert.Len(t, e.Results(), 2)
	assert.Len(t, frames, 1, "run returns as soon as the document is finished")
}

func TestEngineRunSourceStopped(t *testing.T) {
	t.Parallel()

	frames := make(chan capture.Frame, 4)
	e := NewEngine(notes{0}, nil, nil)
	require.NoError(t, e.Start())

	frames <- capture.Frame{}
	frames <- capture.Frame{Err: fmt.Errorf("%w: eof", capture.ErrSourceStopped)}

	err := e.Run(context.Background(), frames)
	require.ErrorIs(t, err, capture.ErrSourceStopped)
	assert.Equal(t, Paused, e.State())
}

func TestEngineRunContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewEngine(notes{0}, nil, nil)
	require.NoError(t, e.Start())
	require.ErrorIs(t, e.Run(ctx, make(chan capture.Frame)), context.Canceled)

	closed := make(chan capture.Frame)
	close(closed)
	require.NoError(t, e.Run(context.Background(), closed))
}

func TestEngineWithSyntheticSource(t *testing.T) {
	t.Parallel()

	frames := make(chan capture.Frame, capture.FrameBufferSize)
	src := capture.NewSynthetic(frames,
		capture.WithInterval(time.Millisecond),
		capture.WithRand(rand.New(rand.NewPCG(7, 11))))

	var finished []NoteResult
	listener := Funcs{
		FinishedNote: func(r NoteResult) { finished = append(finished, r) },
		InTune:       WithinCents(25),
	}
	e := NewEngine(notes{3, 5, 7}, listener, src)

	require.NoError(t, e.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, e.Run(ctx, frames))

	assert.Equal(t, Finished, e.State())
	assert.False(t, src.Running())
	require.Len(t, finished, 3)
	for i, r := range finished {
		assert.Equal(t, i, r.Position)
		assert.GreaterOrEqual(t, r.InTune, DefaultHoldTime)
		assert.InDelta(t, 0, r.Histogram.Mean(), 17)
	}
}
