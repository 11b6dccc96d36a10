package follow

import "math"

// Listener receives the engine's events. All methods are called on the
// goroutine that drives the engine.
type Listener interface {
	// OnStartModel is called once when following begins
	OnStartModel(doc Document)

	// OnFinishedModel is called once after the last note was held
	OnFinishedModel(doc Document)

	// OnStartNote announces the note to play next
	OnStartNote(position int, target TargetNote)

	// OnFinishedNote reports the statistics of a completed note
	OnFinishedNote(result NoteResult)

	// OnSilence is called for every frame without a usable pitch
	OnSilence()

	// OnNoteMiss reports how many semitones the played pitch class is off, -6..5
	OnNoteMiss(diff int)

	// IsInTune decides whether a frame of the right pitch class counts toward
	// holding the note. cent is the deviation, roughly -50..+50.
	IsInTune(cent float64, ticksSoFar int) bool
}

// Funcs adapts optional functions to a Listener. A nil IsInTune accepts everything.
type Funcs struct {
	StartModel    func(doc Document)
	FinishedModel func(doc Document)
	StartNote     func(position int, target TargetNote)
	FinishedNote  func(result NoteResult)
	Silence       func()
	NoteMiss      func(diff int)
	InTune        func(cent float64, ticksSoFar int) bool
}

var _ Listener = Funcs{}

func (f Funcs) OnStartModel(doc Document) {
	if f.StartModel != nil {
		f.StartModel(doc)
	}
}

func (f Funcs) OnFinishedModel(doc Document) {
	if f.FinishedModel != nil {
		f.FinishedModel(doc)
	}
}

func (f Funcs) OnStartNote(position int, target TargetNote) {
	if f.StartNote != nil {
		f.StartNote(position, target)
	}
}

func (f Funcs) OnFinishedNote(result NoteResult) {
	if f.FinishedNote != nil {
		f.FinishedNote(result)
	}
}

func (f Funcs) OnSilence() {
	if f.Silence != nil {
		f.Silence()
	}
}

func (f Funcs) OnNoteMiss(diff int) {
	if f.NoteMiss != nil {
		f.NoteMiss(diff)
	}
}

func (f Funcs) IsInTune(cent float64, ticksSoFar int) bool {
	if f.InTune == nil {
		return true
	}
	return f.InTune(cent, ticksSoFar)
}

// WithinCents returns a tuning policy that accepts deviations up to threshold cents
func WithinCents(threshold float64) func(cent float64, ticksSoFar int) bool {
	return func(cent float64, _ int) bool {
		return math.Abs(cent) <= threshold
	}
}
