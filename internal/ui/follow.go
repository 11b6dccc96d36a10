package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/0xlemi/precisepitch/internal/capture"
	"github.com/0xlemi/precisepitch/internal/follow"
	"github.com/0xlemi/precisepitch/internal/pitch"
)

// Score is a follow document that can name its notes
type Score interface {
	follow.Document
	Name(i int) string
}

type startMsg struct{}

// FollowModel is the note-follow screen. It is the engine's listener, so
// every engine call must happen inside Update.
type FollowModel struct {
	title  string
	score  Score
	engine *follow.Engine
	inTune func(cent float64, ticksSoFar int) bool

	seek     int
	miss     int
	silent   bool
	results  []follow.NoteResult
	finished bool
	err      error
}

var _ follow.Listener = (*FollowModel)(nil)

// NewFollowModel creates the screen for score. Frames within tolerance cents
// count as in tune; 0 accepts any deviation. Attach an engine before running it.
func NewFollowModel(title string, score Score, tolerance float64) *FollowModel {
	m := &FollowModel{title: title, score: score}
	if tolerance > 0 {
		m.inTune = follow.WithinCents(tolerance)
	}
	return m
}

// Attach sets the engine driven by this model
func (m *FollowModel) Attach(engine *follow.Engine) {
	m.engine = engine
}

// Finished reports whether the whole score was played
func (m *FollowModel) Finished() bool {
	return m.finished
}

// Results returns the finished notes so far
func (m *FollowModel) Results() []follow.NoteResult {
	return m.results
}

// Listener events

func (m *FollowModel) OnStartModel(follow.Document) {
	m.results = nil
	m.finished = false
}

func (m *FollowModel) OnFinishedModel(follow.Document) {
	m.finished = true
}

func (m *FollowModel) OnStartNote(position int, _ follow.TargetNote) {
	m.seek = position
	m.miss = 0
	m.silent = false
}

func (m *FollowModel) OnFinishedNote(result follow.NoteResult) {
	m.results = append(m.results, result)
}

func (m *FollowModel) OnSilence() {
	m.miss = 0
	m.silent = true
}

func (m *FollowModel) OnNoteMiss(diff int) {
	m.miss = diff
	m.silent = false
}

func (m *FollowModel) IsInTune(cent float64, ticksSoFar int) bool {
	m.miss = 0
	m.silent = false
	if m.inTune == nil {
		return true
	}
	return m.inTune(cent, ticksSoFar)
}

// Init starts following
func (m *FollowModel) Init() tea.Cmd {
	return func() tea.Msg { return startMsg{} }
}

// Update drives the engine from keys and frames
func (m *FollowModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case startMsg:
		if m.engine != nil {
			m.err = m.engine.Start()
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.togglePause()
		case "left", "h":
			m.move(-1)
		case "right", "l":
			m.move(1)
		}

	case FrameMsg:
		if m.engine == nil {
			return m, nil
		}
		f := capture.Frame(msg)
		m.engine.HandleFrame(f)
		if f.Err != nil {
			m.err = f.Err
		}
	}

	return m, nil
}

func (m *FollowModel) togglePause() {
	if m.engine == nil {
		return
	}
	switch m.engine.State() {
	case follow.Active:
		m.engine.Pause()
		m.seek = m.engine.Position()
	case follow.Paused:
		m.err = m.engine.Resume(m.seek)
	}
}

// move changes the resume position while paused
func (m *FollowModel) move(delta int) {
	if m.engine == nil || m.engine.State() != follow.Paused {
		return
	}
	m.seek = max(0, min(m.seek+delta, m.score.Len()-1))
}

// View renders the score with progress
func (m *FollowModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")

	state := follow.Idle
	position, ticks, hold := 0, 0, follow.DefaultHoldTime
	if m.engine != nil {
		state = m.engine.State()
		position, ticks, hold = m.engine.Position(), m.engine.Ticks(), m.engine.HoldTime()
	}
	if state == follow.Paused {
		position = m.seek
	}

	names := make([]string, m.score.Len())
	for i := range names {
		name := m.score.Name(i)
		switch {
		case state == follow.Finished || i < position:
			names[i] = finishedNoteStyle.Render(name)
		case i == position:
			names[i] = currentNoteStyle.Render(name)
		default:
			names[i] = futureNoteStyle.Render(name)
		}
	}
	b.WriteString(strings.Join(names, " "))
	b.WriteString("\n\n")

	switch state {
	case follow.Finished:
		b.WriteString(m.summary())
	case follow.Paused:
		b.WriteString(infoStyle.Render(fmt.Sprintf("Paused at %s. Use left/right to pick a note, space to resume.", m.score.Name(position))))
	case follow.Active:
		b.WriteString(infoStyle.Render(fmt.Sprintf("Hold %s %s", m.score.Name(position), progressBar(ticks, hold, 30))))
		b.WriteString("\n")
		b.WriteString(infoStyle.Render(m.hint()))
	default:
		b.WriteString(infoStyle.Render("Starting..."))
	}

	if m.err != nil {
		b.WriteString("\n\n")
		b.WriteString(errorStyle.Render(m.err.Error()))
	}

	b.WriteString("\n\n")
	b.WriteString(infoStyle.Render("space pause/resume, q quit"))
	return b.String()
}

// hint tells the player which way to move after a miss
func (m *FollowModel) hint() string {
	switch {
	case m.miss > 0:
		return fmt.Sprintf("%d semitone(s) too high", m.miss)
	case m.miss < 0:
		return fmt.Sprintf("%d semitone(s) too low", -m.miss)
	case m.silent:
		return "Waiting for sound..."
	default:
		return ""
	}
}

// summary lists the cent statistics of every finished note
func (m *FollowModel) summary() string {
	var b strings.Builder
	b.WriteString(finishedNoteStyle.Render("Done!"))
	b.WriteString("\n")
	for _, r := range m.results {
		name := pitch.NoteName(r.Target.Index, false)
		if r.Position < m.score.Len() {
			name = m.score.Name(r.Position)
		}
		line := fmt.Sprintf("%-4s %+6.1f ±%4.1f cents  %4.1fs  %s",
			name, r.Histogram.Mean(), r.Histogram.StdDev(), r.Duration.Seconds(), sparkline(r.Histogram, 25))
		b.WriteString(infoStyle.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}
