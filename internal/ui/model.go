// Package ui holds the terminal front ends: a free tuner and the note-follow exercise
package ui

import (
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/0xlemi/precisepitch/internal/capture"
	"github.com/0xlemi/precisepitch/internal/pitch"
)

// Constants for UI behavior
const (
	// How long to keep displaying the last note after the input goes silent
	noteDisplayDuration = 500 * time.Millisecond

	tickInterval = 100 * time.Millisecond
	meterWidth   = 41
)

// TickMsg represents a timer tick
type TickMsg time.Time

// FrameMsg delivers one capture frame to a model
type FrameMsg capture.Frame

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Model is the free tuner screen
type Model struct {
	title    string
	current  *pitch.MeasuredPitch
	lastSeen time.Time
	level    float64
	flat     bool
	err      error
	now      func() time.Time
}

// NewModel creates a tuner model
func NewModel(title string) Model {
	return Model{
		title: title,
		level: pitch.MinDecibel,
		now:   time.Now,
	}
}

// Init starts the refresh ticker
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update updates the UI model based on messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "f":
			m.flat = !m.flat
		}

	case TickMsg:
		// Drop a note nobody has played for a while
		if m.current != nil && time.Time(msg).Sub(m.lastSeen) > noteDisplayDuration {
			m.current = nil
		}
		return m, tick()

	case FrameMsg:
		f := capture.Frame(msg)
		if f.Err != nil {
			if errors.Is(f.Err, capture.ErrSourceStopped) {
				m.err = f.Err
			}
			return m, nil
		}
		m.level = f.Level
		if f.Pitch != nil {
			p := *f.Pitch
			m.current = &p
			m.lastSeen = m.now()
		}
	}

	return m, nil
}

// View renders the UI
func (m Model) View() string {
	s := titleStyle.Render(m.title)
	s += "\n"

	if m.current != nil {
		s += noteBox(m.current.Note, m.flat)
		s += "\n"
		s += infoStyle.Render(fmt.Sprintf("Frequency: %.2f Hz | Cents: %+.1f", m.current.Frequency, m.current.Cent))
		s += "\n"
		s += infoStyle.Render("-50 " + centMeter(m.current.Cent, meterWidth) + " +50")
	} else {
		s += infoStyle.Render("Listening for audio...")
	}

	s += "\n"
	s += infoStyle.Render(fmt.Sprintf("Level %s %6.1f dB", levelMeter(m.level, 20), m.level))

	if m.err != nil {
		s += "\n\n" + errorStyle.Render(m.err.Error())
	}

	s += "\n\n"
	s += infoStyle.Render("Press f for flats, q to quit")

	return s
}
