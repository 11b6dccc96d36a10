package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/0xlemi/precisepitch/internal/follow"
	"github.com/0xlemi/precisepitch/internal/pitch"
)

var (
	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			PaddingLeft(2).
			PaddingRight(2).
			MarginBottom(1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CCCCCC"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF5F5F"))

	finishedNoteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00B400"))
	currentNoteStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color("#FFFF46"))
	futureNoteStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C8C8C8"))

	// Note colors
	noteColors = map[string]string{
		"C": "#E8D6B0", // Beige
		"D": "#A020F0", // Purple
		"E": "#FFFF00", // Yellow
		"F": "#FFA500", // Orange
		"G": "#00FF00", // Green
		"A": "#FF0000", // Red
		"B": "#0000FF", // Blue
	}
)

// noteBox renders a big colored note. Accidentals get split colors of the
// two naturals they sit between.
func noteBox(note int, flat bool) string {
	text := pitch.NoteName(note, flat)

	lower := pitch.ClassName(note, false)[:1]
	if len(pitch.ClassName(note, false)) == 1 {
		// Natural note, single color
		return lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color(noteColors[lower])).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333333")).
			Padding(2, 4).
			MarginBottom(1).
			Render(text)
	}
	upper := pitch.ClassName(note+1, false)[:1]

	leftStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color(noteColors[lower])).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#333333")).
		BorderLeft(true).
		BorderTop(true).
		BorderBottom(true).
		BorderRight(false).
		PaddingLeft(2).
		PaddingRight(1).
		PaddingTop(2).
		PaddingBottom(2)

	rightStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color(noteColors[upper])).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#333333")).
		BorderLeft(false).
		BorderTop(true).
		BorderBottom(true).
		BorderRight(true).
		PaddingLeft(1).
		PaddingRight(2).
		PaddingTop(2).
		PaddingBottom(2)

	// Letter on the left half, accidental and octave on the right
	return lipgloss.JoinHorizontal(lipgloss.Top, leftStyle.Render(text[:1]), rightStyle.Render(text[1:]))
}

// centMeter draws the deviation on a -50..+50 scale. Out of range values show an arrow.
func centMeter(cent float64, width int) string {
	if width < 11 {
		width = 11
	}
	cells := []rune(strings.Repeat("─", width))
	center := width / 2
	cells[center] = '┼'

	pos := center + int(cent/50*float64(center))
	switch {
	case pos < 0:
		cells[0] = '◀'
	case pos >= width:
		cells[width-1] = '▶'
	default:
		cells[pos] = '●'
	}
	return string(cells)
}

// levelMeter draws a dBFS level from -60 to 0
func levelMeter(decibel float64, width int) string {
	filled := int((decibel + 60) / 60 * float64(width))
	filled = max(0, min(filled, width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// progressBar shows how long the current note has been held
func progressBar(ticks, hold, width int) string {
	if hold <= 0 {
		return ""
	}
	filled := ticks * width / hold
	filled = max(0, min(filled, width))
	return strings.Repeat("▰", filled) + strings.Repeat("▱", width-filled)
}

var sparkBlocks = []rune(" ▁▂▃▄▅▆▇█")

// sparkline condenses a filtered cent histogram into width cells
func sparkline(h *follow.Histogram, width int) string {
	if h == nil || width <= 0 {
		return ""
	}
	buckets := follow.HistogramBuckets
	per := max(1, buckets/width)
	out := make([]rune, 0, width)
	for start := 0; start+per <= buckets && len(out) < width; start += per {
		peak := 0.0
		for b := start; b < start+per; b++ {
			peak = max(peak, h.Filtered(b))
		}
		idx := int(peak * float64(len(sparkBlocks)-1))
		out = append(out, sparkBlocks[max(0, min(idx, len(sparkBlocks)-1))])
	}
	return string(out)
}
