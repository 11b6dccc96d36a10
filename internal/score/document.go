// Package score holds note documents and the generators that build exercises.
package score

import (
	"errors"
	"fmt"
	"strings"

	"github.com/0xlemi/precisepitch/internal/pitch"
)

// Errors
var (
	ErrUnknownKey = errors.New("unknown key")
	ErrNoNotes    = errors.New("no notes given")
)

// QuarterNote is the default duration
const QuarterNote = 4

// Note is one written note
type Note struct {
	Semitone int // Note index, 0 = 55Hz A
	Duration int // 4 = quarter note; informational only
}

// Document is an ordered list of notes to play
type Document struct {
	Notes []Note
	Flat  bool // Prefer flat names when displaying
}

// Len returns the number of notes
func (d *Document) Len() int {
	return len(d.Notes)
}

// Semitone returns the note index at position i
func (d *Document) Semitone(i int) int {
	return d.Notes[i].Semitone
}

// Add appends a note with the default duration
func (d *Document) Add(semitone int) {
	d.Notes = append(d.Notes, Note{Semitone: semitone, Duration: QuarterNote})
}

// Pop removes the last note
func (d *Document) Pop() {
	if len(d.Notes) > 0 {
		d.Notes = d.Notes[:len(d.Notes)-1]
	}
}

// Name returns the display name of the note at position i
func (d *Document) Name(i int) string {
	return pitch.NoteName(d.Notes[i].Semitone, d.Flat)
}

// String lists the note names separated by spaces
func (d *Document) String() string {
	names := make([]string, len(d.Notes))
	for i := range d.Notes {
		names[i] = d.Name(i)
	}
	return strings.Join(names, " ")
}

// Parse builds a document from whitespace or comma separated note names,
// e.g. "C2 D2 Eb2". Flat names switch the document to flat display.
func Parse(text string) (*Document, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\n'
	})
	if len(fields) == 0 {
		return nil, ErrNoNotes
	}

	doc := &Document{}
	for _, f := range fields {
		n, err := pitch.ParseNote(f)
		if err != nil {
			return nil, fmt.Errorf("parse notes: %w", err)
		}
		if n < 0 {
			return nil, fmt.Errorf("parse notes: %s is below A1: %w", f, pitch.ErrBadNoteName)
		}
		if len(f) > 2 && f[1] == 'b' {
			doc.Flat = true
		}
		doc.Add(n)
	}
	return doc, nil
}
