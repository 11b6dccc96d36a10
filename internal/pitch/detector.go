package pitch

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Errors
var (
	ErrBadNoteName = errors.New("invalid note name")
)

const (
	// BaseFrequency is the low A every note index counts from (440Hz / 8)
	BaseFrequency = 55.0

	// MinDecibel is reported for a silent buffer instead of -Inf
	MinDecibel = -100.0
)

// Detector turns a window of samples into a raw frequency estimate. 0 means no pitch.
type Detector interface {
	Detect(samples []float64) float64
}

// MeasuredPitch is one classified measurement
type MeasuredPitch struct {
	Frequency float64 // Frequency in Hz
	Note      int     // Semitones above 55Hz; Note % 12 is the pitch class with 0 = A
	Cent      float64 // Deviation from the nearest semitone, roughly -50 to +50
	Decibel   float64 // Peak input level in dBFS
}

// PitchClass returns the octave-independent note, 0 = A
func (m MeasuredPitch) PitchClass() int {
	return PitchClass(m.Note)
}

// Name returns the note name with octave, e.g. "C#3"
func (m MeasuredPitch) Name(flat bool) string {
	return NoteName(m.Note, flat)
}

// Classify maps a frequency and the linear peak amplitude (0..1) of its buffer
// to a measurement. It reports false for frequencies below the base A.
func Classify(frequency, peakAmplitude float64) (MeasuredPitch, bool) {
	if frequency <= 0 {
		return MeasuredPitch{}, false
	}

	centsAboveBase := 1200 * math.Log2(frequency/BaseFrequency)

	// Halves round up so the cent range is [-50, +50)
	note := int(math.Floor(centsAboveBase/100 + 0.5))
	if note < 0 {
		return MeasuredPitch{}, false
	}

	return MeasuredPitch{
		Frequency: frequency,
		Note:      note,
		Cent:      centsAboveBase - 100*float64(note),
		Decibel:   Decibel(peakAmplitude),
	}, true
}

// Decibel converts a linear amplitude to dBFS, floored at MinDecibel
func Decibel(amplitude float64) float64 {
	if amplitude <= 0 {
		return MinDecibel
	}
	db := 20 * math.Log10(amplitude)
	if db < MinDecibel {
		return MinDecibel
	}
	return db
}

// Frequency returns the equal-tempered frequency of a note index
func Frequency(note int) float64 {
	return BaseFrequency * math.Pow(2, float64(note)/12)
}

// PitchClass folds a note index into 0..11, also for negative indexes
func PitchClass(note int) int {
	return ((note % 12) + 12) % 12
}

// Note names indexed by pitch class, starting at A
var (
	sharpNames = []string{"A", "A#", "B", "C", "C#", "D", "D#", "E", "F", "F#", "G", "G#"}
	flatNames  = []string{"A", "Bb", "B", "C", "Db", "D", "Eb", "E", "F", "Gb", "G", "Ab"}
)

// Octave returns the scientific octave number of a note index; 55Hz is A1
func Octave(note int) int {
	// Octaves start at C, which is 3 semitones above A
	return 1 + int(math.Floor(float64(note+9)/12))
}

// NoteName returns the scientific name of a note index, e.g. 0 -> "A1", 3 -> "C2"
func NoteName(note int, flat bool) string {
	names := sharpNames
	if flat {
		names = flatNames
	}
	return names[PitchClass(note)] + strconv.Itoa(Octave(note))
}

// ClassName returns the note name without octave
func ClassName(note int, flat bool) string {
	if flat {
		return flatNames[PitchClass(note)]
	}
	return sharpNames[PitchClass(note)]
}

// letterOffsets holds semitones above C for each natural note
var letterOffsets = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

// ParseNote parses names like "A1", "c#2", "Eb3" into a note index
func ParseNote(name string) (int, error) {
	s := strings.TrimSpace(name)
	if len(s) < 2 {
		return 0, fmt.Errorf("%q: %w", name, ErrBadNoteName)
	}

	fromC, ok := letterOffsets[strings.ToUpper(s[:1])[0]]
	if !ok {
		return 0, fmt.Errorf("%q: %w", name, ErrBadNoteName)
	}
	s = s[1:]

	switch s[0] {
	case '#':
		fromC++
		s = s[1:]
	case 'b':
		fromC--
		s = s[1:]
	}

	octave, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", name, ErrBadNoteName)
	}

	// A1 sits 21 semitones above C0
	return octave*12 + fromC - 21, nil
}
