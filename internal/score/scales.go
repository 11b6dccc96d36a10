package score

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
)

// majorSteps are the semitone steps of a major scale
var majorSteps = [...]int{2, 2, 1, 2, 2, 2, 1}

// Start notes of the low octave, as note indexes above 55Hz A
const (
	noteC  = 3
	noteD  = 5
	noteEb = 6
	noteE  = 7
	noteF  = 8
	noteG  = 10
	noteAb = 11
	noteA  = 12
	noteBb = 13

	// Random sequences start no higher than this A
	randomCeiling = noteA + 12
)

type key struct {
	start int
	flat  bool
}

var keys = map[string]key{
	"C":  {noteC, false},
	"G":  {noteG, false},
	"D":  {noteD, false},
	"A":  {noteA, false},
	"E":  {noteE, false},
	"F":  {noteF, true},
	"BB": {noteBb, true},
	"EB": {noteEb, true},
	"AB": {noteAb, true},
}

// Keys lists the supported major keys
func Keys() []string {
	return []string{"C", "G", "D", "A", "E", "F", "Bb", "Eb", "Ab"}
}

// Key returns the lowest start note of a major key and whether it is written with flats
func Key(name string) (start int, flat bool, err error) {
	k, ok := keys[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return 0, false, fmt.Errorf("%q: %w", name, ErrUnknownKey)
	}
	return k.start, k.flat, nil
}

// MajorScale appends eight notes from start, up or down, and returns the last one
func (d *Document) MajorScale(start int, ascending bool) int {
	note := start
	d.Add(note)
	for i := range majorSteps {
		if ascending {
			note += majorSteps[i]
		} else {
			note -= majorSteps[len(majorSteps)-1-i]
		}
		d.Add(note)
	}
	return note
}

// MajorScale returns one octave of the major scale
func MajorScale(start int, ascending bool) *Document {
	d := &Document{}
	d.MajorScale(start, ascending)
	return d
}

// AscDescMajorScale goes up one octave and back down, repeating the top note
func AscDescMajorScale(start int) *Document {
	d := &Document{}
	d.MajorScale(d.MajorScale(start, true), false)
	return d
}

// TwoOctaveMajorScale covers two octaves in one direction
func TwoOctaveMajorScale(start int, ascending bool) *Document {
	d := &Document{}
	next := d.MajorScale(start, ascending)
	d.Pop()
	d.MajorScale(next, ascending)
	return d
}

// RandomMajorSequence picks count notes from the major scale on base, octave
// included, never playing the same scale degree twice in a row
func RandomMajorSequence(base, count int, rng *rand.Rand) *Document {
	for base > randomCeiling {
		base -= 12
	}

	var degrees [len(majorSteps) + 1]int
	degrees[0] = base
	for i, step := range majorSteps {
		degrees[i+1] = degrees[i] + step
	}
	degrees[len(degrees)-1] = base + 12

	d := &Document{}
	previous := -1
	for i := 0; i < count; i++ {
		idx := previous
		for idx == previous {
			idx = int(math.Round(float64(len(degrees)-1) * rng.Float64()))
		}
		previous = idx
		d.Add(degrees[idx])
	}
	return d
}
