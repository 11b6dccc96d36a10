package score

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xlemi/precisepitch/internal/follow"
	"github.com/0xlemi/precisepitch/internal/pitch"
)

var _ follow.Document = (*Document)(nil)

func semitones(d *Document) []int {
	out := make([]int, d.Len())
	for i := range out {
		out[i] = d.Semitone(i)
	}
	return out
}

func TestMajorScale(t *testing.T) {
	t.Parallel()

	up := MajorScale(noteC, true)
	assert.Equal(t, []int{3, 5, 7, 8, 10, 12, 14, 15}, semitones(up))
	assert.Equal(t, "C2 D2 E2 F2 G2 A2 B2 C3", up.String())

	down := MajorScale(15, false)
	assert.Equal(t, []int{15, 14, 12, 10, 8, 7, 5, 3}, semitones(down))

	for _, n := range up.Notes {
		assert.Equal(t, QuarterNote, n.Duration)
	}
}

func TestAscDescMajorScale(t *testing.T) {
	t.Parallel()

	d := AscDescMajorScale(noteG)
	require.Equal(t, 16, d.Len())
	assert.Equal(t, d.Semitone(7), d.Semitone(8), "top note is played twice")
	assert.Equal(t, d.Semitone(0), d.Semitone(15))
	assert.Equal(t, noteG+12, d.Semitone(7))
}

func TestTwoOctaveMajorScale(t *testing.T) {
	t.Parallel()

	up := TwoOctaveMajorScale(noteA, true)
	require.Equal(t, 15, up.Len())
	assert.Equal(t, noteA, up.Semitone(0))
	assert.Equal(t, noteA+12, up.Semitone(7))
	assert.Equal(t, noteA+24, up.Semitone(14))
	assert.NotEqual(t, up.Semitone(7), up.Semitone(8))

	down := TwoOctaveMajorScale(noteA+24, false)
	require.Equal(t, 15, down.Len())
	assert.Equal(t, noteA, down.Semitone(14))
}

func TestRandomMajorSequence(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(3, 5))
	d := RandomMajorSequence(noteD+36, 200, rng)
	require.Equal(t, 200, d.Len())

	allowed := map[int]bool{}
	for _, n := range semitones(MajorScale(noteD+12, true)) {
		allowed[n] = true
	}

	seen := map[int]bool{}
	for i := 0; i < d.Len(); i++ {
		n := d.Semitone(i)
		assert.True(t, allowed[n], "note %d is outside the scale", n)
		if i > 0 {
			assert.NotEqual(t, d.Semitone(i-1), n, "repeated note at %d", i)
		}
		seen[n] = true
	}
	assert.Len(t, seen, 8, "every degree shows up in a long sequence")
}

func TestKey(t *testing.T) {
	t.Parallel()

	for _, name := range Keys() {
		start, flat, err := Key(name)
		require.NoError(t, err, name)
		assert.Equal(t, name[:1], pitch.ClassName(start, flat)[:1])
	}

	start, flat, err := Key("bb")
	require.NoError(t, err)
	assert.Equal(t, noteBb, start)
	assert.True(t, flat)

	_, _, err = Key("H")
	require.ErrorIs(t, err, ErrUnknownKey)
}

func TestParse(t *testing.T) {
	t.Parallel()

	d, err := Parse("C2, D2  Eb2\tA3")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 5, 6, 24}, semitones(d))
	assert.True(t, d.Flat)
	assert.Equal(t, "C2 D2 Eb2 A3", d.String())

	d, err = Parse("a1 c#2")
	require.NoError(t, err)
	assert.False(t, d.Flat)
	assert.Equal(t, []int{0, 4}, semitones(d))

	_, err = Parse("   ")
	require.ErrorIs(t, err, ErrNoNotes)

	_, err = Parse("C2 X2")
	require.ErrorIs(t, err, pitch.ErrBadNoteName)

	_, err = Parse("G1")
	require.ErrorIs(t, err, pitch.ErrBadNoteName)
}

func TestPop(t *testing.T) {
	t.Parallel()

	d := &Document{}
	d.Pop()
	d.Add(1)
	d.Add(2)
	d.Pop()
	assert.Equal(t, []int{1}, semitones(d))
}
