package pitch

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(n, sampleRate int, frequency, amplitude float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*frequency*float64(i)/float64(sampleRate))
	}
	return out
}

func TestWaveletDetectorSilence(t *testing.T) {
	t.Parallel()

	d := NewWaveletDetector(44100, 4096)
	assert.Zero(t, d.Detect(make([]float64, 4096)))
	assert.Zero(t, d.Detect(nil))
	assert.Zero(t, d.Detect([]float64{0.3}))
}

func TestWaveletDetectorSine(t *testing.T) {
	t.Parallel()

	const sampleRate = 44100
	d := NewWaveletDetector(sampleRate, 4096)

	for _, freq := range []float64{82.41, 110, 146.83, 220, 329.63, 440, 659.25, 880} {
		t.Run(fmt.Sprintf("%.0fHz", freq), func(t *testing.T) {
			got := d.Detect(sine(4096, sampleRate, freq, 0.6))
			assert.InEpsilon(t, freq, got, 0.02)
		})
	}
}

func TestWaveletDetectorLeavesInputAlone(t *testing.T) {
	t.Parallel()

	in := sine(4096, 44100, 220, 0.5)
	orig := append([]float64(nil), in...)
	NewWaveletDetector(44100, 1024).Detect(in)
	assert.Equal(t, orig, in)
}

func TestWaveletDetectorIgnoresDCOffset(t *testing.T) {
	t.Parallel()

	in := sine(4096, 44100, 440, 0.4)
	for i := range in {
		in[i] += 0.3
	}
	assert.InEpsilon(t, 440.0, NewWaveletDetector(44100, 4096).Detect(in), 0.02)
}

func TestFFTDetector(t *testing.T) {
	t.Parallel()

	d := NewFFTDetector(44100)
	assert.Zero(t, d.Detect(make([]float64, 4096)))
	assert.Zero(t, d.Detect(nil))
	assert.InEpsilon(t, 440.0, d.Detect(sine(8192, 44100, 440, 0.5)), 0.02)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		frequency float64
		note      int
	}{
		{"base A", 55, 0},
		{"A#1", 58.27, 1},
		{"C2", 65.41, 3},
		{"A2", 110, 12},
		{"A4", 440, 36},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, ok := Classify(tt.frequency, 0.5)
			require.True(t, ok)
			assert.Equal(t, tt.note, m.Note)
			assert.InDelta(t, 0, m.Cent, 5)
			assert.Equal(t, tt.frequency, m.Frequency)
		})
	}
}

func TestClassifyInvalid(t *testing.T) {
	t.Parallel()

	for _, freq := range []float64{0, -10, 40, 53} {
		_, ok := Classify(freq, 1)
		assert.False(t, ok, "frequency %v", freq)
	}

	// Slightly flat of the base A still rounds to it
	m, ok := Classify(54.5, 1)
	require.True(t, ok)
	assert.Equal(t, 0, m.Note)
	assert.Negative(t, m.Cent)
}

func TestClassifyCentAndDecibel(t *testing.T) {
	t.Parallel()

	// A quarter tone sharp of A4
	m, ok := Classify(440*math.Pow(2, 25.0/1200), 1)
	require.True(t, ok)
	assert.Equal(t, 36, m.Note)
	assert.InDelta(t, 25, m.Cent, 1e-9)
	assert.InDelta(t, 0, m.Decibel, 1e-9)

	m, _ = Classify(440, 0.1)
	assert.InDelta(t, -20, m.Decibel, 1e-9)

	assert.Equal(t, MinDecibel, Decibel(0))
	assert.Equal(t, MinDecibel, Decibel(1e-9))
}

func TestNoteNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "A1", NoteName(0, false))
	assert.Equal(t, "C2", NoteName(3, false))
	assert.Equal(t, "C#2", NoteName(4, false))
	assert.Equal(t, "Db2", NoteName(4, true))
	assert.Equal(t, "G#1", NoteName(-1, false))
	assert.Equal(t, "A4", NoteName(36, false))
	assert.Equal(t, "Bb", ClassName(1, true))

	for note := -12; note < 60; note++ {
		for _, flat := range []bool{false, true} {
			got, err := ParseNote(NoteName(note, flat))
			require.NoError(t, err)
			assert.Equal(t, note, got)
		}
	}
}

func TestParseNote(t *testing.T) {
	t.Parallel()

	got, err := ParseNote(" c#2 ")
	require.NoError(t, err)
	assert.Equal(t, 4, got)

	got, err = ParseNote("Cb3")
	require.NoError(t, err)
	assert.Equal(t, 14, got)

	for _, bad := range []string{"", "H2", "C", "C#", "Cx2", "A1.5"} {
		_, err := ParseNote(bad)
		assert.ErrorIs(t, err, ErrBadNoteName, bad)
	}
}

func TestFrequencyRoundTrip(t *testing.T) {
	t.Parallel()

	for note := 0; note < 48; note++ {
		m, ok := Classify(Frequency(note), 0.5)
		require.True(t, ok)
		assert.Equal(t, note, m.Note)
		assert.Equal(t, PitchClass(note), m.PitchClass())
		assert.InDelta(t, 0, m.Cent, 1e-6)
	}
}
