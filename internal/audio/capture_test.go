package audio

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggestedSampleCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		sampleRate   int
		minFrequency int
		want         int
	}{
		{"default device", 44100, 60, 4096},
		{"emulator rate", 8000, 60, 512},
		{"very low string", 44100, 30, 8192},
		{"high minimum stays at floor", 44100, 1000, 512},
		{"exact power of two", 512 * 20, 60, 512},
		{"zero minimum uses default", 44100, 0, 4096},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := SuggestedSampleCount(tt.sampleRate, tt.minFrequency)
			assert.Equal(t, tt.want, got)
			assert.Zero(t, got&(got-1), "sample count must be a power of two")
		})
	}
}

func TestSampleBufferPeak(t *testing.T) {
	t.Parallel()

	buf := NewSampleBuffer(8000, 60)
	require.Equal(t, 512, buf.Len())
	assert.Zero(t, buf.Peak())

	buf.Samples[10] = 0.25
	buf.Samples[20] = -0.5
	assert.InDelta(t, 0.5, buf.Peak(), 1e-12)
}

func TestToneDevice(t *testing.T) {
	t.Parallel()

	dev := NewToneDevice(8000, 440, 0.5, false)
	buf := make([]float64, 64)

	_, err := dev.Read(buf)
	require.ErrorIs(t, err, ErrNotOpen)

	require.NoError(t, dev.Open())
	require.ErrorIs(t, dev.Open(), ErrAlreadyOpen)

	n, err := dev.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.InDeltaSlice(t, Sine(64, 8000, 440, 0.5), buf, 1e-9)

	dev.SetFrequency(0)
	_, err = dev.Read(buf)
	require.NoError(t, err)
	for _, s := range buf {
		assert.Zero(t, s)
	}

	require.NoError(t, dev.Close())
}

func TestWAVDeviceRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tone.wav")
	want := Sine(3000, 8000, 220, 0.8)

	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, WriteWAV(f, want, 8000))
	require.NoError(t, f.Close())

	dev := NewWAVDevice(path, false)
	require.NoError(t, dev.Open())
	defer dev.Close()
	assert.Equal(t, 8000, dev.SampleRate())

	var got []float64
	buf := make([]float64, 700)
	for {
		n, err := dev.Read(buf)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}

	require.Len(t, got, len(want))
	assert.InDeltaSlice(t, want, got, 1e-3)
}

func TestWAVDeviceInvalidFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bogus.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not RIFF data"), 0o600))

	dev := NewWAVDevice(path, false)
	err := dev.Open()
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewWAVDevice(filepath.Join(t.TempDir(), "missing.wav"), false).Read(make([]float64, 4))
	require.ErrorIs(t, err, ErrNotOpen)
}
