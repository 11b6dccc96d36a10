package audio

import (
	"errors"
	"math"
)

// Errors
var (
	ErrNotOpen      = errors.New("audio device not open")
	ErrAlreadyOpen  = errors.New("audio device already open")
	ErrInvalidInput = errors.New("invalid audio input")
)

const (
	// DefaultSampleRate is what most capture hardware runs at
	DefaultSampleRate = 44100

	// LowSampleRate is used on constrained or emulated hardware
	LowSampleRate = 8000

	// DefaultMinFrequency covers the lowest string of a cello and the low B of a 5-string bass
	DefaultMinFrequency = 60

	minSampleCount = 512
)

// SampleBuffer represents a fixed-size window of samples normalized to [-1, 1]
type SampleBuffer struct {
	Samples    []float64
	SampleRate int
}

// NewSampleBuffer allocates a buffer sized for the given minimum frequency
func NewSampleBuffer(sampleRate, minFrequency int) *SampleBuffer {
	return &SampleBuffer{
		Samples:    make([]float64, SuggestedSampleCount(sampleRate, minFrequency)),
		SampleRate: sampleRate,
	}
}

// SuggestedSampleCount returns the smallest power of two that is at least 512
// and holds three periods of minFrequency
func SuggestedSampleCount(sampleRate, minFrequency int) int {
	if minFrequency <= 0 {
		minFrequency = DefaultMinFrequency
	}
	minSamples := 3 * sampleRate / minFrequency
	n := minSampleCount
	for n < minSamples {
		n <<= 1
	}
	return n
}

// Peak returns the largest absolute sample value in the buffer
func (b *SampleBuffer) Peak() float64 {
	peak := 0.0
	for _, s := range b.Samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return peak
}

// Len returns the number of samples in the window
func (b *SampleBuffer) Len() int {
	return len(b.Samples)
}

// Device is a capture handle that delivers mono samples normalized to [-1, 1]
type Device interface {
	// Open acquires the hardware or file behind the device
	Open() error

	// Read fills buf with up to len(buf) samples, blocking until at least one is available.
	// Short reads are allowed; callers retry until their window is full.
	Read(buf []float64) (int, error)

	// Close releases the handle acquired by Open
	Close() error

	// SampleRate returns the rate samples are delivered at
	SampleRate() int
}

// s16ToFloat converts a signed 16-bit sample to [-1, 1)
func s16ToFloat(v int16) float64 {
	return float64(v) / 32768.0
}
