package audio

import (
	"math"
	"sync"
	"time"
)

// ToneDevice generates a sine wave. It stands in for a microphone in tests and demos.
type ToneDevice struct {
	mu         sync.Mutex
	sampleRate int
	frequency  float64
	amplitude  float64
	realtime   bool

	isOpen  bool
	phase   float64
	started time.Time
	written int
}

// NewToneDevice creates a sine generator. With realtime set, Read paces output to the sample rate.
func NewToneDevice(sampleRate int, frequency, amplitude float64, realtime bool) *ToneDevice {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &ToneDevice{
		sampleRate: sampleRate,
		frequency:  frequency,
		amplitude:  amplitude,
		realtime:   realtime,
	}
}

// Open resets the oscillator
func (d *ToneDevice) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isOpen {
		return ErrAlreadyOpen
	}
	d.isOpen = true
	d.phase = 0
	d.started = time.Now()
	d.written = 0
	return nil
}

// Read fills buf with the next len(buf) samples of the tone
func (d *ToneDevice) Read(buf []float64) (int, error) {
	d.mu.Lock()
	if !d.isOpen {
		d.mu.Unlock()
		return 0, ErrNotOpen
	}
	step := 2 * math.Pi * d.frequency / float64(d.sampleRate)
	for i := range buf {
		buf[i] = d.amplitude * math.Sin(d.phase)
		d.phase += step
		if d.phase > 2*math.Pi {
			d.phase -= 2 * math.Pi
		}
	}
	d.written += len(buf)
	due := d.started.Add(time.Duration(float64(d.written) / float64(d.sampleRate) * float64(time.Second)))
	realtime := d.realtime
	d.mu.Unlock()

	if realtime {
		if wait := time.Until(due); wait > 0 {
			time.Sleep(wait)
		}
	}
	return len(buf), nil
}

// Close stops the generator
func (d *ToneDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.isOpen = false
	return nil
}

// SampleRate returns the generator's sample rate
func (d *ToneDevice) SampleRate() int {
	return d.sampleRate
}

// SetFrequency changes the tone. A frequency of 0 produces silence.
func (d *ToneDevice) SetFrequency(frequency float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frequency = frequency
}

// Sine returns n samples of a sine wave, handy for building fixtures
func Sine(n, sampleRate int, frequency, amplitude float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*frequency*float64(i)/float64(sampleRate))
	}
	return out
}
