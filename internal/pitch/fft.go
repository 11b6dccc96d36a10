package pitch

import (
	"math"
	"math/cmplx"
	"sort"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// FFTDetector picks the strongest interpolated spectral peak. It is coarser
// than WaveletDetector on short windows and mostly serves as a cross-check.
type FFTDetector struct {
	sampleRate      float64
	minFrequency    float64 // Lowest frequency to detect (Hz)
	maxFrequency    float64 // Highest frequency to detect (Hz)
	noiseFloor      float64 // Spectral magnitude below which the window is treated as noise
	peakThreshold   float64 // Minimum peak height as fraction of highest peak
	volumeThreshold float64 // Minimum RMS level
}

// NewFFTDetector creates a spectral detector for the given sample rate
func NewFFTDetector(sampleRate int) *FFTDetector {
	return &FFTDetector{
		sampleRate:      float64(sampleRate),
		minFrequency:    BaseFrequency,
		maxFrequency:    2000.0,
		noiseFloor:      0.01,
		peakThreshold:   0.2,
		volumeThreshold: 0.005,
	}
}

// Detect returns the frequency of the dominant peak, or 0 for quiet or empty input
func (d *FFTDetector) Detect(samples []float64) float64 {
	if len(samples) < 4 {
		return 0
	}

	sumSquares := 0.0
	for _, s := range samples {
		sumSquares += s * s
	}
	rms := math.Sqrt(sumSquares / float64(len(samples)))
	if rms < d.volumeThreshold {
		return 0
	}

	windowed := make([]float64, len(samples))
	copy(windowed, samples)
	window.Apply(windowed, window.Hann)

	spectrum := fft.FFTReal(windowed)
	freq := d.findFundamentalFrequency(spectrum)
	if freq < d.minFrequency || freq > d.maxFrequency {
		return 0
	}
	return freq
}

// spectralPeak is a local maximum in the magnitude spectrum
type spectralPeak struct {
	Bin       int
	Magnitude float64
	Frequency float64
}

// findFundamentalFrequency returns the interpolated frequency of the highest peak, 0 if none
func (d *FFTDetector) findFundamentalFrequency(spectrum []complex128) float64 {
	// Only the first half carries information for real input
	half := spectrum[:len(spectrum)/2]
	binSizeHz := d.sampleRate / float64(len(spectrum))

	minBin := int(d.minFrequency / binSizeHz)
	if minBin < 1 {
		minBin = 1 // Skip DC
	}
	maxBin := int(d.maxFrequency / binSizeHz)
	if maxBin >= len(half) {
		maxBin = len(half) - 1
	}
	if minBin >= maxBin {
		return 0
	}

	magnitudes := make([]float64, len(half))
	maxMagnitude := 0.0
	for i := minBin - 1; i <= maxBin && i < len(half); i++ {
		magnitudes[i] = cmplx.Abs(half[i])
		if i >= minBin && magnitudes[i] > maxMagnitude {
			maxMagnitude = magnitudes[i]
		}
	}
	if maxMagnitude < d.noiseFloor {
		return 0
	}

	var peaks []spectralPeak
	for i := minBin + 1; i < maxBin; i++ {
		prev, current, next := magnitudes[i-1], magnitudes[i], magnitudes[i+1]
		if current <= prev || current <= next || current <= maxMagnitude*d.peakThreshold {
			continue
		}

		// Quadratic interpolation around the peak bin
		freq := float64(i) * binSizeHz
		if denom := prev - 2*current + next; denom != 0 {
			freq = (float64(i) + 0.5*(prev-next)/denom) * binSizeHz
		}
		peaks = append(peaks, spectralPeak{Bin: i, Magnitude: current, Frequency: freq})
	}

	if len(peaks) == 0 {
		return 0
	}

	sort.Slice(peaks, func(i, j int) bool {
		return peaks[i].Magnitude > peaks[j].Magnitude
	})
	return peaks[0].Frequency
}
