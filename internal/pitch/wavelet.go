package pitch

import "math"

// Dynamic wavelet pitch tracking, after "Real-Time Time-Domain Pitch Tracking
// Using Wavelets" (Larson & Maddox). Each level runs a Haar-like decimation and
// looks for a stable spacing between zero-crossing-qualified extrema.
const (
	maxWaveletLevels  = 6
	maxFrequency      = 3000.0
	differenceLevels  = 3
	maxThresholdRatio = 0.75
)

// WaveletDetector implements Detector with the dynamic wavelet algorithm.
// It keeps scratch space between calls but no history, and is not safe for concurrent use.
type WaveletDetector struct {
	sampleRate float64
	work       []float64
	distances  []int
	mins       []int
	maxs       []int
}

// NewWaveletDetector creates a detector for windows of up to sampleCount samples
func NewWaveletDetector(sampleRate, sampleCount int) *WaveletDetector {
	d := &WaveletDetector{sampleRate: float64(sampleRate)}
	d.grow(sampleCount)
	return d
}

func (d *WaveletDetector) grow(n int) {
	if len(d.work) >= n {
		return
	}
	d.work = make([]float64, n)
	d.distances = make([]int, n)
	d.mins = make([]int, n)
	d.maxs = make([]int, n)
}

// Detect returns the estimated fundamental in Hz, or 0 when the levels do not agree.
// The input slice is left untouched.
func (d *WaveletDetector) Detect(samples []float64) float64 {
	n := len(samples)
	if n < 2 {
		return 0
	}
	d.grow(n)
	work := d.work[:n]
	copy(work, samples)
	distances := d.distances[:n]

	dc, amplitudeThreshold := dcAndThreshold(work)

	curSamples := n
	curModeDistance := -1.0

	for level := 0; level < maxWaveletLevels; level++ {
		delta := d.sampleRate / (float64(int(1)<<level) * maxFrequency)

		if curSamples < 2 {
			break
		}

		nbMins, nbMaxs := d.findExtrema(work[:curSamples], dc, amplitudeThreshold, delta)
		if nbMins == 0 && nbMaxs == 0 {
			return 0
		}

		// Distances between each extremum and its next two neighbours of the same kind
		clear(distances)
		countDistances(distances, d.mins[:nbMins])
		countDistances(distances, d.maxs[:nbMaxs])

		bestDistance := modeDistance(distances[:curSamples], delta)

		distAvg, ok := averageDistance(distances, bestDistance, delta)
		if ok && curModeDistance > -1 {
			similarity := math.Abs(distAvg*2 - curModeDistance)
			if similarity <= 2*delta {
				return d.sampleRate / (float64(int(1)<<(level-1)) * curModeDistance)
			}
		}

		// Not similar, remember this level's mode and go one level down
		curModeDistance = -1
		if ok {
			curModeDistance = distAvg
		}

		if level+1 >= maxWaveletLevels {
			break
		}
		for i := 0; i < curSamples/2; i++ {
			work[i] = (work[2*i] + work[2*i+1]) / 2
		}
		curSamples /= 2
	}

	return 0
}

// dcAndThreshold returns the mean of the buffer and the amplitude an extremum must reach
func dcAndThreshold(samples []float64) (dc, threshold float64) {
	maxValue, minValue := 0.0, 0.0
	for _, s := range samples {
		dc += s
		if s > maxValue {
			maxValue = s
		}
		if s < minValue {
			minValue = s
		}
	}
	dc /= float64(len(samples))
	maxValue -= dc
	minValue -= dc

	amplitudeMax := maxValue
	if -minValue > amplitudeMax {
		amplitudeMax = -minValue
	}
	return dc, amplitudeMax * maxThresholdRatio
}

// findExtrema records the first minimum after each falling zero crossing and the
// first maximum after each rising one, if loud enough and far enough from the last.
func (d *WaveletDetector) findExtrema(samples []float64, dc, threshold, delta float64) (nbMins, nbMaxs int) {
	previousDV := -1000.0
	lastMinIndex := -1000000
	lastMaxIndex := -1000000
	findMax, findMin := false, false

	for i := 2; i < len(samples); i++ {
		si := samples[i] - dc
		si1 := samples[i-1] - dc

		if si1 <= 0 && si > 0 {
			findMax = true
		}
		if si1 >= 0 && si < 0 {
			findMin = true
		}

		dv := si - si1

		if previousDV > -1000 {
			if findMin && previousDV < 0 && dv >= 0 {
				if math.Abs(si) >= threshold && float64(i) > float64(lastMinIndex)+delta {
					d.mins[nbMins] = i
					nbMins++
					lastMinIndex = i
					findMin = false
				}
			}

			if findMax && previousDV > 0 && dv <= 0 {
				if math.Abs(si) >= threshold && float64(i) > float64(lastMaxIndex)+delta {
					d.maxs[nbMaxs] = i
					nbMaxs++
					lastMaxIndex = i
					findMax = false
				}
			}
		}

		previousDV = dv
	}
	return nbMins, nbMaxs
}

// countDistances adds the spacing of each index to its next differenceLevels-1 successors
func countDistances(distances []int, indexes []int) {
	for i := range indexes {
		for j := 1; j < differenceLevels; j++ {
			if i+j < len(indexes) {
				dist := indexes[i+j] - indexes[i]
				if dist < 0 {
					dist = -dist
				}
				distances[dist]++
			}
		}
	}
}

// modeDistance finds the distance whose [-delta, delta] neighbourhood holds the most counts.
// On a tie the later candidate only wins if it is exactly twice the current best.
func modeDistance(distances []int, delta float64) int {
	bestDistance := -1
	bestValue := -1
	lo, hi := int(-delta), delta
	for i := range distances {
		summed := 0
		for j := lo; float64(j) <= hi; j++ {
			if i+j >= 0 && i+j < len(distances) {
				summed += distances[i+j]
			}
		}
		if summed == bestValue {
			if i == 2*bestDistance {
				bestDistance = i
			}
		} else if summed > bestValue {
			bestValue = summed
			bestDistance = i
		}
	}
	return bestDistance
}

// averageDistance is the count-weighted mean distance around best. It reports
// false when the neighbourhood is empty.
func averageDistance(distances []int, best int, delta float64) (float64, bool) {
	distAvg := 0.0
	nbDists := 0
	lo, hi := int(-delta), delta
	for j := lo; float64(j) <= hi; j++ {
		k := best + j
		if k >= 0 && k < len(distances) {
			if c := distances[k]; c > 0 {
				nbDists += c
				distAvg += float64(k * c)
			}
		}
	}
	if nbDists == 0 {
		return 0, false
	}
	return distAvg / float64(nbDists), true
}
