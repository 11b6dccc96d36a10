package follow

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// HistogramBuckets is the number of one-cent buckets, covering -50..+49 cents
const HistogramBuckets = 100

// filterSigma is the standard deviation of the smoothing kernel, in buckets
const filterSigma = 2.0

// Histogram counts cent deviations while a note is held
type Histogram struct {
	counts     [HistogramBuckets]int
	smoothed   [HistogramBuckets]float64
	isFiltered bool
	maxCount   int
	cents      []float64
}

// NewHistogram returns an empty histogram
func NewHistogram() *Histogram {
	return &Histogram{}
}

// Bucket maps a cent deviation to its bucket, clamped to the table
func Bucket(cent float64) int {
	b := int(math.Round(cent + 50))
	return max(0, min(b, HistogramBuckets-1))
}

// Add records one cent measurement
func (h *Histogram) Add(cent float64) {
	h.cents = append(h.cents, cent)
	h.Increment(Bucket(cent))
}

// Increment counts one hit in bucket. Out of range buckets are ignored.
func (h *Histogram) Increment(bucket int) {
	if bucket < 0 || bucket >= HistogramBuckets {
		return
	}
	h.counts[bucket]++
	if h.counts[bucket] > h.maxCount {
		h.maxCount = h.counts[bucket]
	}
	h.isFiltered = false
}

// Count returns the raw count of bucket
func (h *Histogram) Count(bucket int) int {
	if bucket < 0 || bucket >= HistogramBuckets {
		return 0
	}
	return h.counts[bucket]
}

// Total returns the number of recorded hits
func (h *Histogram) Total() int {
	total := 0
	for _, c := range h.counts {
		total += c
	}
	return total
}

// Max returns the largest bucket count
func (h *Histogram) Max() int {
	return h.maxCount
}

// Normalized returns the bucket count relative to the largest bucket, 0 when empty
func (h *Histogram) Normalized(bucket int) float64 {
	if h.maxCount == 0 {
		return 0
	}
	return float64(h.Count(bucket)) / float64(h.maxCount)
}

// Filter smooths the counts with a Gaussian kernel of the given radius and
// normalizes the result to a peak of 1. It does nothing on an empty histogram.
func (h *Histogram) Filter(radius int) {
	if h.isFiltered || h.maxCount == 0 {
		return
	}

	maxFiltered := 0.0
	for i := range h.smoothed {
		tapStart := max(0, i-radius)
		tapStop := min(i+radius, HistogramBuckets-1)
		sum := 0.0
		for j := tapStart; j < tapStop; j++ {
			sum += float64(h.counts[j]) * gaussian(float64(i-j))
		}
		h.smoothed[i] = sum
		maxFiltered = max(maxFiltered, sum)
	}

	if maxFiltered == 0 {
		// Radius too small to reach any count
		return
	}
	for i := range h.smoothed {
		h.smoothed[i] /= maxFiltered
	}
	h.isFiltered = true
}

// Filtered returns the smoothed value of bucket, or Normalized if Filter has not run
func (h *Histogram) Filtered(bucket int) float64 {
	if !h.isFiltered {
		return h.Normalized(bucket)
	}
	if bucket < 0 || bucket >= HistogramBuckets {
		return 0
	}
	return h.smoothed[bucket]
}

// Reset clears all counts
func (h *Histogram) Reset() {
	*h = Histogram{cents: h.cents[:0]}
}

// Clone returns an independent copy
func (h *Histogram) Clone() *Histogram {
	if h == nil {
		return nil
	}
	c := *h
	c.cents = append([]float64(nil), h.cents...)
	return &c
}

// Mean returns the average recorded cent deviation, 0 when empty
func (h *Histogram) Mean() float64 {
	if len(h.cents) == 0 {
		return 0
	}
	return stat.Mean(h.cents, nil)
}

// StdDev returns the sample standard deviation of the recorded cents, 0 with fewer than two samples
func (h *Histogram) StdDev() float64 {
	if len(h.cents) < 2 {
		return 0
	}
	return stat.StdDev(h.cents, nil)
}

func gaussian(pos float64) float64 {
	x := pos / filterSigma
	return math.Exp(-0.5*x*x) / (filterSigma * math.Sqrt(2*math.Pi))
}
