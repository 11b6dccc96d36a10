package pitch

import "math"

const (
	// stabilizerAcceptedError is the relative deviation still considered the same pitch
	stabilizerAcceptedError = 0.4

	// MaxConfidence caps how many consistent frames the stabilizer remembers
	MaxConfidence = 5

	// octaveConfidence is needed before octave jumps get folded back
	octaveConfidence = 3
)

// Stabilizer smooths a stream of raw estimates. It bridges short dropouts
// and folds octave errors back onto the pitch it is confident about.
// A Stabilizer belongs to one capture session and is not safe for concurrent use.
type Stabilizer struct {
	previous   float64
	hasPrev    bool
	confidence int
}

// NewStabilizer returns a stabilizer with no history
func NewStabilizer() *Stabilizer {
	return &Stabilizer{}
}

// Stabilize feeds one raw estimate (0 for silence) and returns the smoothed
// pitch, or 0 when there is nothing trustworthy to report.
func (s *Stabilizer) Stabilize(p float64) float64 {
	if p <= 0 {
		return s.silence()
	}

	var out float64
	switch {
	case !s.hasPrev:
		out = s.accept(p, 1)

	case relativeError(s.previous, p) < stabilizerAcceptedError:
		out = s.accept(p, min(s.confidence+1, MaxConfidence))

	case s.confidence >= octaveConfidence && relativeError(s.previous, 2*p) < stabilizerAcceptedError:
		// Detected an octave low
		out = 2 * p
		s.previous = out

	case s.confidence >= octaveConfidence && relativeError(s.previous, 0.5*p) < stabilizerAcceptedError:
		// Detected an octave high
		out = 0.5 * p
		s.previous = out

	case s.confidence >= 1:
		// Outlier, hold the previous pitch while confidence lasts
		out = s.previous
		s.confidence--

	default:
		out = s.accept(p, 1)
	}

	if s.confidence < 1 {
		return 0
	}
	return out
}

func (s *Stabilizer) silence() float64 {
	if s.hasPrev && s.confidence >= 1 {
		s.confidence--
		if s.confidence < 1 {
			return 0
		}
		return s.previous
	}
	s.hasPrev = false
	s.previous = 0
	s.confidence = 0
	return 0
}

func (s *Stabilizer) accept(p float64, confidence int) float64 {
	s.previous = p
	s.hasPrev = true
	s.confidence = confidence
	return p
}

// Confidence returns the current confidence, 0..MaxConfidence
func (s *Stabilizer) Confidence() int {
	return s.confidence
}

// Reset forgets all history
func (s *Stabilizer) Reset() {
	*s = Stabilizer{}
}

// relativeError is |reference - p| / p
func relativeError(reference, p float64) float64 {
	return math.Abs(reference-p) / p
}
