package capture

import (
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/0xlemi/precisepitch/internal/pitch"
)

const (
	// DefaultSyntheticInterval is a bit faster than a real capture cycle
	DefaultSyntheticInterval = 25 * time.Millisecond

	// DefaultSyntheticFrequency is used until SetExpectedFrequency is called
	DefaultSyntheticFrequency = 220.0

	// jitterSpan is roughly one semitone as a fraction of the frequency
	jitterSpan = 0.059
)

// Synthetic produces frames around an expected frequency without any audio.
// It drives the follow engine in demos and in automatic play.
type Synthetic struct {
	out      chan<- Frame
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	expected float64
	rng      *rand.Rand
	quit     chan struct{}
	done     chan struct{}
}

// SyntheticOption configures a Synthetic source
type SyntheticOption func(*Synthetic)

// WithInterval sets the delay between frames
func WithInterval(d time.Duration) SyntheticOption {
	return func(s *Synthetic) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithRand sets the jitter source
func WithRand(rng *rand.Rand) SyntheticOption {
	return func(s *Synthetic) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// WithSyntheticLogger sets the logger
func WithSyntheticLogger(logger *slog.Logger) SyntheticOption {
	return func(s *Synthetic) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSynthetic creates a stopped synthetic source writing to out
func NewSynthetic(out chan<- Frame, opts ...SyntheticOption) *Synthetic {
	s := &Synthetic{
		out:      out,
		interval: DefaultSyntheticInterval,
		logger:   slog.New(slog.DiscardHandler),
		expected: DefaultSyntheticFrequency,
		rng:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "synthetic")
	return s
}

// SetExpectedFrequency changes the frequency produced from now on
func (s *Synthetic) SetExpectedFrequency(hz float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expected = hz
}

// Start begins producing frames. It does nothing if already running.
func (s *Synthetic) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return nil
	}
	s.quit = make(chan struct{})
	s.done = make(chan struct{})

	id := uuid.NewString()
	s.logger.Debug("synthetic session started", "session", id)
	go s.run(id, s.quit, s.done)
	return nil
}

// Stop halts the generator and waits for it to exit
func (s *Synthetic) Stop() {
	s.mu.Lock()
	quit, done := s.quit, s.done
	s.quit, s.done = nil, nil
	s.mu.Unlock()

	if done == nil {
		return
	}
	close(quit)
	<-done
}

// Running reports whether frames are being produced
func (s *Synthetic) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done != nil
}

// next returns the expected frequency with up to a sixth of a semitone of jitter
func (s *Synthetic) next() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	jitter := (s.rng.Float64() - 0.5) / 3 * jitterSpan * s.expected
	return s.expected + jitter
}

func (s *Synthetic) run(id string, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
		}

		frame := Frame{Seq: seq, Session: id}
		if m, ok := pitch.Classify(s.next(), 1); ok {
			frame.Pitch = &m
			frame.Level = m.Decibel
		} else {
			frame.Level = pitch.MinDecibel
		}

		select {
		case s.out <- frame:
		case <-quit:
			return
		}
		seq++
	}
}
