package capture

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/0xlemi/precisepitch/internal/audio"
	"github.com/0xlemi/precisepitch/internal/pitch"
)

// DetectorFactory builds the detector for one session once the device's sample rate is known
type DetectorFactory func(sampleRate, sampleCount int) pitch.Detector

// WaveletDetectors is the default DetectorFactory
func WaveletDetectors(sampleRate, sampleCount int) pitch.Detector {
	return pitch.NewWaveletDetector(sampleRate, sampleCount)
}

// FFTDetectors builds spectral detectors
func FFTDetectors(sampleRate, _ int) pitch.Detector {
	return pitch.NewFFTDetector(sampleRate)
}

// Option configures a Loop
type Option func(*Loop)

// WithDetector selects how detectors are built
func WithDetector(factory DetectorFactory) Option {
	return func(l *Loop) {
		if factory != nil {
			l.newDetector = factory
		}
	}
}

// WithMinFrequency sets the lowest frequency the buffer size must cover
func WithMinFrequency(hz int) Option {
	return func(l *Loop) {
		l.minFrequency = hz
	}
}

// WithMetrics records session and frame metrics
func WithMetrics(m *Metrics) Option {
	return func(l *Loop) {
		l.metrics = m
	}
}

// WithLogger sets the logger; the loop adds its own component attribute
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Loop reads buffers from a device, runs them through detection, stabilization
// and classification, and posts a Frame per buffer to its output channel.
type Loop struct {
	device       audio.Device
	out          chan<- Frame
	newDetector  DetectorFactory
	minFrequency int
	metrics      *Metrics
	logger       *slog.Logger

	mu      sync.Mutex
	quit    chan struct{}
	done    chan struct{}
	session string
}

// NewLoop creates a stopped loop. The caller owns out and must keep draining
// it while the loop runs.
func NewLoop(device audio.Device, out chan<- Frame, opts ...Option) *Loop {
	l := &Loop{
		device:       device,
		out:          out,
		newDetector:  WaveletDetectors,
		minFrequency: audio.DefaultMinFrequency,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "capture")
	return l
}

// Start opens the device and begins a session. It does nothing while a
// session is running. An open failure is returned and no session starts.
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.runningLocked() {
		return nil
	}
	l.quit, l.done = nil, nil

	if err := l.device.Open(); err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceOpen, err)
	}

	sampleRate := l.device.SampleRate()
	if sampleRate <= 0 {
		_ = l.device.Close()
		return fmt.Errorf("%w: %w", ErrDeviceOpen, ErrNoSampleRate)
	}

	buf := audio.NewSampleBuffer(sampleRate, l.minFrequency)
	s := &session{
		id:         uuid.NewString(),
		buf:        buf,
		detector:   l.newDetector(sampleRate, buf.Len()),
		stabilizer: pitch.NewStabilizer(),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	l.quit, l.done, l.session = s.quit, s.done, s.id

	l.logger.Info("capture session started",
		"session", s.id,
		"sample_rate", sampleRate,
		"sample_count", buf.Len())
	l.metrics.RecordSessionStart()

	go l.run(s)
	return nil
}

// Stop ends the running session and blocks until the capture goroutine has
// exited and the device is closed. No frames are sent after Stop returns.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.done == nil {
		return
	}
	close(l.quit)
	<-l.done
	l.quit, l.done = nil, nil
}

// Running reports whether a session is active
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.runningLocked()
}

// Session returns the ID of the current or last session
func (l *Loop) Session() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session
}

func (l *Loop) runningLocked() bool {
	if l.done == nil {
		return false
	}
	select {
	case <-l.done:
		// Ended by itself
		return false
	default:
		return true
	}
}

// session is the state owned by one capture goroutine
type session struct {
	id         string
	buf        *audio.SampleBuffer
	detector   pitch.Detector
	stabilizer *pitch.Stabilizer
	quit       chan struct{}
	done       chan struct{}
}

var errStopRequested = errors.New("stop requested")

func (l *Loop) run(s *session) {
	defer close(s.done)

	logger := l.logger.With("session", s.id)
	defer func() {
		if err := l.device.Close(); err != nil {
			logger.Warn("closing capture device failed", "error", err)
		}
		l.metrics.RecordSessionStop()
		logger.Info("capture session stopped")
	}()

	var seq uint64
	for {
		if err := l.fill(s); err != nil {
			if errors.Is(err, errStopRequested) {
				return
			}

			if errors.Is(err, io.EOF) {
				logger.Info("capture source exhausted")
			} else {
				l.metrics.RecordReadError()
				logger.Error("reading capture device failed", "error", err)
			}
			l.send(s, Frame{Seq: seq, Session: s.id, Err: fmt.Errorf("%w: %w", ErrSourceStopped, err)})
			return
		}

		if !l.send(s, l.process(s, seq)) {
			return
		}
		seq++
	}
}

// fill reads until the buffer is full, retrying partial reads
func (l *Loop) fill(s *session) error {
	samples := s.buf.Samples
	read := 0
	for read < len(samples) {
		select {
		case <-s.quit:
			return errStopRequested
		default:
		}

		n, err := l.device.Read(samples[read:])
		if n > 0 {
			read += n
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// process runs the pitch pipeline over one full buffer
func (l *Loop) process(s *session, seq uint64) Frame {
	start := time.Now()

	peak := s.buf.Peak()
	stable := s.stabilizer.Stabilize(s.detector.Detect(s.buf.Samples))

	frame := Frame{Seq: seq, Session: s.id, Level: pitch.Decibel(peak)}
	if m, ok := pitch.Classify(stable, peak); ok {
		frame.Pitch = &m
	}

	l.metrics.RecordDetection(time.Since(start).Seconds())
	l.metrics.SetInputLevel(frame.Level)
	l.metrics.RecordFrame(frame.Pitch != nil)
	return frame
}

// send delivers f unless a stop is requested first
func (l *Loop) send(s *session, f Frame) bool {
	select {
	case l.out <- f:
		return true
	case <-s.quit:
		return false
	}
}
