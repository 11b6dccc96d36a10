// Package capture runs the pitch pipeline on a dedicated goroutine and
// delivers one Frame per processed buffer to a single consumer.
package capture

import (
	"errors"

	"github.com/0xlemi/precisepitch/internal/pitch"
)

// Errors
var (
	ErrDeviceOpen    = errors.New("cannot open capture device")
	ErrSourceStopped = errors.New("pitch source stopped")
	ErrNoSampleRate  = errors.New("device reports no sample rate")
)

// FrameBufferSize is the suggested capacity of the channel handed to a Loop
const FrameBufferSize = 16

// Frame is the result of one capture cycle
type Frame struct {
	Seq     uint64               // Position within the session, starting at 0
	Session string               // ID of the session that produced the frame
	Pitch   *pitch.MeasuredPitch // nil when there was no usable signal
	Level   float64              // Peak input level in dBFS
	Err     error                // Set only on the last frame of a session that ended by itself
}

// Silent reports whether the frame carries no pitch and no error
func (f Frame) Silent() bool {
	return f.Pitch == nil && f.Err == nil
}

// Source is anything that produces frames until stopped
type Source interface {
	Start() error
	Stop()
	Running() bool
}
