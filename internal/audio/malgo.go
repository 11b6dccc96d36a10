package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/smallnest/ringbuffer"
)

// ringSeconds is how much captured audio the malgo ring buffer can hold
const ringSeconds = 2

// MalgoDevice captures through miniaudio. The device callback feeds a ring buffer
// that Read drains, which turns miniaudio's push model into blocking reads.
type MalgoDevice struct {
	mu         sync.Mutex
	deviceName string
	sampleRate int

	ctx    *malgo.AllocatedContext
	device *malgo.Device
	ring   *ringbuffer.RingBuffer
	raw    []byte

	dropped atomic.Uint64
}

// NewMalgoDevice creates a miniaudio capture device. An empty name or "default" selects the system default.
func NewMalgoDevice(deviceName string, sampleRate int) *MalgoDevice {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &MalgoDevice{
		deviceName: deviceName,
		sampleRate: sampleRate,
	}
}

// backendForPlatform returns the miniaudio backend for the current OS
func backendForPlatform() malgo.Backend {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa
	case "windows":
		return malgo.BackendWasapi
	case "darwin":
		return malgo.BackendCoreaudio
	default:
		return malgo.BackendNull
	}
}

// Open initializes the miniaudio context and starts capturing mono S16 frames
func (d *MalgoDevice) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device != nil {
		return ErrAlreadyOpen
	}

	ctx, err := malgo.InitContext([]malgo.Backend{backendForPlatform()}, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("init malgo context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(d.sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	if d.deviceName != "" && d.deviceName != "default" {
		info, err := findCaptureDevice(ctx, d.deviceName)
		if err != nil {
			_ = ctx.Uninit()
			ctx.Free()
			return err
		}
		deviceConfig.Capture.DeviceID = info.ID.Pointer()
	}

	d.ring = ringbuffer.New(ringSeconds * d.sampleRate * 2).SetBlocking(true)
	d.dropped.Store(0)

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: d.onData,
	})
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("init malgo device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("start malgo device: %w", err)
	}

	d.ctx = ctx
	d.device = device
	return nil
}

// onData runs on miniaudio's thread and must never block
func (d *MalgoDevice) onData(_, input []byte, _ uint32) {
	if len(input) == 0 {
		return
	}
	if d.ring.Free() < len(input) {
		d.dropped.Add(uint64(len(input) / 2))
		return
	}
	_, _ = d.ring.Write(input)
}

// Read blocks until captured frames are available and converts them to float samples
func (d *MalgoDevice) Read(buf []float64) (int, error) {
	d.mu.Lock()
	ring := d.ring
	open := d.device != nil
	d.mu.Unlock()

	if !open || ring == nil {
		return 0, ErrNotOpen
	}

	need := len(buf) * 2
	if cap(d.raw) < need {
		d.raw = make([]byte, need)
	}
	raw := d.raw[:need]

	n, err := ring.Read(raw)
	// Keep whole samples only; a dangling odd byte is rare and harmless to lose
	samples := n / 2
	for i := 0; i < samples; i++ {
		buf[i] = s16ToFloat(int16(binary.LittleEndian.Uint16(raw[2*i:])))
	}
	if err != nil && samples == 0 {
		if errors.Is(err, ErrNotOpen) {
			return 0, ErrNotOpen
		}
		return 0, fmt.Errorf("read malgo ring buffer: %w", err)
	}
	return samples, nil
}

// Close stops the device and releases the miniaudio context
func (d *MalgoDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device == nil {
		return nil
	}

	err := d.device.Stop()
	d.device.Uninit()
	d.device = nil

	if d.ring != nil {
		d.ring.CloseWithError(ErrNotOpen)
	}

	if uerr := d.ctx.Uninit(); err == nil {
		err = uerr
	}
	d.ctx.Free()
	d.ctx = nil
	return err
}

// SampleRate returns the requested capture rate
func (d *MalgoDevice) SampleRate() int {
	return d.sampleRate
}

// Dropped returns how many samples were discarded because the reader fell behind
func (d *MalgoDevice) Dropped() uint64 {
	return d.dropped.Load()
}

// findCaptureDevice matches a capture device by exact then partial name
func findCaptureDevice(ctx *malgo.AllocatedContext, name string) (*malgo.DeviceInfo, error) {
	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerate malgo devices: %w", err)
	}
	for i := range infos {
		if infos[i].Name() == name {
			return &infos[i], nil
		}
	}
	for i := range infos {
		if strings.Contains(infos[i].Name(), name) {
			return &infos[i], nil
		}
	}
	return nil, fmt.Errorf("no capture device matching %q: %w", name, ErrInvalidInput)
}
