package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const defaultFramesPerBuffer = 512

// PortAudioDevice captures from the default input device using PortAudio's blocking API
type PortAudioDevice struct {
	mu              sync.Mutex
	isOpen          bool
	stream          *portaudio.Stream
	sampleRate      int
	channels        int
	framesPerBuffer int
	inputBuffer     []float32
	pending         []float32 // samples read from the stream but not yet handed out
	amplification   float64
}

// NewPortAudioDevice creates a PortAudio capture device. It does not touch the hardware until Open.
func NewPortAudioDevice(sampleRate, channels int) *PortAudioDevice {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if channels <= 0 {
		channels = 1
	}
	return &PortAudioDevice{
		sampleRate:      sampleRate,
		channels:        channels,
		framesPerBuffer: defaultFramesPerBuffer,
		inputBuffer:     make([]float32, defaultFramesPerBuffer*channels),
		amplification:   1.0,
	}
}

// Open initializes PortAudio and starts the input stream
func (d *PortAudioDevice) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isOpen {
		return ErrAlreadyOpen
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}

	// Passing a buffer instead of a callback selects blocking reads
	stream, err := portaudio.OpenDefaultStream(
		d.channels, // input channels
		0,          // output channels
		float64(d.sampleRate),
		d.framesPerBuffer,
		d.inputBuffer,
	)
	if err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("open portaudio stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return fmt.Errorf("start portaudio stream: %w", err)
	}

	d.stream = stream
	d.pending = d.pending[:0]
	d.isOpen = true
	return nil
}

// Read hands out samples from the stream, reading one PortAudio buffer at a time
func (d *PortAudioDevice) Read(buf []float64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.isOpen {
		return 0, ErrNotOpen
	}

	if len(d.pending) == 0 {
		err := d.stream.Read()
		if errors.Is(err, portaudio.InputOverflowed) {
			// Lost some input; what we have is still usable
			err = nil
		}
		if err != nil {
			return 0, fmt.Errorf("read portaudio stream: %w", err)
		}
		d.pending = d.downmix(d.pending[:0])
	}

	n := copy64(buf, d.pending, d.amplification)
	d.pending = d.pending[n:]
	return n, nil
}

// downmix averages interleaved channels of the input buffer into dst
func (d *PortAudioDevice) downmix(dst []float32) []float32 {
	if d.channels == 1 {
		return append(dst, d.inputBuffer...)
	}
	for i := 0; i < len(d.inputBuffer)/d.channels; i++ {
		sum := float32(0)
		for ch := 0; ch < d.channels; ch++ {
			sum += d.inputBuffer[i*d.channels+ch]
		}
		dst = append(dst, sum/float32(d.channels))
	}
	return dst
}

// Close stops the stream and terminates PortAudio
func (d *PortAudioDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.isOpen {
		return nil
	}
	d.isOpen = false

	err := d.stream.Stop()
	if cerr := d.stream.Close(); err == nil {
		err = cerr
	}
	if terr := portaudio.Terminate(); err == nil {
		err = terr
	}
	d.stream = nil
	return err
}

// SampleRate returns the configured sample rate
func (d *PortAudioDevice) SampleRate() int {
	return d.sampleRate
}

// SetAmplification sets the input gain factor
func (d *PortAudioDevice) SetAmplification(factor float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Ensure amplification is positive
	if factor < 0.1 {
		factor = 0.1
	}

	d.amplification = factor
}

// copy64 copies src into dst applying gain and clipping to [-1, 1]
func copy64(dst []float64, src []float32, gain float64) int {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		v := float64(src[i]) * gain
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		dst[i] = v
	}
	return n
}

// DeviceInfo describes an input device known to PortAudio
type DeviceInfo struct {
	Index             int
	Name              string
	HostAPI           string
	MaxInputChannels  int
	DefaultSampleRate float64
	IsDefault         bool
}

// Devices lists the PortAudio devices that can capture audio
func Devices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	defer func() { _ = portaudio.Terminate() }()

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list portaudio devices: %w", err)
	}

	var defaultName string
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultName = def.Name
	}

	devices := make([]DeviceInfo, 0, len(infos))
	for i, info := range infos {
		if info.MaxInputChannels == 0 {
			continue
		}
		hostAPI := ""
		if info.HostApi != nil {
			hostAPI = info.HostApi.Name
		}
		devices = append(devices, DeviceInfo{
			Index:             i,
			Name:              info.Name,
			HostAPI:           hostAPI,
			MaxInputChannels:  info.MaxInputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			IsDefault:         info.Name == defaultName,
		})
	}
	return devices, nil
}
