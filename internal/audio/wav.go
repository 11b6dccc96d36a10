package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVDevice plays a WAV file as if it were a microphone
type WAVDevice struct {
	mu       sync.Mutex
	path     string
	realtime bool

	file       *os.File
	decoder    *wav.Decoder
	sampleRate int
	channels   int
	divisor    float64
	pcm        *goaudio.IntBuffer
	pending    []float64
	started    time.Time
	delivered  int
}

// NewWAVDevice creates a device reading from path. With realtime set, Read
// paces delivery to the file's sample rate.
func NewWAVDevice(path string, realtime bool) *WAVDevice {
	return &WAVDevice{path: path, realtime: realtime}
}

// Open validates the file header and prepares the decoder
func (d *WAVDevice) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file != nil {
		return ErrAlreadyOpen
	}

	file, err := os.Open(d.path)
	if err != nil {
		return fmt.Errorf("open wav file: %w", err)
	}

	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		_ = file.Close()
		return fmt.Errorf("%s is not a valid WAV file: %w", d.path, ErrInvalidInput)
	}

	divisor, err := bitDepthDivisor(int(decoder.BitDepth))
	if err != nil {
		_ = file.Close()
		return err
	}

	if decoder.NumChans == 0 {
		_ = file.Close()
		return fmt.Errorf("%s has no channels: %w", d.path, ErrInvalidInput)
	}

	d.file = file
	d.decoder = decoder
	d.sampleRate = int(decoder.SampleRate)
	d.channels = int(decoder.NumChans)
	d.divisor = divisor
	d.pcm = &goaudio.IntBuffer{
		Data:   make([]int, 4096*d.channels),
		Format: &goaudio.Format{SampleRate: d.sampleRate, NumChannels: d.channels},
	}
	d.pending = d.pending[:0]
	d.started = time.Now()
	d.delivered = 0
	return nil
}

// bitDepthDivisor returns the full-scale value for integer PCM of the given depth
func bitDepthDivisor(bitDepth int) (float64, error) {
	switch bitDepth {
	case 8:
		return 128.0, nil
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, fmt.Errorf("unsupported bit depth %d: %w", bitDepth, ErrInvalidInput)
	}
}

// Read decodes the next chunk of the file. It returns io.EOF once the file is exhausted.
func (d *WAVDevice) Read(buf []float64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return 0, ErrNotOpen
	}

	if len(d.pending) == 0 {
		n, err := d.decoder.PCMBuffer(d.pcm)
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("decode wav: %w", err)
		}
		if n == 0 {
			return 0, io.EOF
		}
		d.pending = d.downmix(d.pending[:0], d.pcm.Data[:n])
	}

	n := copy(buf, d.pending)
	d.pending = d.pending[n:]

	if d.realtime {
		d.pace(n)
	}
	return n, nil
}

// downmix averages interleaved frames into normalized mono samples
func (d *WAVDevice) downmix(dst []float64, data []int) []float64 {
	for i := 0; i+d.channels <= len(data); i += d.channels {
		sum := 0
		for ch := 0; ch < d.channels; ch++ {
			sum += data[i+ch]
		}
		v := float64(sum) / float64(d.channels) / d.divisor
		if d.divisor == 128.0 {
			// 8-bit WAV is unsigned
			v--
		}
		dst = append(dst, v)
	}
	return dst
}

// pace sleeps until wall-clock time catches up with the audio delivered so far
func (d *WAVDevice) pace(n int) {
	d.delivered += n
	due := d.started.Add(time.Duration(float64(d.delivered) / float64(d.sampleRate) * float64(time.Second)))
	if wait := time.Until(due); wait > 0 {
		time.Sleep(wait)
	}
}

// Close closes the underlying file
func (d *WAVDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	d.decoder = nil
	return err
}

// SampleRate returns the file's sample rate, or 0 before Open
func (d *WAVDevice) SampleRate() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sampleRate
}

// WriteWAV encodes mono samples in [-1, 1] as a 16-bit PCM WAV file
func WriteWAV(w io.WriteSeeker, samples []float64, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, 1, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		data[i] = int(s * 32767)
	}
	buf := &goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{SampleRate: sampleRate, NumChannels: 1},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return enc.Close()
}
