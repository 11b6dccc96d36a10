// Package config loads settings from defaults, an optional YAML file,
// PRECISEPITCH_* environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrInvalidSettings is wrapped by every validation failure
var ErrInvalidSettings = errors.New("invalid settings")

// EnvPrefix is the prefix of environment overrides, e.g. PRECISEPITCH_AUDIO_BACKEND
const EnvPrefix = "PRECISEPITCH"

// Backends
const (
	BackendPortAudio = "portaudio"
	BackendMalgo     = "malgo"
	BackendTone      = "tone"
)

// Detectors
const (
	DetectorWavelet = "wavelet"
	DetectorFFT     = "fft"
)

// Settings is the complete configuration
type Settings struct {
	Audio   AudioSettings   `mapstructure:"audio"`
	Follow  FollowSettings  `mapstructure:"follow"`
	Log     LogSettings     `mapstructure:"log"`
	Metrics MetricsSettings `mapstructure:"metrics"`
}

// AudioSettings selects and tunes the capture device
type AudioSettings struct {
	Backend       string  `mapstructure:"backend"`       // portaudio, malgo or tone
	Device        string  `mapstructure:"device"`        // malgo device name, empty for default
	SampleRate    int     `mapstructure:"samplerate"`    // Hz
	MinFrequency  int     `mapstructure:"minfrequency"`  // Lowest pitch the buffer must cover, Hz
	Detector      string  `mapstructure:"detector"`      // wavelet or fft
	Amplification float64 `mapstructure:"amplification"` // Input gain for portaudio
	ToneFrequency float64 `mapstructure:"tonefrequency"` // Frequency of the tone backend
}

// FollowSettings tunes the note-follow exercise
type FollowSettings struct {
	HoldTime  int     `mapstructure:"holdtime"`  // In-tune frames to finish a note
	Tolerance float64 `mapstructure:"tolerance"` // Accepted deviation in cents
	Smoothing int     `mapstructure:"smoothing"` // Histogram filter radius, 0 disables
}

// LogSettings configures logging
type LogSettings struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text or json
	File   string `mapstructure:"file"`   // Empty discards logs in interactive commands
}

// MetricsSettings configures the Prometheus endpoint
type MetricsSettings struct {
	Listen string `mapstructure:"listen"` // e.g. ":9090", empty disables
}

// setDefaults registers the default value of every key
func setDefaults(v *viper.Viper) {
	v.SetDefault("audio.backend", BackendPortAudio)
	v.SetDefault("audio.device", "")
	v.SetDefault("audio.samplerate", 44100)
	v.SetDefault("audio.minfrequency", 60)
	v.SetDefault("audio.detector", DetectorWavelet)
	v.SetDefault("audio.amplification", 1.0)
	v.SetDefault("audio.tonefrequency", 440.0)

	v.SetDefault("follow.holdtime", 15)
	v.SetDefault("follow.tolerance", 20.0)
	v.SetDefault("follow.smoothing", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")

	v.SetDefault("metrics.listen", "")
}

// flagKeys maps command line flags to configuration keys
var flagKeys = map[string]string{
	"backend":        "audio.backend",
	"device":         "audio.device",
	"sample-rate":    "audio.samplerate",
	"min-frequency":  "audio.minfrequency",
	"detector":       "audio.detector",
	"amplification":  "audio.amplification",
	"tone-frequency": "audio.tonefrequency",
	"hold-time":      "follow.holdtime",
	"tolerance":      "follow.tolerance",
	"smoothing":      "follow.smoothing",
	"log-level":      "log.level",
	"log-format":     "log.format",
	"log-file":       "log.file",
	"metrics-listen": "metrics.listen",
}

// New returns a viper instance with defaults and environment overrides set up
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags binds every known flag present in flags to its key
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the config file, if any, and returns validated settings.
// With an empty path precisepitch.yaml is looked up in the working
// directory and the user config directory; a missing file is not an error.
func Load(v *viper.Viper, path string) (*Settings, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("precisepitch")
		v.SetConfigType("yaml")
		for _, dir := range searchPaths() {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// searchPaths returns the directories checked for precisepitch.yaml
func searchPaths() []string {
	paths := []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "precisepitch"))
	}
	return paths
}

// Validate checks value ranges and enumerations
func (s *Settings) Validate() error {
	var errs []error

	switch s.Audio.Backend {
	case BackendPortAudio, BackendMalgo, BackendTone:
	default:
		errs = append(errs, fmt.Errorf("audio.backend %q is not one of portaudio, malgo, tone", s.Audio.Backend))
	}
	switch s.Audio.Detector {
	case DetectorWavelet, DetectorFFT:
	default:
		errs = append(errs, fmt.Errorf("audio.detector %q is not one of wavelet, fft", s.Audio.Detector))
	}
	if s.Audio.SampleRate < 4000 || s.Audio.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("audio.samplerate %d out of range 4000..192000", s.Audio.SampleRate))
	}
	if s.Audio.MinFrequency < 20 || s.Audio.MinFrequency > 2000 {
		errs = append(errs, fmt.Errorf("audio.minfrequency %d out of range 20..2000", s.Audio.MinFrequency))
	}
	if s.Audio.Amplification <= 0 {
		errs = append(errs, fmt.Errorf("audio.amplification must be positive, got %v", s.Audio.Amplification))
	}
	if s.Audio.ToneFrequency < 0 {
		errs = append(errs, fmt.Errorf("audio.tonefrequency must not be negative, got %v", s.Audio.ToneFrequency))
	}

	if s.Follow.HoldTime < 1 {
		errs = append(errs, fmt.Errorf("follow.holdtime must be at least 1, got %d", s.Follow.HoldTime))
	}
	if s.Follow.Tolerance <= 0 || s.Follow.Tolerance > 50 {
		errs = append(errs, fmt.Errorf("follow.tolerance %v out of range (0, 50]", s.Follow.Tolerance))
	}
	if s.Follow.Smoothing < 0 {
		errs = append(errs, fmt.Errorf("follow.smoothing must not be negative, got %d", s.Follow.Smoothing))
	}

	switch strings.ToLower(s.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", s.Log.Level))
	}
	switch s.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of text, json", s.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, errors.Join(errs...))
	}
	return nil
}
