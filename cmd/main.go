package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/0xlemi/precisepitch/internal/audio"
	"github.com/0xlemi/precisepitch/internal/config"
	"github.com/0xlemi/precisepitch/internal/logging"
)

// interactive marks commands whose terminal belongs to the TUI
const interactive = "interactive"

// app carries what every command needs once flags are parsed
type app struct {
	v          *viper.Viper
	configPath string
	settings   *config.Settings
	logger     *slog.Logger
	closeLog   func() error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCommand(&app{v: config.New()}).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// rootCommand creates the root command with its global flags and sub-commands
func rootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "precisepitch",
		Short:        "PrecisePitch - pitch detection and note following",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.closeLog != nil {
				return a.closeLog()
			}
			return nil
		},
	}

	setupFlags(rootCmd, a)

	rootCmd.AddCommand(
		tuneCommand(a),
		followCommand(a),
		analyzeCommand(a),
		devicesCommand(a),
	)
	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, a *app) {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Config file (default precisepitch.yaml in . or the user config dir)")
	flags.String("backend", config.BackendPortAudio, "Capture backend: portaudio, malgo or tone")
	flags.String("device", "", "Capture device name (malgo only)")
	flags.Int("sample-rate", audio.DefaultSampleRate, "Capture sample rate in Hz")
	flags.Int("min-frequency", audio.DefaultMinFrequency, "Lowest frequency to detect in Hz")
	flags.String("detector", config.DetectorWavelet, "Pitch detector: wavelet or fft")
	flags.Float64("amplification", 1.0, "Input gain (portaudio only)")
	flags.Float64("tone-frequency", 440.0, "Frequency of the tone backend in Hz")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "text", "Log format: text or json")
	flags.String("log-file", "", "Write logs to this file")
	flags.String("metrics-listen", "", "Serve Prometheus metrics on this address, e.g. :9090")
}

// setup loads the configuration and builds the logger
func (a *app) setup(cmd *cobra.Command) error {
	if err := config.BindFlags(a.v, cmd.Flags()); err != nil {
		return err
	}
	settings, err := config.Load(a.v, a.configPath)
	if err != nil {
		return err
	}
	a.settings = settings

	opts := logging.Options{
		Level:  settings.Log.Level,
		Format: settings.Log.Format,
		File:   settings.Log.File,
	}
	// The TUI owns the terminal, so interactive commands only log to a file
	if cmd.Annotations[interactive] == "" {
		opts.Output = os.Stderr
	}
	logger, closeLog, err := logging.New(opts)
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	a.logger, a.closeLog = logger, closeLog

	a.logger.Debug("configuration loaded",
		"config", a.v.ConfigFileUsed(),
		"backend", settings.Audio.Backend,
		"detector", settings.Audio.Detector,
		"sample_rate", settings.Audio.SampleRate)
	return nil
}
