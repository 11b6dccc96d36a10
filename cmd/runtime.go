package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/0xlemi/precisepitch/internal/audio"
	"github.com/0xlemi/precisepitch/internal/capture"
	"github.com/0xlemi/precisepitch/internal/config"
	"github.com/0xlemi/precisepitch/internal/ui"
)

const (
	toneAmplitude   = 0.5
	shutdownTimeout = 2 * time.Second
)

// newDevice builds the capture device selected in the settings
func (a *app) newDevice() audio.Device {
	s := a.settings.Audio
	switch s.Backend {
	case config.BackendMalgo:
		return audio.NewMalgoDevice(s.Device, s.SampleRate)
	case config.BackendTone:
		return audio.NewToneDevice(s.SampleRate, s.ToneFrequency, toneAmplitude, true)
	default:
		d := audio.NewPortAudioDevice(s.SampleRate, 1)
		d.SetAmplification(s.Amplification)
		return d
	}
}

// detectors returns the detector factory selected in the settings
func (a *app) detectors() capture.DetectorFactory {
	if a.settings.Audio.Detector == config.DetectorFFT {
		return capture.FFTDetectors
	}
	return capture.WaveletDetectors
}

// newLoop wires a capture loop for device with metrics, if enabled
func (a *app) newLoop(device audio.Device, frames chan<- capture.Frame, metrics *capture.Metrics) *capture.Loop {
	return capture.NewLoop(device, frames,
		capture.WithDetector(a.detectors()),
		capture.WithMinFrequency(a.settings.Audio.MinFrequency),
		capture.WithMetrics(metrics),
		capture.WithLogger(a.logger))
}

// newMetrics registers the capture metrics on a private registry. Both
// results are nil when no listen address is configured.
func (a *app) newMetrics() (*capture.Metrics, *prometheus.Registry, error) {
	if a.settings.Metrics.Listen == "" {
		return nil, nil, nil
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := capture.NewMetrics(registry)
	if err != nil {
		return nil, nil, fmt.Errorf("register metrics: %w", err)
	}
	return metrics, registry, nil
}

// serveMetrics exposes registry on /metrics until ctx is done
func (a *app) serveMetrics(ctx context.Context, registry *prometheus.Registry) error {
	if registry == nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              a.settings.Metrics.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	a.logger.Info("serving metrics", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// runProgram runs a TUI, forwarding frames to it, until the user quits
func (a *app) runProgram(ctx context.Context, model tea.Model, frames <-chan capture.Frame, registry *prometheus.Registry) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(gctx))

	g.Go(func() error {
		defer cancel()
		_, err := p.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case f := <-frames:
				p.Send(ui.FrameMsg(f))
			}
		}
	})

	g.Go(func() error {
		return a.serveMetrics(gctx, registry)
	})

	return g.Wait()
}
