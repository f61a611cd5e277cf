package telemetry

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/erp/shopledger/internal/infrastructure/config"
	otelpyroscope "github.com/grafana/otel-profiling-go"
	"github.com/grafana/pyroscope-go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

const mutexProfileFraction = 5

// Profiler runs Pyroscope continuous profiling.
type Profiler struct {
	profiler *pyroscope.Profiler
	logger   *zap.Logger
	mu       sync.Mutex
}

// NewProfiler starts profiling when cfg.ProfilingServer is set.
// Mutex profiles are on so contention on sale locks shows up.
func NewProfiler(cfg config.TelemetryConfig, logger *zap.Logger) (*Profiler, error) {
	p := &Profiler{logger: logger}
	if cfg.ProfilingServer == "" {
		return p, nil
	}

	runtime.SetMutexProfileFraction(mutexProfileFraction)

	tags := map[string]string{}
	if hostname := os.Getenv("HOSTNAME"); hostname != "" {
		tags["hostname"] = hostname
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ServiceName,
		ServerAddress:   cfg.ProfilingServer,
		Logger:          logger.Named("pyroscope").Sugar(),
		Tags:            tags,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
			pyroscope.ProfileMutexCount,
			pyroscope.ProfileMutexDuration,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Pyroscope profiler: %w", err)
	}
	p.profiler = profiler

	logger.Info("Pyroscope profiler started", zap.String("server_address", cfg.ProfilingServer))
	return p, nil
}

// IsRunning reports whether profiles are being collected.
func (p *Profiler) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.profiler != nil
}

// EnableSpanProfiles links CPU profiles to spans of tp. The profiler must be running.
func (p *Profiler) EnableSpanProfiles(tp *TracerProvider) {
	if !p.IsRunning() || !tp.IsEnabled() {
		return
	}
	otel.SetTracerProvider(otelpyroscope.NewTracerProvider(tp.provider))
	p.logger.Info("Span profiles enabled")
}

// Stop flushes and stops the profiler. Calling it twice is safe.
func (p *Profiler) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.profiler == nil {
		return nil
	}
	err := p.profiler.Stop()
	p.profiler = nil
	return err
}
