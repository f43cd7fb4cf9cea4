package runner

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/lakebench/lakebench/pkg/metrics"
)

// ResourceSampler logs host RAM and CPU usage at a fixed period while a
// run is in flight.
type ResourceSampler struct {
	period    time.Duration
	logger    zerolog.Logger
	collector metrics.Collector
}

// NewResourceSampler creates a sampler. A period of zero defaults to
// five seconds.
func NewResourceSampler(period time.Duration, logger zerolog.Logger, collector metrics.Collector) *ResourceSampler {
	if period <= 0 {
		period = 5 * time.Second
	}
	if collector == nil {
		collector = metrics.NewNoOpCollector()
	}
	return &ResourceSampler{
		period:    period,
		logger:    logger.With().Str("component", "sampler").Logger(),
		collector: collector,
	}
}

// Start samples in a goroutine until the context is canceled.
func (s *ResourceSampler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sample(ctx)
			}
		}
	}()
}

func (s *ResourceSampler) sample(ctx context.Context) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read memory usage")
		return
	}
	cpuPct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil || len(cpuPct) == 0 {
		s.logger.Warn().Err(err).Msg("Failed to read CPU usage")
		return
	}

	usedGB := float64(vm.Used) / (1024 * 1024 * 1024)
	s.collector.RecordGauge("lakebench_host_ram_used_gb", usedGB)
	s.collector.RecordGauge("lakebench_host_cpu_percent", cpuPct[0])
	s.logger.Info().
		Float64("ram_used_gb", usedGB).
		Float64("cpu_percent", cpuPct[0]).
		Msg("Resource usage")
}
