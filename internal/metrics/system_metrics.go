package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// MetricsManager owns the registry served on the metrics endpoint together
// with host CPU and memory gauges.
type MetricsManager struct {
	systemCPUUsage    *prometheus.GaugeVec
	systemMemoryUsage *prometheus.GaugeVec

	registry *prometheus.Registry

	started bool
	mu      sync.Mutex
}

// NewMetricsManager creates a registry holding the system gauges and the Go
// runtime and process collectors.
func NewMetricsManager() *MetricsManager {
	mm := &MetricsManager{
		registry: prometheus.NewRegistry(),
		systemCPUUsage: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "system_cpu_usage_percent",
				Help: "Current CPU usage percentage",
			},
			[]string{"core"},
		),
		systemMemoryUsage: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "system_memory_usage_bytes",
				Help: "Current memory usage in bytes",
			},
			[]string{"type"},
		),
	}

	mm.registry.MustRegister(
		mm.systemCPUUsage,
		mm.systemMemoryUsage,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return mm
}

// Registry returns the registry further collectors should register on.
func (mm *MetricsManager) Registry() *prometheus.Registry {
	return mm.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (mm *MetricsManager) Handler() http.Handler {
	return promhttp.HandlerFor(mm.registry, promhttp.HandlerOpts{Registry: mm.registry})
}

// StartSystemMetrics samples system gauges every interval until ctx is done.
// Calls after the first are no-ops.
func (mm *MetricsManager) StartSystemMetrics(ctx context.Context, interval time.Duration) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	if mm.started {
		return
	}
	mm.started = true

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			mm.collectSystemMetrics()
			select {
			case <-ctx.Done():
				log.Debug().Msg("System metrics collection stopped")
				return
			case <-ticker.C:
			}
		}
	}()
}

// collectSystemMetrics samples CPU and memory usage once.
func (mm *MetricsManager) collectSystemMetrics() {
	if cpuPercentages, err := cpu.Percent(0, true); err == nil {
		for i, percentage := range cpuPercentages {
			mm.systemCPUUsage.WithLabelValues(fmt.Sprintf("cpu%d", i)).Set(percentage)
		}
	} else {
		log.Debug().Err(err).Msg("Failed to read CPU usage")
	}

	if vmstat, err := mem.VirtualMemory(); err == nil {
		mm.systemMemoryUsage.WithLabelValues("total").Set(float64(vmstat.Total))
		mm.systemMemoryUsage.WithLabelValues("available").Set(float64(vmstat.Available))
		mm.systemMemoryUsage.WithLabelValues("used").Set(float64(vmstat.Used))
		mm.systemMemoryUsage.WithLabelValues("free").Set(float64(vmstat.Free))
	} else {
		log.Debug().Err(err).Msg("Failed to read memory usage")
	}
}
