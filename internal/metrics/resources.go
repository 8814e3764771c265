package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// ResourceSample holds one CPU and memory reading for a launched service.
type ResourceSample struct {
	PID        int32     `json:"pid"`
	Name       string    `json:"name"`
	CPUPercent float64   `json:"cpu_percent"`
	MemoryMB   float64   `json:"memory_mb"`
	MemoryRSS  uint64    `json:"memory_rss"`
	MemoryVMS  uint64    `json:"memory_vms"`
	MemorySwap uint64    `json:"memory_swap,omitempty"`
	NumThreads int32     `json:"num_threads"`
	NumFDs     int32     `json:"num_fds,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ResourceConfig controls periodic resource sampling of launched services.
type ResourceConfig struct {
	Enabled  bool          `toml:"enabled" mapstructure:"enabled"`
	Interval time.Duration `toml:"interval" mapstructure:"interval"`
	History  int           `toml:"history" mapstructure:"history"`
}

// PIDFunc reports the currently live services as a name to pid map.
type PIDFunc func() map[string]int32

// sampleRing is a fixed-size circular buffer of samples, oldest first.
type sampleRing struct {
	samples []ResourceSample
	start   int
	count   int
}

func (r *sampleRing) push(s ResourceSample) {
	if r.count < len(r.samples) {
		r.samples[(r.start+r.count)%len(r.samples)] = s
		r.count++
		return
	}
	r.samples[r.start] = s
	r.start = (r.start + 1) % len(r.samples)
}

func (r *sampleRing) latest() (ResourceSample, bool) {
	if r.count == 0 {
		return ResourceSample{}, false
	}
	return r.samples[(r.start+r.count-1)%len(r.samples)], true
}

func (r *sampleRing) ordered() []ResourceSample {
	out := make([]ResourceSample, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.samples[(r.start+i)%len(r.samples)])
	}
	return out
}

// ResourceCollector periodically samples CPU, memory, thread and fd usage
// of launched services through the process table and exposes the readings
// both as prometheus gauges and as an in-memory history per service.
type ResourceCollector struct {
	enabled    bool
	interval   time.Duration
	maxHistory int
	pids       PIDFunc
	logger     *slog.Logger

	mu      sync.RWMutex
	history map[string]*sampleRing

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	cpuPercent *prometheus.GaugeVec
	memoryMB   *prometheus.GaugeVec
	numThreads *prometheus.GaugeVec
	numFDs     *prometheus.GaugeVec
}

// NewResourceCollector builds a collector that samples the services reported
// by pids. Interval defaults to 5s and history to 100 samples per service.
func NewResourceCollector(cfg ResourceConfig, pids PIDFunc, logger *slog.Logger) *ResourceCollector {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	maxHistory := cfg.History
	if maxHistory <= 0 {
		maxHistory = 100
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ResourceCollector{
		enabled:    cfg.Enabled,
		interval:   interval,
		maxHistory: maxHistory,
		pids:       pids,
		logger:     logger,
		history:    make(map[string]*sampleRing),
		stopCh:     make(chan struct{}),
		cpuPercent: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "observr",
				Subsystem: "service",
				Name:      "cpu_percent",
				Help:      "CPU usage percentage of launched services.",
			}, []string{"name"},
		),
		memoryMB: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "observr",
				Subsystem: "service",
				Name:      "memory_mb",
				Help:      "Resident memory in MB of launched services.",
			}, []string{"name"},
		),
		numThreads: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "observr",
				Subsystem: "service",
				Name:      "num_threads",
				Help:      "Thread count of launched services.",
			}, []string{"name"},
		),
		numFDs: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "observr",
				Subsystem: "service",
				Name:      "num_fds",
				Help:      "Open file descriptor count of launched services.",
			}, []string{"name"},
		),
	}
}

// Register registers the resource gauges with r. Safe to call together with
// Register for the package collectors; already registered gauges are kept.
func (c *ResourceCollector) Register(r prometheus.Registerer) error {
	if !c.enabled {
		return nil
	}
	for _, collector := range []prometheus.Collector{c.cpuPercent, c.memoryMB, c.numThreads, c.numFDs} {
		if err := r.Register(collector); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// Start launches the sampling loop. It returns immediately; sampling stops
// when ctx is cancelled or Stop is called.
func (c *ResourceCollector) Start(ctx context.Context) error {
	if !c.enabled {
		return nil
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stopCh:
				return
			case <-ticker.C:
				c.collect()
			}
		}
	}()

	return nil
}

// Stop halts the sampling loop and waits for it to exit. Idempotent.
func (c *ResourceCollector) Stop() {
	if !c.enabled {
		return
	}
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

// Enabled reports whether the collector samples anything at all.
func (c *ResourceCollector) Enabled() bool { return c.enabled }

func (c *ResourceCollector) collect() {
	now := time.Now()
	active := c.pids()

	for name, pid := range active {
		if pid <= 0 {
			continue
		}
		s, err := c.sample(name, pid, now)
		if err != nil {
			c.logger.Debug("failed to sample service", "service", name, "pid", pid, "error", err)
			continue
		}

		c.cpuPercent.WithLabelValues(name).Set(s.CPUPercent)
		c.memoryMB.WithLabelValues(name).Set(s.MemoryMB)
		c.numThreads.WithLabelValues(name).Set(float64(s.NumThreads))
		if s.NumFDs > 0 {
			c.numFDs.WithLabelValues(name).Set(float64(s.NumFDs))
		}

		c.record(name, s)
	}

	c.prune(active)
}

func (c *ResourceCollector) sample(name string, pid int32, ts time.Time) (ResourceSample, error) {
	proc, err := gopsproc.NewProcess(pid)
	if err != nil {
		return ResourceSample{}, fmt.Errorf("failed to open process %d: %w", pid, err)
	}

	cpu, err := proc.CPUPercent()
	if err != nil {
		cpu = 0
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		return ResourceSample{}, fmt.Errorf("failed to read memory info: %w", err)
	}
	threads, err := proc.NumThreads()
	if err != nil {
		threads = 0
	}

	s := ResourceSample{
		PID:        pid,
		Name:       name,
		CPUPercent: cpu,
		MemoryMB:   float64(mem.RSS) / 1024 / 1024,
		MemoryRSS:  mem.RSS,
		MemoryVMS:  mem.VMS,
		NumThreads: threads,
		Timestamp:  ts,
	}
	if mem.Swap > 0 {
		s.MemorySwap = mem.Swap
	}
	if fds, err := proc.NumFDs(); err == nil {
		s.NumFDs = fds
	}
	return s, nil
}

func (c *ResourceCollector) record(name string, s ResourceSample) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ring, ok := c.history[name]
	if !ok {
		ring = &sampleRing{samples: make([]ResourceSample, c.maxHistory)}
		c.history[name] = ring
	}
	ring.push(s)
}

// prune drops history and gauge series for services that are gone.
func (c *ResourceCollector) prune(active map[string]int32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name := range c.history {
		if _, ok := active[name]; ok {
			continue
		}
		delete(c.history, name)
		c.cpuPercent.DeleteLabelValues(name)
		c.memoryMB.DeleteLabelValues(name)
		c.numThreads.DeleteLabelValues(name)
		c.numFDs.DeleteLabelValues(name)
	}
}

// Latest returns the most recent sample for a service.
func (c *ResourceCollector) Latest(name string) (ResourceSample, bool) {
	if !c.enabled {
		return ResourceSample{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	ring, ok := c.history[name]
	if !ok {
		return ResourceSample{}, false
	}
	return ring.latest()
}

// History returns the recorded samples for a service, oldest first.
func (c *ResourceCollector) History(name string) ([]ResourceSample, bool) {
	if !c.enabled {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	ring, ok := c.history[name]
	if !ok || ring.count == 0 {
		return nil, false
	}
	return ring.ordered(), true
}

// LatestAll returns the most recent sample for every tracked service.
func (c *ResourceCollector) LatestAll() map[string]ResourceSample {
	out := make(map[string]ResourceSample)
	if !c.enabled {
		return out
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	for name, ring := range c.history {
		if s, ok := ring.latest(); ok {
			out[name] = s
		}
	}
	return out
}
