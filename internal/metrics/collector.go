package metrics

import (
	"time"

	"kairos/internal/logging"
)

// StatsProvider reports database statistics for the collector.
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current statistics
type Stats struct {
	MainBytes       int64
	WALBytes        int64
	SHMBytes        int64
	OpenConnections int
}

// Collector periodically collects and updates metrics
type Collector struct {
	registry      *Registry
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	doneChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(registry *Registry, provider StatsProvider, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Collector{
		registry:      registry,
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
		doneChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection and waits for the loop to exit
func (c *Collector) Stop() {
	close(c.stopChan)
	<-c.doneChan
}

func (c *Collector) collectLoop() {
	defer close(c.doneChan)

	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil || c.registry == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	c.registry.DBSizeBytes.WithLabelValues("main").Set(float64(stats.MainBytes))
	c.registry.DBSizeBytes.WithLabelValues("wal").Set(float64(stats.WALBytes))
	c.registry.DBSizeBytes.WithLabelValues("shm").Set(float64(stats.SHMBytes))
	c.registry.DBConnectionsOpen.Set(float64(stats.OpenConnections))

	logging.Debug("Metrics collected: db=%d bytes, wal=%d bytes, connections=%d",
		stats.MainBytes, stats.WALBytes, stats.OpenConnections)
}
