package metrics

import (
	"time"
)

// RegistrySource is the subset of *registry.Registry the collector polls.
// It is declared here as an interface, so this package does not import
// pkg/registry.
type RegistrySource interface {
	NodeStatusCounts() map[string]int
	PoolStateCounts() map[string]int
	ReplicaStateCounts() map[string]int
	NexusStateCounts() map[string]int
	VolumeStateCounts() map[string]int
	StoreOnline() bool
}

// Collector periodically samples the registry's in-memory resource maps
// into the gauge metrics above, so Prometheus doesn't have to scrape a
// computed value on every request.
type Collector struct {
	source RegistrySource
	stopCh chan struct{}
}

func NewCollector(source RegistrySource) *Collector {
	return &Collector{source: source, stopCh: make(chan struct{})}
}

// Start begins collecting metrics every 15 seconds.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	for status, count := range c.source.NodeStatusCounts() {
		NodesTotal.WithLabelValues(status).Set(float64(count))
	}
	for state, count := range c.source.PoolStateCounts() {
		PoolsTotal.WithLabelValues(state).Set(float64(count))
	}
	for state, count := range c.source.ReplicaStateCounts() {
		ReplicasTotal.WithLabelValues(state).Set(float64(count))
	}
	for state, count := range c.source.NexusStateCounts() {
		NexusesTotal.WithLabelValues(state).Set(float64(count))
	}
	for state, count := range c.source.VolumeStateCounts() {
		VolumesTotal.WithLabelValues(state).Set(float64(count))
	}

	if c.source.StoreOnline() {
		StoreOnline.Set(1)
	} else {
		StoreOnline.Set(0)
	}
}
