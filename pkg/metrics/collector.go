package metrics

import (
	"time"

	"github.com/glestaris/ice/pkg/types"
)

// Source is the read side of the registry store the collector samples
type Source interface {
	ListSessions() ([]*types.Session, error)
	ListInstances() ([]*types.Instance, error)
}

// Collector periodically refreshes the registry gauges from storage
type Collector struct {
	source   Source
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(source Source) *Collector {
	return &Collector{
		source:   source,
		interval: 15 * time.Second,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
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

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectSessionMetrics()
	c.collectInstanceMetrics()
}

func (c *Collector) collectSessionMetrics() {
	sessions, err := c.source.ListSessions()
	if err != nil {
		UpdateComponent(ComponentStorage, false, err.Error())
		return
	}
	UpdateComponent(ComponentStorage, true, "")

	SessionsTotal.Set(float64(len(sessions)))
}

func (c *Collector) collectInstanceMetrics() {
	instances, err := c.source.ListInstances()
	if err != nil {
		return
	}

	counts := map[types.InstanceStatus]int{
		types.InstanceStatusUnknown:     0,
		types.InstanceStatusRunning:     0,
		types.InstanceStatusUnreachable: 0,
		types.InstanceStatusBanned:      0,
	}
	for _, instance := range instances {
		status := instance.Status
		if status == "" {
			status = types.InstanceStatusUnknown
		}
		counts[status]++
	}

	for status, count := range counts {
		InstancesTotal.WithLabelValues(string(status)).Set(float64(count))
	}
}
