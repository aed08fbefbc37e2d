// Package health ages agent health scores based on inactivity and raises
// warning signals. Advisory telemetry only: the scheduler never consults
// health for admission decisions, and warnings never change agent status.
package health

import (
	"context"
	"time"

	"github.com/lessonsmith/lessonsmith/internal/agent"
	"github.com/lessonsmith/lessonsmith/internal/events"
)

const (
	// DefaultInterval is how often agents are rescored.
	DefaultInterval = 60 * time.Second
	// DefaultThreshold is the score below which a warning fires.
	DefaultThreshold = 50
)

// Monitor periodically recomputes each agent's health score as
// max(0, 100 - minutes since last activity) and publishes a warning event
// once per tick for every agent below the threshold.
type Monitor struct {
	registry  *agent.Registry
	bus       *events.Bus
	interval  time.Duration
	threshold int
	now       func() time.Time
}

// NewMonitor creates a monitor. interval <= 0 selects DefaultInterval;
// threshold <= 0 selects DefaultThreshold.
func NewMonitor(registry *agent.Registry, bus *events.Bus, interval time.Duration, threshold int) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Monitor{
		registry:  registry,
		bus:       bus,
		interval:  interval,
		threshold: threshold,
		now:       time.Now,
	}
}

// Run ticks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Tick()
		}
	}
}

// Tick rescores every agent once. Exported so tests and callers can drive
// the monitor with a simulated clock.
func (m *Monitor) Tick() {
	now := m.now()
	for _, a := range m.registry.All() {
		idleMinutes := int(now.Sub(a.LastActivity).Minutes())
		score := 100 - idleMinutes
		if score < 0 {
			score = 0
		}

		m.registry.SetHealth(a.ID, score)

		if score < m.threshold {
			m.bus.Publish(events.TopicAgent, events.HealthWarningEvent{
				AgentID:   a.ID,
				Score:     score,
				Timestamp: now,
			})
		}
	}
}

// SetClock overrides the monitor's time source. Test hook.
func (m *Monitor) SetClock(now func() time.Time) {
	m.now = now
}
