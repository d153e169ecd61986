// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package traffic

import (
	"sync"
	"time"

	"grimm.is/flowshell/internal/logging"
	"grimm.is/flowshell/internal/metrics"
)

// MonitorConfig configures periodic counter reporting.
type MonitorConfig struct {
	Interval       time.Duration `json:"interval"`
	AlertThreshold int64         `json:"alert_threshold"`
}

// DefaultMonitorConfig reports every 10s and alerts above 1000 packets.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval:       10 * time.Second,
		AlertThreshold: 1000,
	}
}

// Monitor logs the counter on an interval and raises an alert when it exceeds
// the threshold.
type Monitor struct {
	counter *Counter
	config  MonitorConfig
	logger  *logging.Logger
	metrics *metrics.Engine

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMonitor creates a monitor for c. logger and m may be nil.
func NewMonitor(c *Counter, cfg MonitorConfig, logger *logging.Logger, m *metrics.Engine) *Monitor {
	if logger == nil {
		logger = logging.WithComponent("traffic")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultMonitorConfig().Interval
	}
	return &Monitor{
		counter: c,
		config:  cfg,
		logger:  logger,
		metrics: m,
		stopCh:  make(chan struct{}),
	}
}

// Start launches the reporting loop.
func (m *Monitor) Start() {
	m.logger.Info("Traffic monitoring started",
		"interval", m.config.Interval,
		"alert_threshold", m.config.AlertThreshold)

	m.wg.Add(1)
	go m.run()
}

// Stop ends the loop and waits for it to exit. Safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

func (m *Monitor) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check()
		case <-m.stopCh:
			return
		}
	}
}

// Check logs the current count and reports whether it is above the alert
// threshold. A non-positive threshold disables alerting.
func (m *Monitor) Check() bool {
	count := m.counter.Read()
	m.logger.Info("Current packet count", "packet_count", count)

	if m.config.AlertThreshold > 0 && count > m.config.AlertThreshold {
		m.logger.Warn("Traffic alert: packet count exceeded threshold",
			"packet_count", count,
			"threshold", m.config.AlertThreshold)
		m.metrics.ObserveAlert()
		return true
	}
	return false
}
