// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"log/slog"

	"grimm.is/flowshell/internal/errors"
)

func invalid(field, format string, args ...any) error {
	return errors.Attr(errors.Errorf(errors.KindValidation, format, args...), "field", field)
}

// Validate checks the resolved configuration.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeSimulated, ModeBound:
	default:
		return invalid("mode", "mode must be %q or %q, got %q", ModeSimulated, ModeBound, c.Mode)
	}

	if c.API.Listen == "" {
		return invalid("api.listen", "api listen address is required")
	}
	if c.API.StreamInterval <= 0 {
		return invalid("api.stream_interval", "api stream interval must be positive")
	}
	if c.API.ShutdownTimeout <= 0 {
		return invalid("api.shutdown_timeout", "api shutdown timeout must be positive")
	}

	if err := c.ControlLoop.Validate(); err != nil {
		return errors.Attr(err, "field", "control_loop")
	}

	if c.Traffic.Interval <= 0 {
		return invalid("traffic.report_interval", "traffic report interval must be positive")
	}
	if c.Traffic.AlertThreshold < 0 {
		return invalid("traffic.alert_threshold", "traffic alert threshold must not be negative")
	}

	if c.Dispatch.QueueSize <= 0 {
		return invalid("dispatch.queue_size", "dispatch queue size must be positive")
	}
	if c.Dispatch.Loopback < 0 || c.Dispatch.LoopbackBuffer < 0 {
		return invalid("dispatch.loopback", "dispatch loopback settings must not be negative")
	}

	if c.Topology.ReportInterval < 0 {
		return invalid("topology.report_interval", "topology report interval must not be negative")
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return invalid("logging.level", "unknown log level %q", c.Logging.Level)
	}
	if s := c.Logging.Syslog; s.Enabled {
		if s.Host == "" {
			return invalid("logging.syslog.host", "syslog host is required when syslog is enabled")
		}
		if s.Protocol != "udp" && s.Protocol != "tcp" {
			return invalid("logging.syslog.protocol", "syslog protocol must be udp or tcp, got %q", s.Protocol)
		}
	}
	return nil
}
