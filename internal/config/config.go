// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config loads the flowshell configuration from HCL or JSON.
//
// A file only needs to name what it changes: every attribute is optional and
// falls back to Default(). Attributes may reference the process environment
// through the env object, e.g. listen = env.FLOWSHELL_LISTEN.
package config

import (
	"time"

	"grimm.is/flowshell/internal/controlloop"
	"grimm.is/flowshell/internal/dispatch"
	"grimm.is/flowshell/internal/logging"
	"grimm.is/flowshell/internal/traffic"
)

// CurrentSchemaVersion is written by Encode and accepted by Load.
const CurrentSchemaVersion = "1"

// Engine modes.
const (
	// ModeSimulated mutates the flow table without mirroring it to datapaths.
	ModeSimulated = "simulated"
	// ModeBound mirrors every table mutation through the dispatch adapter.
	ModeBound = "bound"
)

// File is the on-disk schema. Pointer fields distinguish "absent" from an
// explicit zero.
type File struct {
	SchemaVersion string  `hcl:"schema_version,optional" json:"schema_version,omitempty"`
	Mode          *string `hcl:"mode,optional" json:"mode,omitempty"`
	Seed          *uint64 `hcl:"seed,optional" json:"seed,omitempty"`

	API         *APIBlock         `hcl:"api,block" json:"api,omitempty"`
	ControlLoop *ControlLoopBlock `hcl:"control_loop,block" json:"control_loop,omitempty"`
	Traffic     *TrafficBlock     `hcl:"traffic,block" json:"traffic,omitempty"`
	Dispatch    *DispatchBlock    `hcl:"dispatch,block" json:"dispatch,omitempty"`
	Topology    *TopologyBlock    `hcl:"topology,block" json:"topology,omitempty"`
	Logging     *LoggingBlock     `hcl:"logging,block" json:"logging,omitempty"`
}

// APIBlock configures the admin HTTP surface.
type APIBlock struct {
	Listen          *string `hcl:"listen,optional" json:"listen,omitempty"`
	StreamInterval  *string `hcl:"stream_interval,optional" json:"stream_interval,omitempty"`
	ShutdownTimeout *string `hcl:"shutdown_timeout,optional" json:"shutdown_timeout,omitempty"`
}

// ControlLoopBlock configures the load policy.
type ControlLoopBlock struct {
	Enabled           *bool    `hcl:"enabled,optional" json:"enabled,omitempty"`
	Interval          *string  `hcl:"interval,optional" json:"interval,omitempty"`
	HighWater         *int64   `hcl:"high_water,optional" json:"high_water,omitempty"`
	LowWater          *int64   `hcl:"low_water,optional" json:"low_water,omitempty"`
	Capacity          *int     `hcl:"capacity,optional" json:"capacity,omitempty"`
	GrowMin           *int     `hcl:"grow_min,optional" json:"grow_min,omitempty"`
	GrowMax           *int     `hcl:"grow_max,optional" json:"grow_max,omitempty"`
	ShrinkMin         *int     `hcl:"shrink_min,optional" json:"shrink_min,omitempty"`
	ShrinkMax         *int     `hcl:"shrink_max,optional" json:"shrink_max,omitempty"`
	ChurnProbability  *float64 `hcl:"churn_probability,optional" json:"churn_probability,omitempty"`
	ChurnMax          *int     `hcl:"churn_max,optional" json:"churn_max,omitempty"`
	LoadAnnotationMax *int     `hcl:"load_annotation_max,optional" json:"load_annotation_max,omitempty"`
	Priorities        []int    `hcl:"priorities,optional" json:"priorities,omitempty"`
}

// TrafficBlock configures counter reporting.
type TrafficBlock struct {
	ReportInterval *string `hcl:"report_interval,optional" json:"report_interval,omitempty"`
	AlertThreshold *int64  `hcl:"alert_threshold,optional" json:"alert_threshold,omitempty"`
}

// DispatchBlock configures the dispatch adapter.
type DispatchBlock struct {
	QueueSize *int `hcl:"queue_size,optional" json:"queue_size,omitempty"`
	// Loopback is the number of in-process datapaths connected at startup.
	Loopback       *int `hcl:"loopback,optional" json:"loopback,omitempty"`
	LoopbackBuffer *int `hcl:"loopback_buffer,optional" json:"loopback_buffer,omitempty"`
}

// TopologyBlock configures the topology collaborator.
type TopologyBlock struct {
	File           *string `hcl:"file,optional" json:"file,omitempty"`
	ReportInterval *string `hcl:"report_interval,optional" json:"report_interval,omitempty"`
}

// LoggingBlock configures the process logger.
type LoggingBlock struct {
	Level  *string      `hcl:"level,optional" json:"level,omitempty"`
	JSON   *bool        `hcl:"json,optional" json:"json,omitempty"`
	Syslog *SyslogBlock `hcl:"syslog,block" json:"syslog,omitempty"`
}

// SyslogBlock configures remote syslog forwarding.
type SyslogBlock struct {
	Enabled  *bool   `hcl:"enabled,optional" json:"enabled,omitempty"`
	Host     *string `hcl:"host,optional" json:"host,omitempty"`
	Port     *int    `hcl:"port,optional" json:"port,omitempty"`
	Protocol *string `hcl:"protocol,optional" json:"protocol,omitempty"`
	Tag      *string `hcl:"tag,optional" json:"tag,omitempty"`
	Facility *int    `hcl:"facility,optional" json:"facility,omitempty"`
}

// Config is the resolved configuration handed to the components.
type Config struct {
	Mode string `json:"mode"`
	// Seed drives the control loop's random source. Zero picks a random seed.
	Seed uint64 `json:"seed"`

	API                APIConfig             `json:"api"`
	ControlLoopEnabled bool                  `json:"control_loop_enabled"`
	ControlLoop        controlloop.Config    `json:"control_loop"`
	Traffic            traffic.MonitorConfig `json:"traffic"`
	Dispatch           DispatchConfig        `json:"dispatch"`
	Topology           TopologyConfig        `json:"topology"`
	Logging            LoggingConfig         `json:"logging"`
}

// APIConfig is the resolved api block.
type APIConfig struct {
	Listen          string        `json:"listen"`
	StreamInterval  time.Duration `json:"stream_interval"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// DispatchConfig is the resolved dispatch block.
type DispatchConfig struct {
	dispatch.Config
	Loopback       int `json:"loopback"`
	LoopbackBuffer int `json:"loopback_buffer"`
}

// TopologyConfig is the resolved topology block.
type TopologyConfig struct {
	File           string        `json:"file"`
	ReportInterval time.Duration `json:"report_interval"`
}

// LoggingConfig is the resolved logging block.
type LoggingConfig struct {
	Level  string               `json:"level"`
	JSON   bool                 `json:"json"`
	Syslog logging.SyslogConfig `json:"syslog"`
}

// Default returns the reference configuration: simulated mode on :8080 with
// the reference load policy.
func Default() Config {
	return Config{
		Mode: ModeSimulated,
		API: APIConfig{
			Listen:          ":8080",
			StreamInterval:  2 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		ControlLoopEnabled: true,
		ControlLoop:        controlloop.DefaultConfig(),
		Traffic:            traffic.DefaultMonitorConfig(),
		Dispatch: DispatchConfig{
			Config:         dispatch.DefaultConfig(),
			Loopback:       1,
			LoopbackBuffer: 64,
		},
		Topology: TopologyConfig{
			File:           "network/topology/network_topology.json",
			ReportInterval: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Syslog: logging.DefaultSyslogConfig(),
		},
	}
}

// LoggerConfig converts the logging block for logging.New.
func (c Config) LoggerConfig() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = logging.ParseLevel(c.Logging.Level)
	lc.JSON = c.Logging.JSON
	lc.Syslog = c.Logging.Syslog
	return lc
}
