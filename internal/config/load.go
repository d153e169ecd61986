// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"grimm.is/flowshell/internal/errors"
)

// Load reads and resolves the config file at path. An empty path yields
// Default().
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, errors.KindUnavailable, "failed to read config file %s", path)
	}
	return Parse(data, path)
}

// Parse decodes data and overlays it on Default(). Files ending in .json use
// the HCL JSON syntax; anything else is parsed as native HCL.
func Parse(data []byte, filename string) (Config, error) {
	f, err := Decode(data, filename)
	if err != nil {
		return Config{}, err
	}
	cfg, err := f.Resolve(Default())
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode parses data into the on-disk schema without applying defaults.
func Decode(data []byte, filename string) (*File, error) {
	parser := hclparse.NewParser()

	var (
		file  *hcl.File
		diags hcl.Diagnostics
	)
	if strings.EqualFold(filepath.Ext(filename), ".json") {
		file, diags = parser.ParseJSON(data, filename)
	} else {
		file, diags = parser.ParseHCL(data, filename)
	}
	if diags.HasErrors() {
		return nil, errors.Wrap(diags, errors.KindValidation, "failed to parse config")
	}

	var f File
	if diags := gohcl.DecodeBody(file.Body, EvalContext(), &f); diags.HasErrors() {
		return nil, errors.Wrap(diags, errors.KindValidation, "failed to decode config")
	}

	if f.SchemaVersion != "" && f.SchemaVersion != CurrentSchemaVersion {
		return nil, errors.Errorf(errors.KindValidation,
			"config schema version %s is not supported (want %s)", f.SchemaVersion, CurrentSchemaVersion)
	}
	return &f, nil
}

// EvalContext exposes the process environment to config expressions as env.
func EvalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": envObject(os.Environ()),
		},
	}
}

func envObject(environ []string) cty.Value {
	vars := make(map[string]cty.Value, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vars[k] = cty.StringVal(v)
	}
	if len(vars) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(vars)
}

func set[T any](src *T, dst *T) {
	if src != nil {
		*dst = *src
	}
}

type durationParser struct {
	err error
}

func (p *durationParser) parse(field string, raw *string, dst *time.Duration) {
	if raw == nil || p.err != nil {
		return
	}
	d, err := time.ParseDuration(*raw)
	if err != nil {
		p.err = errors.Attr(errors.Wrapf(err, errors.KindValidation, "invalid duration for %s", field), "field", field)
		return
	}
	*dst = d
}

// Resolve overlays the attributes present in f on base.
func (f *File) Resolve(base Config) (Config, error) {
	cfg := base
	var dp durationParser

	set(f.Mode, &cfg.Mode)
	set(f.Seed, &cfg.Seed)

	if b := f.API; b != nil {
		set(b.Listen, &cfg.API.Listen)
		dp.parse("api.stream_interval", b.StreamInterval, &cfg.API.StreamInterval)
		dp.parse("api.shutdown_timeout", b.ShutdownTimeout, &cfg.API.ShutdownTimeout)
	}

	if b := f.ControlLoop; b != nil {
		cl := &cfg.ControlLoop
		set(b.Enabled, &cfg.ControlLoopEnabled)
		dp.parse("control_loop.interval", b.Interval, &cl.Interval)
		set(b.HighWater, &cl.HighWater)
		set(b.LowWater, &cl.LowWater)
		set(b.Capacity, &cl.Capacity)
		set(b.GrowMin, &cl.GrowMin)
		set(b.GrowMax, &cl.GrowMax)
		set(b.ShrinkMin, &cl.ShrinkMin)
		set(b.ShrinkMax, &cl.ShrinkMax)
		set(b.ChurnProbability, &cl.ChurnProbability)
		set(b.ChurnMax, &cl.ChurnMax)
		set(b.LoadAnnotationMax, &cl.LoadAnnotationMax)
		if b.Priorities != nil {
			cl.Priorities = append([]int(nil), b.Priorities...)
		}
	}

	if b := f.Traffic; b != nil {
		dp.parse("traffic.report_interval", b.ReportInterval, &cfg.Traffic.Interval)
		set(b.AlertThreshold, &cfg.Traffic.AlertThreshold)
	}

	if b := f.Dispatch; b != nil {
		set(b.QueueSize, &cfg.Dispatch.QueueSize)
		set(b.Loopback, &cfg.Dispatch.Loopback)
		set(b.LoopbackBuffer, &cfg.Dispatch.LoopbackBuffer)
	}

	if b := f.Topology; b != nil {
		set(b.File, &cfg.Topology.File)
		dp.parse("topology.report_interval", b.ReportInterval, &cfg.Topology.ReportInterval)
	}

	if b := f.Logging; b != nil {
		set(b.Level, &cfg.Logging.Level)
		set(b.JSON, &cfg.Logging.JSON)
		if s := b.Syslog; s != nil {
			sc := &cfg.Logging.Syslog
			set(s.Enabled, &sc.Enabled)
			set(s.Host, &sc.Host)
			set(s.Port, &sc.Port)
			set(s.Protocol, &sc.Protocol)
			set(s.Tag, &sc.Tag)
			set(s.Facility, &sc.Facility)
		}
	}

	if dp.err != nil {
		return Config{}, dp.err
	}
	return cfg, nil
}
