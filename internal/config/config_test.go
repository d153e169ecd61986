// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/flowshell/internal/errors"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ModeSimulated, cfg.Mode)
	assert.Equal(t, 6*time.Second, cfg.ControlLoop.Interval)
	assert.Equal(t, int64(200), cfg.ControlLoop.HighWater)
	assert.Equal(t, int64(150), cfg.ControlLoop.LowWater)
	assert.Equal(t, 20, cfg.ControlLoop.Capacity)
	assert.Equal(t, []int{100, 200, 300}, cfg.ControlLoop.Priorities)
	assert.Equal(t, int64(1000), cfg.Traffic.AlertThreshold)
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_HCLOverlay(t *testing.T) {
	src := `
mode = "bound"
seed = 42

api {
  listen = ":9090"
}

control_loop {
  interval          = "500ms"
  high_water        = 400
  churn_probability = 0
  priorities        = [10, 20]
}

logging {
  level = "debug"
}
`
	cfg, err := Parse([]byte(src), "flowshell.hcl")
	require.NoError(t, err)

	want := Default()
	want.Mode = ModeBound
	want.Seed = 42
	want.API.Listen = ":9090"
	want.ControlLoop.Interval = 500 * time.Millisecond
	want.ControlLoop.HighWater = 400
	want.ControlLoop.ChurnProbability = 0
	want.ControlLoop.Priorities = []int{10, 20}
	want.Logging.Level = "debug"

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_JSON(t *testing.T) {
	src := `{
  "control_loop": {"capacity": 5, "enabled": false},
  "dispatch": {"queue_size": 16, "loopback": 0},
  "topology": {"file": "topo.yaml"}
}`
	cfg, err := Parse([]byte(src), "flowshell.json")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.ControlLoop.Capacity)
	assert.False(t, cfg.ControlLoopEnabled)
	assert.Equal(t, 16, cfg.Dispatch.QueueSize)
	assert.Equal(t, 0, cfg.Dispatch.Loopback)
	assert.Equal(t, "topo.yaml", cfg.Topology.File)
}

func TestParse_EnvReference(t *testing.T) {
	t.Setenv("FLOWSHELL_TEST_LISTEN", "127.0.0.1:7000")
	t.Setenv("FLOWSHELL_TEST_HIGH", "250")

	src := `
api {
  listen = env.FLOWSHELL_TEST_LISTEN
}
control_loop {
  high_water = env.FLOWSHELL_TEST_HIGH
}
`
	cfg, err := Parse([]byte(src), "env.hcl")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.API.Listen)
	assert.Equal(t, int64(250), cfg.ControlLoop.HighWater)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"syntax", `api {`, ""},
		{"unknown attribute", `bogus = 1`, ""},
		{"schema version", `schema_version = "9"`, ""},
		{"bad duration", `control_loop { interval = "soon" }`, "control_loop.interval"},
		{"bad mode", `mode = "hybrid"`, "mode"},
		{"inverted marks", `control_loop {
  low_water  = 300
  high_water = 200
}`, "control_loop"},
		{"bad level", `logging { level = "loud" }`, "logging.level"},
		{"syslog without host", `logging {
  syslog {
    enabled = true
  }
}`, "logging.syslog.host"},
		{"zero queue", `dispatch { queue_size = 0 }`, "dispatch.queue_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "bad.hcl")
			require.Error(t, err)
			assert.Equal(t, errors.KindValidation, errors.GetKind(err))
			if tt.field != "" {
				assert.Equal(t, tt.field, errors.GetAttributes(err)["field"])
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.hcl"))
	require.Error(t, err)
	assert.Equal(t, errors.KindUnavailable, errors.GetKind(err))
}

func TestEncode_RoundTrip(t *testing.T) {
	orig := Default()
	orig.Mode = ModeBound
	orig.Seed = 7
	orig.ControlLoop.ChurnProbability = 0.25
	orig.Logging.JSON = true

	dir := t.TempDir()
	path := filepath.Join(dir, "flowshell.hcl")
	require.NoError(t, os.WriteFile(path, Encode(orig), 0o644))

	got, err := Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff(orig, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEnvObject(t *testing.T) {
	v := envObject([]string{"A=1", "B=x=y", "=C:", "broken"})
	assert.Equal(t, "1", v.GetAttr("A").AsString())
	assert.Equal(t, "x=y", v.GetAttr("B").AsString())
	assert.False(t, v.Type().HasAttribute(""))

	assert.True(t, envObject(nil).RawEquals(envObject([]string{})))
}
