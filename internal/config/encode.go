// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// Encode renders c as native HCL that Parse reads back to the same Config.
func Encode(c Config) []byte {
	f := hclwrite.NewEmptyFile()
	root := f.Body()

	root.SetAttributeValue("schema_version", cty.StringVal(CurrentSchemaVersion))
	root.SetAttributeValue("mode", cty.StringVal(c.Mode))
	if c.Seed != 0 {
		root.SetAttributeValue("seed", cty.NumberUIntVal(c.Seed))
	}

	root.AppendNewline()
	api := root.AppendNewBlock("api", nil).Body()
	api.SetAttributeValue("listen", cty.StringVal(c.API.Listen))
	api.SetAttributeValue("stream_interval", cty.StringVal(c.API.StreamInterval.String()))
	api.SetAttributeValue("shutdown_timeout", cty.StringVal(c.API.ShutdownTimeout.String()))

	root.AppendNewline()
	cl := c.ControlLoop
	loop := root.AppendNewBlock("control_loop", nil).Body()
	loop.SetAttributeValue("enabled", cty.BoolVal(c.ControlLoopEnabled))
	loop.SetAttributeValue("interval", cty.StringVal(cl.Interval.String()))
	loop.SetAttributeValue("high_water", cty.NumberIntVal(cl.HighWater))
	loop.SetAttributeValue("low_water", cty.NumberIntVal(cl.LowWater))
	loop.SetAttributeValue("capacity", cty.NumberIntVal(int64(cl.Capacity)))
	loop.SetAttributeValue("grow_min", cty.NumberIntVal(int64(cl.GrowMin)))
	loop.SetAttributeValue("grow_max", cty.NumberIntVal(int64(cl.GrowMax)))
	loop.SetAttributeValue("shrink_min", cty.NumberIntVal(int64(cl.ShrinkMin)))
	loop.SetAttributeValue("shrink_max", cty.NumberIntVal(int64(cl.ShrinkMax)))
	loop.SetAttributeValue("churn_probability", cty.NumberFloatVal(cl.ChurnProbability))
	loop.SetAttributeValue("churn_max", cty.NumberIntVal(int64(cl.ChurnMax)))
	loop.SetAttributeValue("load_annotation_max", cty.NumberIntVal(int64(cl.LoadAnnotationMax)))
	loop.SetAttributeValue("priorities", intList(cl.Priorities))

	root.AppendNewline()
	tr := root.AppendNewBlock("traffic", nil).Body()
	tr.SetAttributeValue("report_interval", cty.StringVal(c.Traffic.Interval.String()))
	tr.SetAttributeValue("alert_threshold", cty.NumberIntVal(c.Traffic.AlertThreshold))

	root.AppendNewline()
	dsp := root.AppendNewBlock("dispatch", nil).Body()
	dsp.SetAttributeValue("queue_size", cty.NumberIntVal(int64(c.Dispatch.QueueSize)))
	dsp.SetAttributeValue("loopback", cty.NumberIntVal(int64(c.Dispatch.Loopback)))
	dsp.SetAttributeValue("loopback_buffer", cty.NumberIntVal(int64(c.Dispatch.LoopbackBuffer)))

	root.AppendNewline()
	topo := root.AppendNewBlock("topology", nil).Body()
	topo.SetAttributeValue("file", cty.StringVal(c.Topology.File))
	topo.SetAttributeValue("report_interval", cty.StringVal(c.Topology.ReportInterval.String()))

	root.AppendNewline()
	lg := root.AppendNewBlock("logging", nil).Body()
	lg.SetAttributeValue("level", cty.StringVal(c.Logging.Level))
	lg.SetAttributeValue("json", cty.BoolVal(c.Logging.JSON))
	s := c.Logging.Syslog
	sl := lg.AppendNewBlock("syslog", nil).Body()
	sl.SetAttributeValue("enabled", cty.BoolVal(s.Enabled))
	sl.SetAttributeValue("host", cty.StringVal(s.Host))
	sl.SetAttributeValue("port", cty.NumberIntVal(int64(s.Port)))
	sl.SetAttributeValue("protocol", cty.StringVal(s.Protocol))
	sl.SetAttributeValue("tag", cty.StringVal(s.Tag))
	sl.SetAttributeValue("facility", cty.NumberIntVal(int64(s.Facility)))

	return f.Bytes()
}

func intList(vals []int) cty.Value {
	if len(vals) == 0 {
		return cty.ListValEmpty(cty.Number)
	}
	out := make([]cty.Value, len(vals))
	for i, v := range vals {
		out[i] = cty.NumberIntVal(int64(v))
	}
	return cty.ListVal(out)
}
