// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Flow table operations.
const (
	OpInstall  = "install"
	OpWithdraw = "withdraw"
	OpAnnotate = "annotate"
)

// Control loop tick outcomes. A tick may both shrink and annotate; it is
// counted once under the mutation it performed.
const (
	TickGrow   = "grow"
	TickShrink = "shrink"
	TickIdle   = "idle"
)

// Dispatch results.
const (
	DispatchSent       = "sent"
	DispatchDropped    = "dropped"
	DispatchFailed     = "failed"
	DispatchNoDatapath = "no_datapath"
)

// Engine holds the Prometheus collectors for the flow control engine.
// All methods are safe on a nil receiver so components can run unmetered.
type Engine struct {
	registry *prometheus.Registry

	PacketsObserved prometheus.Counter
	PacketCount     prometheus.Gauge
	Bursts          prometheus.Counter
	TrafficAlerts   prometheus.Counter

	Flows   prometheus.Gauge
	FlowOps *prometheus.CounterVec

	Ticks      *prometheus.CounterVec
	TickPanics prometheus.Counter

	Dispatch  *prometheus.CounterVec
	Datapaths prometheus.Gauge
}

// NewEngine creates the collectors on a private registry.
func NewEngine() *Engine {
	e := &Engine{
		registry: prometheus.NewRegistry(),
		PacketsObserved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowshell_packets_observed_total",
			Help: "Packet-in notifications observed",
		}),
		PacketCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flowshell_packet_count",
			Help: "Current value of the traffic counter",
		}),
		Bursts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowshell_bursts_total",
			Help: "Burst injections applied to the traffic counter",
		}),
		TrafficAlerts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowshell_traffic_alerts_total",
			Help: "Times the traffic counter was seen above the alert threshold",
		}),
		Flows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flowshell_flows",
			Help: "Entries currently in the flow table",
		}),
		FlowOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowshell_flow_operations_total",
			Help: "Flow table mutations by operation",
		}, []string{"op"}),
		Ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowshell_control_ticks_total",
			Help: "Control loop ticks by outcome",
		}, []string{"outcome"}),
		TickPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowshell_control_tick_panics_total",
			Help: "Control loop ticks that panicked and were recovered",
		}),
		Dispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowshell_dispatch_total",
			Help: "Flow-mod instructions by dispatch result",
		}, []string{"command", "result"}),
		Datapaths: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flowshell_datapaths",
			Help: "Connected datapaths",
		}),
	}

	e.registry.MustRegister(
		e.PacketsObserved, e.PacketCount, e.Bursts, e.TrafficAlerts,
		e.Flows, e.FlowOps,
		e.Ticks, e.TickPanics,
		e.Dispatch, e.Datapaths,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return e
}

// Registry exposes the underlying registry.
func (e *Engine) Registry() *prometheus.Registry {
	if e == nil {
		return nil
	}
	return e.registry
}

// Handler serves the registry in Prometheus exposition format.
func (e *Engine) Handler() http.Handler {
	if e == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{Registry: e.registry})
}

func (e *Engine) ObservePackets(n int64) {
	if e == nil || n <= 0 {
		return
	}
	e.PacketsObserved.Add(float64(n))
}

func (e *Engine) SetPacketCount(v int64) {
	if e == nil {
		return
	}
	e.PacketCount.Set(float64(v))
}

func (e *Engine) ObserveBurst() {
	if e == nil {
		return
	}
	e.Bursts.Inc()
}

func (e *Engine) ObserveAlert() {
	if e == nil {
		return
	}
	e.TrafficAlerts.Inc()
}

func (e *Engine) ObserveFlowOp(op string, flows int) {
	if e == nil {
		return
	}
	e.FlowOps.WithLabelValues(op).Inc()
	e.Flows.Set(float64(flows))
}

func (e *Engine) ObserveTick(outcome string) {
	if e == nil {
		return
	}
	e.Ticks.WithLabelValues(outcome).Inc()
}

func (e *Engine) ObserveTickPanic() {
	if e == nil {
		return
	}
	e.TickPanics.Inc()
}

func (e *Engine) ObserveDispatch(command, result string) {
	if e == nil {
		return
	}
	e.Dispatch.WithLabelValues(command, result).Inc()
}

func (e *Engine) SetDatapaths(n int) {
	if e == nil {
		return
	}
	e.Datapaths.Set(float64(n))
}
