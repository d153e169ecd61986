// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dispatch

import (
	"fmt"
	"sync"
	"sync/atomic"

	"grimm.is/flowshell/internal/flowtable"
	"grimm.is/flowshell/internal/logging"
	"grimm.is/flowshell/internal/metrics"
)

// Config for the dispatch adapter.
type Config struct {
	QueueSize int `json:"queue_size"`
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{QueueSize: 256}
}

// Stats are cumulative adapter counters.
type Stats struct {
	Queued        uint64 `json:"queued"`
	Sent          uint64 `json:"sent"`
	Dropped       uint64 `json:"dropped"`
	Failed        uint64 `json:"failed"`
	Undeliverable uint64 `json:"undeliverable"`
}

// Adapter implements flowtable.Dispatcher. Mutations are queued and a single
// sender goroutine fans each flow-mod out to every connected datapath. The
// table never waits on a datapath: a full queue drops the instruction.
type Adapter struct {
	registry *Registry
	config   Config
	logger   *logging.Logger
	metrics  *metrics.Engine

	queue  chan FlowMod
	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once

	queued        atomic.Uint64
	sent          atomic.Uint64
	dropped       atomic.Uint64
	failed        atomic.Uint64
	undeliverable atomic.Uint64
}

var _ flowtable.Dispatcher = (*Adapter)(nil)

// NewAdapter creates an adapter sending to the datapaths in reg.
func NewAdapter(reg *Registry, cfg Config, logger *logging.Logger, m *metrics.Engine) *Adapter {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if logger == nil {
		logger = logging.WithComponent("dispatch")
	}
	return &Adapter{
		registry: reg,
		config:   cfg,
		logger:   logger,
		metrics:  m,
		queue:    make(chan FlowMod, cfg.QueueSize),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the sender goroutine.
func (a *Adapter) Start() {
	go a.run()
	a.logger.Info("Dispatch adapter started", "queue_size", a.config.QueueSize)
}

// Stop drains what is already queued, then stops the sender.
func (a *Adapter) Stop() {
	a.once.Do(func() { close(a.stopCh) })
	<-a.doneCh
	a.logger.Info("Dispatch adapter stopped", "sent", a.sent.Load(), "dropped", a.dropped.Load())
}

// Add queues an add-rule instruction for e.
func (a *Adapter) Add(e flowtable.Entry) {
	a.enqueue(AddFlowMod(e))
}

// Delete queues a delete-rule instruction scoped to e's match.
func (a *Adapter) Delete(e flowtable.Entry) {
	a.enqueue(DeleteFlowMod(e))
}

func (a *Adapter) enqueue(fm FlowMod) {
	select {
	case a.queue <- fm:
		a.queued.Add(1)
	default:
		a.dropped.Add(1)
		a.metrics.ObserveDispatch(string(fm.Command), metrics.DispatchDropped)
		a.logger.Warn("Dispatch queue full, dropping flow-mod",
			"command", fm.Command,
			"flow_id", fm.FlowID)
	}
}

func (a *Adapter) run() {
	defer close(a.doneCh)
	for {
		select {
		case fm := <-a.queue:
			a.deliver(fm)
		case <-a.stopCh:
			for {
				select {
				case fm := <-a.queue:
					a.deliver(fm)
				default:
					return
				}
			}
		}
	}
}

func (a *Adapter) deliver(fm FlowMod) {
	dps := a.registry.Snapshot()
	if len(dps) == 0 {
		a.undeliverable.Add(1)
		a.metrics.ObserveDispatch(string(fm.Command), metrics.DispatchNoDatapath)
		a.logger.Debug("No datapath connected, flow-mod kept in table only",
			"command", fm.Command,
			"flow_id", fm.FlowID)
		return
	}

	for _, dp := range dps {
		msg := fm
		msg.DatapathID = dp.ID()
		if err := a.send(dp, msg); err != nil {
			a.failed.Add(1)
			a.metrics.ObserveDispatch(string(fm.Command), metrics.DispatchFailed)
			a.logger.Warn("Failed to send flow-mod",
				"datapath", dp.ID(),
				"command", fm.Command,
				"flow_id", fm.FlowID,
				"error", err)
			continue
		}
		a.sent.Add(1)
		a.metrics.ObserveDispatch(string(fm.Command), metrics.DispatchSent)
	}
}

// send shields the sender goroutine from a datapath that panics, e.g. one
// torn down by a disconnect racing this call.
func (a *Adapter) send(dp Datapath, fm FlowMod) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("datapath send panicked: %v", r)
		}
	}()
	return dp.Send(fm)
}

// Stats returns a snapshot of the adapter counters.
func (a *Adapter) Stats() Stats {
	return Stats{
		Queued:        a.queued.Load(),
		Sent:          a.sent.Load(),
		Dropped:       a.dropped.Load(),
		Failed:        a.failed.Load(),
		Undeliverable: a.undeliverable.Load(),
	}
}
