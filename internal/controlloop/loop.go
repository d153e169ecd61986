// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package controlloop grows and shrinks the flow table in reaction to the
// traffic counter.
//
// Each tick reads the counter once. Above the high-water mark the table grows
// by a few synthetic flows (never past Capacity); below the low-water mark a
// few random flows are withdrawn; in between nothing is installed or removed.
// Independently, a random subset of surviving flows is annotated with a fresh
// load sample. Every random pick re-reads the table's ids first, so an
// earlier step in the same tick can never leave a stale id to sample.
package controlloop

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"grimm.is/flowshell/internal/clock"
	"grimm.is/flowshell/internal/errors"
	"grimm.is/flowshell/internal/flowtable"
	"grimm.is/flowshell/internal/logging"
	"grimm.is/flowshell/internal/metrics"
	"grimm.is/flowshell/internal/traffic"
)

// MetadataLastSeenPackets is the metadata key written by the churn pass.
const MetadataLastSeenPackets = "last_seen_packets"

// TickResult describes what one tick did.
type TickResult struct {
	At          time.Time `json:"at"`
	PacketCount int64     `json:"packet_count"`
	Active      int       `json:"active"`
	Added       []string  `json:"added,omitempty"`
	Removed     []string  `json:"removed,omitempty"`
	Annotated   []string  `json:"annotated,omitempty"`
}

// Outcome classifies the tick for metrics.
func (r TickResult) Outcome() string {
	switch {
	case len(r.Added) > 0:
		return metrics.TickGrow
	case len(r.Removed) > 0:
		return metrics.TickShrink
	default:
		return metrics.TickIdle
	}
}

// Options wires a Loop. Table and Counter are required.
type Options struct {
	Table   *flowtable.Table
	Counter *traffic.Counter
	Config  Config
	// Rand drives every policy decision. Seed it for reproducible runs.
	Rand    *rand.Rand
	Clock   clock.Clock
	Logger  *logging.Logger
	Metrics *metrics.Engine
}

// Loop is the load-reactive control loop.
type Loop struct {
	table   *flowtable.Table
	counter *traffic.Counter
	config  Config
	clock   clock.Clock
	logger  *logging.Logger
	metrics *metrics.Engine

	// mu serializes ticks and guards rng, nextID and last.
	mu     sync.Mutex
	rng    *rand.Rand
	nextID int
	last   TickResult

	running  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New validates opts.Config and builds a loop.
func New(opts Options) (*Loop, error) {
	if opts.Table == nil || opts.Counter == nil {
		return nil, errors.New(errors.KindValidation, "control loop requires a flow table and a traffic counter")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.WithComponent("controlloop")
	}

	return &Loop{
		table:   opts.Table,
		counter: opts.Counter,
		config:  opts.Config,
		clock:   clk,
		logger:  logger,
		metrics: opts.Metrics,
		rng:     rng,
		nextID:  1,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start runs the loop in the background until Stop. It is a no-op while the
// loop is already running.
func (l *Loop) Start() {
	if !l.begin() {
		return
	}
	go func() {
		defer l.wg.Done()
		l.run(context.Background())
	}()
}

// Stop asks the loop to exit and waits for the current tick to finish. Safe to
// call more than once, and without a running loop. A stopped loop does not
// run again.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
	l.wg.Wait()
}

// Run ticks every Config.Interval until ctx is cancelled or Stop is called.
// The stop signal is observed between ticks, never mid-tick. Only one Run or
// Start may be active at a time.
func (l *Loop) Run(ctx context.Context) error {
	if !l.begin() {
		return errors.New(errors.KindUnavailable, "control loop is already running")
	}
	defer l.wg.Done()
	l.run(ctx)
	return nil
}

func (l *Loop) begin() bool {
	if !l.running.CompareAndSwap(false, true) {
		return false
	}
	l.wg.Add(1)
	return true
}

func (l *Loop) run(ctx context.Context) {
	defer l.running.Store(false)

	ticker := time.NewTicker(l.config.Interval)
	defer ticker.Stop()

	l.logger.Info("Flow control loop started",
		"interval", l.config.Interval,
		"high_water", l.config.HighWater,
		"low_water", l.config.LowWater,
		"capacity", l.config.Capacity)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Flow control loop stopped", "reason", ctx.Err())
			return
		case <-l.stopCh:
			l.logger.Info("Flow control loop stopped")
			return
		case <-ticker.C:
			l.safeTick()
		}
	}
}

// safeTick runs one tick, converting a panic into a log line so the next tick
// still happens.
func (l *Loop) safeTick() {
	defer func() {
		if r := recover(); r != nil {
			l.metrics.ObserveTickPanic()
			l.logger.Error("Control loop tick panicked",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	l.Tick()
}

// Tick applies the policy once and returns what changed.
func (l *Loop) Tick() TickResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	cfg := l.config
	res := TickResult{
		At:          l.clock.Now(),
		PacketCount: l.counter.Read(),
		Active:      l.table.Len(),
	}

	if res.PacketCount > cfg.HighWater && res.Active < cfg.Capacity {
		n := between(l.rng, cfg.GrowMin, cfg.GrowMax)
		if room := cfg.Capacity - res.Active; n > room {
			n = room
		}
		for i := 0; i < n; i++ {
			res.Added = append(res.Added, l.table.Install(l.synthesize()))
		}
	}

	if res.PacketCount < cfg.LowWater && res.Active > 0 {
		ids := l.table.IDs()
		for _, id := range Sample(l.rng, ids, between(l.rng, cfg.ShrinkMin, cfg.ShrinkMax)) {
			if l.table.Withdraw(id) {
				res.Removed = append(res.Removed, id)
			}
		}
	}

	if l.rng.Float64() < cfg.ChurnProbability {
		ids := l.table.IDs()
		for _, id := range Sample(l.rng, ids, cfg.ChurnMax) {
			load := l.rng.IntN(cfg.LoadAnnotationMax + 1)
			if l.table.Annotate(id, MetadataLastSeenPackets, load) {
				res.Annotated = append(res.Annotated, id)
			}
		}
	}

	l.metrics.ObserveTick(res.Outcome())
	if len(res.Added) > 0 || len(res.Removed) > 0 {
		l.logger.Info("Flow table adjusted",
			"packet_count", res.PacketCount,
			"added", len(res.Added),
			"removed", len(res.Removed),
			"flows", l.table.Len())
	}

	l.last = res
	return res
}

// LastTick returns the result of the most recent tick.
func (l *Loop) LastTick() TickResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

// Config returns the active policy.
func (l *Loop) Config() Config {
	return l.config
}

// synthesize builds a flow with random endpoints. Called with l.mu held.
func (l *Loop) synthesize() flowtable.Entry {
	id := l.allocateID()
	return flowtable.Entry{
		ID: id,
		Match: flowtable.Match{
			"src": fmt.Sprintf("10.0.0.%d", between(l.rng, 1, 254)),
			"dst": fmt.Sprintf("10.0.1.%d", between(l.rng, 1, 254)),
		},
		Actions: []flowtable.Action{
			{"type": "OUTPUT", "port": between(l.rng, 1, 4)},
		},
		Priority:  l.config.Priorities[l.rng.IntN(len(l.config.Priorities))],
		CreatedAt: l.clock.Now(),
	}
}

// allocateID returns the next flowN id not already taken by an admin flow.
func (l *Loop) allocateID() string {
	for {
		id := fmt.Sprintf("flow%d", l.nextID)
		l.nextID++
		if _, taken := l.table.Get(id); !taken {
			return id
		}
	}
}
