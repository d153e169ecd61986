// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dispatch

import (
	"sync"

	"grimm.is/flowshell/internal/errors"
	"grimm.is/flowshell/internal/logging"
)

// ChannelDatapath is an in-process datapath that delivers flow-mods on a
// buffered channel. Bound-mode runtimes read Messages() and forward them to
// the real switch connection; simulated mode uses it as a loopback switch.
type ChannelDatapath struct {
	id     uint64
	mu     sync.RWMutex
	ch     chan FlowMod
	closed bool
}

// NewChannelDatapath creates a datapath with the given buffer size.
func NewChannelDatapath(id uint64, buffer int) *ChannelDatapath {
	if buffer < 0 {
		buffer = 0
	}
	return &ChannelDatapath{id: id, ch: make(chan FlowMod, buffer)}
}

func (d *ChannelDatapath) ID() uint64 { return d.id }

// Send delivers fm without blocking; a full buffer or closed datapath is an
// unavailable error.
func (d *ChannelDatapath) Send(fm FlowMod) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return errors.Errorf(errors.KindUnavailable, "datapath %d is closed", d.id)
	}
	select {
	case d.ch <- fm:
		return nil
	default:
		return errors.Errorf(errors.KindUnavailable, "datapath %d buffer full", d.id)
	}
}

// Messages returns the delivery channel. It is closed by Close.
func (d *ChannelDatapath) Messages() <-chan FlowMod {
	return d.ch
}

// Close marks the datapath closed. Safe to call more than once.
func (d *ChannelDatapath) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		close(d.ch)
	}
}

// Drain logs every message received by d until it is closed.
func Drain(d *ChannelDatapath, logger *logging.Logger) {
	for fm := range d.Messages() {
		logger.Debug("Datapath received flow-mod",
			"datapath", fm.DatapathID,
			"command", fm.Command,
			"flow_id", fm.FlowID,
			"priority", fm.Priority)
	}
}
