// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package traffic tracks observed load as a single shared packet counter.
package traffic

import (
	"sync/atomic"

	"grimm.is/flowshell/internal/metrics"
)

// Counter is a non-negative packet counter shared by packet-in handlers, the
// control loop and burst injection. It is not a cumulative total: ResetTo
// overwrites it.
type Counter struct {
	value   atomic.Int64
	metrics *metrics.Engine
}

// NewCounter returns a zeroed counter. m may be nil.
func NewCounter(m *metrics.Engine) *Counter {
	return &Counter{metrics: m}
}

// Increment adds n and returns the new value. n < 1 is ignored.
func (c *Counter) Increment(n int64) int64 {
	if n < 1 {
		return c.value.Load()
	}
	v := c.value.Add(n)
	c.metrics.ObservePackets(n)
	c.metrics.SetPacketCount(v)
	return v
}

// Inc adds one packet.
func (c *Counter) Inc() int64 {
	return c.Increment(1)
}

// Read returns the current value.
func (c *Counter) Read() int64 {
	return c.value.Load()
}

// ResetTo overwrites the counter and returns the previous value. Negative
// values clamp to zero.
func (c *Counter) ResetTo(v int64) int64 {
	if v < 0 {
		v = 0
	}
	prev := c.value.Swap(v)
	c.metrics.SetPacketCount(v)
	return prev
}
