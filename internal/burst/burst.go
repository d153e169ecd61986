// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package burst overwrites the traffic counter with a synthetic load so the
// control loop can be driven by hand.
package burst

import (
	"strconv"
	"strings"

	"grimm.is/flowshell/internal/logging"
	"grimm.is/flowshell/internal/metrics"
	"grimm.is/flowshell/internal/traffic"
)

// DefaultAmount is used when the requested amount is absent or unparsable.
const DefaultAmount = 2000

// Result reports the counter value written by a burst.
type Result struct {
	PacketCount int64 `json:"packet_count"`
	Added       int64 `json:"added"`
	Previous    int64 `json:"-"`
}

// ParseAmount reads a burst size. Empty, non-integer and negative input all
// yield DefaultAmount.
func ParseAmount(raw string) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultAmount
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return DefaultAmount
	}
	return n
}

// Injector applies bursts to a counter.
type Injector struct {
	counter *traffic.Counter
	logger  *logging.Logger
	metrics *metrics.Engine
}

// NewInjector returns an injector for c. logger and m may be nil.
func NewInjector(c *traffic.Counter, logger *logging.Logger, m *metrics.Engine) *Injector {
	if logger == nil {
		logger = logging.WithComponent("burst")
	}
	return &Injector{counter: c, logger: logger, metrics: m}
}

// Inject sets the counter to amount. Bursts replace the load rather than add
// to it, so repeated bursts do not accumulate.
func (i *Injector) Inject(amount int64) Result {
	if amount < 0 {
		amount = DefaultAmount
	}
	prev := i.counter.ResetTo(amount)
	i.metrics.ObserveBurst()

	res := Result{
		PacketCount: amount,
		Added:       amount,
		Previous:    prev,
	}
	i.logger.Info("Simulated burst",
		"previous", prev,
		"amount", amount,
		"packet_count", res.PacketCount)
	return res
}

// InjectRaw parses raw with ParseAmount and injects the result.
func (i *Injector) InjectRaw(raw string) Result {
	return i.Inject(ParseAmount(raw))
}
