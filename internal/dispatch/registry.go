// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dispatch

import (
	"sort"
	"sync"

	"grimm.is/flowshell/internal/metrics"
)

// Datapath is a connected switch that accepts flow-mods. Send must not wait
// for an acknowledgment.
type Datapath interface {
	ID() uint64
	Send(fm FlowMod) error
}

// Registry is the set of currently connected datapaths.
type Registry struct {
	mu        sync.RWMutex
	datapaths map[uint64]Datapath
	metrics   *metrics.Engine
}

// NewRegistry returns an empty registry. m may be nil.
func NewRegistry(m *metrics.Engine) *Registry {
	return &Registry{
		datapaths: make(map[uint64]Datapath),
		metrics:   m,
	}
}

// Connect registers dp, replacing any datapath with the same id.
func (r *Registry) Connect(dp Datapath) {
	r.mu.Lock()
	r.datapaths[dp.ID()] = dp
	n := len(r.datapaths)
	r.mu.Unlock()
	r.metrics.SetDatapaths(n)
}

// Disconnect removes id. Unknown ids are a no-op and report false.
func (r *Registry) Disconnect(id uint64) bool {
	r.mu.Lock()
	_, ok := r.datapaths[id]
	delete(r.datapaths, id)
	n := len(r.datapaths)
	r.mu.Unlock()
	r.metrics.SetDatapaths(n)
	return ok
}

// Get returns the datapath for id.
func (r *Registry) Get(id uint64) (Datapath, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dp, ok := r.datapaths[id]
	return dp, ok
}

// Snapshot returns the connected datapaths ordered by id.
func (r *Registry) Snapshot() []Datapath {
	r.mu.RLock()
	out := make([]Datapath, 0, len(r.datapaths))
	for _, dp := range r.datapaths {
		out = append(out, dp)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// IDs returns the connected datapath ids in ascending order.
func (r *Registry) IDs() []uint64 {
	dps := r.Snapshot()
	ids := make([]uint64, len(dps))
	for i, dp := range dps {
		ids[i] = dp.ID()
	}
	return ids
}

// Len returns the number of connected datapaths.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.datapaths)
}
