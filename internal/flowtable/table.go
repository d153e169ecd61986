// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package flowtable holds the in-memory forwarding rules of the shell.
//
// The table is the source of truth. When a Dispatcher is bound, every install
// and withdraw is mirrored to it while the table lock is held, so the
// dispatcher observes mutations in the order the table applied them. Dispatch
// failures never roll back the table.
package flowtable

import (
	"sync"

	"github.com/google/uuid"

	"grimm.is/flowshell/internal/clock"
	"grimm.is/flowshell/internal/logging"
	"grimm.is/flowshell/internal/metrics"
)

// Dispatcher mirrors table mutations to a switch-facing runtime. It is called
// with the table lock held: implementations must not block or call back into
// the table.
type Dispatcher interface {
	Add(e Entry)
	Delete(e Entry)
}

// Options configures a Table. Every field is optional.
type Options struct {
	Dispatcher Dispatcher
	Logger     *logging.Logger
	Metrics    *metrics.Engine
	Clock      clock.Clock
}

// Table is an insertion-ordered map of flow id to Entry.
type Table struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	order   []string

	dispatcher Dispatcher
	logger     *logging.Logger
	metrics    *metrics.Engine
	clock      clock.Clock
}

// New creates an empty table.
func New(opts Options) *Table {
	logger := opts.Logger
	if logger == nil {
		logger = logging.WithComponent("flowtable")
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Table{
		entries:    make(map[string]*Entry),
		dispatcher: opts.Dispatcher,
		logger:     logger,
		metrics:    opts.Metrics,
		clock:      clk,
	}
}

// Bind attaches (or with nil, detaches) the dispatcher.
func (t *Table) Bind(d Dispatcher) {
	t.mu.Lock()
	t.dispatcher = d
	t.mu.Unlock()
}

// Install inserts e, or replaces the entry already stored under e.ID while
// keeping its position. An empty ID is filled with a generated one, and a zero
// CreatedAt with the current time. Returns the stored ID.
func (t *Table) Install(e Entry) string {
	id, _ := t.install(e, false)
	return id
}

// InstallIfAbsent inserts e only when no entry is stored under e.ID. The check
// and the insert happen under one lock. It reports whether e was inserted.
func (t *Table) InstallIfAbsent(e Entry) (string, bool) {
	return t.install(e, true)
}

func (t *Table) install(e Entry, ifAbsent bool) (string, bool) {
	stored := e.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = t.clock.Now()
	}

	t.mu.Lock()
	_, exists := t.entries[stored.ID]
	if exists && ifAbsent {
		t.mu.Unlock()
		return stored.ID, false
	}
	if !exists {
		t.order = append(t.order, stored.ID)
	}
	t.entries[stored.ID] = &stored
	count := len(t.entries)
	// Dispatch under the lock so the switch sees mutations in table order.
	if t.dispatcher != nil {
		t.dispatcher.Add(stored.Clone())
	}
	t.mu.Unlock()

	t.metrics.ObserveFlowOp(metrics.OpInstall, count)
	t.logger.Debug("Installed flow", "id", stored.ID, "priority", stored.Priority)
	return stored.ID, true
}

// Withdraw removes the entry for id. Absent ids are a no-op and report false.
func (t *Table) Withdraw(id string) bool {
	t.mu.Lock()
	removed, exists := t.entries[id]
	if !exists {
		t.mu.Unlock()
		return false
	}
	delete(t.entries, id)
	for i, oid := range t.order {
		if oid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	count := len(t.entries)
	if t.dispatcher != nil {
		t.dispatcher.Delete(removed.Clone())
	}
	t.mu.Unlock()

	t.metrics.ObserveFlowOp(metrics.OpWithdraw, count)
	t.logger.Debug("Withdrew flow", "id", id)
	return true
}

// Modify replaces the entry under e.ID as a withdraw followed by an install.
// The two steps take the lock separately, so a concurrent reader may briefly
// see no entry for e.ID; it never sees a mix of old and new attributes.
// A replaced entry moves to the end of the insertion order.
// Returns whether an entry existed before.
func (t *Table) Modify(e Entry) bool {
	existed := t.Withdraw(e.ID)
	t.Install(e)
	return existed
}

// Annotate sets Metadata[key] on an existing entry. It reports false if the
// entry is gone.
func (t *Table) Annotate(id, key string, value any) bool {
	t.mu.Lock()
	entry, exists := t.entries[id]
	if !exists {
		t.mu.Unlock()
		return false
	}
	if entry.Metadata == nil {
		entry.Metadata = make(map[string]any)
	}
	entry.Metadata[key] = value
	count := len(t.entries)
	t.mu.Unlock()

	t.metrics.ObserveFlowOp(metrics.OpAnnotate, count)
	return true
}

// Get returns a copy of the entry for id.
func (t *Table) Get(id string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[id]
	if !ok {
		return Entry{}, false
	}
	return e.Clone(), true
}

// List returns copies of all entries in insertion order.
func (t *Table) List() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Entry, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.entries[id].Clone())
	}
	return out
}

// Snapshot returns copies of all entries keyed by id.
func (t *Table) Snapshot() map[string]Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]Entry, len(t.entries))
	for id, e := range t.entries {
		out[id] = e.Clone()
	}
	return out
}

// IDs returns a fresh copy of the current ids in insertion order.
func (t *Table) IDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Len returns the number of entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
