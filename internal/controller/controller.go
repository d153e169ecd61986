// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package controller adapts switch-runtime notifications and administrative
// requests onto the flow control engine.
package controller

import (
	"context"

	"github.com/google/uuid"
	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	"grimm.is/flowshell/internal/dispatch"
	"grimm.is/flowshell/internal/errors"
	"grimm.is/flowshell/internal/flowtable"
	"grimm.is/flowshell/internal/logging"
	"grimm.is/flowshell/internal/topology"
	"grimm.is/flowshell/internal/traffic"
)

// MaxPriority is the largest priority a switch accepts.
const MaxPriority = 65535

// EventType names a runtime notification.
type EventType string

const (
	EventSwitchUp   EventType = "switch_up"
	EventSwitchDown EventType = "switch_down"
	EventPacketIn   EventType = "packet_in"
	EventPortUp     EventType = "port_up"
	EventPortDown   EventType = "port_down"
)

// Event is a notification pushed by a switch-facing runtime. Datapath is set
// for EventSwitchUp; the other types only need DatapathID. Data optionally
// carries the raw frame of a packet-in.
type Event struct {
	Type       EventType
	Datapath   dispatch.Datapath
	DatapathID uint64
	Port       int
	Data       []byte
}

// Options wires a Controller. Table, Counter and Registry are required.
type Options struct {
	Table    *flowtable.Table
	Counter  *traffic.Counter
	Registry *dispatch.Registry
	Topology *topology.Store
	Logger   *logging.Logger
}

// Controller owns no state of its own; it routes events to the shared
// table, counter, registry and topology.
type Controller struct {
	table    *flowtable.Table
	counter  *traffic.Counter
	registry *dispatch.Registry
	topology *topology.Store
	logger   *logging.Logger
}

// New creates a controller.
func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = logging.WithComponent("controller")
	}
	return &Controller{
		table:    opts.Table,
		counter:  opts.Counter,
		registry: opts.Registry,
		topology: opts.Topology,
		logger:   logger,
	}
}

// HandleStateChange registers dp on up and forgets it on down.
func (c *Controller) HandleStateChange(dp dispatch.Datapath, up bool) {
	if dp == nil {
		return
	}
	id := dp.ID()
	if up {
		c.registry.Connect(dp)
		if c.topology != nil {
			c.topology.SwitchUp(id)
		}
		c.logger.Info("Datapath connected", "datapath", id, "connected", c.registry.Len())
		return
	}
	c.disconnect(id)
}

func (c *Controller) disconnect(id uint64) {
	if c.registry.Disconnect(id) {
		c.logger.Info("Datapath disconnected", "datapath", id, "connected", c.registry.Len())
	}
	if c.topology != nil {
		c.topology.SwitchDown(id)
	}
}

// HandlePacketIn counts one packet arrival and returns the new count.
func (c *Controller) HandlePacketIn(dpid uint64) int64 {
	return c.counter.Inc()
}

// HandlePacketInFrame counts a packet-in that carries its frame. Only frames
// with an Ethernet header are counted; it reports whether this one was.
func (c *Controller) HandlePacketInFrame(dpid uint64, frame []byte) bool {
	if !IsEthernet(frame) {
		c.logger.Debug("Ignoring packet-in without an Ethernet header", "datapath", dpid, "len", len(frame))
		return false
	}
	c.counter.Inc()
	return true
}

// IsEthernet reports whether frame decodes as an Ethernet frame.
func IsEthernet(frame []byte) bool {
	p := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	return p.Layer(layers.LayerTypeEthernet) != nil
}

// HandlePortStatus records a port transition on a live switch.
func (c *Controller) HandlePortStatus(dpid uint64, port int, up bool) {
	if c.topology == nil {
		return
	}
	if up {
		c.topology.PortUp(dpid, port)
	} else {
		c.topology.PortDown(dpid, port)
	}
}

// Handle routes one event. Unknown types are logged and ignored.
func (c *Controller) Handle(ev Event) {
	switch ev.Type {
	case EventSwitchUp:
		c.HandleStateChange(ev.Datapath, true)
	case EventSwitchDown:
		if ev.Datapath != nil {
			c.HandleStateChange(ev.Datapath, false)
		} else {
			c.disconnect(ev.DatapathID)
		}
	case EventPacketIn:
		if ev.Data != nil {
			c.HandlePacketInFrame(ev.DatapathID, ev.Data)
		} else {
			c.HandlePacketIn(ev.DatapathID)
		}
	case EventPortUp:
		c.HandlePortStatus(ev.DatapathID, ev.Port, true)
	case EventPortDown:
		c.HandlePortStatus(ev.DatapathID, ev.Port, false)
	default:
		c.logger.Warn("Ignoring unknown event", "type", ev.Type, "datapath", ev.DatapathID)
	}
}

// Run handles events until ctx is done or events is closed.
func (c *Controller) Run(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			c.Handle(ev)
		}
	}
}

func validate(e flowtable.Entry) error {
	if e.Priority < 0 || e.Priority > MaxPriority {
		return errors.Attr(
			errors.Errorf(errors.KindValidation, "priority %d outside [0,%d]", e.Priority, MaxPriority),
			"flow_id", e.ID)
	}
	return nil
}

// AddFlow installs a new administrative flow. An empty ID is generated; an ID
// already in the table is rejected so an add never silently replaces.
func (c *Controller) AddFlow(e flowtable.Entry) (flowtable.Entry, error) {
	if err := validate(e); err != nil {
		return flowtable.Entry{}, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	id, inserted := c.table.InstallIfAbsent(e)
	if !inserted {
		return flowtable.Entry{}, errors.Errorf(errors.KindValidation, "flow %s already exists", id)
	}
	stored, _ := c.table.Get(id)
	c.logger.Info("Added flow", "id", id, "priority", stored.Priority)
	return stored, nil
}

// ModifyFlow replaces the flow under e.ID, installing it if absent. It
// reports whether a flow existed before.
func (c *Controller) ModifyFlow(e flowtable.Entry) (flowtable.Entry, bool, error) {
	if e.ID == "" {
		return flowtable.Entry{}, false, errors.New(errors.KindValidation, "flow id is required")
	}
	if err := validate(e); err != nil {
		return flowtable.Entry{}, false, err
	}

	existed := c.table.Modify(e)
	stored, _ := c.table.Get(e.ID)
	c.logger.Info("Modified flow", "id", e.ID, "existed", existed)
	return stored, existed, nil
}

// DeleteFlow withdraws the flow under id.
func (c *Controller) DeleteFlow(id string) error {
	if id == "" {
		return errors.New(errors.KindValidation, "flow id is required")
	}
	if !c.table.Withdraw(id) {
		return errors.Errorf(errors.KindNotFound, "flow %s not found", id)
	}
	c.logger.Info("Removed flow", "id", id)
	return nil
}

// GetFlow returns the flow under id.
func (c *Controller) GetFlow(id string) (flowtable.Entry, error) {
	e, ok := c.table.Get(id)
	if !ok {
		return flowtable.Entry{}, errors.Errorf(errors.KindNotFound, "flow %s not found", id)
	}
	return e, nil
}
