// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package topology serves the network layout to the admin surface.
//
// The declared layout comes from a JSON or YAML file. Switch and port status
// notifications from a bound runtime are layered on top as live state.
package topology

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"grimm.is/flowshell/internal/errors"
	"grimm.is/flowshell/internal/logging"
)

// Switch is a declared switch.
type Switch struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	DPID uint64 `json:"dpid,omitempty" yaml:"dpid,omitempty"`
}

// Link connects two switch ports.
type Link struct {
	Src     string `json:"src" yaml:"src"`
	SrcPort int    `json:"src_port,omitempty" yaml:"src_port,omitempty"`
	Dst     string `json:"dst" yaml:"dst"`
	DstPort int    `json:"dst_port,omitempty" yaml:"dst_port,omitempty"`
}

// Topology is the declared layout. Both lists are always non-nil so the
// document renders as arrays.
type Topology struct {
	Switches []Switch `json:"switches" yaml:"switches"`
	Links    []Link   `json:"links" yaml:"links"`
}

// Empty returns a topology with no switches or links.
func Empty() Topology {
	return Topology{Switches: []Switch{}, Links: []Link{}}
}

// LiveSwitch is the runtime view of a connected datapath.
type LiveSwitch struct {
	DPID  uint64    `json:"dpid"`
	Ports []int     `json:"ports"`
	Since time.Time `json:"since"`
}

// Document is what the admin surface renders.
type Document struct {
	Topology
	Live []LiveSwitch `json:"live"`
}

// Parse decodes data as YAML when format is "yaml" or "yml", JSON otherwise.
func Parse(data []byte, format string) (Topology, error) {
	t := Empty()
	var err error
	switch strings.ToLower(format) {
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &t)
	default:
		err = json.Unmarshal(data, &t)
	}
	if err != nil {
		return Empty(), errors.Wrap(err, errors.KindValidation, "failed to parse topology")
	}
	if t.Switches == nil {
		t.Switches = []Switch{}
	}
	if t.Links == nil {
		t.Links = []Link{}
	}
	return t, nil
}

// Load reads path. A missing file is not an error: it yields an empty
// topology and a warning.
func Load(path string, logger *logging.Logger) (Topology, error) {
	if logger == nil {
		logger = logging.WithComponent("topology")
	}
	if path == "" {
		logger.Warn("No topology file configured, using empty topology")
		return Empty(), nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Warn("No topology file found, using empty topology", "path", path)
		return Empty(), nil
	}
	if err != nil {
		return Empty(), errors.Wrapf(err, errors.KindUnavailable, "failed to read topology %s", path)
	}

	t, err := Parse(data, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return Empty(), errors.Attr(err, "path", path)
	}
	logger.Info("Loaded topology", "path", path, "switches", len(t.Switches), "links", len(t.Links))
	return t, nil
}

// Store holds the declared topology and the live switch set.
type Store struct {
	mu     sync.RWMutex
	static Topology
	live   map[uint64]*LiveSwitch
	logger *logging.Logger
	now    func() time.Time
}

// NewStore wraps t.
func NewStore(t Topology, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.WithComponent("topology")
	}
	return &Store{
		static: t,
		live:   make(map[uint64]*LiveSwitch),
		logger: logger,
		now:    time.Now,
	}
}

// SwitchUp records a datapath as connected. Repeated calls keep its ports.
func (s *Store) SwitchUp(dpid uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live[dpid]; ok {
		return
	}
	s.live[dpid] = &LiveSwitch{DPID: dpid, Ports: []int{}, Since: s.now()}
	s.logger.Info("Switch is up", "dpid", dpid)
}

// SwitchDown forgets a datapath.
func (s *Store) SwitchDown(dpid uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live[dpid]; !ok {
		return
	}
	delete(s.live, dpid)
	s.logger.Info("Switch is down", "dpid", dpid)
}

// PortUp adds port to a live switch. Unknown switches are ignored.
func (s *Store) PortUp(dpid uint64, port int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sw, ok := s.live[dpid]
	if !ok {
		return false
	}
	if !slices.Contains(sw.Ports, port) {
		sw.Ports = append(sw.Ports, port)
		sort.Ints(sw.Ports)
	}
	s.logger.Debug("Port is up", "dpid", dpid, "port", port)
	return true
}

// PortDown removes port from a live switch.
func (s *Store) PortDown(dpid uint64, port int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sw, ok := s.live[dpid]
	if !ok {
		return false
	}
	idx := slices.Index(sw.Ports, port)
	if idx < 0 {
		return false
	}
	sw.Ports = slices.Delete(sw.Ports, idx, idx+1)
	s.logger.Debug("Port is down", "dpid", dpid, "port", port)
	return true
}

// Static returns the declared topology.
func (s *Store) Static() Topology {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Topology{
		Switches: slices.Clone(s.static.Switches),
		Links:    slices.Clone(s.static.Links),
	}
}

// Document returns the declared topology with the live switches sorted by id.
func (s *Store) Document() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc := Document{
		Topology: Topology{
			Switches: slices.Clone(s.static.Switches),
			Links:    slices.Clone(s.static.Links),
		},
		Live: make([]LiveSwitch, 0, len(s.live)),
	}
	for _, sw := range s.live {
		c := *sw
		c.Ports = slices.Clone(sw.Ports)
		doc.Live = append(doc.Live, c)
	}
	sort.Slice(doc.Live, func(i, j int) bool { return doc.Live[i].DPID < doc.Live[j].DPID })
	return doc
}

// Report logs the current document every interval until ctx is done.
func (s *Store) Report(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("topology report interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			doc := s.Document()
			s.logger.Info("Current topology",
				"switches", len(doc.Switches),
				"links", len(doc.Links),
				"live", len(doc.Live))
		}
	}
}
