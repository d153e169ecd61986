// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"grimm.is/flowshell/internal/burst"
	"grimm.is/flowshell/internal/clock"
	"grimm.is/flowshell/internal/controlloop"
	"grimm.is/flowshell/internal/dispatch"
	"grimm.is/flowshell/internal/errors"
	"grimm.is/flowshell/internal/flowtable"
	"grimm.is/flowshell/internal/topology"
)

// MetricsDocument is the body of GET /metrics and each /ws/metrics frame.
type MetricsDocument struct {
	PacketCount int64             `json:"packet_count"`
	Flows       int               `json:"flows"`
	Topology    topology.Document `json:"topology"`
}

// StatusDocument is the body of GET /status.
type StatusDocument struct {
	Mode        string                  `json:"mode,omitempty"`
	Uptime      string                  `json:"uptime"`
	PacketCount int64                   `json:"packet_count"`
	Flows       int                     `json:"flows"`
	Datapaths   []uint64                `json:"datapaths"`
	Dispatch    *dispatch.Stats         `json:"dispatch,omitempty"`
	LastTick    *controlloop.TickResult `json:"last_tick,omitempty"`
}

func (s *Server) metricsDocument() MetricsDocument {
	return MetricsDocument{
		PacketCount: s.counter.Read(),
		Flows:       s.table.Len(),
		Topology:    s.topology.Document(),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, s.metricsDocument())
}

func (s *Server) handleTopology(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, s.topology.Document())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	doc := StatusDocument{
		Mode:        s.mode,
		Uptime:      clock.Now().Sub(s.startTime).Round(time.Second).String(),
		PacketCount: s.counter.Read(),
		Flows:       s.table.Len(),
		Datapaths:   []uint64{},
	}
	if s.registry != nil {
		doc.Datapaths = s.registry.IDs()
	}
	if s.dispatch != nil {
		stats := s.dispatch.Stats()
		doc.Dispatch = &stats
	}
	if s.loop != nil {
		last := s.loop.LastTick()
		if !last.At.IsZero() {
			doc.LastTick = &last
		}
	}
	WriteJSON(w, http.StatusOK, doc)
}

// handleSimulateBurst reads amount from the query string, then from a posted
// form. A missing or unparsable amount is not an error: it becomes the
// default burst.
func (s *Server) handleSimulateBurst(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("amount")
	if !r.URL.Query().Has("amount") && r.Method == http.MethodPost {
		raw = r.PostFormValue("amount")
	}
	WriteJSON(w, http.StatusOK, s.injector.Inject(burst.ParseAmount(raw)))
}

func (s *Server) handleListFlows(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, s.table.Snapshot())
}

func (s *Server) handleGetFlow(w http.ResponseWriter, r *http.Request) {
	e, err := s.controller.GetFlow(mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, e)
}

func decodeEntry(r *http.Request) (flowtable.Entry, error) {
	var e flowtable.Entry
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&e); err != nil {
		return flowtable.Entry{}, errors.Wrap(err, errors.KindValidation, "invalid flow entry")
	}
	return e, nil
}

func (s *Server) handleAddFlow(w http.ResponseWriter, r *http.Request) {
	e, err := decodeEntry(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	stored, err := s.controller.AddFlow(e)
	if err != nil {
		writeErr(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleModifyFlow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	e, err := decodeEntry(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	if e.ID != "" && e.ID != id {
		WriteError(w, http.StatusBadRequest, "flow id in body does not match path")
		return
	}
	e.ID = id

	stored, existed, err := s.controller.ModifyFlow(e)
	if err != nil {
		writeErr(w, err)
		return
	}
	status := http.StatusOK
	if !existed {
		status = http.StatusCreated
	}
	WriteJSON(w, status, stored)
}

func (s *Server) handleDeleteFlow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.controller.DeleteFlow(id); err != nil {
		writeErr(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}
