// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"net/http"
	"strconv"

	"grimm.is/flowshell/internal/errors"
	"grimm.is/flowshell/internal/replay"
)

const replayPath = "/replay"

// ReplayResponse is the body of POST /replay.
type ReplayResponse struct {
	replay.Stats
	DatapathID  uint64 `json:"datapath_id"`
	PacketCount int64  `json:"packet_count"`
}

// handleReplay feeds an uploaded pcap or pcapng capture through the
// packet-in path as if datapath ?dpid= had sent every frame.
func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	var dpid uint64
	if raw := r.URL.Query().Get("dpid"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "dpid must be an unsigned integer")
			return
		}
		dpid = v
	}

	body := r.Body
	if s.config.MaxCaptureBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.config.MaxCaptureBytes)
	}

	stats, err := replay.Run(r.Context(), body, func(frame []byte) bool {
		return s.controller.HandlePacketInFrame(dpid, frame)
	}, s.logger)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, http.StatusRequestEntityTooLarge, "Capture too large")
			return
		}
		writeErr(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, ReplayResponse{
		Stats:       stats,
		DatapathID:  dpid,
		PacketCount: s.counter.Read(),
	})
}
