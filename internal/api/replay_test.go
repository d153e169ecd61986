// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCapture(t *testing.T, frames ...[]byte) []byte {
	t.Helper()
	var out bytes.Buffer
	w := pcapgo.NewWriter(&out)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))
	for _, f := range frames {
		require.NoError(t, w.WritePacket(gopacket.CaptureInfo{
			Timestamp:     time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
			CaptureLength: len(f),
			Length:        len(f),
		}, f))
	}
	return out.Bytes()
}

func TestReplay(t *testing.T) {
	env := newTestEnv(t)
	frame := []byte{
		0x02, 0, 0, 0, 0, 2,
		0x02, 0, 0, 0, 0, 1,
		0x86, 0xdd,
		0, 0, 0, 0,
	}
	body := testCapture(t, frame, frame, []byte{0xff})

	req := httptest.NewRequest(http.MethodPost, "/replay?dpid=7", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp ReplayResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Frames)
	assert.Equal(t, 2, resp.Counted)
	assert.Equal(t, 1, resp.Skipped)
	assert.Equal(t, uint64(7), resp.DatapathID)
	assert.Equal(t, int64(2), resp.PacketCount)
	assert.Equal(t, int64(2), env.counter.Read())
}

func TestReplay_BadInput(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/replay?dpid=x", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPost, "/replay", "definitely not a pcap")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodGet, "/replay", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestReplay_TooLarge(t *testing.T) {
	env := newTestEnv(t)
	env.server.config.MaxCaptureBytes = 64

	frame := make([]byte, 60)
	frame[12], frame[13] = 0x08, 0x00
	body := testCapture(t, frame, frame)

	req := httptest.NewRequest(http.MethodPost, "/replay", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}
