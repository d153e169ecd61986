// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Counters(t *testing.T) {
	e := NewEngine()

	e.ObservePackets(3)
	e.ObservePackets(0)
	e.SetPacketCount(250)
	e.ObserveBurst()
	e.ObserveFlowOp(OpInstall, 2)
	e.ObserveFlowOp(OpWithdraw, 1)
	e.ObserveTick(TickGrow)
	e.ObserveDispatch("add", DispatchSent)
	e.SetDatapaths(4)

	assert.Equal(t, 3.0, testutil.ToFloat64(e.PacketsObserved))
	assert.Equal(t, 250.0, testutil.ToFloat64(e.PacketCount))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.Bursts))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.Flows))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.FlowOps.WithLabelValues(OpInstall)))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.Ticks.WithLabelValues(TickGrow)))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.Dispatch.WithLabelValues("add", DispatchSent)))
	assert.Equal(t, 4.0, testutil.ToFloat64(e.Datapaths))
}

func TestEngine_NilSafe(t *testing.T) {
	var e *Engine
	assert.NotPanics(t, func() {
		e.ObservePackets(1)
		e.SetPacketCount(1)
		e.ObserveBurst()
		e.ObserveAlert()
		e.ObserveFlowOp(OpInstall, 1)
		e.ObserveTick(TickIdle)
		e.ObserveTickPanic()
		e.ObserveDispatch("delete", DispatchFailed)
		e.SetDatapaths(1)
	})
	assert.Nil(t, e.Registry())
}

func TestEngine_Handler(t *testing.T) {
	e := NewEngine()
	e.ObserveBurst()

	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "flowshell_bursts_total 1")
}
