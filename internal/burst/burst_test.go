// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package burst

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"grimm.is/flowshell/internal/logging"
	"grimm.is/flowshell/internal/metrics"
	"grimm.is/flowshell/internal/traffic"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
	}{
		{"", 2000},
		{"   ", 2000},
		{"abc", 2000},
		{"12.5", 2000},
		{"-5", 2000},
		{"0", 0},
		{"300", 300},
		{" 42 ", 42},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAmount(tt.raw))
		})
	}
}

func TestInjector_ReplacesCounter(t *testing.T) {
	m := metrics.NewEngine()
	c := traffic.NewCounter(m)
	inj := NewInjector(c, logging.New(logging.Config{Level: logging.LevelError}), m)

	c.Increment(75)
	res := inj.Inject(300)
	assert.Equal(t, Result{PacketCount: 300, Added: 300, Previous: 75}, res)

	res = inj.Inject(300)
	assert.Equal(t, int64(300), res.PacketCount, "bursts do not accumulate")
	assert.Equal(t, int64(300), c.Read())

	res = inj.InjectRaw("abc")
	assert.Equal(t, int64(2000), res.PacketCount)
	assert.Equal(t, int64(2000), res.Added)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Bursts))
	assert.Equal(t, 2000.0, testutil.ToFloat64(m.PacketCount))
}

func TestInjector_Zero(t *testing.T) {
	c := traffic.NewCounter(nil)
	c.Increment(10)
	res := NewInjector(c, nil, nil).Inject(0)
	assert.Equal(t, int64(0), res.PacketCount)
	assert.Equal(t, int64(10), res.Previous)
}

func TestInjector_ReportsWrittenValue(t *testing.T) {
	c := traffic.NewCounter(nil)
	inj := NewInjector(c, logging.New(logging.Config{Level: logging.LevelError}), nil)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				c.Inc()
			}
		}
	}()

	for i := 0; i < 500; i++ {
		res := inj.Inject(int64(i))
		assert.Equal(t, int64(i), res.PacketCount)
	}
	close(stop)
	wg.Wait()
}
