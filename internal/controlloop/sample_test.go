// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package controlloop

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSample(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	ids := []string{"a", "b", "c", "d"}

	tests := []struct {
		name string
		ids  []string
		n    int
		want int
	}{
		{"fewer than available", ids, 2, 2},
		{"exactly available", ids, 4, 4},
		{"more than available", ids, 9, 4},
		{"single entry", []string{"a"}, 3, 1},
		{"empty", nil, 3, 0},
		{"zero", ids, 0, 0},
		{"negative", ids, -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sample(r, tt.ids, tt.n)
			assert.Len(t, got, tt.want)

			seen := make(map[string]bool)
			for _, id := range got {
				assert.Contains(t, tt.ids, id)
				assert.False(t, seen[id], "duplicate %s", id)
				seen[id] = true
			}
		})
	}
}

func TestSample_DoesNotMutateInput(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	ids := []string{"a", "b", "c", "d", "e"}
	for i := 0; i < 20; i++ {
		Sample(r, ids, 3)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids)
}

func TestSample_CoversAllIDs(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 6))
	ids := []string{"a", "b", "c", "d", "e"}
	hits := make(map[string]int)
	for i := 0; i < 500; i++ {
		for _, id := range Sample(r, ids, 1) {
			hits[id]++
		}
	}
	assert.Len(t, hits, len(ids))
}

func TestBetween(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 8))
	seen := make(map[int]bool)
	for i := 0; i < 200; i++ {
		v := between(r, 1, 3)
		assert.GreaterOrEqual(t, v, 1)
		assert.LessOrEqual(t, v, 3)
		seen[v] = true
	}
	assert.Len(t, seen, 3)
	assert.Equal(t, 2, between(r, 2, 2))
	assert.Equal(t, 5, between(r, 5, 1))
}
