// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package controlloop

import (
	"math/rand/v2"
)

// Sample picks up to n distinct ids from ids without replacement. n is capped
// at len(ids), so asking for more than exist is never an error. ids is not
// modified.
func Sample(r *rand.Rand, ids []string, n int) []string {
	if n > len(ids) {
		n = len(ids)
	}
	if n <= 0 {
		return nil
	}

	pool := make([]string, len(ids))
	copy(pool, ids)
	// Partial Fisher-Yates: the first n slots end up uniformly chosen.
	for i := 0; i < n; i++ {
		j := i + r.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}

// between returns a uniform integer in [lo, hi].
func between(r *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.IntN(hi-lo+1)
}
