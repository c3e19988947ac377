// Copyright 2015 CoreOS, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package retry computes the delay before a test's next attempt from its
// resolved retry policy and attempt history. It generalizes
// mantle/util.Retry's fixed-delay retry loop into a policy object driven
// explicitly by the scheduler, which needs to emit events and make the
// sleep cancellable between attempts rather than looping internally.
package retry

import (
	"math"
	"math/rand"
	"time"

	"github.com/coreos/anvil/testlist"
)

// jitterFactor draws a uniform value in (0.5, 1.0], matching spec.md §4.7.
func jitterFactor(rnd *rand.Rand) float64 {
	return 1.0 - rnd.Float64()*0.5
}

// NextDelay computes the delay before the attempt following a failing
// attempt numbered k (1-based, k < policy.TotalAttempts()). rnd supplies
// jitter; pass a seeded *rand.Rand for deterministic tests.
func NextDelay(policy testlist.Policy, k int, rnd *rand.Rand) time.Duration {
	var delay time.Duration
	var jitter bool

	switch p := policy.(type) {
	case testlist.FixedPolicy:
		delay = p.Delay
		jitter = p.Jitter
	case testlist.ExponentialPolicy:
		// fixed exponent = 2, per spec.md §4.7
		mult := math.Pow(2, float64(k-1))
		delay = time.Duration(float64(p.Initial) * mult)
		if p.Max > 0 && delay > p.Max {
			delay = p.Max
		}
		jitter = p.Jitter
	default:
		return 0
	}

	if jitter && delay > 0 {
		if rnd == nil {
			rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
		}
		delay = time.Duration(float64(delay) * jitterFactor(rnd))
	}
	return delay
}
