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

package retry

import (
	"testing"
	"time"

	"github.com/coreos/anvil/testlist"
)

func TestFixedDelayConstant(t *testing.T) {
	p := testlist.FixedPolicy{Count: 5, Delay: 250 * time.Millisecond}
	for k := 1; k < p.TotalAttempts(); k++ {
		if got := NextDelay(p, k, nil); got != p.Delay {
			t.Errorf("attempt %d: got %v, want %v", k, got, p.Delay)
		}
	}
}

func TestExponentialBackoffMonotonicUncapped(t *testing.T) {
	p := testlist.ExponentialPolicy{Count: 6, Initial: 10 * time.Millisecond}
	var prev time.Duration
	for k := 1; k < p.TotalAttempts(); k++ {
		got := NextDelay(p, k, nil)
		if k > 1 && got <= prev {
			t.Errorf("attempt %d: delay %v did not increase over previous %v", k, got, prev)
		}
		prev = got
	}
}

func TestExponentialBackoffClampedAtMax(t *testing.T) {
	max := 100 * time.Millisecond
	p := testlist.ExponentialPolicy{Count: 10, Initial: 10 * time.Millisecond, Max: max}
	for k := 1; k < p.TotalAttempts(); k++ {
		if got := NextDelay(p, k, nil); got > max {
			t.Errorf("attempt %d: delay %v exceeded max %v", k, got, max)
		}
	}
}

func TestTotalAttempts(t *testing.T) {
	p := testlist.FixedPolicy{Count: 3}
	if got := p.TotalAttempts(); got != 4 {
		t.Errorf("TotalAttempts() = %d, want 4", got)
	}
}
