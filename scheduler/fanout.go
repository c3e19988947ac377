// Copyright 2017 CoreOS, Inc.
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

package scheduler

import (
	"sync"
	"time"

	"github.com/coreos/anvil/eventbus"
)

// forwardBufferSize matches spec.md §5's "channel buffer is sized to not
// drop events in normal operation (empirically 32 is sufficient)".
const forwardBufferSize = 32

// fanout is the broadcast channel from spec.md §5: one producer (the
// scheduler, acting for the bus), N ephemeral consumers (one per live
// supervisor).
type fanout struct {
	mu        sync.Mutex
	subs      map[int]chan eventbus.ForwardMsg
	nextID    int
}

func newFanout() *fanout {
	return &fanout{subs: make(map[int]chan eventbus.ForwardMsg)}
}

// subscribe registers a new supervisor's forward channel. unsubscribe must
// be called (typically deferred) once that supervisor's attempt ends.
func (f *fanout) subscribe() (id int, ch <-chan eventbus.ForwardMsg, unsubscribe func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id = f.nextID
	c := make(chan eventbus.ForwardMsg, forwardBufferSize)
	f.subs[id] = c
	return id, c, func() { f.remove(id) }
}

func (f *fanout) remove(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.subs[id]; ok {
		delete(f.subs, id)
		close(c)
	}
}

// broadcast sends msg to every currently-subscribed supervisor, without
// blocking on a full channel (a stalled supervisor must never stall the
// whole broadcast).
func (f *fanout) broadcast(msg eventbus.ForwardMsg) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.subs {
		select {
		case c <- msg:
		default:
		}
	}
}

// broadcastAndAwait sends a Stop carrying a fresh ack channel to every
// subscriber and waits up to timeout for all of them to acknowledge, per
// spec.md §4.8's 100ms best-effort wait.
func (f *fanout) broadcastAndAwait(kind eventbus.ForwardKind, timeout time.Duration) {
	f.mu.Lock()
	acks := make([]chan struct{}, 0, len(f.subs))
	for _, c := range f.subs {
		ack := make(chan struct{})
		acks = append(acks, ack)
		msg := eventbus.ForwardMsg{Kind: kind, Ack: ack}
		select {
		case c <- msg:
		default:
		}
	}
	f.mu.Unlock()

	deadline := time.After(timeout)
	for _, ack := range acks {
		select {
		case <-ack:
		case <-deadline:
			return
		}
	}
}
