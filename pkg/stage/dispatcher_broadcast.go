// Copyright © 2025 Stageflow Authors
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

package stage

import (
	"github.com/gammazero/deque"
)

// broadcastDispatcher delivers every event identically to every active
// subscriber. New production is only licensed once every subscriber has
// nonzero outstanding demand, so the minimum demand across subscribers bounds
// the production rate and no subscriber's mailbox grows unbounded relative to
// another's consumption rate.
type broadcastDispatcher struct {
	subs   []*subscriber
	buffer deque.Deque[Event]
}

func (d *broadcastDispatcher) Strategy() DispatcherStrategy { return DispatchBroadcast }

func (d *broadcastDispatcher) Add(sub *subscriber) error {
	d.subs = append(d.subs, sub)
	return nil
}

func (d *broadcastDispatcher) Remove(tag SubscriptionTag) bool {
	for i, sub := range d.subs {
		if sub.tag == tag {
			d.subs = append(d.subs[:i], d.subs[i+1:]...)
			return true
		}
	}
	return false
}

func (d *broadcastDispatcher) Ask(tag SubscriptionTag, n int) {
	for _, sub := range d.subs {
		if sub.tag == tag {
			sub.outstanding += n
			return
		}
	}
}

func (d *broadcastDispatcher) Each(f func(sub *subscriber)) {
	for _, sub := range d.subs {
		f(sub)
	}
}

func (d *broadcastDispatcher) Demand() int {
	n := d.minDemand() - d.buffer.Len()
	if n < 0 {
		n = 0
	}
	return n
}

func (d *broadcastDispatcher) Dispatch(events []Event) ([]delivery, error) {
	for _, e := range events {
		d.buffer.PushBack(e)
	}

	// a broadcast must satisfy all subscribers, only the minimum demand
	// across all of them can be dispatched
	n := d.minDemand()
	if n > d.buffer.Len() {
		n = d.buffer.Len()
	}
	if n <= 0 || len(d.subs) == 0 {
		return nil, nil
	}

	batch := make([]Event, n)
	for i := range batch {
		batch[i] = d.buffer.PopFront()
	}

	out := make([]delivery, 0, len(d.subs))
	for _, sub := range d.subs {
		sub.outstanding -= n
		out = append(out, delivery{sub: sub, events: batch})
	}
	return out, nil
}

func (d *broadcastDispatcher) Buffered() int {
	return d.buffer.Len()
}

// minDemand returns the minimum outstanding demand across all subscribers, or
// 0 if there are none.
func (d *broadcastDispatcher) minDemand() int {
	if len(d.subs) == 0 {
		return 0
	}
	minD := d.subs[0].outstanding
	for _, sub := range d.subs[1:] {
		if sub.outstanding < minD {
			minD = sub.outstanding
		}
	}
	return minD
}
