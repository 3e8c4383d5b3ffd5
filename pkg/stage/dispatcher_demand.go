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

// demandDispatcher routes work toward the subscriber best positioned to
// absorb it: each dispatch round repeatedly picks the subscriber with the
// highest outstanding demand (ties broken by earliest-subscribed order) and
// assigns it as many events as its demand allows. This approximates
// least-loaded scheduling without explicit load signals.
type demandDispatcher struct {
	// subs is kept in subscription order
	subs []*subscriber
	// buffer holds surplus events produced while no demand was outstanding
	buffer deque.Deque[Event]
}

func (d *demandDispatcher) Strategy() DispatcherStrategy { return DispatchDemand }

func (d *demandDispatcher) Add(sub *subscriber) error {
	d.subs = append(d.subs, sub)
	return nil
}

func (d *demandDispatcher) Remove(tag SubscriptionTag) bool {
	for i, sub := range d.subs {
		if sub.tag == tag {
			d.subs = append(d.subs[:i], d.subs[i+1:]...)
			return true
		}
	}
	return false
}

func (d *demandDispatcher) Ask(tag SubscriptionTag, n int) {
	for _, sub := range d.subs {
		if sub.tag == tag {
			sub.outstanding += n
			return
		}
	}
}

func (d *demandDispatcher) Each(f func(sub *subscriber)) {
	for _, sub := range d.subs {
		f(sub)
	}
}

func (d *demandDispatcher) Demand() int {
	total := 0
	for _, sub := range d.subs {
		total += sub.outstanding
	}
	total -= d.buffer.Len()
	if total < 0 {
		total = 0
	}
	return total
}

func (d *demandDispatcher) Dispatch(events []Event) ([]delivery, error) {
	for _, e := range events {
		d.buffer.PushBack(e)
	}

	var out []delivery
	for d.buffer.Len() > 0 {
		sub := d.highestDemand()
		if sub == nil {
			// all outstanding demand is exhausted, the rest stays buffered
			// until new demand arrives
			break
		}
		n := sub.outstanding
		if n > d.buffer.Len() {
			n = d.buffer.Len()
		}
		batch := make([]Event, n)
		for i := range batch {
			batch[i] = d.buffer.PopFront()
		}
		sub.outstanding -= n
		out = append(out, delivery{sub: sub, events: batch})
	}
	return out, nil
}

func (d *demandDispatcher) Buffered() int {
	return d.buffer.Len()
}

// highestDemand returns the subscriber with the largest outstanding demand,
// preferring the earliest subscribed one on ties. It returns nil if no
// subscriber has demand.
func (d *demandDispatcher) highestDemand() *subscriber {
	var best *subscriber
	for _, sub := range d.subs {
		if sub.outstanding > 0 && (best == nil || sub.outstanding > best.outstanding) {
			best = sub
		}
	}
	return best
}
