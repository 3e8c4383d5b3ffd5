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
	"github.com/stageflow/stageflow/pkg/foundation/cerrors"
)

// partitionDispatcher routes each event to the partition its hash maps to.
// Each partition accepts at most one active subscription at a time. Within a
// partition the order of events is preserved as produced, across partitions
// there is no ordering guarantee. An event whose partition has no bound
// subscriber is an error, events are never silently dropped.
type partitionDispatcher struct {
	hash func(Event) string
	// names preserves the configured partition order for Each
	names      []string
	partitions map[string]*partition
}

// partition binds at most one subscriber and queues events hashed to it that
// the subscriber has no demand for yet.
type partition struct {
	sub     *subscriber
	pending deque.Deque[Event]
}

func newPartitionDispatcher(cfg DispatcherConfig) *partitionDispatcher {
	d := &partitionDispatcher{
		hash:       cfg.Hash,
		names:      cfg.Partitions,
		partitions: make(map[string]*partition, len(cfg.Partitions)),
	}
	for _, name := range cfg.Partitions {
		d.partitions[name] = &partition{}
	}
	return d
}

func (d *partitionDispatcher) Strategy() DispatcherStrategy { return DispatchPartition }

func (d *partitionDispatcher) Add(sub *subscriber) error {
	if sub.opts.Partition == "" {
		return ErrPartitionNotDeclared
	}
	p, ok := d.partitions[sub.opts.Partition]
	if !ok {
		return cerrors.Errorf("partition %q: %w", sub.opts.Partition, ErrPartitionUnknown)
	}
	if p.sub != nil {
		return cerrors.Errorf("partition %q: %w", sub.opts.Partition, ErrPartitionOccupied)
	}
	p.sub = sub
	return nil
}

func (d *partitionDispatcher) Remove(tag SubscriptionTag) bool {
	for _, name := range d.names {
		p := d.partitions[name]
		if p.sub != nil && p.sub.tag == tag {
			p.sub = nil
			return true
		}
	}
	return false
}

func (d *partitionDispatcher) Ask(tag SubscriptionTag, n int) {
	for _, name := range d.names {
		p := d.partitions[name]
		if p.sub != nil && p.sub.tag == tag {
			p.sub.outstanding += n
			return
		}
	}
}

func (d *partitionDispatcher) Each(f func(sub *subscriber)) {
	for _, name := range d.names {
		if p := d.partitions[name]; p.sub != nil {
			f(p.sub)
		}
	}
}

func (d *partitionDispatcher) Demand() int {
	total := 0
	for _, name := range d.names {
		p := d.partitions[name]
		if p.sub != nil {
			total += p.sub.outstanding
		}
		total -= p.pending.Len()
	}
	if total < 0 {
		total = 0
	}
	return total
}

func (d *partitionDispatcher) Dispatch(events []Event) ([]delivery, error) {
	// route new events into their partition queues first so intra-partition
	// order is preserved
	for _, e := range events {
		name := d.hash(e)
		p, ok := d.partitions[name]
		if !ok {
			return nil, &DispatchError{Partition: name, Reason: ErrPartitionUnknown}
		}
		if p.sub == nil {
			return nil, &DispatchError{Partition: name, Reason: ErrPartitionUnbound}
		}
		p.pending.PushBack(e)
	}

	var out []delivery
	for _, name := range d.names {
		p := d.partitions[name]
		if p.sub == nil || p.sub.outstanding <= 0 || p.pending.Len() == 0 {
			continue
		}
		n := p.sub.outstanding
		if n > p.pending.Len() {
			n = p.pending.Len()
		}
		batch := make([]Event, n)
		for i := range batch {
			batch[i] = p.pending.PopFront()
		}
		p.sub.outstanding -= n
		out = append(out, delivery{sub: p.sub, events: batch})
	}
	return out, nil
}

func (d *partitionDispatcher) Buffered() int {
	total := 0
	for _, name := range d.names {
		total += d.partitions[name].pending.Len()
	}
	return total
}
