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
	"testing"

	"github.com/matryer/is"
)

func testEvents(n int) []Event {
	events := make([]Event, n)
	for i := range events {
		events[i] = i
	}
	return events
}

func TestDemandDispatcher_HighestDemandFirst(t *testing.T) {
	is := is.New(t)

	// two subscribers with demand 6 and 2, a production batch of 5 events
	d := &demandDispatcher{}
	sub1 := &subscriber{tag: "sub1", outstanding: 6}
	sub2 := &subscriber{tag: "sub2", outstanding: 2}
	is.NoErr(d.Add(sub1))
	is.NoErr(d.Add(sub2))

	deliveries, err := d.Dispatch(testEvents(5))
	is.NoErr(err)

	// subscriber 1 absorbs the whole batch, bounded by its demand of 6
	is.Equal(len(deliveries), 1)
	is.Equal(deliveries[0].sub, sub1)
	is.Equal(len(deliveries[0].events), 5)
	is.Equal(sub1.outstanding, 1)
	is.Equal(sub2.outstanding, 2)
}

func TestDemandDispatcher_NoSubscriberExceedsDemand(t *testing.T) {
	is := is.New(t)

	d := &demandDispatcher{}
	sub1 := &subscriber{tag: "sub1", outstanding: 3}
	sub2 := &subscriber{tag: "sub2", outstanding: 2}
	is.NoErr(d.Add(sub1))
	is.NoErr(d.Add(sub2))

	deliveries, err := d.Dispatch(testEvents(10))
	is.NoErr(err)

	counts := map[SubscriptionTag]int{}
	for _, del := range deliveries {
		counts[del.sub.tag] += len(del.events)
	}
	is.Equal(counts["sub1"], 3)
	is.Equal(counts["sub2"], 2)
	is.Equal(sub1.outstanding, 0)
	is.Equal(sub2.outstanding, 0)

	// the 5 unassigned events are buffered, never dropped
	is.Equal(d.Buffered(), 5)
	is.Equal(d.Demand(), 0)
}

func TestDemandDispatcher_TieBrokenByEarliestSubscribed(t *testing.T) {
	is := is.New(t)

	d := &demandDispatcher{}
	sub1 := &subscriber{tag: "sub1", outstanding: 4}
	sub2 := &subscriber{tag: "sub2", outstanding: 4}
	is.NoErr(d.Add(sub1))
	is.NoErr(d.Add(sub2))

	deliveries, err := d.Dispatch(testEvents(3))
	is.NoErr(err)
	is.Equal(len(deliveries), 1)
	is.Equal(deliveries[0].sub, sub1)
}

func TestDemandDispatcher_BufferedFlushedOnNewDemand(t *testing.T) {
	is := is.New(t)

	d := &demandDispatcher{}
	sub := &subscriber{tag: "sub"}
	is.NoErr(d.Add(sub))

	deliveries, err := d.Dispatch(testEvents(4))
	is.NoErr(err)
	is.Equal(len(deliveries), 0)
	is.Equal(d.Buffered(), 4)

	d.Ask("sub", 10)
	deliveries, err = d.Dispatch(nil)
	is.NoErr(err)
	is.Equal(len(deliveries), 1)
	is.Equal(deliveries[0].events, testEvents(4)) // buffered events preserve production order
	is.Equal(sub.outstanding, 6)
	is.Equal(d.Buffered(), 0)
	is.Equal(d.Demand(), 6)
}

func TestDemandDispatcher_DemandSubtractsBuffer(t *testing.T) {
	is := is.New(t)

	d := &demandDispatcher{}
	sub := &subscriber{tag: "sub", outstanding: 2}
	is.NoErr(d.Add(sub))

	_, err := d.Dispatch(testEvents(5))
	is.NoErr(err)
	is.Equal(d.Buffered(), 3)

	d.Ask("sub", 10)
	// 10 new demand, 3 events already buffered, only 7 more may be produced
	is.Equal(d.Demand(), 7)
}

func TestDemandDispatcher_Remove(t *testing.T) {
	is := is.New(t)

	d := &demandDispatcher{}
	sub1 := &subscriber{tag: "sub1", outstanding: 3}
	sub2 := &subscriber{tag: "sub2", outstanding: 4}
	is.NoErr(d.Add(sub1))
	is.NoErr(d.Add(sub2))

	is.True(d.Remove("sub1"))
	is.True(!d.Remove("sub1")) // already removed
	is.Equal(d.Demand(), 4)

	deliveries, err := d.Dispatch(testEvents(2))
	is.NoErr(err)
	is.Equal(len(deliveries), 1)
	is.Equal(deliveries[0].sub, sub2)
}
