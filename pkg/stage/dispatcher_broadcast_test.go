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

func TestBroadcastDispatcher_EverySubscriberGetsEveryEvent(t *testing.T) {
	is := is.New(t)

	d := &broadcastDispatcher{}
	sub1 := &subscriber{tag: "sub1", outstanding: 5}
	sub2 := &subscriber{tag: "sub2", outstanding: 5}
	is.NoErr(d.Add(sub1))
	is.NoErr(d.Add(sub2))

	deliveries, err := d.Dispatch(testEvents(3))
	is.NoErr(err)
	is.Equal(len(deliveries), 2)
	for _, del := range deliveries {
		is.Equal(del.events, testEvents(3)) // identical copy for every subscriber
	}
	is.Equal(sub1.outstanding, 2)
	is.Equal(sub2.outstanding, 2)
}

func TestBroadcastDispatcher_MinDemandBoundsDispatch(t *testing.T) {
	is := is.New(t)

	d := &broadcastDispatcher{}
	sub1 := &subscriber{tag: "sub1", outstanding: 5}
	sub2 := &subscriber{tag: "sub2", outstanding: 2}
	is.NoErr(d.Add(sub1))
	is.NoErr(d.Add(sub2))

	// only min(5, 2) = 2 events may go out, the rest stays buffered
	deliveries, err := d.Dispatch(testEvents(4))
	is.NoErr(err)
	is.Equal(len(deliveries), 2)
	for _, del := range deliveries {
		is.Equal(len(del.events), 2)
	}
	is.Equal(d.Buffered(), 2)
	is.Equal(sub1.outstanding, 3)
	is.Equal(sub2.outstanding, 0)

	// no production is licensed while one subscriber has zero demand
	is.Equal(d.Demand(), 0)

	// once the slow subscriber declares demand the buffer is flushed
	d.Ask("sub2", 4)
	deliveries, err = d.Dispatch(nil)
	is.NoErr(err)
	is.Equal(len(deliveries), 2)
	for _, del := range deliveries {
		is.Equal(len(del.events), 2)
	}
	is.Equal(d.Buffered(), 0)
}

func TestBroadcastDispatcher_DemandIsMinAcrossSubscribers(t *testing.T) {
	is := is.New(t)

	d := &broadcastDispatcher{}
	is.Equal(d.Demand(), 0) // no subscribers, no demand

	sub1 := &subscriber{tag: "sub1", outstanding: 7}
	sub2 := &subscriber{tag: "sub2", outstanding: 3}
	is.NoErr(d.Add(sub1))
	is.NoErr(d.Add(sub2))
	is.Equal(d.Demand(), 3)

	// removing the slowest subscriber raises the licensed demand
	is.True(d.Remove("sub2"))
	is.Equal(d.Demand(), 7)
}

func TestBroadcastDispatcher_NoSubscribers_Buffers(t *testing.T) {
	is := is.New(t)

	d := &broadcastDispatcher{}
	deliveries, err := d.Dispatch(testEvents(3))
	is.NoErr(err)
	is.Equal(len(deliveries), 0)
	is.Equal(d.Buffered(), 3)
}
