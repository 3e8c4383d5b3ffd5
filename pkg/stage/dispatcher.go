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
	"github.com/stageflow/stageflow/pkg/foundation/cerrors"
)

// DispatcherStrategy selects how an upstream stage routes produced events to
// its subscribers. The set of strategies is closed, a strategy is picked at
// stage construction time.
type DispatcherStrategy int

const (
	// DispatchDemand routes each event to the subscriber with the highest
	// outstanding demand (default).
	DispatchDemand DispatcherStrategy = iota
	// DispatchBroadcast delivers a copy of each event to every subscriber.
	DispatchBroadcast
	// DispatchPartition routes each event to the subscriber bound to the
	// partition the event hashes to.
	DispatchPartition
)

func (s DispatcherStrategy) String() string {
	switch s {
	case DispatchDemand:
		return "demand"
	case DispatchBroadcast:
		return "broadcast"
	case DispatchPartition:
		return "partition"
	}
	return "unknown"
}

// DispatcherConfig configures the dispatcher of a producing stage.
type DispatcherConfig struct {
	Strategy DispatcherStrategy

	// Partitions is the fixed set of partition names, required for the
	// partition strategy and ignored otherwise.
	Partitions []string
	// Hash deterministically maps an event to exactly one partition name,
	// required for the partition strategy and ignored otherwise.
	Hash func(Event) string
}

// Validate checks that the configuration is complete for the selected
// strategy.
func (c DispatcherConfig) Validate() error {
	if c.Strategy != DispatchPartition {
		return nil
	}
	if len(c.Partitions) == 0 {
		return cerrors.New("partition strategy requires at least one partition")
	}
	if c.Hash == nil {
		return cerrors.New("partition strategy requires a hash function")
	}
	return nil
}

// subscriber is the upstream side of a subscription, it carries the demand
// accounting for one downstream stage. It is owned exclusively by the
// dispatcher that tracks it, which in turn is only invoked by message
// handlers on its owning stage.
type subscriber struct {
	tag        SubscriptionTag
	downstream *Stage
	opts       SubscriptionOptions

	// outstanding is how many events this subscriber is owed, decremented as
	// events are assigned, incremented by demand messages
	outstanding int
}

// delivery is one batch of events assigned to one subscriber in a dispatch
// round.
type delivery struct {
	sub    *subscriber
	events []Event
}

// dispatcher decides, given a batch of produced events and the set of active
// subscriptions with their outstanding demand, how to route events to
// subscribers. Implementations buffer events they cannot assign yet, surplus
// production is never dropped.
type dispatcher interface {
	// Strategy returns the strategy this dispatcher implements.
	Strategy() DispatcherStrategy

	// Add registers a new subscriber. It fails if the topology does not allow
	// the link (e.g. the partition is unknown or occupied).
	Add(sub *subscriber) error
	// Remove drops the subscriber with the given tag and reports whether it
	// was active. Removing an unknown tag is a no-op.
	Remove(tag SubscriptionTag) bool
	// Ask adds n units to the outstanding demand of the subscriber with the
	// given tag. Unknown tags are ignored.
	Ask(tag SubscriptionTag, n int)
	// Each calls f for every active subscriber in subscription order.
	Each(f func(sub *subscriber))

	// Demand returns how many new events the stage is currently licensed to
	// produce, accounting for events that are already buffered.
	Demand() int
	// Dispatch routes the given events plus any previously buffered ones and
	// returns the resulting deliveries. Events that cannot be assigned due to
	// missing demand are retained in the internal buffer.
	Dispatch(events []Event) ([]delivery, error)
	// Buffered returns the number of events held back for lack of demand.
	Buffered() int
}

// newDispatcher instantiates the dispatcher for the given config.
func newDispatcher(cfg DispatcherConfig) (dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, cerrors.Errorf("invalid dispatcher config: %w", err)
	}
	switch cfg.Strategy {
	case DispatchDemand:
		return &demandDispatcher{}, nil
	case DispatchBroadcast:
		return &broadcastDispatcher{}, nil
	case DispatchPartition:
		return newPartitionDispatcher(cfg), nil
	}
	return nil, cerrors.Errorf("unknown dispatcher strategy %d", cfg.Strategy)
}
