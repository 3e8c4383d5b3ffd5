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

// SubscriptionTag identifies one specific link among possibly many on the
// same pair of stages.
type SubscriptionTag string

// CancelMode governs how the termination of one endpoint of a subscription
// affects the other. Only the downstream endpoint ever terminates in reaction
// to a peer exit, an upstream stage always just drops the dead subscriber and
// rebalances demand.
type CancelMode int

const (
	// CancelPermanent terminates the downstream stage whenever the upstream
	// terminates, normally or abnormally. This is the default.
	CancelPermanent CancelMode = iota
	// CancelTransient terminates the downstream stage only when the upstream
	// terminates abnormally.
	CancelTransient
	// CancelTemporary never terminates the downstream stage, it is only
	// notified and the subscription is removed.
	CancelTemporary
)

func (m CancelMode) String() string {
	switch m {
	case CancelPermanent:
		return "permanent"
	case CancelTransient:
		return "transient"
	case CancelTemporary:
		return "temporary"
	}
	return "unknown"
}

const (
	DefaultMinDemand = 500
	DefaultMaxDemand = 1000
)

// SubscriptionOptions configures the demand window and failure coupling of a
// subscription.
type SubscriptionOptions struct {
	// MinDemand is the low water mark, a refill request is sent upstream
	// exactly when the outstanding demand drops to MinDemand or below.
	MinDemand int
	// MaxDemand bounds the number of in-flight events on this subscription.
	MaxDemand int
	// Cancel determines how a termination of the upstream stage affects the
	// downstream stage.
	Cancel CancelMode
	// Partition names the partition to bind to, required when the upstream
	// dispatcher uses the partition strategy and ignored otherwise.
	Partition string
}

// withDefaults returns the options with the default demand window applied in
// case none was set.
func (o SubscriptionOptions) withDefaults() SubscriptionOptions {
	if o.MinDemand == 0 && o.MaxDemand == 0 {
		o.MinDemand = DefaultMinDemand
		o.MaxDemand = DefaultMaxDemand
	}
	return o
}

// Validate checks that 0 <= MinDemand < MaxDemand.
func (o SubscriptionOptions) Validate() error {
	if o.MinDemand < 0 || o.MinDemand >= o.MaxDemand {
		return cerrors.Errorf("min %d, max %d: %w", o.MinDemand, o.MaxDemand, ErrInvalidDemandWindow)
	}
	return nil
}

// upstreamLink is the downstream side of a subscription. It tracks the
// outstanding demand this stage has declared toward its upstream and decides
// when to refill it. The link is owned exclusively by the stage goroutine.
type upstreamLink struct {
	tag      SubscriptionTag
	upstream *Stage
	opts     SubscriptionOptions

	// outstanding is the demand declared upstream that has not been satisfied
	// by delivered events yet
	outstanding int
	// asked is false until the initial demand request went out, producer
	// consumers hold it back until they have downstream demand themselves
	asked bool

	// pending is true while the upstream has not acknowledged the link yet
	pending bool
	reply   chan<- subscribeReply
}

// consume accounts for delivered events.
func (l *upstreamLink) consume(n int) {
	l.outstanding -= n
	if l.outstanding < 0 {
		// more events than demand were delivered, should not happen with a
		// well-behaved upstream
		l.outstanding = 0
	}
}

// nextAsk returns the size of the demand request that should go upstream now,
// or 0 if none is due. The first call returns MaxDemand, afterwards a refill
// of MaxDemand-outstanding is due exactly when outstanding drops to MinDemand
// or below (low-water-mark refill).
func (l *upstreamLink) nextAsk() int {
	switch {
	case l.pending:
		return 0
	case !l.asked:
		l.asked = true
		l.outstanding = l.opts.MaxDemand
		return l.opts.MaxDemand
	case l.outstanding <= l.opts.MinDemand:
		n := l.opts.MaxDemand - l.outstanding
		l.outstanding = l.opts.MaxDemand
		return n
	}
	return 0
}
