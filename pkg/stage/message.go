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

// The messages below make up the entire protocol between stages. They are
// delivered through the actor inboxes, per-subscription ordering follows from
// the FIFO ordering of each inbox.

// subscribeReply unblocks the caller of Runtime.Subscribe.
type subscribeReply struct {
	tag SubscriptionTag
	err error
}

// subscribeDownstream starts the subscribe handshake, sent by the runtime to
// the downstream stage.
type subscribeDownstream struct {
	upstream *Stage
	opts     SubscriptionOptions
	reply    chan<- subscribeReply
}

// subscribeUpstream is the second hop of the handshake, sent by the
// downstream stage to the upstream stage.
type subscribeUpstream struct {
	tag        SubscriptionTag
	downstream *Stage
	opts       SubscriptionOptions
}

// subscribeAck closes the handshake, sent by the upstream stage back to the
// downstream stage. A non-nil err means the upstream rejected the link.
type subscribeAck struct {
	tag SubscriptionTag
	err error
}

// askMsg declares n units of new demand, sent by the downstream stage to the
// upstream stage.
type askMsg struct {
	tag SubscriptionTag
	n   int
}

// deliverMsg carries one batch of events downstream. One message is sent per
// (subscriber, batch) per dispatch round.
type deliverMsg struct {
	tag    SubscriptionTag
	events []Event
}

// cancelMsg asks a stage to cancel a subscription it is an endpoint of, sent
// by the runtime. The reply is sent once the stage processed the removal,
// unknown tags reply success (cancellation is idempotent).
type cancelMsg struct {
	tag    SubscriptionTag
	reason error
	reply  chan<- error
}

// peerCancelMsg notifies the other endpoint of a cancelled subscription. It
// never terminates the receiving stage.
type peerCancelMsg struct {
	tag    SubscriptionTag
	reason error
}

// exitMsg notifies all subscription peers that a stage terminated. reason is
// nil on a normal termination. The receiving downstream reacts according to
// the subscription's cancel mode, a receiving upstream just drops the
// subscriber.
type exitMsg struct {
	stageID string
	reason  error
}

// stopMsg asks a stage to finish the current message and terminate normally.
type stopMsg struct{}
