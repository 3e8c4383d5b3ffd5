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

// Package stage implements a demand-driven staged event pipeline. Stages are
// independent concurrent units exchanging discrete batches of events, flow is
// regulated by consumer-declared demand rather than producer push: events
// travel downstream only as a response to previously declared demand.
package stage

//go:generate mockgen -destination=mock/handler.go -package=mock -mock_names=Producer=Producer,ProducerConsumer=ProducerConsumer,Consumer=Consumer . Producer,ProducerConsumer,Consumer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stageflow/stageflow/pkg/actor"
	"github.com/stageflow/stageflow/pkg/foundation/cchan"
	"github.com/stageflow/stageflow/pkg/foundation/cerrors"
	"github.com/stageflow/stageflow/pkg/foundation/csync"
	"github.com/stageflow/stageflow/pkg/foundation/ctxutil"
	"github.com/stageflow/stageflow/pkg/foundation/log"
	"github.com/stageflow/stageflow/pkg/foundation/metrics/measure"
)

// Event is an opaque payload flowing through the pipeline. Stageflow attaches
// no semantics to it.
type Event = any

// Role determines how a stage takes part in the pipeline.
type Role int

const (
	// RoleProducer only emits events, it never accepts upstream events.
	RoleProducer Role = iota
	// RoleProducerConsumer transforms upstream events into downstream events.
	RoleProducerConsumer
	// RoleConsumer only accepts events, it never emits events downstream.
	RoleConsumer
)

func (r Role) String() string {
	switch r {
	case RoleProducer:
		return "producer"
	case RoleProducerConsumer:
		return "producer-consumer"
	case RoleConsumer:
		return "consumer"
	}
	return "unknown"
}

// producing reports whether the role owns a dispatcher.
func (r Role) producing() bool { return r != RoleConsumer }

// consuming reports whether the role accepts upstream events.
func (r Role) consuming() bool { return r != RoleProducer }

// Producer is the handler of a producing stage. HandleDemand is invoked with
// the total currently satisfiable demand and returns at most that many
// events. Returning fewer events leaves the residual demand outstanding until
// the next production round, returning more is a handler error.
type Producer interface {
	HandleDemand(ctx context.Context, demand int) ([]Event, error)
}

// ProducerConsumer is the handler of a transforming stage. HandleEvents
// receives a batch of upstream events and returns the transformed output
// events, possibly none. It has no independent demand source, its production
// is licensed by the demand its own subscribers declared.
type ProducerConsumer interface {
	HandleEvents(ctx context.Context, events []Event) ([]Event, error)
}

// Consumer is the handler of a terminal stage. HandleEvents performs side
// effects and returns no output events.
type Consumer interface {
	HandleEvents(ctx context.Context, events []Event) error
}

// Opener is an optional handler hook, called in the stage goroutine before
// the stage starts processing messages.
type Opener interface {
	Open(ctx context.Context) error
}

// Closer is an optional handler hook, called in the stage goroutine right
// before the stage terminates.
type Closer interface {
	Close(ctx context.Context) error
}

// ProducerFunc is an adapter to allow the use of ordinary functions as
// Producers.
type ProducerFunc func(ctx context.Context, demand int) ([]Event, error)

func (f ProducerFunc) HandleDemand(ctx context.Context, demand int) ([]Event, error) {
	return f(ctx, demand)
}

// ProducerConsumerFunc is an adapter to allow the use of ordinary functions
// as ProducerConsumers.
type ProducerConsumerFunc func(ctx context.Context, events []Event) ([]Event, error)

func (f ProducerConsumerFunc) HandleEvents(ctx context.Context, events []Event) ([]Event, error) {
	return f(ctx, events)
}

// ConsumerFunc is an adapter to allow the use of ordinary functions as
// Consumers.
type ConsumerFunc func(ctx context.Context, events []Event) error

func (f ConsumerFunc) HandleEvents(ctx context.Context, events []Event) error {
	return f(ctx, events)
}

// State represents the lifecycle state of a stage.
type State string

const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopped  State = "stopped"
)

// Stage is a single concurrent unit of the pipeline. All mutable state below
// the ref is owned exclusively by the stage goroutine and only ever mutated
// by its message handlers, stages share no memory.
type Stage struct {
	id      string
	name    string
	role    Role
	handler any
	logger  log.CtxLogger

	ref   *actor.Ref
	state *csync.ValueWatcher[State]

	// disp routes produced events, present iff the role is producing
	disp dispatcher
	// upstreams are the links on which this stage is the downstream side
	upstreams map[SubscriptionTag]*upstreamLink

	prevBuffered int
}

func newStage(name string, role Role, handler any, disp dispatcher, logger log.CtxLogger) *Stage {
	s := &Stage{
		id:        uuid.NewString(),
		name:      name,
		role:      role,
		handler:   handler,
		disp:      disp,
		upstreams: make(map[SubscriptionTag]*upstreamLink),
		state:     &csync.ValueWatcher[State]{},
	}
	s.state.Set(StateStarting)
	s.logger = logger.WithComponent("stage.Stage")
	s.logger.Logger = s.logger.With().
		Str(log.StageIDField, s.id).
		Str(log.StageNameField, s.name).
		Str(log.StageRoleField, s.role.String()).
		Logger()
	return s
}

// ID returns the unique identifier of the stage.
func (s *Stage) ID() string { return s.id }

// Name returns the human readable name of the stage.
func (s *Stage) Name() string { return s.name }

// Role returns the fixed role of the stage.
func (s *Stage) Role() Role { return s.role }

// State returns the current lifecycle state of the stage.
func (s *Stage) State() State { return s.state.Get() }

// Wait blocks until the stage has terminated and returns its death reason,
// nil if it exited normally. If ctx is canceled first the context error is
// returned.
func (s *Stage) Wait(ctx context.Context) error {
	_, _, err := cchan.ChanOut[struct{}](s.ref.Dead()).Recv(ctx)
	if err != nil {
		return err
	}
	return s.ref.Err()
}

// run is the process entry of the stage. It is driven purely by inbox
// messages and processes one message at a time to completion. Note that the
// receive waits indefinitely, a stage whose upstream never delivers blocks
// until it is stopped or killed.
func (s *Stage) run(ctx context.Context, inbox *actor.Inbox) (err error) {
	ctx = ctxutil.ContextWithStageID(ctx, s.id)

	defer func() {
		if p := recover(); p != nil {
			err = cerrors.Errorf("stage panicked: %v", p)
		}
		err = s.teardown(ctx, err)
	}()

	if o, ok := s.handler.(Opener); ok {
		if err := o.Open(ctx); err != nil {
			return &HandlerError{StageID: s.id, Role: s.role, Reason: cerrors.Errorf("open: %w", err)}
		}
	}

	measure.StagesGauge.WithValues(s.role.String()).Inc()
	defer measure.StagesGauge.WithValues(s.role.String()).Dec()

	s.state.Set(StateRunning)
	s.logger.Info(ctx).Msg("stage running")

	for {
		msg, recvErr := inbox.Recv(ctx)
		if recvErr != nil {
			// the stage was killed, the kill reason is tracked by the process
			return nil
		}
		stop, err := s.handleMessage(ctx, msg)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

// teardown runs the close hook and notifies all subscription peers of the
// termination. It returns the final death reason of the stage.
func (s *Stage) teardown(ctx context.Context, err error) error {
	// the run context may already be canceled at this point
	ctx = context.WithoutCancel(ctx)

	if c, ok := s.handler.(Closer); ok {
		closeErr := c.Close(ctx)
		err = cerrors.LogOrReplace(err, closeErr, func() {
			s.logger.Err(ctx, closeErr).Msg("close hook failed, stage already terminating")
		})
	}

	exit := exitMsg{stageID: s.id, reason: err}
	for _, link := range s.upstreams {
		if link.pending && link.reply != nil {
			link.reply <- subscribeReply{err: &SubscribeError{
				Upstream:   link.upstream.name,
				Downstream: s.name,
				Reason:     ErrStageNotRunning,
			}}
		}
		link.upstream.ref.Send(exit)
	}
	if s.disp != nil {
		s.disp.Each(func(sub *subscriber) {
			sub.downstream.ref.Send(exit)
			measure.SubscriptionsGauge.Dec()
		})
	}

	s.logger.Err(ctx, err).Msg("stage terminated")
	s.state.Set(StateStopped)
	return err
}

func (s *Stage) handleMessage(ctx context.Context, msg any) (stop bool, err error) {
	switch m := msg.(type) {
	case subscribeDownstream:
		s.handleSubscribeDownstream(ctx, m)
	case subscribeUpstream:
		s.handleSubscribeUpstream(ctx, m)
	case subscribeAck:
		s.handleSubscribeAck(ctx, m)
	case askMsg:
		err = s.handleAsk(ctx, m)
	case deliverMsg:
		err = s.handleDeliver(ctx, m)
	case cancelMsg:
		err = s.handleCancel(ctx, m.tag, m.reason)
		if m.reply != nil {
			m.reply <- nil // cancellation is idempotent, unknown tags succeed
		}
	case peerCancelMsg:
		err = s.handleCancel(ctx, m.tag, m.reason)
	case exitMsg:
		stop, err = s.handlePeerExit(ctx, m)
	case stopMsg:
		s.logger.Info(ctx).Msg("stage stopping")
		stop = true
	default:
		s.logger.Warn(ctx).Msgf("discarding message of unknown type %T", msg)
	}
	return stop, err
}

// handleSubscribeDownstream registers a pending link and forwards the
// handshake to the upstream stage.
func (s *Stage) handleSubscribeDownstream(ctx context.Context, msg subscribeDownstream) {
	fail := func(reason error) {
		msg.reply <- subscribeReply{err: &SubscribeError{
			Upstream:   msg.upstream.name,
			Downstream: s.name,
			Reason:     reason,
		}}
	}

	switch {
	case !s.role.consuming():
		fail(ErrDownstreamNotConsumer)
	case msg.upstream.id == s.id:
		fail(ErrSelfSubscription)
	case !msg.upstream.role.producing():
		fail(ErrUpstreamNotProducer)
	case !msg.upstream.ref.Alive():
		fail(ErrStageNotRunning)
	default:
		tag := SubscriptionTag(uuid.NewString())
		s.upstreams[tag] = &upstreamLink{
			tag:      tag,
			upstream: msg.upstream,
			opts:     msg.opts,
			pending:  true,
			reply:    msg.reply,
		}
		msg.upstream.ref.Send(subscribeUpstream{tag: tag, downstream: s, opts: msg.opts})
	}
}

// handleSubscribeUpstream registers the subscriber with the dispatcher and
// acknowledges the handshake.
func (s *Stage) handleSubscribeUpstream(ctx context.Context, msg subscribeUpstream) {
	if s.disp == nil {
		msg.downstream.ref.Send(subscribeAck{tag: msg.tag, err: ErrUpstreamNotProducer})
		return
	}

	err := s.disp.Add(&subscriber{
		tag:        msg.tag,
		downstream: msg.downstream,
		opts:       msg.opts,
	})
	if err == nil {
		measure.SubscriptionsGauge.Inc()
		s.logger.Debug(ctx).
			Str(log.SubscriptionTagField, string(msg.tag)).
			Str(log.StageNameField, msg.downstream.name).
			Str(log.CancelModeField, msg.opts.Cancel.String()).
			Msg("subscriber registered")
	}
	msg.downstream.ref.Send(subscribeAck{tag: msg.tag, err: err})
}

// handleSubscribeAck activates the pending link, issues the initial demand
// request and unblocks the subscribe caller.
func (s *Stage) handleSubscribeAck(ctx context.Context, msg subscribeAck) {
	link, ok := s.upstreams[msg.tag]
	if !ok {
		// the link was cancelled before the ack arrived
		return
	}
	if msg.err != nil {
		delete(s.upstreams, msg.tag)
		link.reply <- subscribeReply{err: &SubscribeError{
			Upstream:   link.upstream.name,
			Downstream: s.name,
			Reason:     msg.err,
		}}
		return
	}

	link.pending = false
	s.maybeAsk(ctx, link)
	link.reply <- subscribeReply{tag: msg.tag}
	link.reply = nil
}

// maybeAsk sends a demand request upstream if one is due. Producer consumers
// hold asks back until they have downstream demand themselves, their own
// outstanding demand toward the upstream is what licenses production.
func (s *Stage) maybeAsk(ctx context.Context, link *upstreamLink) {
	if s.role == RoleProducerConsumer && s.disp.Demand() <= 0 {
		return
	}
	n := link.nextAsk()
	if n <= 0 {
		return
	}
	link.upstream.ref.Send(askMsg{tag: link.tag, n: n})
	measure.DemandRequestsCounter.Inc()
	s.logger.Trace(ctx).
		Str(log.SubscriptionTagField, string(link.tag)).
		Int(log.DemandField, n).
		Msg("demand requested upstream")
}

// handleAsk accounts new downstream demand and triggers a production round.
func (s *Stage) handleAsk(ctx context.Context, msg askMsg) error {
	if s.disp == nil {
		return nil
	}
	s.disp.Ask(msg.tag, msg.n)
	return s.produce(ctx)
}

// produce flushes buffered events against the available demand and, for
// producer stages, invokes the handler for new events. For producer consumers
// it instead re-evaluates the demand requests toward their upstreams, new
// downstream demand may license asks that were held back.
func (s *Stage) produce(ctx context.Context) error {
	if err := s.dispatch(ctx, nil); err != nil {
		return err
	}

	switch s.role {
	case RoleProducer:
		demand := s.disp.Demand()
		if demand <= 0 {
			return nil
		}
		events, err := s.callProducer(ctx, demand)
		if err != nil {
			return &HandlerError{StageID: s.id, Role: s.role, Reason: err}
		}
		if len(events) > demand {
			return &HandlerError{
				StageID: s.id,
				Role:    s.role,
				Reason:  cerrors.Errorf("returned %d events for demand %d: %w", len(events), demand, ErrOverProduction),
			}
		}
		if err := s.dispatch(ctx, events); err != nil {
			return err
		}
	case RoleProducerConsumer:
		for _, link := range s.upstreams {
			if !link.pending {
				s.maybeAsk(ctx, link)
			}
		}
	case RoleConsumer:
		// consumers do not produce
	}
	return nil
}

// dispatch routes events through the dispatcher and sends the resulting
// deliveries downstream. Surplus events stay buffered in the dispatcher.
func (s *Stage) dispatch(ctx context.Context, events []Event) error {
	deliveries, err := s.disp.Dispatch(events)
	if err != nil {
		var de *DispatchError
		if cerrors.As(err, &de) {
			de.StageID = s.id
			s.logger.Err(ctx, err).
				Str(log.PartitionField, de.Partition).
				Msg("events could not be routed")
		}
		return err
	}

	strategy := s.disp.Strategy().String()
	for _, d := range deliveries {
		d.sub.downstream.ref.Send(deliverMsg{tag: d.sub.tag, events: d.events})
		measure.EventsDispatchedCounter.WithValues(strategy).Inc(float64(len(d.events)))
		s.logger.Trace(ctx).
			Str(log.SubscriptionTagField, string(d.sub.tag)).
			Int(log.EventCountField, len(d.events)).
			Msg("events dispatched")
	}

	buffered := s.disp.Buffered()
	switch delta := buffered - s.prevBuffered; {
	case delta > 0:
		measure.EventsBufferedGauge.Inc(float64(delta))
		s.logger.Trace(ctx).
			Int(log.BufferedField, buffered).
			Msg("surplus events buffered")
	case delta < 0:
		measure.EventsBufferedGauge.Dec(float64(-delta))
	}
	s.prevBuffered = buffered
	return nil
}

// handleDeliver consumes a batch of upstream events and refills demand once
// it drops to the low water mark.
func (s *Stage) handleDeliver(ctx context.Context, msg deliverMsg) error {
	link, ok := s.upstreams[msg.tag]
	if !ok {
		// the subscription was cancelled while the batch was in flight
		s.logger.Trace(ctx).
			Str(log.SubscriptionTagField, string(msg.tag)).
			Int(log.EventCountField, len(msg.events)).
			Msg("discarding batch of cancelled subscription")
		return nil
	}
	link.consume(len(msg.events))

	ctx = ctxutil.ContextWithSubscriptionTag(ctx, string(msg.tag))
	switch s.role {
	case RoleConsumer:
		if err := s.callConsumer(ctx, msg.events); err != nil {
			return &HandlerError{StageID: s.id, Role: s.role, Reason: err}
		}
	case RoleProducerConsumer:
		out, err := s.callProducerConsumer(ctx, msg.events)
		if err != nil {
			return &HandlerError{StageID: s.id, Role: s.role, Reason: err}
		}
		if err := s.dispatch(ctx, out); err != nil {
			return err
		}
	case RoleProducer:
		s.logger.Warn(ctx).Msg("producer received an event batch, discarding it")
		return nil
	}

	s.maybeAsk(ctx, link)
	return nil
}

// handleCancel removes the subscription with the given tag from whichever
// side of it this stage is on and notifies the peer if the removal originated
// here. Cancelling never terminates either endpoint.
func (s *Stage) handleCancel(ctx context.Context, tag SubscriptionTag, reason error) error {
	if link, ok := s.upstreams[tag]; ok {
		delete(s.upstreams, tag)
		if link.pending && link.reply != nil {
			link.reply <- subscribeReply{err: &SubscribeError{
				Upstream:   link.upstream.name,
				Downstream: s.name,
				Reason:     cerrors.New("subscription cancelled during handshake"),
			}}
		}
		link.upstream.ref.Send(peerCancelMsg{tag: tag, reason: reason})
		s.logger.Debug(ctx).
			Str(log.SubscriptionTagField, string(tag)).
			Msg("subscription to upstream cancelled")
		return nil
	}

	if s.disp != nil {
		var cancelled *subscriber
		s.disp.Each(func(sub *subscriber) {
			if sub.tag == tag {
				cancelled = sub
			}
		})
		if cancelled != nil && s.disp.Remove(tag) {
			measure.SubscriptionsGauge.Dec()
			cancelled.downstream.ref.Send(peerCancelMsg{tag: tag, reason: reason})
			s.logger.Debug(ctx).
				Str(log.SubscriptionTagField, string(tag)).
				Msg("subscriber removed")
			// removing a subscriber can unblock production (e.g. it was the
			// one without demand under broadcast)
			return s.produce(ctx)
		}
	}
	return nil
}

// handlePeerExit reacts to the termination of a subscription peer. As the
// upstream side the stage just drops the dead subscriber and rebalances
// demand. As the downstream side the reaction is governed by the
// subscription's cancel mode: permanent links propagate any termination,
// transient links only abnormal ones, temporary links never.
func (s *Stage) handlePeerExit(ctx context.Context, msg exitMsg) (stop bool, err error) {
	if s.disp != nil {
		var dead []SubscriptionTag
		s.disp.Each(func(sub *subscriber) {
			if sub.downstream.id == msg.stageID {
				dead = append(dead, sub.tag)
			}
		})
		for _, tag := range dead {
			s.disp.Remove(tag)
			measure.SubscriptionsGauge.Dec()
		}
		if len(dead) > 0 {
			if err := s.produce(ctx); err != nil {
				return false, err
			}
		}
	}

	for tag, link := range s.upstreams {
		if link.upstream.id != msg.stageID {
			continue
		}
		delete(s.upstreams, tag)
		if link.pending && link.reply != nil {
			link.reply <- subscribeReply{err: &SubscribeError{
				Upstream:   link.upstream.name,
				Downstream: s.name,
				Reason:     ErrStageNotRunning,
			}}
			continue
		}

		// a stage may hold several subscriptions to the dead peer, each failed
		// link contributes its own reason
		switch link.opts.Cancel {
		case CancelPermanent:
			stop = true
			if msg.reason != nil {
				err = cerrors.Join(err, cerrors.Errorf("upstream stage %v terminated: %w", link.upstream.name, msg.reason))
			}
		case CancelTransient:
			if msg.reason != nil {
				stop = true
				err = cerrors.Join(err, cerrors.Errorf("upstream stage %v terminated: %w", link.upstream.name, msg.reason))
			}
		case CancelTemporary:
			s.logger.Info(ctx).
				Str(log.SubscriptionTagField, string(tag)).
				Str(log.ReasonField, errString(msg.reason)).
				Msg("upstream terminated, temporary subscription dropped")
		}
	}
	return stop, err
}

func (s *Stage) callProducer(ctx context.Context, demand int) (events []Event, err error) {
	start := time.Now()
	defer func() {
		measure.HandlerDurationTimer.WithValues(s.role.String()).UpdateSince(start)
		if p := recover(); p != nil {
			events, err = nil, cerrors.Errorf("handler panicked: %v", p)
		}
	}()
	return s.handler.(Producer).HandleDemand(ctx, demand)
}

func (s *Stage) callProducerConsumer(ctx context.Context, in []Event) (events []Event, err error) {
	start := time.Now()
	defer func() {
		measure.HandlerDurationTimer.WithValues(s.role.String()).UpdateSince(start)
		if p := recover(); p != nil {
			events, err = nil, cerrors.Errorf("handler panicked: %v", p)
		}
	}()
	return s.handler.(ProducerConsumer).HandleEvents(ctx, in)
}

func (s *Stage) callConsumer(ctx context.Context, in []Event) (err error) {
	start := time.Now()
	defer func() {
		measure.HandlerDurationTimer.WithValues(s.role.String()).UpdateSince(start)
		if p := recover(); p != nil {
			err = cerrors.Errorf("handler panicked: %v", p)
		}
	}()
	return s.handler.(Consumer).HandleEvents(ctx, in)
}

func errString(err error) string {
	if err == nil {
		return "normal"
	}
	return err.Error()
}
