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
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/stageflow/stageflow/pkg/actor"
	"github.com/stageflow/stageflow/pkg/foundation/cchan"
	"github.com/stageflow/stageflow/pkg/foundation/cerrors"
	"github.com/stageflow/stageflow/pkg/foundation/log"
)

const DefaultSubscribeTimeout = time.Second * 5

// RuntimeConfig holds the configuration of a Runtime.
type RuntimeConfig struct {
	Logger log.CtxLogger
	// SubscribeTimeout bounds how long Subscribe and Cancel wait for the
	// handshake to complete (defaults to DefaultSubscribeTimeout).
	SubscribeTimeout time.Duration
}

// Runtime wires stages together and tears them down. It spawns one process
// per stage, all demand and event traffic afterwards flows directly between
// the stages without going through the runtime.
type Runtime struct {
	logger           log.CtxLogger
	system           *actor.System
	subscribeTimeout time.Duration

	m      sync.Mutex
	stages map[string]*Stage
}

// NewRuntime creates a Runtime ready to start stages.
func NewRuntime(cfg RuntimeConfig) *Runtime {
	timeout := cfg.SubscribeTimeout
	if timeout <= 0 {
		timeout = DefaultSubscribeTimeout
	}
	return &Runtime{
		logger:           cfg.Logger.WithComponent("stage.Runtime"),
		system:           actor.NewSystem(cfg.Logger),
		subscribeTimeout: timeout,
		stages:           make(map[string]*Stage),
	}
}

// StageOption configures a stage at construction time.
type StageOption func(*stageOptions)

type stageOptions struct {
	dispatcher DispatcherConfig
}

// WithDispatcher selects the dispatcher of a producing stage. Without this
// option the demand strategy is used. The option is meaningful only for
// Producer and ProducerConsumer roles.
func WithDispatcher(cfg DispatcherConfig) StageOption {
	return func(o *stageOptions) {
		o.dispatcher = cfg
	}
}

// StartProducer starts a stage that emits events in response to downstream
// demand. It returns once the stage is running.
func (r *Runtime) StartProducer(ctx context.Context, name string, h Producer, opts ...StageOption) (*Stage, error) {
	return r.start(ctx, name, RoleProducer, h, opts)
}

// StartProducerConsumer starts a stage that transforms upstream events into
// downstream events. It returns once the stage is running.
func (r *Runtime) StartProducerConsumer(ctx context.Context, name string, h ProducerConsumer, opts ...StageOption) (*Stage, error) {
	return r.start(ctx, name, RoleProducerConsumer, h, opts)
}

// StartConsumer starts a terminal stage that only performs side effects. It
// returns once the stage is running.
func (r *Runtime) StartConsumer(ctx context.Context, name string, h Consumer, opts ...StageOption) (*Stage, error) {
	return r.start(ctx, name, RoleConsumer, h, opts)
}

func (r *Runtime) start(ctx context.Context, name string, role Role, handler any, opts []StageOption) (*Stage, error) {
	var options stageOptions
	for _, opt := range opts {
		opt(&options)
	}

	var disp dispatcher
	if role.producing() {
		var err error
		disp, err = newDispatcher(options.dispatcher)
		if err != nil {
			return nil, cerrors.Errorf("start stage %q: %w", name, err)
		}
	}

	s := newStage(name, role, handler, disp, r.logger)
	s.ref = r.system.Spawn(name, s.run)

	// wait for the open hook to finish, the stage either comes up or dies
	state, err := s.state.Watch(ctx, func(st State) bool {
		return st == StateRunning || st == StateStopped
	})
	if err != nil {
		r.system.Kill(s.ref, err)
		return nil, cerrors.Errorf("start stage %q: %w", name, err)
	}
	if state == StateStopped {
		return nil, cerrors.Errorf("start stage %q: %w", name, s.ref.Err())
	}

	r.m.Lock()
	r.stages[s.id] = s
	r.m.Unlock()

	evt := r.logger.Info(ctx).
		Str(log.StageIDField, s.id).
		Str(log.StageNameField, name).
		Str(log.StageRoleField, role.String())
	if disp != nil {
		evt = evt.Str(log.DispatcherField, disp.Strategy().String())
	}
	evt.Msg("stage started")
	return s, nil
}

// Subscribe creates a demand-accounted link from the downstream stage to the
// upstream stage. The call is synchronous, it only returns once both stages
// registered the link and the initial demand request went out, or with an
// error if either side rejected it. The wait is bounded by ctx and the
// runtime's subscribe timeout.
func (r *Runtime) Subscribe(ctx context.Context, downstream, upstream *Stage, opts SubscriptionOptions) (SubscriptionTag, error) {
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return "", &SubscribeError{Upstream: upstream.name, Downstream: downstream.name, Reason: err}
	}
	if !downstream.ref.Alive() {
		return "", &SubscribeError{Upstream: upstream.name, Downstream: downstream.name, Reason: ErrStageNotRunning}
	}

	reply := make(chan subscribeReply, 1)
	downstream.ref.Send(subscribeDownstream{upstream: upstream, opts: opts, reply: reply})

	res, _, err := cchan.ChanOut[subscribeReply](reply).RecvTimeout(ctx, r.subscribeTimeout)
	if err != nil {
		return "", cerrors.Errorf("subscribe %q to %q: %w", downstream.name, upstream.name, err)
	}
	if res.err != nil {
		return "", res.err
	}

	r.logger.Info(ctx).
		Str(log.SubscriptionTagField, string(res.tag)).
		Str(log.StageNameField, downstream.name).
		Msg("subscription established")
	return res.tag, nil
}

// Cancel removes the subscription with the given tag. The stage may be either
// endpoint of the subscription. Cancel returns once the addressed stage has
// processed the removal and notified the peer, the peer handles it
// asynchronously. Cancelling an unknown or already cancelled tag is a no-op
// and succeeds.
func (r *Runtime) Cancel(ctx context.Context, s *Stage, tag SubscriptionTag, reason error) error {
	if !s.ref.Alive() {
		// a dead stage has no subscriptions left, nothing to cancel
		return nil
	}

	reply := make(chan error, 1)
	s.ref.Send(cancelMsg{tag: tag, reason: reason, reply: reply})

	res, _, err := cchan.ChanOut[error](reply).RecvTimeout(ctx, r.subscribeTimeout)
	if err != nil {
		// the stage died before processing the cancel, which achieves the
		// same result
		if !s.ref.Alive() {
			return nil
		}
		return cerrors.Errorf("cancel subscription %v: %w", tag, err)
	}
	return res
}

// Stop gracefully terminates the stage. The stage finishes the message it is
// currently processing, runs its close hook and exits normally. Stop blocks
// until the stage is dead or ctx is canceled.
func (r *Runtime) Stop(ctx context.Context, s *Stage) error {
	s.ref.Send(stopMsg{})

	_, _, err := cchan.ChanOut[struct{}](s.ref.Dead()).Recv(ctx)
	if err != nil {
		return cerrors.Errorf("stop stage %q: %w", s.name, err)
	}

	r.m.Lock()
	delete(r.stages, s.id)
	r.m.Unlock()
	return s.ref.Err()
}

// Shutdown gracefully stops all stages concurrently and waits for their
// processes to die.
func (r *Runtime) Shutdown(ctx context.Context) error {
	start := time.Now()

	r.m.Lock()
	stages := make([]*Stage, 0, len(r.stages))
	for _, s := range r.stages {
		stages = append(stages, s)
	}
	r.m.Unlock()

	p := pool.New().WithErrors()
	for _, s := range stages {
		p.Go(func() error {
			err := r.Stop(ctx, s)
			// stages terminated by a propagated failure are expected to be
			// dead by now, that is not a shutdown failure
			if err != nil && !s.ref.Alive() && ctx.Err() == nil {
				r.logger.Warn(ctx).
					Str(log.StageNameField, s.name).
					Str(log.ReasonField, err.Error()).
					Msg("stage had already terminated abnormally")
				return nil
			}
			return err
		})
	}
	if err := p.Wait(); err != nil {
		return cerrors.Errorf("shutdown: %w", err)
	}
	if err := r.system.Wait(ctx); err != nil {
		return err
	}

	r.logger.Info(ctx).
		Dur(log.DurationField, time.Since(start)).
		Msg("runtime shut down")
	return nil
}

// ActiveStages returns the number of stages the runtime currently tracks.
func (r *Runtime) ActiveStages() int {
	r.m.Lock()
	defer r.m.Unlock()
	return len(r.stages)
}
