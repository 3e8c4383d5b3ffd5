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

package stage_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/stageflow/stageflow/pkg/foundation/cerrors"
	"github.com/stageflow/stageflow/pkg/stage"
	"github.com/stageflow/stageflow/pkg/stage/mock"
	"go.uber.org/mock/gomock"
)

// failingProducer fails its first production round.
func failingProducer(reason error) stage.Producer {
	return stage.ProducerFunc(func(ctx context.Context, demand int) ([]stage.Event, error) {
		return nil, reason
	})
}

func TestStage_CancelModePermanent_FollowsNormalExit(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	rt := testRuntime(t)

	p, err := rt.StartProducer(ctx, "numbers", countingProducer(1))
	is.NoErr(err)
	c, err := rt.StartConsumer(ctx, "sink", chanConsumer(make(chan stage.Event, 10)))
	is.NoErr(err)
	_, err = rt.Subscribe(ctx, c, p, stage.SubscriptionOptions{Cancel: stage.CancelPermanent})
	is.NoErr(err)

	is.NoErr(rt.Stop(ctx, p))

	// a permanent subscription propagates even a normal upstream exit, the
	// downstream terminates normally
	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	is.NoErr(c.Wait(waitCtx))
	is.Equal(c.State(), stage.StateStopped)
}

func TestStage_CancelModePermanent_PropagatesFailure(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	rt := testRuntime(t)

	boom := cerrors.New("boom")
	p, err := rt.StartProducer(ctx, "numbers", failingProducer(boom))
	is.NoErr(err)
	c, err := rt.StartConsumer(ctx, "sink", chanConsumer(make(chan stage.Event, 10)))
	is.NoErr(err)
	_, err = rt.Subscribe(ctx, c, p, stage.SubscriptionOptions{Cancel: stage.CancelPermanent})
	is.NoErr(err)

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	err = c.Wait(waitCtx)
	is.True(cerrors.Is(err, boom)) // the upstream failure is the death reason
}

func TestStage_CancelModeTransient_SurvivesNormalExit(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	rt := testRuntime(t)

	p, err := rt.StartProducer(ctx, "numbers", countingProducer(1))
	is.NoErr(err)
	c, err := rt.StartConsumer(ctx, "sink", chanConsumer(make(chan stage.Event, 10)))
	is.NoErr(err)
	_, err = rt.Subscribe(ctx, c, p, stage.SubscriptionOptions{Cancel: stage.CancelTransient})
	is.NoErr(err)

	is.NoErr(rt.Stop(ctx, p))
	time.Sleep(100 * time.Millisecond)
	is.Equal(c.State(), stage.StateRunning)

	is.NoErr(rt.Shutdown(ctx))
}

func TestStage_CancelModeTransient_FollowsFailure(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	rt := testRuntime(t)

	boom := cerrors.New("boom")
	p, err := rt.StartProducer(ctx, "numbers", failingProducer(boom))
	is.NoErr(err)
	c, err := rt.StartConsumer(ctx, "sink", chanConsumer(make(chan stage.Event, 10)))
	is.NoErr(err)
	_, err = rt.Subscribe(ctx, c, p, stage.SubscriptionOptions{Cancel: stage.CancelTransient})
	is.NoErr(err)

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	err = c.Wait(waitCtx)
	is.True(cerrors.Is(err, boom))
}

func TestStage_CancelModeTemporary_SurvivesFailure(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	rt := testRuntime(t)

	boom := cerrors.New("boom")
	p, err := rt.StartProducer(ctx, "numbers", failingProducer(boom))
	is.NoErr(err)
	c, err := rt.StartConsumer(ctx, "sink", chanConsumer(make(chan stage.Event, 10)))
	is.NoErr(err)
	_, err = rt.Subscribe(ctx, c, p, stage.SubscriptionOptions{Cancel: stage.CancelTemporary})
	is.NoErr(err)

	// the upstream fails, the temporary subscription is dropped silently
	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	err = p.Wait(waitCtx)
	is.True(cerrors.Is(err, boom))

	time.Sleep(100 * time.Millisecond)
	is.Equal(c.State(), stage.StateRunning)

	is.NoErr(rt.Shutdown(ctx))
}

func TestStage_FailureReachesAllSubscriptionsToPeer(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	rt := testRuntime(t)

	boom := cerrors.New("boom")
	// fail only once both subscriptions declared their demand so that neither
	// handshake races with the producer's death
	p, err := rt.StartProducer(ctx, "numbers", stage.ProducerFunc(
		func(ctx context.Context, demand int) ([]stage.Event, error) {
			if demand < 2*stage.DefaultMaxDemand {
				return nil, nil
			}
			return nil, boom
		},
	))
	is.NoErr(err)
	c, err := rt.StartConsumer(ctx, "sink", chanConsumer(make(chan stage.Event, 10)))
	is.NoErr(err)

	_, err = rt.Subscribe(ctx, c, p, stage.SubscriptionOptions{})
	is.NoErr(err)
	_, err = rt.Subscribe(ctx, c, p, stage.SubscriptionOptions{})
	is.NoErr(err)

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	err = c.Wait(waitCtx)
	is.True(cerrors.Is(err, boom))
	// both permanent links contribute their reason to the death error
	is.Equal(strings.Count(err.Error(), "upstream stage"), 2)
}

func TestStage_UpstreamSurvivesDownstreamExit(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	rt := testRuntime(t)

	out := make(chan stage.Event, 100)
	p, err := rt.StartProducer(ctx, "numbers", countingProducer(100))
	is.NoErr(err)
	c1, err := rt.StartConsumer(ctx, "sink-1", chanConsumer(out))
	is.NoErr(err)
	c2, err := rt.StartConsumer(ctx, "sink-2", chanConsumer(out))
	is.NoErr(err)

	_, err = rt.Subscribe(ctx, c1, p, stage.SubscriptionOptions{MinDemand: 2, MaxDemand: 5})
	is.NoErr(err)
	_, err = rt.Subscribe(ctx, c2, p, stage.SubscriptionOptions{MinDemand: 2, MaxDemand: 5})
	is.NoErr(err)
	recvEvents(t, out, 10)

	// stopping one subscriber never affects the upstream, it rebalances the
	// remaining demand and keeps producing
	is.NoErr(rt.Stop(ctx, c1))
	is.Equal(p.State(), stage.StateRunning)
	recvEvents(t, out, 10)

	is.NoErr(rt.Shutdown(ctx))
}

func TestStage_HandlerPanicBecomesFailure(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	rt := testRuntime(t)

	p, err := rt.StartProducer(ctx, "numbers", countingProducer(10))
	is.NoErr(err)
	c, err := rt.StartConsumer(ctx, "sink", stage.ConsumerFunc(
		func(ctx context.Context, events []stage.Event) error {
			panic("unexpected payload")
		},
	))
	is.NoErr(err)
	_, err = rt.Subscribe(ctx, c, p, stage.SubscriptionOptions{})
	is.NoErr(err)

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	err = c.Wait(waitCtx)
	var handlerErr *stage.HandlerError
	is.True(cerrors.As(err, &handlerErr))
	is.Equal(handlerErr.Role, stage.RoleConsumer)

	// the panic is contained, the upstream keeps running
	time.Sleep(100 * time.Millisecond)
	is.Equal(p.State(), stage.StateRunning)

	is.NoErr(rt.Shutdown(ctx))
}

func TestStage_MockHandlers(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	rt := testRuntime(t)
	ctrl := gomock.NewController(t)

	producer := mock.NewProducer(ctrl)
	producer.EXPECT().
		HandleDemand(gomock.Any(), stage.DefaultMaxDemand).
		Return([]stage.Event{"a", "b", "c"}, nil)

	out := make(chan stage.Event, 10)
	consumer := mock.NewConsumer(ctrl)
	consumer.EXPECT().
		HandleEvents(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, events []stage.Event) error {
			for _, e := range events {
				out <- e
			}
			return nil
		})

	p, err := rt.StartProducer(ctx, "numbers", producer)
	is.NoErr(err)
	c, err := rt.StartConsumer(ctx, "sink", consumer)
	is.NoErr(err)
	_, err = rt.Subscribe(ctx, c, p, stage.SubscriptionOptions{})
	is.NoErr(err)

	is.Equal(recvEvents(t, out, 3), []stage.Event{"a", "b", "c"})

	is.NoErr(rt.Shutdown(ctx))
}
