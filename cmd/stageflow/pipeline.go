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

package main

import (
	"context"
	"os"
	"sync"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/stageflow/stageflow/pkg/foundation/cerrors"
	"github.com/stageflow/stageflow/pkg/foundation/log"
	"github.com/stageflow/stageflow/pkg/stage"
)

// runPipeline wires the demo topology for the selected dispatcher and blocks
// until the sinks printed the requested number of events or the context is
// canceled. The producer emits integers indefinitely, flow is bounded purely
// by sink demand.
func runPipeline(ctx context.Context, cfg rootConfig, logger log.CtxLogger) error {
	rt := stage.NewRuntime(stage.RuntimeConfig{Logger: logger})

	done := make(chan struct{})
	var setupErr error
	switch cfg.dispatcher {
	case "demand":
		setupErr = demandTopology(ctx, rt, cfg.events, done)
	case "broadcast":
		setupErr = broadcastTopology(ctx, rt, cfg.events, done)
	case "partition":
		setupErr = partitionTopology(ctx, rt, cfg.events, done)
	default:
		setupErr = cerrors.Errorf("unknown dispatcher %q", cfg.dispatcher)
	}
	if setupErr != nil {
		return setupErr
	}

	select {
	case <-done:
		logger.Info(ctx).Int("events", cfg.events).Msg("demo complete")
	case <-ctx.Done():
		logger.Info(ctx).Msg("interrupted, shutting down")
	}
	return rt.Shutdown(context.WithoutCancel(ctx))
}

// demandTopology runs numbers -> double -> sink with the default demand
// dispatcher.
func demandTopology(ctx context.Context, rt *stage.Runtime, events int, done chan struct{}) error {
	p, err := rt.StartProducer(ctx, "numbers", numbersProducer(0))
	if err != nil {
		return err
	}
	double, err := rt.StartProducerConsumer(ctx, "double", stage.ProducerConsumerFunc(
		func(ctx context.Context, events []stage.Event) ([]stage.Event, error) {
			out := make([]stage.Event, len(events))
			for i, e := range events {
				out[i] = e.(int) * 2
			}
			return out, nil
		},
	))
	if err != nil {
		return err
	}
	counter := &countdown{remaining: int64(events), done: done}
	sink, err := rt.StartConsumer(ctx, "sink", newJSONSink("sink", counter))
	if err != nil {
		return err
	}

	if _, err := rt.Subscribe(ctx, double, p, stage.SubscriptionOptions{}); err != nil {
		return err
	}
	_, err = rt.Subscribe(ctx, sink, double, stage.SubscriptionOptions{})
	return err
}

// broadcastTopology runs numbers -> {sink-a, sink-b}, every event goes to
// both sinks.
func broadcastTopology(ctx context.Context, rt *stage.Runtime, events int, done chan struct{}) error {
	p, err := rt.StartProducer(ctx, "numbers", numbersProducer(0),
		stage.WithDispatcher(stage.DispatcherConfig{Strategy: stage.DispatchBroadcast}))
	if err != nil {
		return err
	}

	counter := &countdown{remaining: int64(2 * events), done: done}
	for _, name := range []string{"sink-a", "sink-b"} {
		sink, err := rt.StartConsumer(ctx, name, newJSONSink(name, counter))
		if err != nil {
			return err
		}
		if _, err := rt.Subscribe(ctx, sink, p, stage.SubscriptionOptions{}); err != nil {
			return err
		}
	}
	return nil
}

// partitionTopology runs numbers -> {sink-even, sink-odd}, events are routed
// by parity.
func partitionTopology(ctx context.Context, rt *stage.Runtime, events int, done chan struct{}) error {
	// an event routed to an unbound partition fails the producer, so
	// production is gated until both partitions declared their window
	p, err := rt.StartProducer(ctx, "numbers", numbersProducer(2*stage.DefaultMaxDemand),
		stage.WithDispatcher(stage.DispatcherConfig{
			Strategy:   stage.DispatchPartition,
			Partitions: []string{"even", "odd"},
			Hash: func(e stage.Event) string {
				if e.(int)%2 == 0 {
					return "even"
				}
				return "odd"
			},
		}))
	if err != nil {
		return err
	}

	counter := &countdown{remaining: int64(events), done: done}
	for _, partition := range []string{"even", "odd"} {
		sink, err := rt.StartConsumer(ctx, "sink-"+partition, newJSONSink("sink-"+partition, counter))
		if err != nil {
			return err
		}
		if _, err := rt.Subscribe(ctx, sink, p, stage.SubscriptionOptions{Partition: partition}); err != nil {
			return err
		}
	}
	return nil
}

// numbersProducer emits consecutive integers against demand, indefinitely.
// While the total demand is below gate no events are emitted, the latch opens
// once and stays open.
func numbersProducer(gate int) stage.Producer {
	next := 0
	armed := gate <= 0
	return stage.ProducerFunc(func(ctx context.Context, demand int) ([]stage.Event, error) {
		if !armed {
			if demand < gate {
				return nil, nil
			}
			armed = true
		}
		events := make([]stage.Event, demand)
		for i := range events {
			events[i] = next
			next++
		}
		return events, nil
	})
}

// sinkRecord is one JSON line printed per consumed event.
type sinkRecord struct {
	Sink  string `json:"sink"`
	Event any    `json:"event"`
}

var stdoutMu sync.Mutex

// newJSONSink prints every event as a JSON line and counts it toward the
// countdown. Sinks sharing one countdown serialize their stdout writes per
// line.
func newJSONSink(name string, counter *countdown) stage.Consumer {
	return stage.ConsumerFunc(func(ctx context.Context, events []stage.Event) error {
		for _, e := range events {
			line, err := json.Marshal(sinkRecord{Sink: name, Event: e})
			if err != nil {
				return cerrors.Errorf("marshal event: %w", err)
			}
			stdoutMu.Lock()
			_, err = os.Stdout.Write(append(line, '\n'))
			stdoutMu.Unlock()
			if err != nil {
				return cerrors.Errorf("write event: %w", err)
			}
		}
		counter.sub(len(events))
		return nil
	})
}

// countdown closes done once remaining reaches zero.
type countdown struct {
	remaining int64
	done      chan struct{}
	once      sync.Once
}

func (c *countdown) sub(n int) {
	if atomic.AddInt64(&c.remaining, -int64(n)) <= 0 {
		c.once.Do(func() { close(c.done) })
	}
}
