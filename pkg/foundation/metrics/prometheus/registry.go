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

// Package prometheus contains an adapter that collects Stageflow metrics and
// delivers them to the prometheus client.
package prometheus

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stageflow/stageflow/pkg/foundation/metrics"
)

// NewRegistry returns a registry that is responsible for managing a collection
// of metrics.
//
// Labels allows constant labels to be added to all metrics created in this
// registry, although this parameter should be used responsibly.
func NewRegistry(labels map[string]string) *Registry {
	return &Registry{
		labels: labels,
	}
}

// Registry describes a set of metrics. It implements metrics.Registry as well
// as prometheus.Collector and can thus be used as an adapter to collect
// Stageflow metrics and deliver them to the prometheus client.
type Registry struct {
	labels  map[string]string
	mu      sync.Mutex
	metrics []prometheus.Collector
}

var (
	_ metrics.Registry     = (*Registry)(nil)
	_ prometheus.Collector = (*Registry)(nil)
)

func (r *Registry) NewCounter(name, help string, _ ...metrics.Option) metrics.Counter {
	c := &counter{pc: prometheus.NewCounter(prometheus.CounterOpts{
		Name:        name,
		Help:        help,
		ConstLabels: r.labels,
	})}
	r.add(c)
	return c
}

func (r *Registry) NewLabeledCounter(name, help string, labels []string, _ ...metrics.Option) metrics.LabeledCounter {
	c := &labeledCounter{pc: prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        name,
		Help:        help,
		ConstLabels: r.labels,
	}, labels)}
	r.add(c)
	return c
}

func (r *Registry) NewGauge(name, help string, _ ...metrics.Option) metrics.Gauge {
	g := &gauge{pg: prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        name,
		Help:        help,
		ConstLabels: r.labels,
	})}
	r.add(g)
	return g
}

func (r *Registry) NewLabeledGauge(name, help string, labels []string, _ ...metrics.Option) metrics.LabeledGauge {
	g := &labeledGauge{pg: prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        name,
		Help:        help,
		ConstLabels: r.labels,
	}, labels)}
	r.add(g)
	return g
}

func (r *Registry) NewTimer(name, help string, opts ...metrics.Option) metrics.Timer {
	t := &timer{ph: prometheus.NewHistogram(r.newHistogramOpts(name, help, opts))}
	r.add(t)
	return t
}

func (r *Registry) NewLabeledTimer(name, help string, labels []string, opts ...metrics.Option) metrics.LabeledTimer {
	t := &labeledTimer{ph: prometheus.NewHistogramVec(r.newHistogramOpts(name, help, opts), labels)}
	r.add(t)
	return t
}

func (r *Registry) newHistogramOpts(name, help string, opts []metrics.Option) prometheus.HistogramOpts {
	promOpts := prometheus.HistogramOpts{
		Name:        name,
		Help:        help,
		ConstLabels: r.labels,
	}
	for _, mopt := range opts {
		opt, ok := mopt.(option)
		if !ok {
			// skip non-prometheus options
			continue
		}
		promOpts = opt.apply(promOpts)
	}
	return promOpts
}

func (r *Registry) Describe(ch chan<- *prometheus.Desc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, metric := range r.metrics {
		metric.Describe(ch)
	}
}

func (r *Registry) Collect(ch chan<- prometheus.Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, metric := range r.metrics {
		metric.Collect(ch)
	}
}

func (r *Registry) add(collector prometheus.Collector) {
	r.mu.Lock()
	r.metrics = append(r.metrics, collector)
	r.mu.Unlock()
}
