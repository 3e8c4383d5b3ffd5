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

package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stageflow/stageflow/pkg/foundation/metrics"
)

type counter struct {
	pc prometheus.Counter
}

func (c *counter) Inc(vs ...float64) {
	if len(vs) == 0 {
		c.pc.Inc()
		return
	}
	for _, v := range vs {
		c.pc.Add(v)
	}
}

func (c *counter) Describe(ch chan<- *prometheus.Desc) { c.pc.Describe(ch) }
func (c *counter) Collect(ch chan<- prometheus.Metric) { c.pc.Collect(ch) }

type labeledCounter struct {
	pc *prometheus.CounterVec
}

func (c *labeledCounter) WithValues(vs ...string) metrics.Counter {
	return &counter{pc: c.pc.WithLabelValues(vs...)}
}

func (c *labeledCounter) Describe(ch chan<- *prometheus.Desc) { c.pc.Describe(ch) }
func (c *labeledCounter) Collect(ch chan<- prometheus.Metric) { c.pc.Collect(ch) }

type gauge struct {
	pg prometheus.Gauge
}

func (g *gauge) Inc(vs ...float64) {
	if len(vs) == 0 {
		g.pg.Inc()
		return
	}
	for _, v := range vs {
		g.pg.Add(v)
	}
}

func (g *gauge) Dec(vs ...float64) {
	if len(vs) == 0 {
		g.pg.Dec()
		return
	}
	for _, v := range vs {
		g.pg.Sub(v)
	}
}

func (g *gauge) Set(v float64) { g.pg.Set(v) }

func (g *gauge) Describe(ch chan<- *prometheus.Desc) { g.pg.Describe(ch) }
func (g *gauge) Collect(ch chan<- prometheus.Metric) { g.pg.Collect(ch) }

type labeledGauge struct {
	pg *prometheus.GaugeVec
}

func (g *labeledGauge) WithValues(vs ...string) metrics.Gauge {
	return &gauge{pg: g.pg.WithLabelValues(vs...)}
}

func (g *labeledGauge) Describe(ch chan<- *prometheus.Desc) { g.pg.Describe(ch) }
func (g *labeledGauge) Collect(ch chan<- prometheus.Metric) { g.pg.Collect(ch) }

// timer collects durations as a histogram of seconds.
type timer struct {
	ph prometheus.Histogram
}

func (t *timer) Update(d time.Duration)   { t.ph.Observe(d.Seconds()) }
func (t *timer) UpdateSince(ts time.Time) { t.ph.Observe(time.Since(ts).Seconds()) }

func (t *timer) Describe(ch chan<- *prometheus.Desc) { t.ph.Describe(ch) }
func (t *timer) Collect(ch chan<- prometheus.Metric) { t.ph.Collect(ch) }

type labeledTimer struct {
	ph *prometheus.HistogramVec
}

func (t *labeledTimer) WithValues(vs ...string) metrics.Timer {
	return &timer{ph: t.ph.WithLabelValues(vs...).(prometheus.Histogram)}
}

func (t *labeledTimer) Describe(ch chan<- *prometheus.Desc) { t.ph.Describe(ch) }
func (t *labeledTimer) Collect(ch chan<- prometheus.Metric) { t.ph.Collect(ch) }
