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

package measure

import (
	"github.com/stageflow/stageflow/pkg/foundation/metrics"
	"github.com/stageflow/stageflow/pkg/foundation/metrics/prometheus"
)

// Any changes in metrics defined below should also be reflected in the metrics
// documentation.
var (
	StagesGauge = metrics.NewLabeledGauge("stageflow_stages",
		"Number of running stages by role.",
		[]string{"role"})

	SubscriptionsGauge = metrics.NewGauge("stageflow_subscriptions",
		"Number of active subscriptions.")

	EventsDispatchedCounter = metrics.NewLabeledCounter("stageflow_events_dispatched_total",
		"Number of events dispatched to subscribers by dispatcher strategy.",
		[]string{"dispatcher"})

	EventsBufferedGauge = metrics.NewGauge("stageflow_events_buffered",
		"Number of produced events buffered upstream waiting for demand.")

	DemandRequestsCounter = metrics.NewCounter("stageflow_demand_requests_total",
		"Number of demand requests sent upstream.")

	HandlerDurationTimer = metrics.NewLabeledTimer("stageflow_handler_duration_seconds",
		"Amount of time spent in stage handlers by role.",
		[]string{"role"},
		prometheus.HistogramOpts{Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1}},
	)
)
