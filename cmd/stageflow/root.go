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
	"net/http"
	"os/signal"
	"syscall"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stageflow/stageflow/pkg/foundation/cerrors"
	"github.com/stageflow/stageflow/pkg/foundation/ctxutil"
	"github.com/stageflow/stageflow/pkg/foundation/log"
	"github.com/stageflow/stageflow/pkg/foundation/metrics"
	"github.com/stageflow/stageflow/pkg/foundation/metrics/prometheus"
)

type rootConfig struct {
	dispatcher string
	events     int

	logLevel  string
	logFormat string

	metricsAddress string
}

func rootCmd() *cobra.Command {
	var cfg rootConfig

	cmd := &cobra.Command{
		Use:   "stageflow",
		Short: "Run a demand-driven demo pipeline",
		Long: `Stageflow runs a small demo pipeline (numbers -> transform -> sink) with a
selectable dispatcher and prints the consumed events as JSON lines. Flow is
regulated entirely by downstream demand.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.dispatcher, "dispatcher", "demand", "dispatcher strategy (demand, broadcast or partition)")
	cmd.Flags().IntVar(&cfg.events, "events", 100, "number of events to produce")
	cmd.Flags().StringVar(&cfg.logLevel, "log.level", "info", "sets logging level (trace, debug, info, warn, error)")
	cmd.Flags().StringVar(&cfg.logFormat, "log.format", "cli", "sets logging format (cli, json)")
	cmd.Flags().StringVar(&cfg.metricsAddress, "metrics.address", "", "address to serve prometheus metrics on (disabled when empty)")
	return cmd
}

func run(ctx context.Context, cfg rootConfig) error {
	level, err := zerolog.ParseLevel(cfg.logLevel)
	if err != nil {
		return cerrors.Errorf("invalid log level %q: %w", cfg.logLevel, err)
	}
	format, err := log.ParseFormat(cfg.logFormat)
	if err != nil {
		return err
	}
	logger := log.InitLogger(level, format).CtxHook(
		ctxutil.StageIDLogCtxHook{},
		ctxutil.SubscriptionTagLogCtxHook{},
	)
	zerolog.DefaultContextLogger = &logger.Logger

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.metricsAddress != "" {
		srv := serveMetrics(cfg.metricsAddress, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			//nolint:contextcheck // the run context is done at this point
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	return runPipeline(ctx, cfg, logger)
}

// serveMetrics registers the prometheus adapter as a metrics destination and
// exposes it over HTTP.
func serveMetrics(address string, logger log.CtxLogger) *http.Server {
	registry := prometheus.NewRegistry(nil)
	metrics.Register(registry)

	promRegistry := promclient.NewRegistry()
	promRegistry.MustRegister(
		registry,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		err := srv.ListenAndServe()
		if err != nil && !cerrors.Is(err, http.ErrServerClosed) {
			logger.Err(context.Background(), err).Msg("metrics server stopped")
		}
	}()
	logger.Info(context.Background()).Str(log.ServerAddressField, address).Msg("serving metrics")
	return srv
}
