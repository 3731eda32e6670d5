// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kiln-foundation/kiln/lib/authorize"
	"github.com/kiln-foundation/kiln/lib/did"
	"github.com/kiln-foundation/kiln/lib/identity"
	"github.com/kiln-foundation/kiln/lib/revocation"
)

// metrics holds the daemon's Prometheus instruments. All instruments
// register against the daemon's own registry, not the global default,
// so tests can construct independent instances.
type metrics struct {
	decisions       *prometheus.CounterVec
	resolverLatency prometheus.Histogram
}

// newMetrics registers the daemon's instruments. The revocation
// registry size is exported as a gauge read at scrape time.
func newMetrics(registry *prometheus.Registry, revocations *revocation.Registry) *metrics {
	factory := promauto.With(registry)

	m := &metrics{
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kiln_authd_decisions_total",
			Help: "Authorization outcomes by decision and deny reason.",
		}, []string{"outcome", "reason"}),

		resolverLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kiln_authd_resolver_duration_seconds",
			Help:    "Identity resolution latency as seen by the evaluator, including cache hits.",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "kiln_authd_revoked_capabilities",
		Help: "Capabilities currently held in the revocation registry.",
	}, func() float64 { return float64(revocations.Len()) })

	return m
}

// observeDecision records one completed evaluation. Allows carry an
// empty reason label.
func (m *metrics) observeDecision(result authorize.Result) {
	reason := ""
	if result.Decision == authorize.Deny {
		reason = result.Reason.String()
	}
	m.decisions.WithLabelValues(result.Decision.String(), reason).Inc()
}

// observeError records an evaluation that failed with an
// infrastructure error instead of reaching a decision.
func (m *metrics) observeError() {
	m.decisions.WithLabelValues("error", "").Inc()
}

// instrumentResolver wraps a resolver so every Resolve call feeds the
// latency histogram. Wrap the outermost resolver: cache hits then show
// up as near-zero observations, which is the latency the evaluator
// actually experiences.
func (m *metrics) instrumentResolver(delegate identity.Resolver) identity.Resolver {
	return identity.ResolverFunc(func(ctx context.Context, id did.DID) (identity.Resolution, error) {
		start := time.Now()
		resolution, err := delegate.Resolve(ctx, id)
		m.resolverLatency.Observe(time.Since(start).Seconds())
		return resolution, err
	})
}

// metricsShutdownTimeout bounds how long an in-flight scrape can delay
// daemon shutdown.
const metricsShutdownTimeout = 5 * time.Second

// serveMetrics serves the Prometheus endpoint on address until ctx is
// cancelled.
func serveMetrics(ctx context.Context, address string, registry *prometheus.Registry, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: address, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", "address", address)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
