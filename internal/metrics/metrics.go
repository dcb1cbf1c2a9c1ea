// Package metrics exposes Prometheus counters for interactions, replications
// and webhook creation.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "anyedit"

// Metrics holds the bot's collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	sessions        *prometheus.CounterVec
	sessionDuration *prometheus.HistogramVec
	replications    *prometheus.CounterVec
	reposted        prometheus.Counter
	deleted         prometheus.Counter
	webhooksCreated prometheus.Counter
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interactions_total",
			Help:      "Interactions resolved, by kind and result.",
		}, []string{"kind", "result"}),
		sessionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "interaction_duration_seconds",
			Help:      "Time from receiving an interaction to its terminal response.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"kind"}),
		replications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replications_total",
			Help:      "Completed edits, by outcome.",
		}, []string{"status"}),
		reposted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_reposted_total",
			Help:      "Messages re-posted through webhooks.",
		}),
		deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_deleted_total",
			Help:      "Original messages deleted after a successful re-post.",
		}),
		webhooksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_created_total",
			Help:      "Webhooks created because a channel had none usable.",
		}),
	}
	m.registry.MustRegister(
		m.sessions,
		m.sessionDuration,
		m.replications,
		m.reposted,
		m.deleted,
		m.webhooksCreated,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// SessionResolved records one finished interaction.
func (m *Metrics) SessionResolved(kind, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(kind, result).Inc()
	m.sessionDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// Replicated records one completed edit.
func (m *Metrics) Replicated(status string, reposted, deleted int) {
	if m == nil {
		return
	}
	m.replications.WithLabelValues(status).Inc()
	m.reposted.Add(float64(reposted))
	m.deleted.Add(float64(deleted))
}

// WebhookCreated records a webhook creation.
func (m *Metrics) WebhookCreated(string) {
	if m == nil {
		return
	}
	m.webhooksCreated.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve listens on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"ok"}`)
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
