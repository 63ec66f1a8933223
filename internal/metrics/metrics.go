// Package metrics defines the Prometheus vectors exposed at /metrics by
// internal/infra/prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolveDuration measures public redirect resolution latency by outcome;
	// it is observed by the redirect handler only, not by the SDK resolve route.
	ResolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "linkforty",
		Subsystem: "resolver",
		Name:      "resolve_duration_seconds",
		Help:      "Latency of link resolution by outcome.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})

	// ClicksTotal counts recorded click events by reason code.
	ClicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "linkforty",
		Subsystem: "clicks",
		Name:      "total",
		Help:      "Total click events recorded, by reason code.",
	}, []string{"reason"})

	// InstallsTotal counts reported installs by attribution outcome.
	InstallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "linkforty",
		Subsystem: "installs",
		Name:      "total",
		Help:      "Total installs reported, split by attributed/organic.",
	}, []string{"attributed"})

	// WebhookDeliveriesTotal counts webhook delivery attempts by outcome.
	WebhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "linkforty",
		Subsystem: "webhooks",
		Name:      "deliveries_total",
		Help:      "Total webhook delivery attempts, by success/failure.",
	}, []string{"outcome"})
)
