package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry is served on /metrics by the ops server.
var Registry = prometheus.NewRegistry()

var (
	// TransitionsTotal counts lifecycle actions by result: ok, rejected, stale.
	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medcourier_load_transitions_total",
			Help: "Lifecycle actions applied to loads.",
		},
		[]string{"action", "result"},
	)

	LoadsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medcourier_loads_created_total",
			Help: "Loads created, by initial status.",
		},
		[]string{"status"},
	)

	// InviteRedemptionsTotal result: joined, exhausted, expired, rejected.
	InviteRedemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medcourier_invite_redemptions_total",
			Help: "Fleet invite redemption attempts.",
		},
		[]string{"result"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medcourier_notifications_total",
			Help: "Notifications dispatched, by kind and result.",
		},
		[]string{"kind", "result"},
	)

	NotificationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "medcourier_notification_latency_seconds",
			Help:    "Time spent delivering one notification.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	DistanceLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medcourier_distance_lookups_total",
			Help: "Distance provider calls, by result.",
		},
		[]string{"result"},
	)

	DistanceLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "medcourier_distance_latency_seconds",
			Help:    "Latency of distance provider calls.",
			Buckets: prometheus.DefBuckets,
		},
	)

	ExpiredQuotesSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "medcourier_driver_quotes_expired_total",
			Help: "Driver quotes expired by the sweeper.",
		},
	)

	LoadsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "medcourier_loads",
			Help: "Loads currently in each status.",
		},
		[]string{"status"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		TransitionsTotal,
		LoadsCreatedTotal,
		InviteRedemptionsTotal,
		NotificationsTotal,
		NotificationLatency,
		DistanceLookupsTotal,
		DistanceLatency,
		ExpiredQuotesSwept,
		LoadsByStatus,
	)
}
