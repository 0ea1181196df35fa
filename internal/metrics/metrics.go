package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OWMAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenki_owm_api_calls_total",
			Help: "Total OpenWeatherMap API calls",
		},
		[]string{"location", "endpoint", "status"},
	)

	OWMAPILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tenki_owm_api_latency_seconds",
			Help:    "OpenWeatherMap API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"location", "endpoint"},
	)

	LocationsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenki_locations_fetched_total",
			Help: "Fetch results per location",
		},
		[]string{"location", "result"},
	)

	DocumentsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tenki_documents_written_total",
			Help: "Total weather documents written to the data directory",
		},
	)

	LastFetchTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tenki_last_fetch_timestamp_seconds",
			Help: "Unix time of the last completed fetch cycle",
		},
	)

	AshBulletinsSeen = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenki_ash_bulletins_seen_total",
			Help: "New JMA ash-fall bulletins stored",
		},
		[]string{"volcano"},
	)

	PublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenki_publish_total",
			Help: "Document uploads to static hosting",
		},
		[]string{"status"},
	)

	AdvisoriesServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenki_advisories_served_total",
			Help: "Advisory reports rendered, by location and umbrella risk",
		},
		[]string{"location", "umbrella_risk"},
	)
)
