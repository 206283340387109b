package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cryptofolio_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cryptofolio_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Price oracle metrics
	PriceLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cryptofolio_price_lookups_total",
			Help: "Total number of price oracle lookups",
		},
		[]string{"kind", "result"}, // kind: current|historical, result: hit|miss|error
	)

	PriceLookupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cryptofolio_price_lookup_duration_seconds",
			Help:    "Price oracle lookup duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)

	// Analytics metrics
	ReportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cryptofolio_report_duration_seconds",
			Help:    "Portfolio report section build duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"section"},
	)

	HoldingRecomputesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cryptofolio_holding_recomputes_total",
			Help: "Total number of holding cost-basis recomputations",
		},
		[]string{"result"},
	)

	RefreshRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cryptofolio_refresh_runs_total",
			Help: "Total number of bulk price refresh runs",
		},
		[]string{"result"},
	)
)
