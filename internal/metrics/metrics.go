package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ==========================================================================
	// HTTP Metrics
	// ==========================================================================
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// ==========================================================================
	// Database Metrics
	// ==========================================================================
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_query_total",
			Help: "Total number of database queries",
		},
		[]string{"query_type", "table"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"query_type", "table"},
	)

	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// ==========================================================================
	// Auction Lifecycle Metrics
	// ==========================================================================
	AuctionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "auctions_active_total",
			Help: "Number of auctions currently tracked by the manager, in any status",
		},
	)

	AuctionsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auctions_created_total",
			Help: "Total number of auctions created",
		},
	)

	AuctionsCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auctions_completed_total",
			Help: "Total number of auctions that reached COMPLETED",
		},
	)

	AuctionStatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_status_transitions_total",
			Help: "Total number of WAITING/IN_PROGRESS/COMPLETED transitions",
		},
		[]string{"from", "to"},
	)

	// ==========================================================================
	// Bidding Metrics
	// ==========================================================================
	BidsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_bids_total",
			Help: "Total number of bid attempts",
		},
		[]string{"result"}, // accepted, rejected
	)

	BidAmount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auction_bid_amount",
			Help:    "Distribution of accepted bid amounts in points",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"auction_id"},
	)

	UserSoldTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auction_users_sold_total",
			Help: "Total number of users sold (bid settled or seated by the single-team shortcut)",
		},
	)

	TimerExpiriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auction_timer_expiries_total",
			Help: "Total number of countdown timer expiries that settled a user",
		},
	)

	// ==========================================================================
	// Gateway Metrics
	// ==========================================================================
	GatewayConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_connections_active",
			Help: "Number of currently connected websocket sessions",
		},
	)

	GatewayHandshakesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_handshakes_total",
			Help: "Total number of websocket handshake outcomes",
		},
		[]string{"outcome"}, // ok, invalid_token, auction_not_found
	)

	GatewayRateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_rate_limited_total",
			Help: "Total number of inbound frames rejected by the per-connection rate limiter",
		},
	)

	// ==========================================================================
	// Broadcast Hub Metrics
	// ==========================================================================
	HubQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_queue_depth",
			Help: "Current depth of a broadcast hub's serialization queue",
		},
	)

	HubSinksEvictedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_sinks_evicted_total",
			Help: "Total number of sinks evicted for a full outbox or a write failure",
		},
	)

	// ==========================================================================
	// External API Metrics
	// ==========================================================================
	ExternalAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "external_api_calls_total",
			Help: "Total external API calls",
		},
		[]string{"service", "endpoint", "status"},
	)

	ExternalAPILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "external_api_latency_seconds",
			Help:    "External API call latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "endpoint"},
	)
)
