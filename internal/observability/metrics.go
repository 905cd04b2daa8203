package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rendezvous_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rendezvous_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// LikesTotal counts like attempts by outcome
	// (recorded, mutual, self, not_found, rate_limited, error).
	LikesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rendezvous_likes_total",
		Help: "Total like attempts by outcome",
	}, []string{"outcome"})

	// MatchesTotal counts mutual matches reported to users.
	MatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rendezvous_matches_total",
		Help: "Total number of mutual matches",
	})

	// NotificationsTotal counts match notifications by channel and outcome.
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rendezvous_notifications_total",
		Help: "Total match notifications by channel and outcome",
	}, []string{"channel", "outcome"})

	// GeocodeRequests counts geocoder lookups by outcome (hit, miss, empty, error).
	GeocodeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rendezvous_geocode_requests_total",
		Help: "Total geocoding requests by outcome",
	}, []string{"outcome"})

	// WebSocketConnectionsTotal is the gauge of open notification sockets.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rendezvous_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rendezvous_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// DatabaseMetrics wraps DB access for recording query latency.
type DatabaseMetrics struct {
	db *gorm.DB
}

// NewDatabaseMetrics returns a new DatabaseMetrics instance.
func NewDatabaseMetrics(db *gorm.DB) *DatabaseMetrics {
	return &DatabaseMetrics{db: db}
}

const dbStartKey = "rendezvous:query_start"

// Register installs gorm callbacks that feed DatabaseQueryLatency for every statement.
func (m *DatabaseMetrics) Register() error {
	if m.db == nil {
		return nil
	}
	before := func(tx *gorm.DB) {
		tx.InstanceSet(dbStartKey, time.Now())
	}
	after := func(operation string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			v, ok := tx.InstanceGet(dbStartKey)
			if !ok {
				return
			}
			start, ok := v.(time.Time)
			if !ok {
				return
			}
			table := tx.Statement.Table
			if table == "" {
				table = "unknown"
			}
			DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
		}
	}

	cb := m.db.Callback()
	steps := []error{
		cb.Create().Before("gorm:create").Register("metrics:before_create", before),
		cb.Create().After("gorm:create").Register("metrics:after_create", after("create")),
		cb.Query().Before("gorm:query").Register("metrics:before_query", before),
		cb.Query().After("gorm:query").Register("metrics:after_query", after("query")),
		cb.Update().Before("gorm:update").Register("metrics:before_update", before),
		cb.Update().After("gorm:update").Register("metrics:after_update", after("update")),
		cb.Delete().Before("gorm:delete").Register("metrics:before_delete", before),
		cb.Delete().After("gorm:delete").Register("metrics:after_delete", after("delete")),
		cb.Row().Before("gorm:row").Register("metrics:before_row", before),
		cb.Row().After("gorm:row").Register("metrics:after_row", after("row")),
	}
	for _, err := range steps {
		if err != nil {
			return err
		}
	}
	return nil
}
