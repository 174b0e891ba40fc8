// Package metrics defines the Prometheus collectors exported by the game
// server.
//
// Metrics collected:
//   - gameserver_connections: Gauge of known connections
//   - gameserver_lobby_size: Gauge of connections waiting for a game
//   - gameserver_active_sessions: Gauge of running games
//   - gameserver_sessions_started_total: Counter of games started
//   - gameserver_session_duration_seconds: Histogram of game run time
//   - gameserver_disconnects_total: Counter of disconnects by reason
//   - gameserver_throttled_total: Counter of connections refused by the throttle
//   - gameserver_tick_duration_seconds: Histogram of server loop tick time
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Disconnect reasons used as the "reason" label.
const (
	ReasonLeft      = "left"
	ReasonKicked    = "kicked"
	ReasonGameEnded = "game_ended"
	ReasonShutdown  = "shutdown"
	ReasonThrottled = "throttled"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "gameserver"

// Metrics holds the server's collectors.
type Metrics struct {
	connections     prometheus.Gauge
	lobby           prometheus.Gauge
	activeSessions  prometheus.Gauge
	sessionsStarted prometheus.Counter
	sessionDuration prometheus.Histogram
	disconnects     *prometheus.CounterVec
	throttled       prometheus.Counter
	tickDuration    prometheus.Histogram
}

// New registers the collectors with reg. A nil reg gets a private registry,
// which is useful when metrics are not exported.
//
// Parameters:
//   - namespace: Metric name prefix; empty means DefaultNamespace
//   - reg: Registerer to add the collectors to
//
// Returns:
//   - The Metrics
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	factory := promauto.With(reg)

	return &Metrics{
		connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Number of connections known to the server",
		}),

		lobby: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lobby_size",
			Help:      "Number of connections waiting in the lobby",
		}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of games currently running",
		}),

		sessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of games started",
		}),

		sessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Time from game start until its Run returned",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),

		disconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects_total",
			Help:      "Total number of disconnected clients by reason",
		}, []string{"reason"}),

		throttled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "throttled_total",
			Help:      "Total number of connections refused by the accept throttle",
		}),

		tickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Server loop tick duration in seconds, excluding the idle wait",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		}),
	}
}

// SetConnections records the number of known connections.
func (m *Metrics) SetConnections(n int) {
	m.connections.Set(float64(n))
}

// SetLobby records the lobby size.
func (m *Metrics) SetLobby(n int) {
	m.lobby.Set(float64(n))
}

// SessionStarted counts a started game.
func (m *Metrics) SessionStarted() {
	m.sessionsStarted.Inc()
	m.activeSessions.Inc()
}

// SessionEnded records a finished game and how long it ran.
func (m *Metrics) SessionEnded(d time.Duration) {
	m.activeSessions.Dec()
	m.sessionDuration.Observe(d.Seconds())
}

// Disconnect counts a disconnected client.
func (m *Metrics) Disconnect(reason string) {
	m.disconnects.WithLabelValues(reason).Inc()
}

// Throttled counts a connection refused by the throttle.
func (m *Metrics) Throttled() {
	m.throttled.Inc()
	m.disconnects.WithLabelValues(ReasonThrottled).Inc()
}

// ObserveTick records how long one loop tick took.
func (m *Metrics) ObserveTick(d time.Duration) {
	m.tickDuration.Observe(d.Seconds())
}
