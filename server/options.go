package server

import (
	"context"
	"time"

	"github.com/cyberinferno/go-gameserver/connection"
	"github.com/cyberinferno/go-gameserver/game"
	"github.com/cyberinferno/go-gameserver/logger"
	"github.com/cyberinferno/go-gameserver/metrics"
	"github.com/cyberinferno/go-gameserver/registry"
	"github.com/cyberinferno/go-gameserver/throttle"
)

// Messages sent to clients by the server itself.
const (
	ByeDefault   = "Goodbye."
	ByeShutdown  = "The game server is being shut down."
	ByeGameEnded = "The game has ended."
	ByeThrottled = "Too many connections, try again later."
)

// NotifyFunc delivers a lifecycle announcement, for example to a chat
// webhook.
type NotifyFunc func(ctx context.Context, content string) error

// Options configures a Server. Zero durations fall back to DefaultOptions.
type Options struct {
	// Name appears in the welcome message and in logs.
	Name string
	// Addr is the TCP listen address, e.g. ":6000".
	Addr string
	// Factory builds each pending game. Required.
	Factory game.Factory

	// TickInterval is the idle wait between loop ticks.
	TickInterval time.Duration
	// DisconnectGrace is how long a bye is given to reach the client before
	// the stream is closed.
	DisconnectGrace time.Duration
	// AcceptGrace bounds the wait for in-flight handshakes at shutdown.
	AcceptGrace time.Duration
	// SessionGrace bounds the wait for cancelled games at shutdown.
	SessionGrace time.Duration

	// Connection tunes per-connection reads and writes. Its zero fields fall
	// back to connection.DefaultOptions.
	Connection connection.Options
	// Health is the lobby health predicate; nil means connection.IsHealthy.
	Health registry.HealthFunc
	// Limiter throttles new connections per host; nil disables throttling.
	Limiter throttle.Limiter
	// Metrics receives runtime metrics; nil uses an unexported registry.
	Metrics *metrics.Metrics
	// Notify is called on start and stop when set.
	Notify NotifyFunc
	// Logger defaults to logger.Nop().
	Logger logger.Logger
}

// DefaultOptions returns the default timings.
func DefaultOptions() Options {
	return Options{
		Name:            "Games",
		Addr:            ":6000",
		TickInterval:    10 * time.Millisecond,
		DisconnectGrace: 100 * time.Millisecond,
		AcceptGrace:     time.Second,
		SessionGrace:    2 * time.Second,
		Connection:      connection.DefaultOptions(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Name == "" {
		o.Name = d.Name
	}

	if o.TickInterval <= 0 {
		o.TickInterval = d.TickInterval
	}

	if o.DisconnectGrace < 0 {
		o.DisconnectGrace = 0
	} else if o.DisconnectGrace == 0 {
		o.DisconnectGrace = d.DisconnectGrace
	}

	if o.AcceptGrace <= 0 {
		o.AcceptGrace = d.AcceptGrace
	}

	if o.SessionGrace <= 0 {
		o.SessionGrace = d.SessionGrace
	}

	if o.Logger == nil {
		o.Logger = logger.Nop()
	}

	if o.Metrics == nil {
		o.Metrics = metrics.New("", nil)
	}

	return o
}
