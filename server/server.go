// Package server runs the game server: it accepts TCP connections, welcomes
// them into the lobby, fills games through matchmaking, runs every game on
// its own goroutine and releases everything on shutdown.
//
// All lobby and matchmaking work happens on the single loop goroutine inside
// Run, one tick at a time. Handshakes run on their own goroutines and hand
// finished connections to the loop; games call back through DisconnectClient
// from theirs.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cyberinferno/go-gameserver/connection"
	"github.com/cyberinferno/go-gameserver/logger"
	"github.com/cyberinferno/go-gameserver/matchmaking"
	"github.com/cyberinferno/go-gameserver/metrics"
	"github.com/cyberinferno/go-gameserver/packet"
	"github.com/cyberinferno/go-gameserver/registry"
	"github.com/cyberinferno/go-gameserver/stopwatch"
	"github.com/cyberinferno/go-gameserver/syncx"
)

var (
	// ErrAlreadyStarted is returned by Run on a Server that has been run
	// before.
	ErrAlreadyStarted = errors.New("server already started")
	// ErrNoFactory is returned by Run when Options.Factory is nil.
	ErrNoFactory = errors.New("no game factory configured")
)

const (
	throttleTimeout = 2 * time.Second
	notifyTimeout   = 10 * time.Second
)

// Snapshot is a point-in-time view of the server for status reporting.
type Snapshot struct {
	Name            string `json:"name"`
	State           string `json:"state"`
	Addr            string `json:"addr"`
	Game            string `json:"game"`
	Connections     int    `json:"connections"`
	Lobby           int    `json:"lobby"`
	ActiveSessions  int    `json:"active_sessions"`
	SessionsStarted uint64 `json:"sessions_started"`
	Joined          uint64 `json:"joined"`
}

// Server is a games server. Create one with New and call Run once.
type Server struct {
	opts    Options
	log     logger.Logger
	metrics *metrics.Metrics

	state    atomic.Int32
	started  atomic.Bool
	ready    chan struct{}
	stop     chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	listener net.Listener
	gameName string

	reg      *registry.Registry
	mm       *matchmaking.Matchmaker
	sessions *syncx.Map[uint32, *session]
	total    atomic.Uint64
	joined   atomic.Uint64
	connSeq  atomic.Uint32

	handshakes sync.WaitGroup
	pendingMu  sync.Mutex
	pending    []*connection.Connection
	admitting  bool

	sessionCtx     context.Context
	cancelSessions context.CancelFunc
}

// New creates a Server. Nothing is bound until Run.
//
// Parameters:
//   - opts: Server options; see DefaultOptions for the defaults applied to
//     zero fields
//
// Returns:
//   - The Server
func New(opts Options) *Server {
	opts = opts.withDefaults()
	log := opts.Logger.With(logger.F("component", "server"), logger.F("server", opts.Name))

	s := &Server{
		opts:     opts,
		log:      log,
		metrics:  opts.Metrics,
		ready:    make(chan struct{}),
		stop:     make(chan struct{}),
		reg:      registry.New(log, opts.Health),
		sessions: syncx.NewMap[uint32, *session](),
	}
	s.sessionCtx, s.cancelSessions = context.WithCancel(context.Background())

	return s
}

// Run binds the listener and drives the loop until ctx is cancelled or
// Shutdown is called, then shuts down and returns. It can be called once.
//
// Parameters:
//   - ctx: Cancelling ctx starts the shutdown sequence
//
// Returns:
//   - nil after a clean shutdown
//   - An error if the server could not start
func (s *Server) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	if s.opts.Factory == nil {
		return ErrNoFactory
	}

	s.setState(Starting)
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		s.setState(Stopped)
		s.log.Error("server failed to start", logger.Err(err))
		return fmt.Errorf("%s server failed to start: %w", s.opts.Name, err)
	}

	s.mm = matchmaking.New(s.reg, s.opts.Factory, s, s.log.With(logger.F("component", "matchmaking")))
	_, pending := s.mm.Pending()

	s.mu.Lock()
	s.listener = ln
	s.gameName = pending.Name()
	s.mu.Unlock()

	s.pendingMu.Lock()
	s.admitting = true
	s.pendingMu.Unlock()

	acceptDone := make(chan struct{})
	go s.acceptLoop(ln, acceptDone)

	s.setState(Running)
	close(s.ready)
	s.log.Info(fmt.Sprintf("%s server started", s.opts.Name),
		logger.F("addr", ln.Addr().String()),
		logger.F("game", pending.Name()),
		logger.F("required_players", pending.RequiredPlayers()))
	s.notify(fmt.Sprintf("The %q games server is up on %s.", s.opts.Name, ln.Addr()))

	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	for running := true; running; {
		sw := stopwatch.Started()
		s.tick()
		s.metrics.ObserveTick(sw.Stop())

		select {
		case <-ctx.Done():
			running = false
		case <-s.stop:
			running = false
		case <-ticker.C:
		}
	}

	s.shutdown(ln, acceptDone)
	return nil
}

// Shutdown asks a running server to stop. Run returns once the shutdown
// sequence has finished. Calling it more than once, or before Run, is safe.
func (s *Server) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Ready is closed once the server is listening.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound listen address, or "" before Run has bound it.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// Snapshot returns current counters.
func (s *Server) Snapshot() Snapshot {
	s.mu.Lock()
	gameName := s.gameName
	s.mu.Unlock()

	return Snapshot{
		Name:            s.opts.Name,
		State:           s.State().String(),
		Addr:            s.Addr(),
		Game:            gameName,
		Connections:     s.reg.Len(),
		Lobby:           s.reg.Lobby().Len(),
		ActiveSessions:  s.sessions.Len(),
		SessionsStarted: s.total.Load(),
		Joined:          s.joined.Load(),
	}
}

// DisconnectClient implements game.Host. It sends c a bye carrying reason
// ("Goodbye." when empty), tells the owning game, gives the bye
// DisconnectGrace to arrive and then releases the connection. Concurrent and
// repeated calls for the same connection run the sequence once.
//
// Parameters:
//   - c: The connection to disconnect
//   - reason: Message sent with the bye
func (s *Server) DisconnectClient(c *connection.Connection, reason string) {
	s.disconnect(c, reason, metrics.ReasonKicked)
}

func (s *Server) setState(st State) {
	s.state.Store(int32(st))
}

func (s *Server) tick() {
	for _, c := range s.takePending() {
		if s.reg.Add(c) {
			s.joined.Add(1)
			s.log.Info("client joined the lobby", logger.F("conn_id", c.ID()), logger.F("remote", c.RemoteAddr()))
		}
	}

	if m := s.mm.Fill(); m != nil {
		s.startSession(m)
	}

	for range s.reg.Sweep() {
		s.metrics.Disconnect(metrics.ReasonLeft)
	}

	s.metrics.SetConnections(s.reg.Len())
	s.metrics.SetLobby(s.reg.Lobby().Len())
}

// acceptLoop accepts until the listener is closed. Each connection is
// handshaken on its own goroutine.
func (s *Server) acceptLoop(ln net.Listener, done chan<- struct{}) {
	defer close(done)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || s.State() != Running {
				return
			}

			s.log.Error(fmt.Sprintf("%s server accept error", s.opts.Name), logger.Err(err))
			continue
		}

		s.handshakes.Add(1)
		go s.handshake(conn)
	}
}

func (s *Server) handshake(conn net.Conn) {
	defer s.handshakes.Done()

	c := connection.New(s.connSeq.Add(1), conn, s.log, s.opts.Connection)

	if s.opts.Limiter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), throttleTimeout)
		ok, err := s.opts.Limiter.Allow(ctx, c.RemoteAddr())
		cancel()

		if err != nil {
			s.log.Warn("throttle check failed, letting client in", logger.F("remote", c.RemoteAddr()), logger.Err(err))
		} else if !ok {
			s.log.Info("client throttled", logger.F("conn_id", c.ID()), logger.F("remote", c.RemoteAddr()))
			s.metrics.Throttled()
			_ = c.Send(packet.New(packet.Bye, ByeThrottled))
			time.Sleep(s.opts.DisconnectGrace)
			_ = c.Close()
			return
		}
	}

	welcome := fmt.Sprintf("Welcome to the %q Games Server.\n", s.opts.Name)
	if err := c.Send(packet.New(packet.Message, welcome)); err != nil {
		_ = c.Close()
		return
	}

	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	if !s.admitting {
		// Shutdown gave up waiting for this handshake.
		_ = c.Send(packet.New(packet.Bye, ByeShutdown))
		_ = c.Close()
		return
	}

	s.pending = append(s.pending, c)
}

func (s *Server) takePending() []*connection.Connection {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	out := s.pending
	s.pending = nil
	return out
}

func (s *Server) closeAdmission() []*connection.Connection {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	s.admitting = false
	out := s.pending
	s.pending = nil
	return out
}

func (s *Server) disconnect(c *connection.Connection, reason, metricReason string) {
	if c == nil || !c.MarkLeaving() {
		return
	}

	if reason == "" {
		reason = ByeDefault
	}

	s.log.Info("disconnecting client",
		logger.F("conn_id", c.ID()),
		logger.F("remote", c.RemoteAddr()),
		logger.F("reason", reason))

	if err := c.Send(packet.New(packet.Bye, reason)); err != nil {
		s.log.Debug("bye not delivered", logger.F("conn_id", c.ID()), logger.Err(err))
	}

	if id, ok := s.reg.SessionOf(c); ok {
		if sess, ok := s.sessions.Load(id); ok {
			sess.game.DisconnectClient(c)
		}
	}

	time.Sleep(s.opts.DisconnectGrace)

	if s.reg.Remove(c) {
		s.metrics.Disconnect(metricReason)
	} else {
		_ = c.Close()
	}
}

func (s *Server) shutdown(ln net.Listener, acceptDone <-chan struct{}) {
	s.setState(ShuttingDown)
	s.log.Info(fmt.Sprintf("shutting down %s server", s.opts.Name))

	_ = ln.Close()
	<-acceptDone

	handshakesDone := make(chan struct{})
	go func() {
		s.handshakes.Wait()
		close(handshakesDone)
	}()

	select {
	case <-handshakesDone:
	case <-time.After(s.opts.AcceptGrace):
		s.log.Warn("gave up waiting for handshakes")
	}

	for _, c := range s.closeAdmission() {
		s.reg.Add(c)
	}

	s.cancelSessions()
	s.waitSessions()

	var g errgroup.Group
	for _, c := range s.reg.Known() {
		g.Go(func() error {
			s.disconnect(c, ByeShutdown, metrics.ReasonShutdown)
			return nil
		})
	}
	_ = g.Wait()

	s.metrics.SetConnections(s.reg.Len())
	s.metrics.SetLobby(s.reg.Lobby().Len())
	s.setState(Stopped)

	s.log.Info(fmt.Sprintf("%s server stopped", s.opts.Name), logger.F("sessions_started", s.total.Load()))
	s.notify(fmt.Sprintf("The %q games server has shut down.", s.opts.Name))
}

func (s *Server) notify(content string) {
	if s.opts.Notify == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	if err := s.opts.Notify(ctx, content); err != nil {
		s.log.Warn("lifecycle notification failed", logger.Err(err))
	}
}
