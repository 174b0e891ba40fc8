package server

import (
	"context"
	"fmt"
	"time"

	"github.com/cyberinferno/go-gameserver/game"
	"github.com/cyberinferno/go-gameserver/logger"
	"github.com/cyberinferno/go-gameserver/matchmaking"
	"github.com/cyberinferno/go-gameserver/metrics"
	"github.com/cyberinferno/go-gameserver/stopwatch"
)

// session is a running game and the handle needed to stop it.
type session struct {
	id     uint32
	game   game.Game
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *Server) startSession(m *matchmaking.Match) {
	ctx, cancel := context.WithCancel(s.sessionCtx)
	sess := &session{
		id:     m.ID,
		game:   m.Game,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.sessions.Store(sess.id, sess)
	s.total.Add(1)
	s.metrics.SessionStarted()

	ids := make([]uint32, len(m.Players))
	for i, c := range m.Players {
		ids[i] = c.ID()
	}

	log := s.log.With(logger.F("session_id", sess.id), logger.F("game", sess.game.Name()))
	log.Info(fmt.Sprintf("starting a %q game", sess.game.Name()), logger.F("players", ids))

	go s.runSession(ctx, sess, log)
}

func (s *Server) runSession(ctx context.Context, sess *session, log logger.Logger) {
	defer close(sess.done)
	defer sess.cancel()

	sw := stopwatch.Started()
	s.play(ctx, sess, log)
	elapsed := sw.Stop()

	s.sessions.Delete(sess.id)
	s.metrics.SessionEnded(elapsed)
	log.Info("game finished", logger.F("duration_ms", elapsed.Milliseconds()))

	// Players the game did not release itself. During shutdown the
	// broadcast takes care of them.
	if s.State() != Running {
		return
	}

	for _, c := range s.reg.Members(sess.id) {
		s.disconnect(c, ByeGameEnded, metrics.ReasonGameEnded)
	}
}

// play runs the game, turning a panic into a log entry.
func (s *Server) play(ctx context.Context, sess *session, log logger.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("game panicked", logger.F("panic", fmt.Sprint(r)))
		}
	}()

	sess.game.Run(ctx)
}

// waitSessions waits up to SessionGrace for every cancelled game to return.
func (s *Server) waitSessions() {
	timer := time.NewTimer(s.opts.SessionGrace)
	defer timer.Stop()

	for _, sess := range s.sessions.Values() {
		select {
		case <-sess.done:
		case <-timer.C:
			for _, left := range s.sessions.Values() {
				s.log.Warn("game did not stop in time, abandoning it",
					logger.F("session_id", left.id),
					logger.F("game", left.game.Name()))
			}

			return
		}
	}
}
