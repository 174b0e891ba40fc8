// Package matchmaking moves waiting connections from the lobby into the
// pending game and hands over games that are ready to start.
//
// Connections are offered head first. A connection the pending game rejects
// goes back to the lobby tail and so loses its place to anyone who arrived
// after it; connections accepted on first offer keep strict arrival order.
// A pending game never holds players between rounds: if a round ends before
// the game fills, its players are handed back to the lobby head.
package matchmaking

import (
	"github.com/cyberinferno/go-gameserver/connection"
	"github.com/cyberinferno/go-gameserver/game"
	"github.com/cyberinferno/go-gameserver/logger"
	"github.com/cyberinferno/go-gameserver/registry"
)

// Match is a filled game ready to run.
type Match struct {
	ID      uint32
	Game    game.Game
	Players []*connection.Connection
}

// Matchmaker owns the pending game. It is driven by the server loop and is
// not safe for concurrent use.
type Matchmaker struct {
	reg     *registry.Registry
	factory game.Factory
	host    game.Host
	log     logger.Logger

	seq       uint32
	pending   game.Game
	pendingID uint32
	admitted  []*connection.Connection
}

// New creates a Matchmaker and builds the first pending game.
//
// Parameters:
//   - reg: Registry holding the lobby
//   - factory: Builds each new pending game
//   - host: Passed to the factory so games can disconnect players
//   - log: Logger
//
// Returns:
//   - The Matchmaker
func New(reg *registry.Registry, factory game.Factory, host game.Host, log logger.Logger) *Matchmaker {
	m := &Matchmaker{
		reg:     reg,
		factory: factory,
		host:    host,
		log:     log,
	}
	m.next()
	return m
}

// Pending returns the id and game currently being filled.
func (m *Matchmaker) Pending() (uint32, game.Game) {
	return m.pendingID, m.pending
}

// Fill runs one matchmaking round. While the lobby holds enough connections
// to complete the pending game, the head is popped and offered to it.
// Accepted connections are assigned to the pending session in the registry;
// rejected ones go back to the lobby tail. Once every lobby connection has
// been offered without an acceptance, or too few are left, the round ends:
// the pending game is told each of its players left and they return to the
// lobby head in their original order, where the disconnect sweep watches
// them again.
//
// Returns:
//   - The filled game, or nil if none filled this round
func (m *Matchmaker) Fill() *Match {
	lobby := m.reg.Lobby()
	offered := 0

	for {
		need := m.required() - len(m.admitted)
		if need <= 0 {
			return m.ready()
		}

		if lobby.Len() < need || offered >= lobby.Len() {
			m.release()
			return nil
		}

		c, ok := lobby.Pop()
		if !ok {
			m.release()
			return nil
		}

		if !m.pending.AddPlayer(c) {
			if m.reg.Return(c) {
				offered++
			}
			m.log.Debug("player rejected, requeued", logger.F("conn_id", c.ID()), logger.F("session_id", m.pendingID))
			continue
		}

		if !m.reg.Assign(c, m.pendingID) {
			// c vanished from the registry between Pop and Assign.
			m.pending.DisconnectClient(c)
			offered = 0
			continue
		}

		m.admitted = append(m.admitted, c)
		offered = 0
	}
}

func (m *Matchmaker) required() int {
	if n := m.pending.RequiredPlayers(); n > 0 {
		return n
	}

	return 1
}

// release hands the players of an unfilled pending game back to the lobby.
func (m *Matchmaker) release() {
	if len(m.admitted) == 0 {
		return
	}

	for _, c := range m.admitted {
		m.pending.DisconnectClient(c)
	}

	back := m.reg.Requeue(m.pendingID, m.admitted...)
	m.log.Debug("game not filled, players back in the lobby",
		logger.F("session_id", m.pendingID),
		logger.F("players", len(back)))
	m.admitted = nil
}

func (m *Matchmaker) ready() *Match {
	match := &Match{ID: m.pendingID, Game: m.pending, Players: m.admitted}
	m.log.Info("game is ready",
		logger.F("session_id", match.ID),
		logger.F("game", match.Game.Name()),
		logger.F("players", len(match.Players)))

	m.next()
	return match
}

func (m *Matchmaker) next() {
	m.seq++
	m.pendingID = m.seq
	m.pending = m.factory(m.host)
	m.admitted = nil
}
