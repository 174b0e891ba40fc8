// Package registry tracks every connection the server knows about, which of
// them are waiting in the lobby and which session each assigned connection
// belongs to. It also runs the lobby disconnect sweep.
package registry

import (
	"sync"

	"github.com/cyberinferno/go-gameserver/connection"
	"github.com/cyberinferno/go-gameserver/logger"
	"github.com/cyberinferno/go-gameserver/syncx"
)

// HealthFunc decides whether a waiting connection should stay in the lobby.
type HealthFunc func(c *connection.Connection) bool

// Registry is safe for concurrent use. The server loop adds, matches and
// sweeps, while games remove their players from their own goroutines.
// Changes that touch more than one collection hold mu, so a connection is
// never left assigned or queued after Remove.
type Registry struct {
	mu       sync.Mutex
	log      logger.Logger
	healthy  HealthFunc
	known    *syncx.Set[*connection.Connection]
	sessions *syncx.Map[*connection.Connection, uint32]
	lobby    *Lobby
}

// New creates an empty Registry.
//
// Parameters:
//   - log: Logger for cleanup events
//   - healthy: Lobby health predicate; nil means connection.IsHealthy
//
// Returns:
//   - The Registry
func New(log logger.Logger, healthy HealthFunc) *Registry {
	if healthy == nil {
		healthy = connection.IsHealthy
	}

	return &Registry{
		log:      log,
		healthy:  healthy,
		known:    syncx.NewSet[*connection.Connection](),
		sessions: syncx.NewMap[*connection.Connection, uint32](),
		lobby:    NewLobby(),
	}
}

// Add registers c and queues it at the lobby tail. Adding a known connection
// does nothing.
func (r *Registry) Add(c *connection.Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.known.Add(c) {
		return false
	}

	r.lobby.Push(c)
	return true
}

// Lobby returns the waiting queue.
func (r *Registry) Lobby() *Lobby {
	return r.lobby
}

// Assign records that c belongs to session id. The caller must already have
// taken c out of the lobby; a connection that is still queued, unknown or
// assigned elsewhere is refused.
//
// Parameters:
//   - c: A connection popped from the lobby
//   - id: The session it joins
//
// Returns:
//   - true if the assignment was recorded
func (r *Registry) Assign(c *connection.Connection, id uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.known.Contains(c) || r.lobby.Contains(c) {
		return false
	}

	if _, ok := r.sessions.Load(c); ok {
		return false
	}

	r.sessions.Store(c, id)
	return true
}

// Return puts a popped, unassigned connection back at the lobby tail. A
// connection removed since it was popped is not queued again.
func (r *Registry) Return(c *connection.Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.known.Contains(c) {
		return false
	}

	if _, ok := r.sessions.Load(c); ok {
		return false
	}

	return r.lobby.Push(c)
}

// Requeue undoes Assign for the connections in cs that still belong to
// session id and puts them back at the lobby head in the order given.
// Connections removed in the meantime are skipped.
//
// Parameters:
//   - id: The session the connections were assigned to
//   - cs: The connections to return, in their original queue order
//
// Returns:
//   - The connections that went back to the lobby
func (r *Registry) Requeue(id uint32, cs ...*connection.Connection) []*connection.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	var back []*connection.Connection
	for _, c := range cs {
		if !r.known.Contains(c) {
			continue
		}

		if sid, ok := r.sessions.Load(c); !ok || sid != id {
			continue
		}

		r.sessions.Delete(c)
		back = append(back, c)
	}

	r.lobby.PushFront(back...)
	return back
}

// SessionOf returns the session c is assigned to.
func (r *Registry) SessionOf(c *connection.Connection) (uint32, bool) {
	return r.sessions.Load(c)
}

// Members returns the known connections assigned to session id.
func (r *Registry) Members(id uint32) []*connection.Connection {
	var out []*connection.Connection
	r.sessions.Range(func(c *connection.Connection, sid uint32) bool {
		if sid == id {
			out = append(out, c)
		}

		return true
	})

	return out
}

// Contains reports whether c is known.
func (r *Registry) Contains(c *connection.Connection) bool {
	return r.known.Contains(c)
}

// Remove forgets c everywhere and closes its stream. Only the call that
// actually removed c returns true; later calls are no-ops.
func (r *Registry) Remove(c *connection.Connection) bool {
	r.mu.Lock()
	if !r.known.Remove(c) {
		r.mu.Unlock()
		return false
	}

	r.lobby.Remove(c)
	r.sessions.Delete(c)
	r.mu.Unlock()

	if err := c.Close(); err != nil {
		r.log.Debug("close failed", logger.F("conn_id", c.ID()), logger.Err(err))
	}

	return true
}

// Sweep checks every waiting connection with the health predicate and
// removes the unhealthy ones. Connections in a session are left to their
// game.
//
// Returns:
//   - The connections removed by this sweep
func (r *Registry) Sweep() []*connection.Connection {
	var removed []*connection.Connection
	for _, c := range r.lobby.Snapshot() {
		if r.healthy(c) {
			continue
		}

		if r.Remove(c) {
			r.log.Info("client left the lobby", logger.F("conn_id", c.ID()), logger.F("remote", c.RemoteAddr()))
			removed = append(removed, c)
		}
	}

	return removed
}

// Known returns a snapshot of every registered connection.
func (r *Registry) Known() []*connection.Connection {
	return r.known.Values()
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	return r.known.Size()
}
