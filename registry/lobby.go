package registry

import (
	"slices"
	"sync"

	"github.com/cyberinferno/go-gameserver/connection"
)

// Lobby is the FIFO queue of connections waiting for a game.
type Lobby struct {
	mu    sync.Mutex
	queue []*connection.Connection
}

// NewLobby returns an empty Lobby.
func NewLobby() *Lobby {
	return &Lobby{}
}

// Push appends c to the tail. Connections already queued are not added
// twice.
func (l *Lobby) Push(c *connection.Connection) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if slices.Contains(l.queue, c) {
		return false
	}

	l.queue = append(l.queue, c)
	return true
}

// PushFront puts cs at the head in the given order, ahead of everyone
// already waiting. Connections already queued are skipped.
func (l *Lobby) PushFront(cs ...*connection.Connection) {
	l.mu.Lock()
	defer l.mu.Unlock()

	front := make([]*connection.Connection, 0, len(cs))
	for _, c := range cs {
		if !slices.Contains(l.queue, c) && !slices.Contains(front, c) {
			front = append(front, c)
		}
	}

	l.queue = append(front, l.queue...)
}

// Pop removes and returns the head of the queue.
func (l *Lobby) Pop() (*connection.Connection, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) == 0 {
		return nil, false
	}

	c := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return c, true
}

// Remove takes c out of the queue wherever it is and reports whether it was
// queued.
func (l *Lobby) Remove(c *connection.Connection) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := slices.Index(l.queue, c)
	if i < 0 {
		return false
	}

	l.queue = slices.Delete(l.queue, i, i+1)
	return true
}

// Contains reports whether c is queued.
func (l *Lobby) Contains(c *connection.Connection) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Contains(l.queue, c)
}

// Len returns the queue length.
func (l *Lobby) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Snapshot returns a copy of the queue, head first.
func (l *Lobby) Snapshot() []*connection.Connection {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.queue)
}
