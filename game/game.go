// Package game defines the contract between the server runtime and the games
// it hosts. The runtime knows nothing about a game beyond this interface: it
// offers connections to a pending game until the game has its required
// players, then runs it on its own goroutine.
package game

import (
	"context"

	"github.com/cyberinferno/go-gameserver/connection"
)

// Game is one session of a game. A Game value is started at most once.
type Game interface {
	// Name returns a display name used in logs and status output.
	Name() string

	// RequiredPlayers returns the fixed number of players needed to start.
	RequiredPlayers() int

	// AddPlayer offers c to the game. A game may reject a connection (for
	// example because it is full or the connection is closed); a rejection
	// must leave the game unchanged.
	//
	// Parameters:
	//   - c: The connection being admitted
	//
	// Returns:
	//   - true if the game took the player
	AddPlayer(c *connection.Connection) bool

	// DisconnectClient tells the game that one of its players has left or is
	// being removed by the server. The game decides how to continue. It may
	// be called from any goroutine, including from within the game's own call
	// to Host.DisconnectClient, so implementations must not hold a lock
	// across that call.
	DisconnectClient(c *connection.Connection)

	// Run plays the game to completion. It runs on its own goroutine, may
	// only touch its own connections, and should return promptly once ctx is
	// cancelled.
	Run(ctx context.Context)
}

// Host is the part of the server a game may call back into.
type Host interface {
	// DisconnectClient sends c a bye with reason, notifies the game that
	// owns c, and releases the connection. An empty reason means
	// "Goodbye.".
	DisconnectClient(c *connection.Connection, reason string)
}

// Factory builds a new pending game. The server calls it once at startup and
// again every time the pending game fills up and starts.
type Factory func(host Host) Game
