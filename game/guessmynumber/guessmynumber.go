// Package guessmynumber is the server's built-in game: players take turns
// guessing a secret number and the first correct guess wins.
package guessmynumber

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cyberinferno/go-gameserver/connection"
	"github.com/cyberinferno/go-gameserver/game"
	"github.com/cyberinferno/go-gameserver/logger"
	"github.com/cyberinferno/go-gameserver/packet"
	"github.com/cyberinferno/go-gameserver/utils"
)

const (
	// Name is the display name of the game.
	Name = "Guess My Number"

	// MinNumber and MaxNumber bound the secret.
	MinNumber = 1
	MaxNumber = 100
)

// Options configures new games.
type Options struct {
	// Players is the number of players per game (at least 1).
	Players int
	// TurnTimeout skips a player who does not answer in time; 0 waits
	// forever.
	TurnTimeout time.Duration
}

// NewFactory returns a game.Factory producing Guess My Number games.
func NewFactory(opts Options, log logger.Logger) game.Factory {
	return func(host game.Host) game.Game {
		return New(host, opts, log)
	}
}

type turnOutcome int

const (
	guessed turnOutcome = iota
	skipped
	left
	cancelled
)

// Game is one round of Guess My Number.
type Game struct {
	host        game.Host
	log         logger.Logger
	required    int
	turnTimeout time.Duration

	secret    int
	pickFirst func(players []*connection.Connection) *connection.Connection

	mu      sync.Mutex
	players []*connection.Connection
	labels  map[*connection.Connection]string
	gone    map[*connection.Connection]bool
	started bool
}

// New builds a pending game.
func New(host game.Host, opts Options, log logger.Logger) *Game {
	required := opts.Players
	if required < 1 {
		required = 1
	}

	return &Game{
		host:        host,
		log:         log.With(logger.F("game", Name)),
		required:    required,
		turnTimeout: opts.TurnTimeout,
		secret:      utils.RandomInRange(MinNumber, MaxNumber),
		pickFirst:   utils.GetRandomElement[*connection.Connection],
		labels:      make(map[*connection.Connection]string),
		gone:        make(map[*connection.Connection]bool),
	}
}

// Name implements game.Game.
func (g *Game) Name() string {
	return Name
}

// RequiredPlayers implements game.Game.
func (g *Game) RequiredPlayers() int {
	return g.required
}

// AddPlayer implements game.Game. Closed connections, duplicates and players
// beyond the required count are rejected.
func (g *Game) AddPlayer(c *connection.Connection) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c == nil || c.Closed() || g.started || len(g.players) >= g.required {
		return false
	}

	if slices.Contains(g.players, c) {
		return false
	}

	g.players = append(g.players, c)
	return true
}

// DisconnectClient implements game.Game. Before the game starts the seat is
// freed for someone else; afterwards the player is taken out of the turn
// rotation and the game goes on while anyone is left.
func (g *Game) DisconnectClient(c *connection.Connection) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !slices.Contains(g.players, c) {
		return
	}

	if !g.started {
		g.players = slices.DeleteFunc(g.players, func(p *connection.Connection) bool { return p == c })
		return
	}

	g.gone[c] = true
}

// Run implements game.Game.
func (g *Game) Run(ctx context.Context) {
	g.mu.Lock()
	g.started = true
	for i, p := range g.players {
		g.labels[p] = fmt.Sprintf("Player %d", i+1)
	}
	g.mu.Unlock()

	players := g.active()
	if len(players) == 0 {
		return
	}

	g.broadcast(fmt.Sprintf("Welcome to %s! I'm thinking of a number between %d and %d.", Name, MinNumber, MaxNumber))
	g.log.Info("game started", logger.F("players", len(players)))

	turn := slices.Index(players, g.pickFirst(players))
	for {
		players = g.active()
		if len(players) == 0 {
			g.log.Info("every player left")
			return
		}

		current := players[turn%len(players)]
		guess, outcome := g.takeTurn(ctx, current)

		switch outcome {
		case cancelled:
			g.broadcast("The game was cancelled.")
			return
		case left:
			// The next player slides into the current index.
			continue
		case skipped:
			turn++
			continue
		}

		label := g.label(current)
		if guess == g.secret {
			g.broadcast(fmt.Sprintf("%s guessed %d. That's correct, %s wins!", label, guess, label))
			g.log.Info("game won", logger.F("winner", label), logger.F("conn_id", current.ID()))
			for _, p := range g.active() {
				g.host.DisconnectClient(p, "Thanks for playing Guess My Number!")
			}

			return
		}

		hint := "too low"
		if guess > g.secret {
			hint = "too high"
		}

		g.broadcast(fmt.Sprintf("%s guessed %d: %s.", label, guess, hint))
		turn++
	}
}

func (g *Game) takeTurn(ctx context.Context, c *connection.Connection) (int, turnOutcome) {
	if err := c.Send(packet.New(packet.Input, fmt.Sprintf("Your turn. Enter a number between %d and %d:", MinNumber, MaxNumber))); err != nil {
		g.host.DisconnectClient(c, "")
		return 0, left
	}

	turnCtx := ctx
	if g.turnTimeout > 0 {
		var cancel context.CancelFunc
		turnCtx, cancel = context.WithTimeout(ctx, g.turnTimeout)
		defer cancel()
	}

	for {
		p, err := c.Next(turnCtx)
		switch {
		case ctx.Err() != nil:
			return 0, cancelled
		case errors.Is(err, context.DeadlineExceeded):
			_ = c.Send(packet.New(packet.Message, "Too slow, your turn is skipped."))
			return 0, skipped
		case err != nil:
			g.host.DisconnectClient(c, "")
			return 0, left
		}

		switch p.Command {
		case packet.Bye:
			g.host.DisconnectClient(c, "")
			return 0, left
		case packet.Input:
			n, err := strconv.Atoi(strings.TrimSpace(p.Message))
			if err != nil || n < MinNumber || n > MaxNumber {
				_ = c.Send(packet.New(packet.Input, fmt.Sprintf("That's not a number between %d and %d. Try again:", MinNumber, MaxNumber)))
				continue
			}

			return n, guessed
		}
	}
}

func (g *Game) active() []*connection.Connection {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]*connection.Connection, 0, len(g.players))
	for _, p := range g.players {
		if !g.gone[p] {
			out = append(out, p)
		}
	}

	return out
}

func (g *Game) label(c *connection.Connection) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.labels[c]
}

func (g *Game) broadcast(msg string) {
	for _, p := range g.active() {
		_ = p.Send(packet.New(packet.Message, msg))
	}
}
