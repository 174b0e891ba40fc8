// Package gameclient provides an event-driven client for the game server. It
// decodes packets from the connection and notifies callers of packets, state
// changes and errors via registered handlers.
package gameclient

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/cyberinferno/go-gameserver/packet"
)

var (
	// ErrClientClosed is returned when using a client after Close.
	ErrClientClosed = errors.New("client is closed")
	// ErrNotConnected is returned by Send while no connection is up.
	ErrNotConnected = errors.New("not connected")
)

// State represents the current state of the client's connection.
type State int

const (
	Disconnected State = iota // Not connected
	Connecting                // Connection attempt in progress
	Connected                 // Successfully connected
	Closed                    // Client has been closed and cannot reconnect
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// StateEvent is emitted when the connection state changes.
type StateEvent struct {
	State     State     // The new state
	Address   string    // The server address
	Timestamp time.Time // When the change occurred
	Error     error     // Non-nil if the change was caused by an error
}

// PacketEvent is emitted for every packet received from the server.
type PacketEvent struct {
	Packet    packet.Packet
	Timestamp time.Time
}

// ErrorEvent is emitted when a read, write or dial error occurs.
type ErrorEvent struct {
	Error     error
	Timestamp time.Time
}

// StateHandler is called on state changes from its own goroutine.
type StateHandler func(event StateEvent)

// PacketHandler is called on the read goroutine, one packet at a time and in
// arrival order. It must not block for long.
type PacketHandler func(event PacketEvent)

// ErrorHandler is called on errors from its own goroutine.
type ErrorHandler func(event ErrorEvent)

// Config holds client settings.
type Config struct {
	// Address is the "host:port" of the game server.
	Address string
	// WriteTimeout bounds a single Send; 0 means no timeout.
	WriteTimeout time.Duration
	// ReadTimeout bounds the wait for the next packet; 0 means no timeout.
	ReadTimeout time.Duration
	// ConnectionTimeout bounds the dial.
	ConnectionTimeout time.Duration
}

// DefaultConfig returns a Config with default timeouts for address.
//
// Parameters:
//   - address: The "host:port" to connect to
//
// Returns:
//   - A Config with WriteTimeout 10s, ConnectionTimeout 10s and no read
//     timeout
func DefaultConfig(address string) Config {
	return Config{
		Address:           address,
		WriteTimeout:      10 * time.Second,
		ReadTimeout:       0,
		ConnectionTimeout: 10 * time.Second,
	}
}

// Client is a game server client. Register handlers, then call Connect. It
// is safe for concurrent use.
type Client struct {
	config Config
	conn   net.Conn
	state  State

	onState  StateHandler
	onPacket PacketHandler
	onError  ErrorHandler

	mu      sync.RWMutex
	writeMu sync.Mutex
	done    chan struct{}
	wg      sync.WaitGroup
	closed  bool
}

// New creates a client in the Disconnected state.
func New(config Config) *Client {
	done := make(chan struct{})
	close(done)

	return &Client{
		config: config,
		state:  Disconnected,
		done:   done,
	}
}

// OnState registers the state change handler, replacing any previous one.
func (c *Client) OnState(handler StateHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = handler
}

// OnPacket registers the packet handler, replacing any previous one.
func (c *Client) OnPacket(handler PacketHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPacket = handler
}

// OnError registers the error handler, replacing any previous one.
func (c *Client) OnError(handler ErrorHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = handler
}

// Connect dials the server and starts reading packets.
//
// Returns:
//   - nil on success
//   - ErrClientClosed after Close, an error if already connected, or the
//     dial error
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}

	if c.state == Connected || c.state == Connecting {
		c.mu.Unlock()
		return fmt.Errorf("already connected or connecting")
	}
	c.mu.Unlock()

	c.setState(Connecting, nil)

	dialer := net.Dialer{Timeout: c.config.ConnectionTimeout}
	conn, err := dialer.Dial("tcp", c.config.Address)
	if err != nil {
		c.setState(Disconnected, err)
		c.emitError(err)
		return err
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.done = done
	c.mu.Unlock()

	c.setState(Connected, nil)

	c.wg.Add(1)
	go c.readLoop(conn, done)

	return nil
}

// Done is closed when the current connection ends, whether the server said
// bye, the stream failed or Close was called.
func (c *Client) Done() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.done
}

// Send encodes p and writes it as one frame.
//
// Parameters:
//   - p: The packet to send
//
// Returns:
//   - nil on success
//   - ErrNotConnected, packet.ErrPayloadTooLarge or the write error
func (c *Client) Send(p packet.Packet) error {
	c.mu.RLock()
	conn := c.conn
	state := c.state
	c.mu.RUnlock()

	if state != Connected || conn == nil {
		return ErrNotConnected
	}

	b, err := packet.Encode(p)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.config.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
			return err
		}

		defer func() {
			_ = conn.SetWriteDeadline(time.Time{})
		}()
	}

	if _, err := conn.Write(b); err != nil {
		c.emitError(err)
		return err
	}

	return nil
}

// State returns the current state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected reports whether the client is in the Connected state.
func (c *Client) IsConnected() bool {
	return c.State() == Connected
}

// Close closes the connection and waits for the read goroutine. It is
// idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}

	c.closed = true
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	c.wg.Wait()
	c.setState(Closed, nil)

	return nil
}

func (c *Client) readLoop(conn net.Conn, done chan struct{}) {
	defer c.wg.Done()
	defer close(done)

	for {
		if c.config.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		}

		p, err := packet.Decode(conn)
		if c.isClosed() {
			return
		}

		if err != nil {
			if errors.Is(err, packet.ErrMalformed) {
				c.emitError(err)
				continue
			}

			if !errors.Is(err, io.EOF) {
				c.emitError(err)
			}

			c.drop(conn, err)
			return
		}

		c.emitPacket(p)

		if p.Command == packet.Bye {
			c.drop(conn, nil)
			return
		}
	}
}

// drop closes conn if it is still the current connection.
func (c *Client) drop(conn net.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}

	_ = conn.Close()
	c.conn = nil
	c.mu.Unlock()

	c.setState(Disconnected, err)
}

func (c *Client) setState(state State, err error) {
	c.mu.Lock()
	c.state = state
	handler := c.onState
	c.mu.Unlock()

	if handler != nil {
		go handler(StateEvent{
			State:     state,
			Address:   c.config.Address,
			Timestamp: time.Now(),
			Error:     err,
		})
	}
}

func (c *Client) emitPacket(p packet.Packet) {
	c.mu.RLock()
	handler := c.onPacket
	c.mu.RUnlock()

	if handler != nil {
		handler(PacketEvent{Packet: p, Timestamp: time.Now()})
	}
}

func (c *Client) emitError(err error) {
	c.mu.RLock()
	handler := c.onError
	c.mu.RUnlock()

	if handler != nil {
		go handler(ErrorEvent{Error: err, Timestamp: time.Now()})
	}
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
