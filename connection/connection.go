// Package connection wraps an accepted TCP stream with the packet protocol:
// non-blocking receive for the lobby sweep, blocking receive for games,
// serialized sends, a socket health probe and idempotent close.
package connection

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyberinferno/go-gameserver/logger"
	"github.com/cyberinferno/go-gameserver/packet"
)

// ErrClosed is returned when using a connection that was closed locally or
// whose stream is known to be unusable.
var ErrClosed = errors.New("connection closed")

// Options tunes the timing of reads and writes. Zero fields take the value
// from DefaultOptions.
type Options struct {
	// ProbeTimeout is how long a non-blocking check waits for data to show
	// up before reporting that none is available.
	ProbeTimeout time.Duration
	// FrameTimeout bounds reading the rest of a frame in Next once its first
	// byte has arrived.
	FrameTimeout time.Duration
	// ReceiveFrameTimeout is the same bound for Receive, which runs on the
	// server loop and should stay well under FrameTimeout.
	ReceiveFrameTimeout time.Duration
	// WriteTimeout bounds a single Send; a negative value means no deadline.
	WriteTimeout time.Duration
	// PollInterval is how often Next re-checks its context while idle.
	PollInterval time.Duration
}

// DefaultOptions returns the timings used by the server unless configured
// otherwise.
func DefaultOptions() Options {
	return Options{
		ProbeTimeout:        time.Millisecond,
		FrameTimeout:        time.Second,
		ReceiveFrameTimeout: 50 * time.Millisecond,
		WriteTimeout:        5 * time.Second,
		PollInterval:        50 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = d.ProbeTimeout
	}

	if o.FrameTimeout <= 0 {
		o.FrameTimeout = d.FrameTimeout
	}

	if o.ReceiveFrameTimeout <= 0 {
		o.ReceiveFrameTimeout = d.ReceiveFrameTimeout
	}

	if o.WriteTimeout == 0 {
		o.WriteTimeout = d.WriteTimeout
	}

	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}

	return o
}

// Connection is a live peer. Reads and writes are independently serialized so
// a game may read while the server writes a bye.
type Connection struct {
	id     uint32
	conn   net.Conn
	reader *bufio.Reader
	remote string
	opts   Options
	log    logger.Logger

	readMu  sync.Mutex
	writeMu sync.Mutex

	closeOnce sync.Once
	closed    atomic.Bool
	broken    atomic.Bool
	leaving   atomic.Bool
}

// New wraps conn. The connection takes ownership of conn and closes it on
// Close.
//
// Parameters:
//   - id: Identifier assigned by the server, used in logs
//   - conn: The accepted stream
//   - log: Parent logger; the connection derives its own with id and address
//   - opts: Read and write timings; zero fields fall back to DefaultOptions
//
// Returns:
//   - The Connection
func New(id uint32, conn net.Conn, log logger.Logger, opts Options) *Connection {
	remote := "unknown"
	if addr := conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}

	return &Connection{
		id:     id,
		conn:   conn,
		reader: bufio.NewReader(conn),
		remote: remote,
		opts:   opts.withDefaults(),
		log:    log.With(logger.F("conn_id", id), logger.F("remote", remote)),
	}
}

// ID returns the identifier assigned at accept time.
func (c *Connection) ID() uint32 {
	return c.id
}

// RemoteAddr returns the peer address for diagnostics.
func (c *Connection) RemoteAddr() string {
	return c.remote
}

// String implements fmt.Stringer.
func (c *Connection) String() string {
	return fmt.Sprintf("conn#%d(%s)", c.id, c.remote)
}

// Send encodes p and writes it as one frame.
//
// Parameters:
//   - p: The packet to send
//
// Returns:
//   - packet.ErrPayloadTooLarge (wrapped) if p does not fit in a frame
//   - ErrClosed if the connection was closed
//   - The write error otherwise; it is also logged
func (c *Connection) Send(p packet.Packet) error {
	if c.closed.Load() {
		return ErrClosed
	}

	b, err := packet.Encode(p)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.opts.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
		defer func() {
			_ = c.conn.SetWriteDeadline(time.Time{})
		}()
	}

	if _, err := c.conn.Write(b); err != nil {
		c.log.Warn("failed to send packet", logger.F("command", p.Command.String()), logger.Err(err))
		return fmt.Errorf("send %s to %s: %w", p.Command, c.remote, err)
	}

	return nil
}

// Receive returns the next packet if one is already arriving, without
// waiting for a peer that has sent nothing. Decode errors are logged and
// reported as "no packet"; a frame that stops mid-way marks the stream
// broken so that Probe reports it unhealthy.
//
// Returns:
//   - The packet and true, or the zero Packet and false
func (c *Connection) Receive() (packet.Packet, bool) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if !c.usable() {
		return packet.Packet{}, false
	}

	ready, err := c.peek(c.opts.ProbeTimeout)
	if err != nil || !ready {
		return packet.Packet{}, false
	}

	p, err := c.decode(c.opts.ReceiveFrameTimeout)
	if err != nil {
		return packet.Packet{}, false
	}

	return p, true
}

// Next blocks until a packet arrives, ctx is done or the stream fails.
// Malformed frames are logged and skipped.
//
// Parameters:
//   - ctx: Cancels the wait
//
// Returns:
//   - The packet
//   - ctx.Err() on cancellation, or an error wrapping ErrClosed when the
//     stream is closed or broken
func (c *Connection) Next(ctx context.Context) (packet.Packet, error) {
	for {
		if err := ctx.Err(); err != nil {
			return packet.Packet{}, err
		}

		p, ok, err := c.next()
		if err != nil {
			return packet.Packet{}, err
		}

		if ok {
			return p, nil
		}
	}
}

func (c *Connection) next() (packet.Packet, bool, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if !c.usable() {
		return packet.Packet{}, false, ErrClosed
	}

	ready, err := c.peek(c.opts.PollInterval)
	if err != nil {
		return packet.Packet{}, false, fmt.Errorf("%w: %w", ErrClosed, err)
	}

	if !ready {
		return packet.Packet{}, false, nil
	}

	p, err := c.decode(c.opts.FrameTimeout)
	if err != nil {
		if c.broken.Load() {
			return packet.Packet{}, false, fmt.Errorf("%w: %w", ErrClosed, err)
		}

		return packet.Packet{}, false, nil
	}

	return p, true, nil
}

// Probe checks socket-level health: a stream that reports end-of-file or an
// error while no data is waiting is considered dead. Data waiting to be read
// or a quiet open stream are both healthy. Probe consumes nothing.
//
// Returns:
//   - true if the stream looks alive
func (c *Connection) Probe() bool {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if !c.usable() {
		return false
	}

	_, err := c.peek(c.opts.ProbeTimeout)
	return err == nil
}

// IsHealthy is the lobby health predicate: a peer that sent bye left
// gracefully, and a peer whose socket fails Probe dropped without one. Any
// other packet received while waiting is discarded.
//
// Parameters:
//   - c: The connection to check
//
// Returns:
//   - false if the connection should be cleaned up
func IsHealthy(c *Connection) bool {
	if p, ok := c.Receive(); ok {
		if p.Command == packet.Bye {
			c.log.Debug("peer said goodbye", logger.F("reason", p.Message))
			return false
		}

		c.log.Debug("ignoring packet while waiting", logger.F("command", p.Command.String()))
	}

	return c.Probe()
}

// MarkLeaving flags the connection as being disconnected and reports whether
// this call set the flag. Only the first caller should run the disconnect
// sequence.
func (c *Connection) MarkLeaving() bool {
	return c.leaving.CompareAndSwap(false, true)
}

// Closed reports whether Close has been called.
func (c *Connection) Closed() bool {
	return c.closed.Load()
}

// Close closes the underlying stream. Calls after the first do nothing and
// return nil.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		err = c.conn.Close()
	})

	return err
}

func (c *Connection) usable() bool {
	return !c.closed.Load() && !c.broken.Load()
}

// peek waits up to timeout for at least one byte; caller must hold readMu.
// A timeout is reported as (false, nil). Any other failure marks the stream
// broken.
func (c *Connection) peek(timeout time.Duration) (bool, error) {
	if c.reader.Buffered() > 0 {
		return true, nil
	}

	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	_, err := c.reader.Peek(1)
	_ = c.conn.SetReadDeadline(time.Time{})

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrDeadlineExceeded):
		return false, nil
	default:
		c.broken.Store(true)
		if !c.closed.Load() {
			c.log.Debug("stream is no longer readable", logger.Err(err))
		}

		return false, err
	}
}

// decode reads one frame that has started arriving, giving the rest of it
// timeout to show up; caller must hold readMu.
func (c *Connection) decode(timeout time.Duration) (packet.Packet, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	defer func() {
		_ = c.conn.SetReadDeadline(time.Time{})
	}()

	p, err := packet.Decode(c.reader)
	if err != nil {
		if errors.Is(err, packet.ErrShortFrame) {
			c.broken.Store(true)
		}

		c.log.Warn("failed to receive packet", logger.Err(err))
		return packet.Packet{}, err
	}

	return p, nil
}
