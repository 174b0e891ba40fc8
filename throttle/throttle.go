// Package throttle limits how many connections a single remote host may open
// within a time window.
package throttle

import (
	"context"
	"net"
)

// Limiter decides whether a newly accepted connection may proceed.
type Limiter interface {
	// Allow counts one connection from addr and reports whether it is within
	// the limit.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - addr: Remote address of the connection ("host:port" or bare host)
	//
	// Returns:
	//   - true if the connection may proceed
	//   - An error if the backing store failed
	Allow(ctx context.Context, addr string) (bool, error)
}

// hostOf strips the port so every connection from one host shares a counter.
func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}

	return host
}
