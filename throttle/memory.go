package throttle

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// Memory is a fixed-window Limiter kept in process memory.
type Memory struct {
	cache  *cache.Cache
	limit  int
	window time.Duration
}

// NewMemory creates a Limiter allowing limit connections per host per
// window. A limit of 0 or less allows everything.
//
// Parameters:
//   - limit: Connections allowed per host in one window
//   - window: Length of a window
//
// Returns:
//   - A new Memory limiter
func NewMemory(limit int, window time.Duration) *Memory {
	return &Memory{
		cache:  cache.New(window, 2*window),
		limit:  limit,
		window: window,
	}
}

// Allow implements Limiter.
func (m *Memory) Allow(ctx context.Context, addr string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	if m.limit <= 0 {
		return true, nil
	}

	key := hostOf(addr)
	if err := m.cache.Add(key, 1, m.window); err == nil {
		return true, nil
	}

	n, err := m.cache.IncrementInt(key, 1)
	if err != nil {
		// The window expired between Add and IncrementInt.
		m.cache.Set(key, 1, m.window)
		return true, nil
	}

	return n <= m.limit, nil
}
