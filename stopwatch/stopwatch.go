// Package stopwatch measures elapsed wall time for server ticks and game
// sessions.
package stopwatch

import "time"

// Stopwatch records a start and stop instant. It is not safe for concurrent
// use; each goroutine keeps its own.
type Stopwatch struct {
	startTime time.Time
	endTime   time.Time
	now       func() time.Time
}

// New returns a Stopwatch that has not been started.
func New() *Stopwatch {
	return &Stopwatch{now: time.Now}
}

// Started returns a Stopwatch that is already running.
func Started() *Stopwatch {
	s := New()
	s.Start()
	return s
}

// Start records the start instant and clears any previous stop instant.
func (s *Stopwatch) Start() {
	s.startTime = s.now()
	s.endTime = time.Time{}
}

// Stop records the stop instant. It does nothing if Start was not called.
//
// Returns:
//   - The elapsed time between Start and this Stop
func (s *Stopwatch) Stop() time.Duration {
	if s.startTime.IsZero() {
		return 0
	}

	s.endTime = s.now()
	return s.Elapsed()
}

// Elapsed returns the measured duration. While running it is the time since
// Start; after Stop it is the fixed Start-to-Stop interval; when never
// started it is zero.
func (s *Stopwatch) Elapsed() time.Duration {
	switch {
	case s.startTime.IsZero():
		return 0
	case s.endTime.IsZero():
		return s.now().Sub(s.startTime)
	default:
		return s.endTime.Sub(s.startTime)
	}
}
