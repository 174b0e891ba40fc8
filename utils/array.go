// Package utils provides small helpers shared across the game server:
// byte joining for frame assembly, random selection for game setup and
// Discord webhook notifications for server lifecycle events.
package utils

import "math/rand/v2"

// GetRandomElement returns a randomly chosen element from the given slice.
// The slice must be non-empty; otherwise the function panics.
//
// Parameters:
//   - arr: The slice to pick from (must have at least one element)
//
// Returns:
//   - A random element of type T from the slice
func GetRandomElement[T any](arr []T) T {
	return arr[rand.IntN(len(arr))]
}

// RandomInRange returns a random integer in the closed interval [lo, hi].
// It panics if hi < lo.
//
// Parameters:
//   - lo: Smallest value that may be returned
//   - hi: Largest value that may be returned
//
// Returns:
//   - A uniformly distributed integer between lo and hi inclusive
func RandomInRange(lo, hi int) int {
	return lo + rand.IntN(hi-lo+1)
}
