// Package resilience provides the two degradation primitives used around
// fallible collaborators:
//
//   - CircuitBreaker stops touching a collaborator that keeps failing (the
//     persistent cache tier) and tries it again after a cool-down.
//   - Timeout bounds a single blocking call (the generative service transport).
//
// Neither primitive retries. A call either runs once or is skipped.
package resilience
