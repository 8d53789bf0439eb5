// Package coordination wires the concurrency-safety core into a single hub:
// one event bus, one resource lock manager with its deadlock detector, one
// circuit breaker registry, and a worker supervisor that drives tasks through
// all of them. Callers construct a Hub, Start it for a run, and Stop (or
// Close) it on the way out.
package coordination
