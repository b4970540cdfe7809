// Package orchestrator implements the Sampler Orchestrator: the
// top-level control loop wiring Tracer Pipes, the Framed Reader, Event
// Parsers, the Stat-Closure Reducer, Epoll Attribution, per-thread
// accumulators, and the CSV Sink together.
package orchestrator

import "time"

// Config is the orchestrator's external configuration, populated from
// the CLI surface. Exactly one of PIDs or ProcessName must be set.
type Config struct {
	PIDs          []int
	ProcessName   string
	Period        time.Duration
	DataDirectory string
}

const (
	// DefaultPeriod is the default sampler tick interval.
	DefaultPeriod = time.Second

	// headerWaitPollInterval is how often the startup loop polls every
	// tracer's Framed Reader for its header line. There is no timeout:
	// the loop waits indefinitely.
	headerWaitPollInterval = time.Second

	// expiringTTL is the idle-eviction window for the global epoll
	// attribution cache, shared across all epoll instances.
	expiringTTL = 120 * time.Second
)

// filesystemVersion is written once to version.txt at startup.
const filesystemVersion = "0.2.0\n"
