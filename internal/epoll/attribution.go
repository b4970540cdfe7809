// Package epoll implements the Epoll Attribution engine: for each epoll
// instance it splits an aggregate wait duration across the set of
// target files registered on it during the interval, using tracer-side
// add/remove contribution snapshots.
package epoll

import (
	"log/slog"

	"github.com/majorcontext/metric-collector/internal/events"
)

// suspiciousContribNS flags a single contribution above 1.5s as
// anomalous. It is logged, not rejected.
const suspiciousContribNS = 1_500_000_000

// Stats is the running per-target accumulator: accumulated_wait never
// decreases. It has no count field: epoll targets have no
// tracer-supplied count, only wait time.
type Stats struct {
	AccumulatedWaitNS uint64
}

// Snapshot is one entry in a target's snapshot queue: either a fixed
// instant (epoch ns) or, for a tentative entry produced by a mid-interval
// remove, nil pending backfill from the next EpollWait.
type Snapshot struct {
	InstantNS *uint64
	Stats     Stats
}

// State is one epoll instance's attribution state.
type State struct {
	active      map[events.TargetFile]uint64 // target -> add_contrib_snapshot
	perTarget   map[events.TargetFile]*Stats
	snapshots   map[events.TargetFile][]Snapshot
	logger      *slog.Logger
}

// NewState returns an empty epoll attribution state for one epoll
// instance.
func NewState(logger *slog.Logger) *State {
	if logger == nil {
		logger = slog.Default()
	}
	return &State{
		active:    make(map[events.TargetFile]uint64),
		perTarget: make(map[events.TargetFile]*Stats),
		snapshots: make(map[events.TargetFile][]Snapshot),
		logger:    logger,
	}
}

func (s *State) statsFor(target events.TargetFile) *Stats {
	st, ok := s.perTarget[target]
	if !ok {
		st = &Stats{}
		s.perTarget[target] = st
	}
	return st
}

// Add records a target added to (or refreshed on) the epoll instance.
func (s *State) Add(target events.TargetFile, contribSnapshot uint64) {
	s.active[target] = contribSnapshot
	s.statsFor(target)
}

// Remove records a target removed from the epoll instance. delta is
// computed as contribSnapshot - addSnapshot, except when contribSnapshot
// is smaller than the recorded add-snapshot, in which case contribSnapshot
// alone is taken — this absorbs a tracer-side counter reset but could
// also mask a real anomaly, surfaced via the suspicious-contribution log
// line rather than silently "fixed".
func (s *State) Remove(target events.TargetFile, contribSnapshot uint64) {
	addSnapshot, wasActive := s.active[target]
	var delta uint64
	if wasActive && contribSnapshot >= addSnapshot {
		delta = contribSnapshot - addSnapshot
	} else {
		delta = contribSnapshot
	}
	s.logSuspicious(target, delta)

	stats := s.statsFor(target)
	stats.AccumulatedWaitNS += delta
	delete(s.active, target)

	queue := s.snapshots[target]
	if len(queue) > 0 && queue[len(queue)-1].InstantNS == nil {
		queue[len(queue)-1].Stats = *stats
	} else {
		queue = append(queue, Snapshot{InstantNS: nil, Stats: *stats})
	}
	s.snapshots[target] = queue
}

// Wait applies an EpollWait{sample_instant_ns, total_interval_wait_ns}
// derived event: every currently-active target gets max(W - add, 0) of
// the wait, its add-contribution resets to 0, and a fixed-instant
// snapshot is appended (or the trailing tentative entry is updated in
// place). Every target that fell out of `active` mid-interval and whose
// queue ends in a tentative entry has its instant backfilled to this
// wait's epoch instant.
func (s *State) Wait(sampleInstantEpochNS uint64, totalIntervalWaitNS uint64) {
	for target, addContrib := range s.active {
		contribution := saturatingSub(totalIntervalWaitNS, addContrib)
		stats := s.statsFor(target)
		stats.AccumulatedWaitNS += contribution
		s.active[target] = 0

		queue := s.snapshots[target]
		instant := sampleInstantEpochNS
		if len(queue) > 0 && queue[len(queue)-1].InstantNS == nil {
			queue[len(queue)-1].InstantNS = &instant
			queue[len(queue)-1].Stats = *stats
		} else {
			queue = append(queue, Snapshot{InstantNS: &instant, Stats: *stats})
		}
		s.snapshots[target] = queue
	}

	for target, queue := range s.snapshots {
		if _, stillActive := s.active[target]; stillActive {
			continue
		}
		if len(queue) == 0 || queue[len(queue)-1].InstantNS != nil {
			continue
		}
		instant := sampleInstantEpochNS
		queue[len(queue)-1].InstantNS = &instant
		s.snapshots[target] = queue
	}
}

// Snapshots returns the current snapshot queue for target, for the ipc
// accumulator to drain and flush to the CSV sink.
func (s *State) Snapshots(target events.TargetFile) []Snapshot {
	return s.snapshots[target]
}

// DrainSnapshots returns and clears the snapshot queue for target.
func (s *State) DrainSnapshots(target events.TargetFile) []Snapshot {
	q := s.snapshots[target]
	delete(s.snapshots, target)
	return q
}

// Targets returns every target this epoll instance has stats for,
// active or not (used to enumerate what to flush each tick).
func (s *State) Targets() []events.TargetFile {
	seen := make(map[events.TargetFile]bool)
	var out []events.TargetFile
	for t := range s.perTarget {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func (s *State) logSuspicious(target events.TargetFile, delta uint64) {
	if delta > suspiciousContribNS {
		s.logger.Warn("unexpected epoll contribution size", "target", target, "delta_ns", delta)
	}
}

func saturatingSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}
