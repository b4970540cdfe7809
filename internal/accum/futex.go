// Package accum implements the per-thread accumulators: futex,
// ipc/sockets, ipc/streams, iowait, sched. Each accumulator maintains
// monotonic cumulative counters keyed by (thread, resource) and flushes
// per-sample snapshots to the CSV Sink via a Sample/Store method pair.
package accum

import (
	"fmt"
	"path/filepath"

	"github.com/majorcontext/metric-collector/internal/clock"
	"github.com/majorcontext/metric-collector/internal/events"
	"github.com/majorcontext/metric-collector/internal/pathfmt"
	"github.com/majorcontext/metric-collector/internal/sink"
)

const futexWaitHeader = "epoch_ms,futex_wait_ns,futex_count\n"
const futexWakeHeader = "epoch_ms,futex_count\n"

// futexKey identifies one futex word within a thread's accumulator.
type futexKey struct {
	RootPID int
	Uaddr   uint64
}

type futexWaitStat struct {
	accumulatedWaitNS uint64
	count             uint64
}

type waitSnapshot struct {
	epochMS int64
	stat    futexWaitStat
}

type wakeSnapshot struct {
	epochMS int64
	count   uint64
}

// Futex is the per-thread futex accumulator.
type Futex struct {
	waitStats map[futexKey]*futexWaitStat
	waitQueue map[futexKey][]waitSnapshot
	wakeQueue map[futexKey][]wakeSnapshot
}

// NewFutex returns an empty futex accumulator for one thread.
func NewFutex() *Futex {
	return &Futex{
		waitStats: make(map[futexKey]*futexWaitStat),
		waitQueue: make(map[futexKey][]waitSnapshot),
		wakeQueue: make(map[futexKey][]wakeSnapshot),
	}
}

// FeedWait applies a reduced Wait event: accumulated_wait grows
// monotonically, count is the tracer's latest snapshot (not a delta).
func (f *Futex) FeedWait(ev events.WaitReduced, boot clock.BootEpoch) {
	key := futexKey{RootPID: ev.RootPID, Uaddr: ev.Uaddr}
	st, ok := f.waitStats[key]
	if !ok {
		st = &futexWaitStat{}
		f.waitStats[key] = st
	}
	st.accumulatedWaitNS += ev.TotalIntervalWaitNS
	st.count = ev.Count

	epochMS := boot.EpochMS(int64(ev.SampleInstantNS))
	f.waitQueue[key] = append(f.waitQueue[key], waitSnapshot{epochMS: epochMS, stat: *st})
}

// FeedWake records a wake event: wakes are not aggregated, only timestamped.
func (f *Futex) FeedWake(ev events.WakeReduced, boot clock.BootEpoch) {
	key := futexKey{RootPID: ev.RootPID, Uaddr: ev.Uaddr}
	epochMS := boot.EpochMS(int64(ev.SampleInstantNS))
	f.wakeQueue[key] = append(f.wakeQueue[key], wakeSnapshot{epochMS: epochMS, count: ev.Count})
}

// Store flushes all queued snapshots to the CSV sink and clears the
// queues. subdir is "thread/<pid>/<tid>".
func (f *Futex) Store(subdir string, waitCache, wakeCache *sink.FixedCache) error {
	for key, snaps := range f.waitQueue {
		for _, s := range snaps {
			bucket := clock.MinuteBucket(s.epochMS)
			path := filepath.Join(subdir, "futex", "wait", fmt.Sprintf("%d", bucket),
				fmt.Sprintf("%d-%s.csv", key.RootPID, pathfmt.FutexUaddr(key.Uaddr)))
			row := fmt.Sprintf("%d,%d,%d\n", s.epochMS, s.stat.accumulatedWaitNS, s.stat.count)
			if err := waitCache.WriteRow(path, futexWaitHeader, row); err != nil {
				return fmt.Errorf("writing futex wait row: %w", err)
			}
		}
		delete(f.waitQueue, key)
	}
	for key, snaps := range f.wakeQueue {
		for _, s := range snaps {
			bucket := clock.MinuteBucket(s.epochMS)
			path := filepath.Join(subdir, "futex", "wake", fmt.Sprintf("%d", bucket),
				fmt.Sprintf("%d-%s.csv", key.RootPID, pathfmt.FutexUaddr(key.Uaddr)))
			row := fmt.Sprintf("%d,%d\n", s.epochMS, s.count)
			if err := wakeCache.WriteRow(path, futexWakeHeader, row); err != nil {
				return fmt.Errorf("writing futex wake row: %w", err)
			}
		}
		delete(f.wakeQueue, key)
	}
	return nil
}
