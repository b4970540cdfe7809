// Package registry implements the Target Registry: the tid-keyed set of
// per-thread accumulators, discovered from clone and futex/ipc
// NewProcess events and removed on RemoveProcess or sample failure. The
// orchestrator's tick and sampler goroutines both use it, so the tid ->
// Target map is guarded by a mutex (see Registry).
package registry

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/majorcontext/metric-collector/internal/accum"
	"github.com/majorcontext/metric-collector/internal/clock"
	"github.com/majorcontext/metric-collector/internal/sink"
)

// expiringTTL is the time-expiring CSV handle cache lifetime used by
// the iowait, ipc, and sched accumulators.
const expiringTTL = 120 * time.Second

// futexCacheCapacity is the fixed LRU capacity of the futex wait/wake
// handle caches.
const futexCacheCapacity = 4

// Target bundles the accumulators owned by one thread, each with its
// own bounded CSV handle cache.
type Target struct {
	PID  int
	TID  int
	Comm string

	Futex      *accum.Futex
	IpcSockets *accum.IpcSockets
	IpcStreams *accum.IpcStreams
	IOWait     *accum.IOWait
	Sched      *accum.Sched

	futexWaitCache  *sink.FixedCache
	futexWakeCache  *sink.FixedCache
	ipcSocketsCache *sink.ExpiringCache
	ipcStreamsCache *sink.ExpiringCache
	iowaitCache     *sink.ExpiringCache
	schedCache      *sink.ExpiringCache
}

// NewTarget returns a Target with freshly initialized accumulators and
// their CSV handle caches.
func NewTarget(pid, tid int, comm string) (*Target, error) {
	waitCache, err := sink.NewFixedCache(futexCacheCapacity)
	if err != nil {
		return nil, fmt.Errorf("creating futex wait cache: %w", err)
	}
	wakeCache, err := sink.NewFixedCache(futexCacheCapacity)
	if err != nil {
		return nil, fmt.Errorf("creating futex wake cache: %w", err)
	}
	return &Target{
		PID: pid, TID: tid, Comm: comm,
		Futex:      accum.NewFutex(),
		IpcSockets: accum.NewIpcSockets(),
		IpcStreams: accum.NewIpcStreams(),
		IOWait:     accum.NewIOWait(),
		Sched:      accum.NewSched(),

		futexWaitCache:  waitCache,
		futexWakeCache:  wakeCache,
		ipcSocketsCache: sink.NewExpiringCache(expiringTTL),
		ipcStreamsCache: sink.NewExpiringCache(expiringTTL),
		iowaitCache:     sink.NewExpiringCache(expiringTTL),
		schedCache:      sink.NewExpiringCache(expiringTTL),
	}, nil
}

// Close closes every CSV handle cache owned by this target.
func (t *Target) Close() {
	t.futexWaitCache.Close()
	t.futexWakeCache.Close()
	t.ipcSocketsCache.Close()
	t.ipcStreamsCache.Close()
	t.iowaitCache.Close()
	t.schedCache.Close()
}

// Sample advances the target's time-sensitive /proc samplers. A failure
// here (the thread has exited) is reported so the registry can remove
// the target on this tick.
func (t *Target) Sample(boot clock.BootEpoch, nowEpochMS int64) error {
	if err := t.Sched.Sample(t.TID, boot, nowEpochMS); err != nil {
		return fmt.Errorf("sampling tid %d: %w", t.TID, err)
	}
	return nil
}

// Store flushes every accumulator's queued snapshots to its own CSV
// handle cache. baseDir is the run's system-metrics directory; names is
// the process-wide KFile -> Connection map used by the socket
// accumulator.
func (t *Target) Store(baseDir string, names *accum.KFileMap) error {
	threadDir := filepath.Join(baseDir, "thread", fmt.Sprintf("%d", t.PID), fmt.Sprintf("%d", t.TID))

	if err := t.Futex.Store(threadDir, t.futexWaitCache, t.futexWakeCache); err != nil {
		return err
	}
	if err := t.IpcSockets.Store(filepath.Join(threadDir, "ipc", "sockets"), names, t.ipcSocketsCache); err != nil {
		return err
	}
	if err := t.IpcStreams.Store(filepath.Join(threadDir, "ipc", "streams"), t.ipcStreamsCache); err != nil {
		return err
	}
	if err := t.IOWait.Store(filepath.Join(baseDir, "global", "iowait", fmt.Sprintf("%d", t.PID), fmt.Sprintf("%d", t.TID)), t.iowaitCache); err != nil {
		return err
	}
	if err := t.Sched.Store(threadDir, t.schedCache); err != nil {
		return err
	}
	return nil
}
