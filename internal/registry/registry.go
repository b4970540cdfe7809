package registry

import (
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/majorcontext/metric-collector/internal/accum"
	"github.com/majorcontext/metric-collector/internal/clock"
	"github.com/majorcontext/metric-collector/internal/events"
)

// Registry holds the tid -> Target map. Its tick-goroutine side
// (dispatch-driven discovery/removal, Store) and its dedicated
// sampler-goroutine side (SampleAll) run concurrently, so targets is
// guarded by mu — the one piece of internal locking this package needs.
type Registry struct {
	mu      sync.Mutex
	targets map[int]*Target
	names   *accum.KFileMap
	logger  *slog.Logger
}

// New returns an empty Registry. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		targets: make(map[int]*Target),
		names:   accum.NewKFileMap(),
		logger:  logger,
	}
}

// Names returns the process-wide KFile -> Connection map, fed by the
// ipc dialect's NewSocketMap/AcceptEnd/ConnectEnd events.
func (r *Registry) Names() *accum.KFileMap { return r.names }

// Get returns the Target for tid, if one is registered.
func (r *Registry) Get(tid int) (*Target, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.targets[tid]
	return t, ok
}

// Targets returns every currently-registered target.
func (r *Registry) Targets() []*Target {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Target, 0, len(r.targets))
	for _, t := range r.targets {
		out = append(out, t)
	}
	return out
}

// addThread registers tid under pid if not already present.
func (r *Registry) addThread(pid, tid int, comm string) {
	r.mu.Lock()
	_, exists := r.targets[tid]
	r.mu.Unlock()
	if exists {
		return
	}
	t, err := NewTarget(pid, tid, comm)
	if err != nil {
		r.logger.Error("creating target", "pid", pid, "tid", tid, "error", err)
		return
	}
	r.mu.Lock()
	if _, exists := r.targets[tid]; !exists {
		r.targets[tid] = t
	} else {
		t.Close()
	}
	r.mu.Unlock()
}

// addProcess enumerates /proc/<pid>/task/* and registers every thread
// of pid that isn't already known. A genuinely new pid is announced via
// notifyNewPID before its threads are registered.
func (r *Registry) addProcess(pid int, comm string) {
	if _, known := r.pidKnown(pid); !known {
		notifyNewPID(pid)
	}

	tids, err := Tasks(pid)
	if err != nil {
		r.logger.Warn("enumerating tasks", "pid", pid, "error", err)
		return
	}
	for _, tid := range tids {
		r.addThread(pid, tid, comm)
	}
}

// RemoveProcess deletes every target belonging to pid, closing their
// CSV handle caches.
func (r *Registry) RemoveProcess(pid int) {
	r.mu.Lock()
	var removed []*Target
	for tid, t := range r.targets {
		if t.PID == pid {
			removed = append(removed, t)
			delete(r.targets, tid)
		}
	}
	r.mu.Unlock()

	for _, t := range removed {
		t.Close()
	}
}

// ApplyClone consumes one clone-dialect event.
func (r *Registry) ApplyClone(ev events.CloneEvent) {
	switch e := ev.(type) {
	case events.NewThread:
		r.addThread(e.PID, e.TID, e.Comm)
	case events.NewProcess:
		r.addProcess(e.PID, e.Comm)
	case events.RemoveProcess:
		r.RemoveProcess(e.PID)
	case events.Unexpected:
		r.logger.Debug("unexpected clone event", "data", e.Data)
	}
}

// ApplyFutexNewProcess consumes the futex dialect's own NewProcess
// notification, discovering a process the clone tracer hasn't yet.
func (r *Registry) ApplyFutexNewProcess(pid int) {
	if _, known := r.pidKnown(pid); !known {
		r.addProcess(pid, "")
	}
}

// ApplyIpcNewProcess consumes the ipc dialect's own NewProcess notification.
func (r *Registry) ApplyIpcNewProcess(pid int) {
	if _, known := r.pidKnown(pid); !known {
		r.addProcess(pid, "")
	}
}

func (r *Registry) pidKnown(pid int) (*Target, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.targets {
		if t.PID == pid {
			return t, true
		}
	}
	return nil, false
}

// SeedPIDs registers every thread of each explicitly-requested pid.
func (r *Registry) SeedPIDs(pids []int) {
	for _, pid := range pids {
		comm, err := Comm(pid)
		if err != nil {
			r.logger.Warn("seeding pid", "pid", pid, "error", err)
			continue
		}
		r.addProcess(pid, comm)
	}
}

// SeedKthreadPattern scans /proc for kernel threads whose comm matches
// pattern and registers them (e.g. "jbd2").
func (r *Registry) SeedKthreadPattern(pattern *regexp.Regexp) error {
	return r.seedByCommPattern(pattern, true)
}

// SeedProcessNamePattern scans /proc for userspace processes whose comm
// matches pattern and registers them.
func (r *Registry) SeedProcessNamePattern(pattern *regexp.Regexp) error {
	return r.seedByCommPattern(pattern, false)
}

func (r *Registry) seedByCommPattern(pattern *regexp.Regexp, kthreadOnly bool) error {
	pids, err := AllPIDs()
	if err != nil {
		return fmt.Errorf("scanning /proc for seed pattern: %w", err)
	}
	for _, pid := range pids {
		comm, err := Comm(pid)
		if err != nil {
			continue
		}
		if !pattern.MatchString(comm) {
			continue
		}
		isKthread, err := IsKthread(pid)
		if err != nil {
			continue
		}
		if isKthread != kthreadOnly {
			continue
		}
		r.addProcess(pid, comm)
	}
	return nil
}

// SampleAll advances every target's time-sensitive /proc samplers. It is
// meant to run on its own dedicated goroutine, separate from the tick
// loop that drains dialects and calls StoreAll, so schedstat/sched read
// latency never delays dialect draining. A target whose sample fails
// (the thread has exited) is removed; that is normal turnover, not a
// fatal condition.
func (r *Registry) SampleAll(boot clock.BootEpoch, nowEpochMS int64) {
	for _, t := range r.Targets() {
		if err := t.Sample(boot, nowEpochMS); err != nil {
			r.logger.Info("removing target after sample failure", "tid", t.TID, "error", err)
			r.removeTarget(t.TID)
		}
	}
}

func (r *Registry) removeTarget(tid int) {
	r.mu.Lock()
	t, ok := r.targets[tid]
	if ok {
		delete(r.targets, tid)
	}
	r.mu.Unlock()
	if ok {
		t.Close()
	}
}

// StoreAll flushes every target's queued accumulator snapshots to CSV.
// A write failure here is a CSV sink error: it is returned rather than
// logged, so the caller can treat it as fatal to the run.
func (r *Registry) StoreAll(baseDir string) error {
	for _, t := range r.Targets() {
		if err := t.Store(baseDir, r.names); err != nil {
			return fmt.Errorf("storing tid %d: %w", t.TID, err)
		}
	}
	return nil
}
