package orchestrator

import (
	"fmt"

	"github.com/majorcontext/metric-collector/internal/events"
	"github.com/majorcontext/metric-collector/internal/parser"
)

// dispatch parses one raw record from the named dialect and routes its
// event(s) to the registry, reducers, and epoll global state. Unknown
// targets (a TID the registry hasn't seen yet) are dropped silently —
// the tracer can emit events for threads that exit between sampling
// ticks. A non-nil return is always a fatalError: a reducer-invariant
// violation that must terminate the run.
func (o *Orchestrator) dispatch(dialect, line string) error {
	switch dialect {
	case "clone":
		o.reg.ApplyClone(parser.ParseClone(line))
	case "futex":
		ev := parser.ParseFutex(line)
		if u, ok := ev.(events.FutexUnexpected); ok {
			o.logger.Debug("unexpected futex record", "data", u.Data)
			return nil
		}
		return o.dispatchFutex(ev)
	case "iowait":
		ev := parser.ParseIowait(line)
		if u, ok := ev.(events.IowaitUnexpected); ok {
			o.logger.Debug("unexpected iowait record", "data", u.Data)
			return nil
		}
		return o.dispatchIowait(ev)
	case "ipc":
		ev := parser.ParseIpc(line)
		if u, ok := ev.(events.IpcUnexpected); ok {
			o.logger.Debug("unexpected ipc record", "data", u.Data)
			return nil
		}
		return o.dispatchIpc(ev)
	}
	return nil
}

func (o *Orchestrator) dispatchFutex(ev events.FutexEvent) error {
	if np, ok := ev.(events.FutexNewProcess); ok {
		o.reg.ApplyFutexNewProcess(np.PID)
		return nil
	}
	waits, wakes, err := o.futexRed.Feed(ev)
	if err != nil {
		return fatal(fmt.Errorf("futex reducer: %w", err))
	}
	for _, w := range waits {
		if target, ok := o.reg.Get(w.TID); ok {
			target.Futex.FeedWait(w, o.boot)
		}
	}
	for _, w := range wakes {
		if target, ok := o.reg.Get(w.TID); ok {
			target.Futex.FeedWake(w, o.boot)
		}
	}
	return nil
}

func (o *Orchestrator) dispatchIowait(ev events.IowaitEvent) error {
	requests, err := o.iowaitRed.Feed(ev)
	if err != nil {
		return fatal(fmt.Errorf("iowait reducer: %w", err))
	}
	for _, r := range requests {
		if target, ok := o.reg.Get(r.TID); ok {
			target.IOWait.FeedRequests(r, o.boot)
		}
	}
	return nil
}

func (o *Orchestrator) dispatchIpc(ev events.IpcEvent) error {
	switch e := ev.(type) {
	case events.NewSocketMap, events.AcceptEnd, events.ConnectEnd:
		o.reg.Names().Observe(ev)
		return nil
	case events.IpcNewProcess:
		o.reg.ApplyIpcNewProcess(e.PID)
		return nil
	case events.EpollItemAdd:
		o.epollGlobal.ApplyAdd(e.EventPoll, e.Target, e.ContribSnapshot)
		return nil
	case events.EpollItemRefresh:
		o.epollGlobal.ApplyAdd(e.EventPoll, e.Target, e.ContribSnapshot)
		return nil
	case events.EpollItemRemove:
		o.epollGlobal.ApplyRemove(e.EventPoll, e.Target, e.ContribSnapshot)
		return nil
	}

	inodeWaits, epollWaits, err := o.ipcRed.Feed(ev)
	if err != nil {
		return fatal(fmt.Errorf("ipc reducer: %w", err))
	}
	for _, w := range inodeWaits {
		target, ok := o.reg.Get(w.TID)
		if !ok {
			continue
		}
		if w.FsType == "sockfs" {
			target.IpcSockets.FeedWait(w, o.boot)
		} else {
			target.IpcStreams.FeedWait(w, o.boot)
		}
	}
	for _, w := range epollWaits {
		o.epollGlobal.ApplyWait(w, o.boot)
	}
	return nil
}
