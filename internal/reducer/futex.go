package reducer

import "github.com/majorcontext/metric-collector/internal/events"

// FutexKey is the grouping key for futex closures: (tid, root_pid, uaddr).
type FutexKey struct {
	TID     int
	RootPID int
	Uaddr   uint64
}

type futexCachedValue struct {
	TotalNS uint64
	Count   uint64
}

// FutexReducer is the Stat-Closure Reducer for the futex dialect.
type FutexReducer struct {
	closure        *Closure[FutexKey, futexCachedValue]
	wakes          map[FutexKey]uint64
	pendingInstant *uint64
}

// NewFutexReducer returns an empty futex reducer.
func NewFutexReducer() *FutexReducer {
	return &FutexReducer{
		closure: NewClosure[FutexKey, futexCachedValue](),
		wakes:   make(map[FutexKey]uint64),
	}
}

// Feed consumes one parsed futex event. It returns derived Wait/Wake
// events produced when this event was a MapEnd, and an error for the
// two fatal reducer-invariant violations (MapEnd without MapStart,
// SampleInstant outside a closure).
func (r *FutexReducer) Feed(ev events.FutexEvent) ([]events.WaitReduced, []events.WakeReduced, error) {
	switch e := ev.(type) {
	case events.MapStart:
		r.closure.Start()
		r.wakes = make(map[FutexKey]uint64)
		return nil, nil, nil

	case events.WaitCached:
		if !r.closure.Open() {
			return nil, nil, ErrSampleInstantOutsideClosure
		}
		key := FutexKey{TID: e.TID, RootPID: e.RootPID, Uaddr: e.Uaddr}
		r.closure.AddCached(key, futexCachedValue{TotalNS: e.TotalIntervalWaitNS, Count: e.CountIntervalWait})
		return nil, nil, nil

	case events.WaitPending:
		if !r.closure.Open() {
			return nil, nil, ErrSampleInstantOutsideClosure
		}
		key := FutexKey{TID: e.TID, RootPID: e.RootPID, Uaddr: e.Uaddr}
		r.closure.AddPending(key, e.NsSinceBoot)
		return nil, nil, nil

	case events.Wake:
		if !r.closure.Open() {
			return nil, nil, ErrSampleInstantOutsideClosure
		}
		key := FutexKey{TID: e.TID, RootPID: e.RootPID, Uaddr: e.Uaddr}
		r.wakes[key] = e.Count
		return nil, nil, nil

	case events.SampleInstant:
		if !r.closure.Open() {
			return nil, nil, ErrSampleInstantOutsideClosure
		}
		r.pendingInstant = &e.NsSinceBoot
		return nil, nil, nil

	case events.MapEnd:
		if !r.closure.Open() {
			return nil, nil, ErrMapEndWithoutStart
		}
		if r.pendingInstant == nil {
			return nil, nil, ErrSampleInstantOutsideClosure
		}
		tCurr := *r.pendingInstant
		derived := r.closure.End(tCurr, func(v futexCachedValue) uint64 { return v.TotalNS })

		var waits []events.WaitReduced
		for _, d := range derived {
			count := uint64(0)
			if d.HasCached {
				count = d.Cached.Count
			}
			total := d.PendingExtraNS
			if d.HasCached {
				total += d.Cached.TotalNS
			}
			waits = append(waits, events.WaitReduced{
				TID:                 d.Key.TID,
				RootPID:             d.Key.RootPID,
				Uaddr:               d.Key.Uaddr,
				SampleInstantNS:     tCurr,
				TotalIntervalWaitNS: total,
				Count:               count,
			})
		}

		var wakes []events.WakeReduced
		for key, count := range r.wakes {
			wakes = append(wakes, events.WakeReduced{
				TID:             key.TID,
				RootPID:         key.RootPID,
				Uaddr:           key.Uaddr,
				SampleInstantNS: tCurr,
				Count:           count,
			})
		}

		r.pendingInstant = nil
		return waits, wakes, nil

	default:
		// FutexNewProcess / FutexUnexpected: not closure events, handled
		// upstream by the Target Registry and logging respectively.
		return nil, nil, nil
	}
}
