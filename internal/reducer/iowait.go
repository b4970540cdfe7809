package reducer

import "github.com/majorcontext/metric-collector/internal/events"

// IowaitKey is the grouping key for iowait closures: (part0, device,
// tid, pid), matching the tracer's StatsClosureKey field order.
type IowaitKey struct {
	Part0  uint64
	Device uint64
	TID    int
	PID    int
}

// IowaitReducer groups a closure's Completed/Pending fragments by key
// and sums their sector counts directly — unlike the futex/ipc wait
// reducers, iowait needs no elapsed-time imputation: a sector count is
// not a duration, so cached and pending fragments for the same key are
// simply added together for the frame.
type IowaitReducer struct {
	open   bool
	totals map[IowaitKey]uint64
}

// NewIowaitReducer returns an empty iowait reducer.
func NewIowaitReducer() *IowaitReducer {
	return &IowaitReducer{totals: make(map[IowaitKey]uint64)}
}

// Feed consumes one parsed iowait event and returns the frame's derived
// Requests events when this event was the closure's SampleInstant.
func (r *IowaitReducer) Feed(ev events.IowaitEvent) ([]events.Requests, error) {
	switch e := ev.(type) {
	case events.IowaitMapStart:
		r.open = true
		r.totals = make(map[IowaitKey]uint64)
		return nil, nil

	case events.Completed:
		if !r.open {
			return nil, ErrSampleInstantOutsideClosure
		}
		key := IowaitKey{Part0: e.Part0, Device: e.Device, TID: e.TID, PID: e.PID}
		r.totals[key] += e.SectorCnt
		return nil, nil

	case events.Pending:
		if !r.open {
			return nil, ErrSampleInstantOutsideClosure
		}
		key := IowaitKey{Part0: e.Part0, Device: e.Device, TID: e.TID, PID: e.PID}
		r.totals[key] += e.SectorCnt
		return nil, nil

	case events.IowaitSampleInstant:
		if !r.open {
			return nil, ErrSampleInstantOutsideClosure
		}
		var out []events.Requests
		for key, sectorCnt := range r.totals {
			out = append(out, events.Requests{
				NsSinceBoot: e.NsSinceBoot,
				Device:      key.Device,
				TID:         key.TID,
				PID:         key.PID,
				SectorCnt:   sectorCnt,
			})
		}
		return out, nil

	case events.IowaitMapEnd:
		if !r.open {
			return nil, ErrMapEndWithoutStart
		}
		r.open = false
		r.totals = make(map[IowaitKey]uint64)
		return nil, nil

	default:
		return nil, nil
	}
}
