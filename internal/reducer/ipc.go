package reducer

import "github.com/majorcontext/metric-collector/internal/events"

// InodeKey is the grouping key for ipc inode closures: (comm, tid,
// device, inode_id).
type InodeKey struct {
	Comm    string
	TID     int
	Device  uint64
	InodeID uint64
}

type inodeCachedValue struct {
	FsType  string
	TotalNS uint64
	Count   uint64
}

// EpollKey is the grouping key for epoll-wait closures: event_poll.
type EpollKey = uint64

// IpcReducer is the Stat-Closure Reducer for the ipc dialect's inode-wait
// and epoll-wait closures.
type IpcReducer struct {
	inodes         *Closure[InodeKey, inodeCachedValue]
	epolls         *Closure[EpollKey, uint64]
	pendingInstant *uint64
}

// NewIpcReducer returns an empty ipc reducer.
func NewIpcReducer() *IpcReducer {
	return &IpcReducer{
		inodes: NewClosure[InodeKey, inodeCachedValue](),
		epolls: NewClosure[EpollKey, uint64](),
	}
}

// Feed consumes one parsed ipc event relevant to the stat-closure
// reducer (NewSocketMap/AcceptEnd/ConnectEnd/EpollItem* bypass the
// reducer entirely — they are delivered straight to the ipc accumulators
// and the Epoll Attribution engine respectively).
func (r *IpcReducer) Feed(ev events.IpcEvent) ([]events.InodeWaitReduced, []events.EpollWaitReduced, error) {
	switch e := ev.(type) {
	case events.IpcMapStart:
		r.inodes.Start()
		r.epolls.Start()
		return nil, nil, nil

	case events.InodeMapCached:
		if !r.inodes.Open() {
			return nil, nil, ErrSampleInstantOutsideClosure
		}
		key := InodeKey{Comm: e.Comm, TID: e.TID, Device: e.Device, InodeID: e.InodeID}
		r.inodes.AddCached(key, inodeCachedValue{FsType: e.FsType, TotalNS: e.TotalNS, Count: e.Count})
		return nil, nil, nil

	case events.InodeMapPending:
		if !r.inodes.Open() {
			return nil, nil, ErrSampleInstantOutsideClosure
		}
		key := InodeKey{Comm: e.Comm, TID: e.TID, Device: e.Device, InodeID: e.InodeID}
		r.inodes.AddPending(key, e.NsSinceBoot)
		return nil, nil, nil

	case events.EpollMapCached:
		if !r.epolls.Open() {
			return nil, nil, ErrSampleInstantOutsideClosure
		}
		r.epolls.AddCached(e.EventPoll, e.TotalNS)
		return nil, nil, nil

	case events.EpollMapPending:
		if !r.epolls.Open() {
			return nil, nil, ErrSampleInstantOutsideClosure
		}
		r.epolls.AddPending(e.EventPoll, e.NsSinceBoot)
		return nil, nil, nil

	case events.IpcSampleInstant:
		if !r.inodes.Open() && !r.epolls.Open() {
			return nil, nil, ErrSampleInstantOutsideClosure
		}
		r.pendingInstant = &e.NsSinceBoot
		return nil, nil, nil

	case events.IpcMapEnd:
		if !r.inodes.Open() && !r.epolls.Open() {
			return nil, nil, ErrMapEndWithoutStart
		}
		if r.pendingInstant == nil {
			return nil, nil, ErrSampleInstantOutsideClosure
		}
		tCurr := *r.pendingInstant

		inodeDerived := r.inodes.End(tCurr, func(v inodeCachedValue) uint64 { return v.TotalNS })
		var inodeWaits []events.InodeWaitReduced
		for _, d := range inodeDerived {
			total := d.PendingExtraNS
			var fsType string
			var countPtr *uint64
			if d.HasCached {
				total += d.Cached.TotalNS
				fsType = d.Cached.FsType
				c := d.Cached.Count
				countPtr = &c
			}
			inodeWaits = append(inodeWaits, events.InodeWaitReduced{
				Comm: d.Key.Comm, TID: d.Key.TID, FsType: fsType,
				Device: d.Key.Device, InodeID: d.Key.InodeID,
				SampleInstantNS: tCurr, TotalWaitNS: total, CountWait: countPtr,
			})
		}

		epollDerived := r.epolls.End(tCurr, func(v uint64) uint64 { return v })
		var epollWaits []events.EpollWaitReduced
		for _, d := range epollDerived {
			total := d.PendingExtraNS
			if d.HasCached {
				total += d.Cached
			}
			epollWaits = append(epollWaits, events.EpollWaitReduced{
				EventPoll: d.Key, SampleInstantNS: tCurr, TotalIntervalWaitNS: total,
			})
		}

		r.pendingInstant = nil
		return inodeWaits, epollWaits, nil

	default:
		return nil, nil, nil
	}
}
