package events

// IpcEvent is the tagged union of events produced by the ipc dialect.
// It carries both socket (network) and stream (pipe/anon-inode/epoll)
// traffic, plus the epoll add/remove/wait bookkeeping events.
type IpcEvent interface {
	isIpcEvent()
}

// NewSocketMap binds a KFile to its human-readable Connection the first
// time the tracer observes the socket's address family.
type NewSocketMap struct {
	FsType  string
	SbID    uint64
	InodeID uint64
	Conn    Connection
}

func (NewSocketMap) isIpcEvent() {}

// AcceptEnd reports a completed accept(2) on a listening socket.
type AcceptEnd struct {
	Comm    string
	TID     int
	FsType  string
	SbID    uint64
	InodeID uint64
	Conn    Connection
}

func (AcceptEnd) isIpcEvent() {}

// ConnectEnd reports a completed connect(2).
type ConnectEnd struct {
	Comm    string
	TID     int
	FsType  string
	SbID    uint64
	InodeID uint64
	Conn    Connection
}

func (ConnectEnd) isIpcEvent() {}

// EpollItemAdd reports a file descriptor registered on an epoll instance.
type EpollItemAdd struct {
	Comm           string
	TID            int
	EventPoll      uint64
	Target         TargetFile
	ContribSnapshot uint64
}

func (EpollItemAdd) isIpcEvent() {}

// EpollItemRefresh ("EpollItem" in the wire format) re-registers an
// already-added item, refreshing its add-contribution snapshot.
type EpollItemRefresh struct {
	Comm            string
	TID             int
	EventPoll       uint64
	Target          TargetFile
	ContribSnapshot uint64
}

func (EpollItemRefresh) isIpcEvent() {}

// EpollItemRemove reports a file descriptor deregistered from an epoll
// instance, carrying the tracer's running contribution counter at the
// moment of removal.
type EpollItemRemove struct {
	Comm            string
	TID             int
	EventPoll       uint64
	Target          TargetFile
	ContribSnapshot uint64
}

func (EpollItemRemove) isIpcEvent() {}

// InodeMapCached is a completed stream/socket wait summed since the
// previous closure: "@completed[comm, tid, fs_type, device, inode_id]: (total_ns, count)".
type InodeMapCached struct {
	Comm    string
	TID     int
	FsType  string
	Device  uint64
	InodeID uint64
	TotalNS uint64
	Count   uint64
}

func (InodeMapCached) isIpcEvent() {}

// InodeMapPending is an in-flight stream/socket wait observed at
// snapshot time.
type InodeMapPending struct {
	Comm        string
	TID         int
	FsType      string
	Device      uint64
	InodeID     uint64
	NsSinceBoot uint64
}

func (InodeMapPending) isIpcEvent() {}

// EpollMapCached is a completed epoll_wait summed since the previous
// closure: "@epoll_map[event_poll]: total_ns".
type EpollMapCached struct {
	EventPoll uint64
	TotalNS   uint64
}

func (EpollMapCached) isIpcEvent() {}

// EpollMapPending is an in-flight epoll_wait observed at snapshot time.
type EpollMapPending struct {
	EventPoll   uint64
	NsSinceBoot uint64
}

func (EpollMapPending) isIpcEvent() {}

// IpcMapStart marks the beginning of an ipc stat closure.
type IpcMapStart struct{}

func (IpcMapStart) isIpcEvent() {}

// IpcMapEnd marks the end of an ipc stat closure.
type IpcMapEnd struct{}

func (IpcMapEnd) isIpcEvent() {}

// IpcSampleInstant carries the closure's snapshot instant.
type IpcSampleInstant struct {
	NsSinceBoot uint64
}

func (IpcSampleInstant) isIpcEvent() {}

// IpcNewProcess is the ipc dialect's own NewProcess notification.
type IpcNewProcess struct {
	PID int
}

func (IpcNewProcess) isIpcEvent() {}

// IpcUnexpected wraps an unparsable or unhandled ipc-dialect line
// (including UnhandledFileMode/UnhandledSockFam cases from the original
// tracer, which this engine also treats as soft, discardable noise).
type IpcUnexpected struct {
	Data string
}

func (IpcUnexpected) isIpcEvent() {}

// Derived events, produced by the Stat-Closure Reducer.

// InodeWaitReduced is the reducer's output for one (comm, tid, device,
// inode_id) key. CountWait is nil when only a pending fragment was
// present for this key.
type InodeWaitReduced struct {
	Comm            string
	TID             int
	FsType          string
	Device          uint64
	InodeID         uint64
	SampleInstantNS uint64
	TotalWaitNS     uint64
	CountWait       *uint64
}

// EpollWaitReduced is the reducer's output for one event_poll key.
type EpollWaitReduced struct {
	EventPoll           uint64
	SampleInstantNS     uint64
	TotalIntervalWaitNS uint64
}
