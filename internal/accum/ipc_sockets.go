package accum

import (
	"fmt"
	"path/filepath"

	"github.com/majorcontext/metric-collector/internal/clock"
	"github.com/majorcontext/metric-collector/internal/events"
	"github.com/majorcontext/metric-collector/internal/pathfmt"
	"github.com/majorcontext/metric-collector/internal/sink"
)

const ipcSocketHeader = "epoch_ms,socket_wait,count\n"

type ipcStat struct {
	accumulatedWaitNS uint64
	count             uint64
}

type ipcSnapshot struct {
	epochMS int64
	stat    ipcStat
}

// KFileMap is the process-wide KFile -> Connection mapping, populated by
// NewSocketMap/AcceptEnd/ConnectEnd. It is written by a single thread
// (the ipc-socket accumulator feed path) and read by the socket sink
// during path formation.
type KFileMap struct {
	conns map[events.KFile]events.Connection
}

// NewKFileMap returns an empty KFile -> Connection map.
func NewKFileMap() *KFileMap {
	return &KFileMap{conns: make(map[events.KFile]events.Connection)}
}

// Bind records conn for kfile, if not already bound. Existing bindings
// are never overwritten.
func (m *KFileMap) Bind(kfile events.KFile, conn events.Connection) {
	if _, exists := m.conns[kfile]; exists {
		return
	}
	m.conns[kfile] = conn
}

// Lookup returns the Connection bound to kfile, if any.
func (m *KFileMap) Lookup(kfile events.KFile) (events.Connection, bool) {
	c, ok := m.conns[kfile]
	return c, ok
}

// Observe binds a KFile to its Connection for the ipc events that carry
// one (NewSocketMap, AcceptEnd, ConnectEnd). Other ipc events are ignored.
func (m *KFileMap) Observe(ev events.IpcEvent) {
	switch e := ev.(type) {
	case events.NewSocketMap:
		m.Bind(events.KFile{SuperBlockID: e.SbID, InodeID: e.InodeID}, e.Conn)
	case events.AcceptEnd:
		m.Bind(events.KFile{SuperBlockID: e.SbID, InodeID: e.InodeID}, e.Conn)
	case events.ConnectEnd:
		m.Bind(events.KFile{SuperBlockID: e.SbID, InodeID: e.InodeID}, e.Conn)
	}
}

// IpcSockets is the per-thread socket accumulator, keyed by KFile.
type IpcSockets struct {
	stats map[events.KFile]*ipcStat
	queue map[events.KFile][]ipcSnapshot
	named map[events.KFile]bool // true once this KFile's file has been renamed to its address form
}

// NewIpcSockets returns an empty socket accumulator for one thread.
func NewIpcSockets() *IpcSockets {
	return &IpcSockets{
		stats: make(map[events.KFile]*ipcStat),
		queue: make(map[events.KFile][]ipcSnapshot),
		named: make(map[events.KFile]bool),
	}
}

// FeedWait applies a reduced InodeWaitReduced event for a sockfs inode.
func (s *IpcSockets) FeedWait(ev events.InodeWaitReduced, boot clock.BootEpoch) {
	if ev.FsType != "sockfs" && ev.FsType != "" {
		return
	}
	kfile := events.KFile{SuperBlockID: ev.Device, InodeID: ev.InodeID}
	st, ok := s.stats[kfile]
	if !ok {
		st = &ipcStat{}
		s.stats[kfile] = st
	}
	st.accumulatedWaitNS += ev.TotalWaitNS
	if ev.CountWait != nil {
		st.count = *ev.CountWait
	}
	epochMS := boot.EpochMS(int64(ev.SampleInstantNS))
	s.queue[kfile] = append(s.queue[kfile], ipcSnapshot{epochMS: epochMS, stat: *st})
}

// Store flushes queued snapshots to the CSV sink. Once kfiles is bound
// in names, subsequent flushes use the address-form filename and any
// prior kfile-keyed file is renamed first.
func (s *IpcSockets) Store(subdir string, names *KFileMap, cache *sink.ExpiringCache) error {
	for kfile, snaps := range s.queue {
		for _, snap := range snaps {
			bucket := clock.MinuteBucket(snap.epochMS)
			filename := pathfmt.KFile(kfile)
			if conn, ok := names.Lookup(kfile); ok {
				if !s.named[kfile] {
					oldPath := filepath.Join(subdir, fmt.Sprintf("%d", bucket), pathfmt.KFile(kfile)+".csv")
					newPath := filepath.Join(subdir, fmt.Sprintf("%d", bucket), pathfmt.Connection(conn)+".csv")
					_ = cache.RenameEntry(oldPath, newPath)
					s.named[kfile] = true
				}
				filename = pathfmt.Connection(conn)
			}
			path := filepath.Join(subdir, fmt.Sprintf("%d", bucket), filename+".csv")
			row := fmt.Sprintf("%d,%d,%d\n", snap.epochMS, snap.stat.accumulatedWaitNS, snap.stat.count)
			if err := cache.WriteRow(path, ipcSocketHeader, row); err != nil {
				return fmt.Errorf("writing ipc socket row: %w", err)
			}
		}
		delete(s.queue, kfile)
	}
	return nil
}
