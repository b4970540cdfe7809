package accum

import (
	"fmt"
	"path/filepath"

	"github.com/majorcontext/metric-collector/internal/clock"
	"github.com/majorcontext/metric-collector/internal/events"
	"github.com/majorcontext/metric-collector/internal/pathfmt"
	"github.com/majorcontext/metric-collector/internal/sink"
)

const ipcStreamHeader = "epoch_ms,stream_wait,count\n"

// IpcStreams is the per-thread stream accumulator (pipes, epoll inodes,
// anon inodes), keyed by TargetFile. Same shape as IpcSockets, but the
// key carries no identity-resolution step — a TargetFile is already
// human-readable.
type IpcStreams struct {
	stats map[events.TargetFile]*ipcStat
	queue map[events.TargetFile][]ipcSnapshot
}

// NewIpcStreams returns an empty stream accumulator for one thread.
func NewIpcStreams() *IpcStreams {
	return &IpcStreams{
		stats: make(map[events.TargetFile]*ipcStat),
		queue: make(map[events.TargetFile][]ipcSnapshot),
	}
}

// FeedWait applies a reduced InodeWaitReduced event whose fs_type is not
// sockfs. A "epoll" fs_type reinterprets InodeID, bit for bit, as the
// kernel address of a nested epoll instance.
func (s *IpcStreams) FeedWait(ev events.InodeWaitReduced, boot clock.BootEpoch) {
	if ev.FsType == "sockfs" {
		return
	}
	key := targetFileKey(ev)
	st, ok := s.stats[key]
	if !ok {
		st = &ipcStat{}
		s.stats[key] = st
	}
	st.accumulatedWaitNS += ev.TotalWaitNS
	if ev.CountWait != nil {
		st.count = *ev.CountWait
	}
	epochMS := boot.EpochMS(int64(ev.SampleInstantNS))
	s.queue[key] = append(s.queue[key], ipcSnapshot{epochMS: epochMS, stat: *st})
}

func targetFileKey(ev events.InodeWaitReduced) events.TargetFile {
	if ev.FsType == "epoll" {
		return events.Epoll{Address: ev.InodeID}
	}
	return events.Inode{Device: ev.Device, InodeID: ev.InodeID}
}

// Store flushes queued snapshots to the CSV sink. subdir is
// "thread/<pid>/<tid>/ipc/streams".
func (s *IpcStreams) Store(subdir string, cache *sink.ExpiringCache) error {
	for key, snaps := range s.queue {
		for _, snap := range snaps {
			bucket := clock.MinuteBucket(snap.epochMS)
			path := filepath.Join(subdir, fmt.Sprintf("%d", bucket), pathfmt.TargetFile(key)+".csv")
			row := fmt.Sprintf("%d,%d,%d\n", snap.epochMS, snap.stat.accumulatedWaitNS, snap.stat.count)
			if err := cache.WriteRow(path, ipcStreamHeader, row); err != nil {
				return fmt.Errorf("writing ipc stream row: %w", err)
			}
		}
		delete(s.queue, key)
	}
	return nil
}
