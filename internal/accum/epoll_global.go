package accum

import (
	"fmt"
	"path/filepath"

	"github.com/majorcontext/metric-collector/internal/clock"
	"github.com/majorcontext/metric-collector/internal/epoll"
	"github.com/majorcontext/metric-collector/internal/events"
	"github.com/majorcontext/metric-collector/internal/pathfmt"
	"github.com/majorcontext/metric-collector/internal/sink"
)

const epollGlobalHeader = "epoch_ms,accumulated_wait_ns\n"

// EpollGlobal is the system-wide "EventPollCollection" metric: one Epoll
// Attribution state per discovered epoll instance, flushed to
// global/epoll/<epoll_hex>/{sockets,streams}/.
//
// A target's bucket (sockets vs. streams) is decided the first time it
// is flushed by Store: an Inode target whose (device, inode_id) is already bound in
// the socket identity map is a socket; every other target (AnonInode,
// Epoll, or an Inode never seen as a socket) is a stream. This mirrors
// the wire format's fs_type discrimination without requiring the raw
// fs_type string on the epoll add/remove events themselves.
type EpollGlobal struct {
	states map[uint64]*epoll.State
	bucket map[events.TargetFile]string
}

// NewEpollGlobal returns an empty system-wide epoll collection.
func NewEpollGlobal() *EpollGlobal {
	return &EpollGlobal{
		states: make(map[uint64]*epoll.State),
		bucket: make(map[events.TargetFile]string),
	}
}

func (g *EpollGlobal) stateFor(eventPoll uint64) *epoll.State {
	s, ok := g.states[eventPoll]
	if !ok {
		s = epoll.NewState(nil)
		g.states[eventPoll] = s
	}
	return s
}

func (g *EpollGlobal) classify(target events.TargetFile, names *KFileMap) string {
	if b, ok := g.bucket[target]; ok {
		return b
	}
	bucket := "streams"
	if inode, ok := target.(events.Inode); ok {
		if _, known := names.Lookup(events.KFile{SuperBlockID: inode.Device, InodeID: inode.InodeID}); known {
			bucket = "sockets"
		}
	}
	g.bucket[target] = bucket
	return bucket
}

// ApplyAdd records an EpollItemAdd/EpollItemRefresh.
func (g *EpollGlobal) ApplyAdd(eventPoll uint64, target events.TargetFile, contribSnapshot uint64) {
	g.stateFor(eventPoll).Add(target, contribSnapshot)
}

// ApplyRemove records an EpollItemRemove.
func (g *EpollGlobal) ApplyRemove(eventPoll uint64, target events.TargetFile, contribSnapshot uint64) {
	g.stateFor(eventPoll).Remove(target, contribSnapshot)
}

// ApplyWait applies a reduced EpollWaitReduced event to the named epoll
// instance's attribution state.
func (g *EpollGlobal) ApplyWait(ev events.EpollWaitReduced, boot clock.BootEpoch) {
	epochNS := uint64(boot.EpochNS(int64(ev.SampleInstantNS)))
	g.stateFor(ev.EventPoll).Wait(epochNS, ev.TotalIntervalWaitNS)
}

// Store flushes every epoll instance's per-target snapshot queues to
// global/epoll/<epoll_hex>/{sockets,streams}/<minute_s>/<target>.csv.
func (g *EpollGlobal) Store(baseDir string, names *KFileMap, cache *sink.ExpiringCache) error {
	for eventPoll, state := range g.states {
		for _, target := range state.Targets() {
			snaps := state.DrainSnapshots(target)
			bucketDir := g.classify(target, names)
			for _, snap := range snaps {
				if snap.InstantNS == nil {
					continue // tentative entry awaiting backfill; not yet flushable
				}
				epochMS := int64(*snap.InstantNS) / 1_000_000
				minuteBucket := clock.MinuteBucket(epochMS)
				path := filepath.Join(baseDir, "global", "epoll", pathfmt.EpollHex(eventPoll), bucketDir,
					fmt.Sprintf("%d", minuteBucket), pathfmt.TargetFile(target)+".csv")
				row := fmt.Sprintf("%d,%d\n", epochMS, snap.Stats.AccumulatedWaitNS)
				if err := cache.WriteRow(path, epollGlobalHeader, row); err != nil {
					return fmt.Errorf("writing epoll global row: %w", err)
				}
			}
		}
	}
	return nil
}
