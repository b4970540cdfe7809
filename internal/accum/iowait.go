package accum

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/majorcontext/metric-collector/internal/clock"
	"github.com/majorcontext/metric-collector/internal/events"
	"github.com/majorcontext/metric-collector/internal/sink"
)

const iowaitHeader = "epoch_s,sector_cnt\n"

// IOWait is the per-(tid, device) block-IO accumulator.
//
// On insert, an existing (minute, second) entry is kept as-is rather
// than summed with a new observation — first-write-wins. Whether this
// is intentional (idempotent re-delivery) or a bug (lost sectors on a
// second observation in the same second) is unclear; it is preserved
// unchanged rather than silently "fixed".
type IOWait struct {
	// device -> minute bucket (epoch seconds) -> second (epoch seconds) -> sector_cnt
	minuteMaps map[uint64]map[int64]map[int64]uint64
}

// NewIOWait returns an empty iowait accumulator for one thread.
func NewIOWait() *IOWait {
	return &IOWait{minuteMaps: make(map[uint64]map[int64]map[int64]uint64)}
}

// FeedRequests applies a Requests event. Zero-sector events are dropped.
func (w *IOWait) FeedRequests(ev events.Requests, boot clock.BootEpoch) {
	if ev.SectorCnt == 0 {
		return
	}
	epochS := boot.EpochNS(int64(ev.NsSinceBoot)) / int64(time.Second)
	minuteBucket := clock.MinuteBucket(epochS * 1000)

	deviceMap, ok := w.minuteMaps[ev.Device]
	if !ok {
		deviceMap = make(map[int64]map[int64]uint64)
		w.minuteMaps[ev.Device] = deviceMap
	}
	secondMap, ok := deviceMap[minuteBucket]
	if !ok {
		secondMap = make(map[int64]uint64)
		deviceMap[minuteBucket] = secondMap
	}
	if _, exists := secondMap[epochS]; !exists {
		secondMap[epochS] = ev.SectorCnt
	}
}

// Store flushes every buckets-worth of accumulated rows to the CSV
// sink and clears them. subdir is "global/iowait/<pid>/<tid>".
func (w *IOWait) Store(subdir string, cache *sink.ExpiringCache) error {
	for device, minuteMap := range w.minuteMaps {
		for minuteBucket, secondMap := range minuteMap {
			seconds := make([]int64, 0, len(secondMap))
			for s := range secondMap {
				seconds = append(seconds, s)
			}
			sort.Slice(seconds, func(i, j int) bool { return seconds[i] < seconds[j] })

			path := filepath.Join(subdir, fmt.Sprintf("%d", minuteBucket), fmt.Sprintf("%d.csv", device))
			for _, s := range seconds {
				cnt := secondMap[s]
				if cnt == 0 {
					continue
				}
				row := fmt.Sprintf("%d,%d\n", s, cnt)
				if err := cache.WriteRow(path, iowaitHeader, row); err != nil {
					return fmt.Errorf("writing iowait row: %w", err)
				}
			}
			delete(minuteMap, minuteBucket)
		}
		if len(minuteMap) == 0 {
			delete(w.minuteMaps, device)
		}
	}
	return nil
}
