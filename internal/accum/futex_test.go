package accum

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/majorcontext/metric-collector/internal/clock"
	"github.com/majorcontext/metric-collector/internal/events"
	"github.com/majorcontext/metric-collector/internal/sink"
)

func TestFutexAccumulatorWaitMonotonic(t *testing.T) {
	f := NewFutex()
	boot := clock.BootEpoch{OffsetNS: 0}

	f.FeedWait(events.WaitReduced{TID: 1, RootPID: 100, Uaddr: 0x10, SampleInstantNS: 1_000_000, TotalIntervalWaitNS: 500, Count: 2}, boot)
	f.FeedWait(events.WaitReduced{TID: 1, RootPID: 100, Uaddr: 0x10, SampleInstantNS: 2_000_000, TotalIntervalWaitNS: 700, Count: 3}, boot)

	key := futexKey{RootPID: 100, Uaddr: 0x10}
	st := f.waitStats[key]
	if st.accumulatedWaitNS != 1200 {
		t.Errorf("accumulated_wait = %d, want 1200", st.accumulatedWaitNS)
	}
	if st.count != 3 {
		t.Errorf("count = %d, want 3 (latest snapshot, not summed)", st.count)
	}
}

func TestFutexAccumulatorStore(t *testing.T) {
	dir := t.TempDir()
	waitCache, err := sink.NewFixedCache(4)
	if err != nil {
		t.Fatal(err)
	}
	wakeCache, err := sink.NewFixedCache(4)
	if err != nil {
		t.Fatal(err)
	}
	defer waitCache.Close()
	defer wakeCache.Close()

	f := NewFutex()
	boot := clock.BootEpoch{OffsetNS: 0}
	f.FeedWait(events.WaitReduced{TID: 1, RootPID: 100, Uaddr: 0x10, SampleInstantNS: 1_000_000_000, TotalIntervalWaitNS: 500, Count: 2}, boot)
	f.FeedWake(events.WakeReduced{TID: 1, RootPID: 100, Uaddr: 0x10, SampleInstantNS: 1_000_000_000, Count: 1}, boot)

	subdir := filepath.Join(dir, "thread", "9999", "1")
	if err := f.Store(subdir, waitCache, wakeCache); err != nil {
		t.Fatal(err)
	}
	waitCache.Close()
	wakeCache.Close()

	waitPath := filepath.Join(subdir, "futex", "wait", "0", "100-0x10.csv")
	data, err := os.ReadFile(waitPath)
	if err != nil {
		t.Fatalf("reading %s: %v", waitPath, err)
	}
	want := "epoch_ms,futex_wait_ns,futex_count\n1000,500,2\n"
	if string(data) != want {
		t.Errorf("got %q, want %q", data, want)
	}
}
