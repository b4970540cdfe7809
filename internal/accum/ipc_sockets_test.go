package accum

import (
	"testing"

	"github.com/majorcontext/metric-collector/internal/clock"
	"github.com/majorcontext/metric-collector/internal/events"
	"github.com/majorcontext/metric-collector/internal/sink"
)

func TestIpcSocketsMonotonicAccumulation(t *testing.T) {
	s := NewIpcSockets()
	boot := clock.BootEpoch{OffsetNS: 0}

	s.FeedWait(events.InodeWaitReduced{
		FsType: "sockfs", Device: 8, InodeID: 80672,
		SampleInstantNS: 1_000_000_000, TotalWaitNS: 500, CountWait: ptrU64(2),
	}, boot)
	s.FeedWait(events.InodeWaitReduced{
		FsType: "sockfs", Device: 8, InodeID: 80672,
		SampleInstantNS: 2_000_000_000, TotalWaitNS: 700, CountWait: ptrU64(3),
	}, boot)

	kfile := events.KFile{SuperBlockID: 8, InodeID: 80672}
	st := s.stats[kfile]
	if st.accumulatedWaitNS != 1200 {
		t.Errorf("accumulated_wait = %d, want 1200", st.accumulatedWaitNS)
	}
	if st.count != 3 {
		t.Errorf("count = %d, want 3 (latest snapshot)", st.count)
	}
}

func TestIpcSocketsRenameOnIdentityKnown(t *testing.T) {
	dir := t.TempDir()
	cache := sink.NewExpiringCache(0)
	defer cache.Close()

	boot := clock.BootEpoch{OffsetNS: 0}
	s := NewIpcSockets()
	s.FeedWait(events.InodeWaitReduced{
		FsType: "sockfs", Device: 8, InodeID: 80672,
		SampleInstantNS: 1_000_000_000, TotalWaitNS: 100, CountWait: ptrU64(1),
	}, boot)

	names := NewKFileMap()
	if err := s.Store(dir, names, cache); err != nil {
		t.Fatalf("Store (unknown identity): %v", err)
	}

	names.Bind(events.KFile{SuperBlockID: 8, InodeID: 80672}, events.IPv4{
		SrcAddr: [4]byte{127, 0, 0, 1}, SrcPort: 7878,
		DstAddr: [4]byte{127, 0, 0, 1}, DstPort: 50058,
	})

	s.FeedWait(events.InodeWaitReduced{
		FsType: "sockfs", Device: 8, InodeID: 80672,
		SampleInstantNS: 2_000_000_000, TotalWaitNS: 50, CountWait: ptrU64(2),
	}, boot)
	if err := s.Store(dir, names, cache); err != nil {
		t.Fatalf("Store (known identity): %v", err)
	}
}

func ptrU64(v uint64) *uint64 { return &v }
