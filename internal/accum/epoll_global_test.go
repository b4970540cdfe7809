package accum

import (
	"testing"

	"github.com/majorcontext/metric-collector/internal/clock"
	"github.com/majorcontext/metric-collector/internal/events"
	"github.com/majorcontext/metric-collector/internal/sink"
)

func TestEpollGlobalAddRemoveWaitStore(t *testing.T) {
	dir := t.TempDir()
	cache := sink.NewExpiringCache(0)
	defer cache.Close()

	names := NewKFileMap()
	names.Bind(events.KFile{SuperBlockID: 8, InodeID: 80672}, events.IPv4{
		SrcAddr: [4]byte{127, 0, 0, 1}, SrcPort: 7878,
		DstAddr: [4]byte{127, 0, 0, 1}, DstPort: 50058,
	})

	g := NewEpollGlobal()
	target := events.Inode{Device: 8, InodeID: 80672}

	g.ApplyAdd(0xABCD, target, 437501291)
	g.ApplyRemove(0xABCD, target, 1016301358)
	g.ApplyAdd(0xABCD, target, 200000000)

	boot := clock.BootEpoch{OffsetNS: 0}
	g.ApplyWait(events.EpollWaitReduced{
		EventPoll: 0xABCD, SampleInstantNS: 19447107025962, TotalIntervalWaitNS: 289679399,
	}, boot)

	if err := g.Store(dir, names, cache); err != nil {
		t.Fatalf("Store: %v", err)
	}

	if g.classify(target, names) != "sockets" {
		t.Errorf("expected known socket inode to classify as sockets")
	}

	anon := events.AnonInode{Name: "eventfd", Address: 0x1234}
	if g.classify(anon, names) != "streams" {
		t.Errorf("expected AnonInode to classify as streams")
	}
}
