package epoll

import (
	"testing"

	"github.com/majorcontext/metric-collector/internal/events"
)

func TestAttributionAddRemoveWait(t *testing.T) {
	s := NewState(nil)
	target := events.Inode{Device: 8, InodeID: 80672}

	s.Add(target, 437501291)
	s.Remove(target, 1016301358)
	s.Add(target, 200000000)
	s.Wait(19447107025962, 289679399)

	stats := s.statsFor(target)
	want := uint64((1016301358 - 437501291) + (289679399 - 200000000))
	if stats.AccumulatedWaitNS != want {
		t.Errorf("accumulated_wait = %d, want %d", stats.AccumulatedWaitNS, want)
	}

	snaps := s.Snapshots(target)
	if len(snaps) == 0 {
		t.Fatal("expected a filled-instant snapshot")
	}
	last := snaps[len(snaps)-1]
	if last.InstantNS == nil || *last.InstantNS != 19447107025962 {
		t.Errorf("expected instant filled at 19447107025962, got %+v", last.InstantNS)
	}
}

func TestAttributionRemoveAbsorbsCounterReset(t *testing.T) {
	s := NewState(nil)
	target := events.Epoll{Address: 0xABCD}

	s.Add(target, 1000)
	// contrib_snapshot smaller than add snapshot: counter reset, absorbed
	// by taking contrib alone.
	s.Remove(target, 50)

	stats := s.statsFor(target)
	if stats.AccumulatedWaitNS != 50 {
		t.Errorf("accumulated_wait = %d, want 50", stats.AccumulatedWaitNS)
	}
}

func TestAttributionTentativeBackfill(t *testing.T) {
	s := NewState(nil)
	target := events.Inode{Device: 1, InodeID: 2}

	s.Add(target, 100)
	s.Remove(target, 150) // tentative snapshot appended, instant nil

	snaps := s.Snapshots(target)
	if len(snaps) != 1 || snaps[0].InstantNS != nil {
		t.Fatalf("expected one tentative snapshot, got %+v", snaps)
	}

	// A later Wait with no active targets still backfills the tentative
	// entry's instant.
	s.Wait(999, 0)
	snaps = s.Snapshots(target)
	if len(snaps) != 1 || snaps[0].InstantNS == nil || *snaps[0].InstantNS != 999 {
		t.Fatalf("expected backfilled instant 999, got %+v", snaps)
	}
}
