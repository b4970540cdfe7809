package reducer

import (
	"testing"

	"github.com/majorcontext/metric-collector/internal/events"
)

func TestFutexReducerSingleWaitElapsed(t *testing.T) {
	r := NewFutexReducer()
	feed(t, r, events.MapStart{})
	feed(t, r, events.WaitCached{TID: 8955, RootPID: 8877, Uaddr: 0x7c3dd4f85fb0, TotalIntervalWaitNS: 847638877, CountIntervalWait: 4})
	feed(t, r, events.SampleInstant{NsSinceBoot: 65384570945103})
	waits, _ := feedEnd(t, r)

	if len(waits) != 1 {
		t.Fatalf("expected 1 wait, got %d", len(waits))
	}
	w := waits[0]
	if w.SampleInstantNS != 65384570945103 || w.TotalIntervalWaitNS != 847638877 || w.Count != 4 {
		t.Errorf("got %+v", w)
	}
}

func TestFutexReducerSingleWaitPending(t *testing.T) {
	r := NewFutexReducer()
	feed(t, r, events.MapStart{})
	feed(t, r, events.WaitPending{TID: 8955, RootPID: 8877, Uaddr: 0x7c3dd4f85fb0, NsSinceBoot: 65384418811815})
	feed(t, r, events.SampleInstant{NsSinceBoot: 65384570945103})
	waits, _ := feedEnd(t, r)

	if len(waits) != 1 {
		t.Fatalf("expected 1 wait, got %d", len(waits))
	}
	w := waits[0]
	wantTotal := uint64(65384570945103 - 65384418811815)
	if w.TotalIntervalWaitNS != wantTotal {
		t.Errorf("total = %d, want %d", w.TotalIntervalWaitNS, wantTotal)
	}
	if w.Count != 0 {
		t.Errorf("count = %d, want 0 (a wait with no cached fragment carries no count)", w.Count)
	}
}

func TestFutexReducerElapsedAndPendingCombined(t *testing.T) {
	r := NewFutexReducer()
	feed(t, r, events.MapStart{})
	feed(t, r, events.WaitCached{TID: 8955, RootPID: 8877, Uaddr: 0x7c3dd4f85fb0, TotalIntervalWaitNS: 847638877, CountIntervalWait: 4})
	feed(t, r, events.WaitPending{TID: 8955, RootPID: 8877, Uaddr: 0x7c3dd4f85fb0, NsSinceBoot: 65384418811815})
	feed(t, r, events.SampleInstant{NsSinceBoot: 65384570945103})
	waits, _ := feedEnd(t, r)

	if len(waits) != 1 {
		t.Fatalf("expected 1 wait, got %d", len(waits))
	}
	w := waits[0]
	wantTotal := uint64(847638877 + (65384570945103 - 65384418811815))
	if w.TotalIntervalWaitNS != wantTotal || w.Count != 4 {
		t.Errorf("got total=%d count=%d, want total=%d count=4", w.TotalIntervalWaitNS, w.Count, wantTotal)
	}
}

func TestFutexReducerTwoConsecutiveFrames(t *testing.T) {
	r := NewFutexReducer()
	key := FutexKey{TID: 8955, RootPID: 8877, Uaddr: 0x7c3dd4f85fb0}

	feed(t, r, events.MapStart{})
	feed(t, r, events.WaitCached{TID: key.TID, RootPID: key.RootPID, Uaddr: key.Uaddr, TotalIntervalWaitNS: 847638877, CountIntervalWait: 4})
	feed(t, r, events.WaitPending{TID: key.TID, RootPID: key.RootPID, Uaddr: key.Uaddr, NsSinceBoot: 65384418811815})
	feed(t, r, events.SampleInstant{NsSinceBoot: 65384570945103})
	waits1, _ := feedEnd(t, r)
	if len(waits1) != 1 || waits1[0].TotalIntervalWaitNS != 999772165 {
		t.Fatalf("frame 1: got %+v, want total=999772165", waits1)
	}

	feed(t, r, events.MapStart{})
	feed(t, r, events.WaitCached{TID: key.TID, RootPID: key.RootPID, Uaddr: key.Uaddr, TotalIntervalWaitNS: 748486373, CountIntervalWait: 4})
	feed(t, r, events.WaitPending{TID: key.TID, RootPID: key.RootPID, Uaddr: key.Uaddr, NsSinceBoot: 65385319694788})
	feed(t, r, events.SampleInstant{NsSinceBoot: 65385570860594})
	waits2, _ := feedEnd(t, r)
	if len(waits2) != 1 || waits2[0].TotalIntervalWaitNS != 999652179 {
		t.Fatalf("frame 2: got %+v, want total=999652179", waits2)
	}
}

func feed(t *testing.T, r *FutexReducer, ev events.FutexEvent) {
	t.Helper()
	if _, _, err := r.Feed(ev); err != nil {
		t.Fatalf("Feed(%+v) error: %v", ev, err)
	}
}

func feedEnd(t *testing.T, r *FutexReducer) ([]events.WaitReduced, []events.WakeReduced) {
	t.Helper()
	waits, wakes, err := r.Feed(events.MapEnd{})
	if err != nil {
		t.Fatalf("Feed(MapEnd) error: %v", err)
	}
	return waits, wakes
}
