package registry

import (
	"os"
	"regexp"
	"testing"

	"github.com/majorcontext/metric-collector/internal/events"
)

func TestApplyCloneNewProcessRegistersTasks(t *testing.T) {
	r := New(nil)
	pid := os.Getpid()

	r.ApplyClone(events.NewProcess{Comm: "self", PID: pid})

	if len(r.targets) == 0 {
		t.Fatalf("expected at least the current thread to be registered")
	}
	for tid, target := range r.targets {
		if target.PID != pid {
			t.Errorf("tid %d has PID %d, want %d", tid, target.PID, pid)
		}
	}
}

func TestApplyCloneNewThreadDoesNotDuplicate(t *testing.T) {
	r := New(nil)
	r.ApplyClone(events.NewThread{Comm: "x", PID: 100, TID: 200})
	r.ApplyClone(events.NewThread{Comm: "x", PID: 100, TID: 200})

	if len(r.targets) != 1 {
		t.Errorf("got %d targets, want 1 (duplicate NewThread must be ignored)", len(r.targets))
	}
}

func TestApplyCloneRemoveProcess(t *testing.T) {
	r := New(nil)
	r.ApplyClone(events.NewThread{Comm: "x", PID: 100, TID: 200})
	r.ApplyClone(events.NewThread{Comm: "x", PID: 100, TID: 201})
	r.ApplyClone(events.NewThread{Comm: "y", PID: 300, TID: 400})

	r.ApplyClone(events.RemoveProcess{PID: 100})

	if _, ok := r.Get(200); ok {
		t.Error("tid 200 should have been removed")
	}
	if _, ok := r.Get(201); ok {
		t.Error("tid 201 should have been removed")
	}
	if _, ok := r.Get(400); !ok {
		t.Error("tid 400 (different pid) should remain")
	}
}

func TestSeedProcessNamePatternMatchesSelf(t *testing.T) {
	r := New(nil)
	comm, err := Comm(os.Getpid())
	if err != nil {
		t.Skipf("cannot read own comm: %v", err)
	}

	pattern := regexp.MustCompile(regexp.QuoteMeta(comm))
	if err := r.SeedProcessNamePattern(pattern); err != nil {
		t.Fatalf("SeedProcessNamePattern: %v", err)
	}
	if _, ok := r.pidKnown(os.Getpid()); !ok {
		t.Errorf("expected own pid to be seeded by comm pattern %q", comm)
	}
}
