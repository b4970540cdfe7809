package tracer

import (
	"context"
	"testing"
	"time"
)

func TestSpawnForwardsStdoutChunks(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := spawnBinary(ctx, "/bin/echo", "clone", "tracer-hello", nil, false)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer p.Stop()

	var got []byte
	timeout := time.After(2 * time.Second)
	for {
		select {
		case chunk, ok := <-p.Chunks():
			if !ok {
				if len(got) == 0 {
					t.Fatalf("channel closed with no data read")
				}
				return
			}
			got = append(got, chunk...)
		case <-timeout:
			t.Fatalf("timed out waiting for tracer output, got so far: %q", got)
		}
	}
}

func TestStopKillsChildAndClosesChannel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := spawnBinary(ctx, "/bin/sleep", "futex", "5", nil, true)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	_ = p.Stop()

	select {
	case _, ok := <-p.Chunks():
		if ok {
			t.Error("expected channel to be closed or empty after Stop")
		}
	default:
	}
}
