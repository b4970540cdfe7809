package parser

import (
	"testing"

	"github.com/majorcontext/metric-collector/internal/events"
)

func TestParseFutexWaitElapsed(t *testing.T) {
	got := ParseFutex("@wait_elapsed[8955, 8877, 0x7c3dd4f85fb0]: (847638877, 4)")
	want := events.WaitCached{
		TID:                 8955,
		RootPID:             8877,
		Uaddr:               0x7c3dd4f85fb0,
		TotalIntervalWaitNS: 847638877,
		CountIntervalWait:   4,
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestParseFutexWaitPending(t *testing.T) {
	got := ParseFutex("@wait_pending[8955]: (65384418811815, 8877, 0x7c3dd4f85fb0)")
	want := events.WaitPending{
		TID:         8955,
		RootPID:     8877,
		Uaddr:       0x7c3dd4f85fb0,
		NsSinceBoot: 65384418811815,
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestParseFutexFrameMarkers(t *testing.T) {
	if got := ParseFutex("=> start map statistics"); got != (events.MapStart{}) {
		t.Errorf("got %+v, want MapStart", got)
	}
	if got := ParseFutex("=> end map statistics"); got != (events.MapEnd{}) {
		t.Errorf("got %+v, want MapEnd", got)
	}
}

func TestParseFutexSampleInstant(t *testing.T) {
	got := ParseFutex("SampleInstant\t65384570945103")
	want := events.SampleInstant{NsSinceBoot: 65384570945103}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestParseFutexUnknownIsUnexpected(t *testing.T) {
	got := ParseFutex("garbage line here")
	if _, ok := got.(events.FutexUnexpected); !ok {
		t.Errorf("got %T, want FutexUnexpected", got)
	}
}
