package orchestrator

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/majorcontext/metric-collector/internal/accum"
	"github.com/majorcontext/metric-collector/internal/clock"
	"github.com/majorcontext/metric-collector/internal/registry"
	"github.com/majorcontext/metric-collector/internal/reducer"
	"github.com/majorcontext/metric-collector/internal/sink"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, string) {
	t.Helper()
	dir := t.TempDir()
	o := &Orchestrator{
		cfg:         Config{DataDirectory: dir},
		logger:      slog.Default(),
		boot:        clock.BootEpoch{OffsetNS: 0},
		reg:         registry.New(slog.Default()),
		futexRed:    reducer.NewFutexReducer(),
		iowaitRed:   reducer.NewIowaitReducer(),
		ipcRed:      reducer.NewIpcReducer(),
		epollGlobal: accum.NewEpollGlobal(),
		epollCache:  sink.NewExpiringCache(expiringTTL),
		baseDir:     dir,
	}
	return o, dir
}

func TestDispatchFutexForUnknownTIDKeepsSeededTarget(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	defer o.epollCache.Close()

	pid := os.Getpid()
	o.reg.SeedPIDs([]int{pid})

	tids, err := registry.Tasks(pid)
	require.NoError(t, err)
	require.NotEmpty(t, tids)
	tid := tids[0]

	o.dispatch("futex", "=> start map statistics")
	o.dispatch("futex", "@wait_elapsed[42, 99, 1234]: (500000, 2)")
	o.dispatch("futex", "SampleInstant\t1000000000")
	o.dispatch("futex", "=> end map statistics")

	_, ok := o.reg.Get(tid)
	require.True(t, ok, "seeded pid's main thread should be registered")
}

func TestDispatchUnknownLineDoesNotPanic(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	defer o.epollCache.Close()

	require.NotPanics(t, func() {
		o.dispatch("ipc", "not a recognized record")
		o.dispatch("clone", "garbage")
		o.dispatch("iowait", "")
	})
}

func TestTickFlushesWithoutReaders(t *testing.T) {
	o, dir := newTestOrchestrator(t)
	defer o.epollCache.Close()

	var err error
	require.NotPanics(t, func() {
		err = o.tick(map[string]*dialectReader{})
	})
	require.NoError(t, err)

	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("expected base dir to exist: %v", err)
	}
}

func TestDispatchFutexMapEndWithoutStartIsFatal(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	defer o.epollCache.Close()

	err := o.dispatch("futex", "=> end map statistics")
	require.Error(t, err)
	require.True(t, isFatal(err))
	require.ErrorIs(t, err, reducer.ErrMapEndWithoutStart)
}

func TestDispatchIowaitSampleInstantOutsideClosureIsFatal(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	defer o.epollCache.Close()

	err := o.dispatch("iowait", "SampleInstant\t1000000000")
	require.Error(t, err)
	require.True(t, isFatal(err))
	require.ErrorIs(t, err, reducer.ErrSampleInstantOutsideClosure)
}

func TestTickPropagatesFatalDispatchError(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	defer o.epollCache.Close()

	readers := map[string]*dialectReader{
		"futex": {framer: nil, pending: [][]byte{[]byte("=> end map statistics")}},
	}

	err := o.tick(readers)
	require.Error(t, err)
	require.True(t, isFatal(err))
}
