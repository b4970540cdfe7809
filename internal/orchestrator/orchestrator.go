package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/majorcontext/metric-collector/internal/accum"
	"github.com/majorcontext/metric-collector/internal/clock"
	"github.com/majorcontext/metric-collector/internal/framing"
	"github.com/majorcontext/metric-collector/internal/registry"
	"github.com/majorcontext/metric-collector/internal/reducer"
	"github.com/majorcontext/metric-collector/internal/sink"
	"github.com/majorcontext/metric-collector/internal/tracer"
)

// scripts maps each dialect to its bpftrace script path, relative to
// the process's working directory.
var scripts = map[string]string{
	"clone":  "./metric-collector/src/bpf/clone.bt",
	"futex":  "./metric-collector/src/bpf/futex_wait.bt",
	"iowait": "./metric-collector/src/bpf/io_wait.bt",
	"ipc":    "./metric-collector/src/bpf/ipc.bt",
}

// enlargePipe records which dialects get the 1 MiB pipe target; clone
// keeps the kernel default.
var enlargePipe = map[string]bool{
	"clone": false, "futex": true, "iowait": true, "ipc": true,
}

// jbd2Pattern matches the ext4 journal-commit kernel thread family,
// always seeded alongside the configured PIDs/process-name.
var jbd2Pattern = regexp.MustCompile(`^jbd2`)

// dialectReader pairs a tracer program with its Framed Reader and a
// queue of records drained off the reader goroutine under a mutex,
// needed because the tick loop peeks and drains on a timer rather than
// a channel.
type dialectReader struct {
	prog    *tracer.Program
	framer  *framing.Reader
	mu      sync.Mutex
	pending [][]byte
}

// Orchestrator is the Sampler Orchestrator control loop.
type Orchestrator struct {
	cfg    Config
	logger *slog.Logger
	boot   clock.BootEpoch

	reg         *registry.Registry
	futexRed    *reducer.FutexReducer
	iowaitRed   *reducer.IowaitReducer
	ipcRed      *reducer.IpcReducer
	epollGlobal *accum.EpollGlobal
	epollCache  *sink.ExpiringCache

	baseDir   string
	terminate atomic.Bool
}

// New constructs an Orchestrator, pinning BOOT_EPOCH_NS once.
func New(cfg Config, logger *slog.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	boot, err := clock.NewBootEpoch()
	if err != nil {
		return nil, fmt.Errorf("sampling boot epoch: %w", err)
	}
	return &Orchestrator{
		cfg:         cfg,
		logger:      logger,
		boot:        boot,
		reg:         registry.New(logger),
		futexRed:    reducer.NewFutexReducer(),
		iowaitRed:   reducer.NewIowaitReducer(),
		ipcRed:      reducer.NewIpcReducer(),
		epollGlobal: accum.NewEpollGlobal(),
		epollCache:  sink.NewExpiringCache(expiringTTL),
	}, nil
}

// Run executes the control loop until SIGINT/SIGTERM sets the cooperative
// terminate flag. A single shared *atomic.Bool, polled cooperatively by
// every goroutine below, is the only shutdown signal — there is
// deliberately no context-cancellation tree. ctx is used only to
// construct the tracer child processes (exec.CommandContext), not as
// the termination mechanism.
func (o *Orchestrator) Run(ctx context.Context) error {
	runDir, err := o.writeFilesystemVersion()
	if err != nil {
		return err
	}
	o.baseDir = runDir
	defer o.epollCache.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		o.terminate.Store(true)
	}()

	readers := make(map[string]*dialectReader, len(scripts))
	for name, script := range scripts {
		prog, err := tracer.Spawn(ctx, name, script, o.pidArg(), enlargePipe[name])
		if err != nil {
			return fmt.Errorf("spawning %s tracer: %w", name, err)
		}
		defer prog.Stop()
		readers[name] = &dialectReader{prog: prog, framer: framing.New()}
	}

	var g errgroup.Group

	for name, r := range readers {
		name, r := name, r
		g.Go(func() error {
			for chunk := range r.prog.Chunks() {
				r.mu.Lock()
				records := r.framer.Feed(chunk)
				r.pending = append(r.pending, records...)
				r.mu.Unlock()
			}
			o.logger.Debug("tracer stdout closed", "dialect", name)
			return nil
		})
	}

	o.waitForHeaders(readers)
	o.seedRegistry()

	ticker := time.NewTicker(o.cfg.Period)
	defer ticker.Stop()

	stopTracers := func() {
		// Closes the reader goroutines' Chunks channels so g.Wait() below
		// can return; the deferred Stop calls above are a no-op safety net.
		for name, r := range readers {
			if err := r.prog.Stop(); err != nil {
				o.logger.Warn("killing tracer", "dialect", name, "error", err)
			}
		}
	}

	g.Go(func() error {
		for range ticker.C {
			if err := o.tick(readers); err != nil {
				o.terminate.Store(true)
				stopTracers()
				o.logger.Error("terminating run on fatal error", "error", err, "fatal", isFatal(err))
				return err
			}
			if o.terminate.Load() {
				stopTracers()
				return nil
			}
		}
		return nil
	})

	g.Go(func() error {
		o.sample()
		return nil
	})

	return g.Wait()
}

func (o *Orchestrator) pidArg() *int {
	if len(o.cfg.PIDs) == 1 {
		return &o.cfg.PIDs[0]
	}
	return nil
}

func (o *Orchestrator) writeFilesystemVersion() (string, error) {
	start := time.Now().UTC().Format(time.RFC3339)
	runDir := filepath.Join(o.cfg.DataDirectory, start, "system-metrics")
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("creating run directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "version.txt"), []byte(filesystemVersion), 0o644); err != nil {
		return "", fmt.Errorf("writing version.txt: %w", err)
	}
	return runDir, nil
}

// waitForHeaders blocks until every tracer's Framed Reader has consumed
// its header line. There is deliberately no timeout: a tracer that
// never emits a header hangs startup rather than silently degrading.
func (o *Orchestrator) waitForHeaders(readers map[string]*dialectReader) {
	for {
		allSeen := true
		for _, r := range readers {
			r.mu.Lock()
			seen := r.framer.HeaderSeen()
			r.mu.Unlock()
			if !seen {
				allSeen = false
			}
		}
		if allSeen {
			return
		}
		time.Sleep(headerWaitPollInterval)
	}
}

// seedRegistry registers the configured PIDs (or process-name matches)
// plus, always, kernel journal-commit threads ("jbd2*").
func (o *Orchestrator) seedRegistry() {
	if len(o.cfg.PIDs) > 0 {
		o.reg.SeedPIDs(o.cfg.PIDs)
	} else if o.cfg.ProcessName != "" {
		pattern, err := regexp.Compile(o.cfg.ProcessName)
		if err != nil {
			o.logger.Error("invalid process-name pattern", "pattern", o.cfg.ProcessName, "error", soft(err))
		} else if err := o.reg.SeedProcessNamePattern(pattern); err != nil {
			o.logger.Warn("seeding by process name", "error", soft(err))
		}
	}

	if err := o.reg.SeedKthreadPattern(jbd2Pattern); err != nil {
		o.logger.Warn("seeding jbd2 kthreads", "error", soft(err))
	}
}

// tick drains every dialect's pending records, dispatches their parsed
// events, then flushes every registered target's accumulators plus the
// global epoll state. It never touches /proc itself — that is the
// dedicated sampler goroutine's job (see sample) — so a slow CSV flush
// or dialect backlog never delays a schedstat/sched read, and vice
// versa. A non-nil return is always a fatalError: a reducer-invariant
// violation surfaced by dispatch, or a CSV sink write failure.
func (o *Orchestrator) tick(readers map[string]*dialectReader) error {
	for name, r := range readers {
		r.mu.Lock()
		lines := r.pending
		r.pending = nil
		r.mu.Unlock()

		for _, line := range lines {
			if err := o.dispatch(name, string(line)); err != nil {
				return err
			}
		}
	}

	if err := o.reg.StoreAll(o.baseDir); err != nil {
		return fatal(err)
	}

	if err := o.epollGlobal.Store(o.baseDir, o.reg.Names(), o.epollCache); err != nil {
		return fatal(fmt.Errorf("storing epoll global state: %w", err))
	}

	return nil
}

// sample runs on its own goroutine, polling /proc on the same period as
// tick but never blocking it: schedstat/sched reads can take long enough
// under load that sharing tick's goroutine would delay dialect draining
// and CSV flushing behind them.
func (o *Orchestrator) sample() {
	ticker := time.NewTicker(o.cfg.Period)
	defer ticker.Stop()
	for range ticker.C {
		o.reg.SampleAll(o.boot, time.Now().UnixMilli())
		if o.terminate.Load() {
			return
		}
	}
}
