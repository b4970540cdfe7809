package accum

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/majorcontext/metric-collector/internal/clock"
	"github.com/majorcontext/metric-collector/internal/sink"
)

const schedstatHeader = "epoch_ms,runtime,rq_time,run_periods\n"
const schedHeader = "epoch_ms,runtime,rq_time,sleep_time,block_time,iowait_time\n"

var schedFieldPattern = map[string]*regexp.Regexp{
	"sum_exec_runtime":  regexp.MustCompile(`se\.sum_exec_runtime\s*:\s*([\d.]+)`),
	"sum_sleep_runtime": regexp.MustCompile(`se\.sum_sleep_runtime\s*:\s*([\d.]+)`),
	"sum_block_runtime": regexp.MustCompile(`se\.sum_block_runtime\s*:\s*([\d.]+)`),
	"wait_start":        regexp.MustCompile(`se\.wait_start\s*:\s*([\d.]+)`),
	"sleep_start":       regexp.MustCompile(`se\.sleep_start\s*:\s*([\d.]+)`),
	"block_start":       regexp.MustCompile(`se\.block_start\s*:\s*([\d.]+)`),
	"wait_sum":          regexp.MustCompile(`se\.statistics\.wait_sum\s*:\s*([\d.]+)`),
	"iowait_sum":        regexp.MustCompile(`se\.statistics\.iowait_sum\s*:\s*([\d.]+)`),
}

// SchedStatSample is one row read from /proc/<tid>/schedstat: three
// whitespace-separated integers (runtime, rq_time total, run_periods).
type SchedStatSample struct {
	EpochMS   int64
	Runtime   uint64
	RqTime    uint64
	RunPeriods uint64
}

// SchedSample is the computed row from /proc/<tid>/sched.
type SchedSample struct {
	EpochMS    int64
	Runtime    float64
	RqTime     float64
	SleepTime  float64
	BlockTime  float64
	IowaitTime float64
}

// Sched is the time-sensitive scheduler accumulator for one thread.
// Sample runs on the orchestrator's dedicated sampler goroutine so
// /proc I/O latency never displaces the main tick; Store runs on the
// main tick goroutine. mu guards statQueue/schedQueue against that
// cross-goroutine access.
type Sched struct {
	mu         sync.Mutex
	statQueue  []SchedStatSample
	schedQueue []SchedSample
}

// NewSched returns an empty scheduler accumulator for one thread.
func NewSched() *Sched {
	return &Sched{}
}

// Sample reads /proc/<tid>/schedstat and /proc/<tid>/sched, computes the
// derived fields, and enqueues one sample of each. A read failure (the
// thread has exited) is reported so the Target Registry can remove it.
func (s *Sched) Sample(tid int, boot clock.BootEpoch, nowEpochMS int64) error {
	if err := s.sampleSchedstat(tid, nowEpochMS); err != nil {
		return fmt.Errorf("reading schedstat for tid %d: %w", tid, err)
	}
	if err := s.sampleSched(tid, nowEpochMS); err != nil {
		return fmt.Errorf("reading sched for tid %d: %w", tid, err)
	}
	return nil
}

func (s *Sched) sampleSchedstat(tid int, nowEpochMS int64) error {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/schedstat", tid))
	if err != nil {
		return err
	}
	fields := strings.Fields(string(data))
	if len(fields) < 3 {
		return fmt.Errorf("unexpected schedstat format: %q", data)
	}
	runtime, e1 := strconv.ParseUint(fields[0], 10, 64)
	rqTime, e2 := strconv.ParseUint(fields[1], 10, 64)
	runPeriods, e3 := strconv.ParseUint(fields[2], 10, 64)
	if e1 != nil || e2 != nil || e3 != nil {
		return fmt.Errorf("unparsable schedstat fields: %q", data)
	}
	s.mu.Lock()
	s.statQueue = append(s.statQueue, SchedStatSample{
		EpochMS: nowEpochMS, Runtime: runtime, RqTime: rqTime, RunPeriods: runPeriods,
	})
	s.mu.Unlock()
	return nil
}

func (s *Sched) sampleSched(tid int, nowEpochMS int64) error {
	f, err := os.Open(fmt.Sprintf("/proc/%d/sched", tid))
	if err != nil {
		return err
	}
	defer f.Close()

	var sb strings.Builder
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		sb.WriteString(scanner.Text())
		sb.WriteByte('\n')
	}

	sample := computeSchedSample(sb.String(), nowEpochMS)
	s.mu.Lock()
	s.schedQueue = append(s.schedQueue, sample)
	s.mu.Unlock()
	return nil
}

// computeSchedSample parses the /proc/<tid>/sched key-value blob and
// derives each *_since_start component: it is added only when its
// corresponding *_start field is present and non-zero.
func computeSchedSample(content string, nowEpochMS int64) SchedSample {
	fieldVal := func(name string) (float64, bool) {
		m := schedFieldPattern[name].FindStringSubmatch(content)
		if m == nil {
			return 0, false
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}

	sumExec, _ := fieldVal("sum_exec_runtime")
	sumSleep, _ := fieldVal("sum_sleep_runtime")
	sumBlock, _ := fieldVal("sum_block_runtime")
	waitStart, hasWaitStart := fieldVal("wait_start")
	sleepStart, hasSleepStart := fieldVal("sleep_start")
	blockStart, hasBlockStart := fieldVal("block_start")
	waitSum, _ := fieldVal("wait_sum")
	iowaitSum, _ := fieldVal("iowait_sum")

	nowMS := float64(nowEpochMS)

	rqTime := waitSum
	if hasWaitStart && waitStart != 0 {
		rqTime += maxF(nowMS-waitStart, 0)
	}
	sleepTime := sumSleep
	if hasSleepStart && sleepStart != 0 {
		sleepTime += maxF(nowMS-sleepStart, 0)
	}
	blockTime := sumBlock
	if hasBlockStart && blockStart != 0 {
		blockTime += maxF(nowMS-blockStart, 0)
	}

	return SchedSample{
		EpochMS: nowEpochMS, Runtime: sumExec, RqTime: rqTime,
		SleepTime: sleepTime, BlockTime: blockTime, IowaitTime: iowaitSum,
	}
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// Store flushes queued schedstat/sched samples to day-bucketed CSV
// files and clears the queues. subdir is "thread/<pid>/<tid>".
func (s *Sched) Store(subdir string, cache *sink.ExpiringCache) error {
	s.mu.Lock()
	statSamples := s.statQueue
	s.statQueue = nil
	schedSamples := s.schedQueue
	s.schedQueue = nil
	s.mu.Unlock()

	for _, sample := range statSamples {
		day := clock.DayBucket(sample.EpochMS)
		path := filepath.Join(subdir, "schedstat", fmt.Sprintf("%d.csv", day))
		row := fmt.Sprintf("%d,%d,%d,%d\n", sample.EpochMS, sample.Runtime, sample.RqTime, sample.RunPeriods)
		if err := cache.WriteRow(path, schedstatHeader, row); err != nil {
			return fmt.Errorf("writing schedstat row: %w", err)
		}
	}

	for _, sample := range schedSamples {
		day := clock.DayBucket(sample.EpochMS)
		path := filepath.Join(subdir, "sched", fmt.Sprintf("%d.csv", day))
		row := fmt.Sprintf("%d,%g,%g,%g,%g,%g\n", sample.EpochMS, sample.Runtime, sample.RqTime, sample.SleepTime, sample.BlockTime, sample.IowaitTime)
		if err := cache.WriteRow(path, schedHeader, row); err != nil {
			return fmt.Errorf("writing sched row: %w", err)
		}
	}
	return nil
}
