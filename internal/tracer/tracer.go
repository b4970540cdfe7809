// Package tracer implements the Tracer Pipe: one external tracer child
// process per dialect, its stdout wired to an enlarged OS pipe, and a
// reader goroutine forwarding raw byte chunks over a channel.
package tracer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// readChunkSize is the per-read buffer size.
const readChunkSize = 64 * 1024

// enlargedPipeSize is the target pipe buffer size for the futex,
// iowait, and ipc tracers. The clone tracer keeps the kernel default.
const enlargedPipeSize = 1 << 20

// Program is a running tracer child process: its stdout is read on a
// dedicated goroutine and forwarded as immutable byte slices over Chunks.
type Program struct {
	Name string

	cmd       *exec.Cmd
	pipeR     *os.File
	chunks    chan []byte
	terminate atomic.Bool
	done      chan struct{}
}

// Spawn starts "bpftrace <script> [pid]" (optionally scoped to one pid)
// with its stdout wired to an OS pipe. When enlarge is true the pipe
// buffer is grown to enlargedPipeSize via F_SETPIPE_SZ; this silently
// no-ops if the kernel refuses, since only the initial spawn itself is
// treated as fatal.
func Spawn(ctx context.Context, name, script string, pid *int, enlarge bool) (*Program, error) {
	return spawnBinary(ctx, "bpftrace", name, script, pid, enlarge)
}

// spawnBinary is Spawn with the tracer binary overridable, so tests can
// exercise the pipe/reader plumbing without a real bpftrace install.
func spawnBinary(ctx context.Context, bin, name, script string, pid *int, enlarge bool) (*Program, error) {
	args := []string{script}
	if pid != nil {
		args = append(args, strconv.Itoa(*pid))
	}
	cmd := exec.CommandContext(ctx, bin, args...)

	pipeR, pipeW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating pipe for tracer %s: %w", name, err)
	}
	cmd.Stdout = pipeW
	cmd.Stderr = os.Stderr

	if enlarge {
		if _, err := unix.FcntlInt(pipeR.Fd(), unix.F_SETPIPE_SZ, enlargedPipeSize); err != nil {
			// Non-fatal: the kernel may cap this below our request, or
			// refuse entirely under a restrictive pipe-user-pages-soft limit.
		}
	}

	if err := cmd.Start(); err != nil {
		pipeR.Close()
		pipeW.Close()
		return nil, fmt.Errorf("spawning tracer %s: %w", name, err)
	}
	pipeW.Close() // parent's copy of the write end; the child keeps its own

	p := &Program{
		Name:   name,
		cmd:    cmd,
		pipeR:  pipeR,
		chunks: make(chan []byte, 4096),
		done:   make(chan struct{}),
	}
	go p.readLoop()
	return p, nil
}

// Chunks returns the channel of raw byte slices read from the tracer's
// stdout. It is closed when the reader goroutine exits (EOF, read
// error, or the terminate flag).
func (p *Program) Chunks() <-chan []byte { return p.chunks }

func (p *Program) readLoop() {
	defer close(p.chunks)
	defer close(p.done)
	buf := make([]byte, readChunkSize)
	for {
		if p.terminate.Load() {
			return
		}
		n, err := p.pipeR.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			// Blocks until the orchestrator drains the channel; there is
			// no flow control back to the tracer.
			p.chunks <- chunk
		}
		if err != nil {
			return
		}
	}
}

// Stop sets the terminate flag and kills the child process. Orphaned
// children are unacceptable; a kill failure is returned for the caller
// to log, and Stop always proceeds to release the pipe and reap the
// child.
func (p *Program) Stop() error {
	p.terminate.Store(true)
	var killErr error
	if p.cmd.Process != nil {
		killErr = p.cmd.Process.Kill()
	}
	p.pipeR.Close()
	<-p.done
	_ = p.cmd.Wait()
	return killErr
}
