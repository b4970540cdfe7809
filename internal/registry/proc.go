package registry

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// pfKthread is the PF_KTHREAD bit of /proc/<pid>/stat's flags field
// (field 9, 1-indexed), set on kernel threads.
const pfKthread = 0x00200000

// Tasks enumerates /proc/<pid>/task/* and returns the full set of tids
// belonging to pid.
func Tasks(pid int) ([]int, error) {
	entries, err := os.ReadDir(fmt.Sprintf("/proc/%d/task", pid))
	if err != nil {
		return nil, fmt.Errorf("reading task directory for pid %d: %w", pid, err)
	}
	tids := make([]int, 0, len(entries))
	for _, e := range entries {
		tid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		tids = append(tids, tid)
	}
	return tids, nil
}

// IsKthread reports whether pid is a kernel thread, by checking bit
// PF_KTHREAD of the flags field in /proc/<pid>/stat.
func IsKthread(pid int) (bool, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return false, fmt.Errorf("reading stat for pid %d: %w", pid, err)
	}
	return statHasKthreadFlag(string(data))
}

// statHasKthreadFlag parses the flags field (the 9th field, but the
// 2nd field - comm - may itself contain spaces inside parentheses, so
// counting starts after the closing paren) out of a /proc/<pid>/stat
// line and tests the PF_KTHREAD bit.
func statHasKthreadFlag(stat string) (bool, error) {
	end := strings.LastIndexByte(stat, ')')
	if end < 0 || end+2 > len(stat) {
		return false, fmt.Errorf("unexpected stat format: %q", stat)
	}
	fields := strings.Fields(stat[end+2:])
	const flagsFieldIndex = 9 - 3 // fields[0] is field 3 (state); flags is field 9
	if len(fields) <= flagsFieldIndex {
		return false, fmt.Errorf("stat missing flags field: %q", stat)
	}
	flags, err := strconv.ParseUint(fields[flagsFieldIndex], 10, 64)
	if err != nil {
		return false, fmt.Errorf("unparsable flags field: %q", fields[flagsFieldIndex])
	}
	return flags&pfKthread != 0, nil
}

// Comm reads /proc/<pid>/comm, trimmed of its trailing newline.
func Comm(pid int) (string, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
	if err != nil {
		return "", fmt.Errorf("reading comm for pid %d: %w", pid, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// AllPIDs enumerates every numeric entry directly under /proc, i.e.
// every currently-running process.
func AllPIDs() ([]int, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, fmt.Errorf("reading /proc: %w", err)
	}
	pids := make([]int, 0, len(entries))
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		pids = append(pids, pid)
	}
	return pids, nil
}
