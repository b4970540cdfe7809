// Package clock converts tracer-reported boot-relative timestamps into
// wall-clock epoch time.
//
// Tracer events carry ns_since_boot, a CLOCK_BOOTTIME-relative nanosecond
// count. At startup the engine samples CLOCK_REALTIME and CLOCK_BOOTTIME
// once, computes their offset, and uses that fixed offset for the rest of
// the process lifetime to convert every later ns_since_boot into an
// absolute epoch_ns.
package clock

import (
	"time"

	"golang.org/x/sys/unix"
)

// BootEpoch holds the offset between CLOCK_REALTIME and CLOCK_BOOTTIME,
// sampled once at process start.
type BootEpoch struct {
	// OffsetNS is wall_epoch_ns_now - boot_ns_now at the moment it was sampled.
	OffsetNS int64
}

// NewBootEpoch samples both clocks and returns their fixed offset.
func NewBootEpoch() (BootEpoch, error) {
	var bootTS unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_BOOTTIME, &bootTS); err != nil {
		return BootEpoch{}, err
	}
	wallNS := time.Now().UnixNano()
	bootNS := bootTS.Nano()
	return BootEpoch{OffsetNS: wallNS - bootNS}, nil
}

// EpochNS converts a boot-relative nanosecond timestamp to epoch nanoseconds.
func (b BootEpoch) EpochNS(nsSinceBoot int64) int64 {
	return b.OffsetNS + nsSinceBoot
}

// EpochMS converts a boot-relative nanosecond timestamp to epoch milliseconds,
// the unit used for file-partitioning calculations.
func (b BootEpoch) EpochMS(nsSinceBoot int64) int64 {
	return b.EpochNS(nsSinceBoot) / int64(time.Millisecond)
}

// MinuteBucket returns the minute-aligned bucket, in seconds since the
// epoch, that epochMS falls into: (epoch_ms / 60000) * 60.
func MinuteBucket(epochMS int64) int64 {
	const minuteMS = 60_000
	return (epochMS / minuteMS) * 60
}

// DayBucket returns the day-aligned bucket, in epoch milliseconds, that
// epochMS falls into: (epoch_ms / 86400000) * 86400000.
func DayBucket(epochMS int64) int64 {
	const dayMS = 86_400_000
	return (epochMS / dayMS) * dayMS
}
