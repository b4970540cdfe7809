// Package reducer implements the Stat-Closure Reducer: it groups
// cached/pending fragments emitted between MapStart and MapEnd markers,
// keyed per dialect, and produces one derived event per key per
// interval using an elapsed-time-imputation rule.
package reducer

import "fmt"

// ErrMapEndWithoutStart is a fatal reducer-invariant error: MapEnd
// observed outside an open closure.
var ErrMapEndWithoutStart = fmt.Errorf("reducer: MapEnd without a prior MapStart")

// ErrSampleInstantOutsideClosure is a fatal reducer-invariant error:
// SampleInstant observed outside an open closure.
var ErrSampleInstantOutsideClosure = fmt.Errorf("reducer: SampleInstant outside a closure")

// Impute computes the elapsed-time-imputation formula:
//
//	pending_extra :=
//	  if pending is present:
//	    if t_prev exists AND ns_since_boot > t_prev:   max(t_curr - ns_since_boot, 0)
//	    elif t_prev exists:                             t_curr - t_prev
//	    else:                                           max(t_curr - ns_since_boot, 0)
//	  else: 0
//
// cachedNS is the cached fragment's total wait (zero if absent);
// hasCached/hasPending report which fragments existed for this key.
// tPrev is nil on the very first frame for this reducer.
func Impute(tCurr uint64, tPrev *uint64, hasPending bool, pendingNsSinceBoot uint64, hasCached bool, cachedNS uint64) (totalWaitNS uint64, pendingExtra uint64) {
	if hasPending {
		switch {
		case tPrev != nil && pendingNsSinceBoot > *tPrev:
			pendingExtra = saturatingSub(tCurr, pendingNsSinceBoot)
		case tPrev != nil:
			pendingExtra = tCurr - *tPrev
		default:
			pendingExtra = saturatingSub(tCurr, pendingNsSinceBoot)
		}
	}

	total := pendingExtra
	if hasCached {
		total += cachedNS
	}
	return total, pendingExtra
}

func saturatingSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}
