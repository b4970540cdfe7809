package parser

import "github.com/majorcontext/metric-collector/internal/events"

// ParseFutex parses one framed record from the futex tracer dialect.
func ParseFutex(line string) events.FutexEvent {
	if line == startMarker {
		return events.MapStart{}
	}
	if line == endMarker {
		return events.MapEnd{}
	}

	if ms, ok := parseMapSummary(line); ok {
		switch ms.Name {
		case "wait_elapsed":
			// key: tid, root_pid, uaddr ; value: (total_ns, count)
			if len(ms.Fields) != 5 {
				return events.FutexUnexpected{Data: line}
			}
			tid, e1 := parseInt(ms.Fields[0])
			rootPID, e2 := parseInt(ms.Fields[1])
			uaddr, e3 := parseUint(ms.Fields[2])
			total, e4 := parseUint(ms.Fields[3])
			count, e5 := parseUint(ms.Fields[4])
			if e1 != nil || e2 != nil || e3 != nil || e4 != nil || e5 != nil {
				return events.FutexUnexpected{Data: line}
			}
			return events.WaitCached{
				TID:                 tid,
				RootPID:             rootPID,
				Uaddr:               uaddr,
				TotalIntervalWaitNS: total,
				CountIntervalWait:   count,
			}
		case "wait_pending":
			// key: tid ; value: (ns_since_boot, root_pid, uaddr)
			if len(ms.Fields) != 4 {
				return events.FutexUnexpected{Data: line}
			}
			tid, e1 := parseInt(ms.Fields[0])
			nsSinceBoot, e2 := parseUint(ms.Fields[1])
			rootPID, e3 := parseInt(ms.Fields[2])
			uaddr, e4 := parseUint(ms.Fields[3])
			if e1 != nil || e2 != nil || e3 != nil || e4 != nil {
				return events.FutexUnexpected{Data: line}
			}
			return events.WaitPending{
				TID:         tid,
				RootPID:     rootPID,
				Uaddr:       uaddr,
				NsSinceBoot: nsSinceBoot,
			}
		case "wake":
			// key: tid, root_pid, uaddr ; value: count
			if len(ms.Fields) != 4 {
				return events.FutexUnexpected{Data: line}
			}
			tid, e1 := parseInt(ms.Fields[0])
			rootPID, e2 := parseInt(ms.Fields[1])
			uaddr, e3 := parseUint(ms.Fields[2])
			count, e4 := parseUint(ms.Fields[3])
			if e1 != nil || e2 != nil || e3 != nil || e4 != nil {
				return events.FutexUnexpected{Data: line}
			}
			return events.Wake{TID: tid, RootPID: rootPID, Uaddr: uaddr, Count: count}
		default:
			return events.FutexUnexpected{Data: line}
		}
	}

	tag, fields := splitTraceLine(line)
	switch tag {
	case "SampleInstant":
		if len(fields) != 1 {
			return events.FutexUnexpected{Data: line}
		}
		ns, err := parseUint(fields[0])
		if err != nil {
			return events.FutexUnexpected{Data: line}
		}
		return events.SampleInstant{NsSinceBoot: ns}
	case "NewProcess":
		if len(fields) != 1 {
			return events.FutexUnexpected{Data: line}
		}
		pid, err := parseInt(fields[0])
		if err != nil {
			return events.FutexUnexpected{Data: line}
		}
		return events.FutexNewProcess{PID: pid}
	default:
		return events.FutexUnexpected{Data: line}
	}
}
