package parser

import "github.com/majorcontext/metric-collector/internal/events"

// ParseIowait parses one framed record from the iowait tracer dialect.
// Map-summary key order is (part0, device, tid, pid), matching the
// tracer's StatsClosureKey field order.
func ParseIowait(line string) events.IowaitEvent {
	if line == startMarker {
		return events.IowaitMapStart{}
	}
	if line == endMarker {
		return events.IowaitMapEnd{}
	}

	if ms, ok := parseMapSummary(line); ok {
		switch ms.Name {
		case "completed":
			// key: part0, device, tid, pid ; value: sector_cnt
			if len(ms.Fields) != 5 {
				return events.IowaitUnexpected{Data: line}
			}
			part0, e1 := parseUint(ms.Fields[0])
			device, e2 := parseUint(ms.Fields[1])
			tid, e3 := parseInt(ms.Fields[2])
			pid, e4 := parseInt(ms.Fields[3])
			sectorCnt, e5 := parseUint(ms.Fields[4])
			if e1 != nil || e2 != nil || e3 != nil || e4 != nil || e5 != nil {
				return events.IowaitUnexpected{Data: line}
			}
			return events.Completed{
				Part0:     part0,
				Device:    device,
				TID:       tid,
				PID:       pid,
				SectorCnt: sectorCnt,
			}
		case "pending":
			// key: part0, device, tid, pid ; value: (ns_since_boot, sector_cnt)
			if len(ms.Fields) != 6 {
				return events.IowaitUnexpected{Data: line}
			}
			part0, e1 := parseUint(ms.Fields[0])
			device, e2 := parseUint(ms.Fields[1])
			tid, e3 := parseInt(ms.Fields[2])
			pid, e4 := parseInt(ms.Fields[3])
			nsSinceBoot, e5 := parseUint(ms.Fields[4])
			sectorCnt, e6 := parseUint(ms.Fields[5])
			if e1 != nil || e2 != nil || e3 != nil || e4 != nil || e5 != nil || e6 != nil {
				return events.IowaitUnexpected{Data: line}
			}
			return events.Pending{
				Part0:       part0,
				Device:      device,
				TID:         tid,
				PID:         pid,
				NsSinceBoot: nsSinceBoot,
				SectorCnt:   sectorCnt,
			}
		default:
			return events.IowaitUnexpected{Data: line}
		}
	}

	tag, fields := splitTraceLine(line)
	switch tag {
	case "SampleInstant":
		if len(fields) != 1 {
			return events.IowaitUnexpected{Data: line}
		}
		ns, err := parseUint(fields[0])
		if err != nil {
			return events.IowaitUnexpected{Data: line}
		}
		return events.IowaitSampleInstant{NsSinceBoot: ns}
	default:
		return events.IowaitUnexpected{Data: line}
	}
}
