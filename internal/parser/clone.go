package parser

import "github.com/majorcontext/metric-collector/internal/events"

// ParseClone parses one framed record from the clone tracer dialect.
// The clone dialect has no map-summary or frame-marker lines: every
// record is a tab-separated trace line.
func ParseClone(line string) events.CloneEvent {
	tag, fields := splitTraceLine(line)
	switch tag {
	case "NewThread":
		if len(fields) != 3 {
			return events.Unexpected{Data: line}
		}
		pid, err1 := parseInt(fields[1])
		tid, err2 := parseInt(fields[2])
		if err1 != nil || err2 != nil {
			return events.Unexpected{Data: line}
		}
		return events.NewThread{Comm: fields[0], PID: pid, TID: tid}
	case "NewProcess":
		if len(fields) != 2 {
			return events.Unexpected{Data: line}
		}
		pid, err := parseInt(fields[1])
		if err != nil {
			return events.Unexpected{Data: line}
		}
		return events.NewProcess{Comm: fields[0], PID: pid}
	case "RemoveProcess":
		if len(fields) != 1 {
			return events.Unexpected{Data: line}
		}
		pid, err := parseInt(fields[0])
		if err != nil {
			return events.Unexpected{Data: line}
		}
		return events.RemoveProcess{PID: pid}
	default:
		return events.Unexpected{Data: line}
	}
}
