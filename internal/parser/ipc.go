package parser

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/majorcontext/metric-collector/internal/events"
)

// ParseIpc parses one framed record from the ipc tracer dialect. This is
// the most complex dialect: socket-family discrimination selects the
// Connection constructor and field count, hex-prefixed addresses are
// parsed as base-16, and anon_inodefs targets carry an extra name field
// before the address.
func ParseIpc(line string) events.IpcEvent {
	if line == startMarker {
		return events.IpcMapStart{}
	}
	if line == endMarker {
		return events.IpcMapEnd{}
	}

	if ms, ok := parseMapSummary(line); ok {
		return parseIpcMapSummary(ms, line)
	}

	tag, fields := splitTraceLine(line)
	switch tag {
	case "NewSocketMap":
		// fs_type, sb_id, inode_id, family, conn fields...
		if len(fields) < 4 {
			return events.IpcUnexpected{Data: line}
		}
		sbID, e1 := parseUint(fields[1])
		inodeID, e2 := parseUint(fields[2])
		conn, err := parseConnection(fields[3], fields[4:])
		if e1 != nil || e2 != nil || err != nil {
			return events.IpcUnexpected{Data: line}
		}
		return events.NewSocketMap{FsType: fields[0], SbID: sbID, InodeID: inodeID, Conn: conn}

	case "AcceptEnd", "ConnectEnd":
		// comm, tid, fs_type, sb_id, inode_id, family, conn fields...
		if len(fields) < 6 {
			return events.IpcUnexpected{Data: line}
		}
		tid, e1 := parseInt(fields[1])
		sbID, e2 := parseUint(fields[3])
		inodeID, e3 := parseUint(fields[4])
		conn, err := parseConnection(fields[5], fields[6:])
		if e1 != nil || e2 != nil || e3 != nil || err != nil {
			return events.IpcUnexpected{Data: line}
		}
		if tag == "AcceptEnd" {
			return events.AcceptEnd{Comm: fields[0], TID: tid, FsType: fields[2], SbID: sbID, InodeID: inodeID, Conn: conn}
		}
		return events.ConnectEnd{Comm: fields[0], TID: tid, FsType: fields[2], SbID: sbID, InodeID: inodeID, Conn: conn}

	case "EpollAdd", "EpollItem", "EpollRemove":
		// comm, tid, event_poll(hex), target_kind, target fields..., contrib_snapshot
		if len(fields) < 4 {
			return events.IpcUnexpected{Data: line}
		}
		tid, e1 := parseInt(fields[1])
		eventPoll, e2 := parseUint(fields[2])
		if e1 != nil || e2 != nil {
			return events.IpcUnexpected{Data: line}
		}
		target, contribStr, err := parseTargetFile(fields[3], fields[4:])
		if err != nil {
			return events.IpcUnexpected{Data: line}
		}
		contrib, e3 := parseUint(contribStr)
		if e3 != nil {
			return events.IpcUnexpected{Data: line}
		}
		switch tag {
		case "EpollAdd":
			return events.EpollItemAdd{Comm: fields[0], TID: tid, EventPoll: eventPoll, Target: target, ContribSnapshot: contrib}
		case "EpollItem":
			return events.EpollItemRefresh{Comm: fields[0], TID: tid, EventPoll: eventPoll, Target: target, ContribSnapshot: contrib}
		default:
			return events.EpollItemRemove{Comm: fields[0], TID: tid, EventPoll: eventPoll, Target: target, ContribSnapshot: contrib}
		}

	case "NewProcess":
		if len(fields) != 1 {
			return events.IpcUnexpected{Data: line}
		}
		pid, err := parseInt(fields[0])
		if err != nil {
			return events.IpcUnexpected{Data: line}
		}
		return events.IpcNewProcess{PID: pid}

	case "SampleInstant":
		if len(fields) != 1 {
			return events.IpcUnexpected{Data: line}
		}
		ns, err := parseUint(fields[0])
		if err != nil {
			return events.IpcUnexpected{Data: line}
		}
		return events.IpcSampleInstant{NsSinceBoot: ns}

	case "UnhandledFileMode", "UnhandledSockFam":
		return events.IpcUnexpected{Data: line}

	default:
		return events.IpcUnexpected{Data: line}
	}
}

func parseIpcMapSummary(ms mapSummary, line string) events.IpcEvent {
	// An "epoll" fs_type carries the eventpoll address in inode_id as a
	// signed value; a negative one is rewritten to its bit-identical
	// unsigned form before the unsigned field parsing below.
	if (ms.Name == "completed" || ms.Name == "pending") && len(ms.Fields) > 4 && ms.Fields[2] == "epoll" {
		if v, err := strconv.ParseInt(ms.Fields[4], 10, 64); err == nil && v < 0 {
			ms.Fields[4] = strconv.FormatUint(epollAddressBits(v), 10)
		}
	}

	switch ms.Name {
	case "completed":
		// key: comm, tid, fs_type, device, inode_id ; value: (total_ns, count)
		if len(ms.Fields) != 7 {
			return events.IpcUnexpected{Data: line}
		}
		tid, e1 := parseInt(ms.Fields[1])
		device, e2 := parseUint(ms.Fields[3])
		inodeID, e3 := parseUint(ms.Fields[4])
		total, e4 := parseUint(ms.Fields[5])
		count, e5 := parseUint(ms.Fields[6])
		if e1 != nil || e2 != nil || e3 != nil || e4 != nil || e5 != nil {
			return events.IpcUnexpected{Data: line}
		}
		return events.InodeMapCached{
			Comm: ms.Fields[0], TID: tid, FsType: ms.Fields[2],
			Device: device, InodeID: inodeID, TotalNS: total, Count: count,
		}
	case "pending":
		// key: comm, tid, fs_type, device, inode_id ; value: ns_since_boot
		if len(ms.Fields) != 6 {
			return events.IpcUnexpected{Data: line}
		}
		tid, e1 := parseInt(ms.Fields[1])
		device, e2 := parseUint(ms.Fields[3])
		inodeID, e3 := parseUint(ms.Fields[4])
		nsSinceBoot, e4 := parseUint(ms.Fields[5])
		if e1 != nil || e2 != nil || e3 != nil || e4 != nil {
			return events.IpcUnexpected{Data: line}
		}
		return events.InodeMapPending{
			Comm: ms.Fields[0], TID: tid, FsType: ms.Fields[2],
			Device: device, InodeID: inodeID, NsSinceBoot: nsSinceBoot,
		}
	case "epoll_map":
		// key: event_poll ; value: total_ns (pending waits use @epoll_pending)
		if len(ms.Fields) != 2 {
			return events.IpcUnexpected{Data: line}
		}
		eventPoll, e1 := parseUint(ms.Fields[0])
		val, e2 := parseUint(ms.Fields[1])
		if e1 != nil || e2 != nil {
			return events.IpcUnexpected{Data: line}
		}
		return events.EpollMapCached{EventPoll: eventPoll, TotalNS: val}
	case "epoll_pending":
		if len(ms.Fields) != 2 {
			return events.IpcUnexpected{Data: line}
		}
		eventPoll, e1 := parseUint(ms.Fields[0])
		ns, e2 := parseUint(ms.Fields[1])
		if e1 != nil || e2 != nil {
			return events.IpcUnexpected{Data: line}
		}
		return events.EpollMapPending{EventPoll: eventPoll, NsSinceBoot: ns}
	default:
		return events.IpcUnexpected{Data: line}
	}
}

// parseConnection builds a Connection from a family tag and its
// remaining fields.
func parseConnection(family string, fields []string) (events.Connection, error) {
	switch family {
	case "AF_INET":
		if len(fields) != 4 {
			return nil, fmt.Errorf("AF_INET wants 4 fields, got %d", len(fields))
		}
		srcIP := net.ParseIP(fields[0]).To4()
		dstIP := net.ParseIP(fields[2]).To4()
		if srcIP == nil || dstIP == nil {
			return nil, fmt.Errorf("invalid ipv4 address")
		}
		srcPort, e1 := strconv.ParseUint(fields[1], 10, 16)
		dstPort, e2 := strconv.ParseUint(fields[3], 10, 16)
		if e1 != nil || e2 != nil {
			return nil, fmt.Errorf("invalid port")
		}
		var src, dst [4]byte
		copy(src[:], srcIP)
		copy(dst[:], dstIP)
		return events.IPv4{SrcAddr: src, SrcPort: uint16(srcPort), DstAddr: dst, DstPort: uint16(dstPort)}, nil

	case "AF_INET6":
		if len(fields) != 4 {
			return nil, fmt.Errorf("AF_INET6 wants 4 fields, got %d", len(fields))
		}
		srcIP := net.ParseIP(fields[0]).To16()
		dstIP := net.ParseIP(fields[2]).To16()
		if srcIP == nil || dstIP == nil {
			return nil, fmt.Errorf("invalid ipv6 address")
		}
		srcPort, e1 := strconv.ParseUint(fields[1], 10, 16)
		dstPort, e2 := strconv.ParseUint(fields[3], 10, 16)
		if e1 != nil || e2 != nil {
			return nil, fmt.Errorf("invalid port")
		}
		var src, dst [16]byte
		copy(src[:], srcIP)
		copy(dst[:], dstIP)
		return events.IPv6{SrcAddr: src, SrcPort: uint16(srcPort), DstAddr: dst, DstPort: uint16(dstPort)}, nil

	case "AF_UNIX":
		if len(fields) != 2 {
			return nil, fmt.Errorf("AF_UNIX wants 2 fields, got %d", len(fields))
		}
		srcAddr, e1 := parseUint(fields[0])
		dstAddr, e2 := parseUint(fields[1])
		if e1 != nil || e2 != nil {
			return nil, fmt.Errorf("invalid unix address")
		}
		return events.Unix{SrcAddr: srcAddr, DstAddr: dstAddr}, nil

	default:
		return nil, fmt.Errorf("unknown socket family %q", family)
	}
}

// parseTargetFile builds a TargetFile from a kind tag and its remaining
// fields, returning the last field (contrib_snapshot) unconsumed.
func parseTargetFile(kind string, fields []string) (events.TargetFile, string, error) {
	switch kind {
	case "inode":
		if len(fields) != 3 {
			return nil, "", fmt.Errorf("inode target wants device, inode_id, contrib")
		}
		device, e1 := parseUint(fields[0])
		inodeID, e2 := parseUint(fields[1])
		if e1 != nil || e2 != nil {
			return nil, "", fmt.Errorf("invalid inode target fields")
		}
		return events.Inode{Device: device, InodeID: inodeID}, fields[2], nil

	case "anon_inode":
		// anon_inodefs targets carry an extra name field before the
		// address.
		if len(fields) != 3 {
			return nil, "", fmt.Errorf("anon_inode target wants name, address, contrib")
		}
		address, err := parseHexAddress(fields[1])
		if err != nil {
			return nil, "", err
		}
		return events.AnonInode{Name: fields[0], Address: address}, fields[2], nil

	case "epoll":
		if len(fields) != 2 {
			return nil, "", fmt.Errorf("epoll target wants address, contrib")
		}
		address, err := parseHexAddress(fields[0])
		if err != nil {
			return nil, "", err
		}
		return events.Epoll{Address: address}, fields[1], nil

	default:
		return nil, "", fmt.Errorf("unknown target kind %q", kind)
	}
}

// parseHexAddress parses a 0x-prefixed kernel address, trimming the
// prefix and reading the bit-identical unsigned 64-bit value. A signed
// two's-complement rendering (as the tracer sometimes emits when it
// cannot resolve an epoll target's fs_type) parses identically because
// both forms are fixed-width bit patterns.
func parseHexAddress(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, err
	}
	return v, nil
}

// epollAddressBits reinterprets a signed 64-bit value as its bit-identical
// unsigned form, used when the ipc dialect emits an epoll inode_id as a
// signed value.
func epollAddressBits(signed int64) uint64 {
	return binary.BigEndian.Uint64(binary.BigEndian.AppendUint64(nil, uint64(signed)))
}
