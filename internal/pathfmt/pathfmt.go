// Package pathfmt renders the socket/stream address forms and file
// naming conventions of the persisted directory layout.
package pathfmt

import (
	"fmt"
	"net"
	"strings"

	"github.com/majorcontext/metric-collector/internal/events"
)

// Connection renders a Connection using its address form:
//
//	IPv4:  ipv4_a.b.c.d:p_a.b.c.d:p
//	IPv6:  ipv6_[h:h:h:h:h:h:h:h]:p_[…]:p
//	Unix:  unix_0x<hex>_0x<hex>
func Connection(c events.Connection) string {
	switch v := c.(type) {
	case events.IPv4:
		src := net.IP(v.SrcAddr[:]).String()
		dst := net.IP(v.DstAddr[:]).String()
		return fmt.Sprintf("ipv4_%s:%d_%s:%d", src, v.SrcPort, dst, v.DstPort)
	case events.IPv6:
		segments := func(a [16]byte) string {
			parts := make([]string, 8)
			for i := range parts {
				parts[i] = fmt.Sprintf("%x", uint16(a[2*i])<<8|uint16(a[2*i+1]))
			}
			return strings.Join(parts, ":")
		}
		return fmt.Sprintf("ipv6_[%s]:%d_[%s]:%d", segments(v.SrcAddr), v.SrcPort, segments(v.DstAddr), v.DstPort)
	case events.Unix:
		return fmt.Sprintf("unix_0x%x_0x%x", v.SrcAddr, v.DstAddr)
	default:
		return "unknown"
	}
}

// KFile renders a not-yet-identified socket's kernel handle, used as the
// filename before a NewSocketMap/AcceptEnd/ConnectEnd supplies the
// endpoints.
func KFile(k events.KFile) string {
	return fmt.Sprintf("kfile_%d_%d", k.SuperBlockID, k.InodeID)
}

// TargetFile renders a stream TargetFile using its persisted layout:
// "(<dev_inode>|<name>_<hex>|epoll_<hex>)".
func TargetFile(t events.TargetFile) string {
	switch v := t.(type) {
	case events.Inode:
		return fmt.Sprintf("%d_%d", v.Device, v.InodeID)
	case events.AnonInode:
		return fmt.Sprintf("%s_0x%x", v.Name, v.Address)
	case events.Epoll:
		return fmt.Sprintf("epoll_0x%x", v.Address)
	default:
		return "unknown"
	}
}

// EpollHex renders an epoll instance address as the directory component
// used under global/epoll/<epoll_hex>/.
func EpollHex(eventPoll uint64) string {
	return fmt.Sprintf("0x%x", eventPoll)
}

// FutexUaddr renders a futex userspace address as the second half of the
// thread-scoped futex filename "<root_pid>-<uaddr>.csv".
func FutexUaddr(uaddr uint64) string {
	return fmt.Sprintf("0x%x", uaddr)
}
