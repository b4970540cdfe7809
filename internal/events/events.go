// Package events defines the typed event variants produced by each
// tracer dialect's parser. An event is a tagged union represented in Go
// as a concrete struct type implementing a marker interface per dialect;
// callers type-switch on the concrete type.
package events

// Connection identifies the two endpoints of a socket.
type Connection interface {
	isConnection()
}

// IPv4 is a Connection over IPv4.
type IPv4 struct {
	SrcAddr [4]byte
	SrcPort uint16
	DstAddr [4]byte
	DstPort uint16
}

func (IPv4) isConnection() {}

// IPv6 is a Connection over IPv6.
type IPv6 struct {
	SrcAddr [16]byte
	SrcPort uint16
	DstAddr [16]byte
	DstPort uint16
}

func (IPv6) isConnection() {}

// Unix is a Connection over a Unix domain socket, identified by the
// kernel addresses of the two socket structures (not a path: abstract
// and unnamed sockets have no path).
type Unix struct {
	SrcAddr uint64
	DstAddr uint64
}

func (Unix) isConnection() {}

// TargetFile identifies a stream-like file an epoll instance can watch.
type TargetFile interface {
	isTargetFile()
}

// Inode identifies a file by its (device, inode) pair.
type Inode struct {
	Device  uint64
	InodeID uint64
}

func (Inode) isTargetFile() {}

// AnonInode identifies an anonymous-inode-backed file (e.g. eventfd,
// timerfd) by name and kernel address.
type AnonInode struct {
	Name    string
	Address uint64
}

func (AnonInode) isTargetFile() {}

// Epoll identifies another epoll instance nested inside this one, by the
// kernel address of its eventpoll structure.
type Epoll struct {
	Address uint64
}

func (Epoll) isTargetFile() {}

// KFile is the kernel-level handle for a socket before a NewSocketMap
// event supplies its human-readable endpoints.
type KFile struct {
	SuperBlockID uint64
	InodeID      uint64
}
