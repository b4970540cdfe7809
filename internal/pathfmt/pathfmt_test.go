package pathfmt

import (
	"testing"

	"github.com/majorcontext/metric-collector/internal/events"
)

func TestConnectionIPv4(t *testing.T) {
	conn := events.IPv4{
		SrcAddr: [4]byte{127, 0, 0, 1}, SrcPort: 7878,
		DstAddr: [4]byte{127, 0, 0, 1}, DstPort: 50058,
	}
	got := Connection(conn)
	want := "ipv4_127.0.0.1:7878_127.0.0.1:50058"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTargetFileForms(t *testing.T) {
	cases := []struct {
		target events.TargetFile
		want   string
	}{
		{events.Inode{Device: 8, InodeID: 80672}, "8_80672"},
		{events.AnonInode{Name: "eventfd", Address: 0xdead}, "eventfd_0xdead"},
		{events.Epoll{Address: 0xbeef}, "epoll_0xbeef"},
	}
	for _, c := range cases {
		if got := TargetFile(c.target); got != c.want {
			t.Errorf("TargetFile(%+v) = %q, want %q", c.target, got, c.want)
		}
	}
}
