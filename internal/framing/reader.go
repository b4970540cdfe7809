// Package framing implements the Framed Reader: it turns a stream of raw
// byte chunks from a Tracer Pipe into a sequence of newline-delimited
// records, after discarding the tracer's single header line.
package framing

import "bytes"

// Reader accumulates raw byte chunks and yields complete records,
// preserving a partial record across calls to Feed. It consumes exactly
// one header line before any record is yielded — the tracer scripts
// are contractually required to emit one.
type Reader struct {
	headerSeen    bool
	headerPartial []byte
	current       []byte
}

// New returns an empty Reader.
func New() *Reader {
	return &Reader{}
}

// Feed appends chunk to the reader's internal buffer and returns any
// complete records found, in order. chunk is not retained; Feed copies
// what it needs to keep across calls. Feed is idempotent on empty input.
func (r *Reader) Feed(chunk []byte) [][]byte {
	if len(chunk) == 0 {
		return nil
	}

	var records [][]byte
	rest := chunk

	if !r.headerSeen {
		idx := bytes.IndexByte(rest, '\n')
		if idx < 0 {
			r.headerPartial = append(r.headerPartial, rest...)
			return nil
		}
		r.headerPartial = append(r.headerPartial, rest[:idx]...)
		r.headerSeen = true
		r.headerPartial = nil
		rest = rest[idx+1:]
		if len(rest) == 0 {
			return nil
		}
	}

	for {
		idx := bytes.IndexByte(rest, '\n')
		if idx < 0 {
			r.current = append(r.current, rest...)
			break
		}
		line := append(r.current, rest[:idx]...)
		r.current = nil
		record := make([]byte, len(line))
		copy(record, line)
		records = append(records, record)
		rest = rest[idx+1:]
		if len(rest) == 0 {
			break
		}
	}

	return records
}

// HeaderSeen reports whether the one required header line has been
// consumed yet. The Sampler Orchestrator's startup loop polls this
// across all four tracers before proceeding.
func (r *Reader) HeaderSeen() bool {
	return r.headerSeen
}
