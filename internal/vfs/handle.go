package vfs

import (
	"os"
	"sync"
	"sync/atomic"
)

// openHandle is the per-open state backing a single file descriptor
// returned to the host by Open. For a synthesized SVG, file is the
// temporary that was rendered into; tmpPath is removed on Release. For a
// plain backing-file open, tmpPath is empty and nothing is removed.
//
// Keying this state by the host-provided fh rather than on the shared
// index node means two concurrent opens of the same synthesized path get
// distinct entries instead of clobbering one shared slot.
type openHandle struct {
	file    *os.File
	tmpPath string
}

// handleTable hands out monotonically increasing file handles and tracks
// their state. Safe for concurrent use by multiple kernel threads.
type handleTable struct {
	next    uint64
	entries sync.Map // uint64 -> *openHandle
}

func newHandleTable() *handleTable {
	return &handleTable{}
}

func (t *handleTable) acquire(h *openHandle) uint64 {
	fh := atomic.AddUint64(&t.next, 1)
	t.entries.Store(fh, h)
	return fh
}

func (t *handleTable) get(fh uint64) (*openHandle, bool) {
	v, ok := t.entries.Load(fh)
	if !ok {
		return nil, false
	}
	return v.(*openHandle), true
}

func (t *handleTable) release(fh uint64) {
	t.entries.Delete(fh)
}
