package nfsbridge

import (
	"io"
	"os"

	billy "github.com/go-git/go-billy/v5"
)

// sourceFile implements billy.File over a plain backing file (a document
// blob or a raw .rm page). Read-only: Write and Truncate return errors.
type sourceFile struct {
	name string
	f    *os.File
	size int64
}

func (sf *sourceFile) Name() string { return sf.name }

func (sf *sourceFile) Read(p []byte) (int, error) { return sf.f.Read(p) }

func (sf *sourceFile) ReadAt(p []byte, off int64) (int, error) { return sf.f.ReadAt(p, off) }

func (sf *sourceFile) Seek(offset int64, whence int) (int64, error) {
	return sf.f.Seek(offset, whence)
}

func (sf *sourceFile) Write([]byte) (int, error) { return 0, errReadOnly }
func (sf *sourceFile) Truncate(int64) error      { return errReadOnly }
func (sf *sourceFile) Lock() error               { return nil }
func (sf *sourceFile) Unlock() error             { return nil }
func (sf *sourceFile) Close() error              { return sf.f.Close() }

// bytesFile implements billy.File backed by an in-memory byte slice, used
// for a synthesized SVG page rendered eagerly at Open time (no temporary
// file or per-handle table needed over NFS — the returned value already
// owns its full content).
type bytesFile struct {
	name string
	data []byte
	pos  int64
}

func (bf *bytesFile) Name() string { return bf.name }

func (bf *bytesFile) Read(p []byte) (int, error) {
	if bf.pos >= int64(len(bf.data)) {
		return 0, io.EOF
	}
	n := copy(p, bf.data[bf.pos:])
	bf.pos += int64(n)
	return n, nil
}

func (bf *bytesFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(bf.data)) {
		return 0, io.EOF
	}
	n := copy(p, bf.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (bf *bytesFile) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = bf.pos + offset
	case io.SeekEnd:
		newPos = int64(len(bf.data)) + offset
	}
	if newPos < 0 {
		newPos = 0
	}
	bf.pos = newPos
	return bf.pos, nil
}

func (bf *bytesFile) Write([]byte) (int, error) { return 0, errReadOnly }
func (bf *bytesFile) Truncate(int64) error      { return errReadOnly }
func (bf *bytesFile) Lock() error               { return nil }
func (bf *bytesFile) Unlock() error             { return nil }
func (bf *bytesFile) Close() error              { return nil }

var (
	_ billy.File = (*sourceFile)(nil)
	_ billy.File = (*bytesFile)(nil)
)
