// Package vfs is the cgofuse-backed facade that maps
// getattr/readdir/open/read/release onto the resolver, name index and
// stroke codec.
package vfs

import (
	"os"
	"strings"
	"time"

	"github.com/winfsp/cgofuse/fuse"

	"github.com/agentic-research/remfs/internal/index"
	"github.com/agentic-research/remfs/internal/model"
	"github.com/agentic-research/remfs/internal/resolver"
	"github.com/agentic-research/remfs/internal/strokes"
)

// annotationNoteColor is the color annotation overlays are rendered with.
const annotationNoteColor = strokes.Blue

// FileSystem implements fuse.FileSystemInterface over a mounted reMarkable
// store. It is strictly read-only; every mutating callback is left as
// fuse.FileSystemBase's default (which returns -ENOSYS).
type FileSystem struct {
	fuse.FileSystemBase

	idx       *index.NameIndex
	resolve   *resolver.Resolver
	sourceDir string
	handles   *handleTable
}

func New(idx *index.NameIndex, r *resolver.Resolver, sourceDir string) *FileSystem {
	return &FileSystem{
		idx:       idx,
		resolve:   r,
		sourceDir: sourceDir,
		handles:   newHandleTable(),
	}
}

// Getattr stats the resolved backing artifact. An open synthesis handle
// wins (it has the true SVG size); an unopened SVG path reports a 2 MiB
// upper bound so readers that size their buffer before opening get
// enough room.
func (fs *FileSystem) Getattr(path string, stat *fuse.Stat_t, fh uint64) int {
	if path == "/" {
		return statPath(fs.sourceDir, stat)
	}

	res, err := fs.resolve.Resolve(path)
	if err != nil {
		return errnoFor(err)
	}

	if fh != ^uint64(0) {
		if h, ok := fs.handles.get(fh); ok && h.file != nil {
			return statOpenFile(h.file, stat)
		}
	}

	if res.Flags.Has(resolver.IsSVG) {
		// Stat the backing .rm first so a missing page is still ENOENT,
		// then report the synthetic upper-bound size.
		if rc := statPath(res.Backing, stat); rc != 0 {
			return rc
		}
		stat.Size = 2 << 20
		return 0
	}

	return statPath(res.Backing, stat)
}

// Readdir lists a directory: Page children get a synthesized .svg entry,
// Pdf/Epub children get a sibling "<name> Annotations" entry, and every
// child is then listed under its own visible name as well.
func (fs *FileSystem) Readdir(path string, fill func(name string, stat *fuse.Stat_t, ofst int64) bool, ofst int64, fh uint64) int {
	var uuid string
	if path != "/" {
		res, err := fs.resolve.Resolve(path)
		if err != nil {
			return errnoFor(err)
		}
		uuid = res.Node.File.UUID
	}

	fill(".", nil, 0)
	fill("..", nil, 0)

	for _, childUUID := range fs.idx.Children(uuid) {
		child, ok := fs.idx.ByUUID(childUUID)
		if !ok {
			continue
		}
		name := child.File.VisibleName
		if child.File.IsPage() {
			fill(svgName(name), nil, 0)
		}
		if child.File.FileType == model.FileTypePdf || child.File.FileType == model.FileTypeEpub {
			fill(name+" Annotations", nil, 0)
		}
		fill(name, nil, 0)
	}
	return 0
}

// Open resolves the path and, for an SVG path, renders the backing
// stroke file into a unique temporary whose handle is keyed in the
// per-fh table; otherwise it opens the backing path directly.
func (fs *FileSystem) Open(path string, flags int) (int, uint64) {
	res, err := fs.resolve.Resolve(path)
	if err != nil {
		return errnoFor(err), ^uint64(0)
	}

	if res.Flags.Has(resolver.IsSVG) {
		return fs.openSynthesized(res)
	}

	f, err := os.Open(res.Backing)
	if err != nil {
		return errnoFor(model.NewIo("opening backing file", err)), ^uint64(0)
	}
	fh := fs.handles.acquire(&openHandle{file: f})
	return 0, fh
}

func (fs *FileSystem) openSynthesized(res *resolver.Resolved) (int, uint64) {
	src, err := os.Open(res.Backing)
	if err != nil {
		return errnoFor(model.NewIo("opening stroke file", err)), ^uint64(0)
	}
	defer func() { _ = src.Close() }()

	doc, err := strokes.Parse(src)
	if err != nil {
		// A corrupt stroke file renders as an empty page, not an error.
		doc = &strokes.Document{}
	}

	tmp, err := os.CreateTemp("", "remfs-*.svg")
	if err != nil {
		return errnoFor(model.NewIo("creating synthesis temp file", err)), ^uint64(0)
	}

	params := strokes.RenderParams{
		Landscape:    res.Node.File.Landscape,
		TemplateName: res.Node.File.TemplateName,
		Annotation:   res.Flags.Has(resolver.IsAnnotPage),
		NoteColor:    annotationNoteColor,
	}
	if err := strokes.RenderSVG(tmp, doc, params); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return errnoFor(model.NewIo("rendering svg", err)), ^uint64(0)
	}
	if _, err := tmp.Seek(0, 0); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return errnoFor(model.NewIo("rewinding synthesis temp file", err)), ^uint64(0)
	}

	fh := fs.handles.acquire(&openHandle{file: tmp, tmpPath: tmp.Name()})
	return 0, fh
}

// Read is a positional read against the open descriptor.
func (fs *FileSystem) Read(path string, buff []byte, ofst int64, fh uint64) int {
	h, ok := fs.handles.get(fh)
	if !ok {
		return -fuse.EBADF
	}
	n, err := h.file.ReadAt(buff, ofst)
	if err != nil && n == 0 {
		return 0
	}
	return n
}

// Release closes and, for a synthesis handle, removes the per-open
// temporary.
func (fs *FileSystem) Release(path string, fh uint64) int {
	h, ok := fs.handles.get(fh)
	if !ok {
		return -fuse.EBADF
	}
	fs.handles.release(fh)
	_ = h.file.Close()
	if h.tmpPath != "" {
		_ = os.Remove(h.tmpPath)
	}
	return 0
}

// svgName replaces the first ".rm" in name with ".svg", the inverse of
// the resolver's mangling.
func svgName(name string) string {
	if idx := strings.Index(name, ".rm"); idx >= 0 {
		return name[:idx] + ".svg" + name[idx+len(".rm"):]
	}
	return name
}

func errnoFor(err error) int {
	switch {
	case model.IsNotFound(err):
		return -fuse.ENOENT
	case model.IsBadStore(err):
		return -fuse.ENOENT
	default:
		return -fuse.EIO
	}
}

func statPath(path string, stat *fuse.Stat_t) int {
	info, err := os.Stat(path)
	if err != nil {
		return -fuse.ENOENT
	}
	return fillStat(info, stat)
}

func statOpenFile(f *os.File, stat *fuse.Stat_t) int {
	info, err := f.Stat()
	if err != nil {
		return -fuse.EIO
	}
	return fillStat(info, stat)
}

// fillStat populates stat from info, always clearing write bits and
// setting read bits for the owner.
func fillStat(info os.FileInfo, stat *fuse.Stat_t) int {
	zeroStat(stat)
	mode := fuse.S_IFREG | 0o400
	if info.IsDir() {
		mode = fuse.S_IFDIR | 0o500
	}
	stat.Mode = uint32(mode)
	stat.Size = info.Size()
	mt := toTimespec(info.ModTime())
	stat.Mtim, stat.Atim, stat.Ctim = mt, mt, mt
	return 0
}

func zeroStat(stat *fuse.Stat_t) {
	*stat = fuse.Stat_t{}
	now := toTimespec(time.Now())
	stat.Mtim, stat.Atim, stat.Ctim = now, now, now
}

func toTimespec(t time.Time) fuse.Timespec {
	return fuse.Timespec{Sec: t.Unix(), Nsec: int64(t.Nanosecond())}
}

var _ fuse.FileSystemInterface = (*FileSystem)(nil)
