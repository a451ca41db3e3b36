// Package nfsbridge adapts the name-index/resolver/stroke-codec stack to
// billy.Filesystem and serves it over loopback NFS, for platforms
// (darwin) where the "--backend" flag prefers NFS over cgofuse.
package nfsbridge

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"

	"github.com/agentic-research/remfs/internal/index"
	"github.com/agentic-research/remfs/internal/model"
	"github.com/agentic-research/remfs/internal/resolver"
	"github.com/agentic-research/remfs/internal/strokes"
)

var errReadOnly = billy.ErrNotSupported

// annotationNoteColor is the color annotation overlays are rendered
// with, matching vfs's choice.
const annotationNoteColor = strokes.Blue

// RemfsFS adapts a mounted reMarkable store to billy.Filesystem. It is
// strictly read-only: every mutating method returns errReadOnly.
type RemfsFS struct {
	idx       *index.NameIndex
	resolve   *resolver.Resolver
	sourceDir string
	mountTime time.Time
}

// New creates a billy.Filesystem view of a mounted reMarkable store.
func New(idx *index.NameIndex, r *resolver.Resolver, sourceDir string) *RemfsFS {
	return &RemfsFS{
		idx:       idx,
		resolve:   r,
		sourceDir: sourceDir,
		mountTime: time.Now(),
	}
}

// --- billy.Basic ---

func (fs *RemfsFS) Create(filename string) (billy.File, error) { return nil, errReadOnly }

func (fs *RemfsFS) Open(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDONLY, 0)
}

func (fs *RemfsFS) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC) != 0 {
		return nil, errReadOnly
	}
	filename = cleanPath(filename)

	if filename == "/" {
		return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrInvalid}
	}

	res, err := fs.resolve.Resolve(filename)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrNotExist}
	}
	if res.Node.File.IsCollection() {
		return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrInvalid}
	}

	if res.Flags.Has(resolver.IsSVG) {
		data, err := fs.synthesize(res)
		if err != nil {
			return nil, &os.PathError{Op: "open", Path: filename, Err: err}
		}
		return &bytesFile{name: filepath.Base(filename), data: data}, nil
	}

	f, err := os.Open(res.Backing)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrNotExist}
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, &os.PathError{Op: "open", Path: filename, Err: err}
	}
	return &sourceFile{name: filepath.Base(filename), f: f, size: info.Size()}, nil
}

// synthesize renders the resolved page's backing .rm file into SVG bytes,
// the billy-side equivalent of vfs.FileSystem.openSynthesized — here there
// is no per-handle table to populate since billy.Open already returns a
// self-contained file value holding its own content.
func (fs *RemfsFS) synthesize(res *resolver.Resolved) ([]byte, error) {
	src, err := os.Open(res.Backing)
	if err != nil {
		return nil, model.NewIo("opening stroke file", err)
	}
	defer func() { _ = src.Close() }()

	doc, err := strokes.Parse(src)
	if err != nil {
		doc = &strokes.Document{} // corrupt stroke file renders as an empty page
	}

	var buf strings.Builder
	params := strokes.RenderParams{
		Landscape:    res.Node.File.Landscape,
		TemplateName: res.Node.File.TemplateName,
		Annotation:   res.Flags.Has(resolver.IsAnnotPage),
		NoteColor:    annotationNoteColor,
	}
	if err := strokes.RenderSVG(&buf, doc, params); err != nil {
		return nil, model.NewIo("rendering svg", err)
	}
	return []byte(buf.String()), nil
}

func (fs *RemfsFS) Stat(filename string) (os.FileInfo, error) {
	return fs.Lstat(filename)
}

func (fs *RemfsFS) Rename(oldpath, newpath string) error { return errReadOnly }
func (fs *RemfsFS) Remove(filename string) error         { return errReadOnly }

func (fs *RemfsFS) Join(elem ...string) string {
	return filepath.Join(elem...)
}

// --- billy.TempFile ---

func (fs *RemfsFS) TempFile(dir, prefix string) (billy.File, error) {
	return nil, billy.ErrNotSupported
}

// --- billy.Dir ---

func (fs *RemfsFS) ReadDir(path string) ([]os.FileInfo, error) {
	path = cleanPath(path)

	var uuid string
	if path != "/" {
		res, err := fs.resolve.Resolve(path)
		if err != nil {
			return nil, &os.PathError{Op: "readdir", Path: path, Err: os.ErrNotExist}
		}
		uuid = res.Node.File.UUID
	}

	children := fs.idx.Children(uuid)
	infos := make([]os.FileInfo, 0, len(children)*2)
	for _, childUUID := range children {
		child, ok := fs.idx.ByUUID(childUUID)
		if !ok {
			continue
		}
		name := child.File.VisibleName
		if child.File.IsPage() {
			infos = append(infos, &staticFileInfo{
				name:    svgName(name),
				mode:    0o400,
				size:    2 << 20,
				modTime: fs.mountTime,
			})
		}
		if child.File.FileType == model.FileTypePdf || child.File.FileType == model.FileTypeEpub {
			infos = append(infos, &staticFileInfo{
				name:    name + " Annotations",
				mode:    os.ModeDir | 0o500,
				modTime: fs.mountTime,
			})
		}
		infos = append(infos, fs.childFileInfo(child, name))
	}
	return infos, nil
}

func (fs *RemfsFS) MkdirAll(filename string, perm os.FileMode) error { return errReadOnly }

// --- billy.Symlink ---

func (fs *RemfsFS) Lstat(filename string) (os.FileInfo, error) {
	filename = cleanPath(filename)

	if filename == "/" {
		info, err := os.Stat(fs.sourceDir)
		if err != nil {
			return nil, &os.PathError{Op: "lstat", Path: filename, Err: os.ErrNotExist}
		}
		return &staticFileInfo{name: "/", mode: os.ModeDir | 0o500, modTime: info.ModTime()}, nil
	}

	res, err := fs.resolve.Resolve(filename)
	if err != nil {
		return nil, &os.PathError{Op: "lstat", Path: filename, Err: os.ErrNotExist}
	}

	if res.Flags.Has(resolver.IsSVG) {
		// No per-open handle exists at stat time over NFS; report the same
		// synthetic upper-bound size vfs.Getattr uses for an unopened SVG
		// path. The backing .rm must still exist for the page to stat at
		// all.
		if _, err := os.Stat(res.Backing); err != nil {
			return nil, &os.PathError{Op: "lstat", Path: filename, Err: os.ErrNotExist}
		}
		return &staticFileInfo{
			name:    filepath.Base(filename),
			mode:    0o400,
			size:    2 << 20,
			modTime: fs.mountTime,
		}, nil
	}

	info, err := os.Stat(res.Backing)
	if err != nil {
		return nil, &os.PathError{Op: "lstat", Path: filename, Err: os.ErrNotExist}
	}
	return fs.childFileInfoFromStat(res.Node, filepath.Base(filename), info), nil
}

func (fs *RemfsFS) Symlink(target, link string) error    { return billy.ErrNotSupported }
func (fs *RemfsFS) Readlink(link string) (string, error) { return "", billy.ErrNotSupported }

// --- billy.Chroot ---

func (fs *RemfsFS) Chroot(path string) (billy.Filesystem, error) {
	return chroot.New(fs, path), nil
}

func (fs *RemfsFS) Root() string { return "/" }

// --- billy.Capable ---

func (fs *RemfsFS) Capabilities() billy.Capability {
	return billy.ReadCapability | billy.SeekCapability
}

// --- internals ---

// childFileInfo builds the os.FileInfo for a readdir entry, inferring mode
// from the node's kind the same way vfs.fillStat does from an os.FileInfo.
func (fs *RemfsFS) childFileInfo(node *index.Node, name string) os.FileInfo {
	f := node.File
	if f.IsCollection() {
		return &staticFileInfo{name: name, mode: os.ModeDir | 0o500, modTime: fs.mountTime}
	}
	// Page or document: size comes from the backing artifact where cheaply
	// knowable.
	backing := filepath.Join(fs.sourceDir, f.UUID+f.Ext())
	if f.IsPage() {
		backing = filepath.Join(fs.sourceDir, f.ParentUUID, f.UUID+".rm")
	}
	size := int64(0)
	if info, err := os.Stat(backing); err == nil {
		size = info.Size()
	}
	return &staticFileInfo{name: name, mode: 0o400, size: size, modTime: fs.mountTime}
}

func (fs *RemfsFS) childFileInfoFromStat(node *index.Node, name string, info os.FileInfo) os.FileInfo {
	mode := os.FileMode(0o400)
	if info.IsDir() || node.File.IsCollection() {
		mode = os.ModeDir | 0o500
	}
	return &staticFileInfo{name: name, mode: mode, size: info.Size(), modTime: info.ModTime()}
}

// svgName replaces the first ".rm" in name with ".svg", the inverse of
// the resolver's mangling.
func svgName(name string) string {
	if idx := strings.Index(name, ".rm"); idx >= 0 {
		return name[:idx] + ".svg" + name[idx+len(".rm"):]
	}
	return name
}

// cleanPath normalizes a billy path to a clean absolute path.
func cleanPath(path string) string {
	path = filepath.Clean("/" + path)
	if path == "." {
		return "/"
	}
	return path
}

// staticFileInfo implements os.FileInfo with static values.
type staticFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
}

func (fi *staticFileInfo) Name() string       { return fi.name }
func (fi *staticFileInfo) Size() int64        { return fi.size }
func (fi *staticFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *staticFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *staticFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *staticFileInfo) Sys() interface{}   { return nil }

// Compile-time interface checks.
var (
	_ billy.Filesystem = (*RemfsFS)(nil)
	_ billy.Capable    = (*RemfsFS)(nil)
)
