package nfsbridge

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/remfs/internal/index"
	"github.com/agentic-research/remfs/internal/model"
	"github.com/agentic-research/remfs/internal/resolver"
)

// buildTestFS writes a tiny store to a temp directory: a collection
// "Books" containing a Pdf "Book1" with one annotation page.
func buildTestFS(t *testing.T) (*RemfsFS, string) {
	t.Helper()
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "AAA.metadata"),
		[]byte(`{"visibleName":"Books","type":"CollectionType"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "BBB.metadata"),
		[]byte(`{"visibleName":"Book1","type":"DocumentType","parent":"AAA"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "BBB.pdf"), []byte("%PDF-1.4 fake"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "BBB"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "BBB", "PPP.rm"), []byte{}, 0o644))

	files := []model.File{
		{UUID: "AAA", VisibleName: "Books", Kind: model.KindCollection},
		{UUID: "BBB", ParentUUID: "AAA", VisibleName: "Book1", Kind: model.KindDocument, FileType: model.FileTypePdf, PageCount: 1},
		{UUID: "PPP", ParentUUID: "BBB", VisibleName: "page_000001.rm", Kind: model.KindDocument, FileType: model.FileTypePage, PageCount: 1},
	}

	idx, err := index.Build(files, dir, osExister{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	r := resolver.New(idx, dir)
	return New(idx, r, dir), dir
}

type osExister struct{}

func (osExister) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestStatRoot(t *testing.T) {
	fs, _ := buildTestFS(t)

	info, err := fs.Stat("/")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestStatCollection(t *testing.T) {
	fs, _ := buildTestFS(t)

	info, err := fs.Stat("/Books")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Zero(t, info.Mode().Perm()&0o200, "write bits must be cleared")
}

func TestStatDocument(t *testing.T) {
	fs, dir := buildTestFS(t)

	info, err := fs.Stat("/Books/Book1")
	require.NoError(t, err)
	assert.False(t, info.IsDir())

	want, err := os.Stat(filepath.Join(dir, "BBB.pdf"))
	require.NoError(t, err)
	assert.Equal(t, want.Size(), info.Size())
}

func TestStatAnnotationSVG(t *testing.T) {
	fs, _ := buildTestFS(t)

	info, err := fs.Stat("/Books/Book1 Annotations/page_000001.svg")
	require.NoError(t, err)
	assert.Equal(t, int64(2<<20), info.Size())
}

func TestStatNotFound(t *testing.T) {
	fs, _ := buildTestFS(t)

	_, err := fs.Stat("/nonexistent")
	assert.True(t, os.IsNotExist(err))
}

func TestReadDirRoot(t *testing.T) {
	fs, _ := buildTestFS(t)

	entries, err := fs.ReadDir("/")
	require.NoError(t, err)

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	assert.Contains(t, names, "Books")
}

func TestReadDirDocumentAnnotations(t *testing.T) {
	fs, _ := buildTestFS(t)

	entries, err := fs.ReadDir("/Books")
	require.NoError(t, err)

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	assert.Contains(t, names, "Book1")
	assert.Contains(t, names, "Book1 Annotations")
}

func TestReadDirAnnotationsListsBothPageNames(t *testing.T) {
	fs, _ := buildTestFS(t)

	entries, err := fs.ReadDir("/Books/Book1 Annotations")
	require.NoError(t, err)

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	assert.Contains(t, names, "page_000001.svg")
	assert.Contains(t, names, "page_000001.rm")
}

func TestOpenAndReadSynthesizedSVG(t *testing.T) {
	fs, _ := buildTestFS(t)

	f, err := fs.Open("/Books/Book1 Annotations/page_000001.svg")
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	buf := make([]byte, 4096)
	n, _ := f.Read(buf)
	require.True(t, n > 0)
	assert.Contains(t, string(buf[:n]), "<svg")
	assert.Contains(t, string(buf[:n]), "</svg>")
}

func TestOpenDocumentBlob(t *testing.T) {
	fs, _ := buildTestFS(t)

	f, err := fs.Open("/Books/Book1")
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	buf := make([]byte, 1024)
	n, _ := f.Read(buf)
	require.True(t, n > 0)
	assert.Contains(t, string(buf[:n]), "%PDF")
}

func TestOpenNotFound(t *testing.T) {
	fs, _ := buildTestFS(t)

	_, err := fs.Open("/nonexistent")
	assert.Error(t, err)
}

func TestReadOnly(t *testing.T) {
	fs, _ := buildTestFS(t)

	_, err := fs.Create("newfile.txt")
	assert.Error(t, err)

	err = fs.MkdirAll("/newdir", 0o755)
	assert.Equal(t, errReadOnly, err)

	err = fs.Remove("/Books/Book1")
	assert.Equal(t, errReadOnly, err)

	err = fs.Rename("/Books", "/renamed")
	assert.Equal(t, errReadOnly, err)

	_, err = fs.OpenFile("/Books/Book1", os.O_RDWR, 0)
	assert.Equal(t, errReadOnly, err)
}

func TestCapabilities(t *testing.T) {
	fs, _ := buildTestFS(t)

	caps := fs.Capabilities()
	assert.NotZero(t, caps&2) // ReadCapability (1 << 1)
	assert.NotZero(t, caps&8) // SeekCapability (1 << 3)
	assert.Zero(t, caps&1)    // WriteCapability (1 << 0) must not be set
}

func TestRoot(t *testing.T) {
	fs, _ := buildTestFS(t)
	assert.Equal(t, "/", fs.Root())
}

func TestJoin(t *testing.T) {
	fs, _ := buildTestFS(t)
	assert.Equal(t, "a/b/c", fs.Join("a", "b", "c"))
}

func TestNFSServerStarts(t *testing.T) {
	fs, _ := buildTestFS(t)

	srv, err := NewServer(fs)
	require.NoError(t, err)
	defer func() { _ = srv.Close() }()

	assert.True(t, srv.Port() > 0, "server should be on a valid port")

	conn, err := net.Dial("tcp", fmt.Sprintf("localhost:%d", srv.Port()))
	require.NoError(t, err)
	_ = conn.Close()
}
