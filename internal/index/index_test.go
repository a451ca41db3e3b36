package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/remfs/internal/model"
)

// allExist is an Exister stub that treats every backing path as present.
type allExist struct{}

func (allExist) Exists(string) bool { return true }

// noneExist is an Exister stub used to prove the backing-artifact gate.
type noneExist map[string]bool

func (n noneExist) Exists(path string) bool { return n[path] }

func TestBuild_ComputesVirtualPaths(t *testing.T) {
	files := []model.File{
		{UUID: "root", VisibleName: "Books", Kind: model.KindCollection},
		{UUID: "doc", ParentUUID: "root", VisibleName: "Book1", Kind: model.KindDocument, FileType: model.FileTypePdf},
	}

	idx, err := Build(files, "/src", allExist{})
	require.NoError(t, err)
	defer idx.Close()

	node, ok := idx.ByPath("/Books")
	require.True(t, ok)
	assert.Equal(t, "root", node.File.UUID)

	node, ok = idx.ByPath("/Books/Book1")
	require.True(t, ok)
	assert.Equal(t, "doc", node.File.UUID)
}

func TestBuild_DropsDeletedRecords(t *testing.T) {
	files := []model.File{
		{UUID: "a", VisibleName: "Gone", Kind: model.KindCollection, Deleted: true},
	}
	idx, err := Build(files, "/src", allExist{})
	require.NoError(t, err)
	defer idx.Close()

	_, ok := idx.ByUUID("a")
	assert.False(t, ok)
}

func TestBuild_DropsUnbackedRecords(t *testing.T) {
	files := []model.File{
		{UUID: "a", VisibleName: "NoBacking", Kind: model.KindCollection},
	}
	idx, err := Build(files, "/src", noneExist{})
	require.NoError(t, err)
	defer idx.Close()

	_, ok := idx.ByUUID("a")
	assert.False(t, ok)
}

func TestBuild_DropsOrphans(t *testing.T) {
	files := []model.File{
		{UUID: "child", ParentUUID: "missing-parent", VisibleName: "Orphan", Kind: model.KindDocument, FileType: model.FileTypePdf},
	}
	idx, err := Build(files, "/src", allExist{})
	require.NoError(t, err)
	defer idx.Close()

	_, ok := idx.ByUUID("child")
	assert.False(t, ok)
}

func TestBuild_ChildrenPreserveInsertionOrder(t *testing.T) {
	files := []model.File{
		{UUID: "root", VisibleName: "Books", Kind: model.KindCollection},
		{UUID: "b", ParentUUID: "root", VisibleName: "Beta", Kind: model.KindDocument, FileType: model.FileTypePdf},
		{UUID: "a", ParentUUID: "root", VisibleName: "Alpha", Kind: model.KindDocument, FileType: model.FileTypePdf},
	}
	idx, err := Build(files, "/src", allExist{})
	require.NoError(t, err)
	defer idx.Close()

	children := idx.Children("root")
	require.Equal(t, []string{"b", "a"}, children)
}

func TestBuild_RootChildren(t *testing.T) {
	files := []model.File{
		{UUID: "a", VisibleName: "A", Kind: model.KindCollection},
		{UUID: "b", VisibleName: "B", Kind: model.KindCollection},
	}
	idx, err := Build(files, "/src", allExist{})
	require.NoError(t, err)
	defer idx.Close()

	assert.Equal(t, []string{"a", "b"}, idx.RootChildren())
}

func TestBuild_PageBackingPath(t *testing.T) {
	files := []model.File{
		{UUID: "doc", VisibleName: "Notebook", Kind: model.KindDocument, FileType: model.FileTypeNotebook},
		{UUID: "pg", ParentUUID: "doc", VisibleName: "page_000001.rm", Kind: model.KindDocument, FileType: model.FileTypePage},
	}
	exister := noneExist{
		"/src/doc.metadata": true,
		"/src/doc/pg.rm":    true,
	}
	idx, err := Build(files, "/src", exister)
	require.NoError(t, err)
	defer idx.Close()

	_, ok := idx.ByUUID("pg")
	assert.True(t, ok)
}

func TestByUUID_NotFound(t *testing.T) {
	idx, err := Build(nil, "/src", allExist{})
	require.NoError(t, err)
	defer idx.Close()

	_, ok := idx.ByUUID("nope")
	assert.False(t, ok)
}
