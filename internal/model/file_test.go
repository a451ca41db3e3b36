package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFile_IsCollectionIsPage(t *testing.T) {
	coll := File{Kind: KindCollection}
	assert.True(t, coll.IsCollection())
	assert.False(t, coll.IsPage())

	page := File{Kind: KindDocument, FileType: FileTypePage}
	assert.False(t, page.IsCollection())
	assert.True(t, page.IsPage())
}

func TestFile_Ext(t *testing.T) {
	cases := []struct {
		ft   FileType
		want string
	}{
		{FileTypeEpub, ".epub"},
		{FileTypePdf, ".pdf"},
		{FileTypePage, ".rm"},
		{FileTypeNotebook, ""},
		{FileTypeNone, ""},
	}
	for _, c := range cases {
		f := File{FileType: c.ft}
		assert.Equal(t, c.want, f.Ext())
	}
}

func TestError_WrapsAndUnwraps(t *testing.T) {
	inner := errors.New("boom")
	err := NewBadStore("reading sidecar", inner)

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, err.Error(), "reading sidecar")
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(NewNotFound("gone")))
	assert.False(t, IsNotFound(NewBadStore("bad", nil)))
	assert.False(t, IsNotFound(errors.New("plain")))
	assert.False(t, IsNotFound(nil))
}

func TestIsBadStore(t *testing.T) {
	assert.True(t, IsBadStore(NewBadStore("bad", nil)))
	assert.False(t, IsBadStore(NewNotFound("gone")))
}
