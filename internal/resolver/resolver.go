// Package resolver translates an inbound virtual path into an index
// node, synthesis flags, and a backing file path. Resolution works by
// literal substring mangling of the requested path, not by a
// segment-wise tree walk; a visible name that itself contains ".svg" or
// " Annotations" will be mangled too.
package resolver

import (
	"path/filepath"
	"strings"

	"github.com/agentic-research/remfs/internal/index"
	"github.com/agentic-research/remfs/internal/model"
)

// Flags describes what synthesis, if any, a resolved path requires.
type Flags int

const (
	IsSVG Flags = 1 << iota
	IsAnnotDir
	IsAnnotPage
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

const annotSuffix = " Annotations"

// Resolved is the result of resolving a virtual path.
type Resolved struct {
	Node  *index.Node
	Flags Flags
	// Backing is the on-disk path to consult for stat/open.
	Backing string
}

// Resolver maps virtual paths to backing artifacts using the NameIndex
// built at mount time.
type Resolver struct {
	idx       *index.NameIndex
	sourceDir string
}

func New(idx *index.NameIndex, sourceDir string) *Resolver {
	return &Resolver{idx: idx, sourceDir: sourceDir}
}

// Resolve applies the mangling rules in order against a mutable copy of
// the requested path (".svg" to ".rm" first, then the " Annotations"
// suffix or mid-path deletion), looks up the mangled path, and computes
// the backing artifact location.
func (r *Resolver) Resolve(requested string) (*Resolved, error) {
	p := requested
	var flags Flags

	if idx := strings.Index(p, ".svg"); idx >= 0 {
		p = p[:idx] + ".rm" + p[idx+len(".svg"):]
		flags |= IsSVG
	}

	if strings.Contains(p, annotSuffix) {
		if strings.HasSuffix(p, annotSuffix) {
			p = strings.TrimSuffix(p, annotSuffix)
			flags |= IsAnnotDir | IsAnnotPage
		} else {
			p = strings.Replace(p, annotSuffix, "", 1)
			flags |= IsAnnotPage
		}
	}

	node, ok := r.idx.ByPath(p)
	if !ok {
		return nil, model.NewNotFound("no such virtual path: " + requested)
	}

	backing := r.backingPath(node, flags)
	return &Resolved{Node: node, Flags: flags, Backing: backing}, nil
}

func (r *Resolver) backingPath(node *index.Node, flags Flags) string {
	f := node.File
	switch {
	case f.IsCollection():
		return r.sourceDir
	case f.IsPage():
		return filepath.Join(r.sourceDir, f.ParentUUID, f.UUID+".rm")
	case flags.Has(IsAnnotDir):
		return filepath.Join(r.sourceDir, f.UUID)
	default:
		return filepath.Join(r.sourceDir, f.UUID+f.Ext())
	}
}
