// Package index implements NameIndex: the bidirectional UUID/virtual-path
// lookup and child-listing map built once at mount time. The backing
// store is a private in-memory sqlite database, giving both lookups real
// B-tree ordered-map semantics with the Go maps acting as value caches.
package index

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/agentic-research/remfs/internal/model"
)

// Node is one indexed record: a File plus its computed virtual path. Its
// ordered child list lives in the children table, queried via
// NameIndex.Children, rather than as a field here, keeping a single
// source of truth for child order. Synthesis state for open SVG handles
// is likewise not a field here; it lives in vfs's per-file-handle table,
// so concurrent opens of the same page never share a slot.
type Node struct {
	File *model.File
	Path string
}

// Exister reports whether a backing artifact exists on disk, used by
// NameIndex construction to decide whether a record is indexable.
type Exister interface {
	Exists(path string) bool
}

// NameIndex is immutable after Build; all lookups are read-only.
type NameIndex struct {
	db     *sql.DB
	byUUID map[string]*Node
	byPath map[string]*Node
}

// Build constructs the index in passes: first install every non-deleted,
// backed record as a Node keyed by UUID, dropping records whose
// parent UUID is non-empty but unresolvable (orphans are dropped
// entirely, not anchored under a reserved path); then compute each
// Node's virtual path by walking parent links; then populate the
// child-listing table in source order.
func Build(files []model.File, sourceDir string, ex Exister) (*NameIndex, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening name index store: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE by_uuid (uuid TEXT PRIMARY KEY, seq INTEGER);
		CREATE TABLE by_path (vpath TEXT PRIMARY KEY, uuid TEXT);
		CREATE TABLE children (parent TEXT, child TEXT, seq INTEGER);
		CREATE INDEX children_parent ON children(parent);
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating name index schema: %w", err)
	}

	ni := &NameIndex{db: db, byUUID: make(map[string]*Node), byPath: make(map[string]*Node)}

	// Pass 1a: install every non-deleted, backed record as a candidate.
	candidates := make(map[string]*model.File)
	var order []string
	for i := range files {
		f := &files[i]
		if f.Deleted {
			continue
		}
		if !backingExists(ex, sourceDir, f) {
			continue
		}
		candidates[f.UUID] = f
		order = append(order, f.UUID)
	}

	// Pass 1b: drop orphans — records whose parent_uuid is set but does
	// not resolve to any candidate.
	seq := 0
	for _, uuid := range order {
		f := candidates[uuid]
		if f.ParentUUID != "" {
			if _, ok := candidates[f.ParentUUID]; !ok {
				continue
			}
		}
		ni.byUUID[f.UUID] = &Node{File: f}
		if _, err := db.Exec(`INSERT OR IGNORE INTO by_uuid(uuid, seq) VALUES (?, ?)`, f.UUID, seq); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("indexing uuid %s: %w", f.UUID, err)
		}
		seq++
	}

	// Pass 2: compute virtual paths by walking parent links.
	for uuid, node := range ni.byUUID {
		path := ni.computePath(uuid)
		node.Path = path
		ni.byPath[path] = node
		if _, err := db.Exec(`INSERT OR REPLACE INTO by_path(vpath, uuid) VALUES (?, ?)`, path, uuid); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("indexing path %s: %w", path, err)
		}
	}

	// Pass 3: populate child lists in source-enumeration order. Records
	// with an empty parent_uuid are filed under the root bucket
	// (parent = "").
	childSeq := 0
	for _, uuid := range order {
		if _, ok := ni.byUUID[uuid]; !ok {
			continue // dropped as an orphan in pass 1b
		}
		f := candidates[uuid]
		if _, err := db.Exec(`INSERT INTO children(parent, child, seq) VALUES (?, ?, ?)`,
			f.ParentUUID, f.UUID, childSeq); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("indexing child %s: %w", f.UUID, err)
		}
		childSeq++
	}

	return ni, nil
}

// backingExists checks a record's on-disk artifact: documents and
// collections check <src>/<uuid>.metadata, pages check
// <src>/<parent>/<uuid>.rm.
func backingExists(ex Exister, sourceDir string, f *model.File) bool {
	if ex == nil {
		return true
	}
	if f.IsPage() {
		return ex.Exists(pathJoin(sourceDir, f.ParentUUID, f.UUID+".rm"))
	}
	return ex.Exists(pathJoin(sourceDir, f.UUID+".metadata"))
}

func pathJoin(parts ...string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "/"
		}
		out += p
	}
	return out
}

// computePath walks parent links upward from uuid, collecting visible
// names, then joins them root-to-leaf with "/". If a parent UUID refers
// to a missing node the walk stops there.
func (ni *NameIndex) computePath(uuid string) string {
	var names []string
	seen := make(map[string]bool)
	cur := uuid
	for {
		node, ok := ni.byUUID[cur]
		if !ok || seen[cur] {
			break
		}
		seen[cur] = true
		names = append(names, node.File.VisibleName)
		if node.File.ParentUUID == "" {
			break
		}
		cur = node.File.ParentUUID
	}
	// names was collected leaf-to-root; reverse it.
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	path := "/"
	for i, n := range names {
		if i > 0 {
			path += "/"
		}
		path += n
	}
	return path
}

// ByUUID looks up a Node by its UUID. The sqlite by_uuid table is the
// authoritative existence check (an O(log n) indexed lookup); the Go map
// is a value cache holding the actual *Node.
func (ni *NameIndex) ByUUID(uuid string) (*Node, bool) {
	var seq int
	if err := ni.db.QueryRow(`SELECT seq FROM by_uuid WHERE uuid = ?`, uuid).Scan(&seq); err != nil {
		return nil, false
	}
	n, ok := ni.byUUID[uuid]
	return n, ok
}

// ByPath looks up a Node by its computed virtual path.
func (ni *NameIndex) ByPath(path string) (*Node, bool) {
	var uuid string
	if err := ni.db.QueryRow(`SELECT uuid FROM by_path WHERE vpath = ?`, path).Scan(&uuid); err != nil {
		return nil, false
	}
	n, ok := ni.byUUID[uuid]
	return n, ok
}

// RootChildren returns the ordered UUID list of top-level records.
func (ni *NameIndex) RootChildren() []string {
	return ni.Children("")
}

// Children returns the UUID list of a node's children, or the root list
// if uuid is empty, read back from the children table in insertion
// order (which mirrors source enumeration order).
func (ni *NameIndex) Children(uuid string) []string {
	rows, err := ni.db.Query(`SELECT child FROM children WHERE parent = ? ORDER BY seq`, uuid)
	if err != nil {
		return nil
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var child string
		if err := rows.Scan(&child); err == nil {
			out = append(out, child)
		}
	}
	return out
}

// Close releases the in-memory database backing this index. Called once
// at unmount; the index itself is never mutated after Build.
func (ni *NameIndex) Close() error {
	return ni.db.Close()
}
