// Package store scans the flat, UUID-keyed reMarkable source directory
// into a sequence of model.File records: documents, collections, and
// synthesized per-page records for every document that carries pages.
package store

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	billy "github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/remfs/internal/model"
)

// Store reads sidecar files from a billy.Filesystem rooted at the source
// directory, keeping the scanner off raw os.* calls.
type Store struct {
	fs billy.Filesystem
}

func New(fs billy.Filesystem) *Store {
	return &Store{fs: fs}
}

// Scan enumerates every *.metadata file, parses its sidecars, and pushes
// Document/Collection records plus synthesized Page records for every
// document whose content sidecar lists pages. A failure to open or parse any single sidecar is non-fatal;
// that record, or its sub-pages, is simply omitted.
func (s *Store) Scan() ([]model.File, error) {
	entries, err := s.fs.ReadDir("/")
	if err != nil {
		return nil, fmt.Errorf("reading source directory: %w", err)
	}

	var metaNames []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".metadata") {
			metaNames = append(metaNames, e.Name())
		}
	}

	results := make([][]model.File, len(metaNames))
	var wg sync.WaitGroup
	for i, name := range metaNames {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			results[i] = s.scanOne(name)
		}(i, name)
	}
	wg.Wait()

	var files []model.File
	for _, recs := range results {
		files = append(files, recs...)
	}
	return files, nil
}

// scanOne parses a single <uuid>.metadata sidecar (and, for documents, its
// .content and .pagedata siblings), returning the records it contributes.
// Any parse failure logs and returns nil rather than aborting the scan.
func (s *Store) scanOne(metaName string) []model.File {
	stem := strings.TrimSuffix(metaName, ".metadata")
	if _, err := uuid.Parse(stem); err != nil {
		log.Printf("remfs: %s does not have a UUID stem, skipping", metaName)
		return nil
	}
	uuid := stem

	meta, err := s.readJSON(metaName)
	if err != nil {
		log.Printf("remfs: skipping %s: %v", metaName, err)
		return nil
	}

	f := model.File{
		UUID:        uuid,
		VisibleName: stringField(meta, "visibleName"),
		ParentUUID:  stringField(meta, "parent"),
		Deleted:     boolField(meta, "deleted"),
	}
	switch stringField(meta, "type") {
	case "CollectionType":
		f.Kind = model.KindCollection
		return []model.File{f}
	case "DocumentType":
		f.Kind = model.KindDocument
	default:
		log.Printf("remfs: %s has unknown type, skipping", metaName)
		return nil
	}

	pages, ok := s.parseContent(&f, uuid)
	if !ok {
		// A document whose .content sidecar is missing or malformed is
		// simply absent, sub-pages included.
		return nil
	}
	s.parsePagedata(pages, uuid)
	return append([]model.File{f}, pages...)
}

// parseContent reads <uuid>.content, fills in f's document fields, and
// returns the synthesized Page records for its pages array.
func (s *Store) parseContent(f *model.File, uuid string) ([]model.File, bool) {
	content, err := s.readJSON(uuid + ".content")
	if err != nil {
		log.Printf("remfs: %s.content unreadable: %v", uuid, err)
		return nil, false
	}

	switch stringField(content, "fileType") {
	case "notebook":
		f.FileType = model.FileTypeNotebook
	case "epub":
		f.FileType = model.FileTypeEpub
	case "pdf":
		f.FileType = model.FileTypePdf
	}
	f.Landscape = stringField(content, "orientation") == "landscape"
	f.PageCount = intField(content, "pageCount")
	f.Dummy = boolField(content, "dummyDocument")

	pageUUIDs := stringArrayField(content, "pages")
	pages := make([]model.File, 0, len(pageUUIDs))
	for i, pu := range pageUUIDs {
		pages = append(pages, model.File{
			UUID:        pu,
			ParentUUID:  uuid,
			FileType:    model.FileTypePage,
			Kind:        model.KindDocument,
			Landscape:   f.Landscape,
			Deleted:     f.Deleted,
			Dummy:       f.Dummy,
			PageCount:   1,
			// page_000001.rm, page_000002.rm, ... in pages-array order.
			VisibleName: fmt.Sprintf("page_%06d.rm", i+1),
		})
	}
	return pages, true
}

// parsePagedata reads <uuid>.pagedata (one template key per line) and
// assigns line k to the kth page record, leaving trailing pages blank if
// there are fewer lines than pages.
func (s *Store) parsePagedata(pages []model.File, uuid string) {
	if len(pages) == 0 {
		return
	}
	f, err := s.fs.Open(uuid + ".pagedata")
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	i := 0
	for scanner.Scan() && i < len(pages) {
		pages[i].TemplateName = strings.TrimRight(scanner.Text(), "\r\n")
		i++
	}
}

func (s *Store) readJSON(name string) (interface{}, error) {
	f, err := s.fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data, err := readAll(f)
	if err != nil {
		return nil, err
	}
	v, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("malformed JSON in %s: %w", name, err)
	}
	return v, nil
}

func readAll(f billy.File) ([]byte, error) {
	var buf []byte
	chunk := make([]byte, 4096)
	for {
		n, err := f.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return buf, nil
			}
			return buf, err
		}
	}
}

func stringField(v interface{}, key string) string {
	m, ok := v.(map[string]interface{})
	if !ok {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func boolField(v interface{}, key string) bool {
	m, ok := v.(map[string]interface{})
	if !ok {
		return false
	}
	b, _ := m[key].(bool)
	return b
}

func intField(v interface{}, key string) int {
	m, ok := v.(map[string]interface{})
	if !ok {
		return 0
	}
	switch n := m[key].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func stringArrayField(v interface{}, key string) []string {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	arr, ok := m[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
