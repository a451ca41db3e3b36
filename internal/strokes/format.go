// Package strokes decodes the reMarkable binary ".lines" stroke format
// (versions 3 and 5), re-encodes v5 streams, and renders decoded strokes
// to SVG using per-pen-class width and opacity laws.
package strokes

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/agentic-research/remfs/internal/model"
)

const (
	headerLen    = 43
	headerPrefix = "reMarkable .lines file, version="
)

// Segment is one pressure/tilt/speed-sampled sample along a stroke.
type Segment struct {
	X, Y     float32
	Speed    float32
	Tilt     float32
	Width    float32
	Pressure float32
}

// Stroke is one pen stroke: a pen class, color, base width, and its
// segments. CalcWidth/Opacity/SquareCap are populated by setPenAttr
// immediately before rendering and are not part of the wire format.
type Stroke struct {
	Layer     int
	Pen       uint32
	Color     uint32
	Unk1      float32
	Width     float32
	Unk2      float32 // v5 only; zero for v3 streams
	Segments  []Segment
	CalcWidth float32
	Opacity   float32
	SquareCap bool
}

// Document is the fully parsed stroke file: an ordered, flat list of
// strokes each tagged with its originating layer index.
type Document struct {
	Version int
	Strokes []Stroke
}

// Parse decodes a stroke stream. A magic mismatch or an unsupported
// version yields BadStrokes; a short read at a stroke or segment header
// aborts only that inner loop and keeps everything already parsed.
func Parse(r io.Reader) (*Document, error) {
	br := bufio.NewReader(r)

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, model.NewBadStrokes("short stroke file header")
	}
	version, ok := parseHeader(header)
	if !ok || (version != 3 && version != 5) {
		return nil, model.NewBadStrokes(fmt.Sprintf("bad stroke header: %q", header))
	}

	var numLayers uint32
	if err := binary.Read(br, binary.LittleEndian, &numLayers); err != nil || numLayers < 1 {
		return nil, model.NewBadStrokes("missing or zero layer count")
	}

	doc := &Document{Version: version}
	for l := 0; l < int(numLayers); l++ {
		var numStrokes uint32
		if err := binary.Read(br, binary.LittleEndian, &numStrokes); err != nil {
			break
		}
		for k := uint32(0); k < numStrokes; k++ {
			st, segCount, ok := readStrokeHeader(br, version)
			if !ok {
				break
			}
			st.Layer = l
			for s := uint32(0); s < segCount; s++ {
				seg, ok := readSegment(br)
				if !ok {
					break
				}
				st.Segments = append(st.Segments, seg)
			}
			doc.Strokes = append(doc.Strokes, st)
		}
	}
	return doc, nil
}

// parseHeader validates the 43-byte ASCII header and extracts the version
// digit, mirroring fscanf(stream, "reMarkable .lines file, version=%d ...").
func parseHeader(header []byte) (version int, ok bool) {
	s := string(header)
	if !strings.HasPrefix(s, headerPrefix) {
		return 0, false
	}
	rest := s[len(headerPrefix):]
	if len(rest) == 0 {
		return 0, false
	}
	n, err := fmt.Sscanf(rest, "%d", &version)
	if err != nil || n != 1 {
		return 0, false
	}
	return version, true
}

func readStrokeHeader(br *bufio.Reader, version int) (Stroke, uint32, bool) {
	var st Stroke
	var segCount uint32
	switch version {
	case 3:
		var pen, color, segs uint32
		var unk1, width float32
		if binary.Read(br, binary.LittleEndian, &pen) != nil ||
			binary.Read(br, binary.LittleEndian, &color) != nil ||
			binary.Read(br, binary.LittleEndian, &unk1) != nil ||
			binary.Read(br, binary.LittleEndian, &width) != nil ||
			binary.Read(br, binary.LittleEndian, &segs) != nil {
			return st, 0, false
		}
		st.Pen, st.Color, st.Unk1, st.Width = pen, color, unk1, width
		segCount = segs
	case 5:
		var pen, color, segs uint32
		var unk1, width, unk2 float32
		if binary.Read(br, binary.LittleEndian, &pen) != nil ||
			binary.Read(br, binary.LittleEndian, &color) != nil ||
			binary.Read(br, binary.LittleEndian, &unk1) != nil ||
			binary.Read(br, binary.LittleEndian, &width) != nil ||
			binary.Read(br, binary.LittleEndian, &unk2) != nil ||
			binary.Read(br, binary.LittleEndian, &segs) != nil {
			return st, 0, false
		}
		st.Pen, st.Color, st.Unk1, st.Width, st.Unk2 = pen, color, unk1, width, unk2
		segCount = segs
	default:
		return st, 0, false
	}
	return st, segCount, true
}

func readSegment(br *bufio.Reader) (Segment, bool) {
	var seg Segment
	if binary.Read(br, binary.LittleEndian, &seg.X) != nil ||
		binary.Read(br, binary.LittleEndian, &seg.Y) != nil ||
		binary.Read(br, binary.LittleEndian, &seg.Speed) != nil ||
		binary.Read(br, binary.LittleEndian, &seg.Tilt) != nil ||
		binary.Read(br, binary.LittleEndian, &seg.Width) != nil ||
		binary.Read(br, binary.LittleEndian, &seg.Pressure) != nil {
		return seg, false
	}
	return seg, true
}
