package strokes

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

const (
	devW = 1404 // portrait canvas width
	devH = 1872 // portrait canvas height; also the landscape square canvas side
)

const (
	svgHeaderTpl = "<svg xmlns=\"http://www.w3.org/2000/svg\" height=\"%d\" width=\"%d\">\n" +
		"  <defs>\n" +
		"    <pattern id=\"brush\" x=\"0\" y=\"0\" patternUnits=\"userSpaceOnUse\">\n" +
		"      <image x=\"0\" y=\"0\" href=\"none\"></image>\n" +
		"    </pattern>\n" +
		"  </defs>\n" +
		"  <g transform=\"rotate(%d %d %d)\">\n" +
		"    <!--<image x=\"0\" y=\"0\" href=\"%s\"></image>-->\n"
	svgPolylineTpl = "    <polyline style=\"fill:none; stroke:#%06x; " +
		"stroke-width:%.3f;opacity:%.3f\" stroke-linejoin=\"round\" " +
		"stroke-linecap=\"%s\" points=\"%s\"/>\n"
	svgFooterTpl = "  </g>\n</svg>\n"

	templatePathFmt = "./remarkable/templates/%s.svg"
)

// RenderParams controls SVG emission.
type RenderParams struct {
	Landscape    bool
	TemplateName string
	Annotation   bool
	NoteColor    Color
}

// RenderSVG writes the document as SVG to w. Each stroke is split into
// one or more polylines whenever its computed width changes strictly
// between segments, preserving continuity by restarting the new polyline
// at the same boundary point.
func RenderSVG(w io.Writer, doc *Document, prm RenderParams) error {
	templateName := prm.TemplateName
	if templateName == "" {
		templateName = "Blank"
	}
	templatePath := fmt.Sprintf(templatePathFmt, templateName)

	if prm.Landscape {
		if _, err := fmt.Fprintf(w, svgHeaderTpl, devH, devH, 90, devH/2, devH/2, templatePath); err != nil {
			return err
		}
	} else {
		if _, err := fmt.Fprintf(w, svgHeaderTpl, devH, devW, 0, 0, 0, templatePath); err != nil {
			return err
		}
	}

	for _, raw := range doc.Strokes {
		st := setPenAttr(raw)

		color := Color(st.Color).RGB()
		if prm.Annotation {
			color = prm.NoteColor.RGB()
		}

		var points strings.Builder
		segW := st.CalcWidth
		segA := st.Opacity
		lastWidth := segW

		flush := func() error {
			linecap := "round"
			if st.SquareCap {
				linecap = "square"
			}
			_, err := fmt.Fprintf(w, svgPolylineTpl, color, segW, segA, linecap, points.String())
			return err
		}

		for _, sg := range st.Segments {
			segW = segWidth(sg)
			segA = segAlpha(st, sg)
			fmt.Fprintf(&points, "%.3f %.3f ", sg.X, sg.Y)
			if lastWidth != segW {
				if err := flush(); err != nil {
					return err
				}
				points.Reset()
				fmt.Fprintf(&points, "%.3f %.3f ", sg.X, sg.Y)
				lastWidth = segW
			}
		}
		if points.Len() > 0 {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	_, err := io.WriteString(w, svgFooterTpl)
	return err
}

// EncodeV5 re-emits the document as a v5 stream. Known deviation, kept
// on purpose: the layer count is derived from the last stroke's layer
// index (not the true maximum), and the full stroke slice is written
// under every layer header rather than partitioned per layer. The
// round trip is byte-identical only for single-layer documents.
func EncodeV5(w io.Writer, doc *Document) error {
	var header [headerLen]byte
	copy(header[:], fmt.Sprintf("%s%d", headerPrefix, 5))
	for i := len(headerPrefix) + 1; i < headerLen; i++ {
		if header[i] == 0 {
			header[i] = ' '
		}
	}
	if _, err := w.Write(header[:]); err != nil {
		return err
	}

	numLayers := uint32(1)
	if n := len(doc.Strokes); n > 0 {
		numLayers = uint32(doc.Strokes[n-1].Layer) + 1
	}
	if err := binary.Write(w, binary.LittleEndian, numLayers); err != nil {
		return err
	}

	for l := uint32(0); l < numLayers; l++ {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(doc.Strokes))); err != nil {
			return err
		}
		for _, st := range doc.Strokes {
			fields := []interface{}{st.Pen, st.Color, st.Unk1, st.Width, st.Unk2, uint32(len(st.Segments))}
			for _, f := range fields {
				if err := binary.Write(w, binary.LittleEndian, f); err != nil {
					return err
				}
			}
			for _, sg := range st.Segments {
				segFields := []interface{}{sg.X, sg.Y, sg.Speed, sg.Tilt, sg.Width, sg.Pressure}
				for _, f := range segFields {
					if err := binary.Write(w, binary.LittleEndian, f); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}
