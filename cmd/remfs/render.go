package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/remfs/internal/strokes"
)

var (
	renderLandscape bool
	renderTemplate  string
)

func init() {
	renderCmd.Flags().BoolVar(&renderLandscape, "landscape", false, "render as landscape")
	renderCmd.Flags().StringVar(&renderTemplate, "template", "", "background template name")
}

// renderCmd parses a single .rm file and writes the rendered SVG or
// re-encoded v5 stream to stdout, without mounting anything. Useful for
// inspecting the codec in isolation.
var renderCmd = &cobra.Command{
	Use:   "render <file.rm> [svg|rm]",
	Short: "Render a single stroke file to SVG or re-encoded v5, without mounting",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := "svg"
		if len(args) == 2 {
			mode = args[1]
		}

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening %s: %w", args[0], err)
		}
		defer func() { _ = f.Close() }()

		doc, err := strokes.Parse(f)
		if err != nil {
			// Corrupt stroke files render as an empty page.
			doc = &strokes.Document{}
		}

		switch mode {
		case "svg":
			params := strokes.RenderParams{
				Landscape:    renderLandscape,
				TemplateName: renderTemplate,
			}
			return strokes.RenderSVG(os.Stdout, doc, params)
		case "rm":
			return strokes.EncodeV5(os.Stdout, doc)
		default:
			return fmt.Errorf("unknown mode %q (use svg or rm)", mode)
		}
	},
}
