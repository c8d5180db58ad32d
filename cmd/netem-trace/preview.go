package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

const defaultPreviewLimit = 20

func previewCmd(a *app) *cobra.Command {
	var (
		kind   string
		limit  int
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "preview <config>",
		Short: "Show the first segments of a trace as a table or SVG chart",
		Long: "Show the first segments of a trace as a table or SVG chart.\n\n" +
			"Generators that repeat forever are cut off after --limit segments.",
		Args: configArg("preview <config>"),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			if err := validateKind(kind); err != nil {
				return err
			}
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			if format != "table" && format != "svg" {
				return fmt.Errorf("unknown format %q, supported: table, svg", format)
			}
			return runPreview(cmd, a, args[0], kind, limit, format, output)
		}),
	}

	cmd.Flags().StringVar(&kind, "kind", "bw", "signal kind: bw, delay, loss, duplicate or delay-per-packet")
	cmd.Flags().IntVar(&limit, "limit", defaultPreviewLimit, "maximum number of segments to draw")
	cmd.Flags().StringVar(&format, "format", "table", "output format: table or svg")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path (default: stdout)")

	return cmd
}

func runPreview(cmd *cobra.Command, a *app, configPath, kind string, limit int, format, output string) error {
	cfg, err := loadKind(kind, configPath, a.codec)
	if err != nil {
		return err
	}
	preview, err := samplePreview(cfg, limit)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if output != "" {
		f, err := os.Create(output) //nolint:gosec // user-supplied output path is expected
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close() //nolint:errcheck // best-effort close on write
		w = f
	}

	if format == "svg" {
		return renderSVG(w, preview, filepath.Base(configPath)+" ("+cfg.Tag()+")")
	}
	renderTable(w, preview)
	return nil
}

func renderTable(w io.Writer, p *signalPreview) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	if p.PerPacket {
		t.AppendHeader(table.Row{"packet", p.Kind})
		for i, s := range p.Samples {
			t.AppendRow(table.Row{i + 1, s.Label})
		}
	} else {
		t.AppendHeader(table.Row{"#", "start", "duration", p.Kind})
		for i, s := range p.Samples {
			t.AppendRow(table.Row{i + 1, s.Start, s.Duration, s.Label})
		}
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 1, Align: text.AlignRight}})

	noun := "segment"
	if p.PerPacket {
		noun = "packet"
	}
	if len(p.Samples) != 1 {
		noun += "s"
	}
	footer := fmt.Sprintf("%d %s", len(p.Samples), noun)
	if p.Truncated {
		footer += ", limit reached"
	}
	t.SetCaption("%s", footer)
	t.Render()
}

// SVG chart dimensions
const (
	svgWidth      = 800
	svgHeight     = 400
	marginTop     = 40
	marginRight   = 20
	marginBottom  = 50
	marginLeft    = 70
	plotWidth     = svgWidth - marginLeft - marginRight
	plotHeight    = svgHeight - marginTop - marginBottom
	gridLines     = 5
	maxTickLabels = 10
)

// renderSVG draws the preview as a step chart: each segment holds its value
// until the next one starts.
func renderSVG(w io.Writer, p *signalPreview, title string) error {
	if len(p.Samples) == 0 {
		return fmt.Errorf("no samples to render")
	}

	end := p.End()
	if end == 0 {
		end = 1
	}
	maxValue := 0.0
	for _, s := range p.Samples {
		maxValue = max(maxValue, s.Value)
	}
	if maxValue == 0 {
		maxValue = 1
	}
	maxValue *= 1.1 // headroom

	xOf := func(pos float64) float64 { return float64(marginLeft) + float64(plotWidth)*pos/end }
	yOf := func(v float64) float64 { return float64(marginTop+plotHeight) - float64(plotHeight)*v/maxValue }

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" width="%d" height="%d">`, svgWidth, svgHeight, svgWidth, svgHeight)
	b.WriteString("\n<style>\n")
	b.WriteString("  text { font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; fill: #333; }\n")
	b.WriteString("  .title { font-size: 14px; font-weight: 600; }\n")
	b.WriteString("  .axis-label { font-size: 11px; }\n")
	b.WriteString("  .tick-label { font-size: 10px; fill: #666; }\n")
	b.WriteString("  .grid { stroke: #e0e0e0; stroke-width: 1; }\n")
	b.WriteString("  .value-line { fill: none; stroke: #2563eb; stroke-width: 1.5; stroke-linejoin: miter; }\n")
	b.WriteString("</style>\n")

	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="white"/>`+"\n", svgWidth, svgHeight)
	fmt.Fprintf(&b, `<text x="%d" y="24" class="title">%s</text>`+"\n", marginLeft, xmlEscape(title))

	for i := 0; i <= gridLines; i++ {
		y := marginTop + plotHeight - int(float64(i)*float64(plotHeight)/float64(gridLines))
		fmt.Fprintf(&b, `<line x1="%d" y1="%d" x2="%d" y2="%d" class="grid"/>`+"\n", marginLeft, y, marginLeft+plotWidth, y)
		v := maxValue * float64(i) / float64(gridLines)
		fmt.Fprintf(&b, `<text x="%d" y="%d" text-anchor="end" class="tick-label">%s</text>`+"\n", marginLeft-6, y+4, formatValue(v))
	}

	tickCount := min(maxTickLabels, len(p.Samples))
	for i := 0; i <= tickCount; i++ {
		pos := end * float64(i) / float64(tickCount)
		label := formatPacket(pos)
		if !p.PerPacket {
			label = formatElapsed(time.Duration(pos))
		}
		fmt.Fprintf(&b, `<text x="%.1f" y="%d" text-anchor="middle" class="tick-label">%s</text>`+"\n", xOf(pos), svgHeight-marginBottom+20, label)
	}

	xLabel := "elapsed time"
	if p.PerPacket {
		xLabel = "packet"
	}
	fmt.Fprintf(&b, `<text x="%d" y="%d" text-anchor="middle" class="axis-label">%s</text>`+"\n", marginLeft+plotWidth/2, svgHeight-8, xLabel)
	fmt.Fprintf(&b, `<text x="16" y="%d" text-anchor="middle" transform="rotate(-90,16,%d)" class="axis-label">%s %s</text>`+"\n",
		marginTop+plotHeight/2, marginTop+plotHeight/2, xmlEscape(p.Kind), xmlEscape(p.Unit))

	var points strings.Builder
	for i, s := range p.Samples {
		from := float64(s.Start)
		to := from + float64(s.Duration)
		if p.PerPacket {
			from, to = float64(i), float64(i+1)
		}
		if i > 0 {
			points.WriteString(" ")
		}
		y := yOf(s.Value)
		fmt.Fprintf(&points, "%.1f,%.1f %.1f,%.1f", xOf(from), y, xOf(to), y)
	}
	fmt.Fprintf(&b, `<polyline points="%s" class="value-line"/>`+"\n", points.String())

	fmt.Fprintf(&b, `<rect x="%d" y="%d" width="%d" height="%d" fill="none" stroke="#ccc" stroke-width="1"/>`+"\n", marginLeft, marginTop, plotWidth, plotHeight)
	b.WriteString("</svg>\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func formatValue(v float64) string {
	switch {
	case v >= 1000:
		return fmt.Sprintf("%.0fk", v/1000)
	case v == math.Trunc(v):
		return fmt.Sprintf("%.0f", v)
	case v < 1:
		return fmt.Sprintf("%.2f", v)
	default:
		return fmt.Sprintf("%.1f", v)
	}
}

func formatElapsed(d time.Duration) string {
	switch {
	case d == 0:
		return "0"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	totalSec := int(d.Seconds())
	m, s := totalSec/60, totalSec%60
	if s == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dm%ds", m, s)
}

func formatPacket(pos float64) string {
	return fmt.Sprintf("%.0f", pos)
}

func xmlEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}
