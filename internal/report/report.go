// Package report renders stored measurements as charts: a PNG for quick
// inspection on the station and an interactive HTML page.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/snowdepth/internal/measure"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("no measurements to plot")

// Format selects the renderer.
type Format string

const (
	FormatPNG  Format = "png"
	FormatHTML Format = "html"
)

// ParseFormat accepts png or html, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPNG, FormatHTML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want png or html)", s)
	}
}

// Render writes rows to w in the given format.
func Render(w io.Writer, format Format, rows []measure.StoredMeasurement) error {
	switch format {
	case FormatPNG:
		return RenderPNG(w, rows)
	case FormatHTML:
		return RenderHTML(w, rows)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// chronological returns rows oldest first; stores hand them back newest first.
func chronological(rows []measure.StoredMeasurement) []measure.StoredMeasurement {
	out := slices.Clone(rows)
	slices.SortStableFunc(out, func(a, b measure.StoredMeasurement) int {
		return a.RecordedAt.Compare(b.RecordedAt)
	})
	return out
}

// RenderPNG draws distance over time with gonum/plot.
func RenderPNG(w io.Writer, rows []measure.StoredMeasurement) error {
	if len(rows) == 0 {
		return ErrNoData
	}
	rows = chronological(rows)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Snow depth sensor distance (%d measurements)", len(rows))
	p.X.Label.Text = "Time (UTC)"
	p.Y.Label.Text = "Distance (cm)"
	p.X.Tick.Marker = plot.TimeTicks{Format: "01-02\n15:04", Time: plot.UTCUnixTime}
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, 0, len(rows))
	for _, r := range rows {
		pts = append(pts, plotter.XY{X: float64(r.RecordedAt.Unix()), Y: r.Distance})
	}
	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return fmt.Errorf("build distance line: %w", err)
	}
	line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	line.Width = vg.Points(1)
	points.Color = line.Color
	points.Radius = vg.Points(1.5)
	p.Add(line, points)
	p.Legend.Add("distance", line, points)
	p.Legend.Top = true

	wt, err := p.WriterTo(10*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("create png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

// RenderHTML draws distance and confidence on a shared time axis with
// go-echarts. Confidence uses a second y axis fixed at 0-100.
func RenderHTML(w io.Writer, rows []measure.StoredMeasurement) error {
	if len(rows) == 0 {
		return ErrNoData
	}
	rows = chronological(rows)

	xs := make([]string, 0, len(rows))
	distance := make([]opts.LineData, 0, len(rows))
	confidence := make([]opts.LineData, 0, len(rows))
	for _, r := range rows {
		xs = append(xs, r.RecordedAt.UTC().Format(time.DateTime))
		distance = append(distance, opts.LineData{Value: r.Distance})
		confidence = append(confidence, opts.LineData{Value: r.Confidence})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Snow depth", Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Snow depth sensor", Subtitle: fmt.Sprintf("%d measurements, %s to %s UTC", len(rows), xs[0], xs[len(xs)-1])}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (UTC)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Distance (cm)", Min: "dataMin", Max: "dataMax"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.ExtendYAxis(opts.YAxis{Name: "Confidence (%)", Min: 0, Max: 100})
	line.SetXAxis(xs).
		AddSeries("distance", distance).
		AddSeries("confidence", confidence, charts.WithLineChartOpts(opts.LineChart{YAxisIndex: 1}))

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}
