// Package chart renders the run's charts with gonum/plot. Every chart is
// saved as a PNG inside the results directory it is given.
package chart

import (
	"fmt"
	"image/color"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/vkuzn/fiobench/pkg/results"
)

// RenderError reports a chart that could not be produced. Rendering runs
// after all patterns completed, so this is always fatal for the run.
type RenderError struct {
	Chart string
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Chart, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

var (
	readColor      = color.RGBA{R: 68, G: 119, B: 170, A: 255}  // blue
	writeColor     = color.RGBA{R: 204, G: 68, B: 68, A: 255}   // red
	thresholdColor = color.RGBA{R: 238, G: 153, B: 68, A: 255}  // orange
	p99Color       = color.RGBA{R: 102, G: 102, B: 102, A: 255} // grey
)

const (
	chartWidth  = 9 * vg.Inch
	chartHeight = 5 * vg.Inch
)

var (
	barWidth   = vg.Points(18)
	barSpacing = vg.Points(3)
)

func newPlot(title, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Pattern"
	p.Y.Label.Text = yLabel
	p.Legend.Top = true
	p.Legend.Padding = 1 * vg.Millimeter
	p.Add(plotter.NewGrid())
	return p
}

// thresholdLine spans the full nominal X range (bars sit at 0..n-1) at
// exactly the threshold value.
func thresholdLine(n int, thresholdMs float64) (*plotter.Line, error) {
	line, err := plotter.NewLine(plotter.XYs{
		{X: -0.5, Y: thresholdMs},
		{X: float64(n) - 0.5, Y: thresholdMs},
	})
	if err != nil {
		return nil, err
	}
	line.LineStyle.Color = thresholdColor
	line.LineStyle.Width = vg.Points(1.5)
	line.LineStyle.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
	return line, nil
}

func groupedBars(p *plot.Plot, series []plotter.Values, labels []string, colors []color.Color) error {
	groupWidth := (barWidth + barSpacing) * vg.Length(len(series)-1)
	for i, vals := range series {
		bars, err := plotter.NewBarChart(vals, barWidth)
		if err != nil {
			return err
		}
		bars.Offset = (barWidth+barSpacing)*vg.Length(i) - groupWidth/2
		bars.Color = colors[i]
		bars.LineStyle.Width = 0
		p.Add(bars)
		p.Legend.Add(labels[i], bars)
	}
	return nil
}

// Latency renders average and p99 latency bars per pattern, in input order,
// with a dashed horizontal marker at the latency threshold. Returns the path
// of the written image.
func Latency(dir string, metrics []results.PatternMetrics, thresholdMs float64) (string, error) {
	out := filepath.Join(dir, "latency.png")

	names := make([]string, len(metrics))
	avg := make(plotter.Values, len(metrics))
	p99 := make(plotter.Values, len(metrics))
	for i, m := range metrics {
		names[i] = m.Pattern
		avg[i] = m.AvgLat()
		p99[i] = m.P99Lat()
	}

	p := newPlot(fmt.Sprintf("Latency by Pattern (threshold %.2f ms)", thresholdMs), "Latency (ms)")
	if err := groupedBars(p, []plotter.Values{avg, p99}, []string{"avg", "p99"}, []color.Color{readColor, p99Color}); err != nil {
		return "", &RenderError{Chart: "latency", Err: err}
	}

	line, err := thresholdLine(len(metrics), thresholdMs)
	if err != nil {
		return "", &RenderError{Chart: "latency", Err: err}
	}
	p.Add(line)
	p.Legend.Add(fmt.Sprintf("threshold %.2f ms", thresholdMs), line)
	p.NominalX(names...)

	if err := p.Save(chartWidth, chartHeight, out); err != nil {
		return "", &RenderError{Chart: "latency", Err: err}
	}
	return out, nil
}

// IOPS renders read and write IOPS bars per pattern, in input order.
func IOPS(dir string, metrics []results.PatternMetrics) (string, error) {
	out := filepath.Join(dir, "iops.png")
	if err := rwBars(out, "IOPS by Pattern", "IOPS", metrics,
		func(m results.PatternMetrics) (float64, float64) { return m.ReadIOPS, m.WriteIOPS }); err != nil {
		return "", &RenderError{Chart: "iops", Err: err}
	}
	return out, nil
}

// Bandwidth renders read and write bandwidth bars per pattern, in MiB/s.
func Bandwidth(dir string, metrics []results.PatternMetrics) (string, error) {
	out := filepath.Join(dir, "bandwidth.png")
	if err := rwBars(out, "Bandwidth by Pattern", "Bandwidth (MiB/s)", metrics,
		func(m results.PatternMetrics) (float64, float64) { return m.ReadBW / 1024, m.WriteBW / 1024 }); err != nil {
		return "", &RenderError{Chart: "bandwidth", Err: err}
	}
	return out, nil
}

func rwBars(out, title, yLabel string, metrics []results.PatternMetrics, pick func(results.PatternMetrics) (float64, float64)) error {
	names := make([]string, len(metrics))
	read := make(plotter.Values, len(metrics))
	write := make(plotter.Values, len(metrics))
	for i, m := range metrics {
		names[i] = m.Pattern
		read[i], write[i] = pick(m)
	}

	p := newPlot(title, yLabel)
	if err := groupedBars(p, []plotter.Values{read, write}, []string{"read", "write"}, []color.Color{readColor, writeColor}); err != nil {
		return err
	}
	p.NominalX(names...)
	return p.Save(chartWidth, chartHeight, out)
}

// IOPSTimeline renders one pattern's IOPS over time from the fio iops log,
// with dashed vertical markers at the moments latency exceeded the
// threshold.
func IOPSTimeline(dir, pattern string, samples []results.IOPSample, highLatency []float64, thresholdMs float64) (string, error) {
	out := filepath.Join(dir, "iops_"+pattern+".png")

	var readPts, writePts plotter.XYs
	var maxY float64
	for _, s := range samples {
		pt := plotter.XY{X: s.Time, Y: s.Value}
		switch s.Dir {
		case 0:
			readPts = append(readPts, pt)
		case 1:
			writePts = append(writePts, pt)
		}
		if s.Value > maxY {
			maxY = s.Value
		}
	}

	p := newPlot(fmt.Sprintf("IOPS over Time: %s", pattern), "IOPS")
	p.X.Label.Text = "Time (s)"

	addLine := func(pts plotter.XYs, c color.Color, label string) error {
		if len(pts) == 0 {
			return nil
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		l.LineStyle.Color = c
		p.Add(l)
		p.Legend.Add(label, l)
		return nil
	}
	if err := addLine(readPts, readColor, "read IOPS"); err != nil {
		return "", &RenderError{Chart: "iops_" + pattern, Err: err}
	}
	if err := addLine(writePts, writeColor, "write IOPS"); err != nil {
		return "", &RenderError{Chart: "iops_" + pattern, Err: err}
	}

	for i, t := range highLatency {
		marker, err := plotter.NewLine(plotter.XYs{{X: t, Y: 0}, {X: t, Y: maxY}})
		if err != nil {
			return "", &RenderError{Chart: "iops_" + pattern, Err: err}
		}
		marker.LineStyle.Color = thresholdColor
		marker.LineStyle.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
		p.Add(marker)
		if i == 0 {
			p.Legend.Add(fmt.Sprintf("latency > %.2f ms", thresholdMs), marker)
		}
	}

	if err := p.Save(chartWidth, chartHeight, out); err != nil {
		return "", &RenderError{Chart: "iops_" + pattern, Err: err}
	}
	return out, nil
}
