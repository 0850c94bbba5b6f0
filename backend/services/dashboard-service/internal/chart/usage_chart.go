package chart

import (
	"errors"
	"fmt"
	"io"
	"math"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"greenlens/backend/services/dashboard-service/internal/dashboard"
)

// ErrNotEnoughData is returned when fewer than two readings are available.
var ErrNotEnoughData = errors.New("chart: at least two readings are required")

const (
	defaultWidth  = 800
	defaultHeight = 360
	usageColor    = "14532d"
)

// Options size the rendered image.
type Options struct {
	Width  int
	Height int
}

// RenderUsage draws the usage series with the threshold line as PNG.
func RenderUsage(w io.Writer, snap dashboard.Snapshot, opts Options) error {
	n := len(snap.Usage)
	if n < 2 {
		return ErrNotEnoughData
	}
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = defaultHeight
	}

	xs := make([]float64, n)
	ticks := make([]gochart.Tick, n)
	labels := snap.Labels
	if len(labels) != n {
		labels = dashboard.Labels(n)
	}
	for i := range xs {
		xs[i] = float64(i + 1)
		ticks[i] = gochart.Tick{Value: xs[i], Label: labels[i]}
	}

	lo, hi := valueRange(snap.Usage, snap.ThresholdKW)

	graph := gochart.Chart{
		Width:  opts.Width,
		Height: opts.Height,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: gochart.XAxis{
			Ticks: ticks,
		},
		YAxis: gochart.YAxis{
			Name:  "kW",
			Range: &gochart.ContinuousRange{Min: lo, Max: hi},
		},
		Series: []gochart.Series{
			gochart.ContinuousSeries{
				Name:    "Energy Usage (kW)",
				XValues: xs,
				YValues: append([]float64(nil), snap.Usage...),
				Style: gochart.Style{
					StrokeColor: drawing.ColorFromHex(usageColor),
					StrokeWidth: 2,
					DotWidth:    3,
					DotColor:    drawing.ColorFromHex(usageColor),
					FillColor:   drawing.ColorFromHex(usageColor).WithAlpha(64),
				},
			},
			gochart.ContinuousSeries{
				Name:    fmt.Sprintf("Threshold (%g kW)", snap.ThresholdKW),
				XValues: []float64{xs[0], xs[n-1]},
				YValues: []float64{snap.ThresholdKW, snap.ThresholdKW},
				Style: gochart.Style{
					StrokeColor:     drawing.ColorRed,
					StrokeWidth:     1.5,
					StrokeDashArray: []float64{6, 6},
				},
			},
		},
	}
	graph.Elements = []gochart.Renderable{gochart.Legend(&graph)}

	return graph.Render(gochart.PNG, w)
}

// valueRange covers both the readings and the threshold with some headroom.
func valueRange(usage []float64, threshold float64) (float64, float64) {
	lo, hi := threshold, threshold
	for _, v := range usage {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	pad := (hi - lo) * 0.1
	if pad == 0 {
		pad = 1
	}
	return math.Max(0, lo-pad), hi + pad
}
