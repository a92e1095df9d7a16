package main

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/wilberth/SledBalls/internal/triallog"
)

// ballPaths returns the x/y path of every ball in block. Frames with fewer
// balls than the first one are skipped.
func ballPaths(block triallog.Block) []plotter.XYs {
	if len(block) == 0 {
		return nil
	}
	n := len(block[0].Positions)
	paths := make([]plotter.XYs, n)
	for i := range paths {
		paths[i] = make(plotter.XYs, 0, len(block))
	}
	for _, f := range block {
		if len(f.Positions) < n {
			continue
		}
		for i := range n {
			paths[i] = append(paths[i], plotter.XY{X: f.Positions[i].X, Y: f.Positions[i].Y})
		}
	}
	return paths
}

// newBlockPlot draws the ball paths of one block, one colour per ball.
func newBlockPlot(title string, block triallog.Block) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"

	paths := ballPaths(block)
	colors := generateColors(len(paths))
	for i, path := range paths {
		if len(path) == 0 {
			continue
		}
		line, err := plotter.NewLine(path)
		if err != nil {
			return nil, fmt.Errorf("ball %d: %w", i, err)
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("ball %d", i), line)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// writePNG renders one block as a PNG image.
func writePNG(w io.Writer, title string, block triallog.Block) error {
	p, err := newBlockPlot(title, block)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(8*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// writeHTML renders every block as an interactive scatter chart on one page.
func writeHTML(w io.Writer, name string, blocks []triallog.Block, first int) error {
	page := components.NewPage()
	for b, block := range blocks {
		scatter := charts.NewScatter()
		scatter.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "450px"}),
			charts.WithTitleOpts(opts.Title{
				Title:    fmt.Sprintf("Trial block %d", first+b),
				Subtitle: fmt.Sprintf("%s frames=%d", name, len(block)),
			}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
			charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
			charts.WithXAxisOpts(opts.XAxis{Name: "x (m)", NameLocation: "middle", NameGap: 25}),
			charts.WithYAxisOpts(opts.YAxis{Name: "y (m)", NameLocation: "middle", NameGap: 30}),
		)
		for i, path := range ballPaths(block) {
			data := make([]opts.ScatterData, 0, len(path))
			for _, pt := range path {
				data = append(data, opts.ScatterData{Value: []interface{}{pt.X, pt.Y}})
			}
			scatter.AddSeries(fmt.Sprintf("ball %d", i), data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))
		}
		page.AddCharts(scatter)
	}
	return page.Render(w)
}

// generateColors spreads n hues around the colour wheel.
func generateColors(n int) []color.Color {
	out := make([]color.Color, n)
	for i := range out {
		h := float64(i) / math.Max(float64(n), 1)
		r, g, b := hsvToRGB(h, 0.8, 0.85)
		out[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return out
}

func hsvToRGB(h, s, v float64) (uint8, uint8, uint8) {
	i := math.Floor(h * 6)
	f := h*6 - i
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)
	var r, g, b float64
	switch int(i) % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}
	return uint8(r * 255), uint8(g * 255), uint8(b * 255)
}
