package chart

import (
	"errors"
	"io"
	"math"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const maxTickLabels = 12

// ErrNoData is returned by PNGRenderer when the series has no points.
var ErrNoData = errors.New("chart has no data points")

var seriesColor = drawing.ColorFromHex("7cb5ec")

// PNGRenderer draws the chart as a static image without a browser.
type PNGRenderer struct {
	Labels Labels
}

// NewPNGRenderer returns a PNG renderer using labels.
func NewPNGRenderer(labels Labels) *PNGRenderer {
	return &PNGRenderer{Labels: labels}
}

func (r *PNGRenderer) ContentType() string { return "image/png" }

func (r *PNGRenderer) Render(w io.Writer, in Input) error {
	graph, err := r.Graph(BuildConfig(in, r.Labels))
	if err != nil {
		return err
	}
	return graph.Render(gochart.PNG, w)
}

// Graph converts cfg into a go-chart line chart. Categories become evenly
// spaced x positions labelled with their text.
func (r *PNGRenderer) Graph(cfg Config) (*gochart.Chart, error) {
	if len(cfg.Series) == 0 || len(cfg.Series[0].Data) == 0 {
		return nil, ErrNoData
	}
	s := cfg.Series[0]
	n := len(s.Data)

	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	ys := s.Data
	if n == 1 {
		// go-chart needs a non-zero x range; draw one point as a flat segment.
		xs = []float64{0, 1}
		ys = []float64{s.Data[0], s.Data[0]}
	}

	step := int(math.Ceil(float64(n) / maxTickLabels))
	ticks := make([]gochart.Tick, 0, maxTickLabels+1)
	for i := 0; i < n; i += step {
		label := ""
		if i < len(cfg.XAxis.Categories) {
			label = cfg.XAxis.Categories[i]
		}
		ticks = append(ticks, gochart.Tick{Value: float64(i), Label: label})
	}

	xAxis := gochart.XAxis{Name: cfg.XAxis.Title, Ticks: ticks}

	yAxis := gochart.YAxis{Name: cfg.YAxis.Title}
	if lo, hi := bounds(s.Data); lo == hi {
		yAxis.Range = &gochart.ContinuousRange{Min: lo - 1, Max: hi + 1}
	}

	graph := &gochart.Chart{
		Title:      cfg.Title + " - " + cfg.Subtitle,
		TitleStyle: gochart.Style{FontSize: 11},
		Width:      cfg.Chart.Width,
		Height:     cfg.Chart.Height,
		Background: gochart.Style{Padding: gochart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20}},
		XAxis:      xAxis,
		YAxis:      yAxis,
		Series: []gochart.Series{
			gochart.ContinuousSeries{
				Name:    s.Name,
				XValues: xs,
				YValues: ys,
				Style: gochart.Style{
					StrokeColor: seriesColor,
					StrokeWidth: 2,
					DotColor:    seriesColor,
					DotWidth:    3,
				},
			},
		},
	}
	graph.Elements = []gochart.Renderable{gochart.Legend(graph)}
	return graph, nil
}

func bounds(values []float64) (lo, hi float64) {
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}
