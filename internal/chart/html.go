package chart

import (
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// echartsTooltip prints "<strong>category: </strong>value" for the hovered point.
const echartsTooltip = "<strong>{b}: </strong>{c}"

// HTMLRenderer writes a standalone ECharts page.
type HTMLRenderer struct {
	Labels Labels
	// AssetsHost overrides where echarts.min.js is loaded from. Empty uses the go-echarts CDN.
	AssetsHost string
}

// NewHTMLRenderer returns an HTML renderer using labels.
func NewHTMLRenderer(labels Labels, assetsHost string) *HTMLRenderer {
	return &HTMLRenderer{Labels: labels, AssetsHost: assetsHost}
}

func (r *HTMLRenderer) ContentType() string { return "text/html; charset=utf-8" }

func (r *HTMLRenderer) Render(w io.Writer, in Input) error {
	return r.Line(BuildConfig(in, r.Labels)).Render(w)
}

// Line builds the go-echarts line chart for cfg.
func (r *HTMLRenderer) Line(cfg Config) *charts.Line {
	initOpts := opts.Initialization{
		PageTitle: r.Labels.PageTitle,
		Width:     strconv.Itoa(cfg.Chart.Width) + "px",
		Height:    strconv.Itoa(cfg.Chart.Height) + "px",
		ChartID:   cfg.Container,
	}
	if r.AssetsHost != "" {
		initOpts.AssetsHost = r.AssetsHost
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts),
		charts.WithTitleOpts(opts.Title{
			Title:    cfg.Title,
			Subtitle: cfg.Subtitle,
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:      opts.Bool(true),
			Trigger:   "item",
			Formatter: echartsTooltip,
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(true),
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: cfg.XAxis.Title,
			Type: "category",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: cfg.YAxis.Title,
			Type: "value",
		}),
	)

	line.SetXAxis(cfg.XAxis.Categories)
	for _, s := range cfg.Series {
		data := make([]opts.LineData, len(s.Data))
		for i, v := range s.Data {
			data[i] = opts.LineData{Value: v}
		}
		line.AddSeries(s.Name, data)
	}
	return line
}
