// Package chart turns one particulate-matter series into a line chart: a
// library-neutral configuration plus HTML and PNG renderers built from it.
package chart

import (
	"fmt"
	"io"
	"strconv"
)

const (
	// ContainerID is the element the page chart is drawn into.
	ContainerID = "container"

	DefaultWidth  = 800
	DefaultHeight = 500
)

// Input carries everything the renderer needs for one chart.
type Input struct {
	Label        string    `json:"label"`
	Categories   []string  `json:"categories"`
	Values       []float64 `json:"values"`
	ResponseTime float64   `json:"response_time"`
	ChipID       string    `json:"chip_id"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
}

// Renderer draws a chart for Input into w.
type Renderer interface {
	ContentType() string
	Render(w io.Writer, in Input) error
}

// Config mirrors the options object handed to the page charting library.
type Config struct {
	Container string   `json:"container"`
	Chart     Frame    `json:"chart"`
	Title     string   `json:"title"`
	Subtitle  string   `json:"subtitle"`
	XAxis     Axis     `json:"x_axis"`
	YAxis     Axis     `json:"y_axis"`
	Tooltip   string   `json:"tooltip" doc:"Point tooltip template; {x} is the category, {y} the value"`
	Series    []Series `json:"series"`
}

// Frame is the chart type and pixel size.
type Frame struct {
	Type   string `json:"type"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Axis holds an axis title and, for the category axis, its labels.
type Axis struct {
	Title      string   `json:"title"`
	Categories []string `json:"categories,omitempty"`
}

// Series is one named line.
type Series struct {
	Name string    `json:"name"`
	Data []float64 `json:"data"`
}

const tooltipTemplate = "<strong>{x}: </strong>{y}"

// BuildConfig assembles the chart options for in using labels for all fixed text.
func BuildConfig(in Input, labels Labels) Config {
	width, height := in.Width, in.Height
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	return Config{
		Container: ContainerID,
		Chart:     Frame{Type: "line", Width: width, Height: height},
		Title:     labels.Title,
		Subtitle:  Subtitle(in.ChipID, in.ResponseTime),
		XAxis:     Axis{Title: labels.XAxis, Categories: in.Categories},
		YAxis:     Axis{Title: labels.YAxis},
		Tooltip:   tooltipTemplate,
		Series:    []Series{{Name: in.Label, Data: in.Values}},
	}
}

// Subtitle formats the sensor line shown under the title.
func Subtitle(chipID string, responseTime float64) string {
	return fmt.Sprintf("Sensor-ID: %s - (Response time: %s ms)", chipID, FormatNumber(responseTime))
}

// Tooltip renders the text shown when hovering one point.
func Tooltip(category string, value float64) string {
	return "<strong>" + category + ": </strong>" + FormatNumber(value)
}

// FormatNumber prints v in its shortest form (42, 12.5).
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
