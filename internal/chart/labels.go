package chart

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Labels holds the fixed chart text. Empty fields in a labels file keep the default.
type Labels struct {
	PageTitle string `yaml:"page_title"`
	Title     string `yaml:"title"`
	XAxis     string `yaml:"x_axis"`
	YAxis     string `yaml:"y_axis"`
}

// DefaultLabels returns the stock English text.
func DefaultLabels() Labels {
	return Labels{
		PageTitle: "Particulate matter chart",
		Title:     "Particulate matter data",
		XAxis:     "Time",
		YAxis:     "PM values",
	}
}

// LoadLabels reads a YAML labels file and fills missing fields from DefaultLabels.
// An empty path returns the defaults.
func LoadLabels(path string) (Labels, error) {
	labels := DefaultLabels()
	if strings.TrimSpace(path) == "" {
		return labels, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Labels{}, fmt.Errorf("chart labels: %w", err)
	}
	var fromFile Labels
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return Labels{}, fmt.Errorf("chart labels: %w", err)
	}

	if fromFile.PageTitle != "" {
		labels.PageTitle = fromFile.PageTitle
	}
	if fromFile.Title != "" {
		labels.Title = fromFile.Title
	}
	if fromFile.XAxis != "" {
		labels.XAxis = fromFile.XAxis
	}
	if fromFile.YAxis != "" {
		labels.YAxis = fromFile.YAxis
	}
	return labels, nil
}
