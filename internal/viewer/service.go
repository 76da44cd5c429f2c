// Package viewer resolves a chart page request: it parses the page query,
// forwards it to the backend, and renders the returned series.
package viewer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/marcauberer/particulate-matter-api/internal/chart"
	"github.com/marcauberer/particulate-matter-api/internal/chartdata"
	"github.com/marcauberer/particulate-matter-api/internal/feed"
	"github.com/marcauberer/particulate-matter-api/internal/journal"
	"github.com/marcauberer/particulate-matter-api/internal/notify"
	"github.com/marcauberer/particulate-matter-api/internal/params"
	"github.com/marcauberer/particulate-matter-api/internal/snapshot"
)

// Fetcher loads chart data for a forwarded query string.
type Fetcher interface {
	Fetch(ctx context.Context, query string) (chartdata.Result, error)
}

// Snapshotter turns a rendered HTML page into a PNG of the chart element.
type Snapshotter interface {
	Capture(ctx context.Context, html []byte, width, height int) ([]byte, error)
}

// Publisher receives one event per resolved chart.
type Publisher interface {
	Publish(evt feed.Event)
}

// Recorder persists request journal entries.
type Recorder interface {
	Write(record any) error
}

// Alerter is told the latest reading of every resolved chart.
type Alerter interface {
	Observe(ctx context.Context, r notify.Reading) (bool, error)
}

// Deps wires a Service. Fetcher is required; the rest are optional.
type Deps struct {
	Fetcher     Fetcher
	Labels      chart.Labels
	HTML        chart.Renderer
	PNG         chart.Renderer
	Snapshotter Snapshotter
	Snapshots   *snapshot.Store
	Feed        Publisher
	Journal     Recorder
	Alerter     Alerter
}

// View is a resolved chart request.
type View struct {
	Params         params.Params `json:"params"`
	ForwardedQuery string        `json:"forwarded_query"`
	Input          chart.Input   `json:"input"`
	Config         chart.Config  `json:"config"`
	FetchedAt      time.Time     `json:"fetched_at"`
	DurationMS     int64         `json:"duration_ms"`
}

// Service is the top-level driver shared by the HTTP API and the CLI.
type Service struct {
	fetcher     Fetcher
	labels      chart.Labels
	html        chart.Renderer
	png         chart.Renderer
	snapshotter Snapshotter
	snapshots   *snapshot.Store
	feed        Publisher
	journal     Recorder
	alerter     Alerter
	now         func() time.Time
}

// NewService builds a Service. Missing renderers default to the HTML and PNG
// renderers for d.Labels; a zero Labels value uses the default labels.
func NewService(d Deps) *Service {
	labels := d.Labels
	if labels == (chart.Labels{}) {
		labels = chart.DefaultLabels()
	}
	s := &Service{
		fetcher:     d.Fetcher,
		labels:      labels,
		html:        d.HTML,
		png:         d.PNG,
		snapshotter: d.Snapshotter,
		snapshots:   d.Snapshots,
		feed:        d.Feed,
		journal:     d.Journal,
		alerter:     d.Alerter,
		now:         func() time.Time { return time.Now().UTC() },
	}
	if s.html == nil {
		s.html = chart.NewHTMLRenderer(labels, "")
	}
	if s.png == nil {
		s.png = chart.NewPNGRenderer(labels)
	}
	return s
}

// Labels returns the chart labels in use.
func (s *Service) Labels() chart.Labels { return s.labels }

// Resolve parses rawQuery, fetches the forwarded query from the backend and
// builds the chart input and configuration.
func (s *Service) Resolve(ctx context.Context, rawQuery string) (View, error) {
	p := params.Parse(rawQuery)
	forwarded := params.Encode(p)
	chipID := p.Text("chipId")

	started := s.now()
	res, err := s.fetcher.Fetch(ctx, forwarded)
	duration := s.now().Sub(started)
	s.record(chipID, forwarded, res, duration, err)
	if err != nil {
		slog.Warn("chart resolve failed", "chip_id", chipID, "query", forwarded, "error", err)
		return View{}, err
	}

	in := chart.Input{
		Label:        res.Field,
		Categories:   res.Time,
		Values:       res.Values,
		ResponseTime: res.ResponseTime,
		ChipID:       chipID,
		Width:        p.PositiveInt("width", chart.DefaultWidth),
		Height:       p.PositiveInt("height", chart.DefaultHeight),
	}
	view := View{
		Params:         p,
		ForwardedQuery: forwarded,
		Input:          in,
		Config:         chart.BuildConfig(in, s.labels),
		FetchedAt:      started,
		DurationMS:     duration.Milliseconds(),
	}
	slog.Debug("chart resolved",
		"chip_id", chipID,
		"field", res.Field,
		"points", len(res.Values),
		"duration_ms", view.DurationMS,
	)
	s.publish(view)
	s.alert(ctx, view)
	return view, nil
}

// RenderHTML resolves rawQuery and renders the chart page.
func (s *Service) RenderHTML(ctx context.Context, rawQuery string) ([]byte, View, error) {
	return s.render(ctx, rawQuery, s.html)
}

// RenderPNG resolves rawQuery and renders a static PNG without a browser.
func (s *Service) RenderPNG(ctx context.Context, rawQuery string) ([]byte, View, error) {
	return s.render(ctx, rawQuery, s.png)
}

func (s *Service) render(ctx context.Context, rawQuery string, r chart.Renderer) ([]byte, View, error) {
	view, err := s.Resolve(ctx, rawQuery)
	if err != nil {
		return nil, View{}, err
	}
	out, err := renderInput(r, view.Input)
	if err != nil {
		return nil, View{}, err
	}
	return out, view, nil
}

func renderInput(r chart.Renderer, in chart.Input) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, in); err != nil {
		if errors.Is(err, chart.ErrNoData) {
			return nil, chartdata.NewError(chartdata.CodeValidation, "backend returned no data points", err)
		}
		return nil, chartdata.NewError(chartdata.CodeRenderFailure, "render chart", err)
	}
	return buf.Bytes(), nil
}

// SnapshotRequest selects how a snapshot image is produced.
type SnapshotRequest struct {
	Query string
	// Renderer is "browser" (default) or "png".
	Renderer string
	Notes    string
}

// Snapshot resolves req.Query, renders an image and stores it.
func (s *Service) Snapshot(ctx context.Context, req SnapshotRequest) (snapshot.Meta, error) {
	if s.snapshots == nil {
		return snapshot.Meta{}, chartdata.NewError(chartdata.CodeValidation, "snapshot storage is not configured", nil)
	}
	renderer := req.Renderer
	if renderer == "" {
		renderer = "browser"
	}
	if renderer != "browser" && renderer != "png" {
		return snapshot.Meta{}, chartdata.NewError(chartdata.CodeValidation, fmt.Sprintf("unknown renderer %q", renderer), nil)
	}
	if renderer == "browser" && s.snapshotter == nil {
		return snapshot.Meta{}, chartdata.NewError(chartdata.CodeBrowserUnavailable, "no browser configured for snapshots", nil)
	}

	view, err := s.Resolve(ctx, req.Query)
	if err != nil {
		return snapshot.Meta{}, err
	}

	var image []byte
	switch renderer {
	case "png":
		image, err = renderInput(s.png, view.Input)
		if err != nil {
			return snapshot.Meta{}, err
		}
	default:
		page, err := renderInput(s.html, view.Input)
		if err != nil {
			return snapshot.Meta{}, err
		}
		image, err = s.snapshotter.Capture(ctx, page, view.Input.Width, view.Input.Height)
		if err != nil {
			return snapshot.Meta{}, chartdata.NewError(chartdata.CodeBrowserUnavailable, "capture chart in browser", err)
		}
	}

	meta, err := s.snapshots.Save(snapshot.Meta{
		ID:           snapshot.NewID(),
		ChipID:       view.Input.ChipID,
		Field:        view.Input.Label,
		Renderer:     renderer,
		Format:       "png",
		Width:        view.Input.Width,
		Height:       view.Input.Height,
		Query:        view.ForwardedQuery,
		ResponseTime: view.Input.ResponseTime,
		CreatedAt:    s.now(),
		Notes:        req.Notes,
	}, image)
	if err != nil {
		return snapshot.Meta{}, fmt.Errorf("save snapshot: %w", err)
	}
	slog.Info("snapshot stored", "id", meta.ID, "chip_id", meta.ChipID, "renderer", renderer, "size_bytes", meta.SizeBytes)
	return meta, nil
}

// ListSnapshots returns stored snapshots, newest first.
func (s *Service) ListSnapshots() ([]snapshot.Meta, error) {
	if s.snapshots == nil {
		return []snapshot.Meta{}, nil
	}
	return s.snapshots.List()
}

// GetSnapshot returns snapshot metadata.
func (s *Service) GetSnapshot(id string) (snapshot.Meta, error) {
	if s.snapshots == nil {
		return snapshot.Meta{}, snapshotErr(snapshot.ErrNotFound)
	}
	meta, err := s.snapshots.Get(id)
	return meta, snapshotErr(err)
}

// ReadSnapshotImage returns the stored image and its metadata.
func (s *Service) ReadSnapshotImage(id string) ([]byte, snapshot.Meta, error) {
	if s.snapshots == nil {
		return nil, snapshot.Meta{}, snapshotErr(snapshot.ErrNotFound)
	}
	data, meta, err := s.snapshots.ReadImage(id)
	return data, meta, snapshotErr(err)
}

// DeleteSnapshot removes a stored snapshot.
func (s *Service) DeleteSnapshot(id string) error {
	if s.snapshots == nil {
		return snapshotErr(snapshot.ErrNotFound)
	}
	return snapshotErr(s.snapshots.Delete(id))
}

func snapshotErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, snapshot.ErrInvalidID):
		return chartdata.NewError(chartdata.CodeValidation, "invalid snapshot id", err)
	case errors.Is(err, snapshot.ErrNotFound):
		return chartdata.NewError(chartdata.CodeSnapshotNotFound, "snapshot not found", err)
	default:
		return err
	}
}

// feedEvent is the JSON payload published for each resolved chart.
type feedEvent struct {
	ChipID       string    `json:"chip_id"`
	Field        string    `json:"field"`
	Points       int       `json:"points"`
	Last         *float64  `json:"last,omitempty"`
	ResponseTime float64   `json:"response_time_ms"`
	Query        string    `json:"query"`
	FetchedAt    time.Time `json:"fetched_at"`
}

func (s *Service) publish(view View) {
	if s.feed == nil {
		return
	}
	evt := feedEvent{
		ChipID:       view.Input.ChipID,
		Field:        view.Input.Label,
		Points:       len(view.Input.Values),
		ResponseTime: view.Input.ResponseTime,
		Query:        view.ForwardedQuery,
		FetchedAt:    view.FetchedAt,
	}
	if n := len(view.Input.Values); n > 0 {
		last := view.Input.Values[n-1]
		evt.Last = &last
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		slog.Debug("feed payload marshal failed", "error", err)
		return
	}
	s.feed.Publish(feed.Event{ChipID: evt.ChipID, Payload: string(payload)})
}

func (s *Service) alert(ctx context.Context, view View) {
	n := len(view.Input.Values)
	if s.alerter == nil || n == 0 {
		return
	}
	r := notify.Reading{ChipID: view.Input.ChipID, Field: view.Input.Label, Value: view.Input.Values[n-1]}
	if _, err := s.alerter.Observe(ctx, r); err != nil {
		slog.Warn("threshold alert failed", "chip_id", r.ChipID, "error", err)
	}
}

func (s *Service) record(chipID, query string, res chartdata.Result, duration time.Duration, fetchErr error) {
	if s.journal == nil {
		return
	}
	entry := journal.Entry{
		Time:         s.now(),
		ChipID:       chipID,
		Query:        query,
		Field:        res.Field,
		Points:       len(res.Values),
		ResponseTime: res.ResponseTime,
		DurationMS:   duration.Milliseconds(),
		Status:       "ok",
	}
	if fetchErr != nil {
		entry.Status = "error"
		var ce *chartdata.CodedError
		if errors.As(fetchErr, &ce) {
			entry.Status = ce.Code
		}
		entry.Error = fetchErr.Error()
	}
	if err := s.journal.Write(entry); err != nil {
		slog.Debug("journal write skipped", "error", err)
	}
}
