package viewer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/marcauberer/particulate-matter-api/internal/chart"
	"github.com/marcauberer/particulate-matter-api/internal/chartdata"
	"github.com/marcauberer/particulate-matter-api/internal/feed"
	"github.com/marcauberer/particulate-matter-api/internal/journal"
	"github.com/marcauberer/particulate-matter-api/internal/notify"
	"github.com/marcauberer/particulate-matter-api/internal/snapshot"
)

type stubFetcher struct {
	result chartdata.Result
	err    error
	query  string
}

func (f *stubFetcher) Fetch(_ context.Context, query string) (chartdata.Result, error) {
	f.query = query
	return f.result, f.err
}

type recordingRenderer struct {
	got   chart.Input
	calls int
	err   error
}

func (r *recordingRenderer) ContentType() string { return "text/plain" }

func (r *recordingRenderer) Render(w io.Writer, in chart.Input) error {
	r.got = in
	r.calls++
	if r.err != nil {
		return r.err
	}
	_, err := io.WriteString(w, "rendered "+in.Label)
	return err
}

type stubSnapshotter struct {
	page          []byte
	width, height int
	err           error
}

func (s *stubSnapshotter) Capture(_ context.Context, html []byte, width, height int) ([]byte, error) {
	s.page, s.width, s.height = html, width, height
	if s.err != nil {
		return nil, s.err
	}
	return []byte("\x89PNGstub"), nil
}

type recordingPublisher struct {
	events []feed.Event
}

func (p *recordingPublisher) Publish(evt feed.Event) { p.events = append(p.events, evt) }

type recordingJournal struct {
	mu      sync.Mutex
	records []any
}

func (j *recordingJournal) Write(record any) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, record)
	return nil
}

type recordingAlerter struct {
	readings []notify.Reading
	err      error
}

func (a *recordingAlerter) Observe(_ context.Context, r notify.Reading) (bool, error) {
	a.readings = append(a.readings, r)
	return a.err == nil, a.err
}

func sampleResult() chartdata.Result {
	return chartdata.Result{
		Field:        "PM10",
		Time:         []string{"t1", "t2"},
		Values:       []float64{5, 10},
		ResponseTime: 42,
	}
}

func TestRenderHTMLWithMockBackend(t *testing.T) {
	var gotPath, gotQuery string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"field":"PM10","time":["t1","t2"],"values":[5,10],"responseTime":42}`)
	}))
	defer backend.Close()

	renderer := &recordingRenderer{}
	svc := NewService(Deps{
		Fetcher: chartdata.NewClient(backend.URL, backend.Client(), time.Second),
		HTML:    renderer,
	})

	out, _, err := svc.RenderHTML(context.Background(), "?chipId=abc")
	if err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}
	if string(out) != "rendered PM10" {
		t.Fatalf("RenderHTML() = %q", out)
	}
	if gotPath != "/data/chart" || gotQuery != "chipId=abc" {
		t.Fatalf("backend got %s?%s; want /data/chart?chipId=abc", gotPath, gotQuery)
	}

	want := chart.Input{
		Label:        "PM10",
		Categories:   []string{"t1", "t2"},
		Values:       []float64{5, 10},
		ResponseTime: 42,
		ChipID:       "abc",
		Width:        800,
		Height:       500,
	}
	if !reflect.DeepEqual(renderer.got, want) {
		t.Fatalf("renderer input = %#v; want %#v", renderer.got, want)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name          string
		query         string
		wantForwarded string
		wantChip      string
		wantW, wantH  int
	}{
		{"defaults", "chipId=abc", "chipId=abc", "abc", 800, 500},
		{"explicit size", "chipId=abc&width=1024&height=300", "chipId=abc&width=1024&height=300", "abc", 1024, 300},
		{"invalid size", "width=-5&height=big", "width=-5&height=big", "", 800, 500},
		{"flag size", "width&chipId=x", "width=true&chipId=x", "x", 800, 500},
		{"list flattened", "a[0]=x&a[2]=y", "a=x%2C%2Cy", "", 800, 500},
		{"empty", "", "", "", 800, 500},
		{"fragment", "?chipId=a b#frag", "chipId=a%20b", "a b", 800, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &stubFetcher{result: sampleResult()}
			svc := NewService(Deps{Fetcher: f})
			view, err := svc.Resolve(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if f.query != tt.wantForwarded || view.ForwardedQuery != tt.wantForwarded {
				t.Errorf("forwarded = %q (view %q); want %q", f.query, view.ForwardedQuery, tt.wantForwarded)
			}
			if view.Input.ChipID != tt.wantChip {
				t.Errorf("ChipID = %q; want %q", view.Input.ChipID, tt.wantChip)
			}
			if view.Input.Width != tt.wantW || view.Input.Height != tt.wantH {
				t.Errorf("size = %dx%d; want %dx%d", view.Input.Width, view.Input.Height, tt.wantW, tt.wantH)
			}
			if view.Config.Subtitle != chart.Subtitle(tt.wantChip, 42) {
				t.Errorf("Subtitle = %q", view.Config.Subtitle)
			}
		})
	}
}

func TestResolvePublishesAndRecords(t *testing.T) {
	pub := &recordingPublisher{}
	j := &recordingJournal{}
	svc := NewService(Deps{Fetcher: &stubFetcher{result: sampleResult()}, Feed: pub, Journal: j})

	if _, err := svc.Resolve(context.Background(), "chipId=abc"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(pub.events) != 1 || pub.events[0].ChipID != "abc" {
		t.Fatalf("events = %#v", pub.events)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(pub.events[0].Payload), &payload); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if payload["field"] != "PM10" || payload["last"] != float64(10) {
		t.Fatalf("payload = %v", payload)
	}
	if len(j.records) != 1 {
		t.Fatalf("journal records = %d; want 1", len(j.records))
	}
}

func TestResolveBackendErrorIsRecordedNotPublished(t *testing.T) {
	pub := &recordingPublisher{}
	j := &recordingJournal{}
	backendErr := &chartdata.CodedError{Code: chartdata.CodeBackendStatus, Message: "status 500", Status: 500}
	svc := NewService(Deps{Fetcher: &stubFetcher{err: backendErr}, Feed: pub, Journal: j})

	_, err := svc.Resolve(context.Background(), "chipId=abc")
	var ce *chartdata.CodedError
	if !errors.As(err, &ce) || ce.Code != chartdata.CodeBackendStatus {
		t.Fatalf("Resolve() error = %v; want BACKEND_STATUS", err)
	}
	if len(pub.events) != 0 {
		t.Fatalf("published %d events on failure", len(pub.events))
	}
	if len(j.records) != 1 {
		t.Fatalf("journal records = %d; want 1", len(j.records))
	}
	entry, ok := j.records[0].(journal.Entry)
	if !ok || entry.Status != chartdata.CodeBackendStatus || entry.ChipID != "abc" {
		t.Fatalf("journal entry = %#v", j.records[0])
	}
}

func TestRenderErrorsAreCoded(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"no data", chart.ErrNoData, chartdata.CodeValidation},
		{"other", errors.New("boom"), chartdata.CodeRenderFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(Deps{
				Fetcher: &stubFetcher{result: sampleResult()},
				PNG:     &recordingRenderer{err: tt.err},
			})
			_, _, err := svc.RenderPNG(context.Background(), "")
			var ce *chartdata.CodedError
			if !errors.As(err, &ce) || ce.Code != tt.wantCode {
				t.Fatalf("RenderPNG() error = %v; want %s", err, tt.wantCode)
			}
		})
	}
}

func TestRenderPNGDefaultRenderer(t *testing.T) {
	svc := NewService(Deps{Fetcher: &stubFetcher{result: sampleResult()}})
	out, view, err := svc.RenderPNG(context.Background(), "chipId=abc&width=300&height=200")
	if err != nil {
		t.Fatalf("RenderPNG() error = %v", err)
	}
	if !bytes.HasPrefix(out, []byte("\x89PNG")) {
		t.Fatalf("RenderPNG() did not return a PNG")
	}
	if view.Input.Width != 300 || view.Input.Height != 200 {
		t.Fatalf("view size = %dx%d", view.Input.Width, view.Input.Height)
	}
}

func TestRenderPNGSinglePoint(t *testing.T) {
	one := chartdata.Result{Field: "PM10", Time: []string{"t1"}, Values: []float64{5}, ResponseTime: 42}
	svc := NewService(Deps{Fetcher: &stubFetcher{result: one}})
	out, _, err := svc.RenderPNG(context.Background(), "chipId=abc")
	if err != nil {
		t.Fatalf("RenderPNG() error = %v", err)
	}
	if !bytes.HasPrefix(out, []byte("\x89PNG")) {
		t.Fatalf("RenderPNG() did not return a PNG")
	}
}

func TestSnapshotLifecycle(t *testing.T) {
	store, err := snapshot.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	snapper := &stubSnapshotter{}
	html := &recordingRenderer{}
	svc := NewService(Deps{
		Fetcher:     &stubFetcher{result: sampleResult()},
		HTML:        html,
		Snapshotter: snapper,
		Snapshots:   store,
	})

	meta, err := svc.Snapshot(context.Background(), SnapshotRequest{Query: "chipId=abc&width=640", Notes: "morning"})
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if meta.ChipID != "abc" || meta.Field != "PM10" || meta.Renderer != "browser" || meta.Notes != "morning" {
		t.Fatalf("meta = %#v", meta)
	}
	if snapper.width != 640 || snapper.height != 500 || string(snapper.page) != "rendered PM10" {
		t.Fatalf("snapshotter got %dx%d page %q", snapper.width, snapper.height, snapper.page)
	}

	list, err := svc.ListSnapshots()
	if err != nil || len(list) != 1 || list[0].ID != meta.ID {
		t.Fatalf("ListSnapshots() = %#v, %v", list, err)
	}
	data, _, err := svc.ReadSnapshotImage(meta.ID)
	if err != nil || !strings.HasPrefix(string(data), "\x89PNG") {
		t.Fatalf("ReadSnapshotImage() = %q, %v", data, err)
	}
	if err := svc.DeleteSnapshot(meta.ID); err != nil {
		t.Fatalf("DeleteSnapshot() error = %v", err)
	}

	_, err = svc.GetSnapshot(meta.ID)
	var ce *chartdata.CodedError
	if !errors.As(err, &ce) || ce.Code != chartdata.CodeSnapshotNotFound {
		t.Fatalf("GetSnapshot() after delete error = %v; want SNAPSHOT_NOT_FOUND", err)
	}
	_, err = svc.GetSnapshot("not-a-uuid")
	if !errors.As(err, &ce) || ce.Code != chartdata.CodeValidation {
		t.Fatalf("GetSnapshot(invalid) error = %v; want VALIDATION", err)
	}
}

func TestSnapshotPNGRendererNeedsNoBrowser(t *testing.T) {
	store, err := snapshot.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	svc := NewService(Deps{Fetcher: &stubFetcher{result: sampleResult()}, Snapshots: store})
	meta, err := svc.Snapshot(context.Background(), SnapshotRequest{Query: "chipId=abc", Renderer: "png"})
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if meta.Renderer != "png" || meta.SizeBytes == 0 {
		t.Fatalf("meta = %#v", meta)
	}
}

func TestSnapshotErrors(t *testing.T) {
	store, err := snapshot.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	tests := []struct {
		name     string
		deps     Deps
		req      SnapshotRequest
		wantCode string
	}{
		{"no store", Deps{}, SnapshotRequest{}, chartdata.CodeValidation},
		{"unknown renderer", Deps{Snapshots: store}, SnapshotRequest{Renderer: "svg"}, chartdata.CodeValidation},
		{"no browser", Deps{Snapshots: store}, SnapshotRequest{}, chartdata.CodeBrowserUnavailable},
		{"capture fails", Deps{Snapshots: store, Snapshotter: &stubSnapshotter{err: errors.New("cdp down")}}, SnapshotRequest{}, chartdata.CodeBrowserUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.deps.Fetcher = &stubFetcher{result: sampleResult()}
			_, err := NewService(tt.deps).Snapshot(context.Background(), tt.req)
			var ce *chartdata.CodedError
			if !errors.As(err, &ce) || ce.Code != tt.wantCode {
				t.Fatalf("Snapshot() error = %v; want %s", err, tt.wantCode)
			}
		})
	}
}

func TestResolveObservesLatestReading(t *testing.T) {
	alerter := &recordingAlerter{}
	svc := NewService(Deps{Fetcher: &stubFetcher{result: sampleResult()}, Alerter: alerter})
	if _, err := svc.Resolve(context.Background(), "chipId=abc"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := []notify.Reading{{ChipID: "abc", Field: "PM10", Value: 10}}
	if !reflect.DeepEqual(alerter.readings, want) {
		t.Fatalf("readings = %#v; want %#v", alerter.readings, want)
	}

	alerter.err = errors.New("ntfy down")
	if _, err := svc.Resolve(context.Background(), "chipId=abc"); err != nil {
		t.Fatalf("Resolve() with failing alerter error = %v", err)
	}

	empty := &recordingAlerter{}
	svc = NewService(Deps{Fetcher: &stubFetcher{result: chartdata.Result{Field: "PM10"}}, Alerter: empty})
	if _, err := svc.Resolve(context.Background(), ""); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(empty.readings) != 0 {
		t.Fatalf("observed %d readings for empty series", len(empty.readings))
	}
}
