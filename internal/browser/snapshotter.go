package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const defaultSettle = 700 * time.Millisecond

// ErrEmptyCapture is returned when the browser produced no image bytes.
var ErrEmptyCapture = errors.New("browser returned an empty screenshot")

// Snapshotter renders an HTML chart page in a remote Chromium and screenshots
// the chart container.
type Snapshotter struct {
	cdpURL   string
	selector string
	timeout  time.Duration
	settle   time.Duration
}

// NewSnapshotter returns a Snapshotter attached to the CDP endpoint at cdpURL,
// usually Launcher.Endpoint. selector picks the element to capture, e.g. "#container".
func NewSnapshotter(cdpURL, selector string, timeout time.Duration) *Snapshotter {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Snapshotter{
		cdpURL:   cdpURL,
		selector: selector,
		timeout:  timeout,
		settle:   defaultSettle,
	}
}

// Capture loads html into a fresh tab sized width x height and returns a PNG
// of the chart element.
func (s *Snapshotter) Capture(ctx context.Context, html []byte, width, height int) ([]byte, error) {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, s.cdpURL)
	defer allocCancel()

	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	defer tabCancel()

	runCtx, cancel := context.WithTimeout(tabCtx, s.timeout)
	defer cancel()

	started := time.Now()
	var buf []byte
	err := chromedp.Run(runCtx,
		chromedp.EmulateViewport(int64(width+viewportMargin), int64(height+viewportMargin)),
		chromedp.Navigate("about:blank"),
		s.setContent(string(html)),
		chromedp.WaitVisible(s.selector, chromedp.ByQuery),
		chromedp.Sleep(s.settle),
		chromedp.Screenshot(s.selector, &buf, chromedp.NodeVisible, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("capture chart via %s: %w", s.cdpURL, err)
	}
	if len(buf) == 0 {
		return nil, ErrEmptyCapture
	}
	slog.Debug("browser capture", "bytes", len(buf), "duration_ms", time.Since(started).Milliseconds())
	return buf, nil
}

func (s *Snapshotter) setContent(html string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return fmt.Errorf("get frame tree: %w", err)
		}
		return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
	})
}
