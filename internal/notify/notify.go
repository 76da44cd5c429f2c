// Package notify posts plain-text alerts to an ntfy-style endpoint when a
// chart's latest reading crosses a threshold.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Reading is the latest value of one resolved chart.
type Reading struct {
	ChipID string
	Field  string
	Value  float64
}

// Threshold sends one alert per chip and field each time the latest value
// rises above Limit. It re-arms once the value drops back to or below Limit.
type Threshold struct {
	Endpoint string
	Limit    float64
	Client   *http.Client
	Timeout  time.Duration

	mu     sync.Mutex
	active map[string]bool
}

// NewThreshold returns a notifier posting to endpoint.
func NewThreshold(endpoint string, limit float64, client *http.Client) *Threshold {
	return &Threshold{
		Endpoint: endpoint,
		Limit:    limit,
		Client:   client,
		Timeout:  5 * time.Second,
		active:   make(map[string]bool),
	}
}

// Observe records r and sends an alert when it newly exceeds the limit.
// It reports whether an alert was sent.
func (t *Threshold) Observe(ctx context.Context, r Reading) (bool, error) {
	key := r.ChipID + "\x00" + r.Field

	t.mu.Lock()
	if t.active == nil {
		t.active = make(map[string]bool)
	}
	above := r.Value > t.Limit
	fire := above && !t.active[key]
	t.active[key] = above
	t.mu.Unlock()

	if !fire {
		return false, nil
	}

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}
	if err := Send(ctx, t.Client, t.Endpoint, Message(r, t.Limit)); err != nil {
		t.mu.Lock()
		t.active[key] = false
		t.mu.Unlock()
		return false, err
	}
	slog.Info("threshold alert sent", "chip_id", r.ChipID, "field", r.Field, "value", r.Value, "limit", t.Limit)
	return true, nil
}

// Message formats the alert text for r.
func Message(r Reading, limit float64) string {
	chip := r.ChipID
	if chip == "" {
		chip = "unknown sensor"
	}
	return fmt.Sprintf("Sensor-ID %s: %s at %s exceeds limit %s",
		chip, r.Field,
		strconv.FormatFloat(r.Value, 'f', -1, 64),
		strconv.FormatFloat(limit, 'f', -1, 64),
	)
}

// Send posts message to endpoint as text/plain.
func Send(ctx context.Context, client *http.Client, endpoint, message string) error {
	if strings.TrimSpace(endpoint) == "" {
		return errors.New("ntfy notification failed: missing endpoint")
	}
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Title", "Particulate matter alert")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}
