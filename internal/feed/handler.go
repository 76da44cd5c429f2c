package feed

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// chipFilter parses ?chips=a,b. A nil filter accepts every chip.
func chipFilter(r *http.Request) map[string]bool {
	q := r.URL.Query().Get("chips")
	if q == "" {
		return nil
	}
	filter := make(map[string]bool)
	for _, c := range strings.Split(q, ",") {
		if c = strings.TrimSpace(c); c != "" {
			filter[c] = true
		}
	}
	if len(filter) == 0 {
		return nil
	}
	return filter
}

// SSEHandler streams events as server-sent events named "chart".
func SSEHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}
		filter := chipFilter(r)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)

		for {
			select {
			case <-r.Context().Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if filter != nil && !filter[evt.ChipID] {
					continue
				}
				if _, err := fmt.Fprintf(w, "event: chart\ndata: %s\n\n", evt.Payload); err != nil {
					slog.Debug("feed sse write failed", "error", err)
					return
				}
				flusher.Flush()
			}
		}
	}
}

// WSHandler upgrades to a WebSocket and writes each event payload as a text frame.
// A close frame or read error from the client ends the stream.
func WSHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := chipFilter(r)

		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			slog.Debug("feed ws upgrade failed", "error", err)
			return
		}
		defer func() {
			if closeErr := conn.Close(); closeErr != nil {
				slog.Debug("feed ws close failed", "error", closeErr)
			}
		}()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)

		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := wsutil.ReadClientData(conn); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-gone:
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if filter != nil && !filter[evt.ChipID] {
					continue
				}
				if err := wsutil.WriteServerText(conn, []byte(evt.Payload)); err != nil {
					slog.Debug("feed ws write failed", "error", err)
					return
				}
			}
		}
	}
}
