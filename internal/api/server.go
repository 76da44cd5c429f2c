// Package api exposes the chart viewer over HTTP with huma on a chi router.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marcauberer/particulate-matter-api/internal/chartdata"
	"github.com/marcauberer/particulate-matter-api/internal/feed"
	"github.com/marcauberer/particulate-matter-api/internal/snapshot"
	"github.com/marcauberer/particulate-matter-api/internal/viewer"
)

type Service interface {
	Resolve(ctx context.Context, rawQuery string) (viewer.View, error)
	RenderHTML(ctx context.Context, rawQuery string) ([]byte, viewer.View, error)
	RenderPNG(ctx context.Context, rawQuery string) ([]byte, viewer.View, error)
	Snapshot(ctx context.Context, req viewer.SnapshotRequest) (snapshot.Meta, error)
	ListSnapshots() ([]snapshot.Meta, error)
	GetSnapshot(id string) (snapshot.Meta, error)
	ReadSnapshotImage(id string) ([]byte, snapshot.Meta, error)
	DeleteSnapshot(id string) error
}

// NewServer builds the HTTP handler. broker may be nil, in which case the
// feed endpoints are not mounted.
func NewServer(svc Service, broker *feed.Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Particulate Matter Chart API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})

	registerHealthHandlers(api, broker)
	registerChartHandlers(api, svc)
	registerSnapshotHandlers(api, svc)

	if broker != nil {
		router.Get("/docs/feed", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			if _, err := w.Write([]byte(feedDocsHTML)); err != nil {
				slog.Debug("feed docs response write failed", "error", err)
			}
		})
		router.Get("/api/v1/feed/sse", feed.SSEHandler(broker))
		router.Get("/api/v1/feed/ws", feed.WSHandler(broker))
	}

	return router
}

func registerHealthHandlers(api huma.API, broker *feed.Broker) {
	type healthOutput struct {
		Body struct {
			Status      string `json:"status"`
			FeedClients int    `json:"feed_clients"`
			FeedDropped int64  `json:"feed_dropped"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/api/v1/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			if broker != nil {
				out.Body.FeedClients = broker.ClientCount()
				out.Body.FeedDropped = broker.Dropped()
			}
			return out, nil
		})
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *chartdata.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case chartdata.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case chartdata.CodeSnapshotNotFound:
			return huma.Error404NotFound(coded.Message)
		case chartdata.CodeBackendTimeout:
			return huma.Error504GatewayTimeout(coded.Message)
		case chartdata.CodeBackendUnavailable, chartdata.CodeBackendStatus, chartdata.CodeMalformedResponse:
			return huma.Error502BadGateway(coded.Message)
		case chartdata.CodeBrowserUnavailable:
			return huma.Error503ServiceUnavailable(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
