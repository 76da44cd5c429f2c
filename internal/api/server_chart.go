package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/marcauberer/particulate-matter-api/internal/chart"
	"github.com/marcauberer/particulate-matter-api/internal/params"
)

// chartQueryInput documents the well-known parameters and keeps the raw query,
// which is forwarded to the backend as a whole.
type chartQueryInput struct {
	ChipID string `query:"chipId" doc:"Sensor chip id shown in the subtitle"`
	Width  string `query:"width" doc:"Chart width in px (default 800)"`
	Height string `query:"height" doc:"Chart height in px (default 500)"`

	rawQuery string
}

func (i *chartQueryInput) Resolve(ctx huma.Context) []error {
	u := ctx.URL()
	i.rawQuery = u.RawQuery
	return nil
}

type pageOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

func binaryResponses(contentType, description string) map[string]*huma.Response {
	return map[string]*huma.Response{
		"200": {
			Description: description,
			Content: map[string]*huma.MediaType{
				contentType: {
					Schema: &huma.Schema{Type: "string", Format: "binary"},
				},
			},
		},
	}
}

func registerChartHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{
		OperationID: "chart-page",
		Method:      http.MethodGet,
		Path:        "/chart",
		Summary:     "Render chart page",
		Description: "Parses the page query, forwards it to the backend data/chart endpoint and renders the series as an HTML line chart.",
		Tags:        []string{"Chart"},
		Responses:   binaryResponses("text/html", "Chart page"),
	}, func(ctx context.Context, input *chartQueryInput) (*pageOutput, error) {
		page, _, err := svc.RenderHTML(ctx, input.rawQuery)
		if err != nil {
			return nil, mapErr(err)
		}
		return &pageOutput{ContentType: "text/html; charset=utf-8", Body: page}, nil
	})

	type viewOutput struct {
		Body struct {
			Params         params.Params `json:"params"`
			ForwardedQuery string        `json:"forwarded_query"`
			Input          chart.Input   `json:"input"`
			Config         chart.Config  `json:"config"`
			DurationMS     int64         `json:"duration_ms"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "chart-view",
		Method:      http.MethodGet,
		Path:        "/api/v1/chart",
		Summary:     "Resolve chart",
		Description: "Returns the parsed parameters, the forwarded query and the chart configuration.",
		Tags:        []string{"Chart"},
	}, func(ctx context.Context, input *chartQueryInput) (*viewOutput, error) {
		view, err := svc.Resolve(ctx, input.rawQuery)
		if err != nil {
			return nil, mapErr(err)
		}
		out := &viewOutput{}
		out.Body.Params = view.Params
		out.Body.ForwardedQuery = view.ForwardedQuery
		out.Body.Input = view.Input
		out.Body.Config = view.Config
		out.Body.DurationMS = view.DurationMS
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "chart-image",
		Method:      http.MethodGet,
		Path:        "/api/v1/chart/image",
		Summary:     "Render chart PNG",
		Description: "Renders the chart as a static PNG without a browser.",
		Tags:        []string{"Chart"},
		Responses:   binaryResponses("image/png", "Chart image"),
	}, func(ctx context.Context, input *chartQueryInput) (*pageOutput, error) {
		img, _, err := svc.RenderPNG(ctx, input.rawQuery)
		if err != nil {
			return nil, mapErr(err)
		}
		return &pageOutput{ContentType: "image/png", Body: img}, nil
	})
}
