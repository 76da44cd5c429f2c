package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/marcauberer/particulate-matter-api/internal/snapshot"
	"github.com/marcauberer/particulate-matter-api/internal/viewer"
)

type takeSnapshotInput struct {
	ChipID string `query:"chipId" doc:"Sensor chip id shown in the subtitle"`
	Width  string `query:"width" doc:"Chart width in px (default 800)"`
	Height string `query:"height" doc:"Chart height in px (default 500)"`
	Body   struct {
		Renderer string `json:"renderer,omitempty" doc:"browser (default) or png" enum:"browser,png"`
		Notes    string `json:"notes,omitempty" doc:"Free-form annotation for the snapshot"`
	} `required:"false"`

	rawQuery string
}

func (i *takeSnapshotInput) Resolve(ctx huma.Context) []error {
	u := ctx.URL()
	i.rawQuery = u.RawQuery
	return nil
}

func registerSnapshotHandlers(api huma.API, svc Service) {
	type takeSnapshotOutput struct {
		Body struct {
			Snapshot snapshot.Meta `json:"snapshot"`
			URL      string        `json:"url"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID:   "take-snapshot",
		Method:        http.MethodPost,
		Path:          "/api/v1/snapshots",
		Summary:       "Take chart snapshot",
		Description:   "Resolves the chart for the query parameters, renders it and stores a PNG.",
		Tags:          []string{"Snapshots"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *takeSnapshotInput) (*takeSnapshotOutput, error) {
		meta, err := svc.Snapshot(ctx, viewer.SnapshotRequest{
			Query:    input.rawQuery,
			Renderer: input.Body.Renderer,
			Notes:    input.Body.Notes,
		})
		if err != nil {
			return nil, mapErr(err)
		}
		out := &takeSnapshotOutput{}
		out.Body.Snapshot = meta
		out.Body.URL = "/api/v1/snapshots/" + meta.ID + "/image"
		return out, nil
	})

	type listSnapshotsOutput struct {
		Body struct {
			Snapshots []snapshot.Meta `json:"snapshots"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-snapshots", Method: http.MethodGet, Path: "/api/v1/snapshots", Summary: "List snapshots", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *struct{}) (*listSnapshotsOutput, error) {
			metas, err := svc.ListSnapshots()
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listSnapshotsOutput{}
			out.Body.Snapshots = metas
			if out.Body.Snapshots == nil {
				out.Body.Snapshots = []snapshot.Meta{}
			}
			return out, nil
		})

	type snapshotIDInput struct {
		SnapshotID string `path:"snapshot_id"`
	}
	type getSnapshotOutput struct {
		Body snapshot.Meta
	}
	huma.Register(api, huma.Operation{OperationID: "get-snapshot-metadata", Method: http.MethodGet, Path: "/api/v1/snapshots/{snapshot_id}/metadata", Summary: "Get snapshot metadata", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *snapshotIDInput) (*getSnapshotOutput, error) {
			meta, err := svc.GetSnapshot(input.SnapshotID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &getSnapshotOutput{Body: meta}, nil
		})

	huma.Register(api, huma.Operation{
		OperationID: "get-snapshot-image",
		Method:      http.MethodGet,
		Path:        "/api/v1/snapshots/{snapshot_id}/image",
		Summary:     "Get snapshot image",
		Tags:        []string{"Snapshots"},
		Responses:   binaryResponses("image/png", "Snapshot image"),
	}, func(ctx context.Context, input *snapshotIDInput) (*pageOutput, error) {
		data, meta, err := svc.ReadSnapshotImage(input.SnapshotID)
		if err != nil {
			return nil, mapErr(err)
		}
		ct := "image/png"
		if meta.Format == "jpeg" {
			ct = "image/jpeg"
		}
		return &pageOutput{ContentType: ct, Body: data}, nil
	})

	type deleteSnapshotOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "delete-snapshot", Method: http.MethodDelete, Path: "/api/v1/snapshots/{snapshot_id}", Summary: "Delete snapshot", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *snapshotIDInput) (*deleteSnapshotOutput, error) {
			if err := svc.DeleteSnapshot(input.SnapshotID); err != nil {
				return nil, mapErr(err)
			}
			out := &deleteSnapshotOutput{}
			out.Body.Status = "deleted"
			return out, nil
		})
}
