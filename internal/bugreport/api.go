package bugreport

import (
	"context"
	"errors"
	"io"
	"net/url"

	"github.com/sentry-admin/console/internal/apiclient"
	"github.com/sentry-admin/console/internal/shared"
)

// ErrEmptyID guards calls that address a single report.
var ErrEmptyID = errors.New("bugreport: empty id")

// UploadField is the multipart field carrying an uploaded image.
const UploadField = "file"

// API maps bug-report calls onto the backend.
type API struct {
	client *apiclient.Client
}

// NewAPI constructs an API.
func NewAPI(client *apiclient.Client) *API {
	return &API{client: client}
}

// List pages reports matching params.
func (a *API) List(ctx context.Context, params ListParams) (apiclient.Page[Report], error) {
	page, limit := params.Page, params.Limit
	if page <= 0 {
		page = shared.DefaultPage
	}
	if limit <= 0 {
		limit = shared.DefaultPageSize
	}
	query := apiclient.NewQuery().
		Int("page", page).
		Int("limit", limit).
		Str("status", string(params.Status)).
		Str("priority", string(params.Priority)).
		Int64("reporterId", params.ReporterID).
		Int64("assigneeId", params.AssigneeID).
		Values()
	var out apiclient.Page[Report]
	if err := a.client.Get(ctx, "/bug-reports", query, &out); err != nil {
		return apiclient.Page[Report]{}, err
	}
	if out.List == nil {
		out.List = []Report{}
	}
	return out, nil
}

// Get fetches one report.
func (a *API) Get(ctx context.Context, id string) (Report, error) {
	path, err := reportPath(id)
	if err != nil {
		return Report{}, err
	}
	var out Report
	if err := a.client.Get(ctx, path, nil, &out); err != nil {
		return Report{}, err
	}
	return out, nil
}

// Create files a new report.
func (a *API) Create(ctx context.Context, in CreateInput) (Report, error) {
	var out Report
	if err := a.client.Post(ctx, "/bug-reports", in, &out); err != nil {
		return Report{}, err
	}
	return out, nil
}

// Update patches a report.
func (a *API) Update(ctx context.Context, id string, in UpdateInput) (Report, error) {
	path, err := reportPath(id)
	if err != nil {
		return Report{}, err
	}
	var out Report
	if err := a.client.Patch(ctx, path, in, &out); err != nil {
		return Report{}, err
	}
	return out, nil
}

// Delete removes a report.
func (a *API) Delete(ctx context.Context, id string) error {
	path, err := reportPath(id)
	if err != nil {
		return err
	}
	return a.client.Delete(ctx, path, nil)
}

// Assign hands a report to assigneeID.
func (a *API) Assign(ctx context.Context, id string, assigneeID int64) error {
	path, err := reportPath(id)
	if err != nil {
		return err
	}
	body := struct {
		AssigneeID int64 `json:"assigneeId"`
	}{AssigneeID: assigneeID}
	return a.client.Post(ctx, path+"/assign", body, nil)
}

// UploadImage stores an image on the backend and returns its URL.
func (a *API) UploadImage(ctx context.Context, filename string, content io.Reader) (string, error) {
	var imageURL string
	if err := a.client.PostMultipart(ctx, "/upload/image", UploadField, filename, content, &imageURL); err != nil {
		return "", err
	}
	return imageURL, nil
}

func reportPath(id string) (string, error) {
	if id == "" {
		return "", ErrEmptyID
	}
	return "/bug-reports/" + url.PathEscape(id), nil
}
