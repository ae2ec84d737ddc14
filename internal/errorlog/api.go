package errorlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sentry-admin/console/internal/apiclient"
	"github.com/sentry-admin/console/internal/shared"
)

// ErrInvalidStatus is returned before any backend call for an unknown status.
var ErrInvalidStatus = errors.New("errorlog: invalid status")

// API maps error-record calls onto the backend.
type API struct {
	client *apiclient.Client
}

// NewAPI constructs an API.
func NewAPI(client *apiclient.Client) *API {
	return &API{client: client}
}

// List pages error records matching filter. A backend answering with a bare
// array is treated as a single unpaged page.
func (a *API) List(ctx context.Context, filter Filter) (apiclient.Page[Record], error) {
	page, pageSize := filter.Page, filter.PageSize
	if page <= 0 {
		page = shared.DefaultPage
	}
	if pageSize <= 0 {
		pageSize = shared.DefaultPageSize
	}
	query := apiclient.NewQuery().
		Str("status", string(filter.Status)).
		Str("createdAt", filter.CreatedAt).
		Str("project", string(filter.Project)).
		Str("environment", string(filter.Environment)).
		Int("page", page).
		Int("pageSize", pageSize).
		Values()
	var raw json.RawMessage
	if err := a.client.Get(ctx, "/error/list", query, &raw); err != nil {
		return apiclient.Page[Record]{}, err
	}
	return decodeList(raw, page, pageSize)
}

// Get fetches one record.
func (a *API) Get(ctx context.Context, id int64) (Record, error) {
	var out Record
	if err := a.client.Get(ctx, fmt.Sprintf("/error/%d", id), nil, &out); err != nil {
		return Record{}, err
	}
	return out, nil
}

// UpdateStatus moves a record to status.
func (a *API) UpdateStatus(ctx context.Context, id int64, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	body := struct {
		Status Status `json:"status"`
	}{Status: status}
	return a.client.Patch(ctx, fmt.Sprintf("/error/%d/status", id), body, nil)
}

func decodeList(raw json.RawMessage, page, pageSize int) (apiclient.Page[Record], error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return apiclient.Page[Record]{List: []Record{}, Pagination: shared.NewPagination(page, pageSize, 0)}, nil
	}
	if trimmed[0] == '[' {
		var list []Record
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return apiclient.Page[Record]{}, fmt.Errorf("errorlog: decode list: %w", err)
		}
		return apiclient.Page[Record]{List: list, Pagination: shared.NewPagination(1, len(list), len(list))}, nil
	}
	var out apiclient.Page[Record]
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return apiclient.Page[Record]{}, fmt.Errorf("errorlog: decode list: %w", err)
	}
	if out.List == nil {
		out.List = []Record{}
	}
	return out, nil
}
