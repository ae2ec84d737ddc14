package errorlog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentry-admin/console/internal/apiclient"
)

func newBackend(t *testing.T, mount func(r chi.Router)) *API {
	t.Helper()
	r := chi.NewRouter()
	mount(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return NewAPI(apiclient.New(apiclient.Options{BaseURL: srv.URL}))
}

func TestListSendsFilter(t *testing.T) {
	var query map[string][]string
	api := newBackend(t, func(r chi.Router) {
		r.Get("/error/list", func(w http.ResponseWriter, req *http.Request) {
			query = req.URL.Query()
			_, _ = w.Write([]byte(`{"success":true,"data":{"list":[{"id":7,"type":"TypeError","message":"boom","createdAt":"2026-01-07T09:24:19.324Z","category":"API_ERROR","status":"UNRESOLVED"}],"pagination":{"total":11,"page":2,"pageSize":10,"totalPages":2}}}`))
		})
	})

	page, err := api.List(context.Background(), Filter{Status: StatusUnresolved, Project: ProjectTenant, Page: 2})
	require.NoError(t, err)

	assert.Equal(t, []string{"UNRESOLVED"}, query["status"])
	assert.Equal(t, []string{"TENANT"}, query["project"])
	assert.Equal(t, []string{"2"}, query["page"])
	assert.Equal(t, []string{"10"}, query["pageSize"])
	assert.NotContains(t, query, "environment")
	assert.NotContains(t, query, "createdAt")

	require.Len(t, page.List, 1)
	assert.Equal(t, int64(7), page.List[0].ID)
	assert.Equal(t, CategoryAPI, page.List[0].Category)
	assert.Equal(t, 2, page.Pagination.TotalPages)
}

func TestListAcceptsBareArray(t *testing.T) {
	api := newBackend(t, func(r chi.Router) {
		r.Get("/error/list", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"success":true,"data":[{"id":1,"category":"OTHER"},{"id":2,"category":"OTHER"}]}`))
		})
	})

	page, err := api.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, page.List, 2)
	assert.Equal(t, 2, page.Pagination.Total)
	assert.Equal(t, 1, page.Pagination.TotalPages)
}

func TestGetDecodesRequestDetails(t *testing.T) {
	api := newBackend(t, func(r chi.Router) {
		r.Get("/error/{id}", func(w http.ResponseWriter, req *http.Request) {
			assert.Equal(t, "42", chi.URLParam(req, "id"))
			_, _ = w.Write([]byte(`{"success":true,"data":{"id":42,"category":"API_ERROR","url":"/api/orders","method":"POST","statusCode":502,"payload":{"a":1}}}`))
		})
	})

	rec, err := api.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, rec.IsAPIError())
	assert.Equal(t, 502, rec.StatusCode)
	assert.JSONEq(t, `{"a":1}`, string(rec.Payload))
}

func TestUpdateStatus(t *testing.T) {
	var body map[string]string
	api := newBackend(t, func(r chi.Router) {
		r.Patch("/error/{id}/status", func(w http.ResponseWriter, req *http.Request) {
			_ = json.NewDecoder(req.Body).Decode(&body)
			_, _ = w.Write([]byte(`{"success":true,"data":null}`))
		})
	})

	require.NoError(t, api.UpdateStatus(context.Background(), 3, StatusResolved))
	assert.Equal(t, map[string]string{"status": "RESOLVED"}, body)
}

func TestUpdateStatusRejectsUnknown(t *testing.T) {
	api := newBackend(t, func(chi.Router) {})
	err := api.UpdateStatus(context.Background(), 3, Status("DONE"))
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdateStatusRejectedEnvelope(t *testing.T) {
	api := newBackend(t, func(r chi.Router) {
		r.Patch("/error/{id}/status", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"success":false,"message":"already resolved"}`))
		})
	})
	err := api.UpdateStatus(context.Background(), 3, StatusResolved)
	require.ErrorIs(t, err, apiclient.ErrRejected)
	assert.Equal(t, "already resolved", apiclient.UserMessage(err))
}

func TestCountAndLabels(t *testing.T) {
	c := Count([]Record{{Category: CategoryAPI}, {Category: CategoryOther}, {Category: CategoryFrontend}, {Category: CategoryAPI}}, 10)
	assert.Equal(t, Counters{Total: 10, API: 2, Frontend: 1, Other: 1}, c)

	assert.Equal(t, "In Progress", StatusInProgress.Label())
	assert.Equal(t, "API Error", CategoryAPI.Label())
	assert.Equal(t, "Tenant System", ProjectTenant.Label())
	assert.Equal(t, "Production", EnvProduction.Label())
}
