package bugreport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentry-admin/console/internal/apiclient"
)

const reportJSON = `{"id":"b-1","title":"Login fails","description":"<p>steps</p>","priority":"HIGH","status":"OPEN","reporterId":3,"createdAt":"2026-01-07T09:24:19Z","updatedAt":"2026-01-07T09:24:19Z"}`

func newBackend(t *testing.T, mount func(r chi.Router)) *API {
	t.Helper()
	r := chi.NewRouter()
	mount(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return NewAPI(apiclient.New(apiclient.Options{BaseURL: srv.URL}))
}

func ok(w http.ResponseWriter, data string) {
	_, _ = w.Write([]byte(`{"success":true,"data":` + data + `}`))
}

func TestListFilters(t *testing.T) {
	var query map[string][]string
	api := newBackend(t, func(r chi.Router) {
		r.Get("/bug-reports", func(w http.ResponseWriter, req *http.Request) {
			query = req.URL.Query()
			ok(w, `{"list":[`+reportJSON+`],"pagination":{"total":1,"page":1,"pageSize":10,"totalPages":1}}`)
		})
	})

	page, err := api.List(context.Background(), ListParams{Status: StatusOpen, Priority: PriorityHigh})
	require.NoError(t, err)
	assert.Equal(t, []string{"OPEN"}, query["status"])
	assert.Equal(t, []string{"HIGH"}, query["priority"])
	assert.Equal(t, []string{"10"}, query["limit"])
	assert.NotContains(t, query, "assigneeId")
	require.Len(t, page.List, 1)
	assert.Equal(t, "Login fails", page.List[0].Title)
	assert.Nil(t, page.List[0].AssigneeID)
}

func TestCRUDPaths(t *testing.T) {
	var seen []string
	api := newBackend(t, func(r chi.Router) {
		r.HandleFunc("/*", func(w http.ResponseWriter, req *http.Request) {
			seen = append(seen, req.Method+" "+req.URL.Path)
			if req.Method == http.MethodDelete || strings.HasSuffix(req.URL.Path, "/assign") {
				ok(w, "null")
				return
			}
			ok(w, reportJSON)
		})
	})
	ctx := context.Background()

	_, err := api.Get(ctx, "b-1")
	require.NoError(t, err)
	_, err = api.Create(ctx, CreateInput{Title: "t", Description: "d"})
	require.NoError(t, err)
	status := StatusResolved
	_, err = api.Update(ctx, "b-1", UpdateInput{Status: &status})
	require.NoError(t, err)
	require.NoError(t, api.Assign(ctx, "b-1", 9))
	require.NoError(t, api.Delete(ctx, "b-1"))

	assert.Equal(t, []string{
		"GET /bug-reports/b-1",
		"POST /bug-reports",
		"PATCH /bug-reports/b-1",
		"POST /bug-reports/b-1/assign",
		"DELETE /bug-reports/b-1",
	}, seen)
}

func TestUpdateSendsOnlySetFields(t *testing.T) {
	var body map[string]any
	api := newBackend(t, func(r chi.Router) {
		r.Patch("/bug-reports/{id}", func(w http.ResponseWriter, req *http.Request) {
			_ = json.NewDecoder(req.Body).Decode(&body)
			ok(w, reportJSON)
		})
	})
	priority := PriorityCritical
	_, err := api.Update(context.Background(), "b-1", UpdateInput{Priority: &priority})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"priority": "CRITICAL"}, body)
}

func TestEmptyIDNeverReachesBackend(t *testing.T) {
	api := newBackend(t, func(chi.Router) {})
	_, err := api.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyID)
	assert.ErrorIs(t, api.Delete(context.Background(), ""), ErrEmptyID)
}

func TestUploadImage(t *testing.T) {
	api := newBackend(t, func(r chi.Router) {
		r.Post("/upload/image", func(w http.ResponseWriter, req *http.Request) {
			file, header, err := req.FormFile(UploadField)
			if !assert.NoError(t, err) {
				return
			}
			defer file.Close()
			data, _ := io.ReadAll(file)
			assert.Equal(t, "shot.png", header.Filename)
			assert.Equal(t, "png-bytes", string(data))
			ok(w, `"https://cdn.example.com/shot.png"`)
		})
	})

	u, err := api.UploadImage(context.Background(), "shot.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/shot.png", u)
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Critical", PriorityCritical.Label())
	assert.Equal(t, "In Progress", StatusInProgress.Label())
}
