// Package bugreporthttp serves the bug-report pages and the image upload endpoint.
package bugreporthttp

import (
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sentry-admin/console/internal/apiclient"
	"github.com/sentry-admin/console/internal/audit"
	"github.com/sentry-admin/console/internal/auth"
	"github.com/sentry-admin/console/internal/bugreport"
	"github.com/sentry-admin/console/internal/platform/httpx"
	"github.com/sentry-admin/console/internal/shared"
	"github.com/sentry-admin/console/internal/view"
)

// ListPath is the bug-report list page.
const ListPath = "/bug-reports"

const (
	maxUploadBytes = 5 << 20
	imageField     = "image"
)

// MaxRequestBytes caps a whole bug-report body: one image plus the form
// fields around it.
const MaxRequestBytes = maxUploadBytes + 1<<20

var (
	// ErrNotImage rejects uploads whose content is not an image.
	ErrNotImage = errors.New("upload is not an image")
	// ErrImageTooLarge rejects images above 5 MB.
	ErrImageTooLarge = fmt.Errorf("%w: images must be 5 MB or smaller", httpx.ErrTooLarge)
)

// Handler exposes bug-report pages.
type Handler struct {
	logger    *slog.Logger
	api       *bugreport.API
	renderer  *view.Renderer
	audit     *audit.Trail
	validator *validator.Validate
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, api *bugreport.API, renderer *view.Renderer, trail *audit.Trail) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, api: api, renderer: renderer, audit: trail, validator: validator.New()}
}

// MountRoutes registers bug-report routes. Any signed-in operator may use them.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(auth.RequireSession)
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Post("/upload", h.upload)
	r.Get("/{id}", h.detail)
	r.Post("/{id}", h.update)
	r.Post("/{id}/assign", h.assign)
	r.Post("/{id}/delete", h.delete)
}

type createForm struct {
	Title       string
	Description string
	Priority    string
	AssigneeID  string
}

type listPageData struct {
	Reports    []bugreport.Report
	Pager      view.Pager
	Status     bugreport.Status
	Priority   bugreport.Priority
	Statuses   []bugreport.Status
	Priorities []bugreport.Priority
	Form       createForm
	Errors     view.FormErrors
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	h.renderList(w, r, createForm{Priority: string(bugreport.PriorityMedium)}, nil, http.StatusOK)
}

func (h *Handler) renderList(w http.ResponseWriter, r *http.Request, form createForm, errs view.FormErrors, status int) {
	page, limit := shared.PageParams(r)
	q := r.URL.Query()
	params := bugreport.ListParams{
		Page:     page,
		Limit:    limit,
		Status:   bugreport.Status(strings.TrimSpace(q.Get("status"))),
		Priority: bugreport.Priority(strings.TrimSpace(q.Get("priority"))),
	}
	if errs == nil {
		errs = view.FormErrors{}
	}
	result, err := h.api.List(r.Context(), params)
	if err != nil {
		if auth.SessionEnded(err) {
			auth.RedirectToLogin(w, r)
			return
		}
		errs["general"] = apiclient.UserMessage(err)
		result.Pagination = shared.NewPagination(page, limit, 0)
	}
	data := listPageData{
		Reports:    result.List,
		Pager:      view.NewPager(result.Pagination, r),
		Status:     params.Status,
		Priority:   params.Priority,
		Statuses:   bugreport.Statuses,
		Priorities: bugreport.Priorities,
		Form:       form,
		Errors:     errs,
	}
	h.renderer.Render(w, r, "pages/bug_reports.html", "Bug Reports", data, status)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		if tooLarge(err) {
			form := createForm{Priority: string(bugreport.PriorityMedium)}
			h.renderList(w, r, form, view.FormErrors{"Image": uploadMessage(err)}, http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := createForm{
		Title:       strings.TrimSpace(r.PostFormValue("title")),
		Description: strings.TrimSpace(r.PostFormValue("description")),
		Priority:    strings.TrimSpace(r.PostFormValue("priority")),
		AssigneeID:  strings.TrimSpace(r.PostFormValue("assigneeId")),
	}
	in := bugreport.CreateInput{
		Title:       form.Title,
		Description: form.Description,
		Priority:    bugreport.Priority(form.Priority),
		AssigneeID:  optionalID(form.AssigneeID),
	}
	if err := h.validator.Struct(in); err != nil {
		h.renderList(w, r, form, view.FieldErrors(err), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	description, err := h.attachImage(r, in.Description)
	if err != nil {
		if auth.SessionEnded(err) {
			auth.RedirectToLogin(w, r)
			return
		}
		status := http.StatusBadRequest
		if tooLarge(err) {
			status = http.StatusRequestEntityTooLarge
		}
		h.renderList(w, r, form, view.FormErrors{"Image": uploadMessage(err)}, status)
		return
	}
	in.Description = description

	report, err := h.api.Create(ctx, in)
	switch {
	case err == nil:
		h.audit.Log(ctx, "bug.create", "bug_report", report.ID, map[string]any{"title": in.Title})
		shared.Flash(ctx, shared.FlashSuccess, "Bug report created")
		http.Redirect(w, r, ListPath+"/"+report.ID, http.StatusSeeOther)
	case auth.SessionEnded(err):
		auth.RedirectToLogin(w, r)
	case apiclient.KindOf(err) == apiclient.KindRejected:
		h.renderList(w, r, form, view.FormErrors{"general": apiclient.UserMessage(err)}, http.StatusBadRequest)
	default:
		h.renderList(w, r, form, nil, http.StatusBadGateway)
	}
}

type detailPageData struct {
	Report     bugreport.Report
	Statuses   []bugreport.Status
	Priorities []bugreport.Priority
	Errors     view.FormErrors
}

func (h *Handler) detail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	report, err := h.api.Get(r.Context(), id)
	if err != nil {
		if auth.SessionEnded(err) {
			auth.RedirectToLogin(w, r)
			return
		}
		if !errors.Is(err, apiclient.ErrNotFound) {
			h.logger.Warn("load bug report", slog.String("id", id), slog.Any("error", err))
		}
		http.Redirect(w, r, ListPath, http.StatusSeeOther)
		return
	}
	data := detailPageData{Report: report, Statuses: bugreport.Statuses, Priorities: bugreport.Priorities}
	h.renderer.Render(w, r, "pages/bug_report_detail.html", report.Title, data, http.StatusOK)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := parseForm(w, r); err != nil {
		if tooLarge(err) {
			shared.Flash(r.Context(), shared.FlashError, uploadMessage(err))
			http.Redirect(w, r, ListPath+"/"+id, http.StatusSeeOther)
			return
		}
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	in := bugreport.UpdateInput{
		Title:       optionalString(r, "title"),
		Description: optionalString(r, "description"),
		AssigneeID:  optionalID(strings.TrimSpace(r.PostFormValue("assigneeId"))),
	}
	if v := optionalString(r, "priority"); v != nil {
		p := bugreport.Priority(*v)
		in.Priority = &p
	}
	if v := optionalString(r, "status"); v != nil {
		s := bugreport.Status(*v)
		in.Status = &s
	}
	ctx := r.Context()
	target := ListPath + "/" + id
	if err := h.validator.Struct(in); err != nil {
		for field, msg := range view.FieldErrors(err) {
			shared.Flash(ctx, shared.FlashError, field+": "+msg)
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	if in.Description != nil {
		description, err := h.attachImage(r, *in.Description)
		if err != nil {
			if auth.SessionEnded(err) {
				auth.RedirectToLogin(w, r)
				return
			}
			shared.Flash(ctx, shared.FlashError, uploadMessage(err))
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
		in.Description = &description
	}
	_, err := h.api.Update(ctx, id, in)
	if err == nil {
		h.audit.Log(ctx, "bug.update", "bug_report", id, nil)
	}
	h.afterMutation(w, r, err, "Bug report updated", target)
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()
	target := ListPath + "/" + id
	assignee := optionalID(strings.TrimSpace(r.PostFormValue("assigneeId")))
	if assignee == nil {
		shared.Flash(ctx, shared.FlashError, "Enter the id of the user to assign")
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	err := h.api.Assign(ctx, id, *assignee)
	if err == nil {
		h.audit.Log(ctx, "bug.assign", "bug_report", id, map[string]any{"assigneeId": *assignee})
	}
	h.afterMutation(w, r, err, "Bug report assigned", target)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.api.Delete(r.Context(), id)
	if err == nil {
		h.audit.Log(r.Context(), "bug.delete", "bug_report", id, nil)
		shared.Flash(r.Context(), shared.FlashSuccess, "Bug report deleted")
		http.Redirect(w, r, ListPath, http.StatusSeeOther)
		return
	}
	h.afterMutation(w, r, err, "", ListPath+"/"+id)
}

// upload stores one image and answers with its URL as JSON.
func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		if tooLarge(err) {
			httpx.RespondError(w, err)
			return
		}
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, "expected a multipart form"))
		return
	}
	file, header, err := r.FormFile(bugreport.UploadField)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, "missing file"))
		return
	}
	defer func() {
		_ = file.Close()
	}()
	url, err := h.store(r, file, header)
	if err != nil {
		if errors.Is(err, ErrNotImage) {
			httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"url": url})
}

// attachImage uploads the optional image of a form and appends it to
// description.
func (h *Handler) attachImage(r *http.Request, description string) (string, error) {
	if r.MultipartForm == nil {
		return description, nil
	}
	file, header, err := r.FormFile(imageField)
	if errors.Is(err, http.ErrMissingFile) {
		return description, nil
	}
	if err != nil {
		return "", err
	}
	defer func() {
		_ = file.Close()
	}()
	url, err := h.store(r, file, header)
	if err != nil {
		return "", err
	}
	return description + fmt.Sprintf(`<p><img src="%s" alt="%s"></p>`, html.EscapeString(url), html.EscapeString(header.Filename)), nil
}

func (h *Handler) store(r *http.Request, file multipart.File, header *multipart.FileHeader) (string, error) {
	if header.Size > maxUploadBytes {
		return "", ErrImageTooLarge
	}
	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", ErrNotImage
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	url, err := h.api.UploadImage(r.Context(), header.Filename, file)
	if err != nil {
		return "", err
	}
	h.logger.Debug("image uploaded", slog.String("filename", header.Filename), slog.String("mime", mtype.String()), slog.Int64("size", header.Size))
	return url, nil
}

func (h *Handler) afterMutation(w http.ResponseWriter, r *http.Request, err error, success, target string) {
	ctx := r.Context()
	switch {
	case err == nil:
		shared.Flash(ctx, shared.FlashSuccess, success)
	case auth.SessionEnded(err):
		auth.RedirectToLogin(w, r)
		return
	case apiclient.KindOf(err) == apiclient.KindRejected:
		shared.Flash(ctx, shared.FlashError, apiclient.UserMessage(err))
	case errors.Is(err, bugreport.ErrEmptyID):
		http.NotFound(w, r)
		return
	default:
		h.logger.Warn("bug report mutation failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func uploadMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotImage):
		return "Only image files can be attached"
	case tooLarge(err):
		return "Images must be 5 MB or smaller"
	}
	return apiclient.UserMessage(err)
}

func tooLarge(err error) bool {
	var maxBytes *http.MaxBytesError
	return errors.Is(err, httpx.ErrTooLarge) || errors.As(err, &maxBytes)
}

// parseForm accepts both urlencoded and multipart bodies. The body is capped
// before anything reads it; a form parsed earlier in the chain is reused.
func parseForm(w http.ResponseWriter, r *http.Request) error {
	if r.Form == nil {
		r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBytes)
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(maxUploadBytes)
	}
	return r.ParseForm()
}

func optionalString(r *http.Request, field string) *string {
	if _, ok := r.PostForm[field]; !ok {
		return nil
	}
	v := strings.TrimSpace(r.PostForm.Get(field))
	if v == "" {
		return nil
	}
	return &v
}

func optionalID(raw string) *int64 {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}
