package view

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/sentry-admin/console/internal/shared"
)

// FormErrors maps a form field to its message; "general" holds errors not
// tied to a field.
type FormErrors map[string]string

// FieldErrors converts validator failures into FormErrors.
func FieldErrors(err error) FormErrors {
	out := FormErrors{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		if err != nil {
			out["general"] = err.Error()
		}
		return out
	}
	for _, fe := range verrs {
		out[fe.Field()] = fieldMessage(fe)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}

// Pager renders pagination links that keep the current query string.
type Pager struct {
	shared.Pagination
	base url.Values
	path string
}

// NewPager builds a Pager for the request's path and query.
func NewPager(p shared.Pagination, r *http.Request) Pager {
	return Pager{Pagination: p, base: r.URL.Query(), path: r.URL.Path}
}

// Link returns the URL of page.
func (p Pager) Link(page int) string {
	q := url.Values{}
	for k, v := range p.base {
		q[k] = append([]string(nil), v...)
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(p.PageSize))
	return p.path + "?" + q.Encode()
}
