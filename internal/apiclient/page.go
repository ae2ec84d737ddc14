package apiclient

import "github.com/sentry-admin/console/internal/shared"

// Page is the pagination envelope carried in the data field of list endpoints.
type Page[T any] struct {
	List       []T               `json:"list"`
	Pagination shared.Pagination `json:"pagination"`
}
