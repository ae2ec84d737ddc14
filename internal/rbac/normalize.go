package rbac

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sentry-admin/console/internal/apiclient"
	"github.com/sentry-admin/console/internal/shared"
)

// ErrUnknownRoleListing is returned for a role-list payload matching none of
// the shapes the backend is known to produce.
var ErrUnknownRoleListing = errors.New("rbac: unrecognised role list payload")

// roleListing is one of paginatedRoles, itemRoles or bareRoles.
type roleListing interface {
	isRoleListing()
}

// paginatedRoles is {list: [...], pagination: {...}}, possibly with gaps.
type paginatedRoles struct {
	list       []Role
	pagination partialPagination
}

// itemRoles is {items: [...], total?: n}.
type itemRoles struct {
	items []Role
	total *int
}

// bareRoles is a plain JSON array.
type bareRoles struct {
	list []Role
}

func (paginatedRoles) isRoleListing() {}
func (itemRoles) isRoleListing()      {}
func (bareRoles) isRoleListing()      {}

type partialPagination struct {
	Total      *int `json:"total"`
	Page       *int `json:"page"`
	PageSize   *int `json:"pageSize"`
	TotalPages *int `json:"totalPages"`
}

func decodeRoleListing(raw json.RawMessage) (roleListing, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return bareRoles{}, nil
	}
	switch trimmed[0] {
	case '[':
		var list []Role
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnknownRoleListing, err)
		}
		return bareRoles{list: list}, nil
	case '{':
		var shape struct {
			List       json.RawMessage `json:"list"`
			Pagination json.RawMessage `json:"pagination"`
			Items      json.RawMessage `json:"items"`
			Total      *int            `json:"total"`
		}
		if err := json.Unmarshal(trimmed, &shape); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnknownRoleListing, err)
		}
		if isJSONKind(shape.List, '[') && isJSONKind(shape.Pagination, '{') {
			out := paginatedRoles{}
			if err := json.Unmarshal(shape.List, &out.list); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrUnknownRoleListing, err)
			}
			if err := json.Unmarshal(shape.Pagination, &out.pagination); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrUnknownRoleListing, err)
			}
			return out, nil
		}
		if isJSONKind(shape.Items, '[') {
			out := itemRoles{total: shape.Total}
			if err := json.Unmarshal(shape.Items, &out.items); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrUnknownRoleListing, err)
			}
			return out, nil
		}
	}
	return nil, ErrUnknownRoleListing
}

// normalizeRoles turns any listing into the canonical envelope for the
// requested page.
func normalizeRoles(listing roleListing, page, pageSize int) (apiclient.Page[Role], error) {
	switch l := listing.(type) {
	case paginatedRoles:
		p := shared.Pagination{
			Page:     intOr(l.pagination.Page, page),
			PageSize: intOr(l.pagination.PageSize, pageSize),
			Total:    intOr(l.pagination.Total, len(l.list)),
		}
		p.TotalPages = intOr(l.pagination.TotalPages, shared.TotalPages(p.Total, p.PageSize))
		return apiclient.Page[Role]{List: nonNilRoles(l.list), Pagination: p}, nil
	case itemRoles:
		total := intOr(l.total, len(l.items))
		return apiclient.Page[Role]{
			List:       slicePage(l.items, page, pageSize),
			Pagination: shared.NewPagination(page, pageSize, total),
		}, nil
	case bareRoles:
		return apiclient.Page[Role]{
			List:       slicePage(l.list, page, pageSize),
			Pagination: shared.NewPagination(page, pageSize, len(l.list)),
		}, nil
	default:
		return apiclient.Page[Role]{}, fmt.Errorf("%w: %T", ErrUnknownRoleListing, listing)
	}
}

// slicePage returns roles[(page-1)*pageSize : page*pageSize] clamped to bounds.
func slicePage(roles []Role, page, pageSize int) []Role {
	start := (page - 1) * pageSize
	if start < 0 {
		start = 0
	}
	if start > len(roles) {
		start = len(roles)
	}
	end := start + pageSize
	if end > len(roles) {
		end = len(roles)
	}
	return nonNilRoles(roles[start:end])
}

func nonNilRoles(roles []Role) []Role {
	if roles == nil {
		return []Role{}
	}
	return roles
}

func intOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

func isJSONKind(raw json.RawMessage, open byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == open
}
