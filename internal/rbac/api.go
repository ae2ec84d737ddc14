package rbac

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sentry-admin/console/internal/apiclient"
	"github.com/sentry-admin/console/internal/shared"
)

// API maps role, permission and user-role calls onto the backend.
type API struct {
	client *apiclient.Client
}

// NewAPI constructs an API.
func NewAPI(client *apiclient.Client) *API {
	return &API{client: client}
}

// ListRoles pages the role catalogue. The backend answers in one of several
// shapes; all of them are normalised into a single pagination envelope.
func (a *API) ListRoles(ctx context.Context, params ListParams) (apiclient.Page[Role], error) {
	page, pageSize := defaultPaging(params.Page, params.PageSize)
	query := apiclient.NewQuery().Int("page", page).Int("pageSize", pageSize).Str("q", params.Query).Values()
	var raw json.RawMessage
	if err := a.client.Get(ctx, "/roles", query, &raw); err != nil {
		return apiclient.Page[Role]{}, err
	}
	listing, err := decodeRoleListing(raw)
	if err != nil {
		return apiclient.Page[Role]{}, err
	}
	return normalizeRoles(listing, page, pageSize)
}

// CreateRole adds a role.
func (a *API) CreateRole(ctx context.Context, in RoleInput) (Role, error) {
	var out Role
	err := a.client.Post(ctx, "/roles", in, &out)
	return out, err
}

// UpdateRole patches a role.
func (a *API) UpdateRole(ctx context.Context, id int64, in RoleInput) (Role, error) {
	var out Role
	err := a.client.Patch(ctx, fmt.Sprintf("/roles/%d", id), in, &out)
	return out, err
}

// DeleteRole removes a role.
func (a *API) DeleteRole(ctx context.Context, id int64) error {
	return a.client.Delete(ctx, fmt.Sprintf("/roles/%d", id), nil)
}

// ListPermissions returns the flat permission list, the source of the tree.
func (a *API) ListPermissions(ctx context.Context) ([]Permission, error) {
	var out []Permission
	if err := a.client.Get(ctx, "/permissions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreatePermission adds a permission.
func (a *API) CreatePermission(ctx context.Context, in PermissionInput) (Permission, error) {
	var out Permission
	err := a.client.Post(ctx, "/permissions", in, &out)
	return out, err
}

// UpdatePermission patches a permission.
func (a *API) UpdatePermission(ctx context.Context, id int64, in PermissionInput) (Permission, error) {
	var out Permission
	err := a.client.Patch(ctx, fmt.Sprintf("/permissions/%d", id), in, &out)
	return out, err
}

// DeletePermission removes a permission.
func (a *API) DeletePermission(ctx context.Context, id int64) error {
	return a.client.Delete(ctx, fmt.Sprintf("/permissions/%d", id), nil)
}

// ListUsers pages console users, optionally filtered by username.
func (a *API) ListUsers(ctx context.Context, params UserListParams) (apiclient.Page[UserSummary], error) {
	page, pageSize := defaultPaging(params.Page, params.PageSize)
	query := apiclient.NewQuery().Int("page", page).Int("pageSize", pageSize).Str("username", params.Username).Values()
	var out apiclient.Page[UserSummary]
	if err := a.client.Get(ctx, "/auth/users", query, &out); err != nil {
		return apiclient.Page[UserSummary]{}, err
	}
	return out, nil
}

// AssignUserRole grants a single role to a user.
func (a *API) AssignUserRole(ctx context.Context, userID, roleID int64) error {
	return a.client.Post(ctx, fmt.Sprintf("/roles/assign/%d/%d", userID, roleID), nil, nil)
}

// RemoveUserRole revokes a single role from a user.
func (a *API) RemoveUserRole(ctx context.Context, userID, roleID int64) error {
	return a.client.Post(ctx, fmt.Sprintf("/roles/remove/%d/%d", userID, roleID), nil, nil)
}

// UserRoles returns the names of the roles a user holds.
func (a *API) UserRoles(ctx context.Context, userID int64) ([]string, error) {
	var out []string
	if err := a.client.Get(ctx, fmt.Sprintf("/auth/users/roles/%d", userID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UserRolesAll returns every role annotated with whether the user holds it.
func (a *API) UserRolesAll(ctx context.Context, userID int64) ([]AssignableRole, error) {
	var out []AssignableRole
	if err := a.client.Get(ctx, fmt.Sprintf("/auth/users/%d/roles/all", userID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetUserRoles replaces the user's roles with roleIDs.
func (a *API) SetUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	body := struct {
		RoleIDs []int64 `json:"roleIds"`
	}{RoleIDs: nonNil(roleIDs)}
	return a.client.Post(ctx, fmt.Sprintf("/auth/users/%d/roles/batch", userID), body, nil)
}

// AssignRolePermission grants one permission to a role.
func (a *API) AssignRolePermission(ctx context.Context, roleID, permissionID int64) error {
	return a.client.Post(ctx, fmt.Sprintf("/roles/permissions/assign/%d/%d", roleID, permissionID), nil, nil)
}

// RemoveRolePermission revokes one permission from a role.
func (a *API) RemoveRolePermission(ctx context.Context, roleID, permissionID int64) error {
	return a.client.Post(ctx, fmt.Sprintf("/roles/permissions/remove/%d/%d", roleID, permissionID), nil, nil)
}

// RolePermissions returns the permissions granted to a role.
func (a *API) RolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	var out []Permission
	if err := a.client.Get(ctx, fmt.Sprintf("/roles/%d/permissions", roleID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RolePermissionsAll returns every permission annotated with whether the role grants it.
func (a *API) RolePermissionsAll(ctx context.Context, roleID int64) ([]AssignablePermission, error) {
	var out []AssignablePermission
	if err := a.client.Get(ctx, fmt.Sprintf("/roles/%d/permissions/all", roleID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetRolePermissions replaces the role's permissions with permissionIDs.
func (a *API) SetRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	body := struct {
		PermissionIDs []int64 `json:"permissionIds"`
	}{PermissionIDs: nonNil(permissionIDs)}
	return a.client.Post(ctx, fmt.Sprintf("/roles/%d/permissions/batch", roleID), body, nil)
}

func defaultPaging(page, pageSize int) (int, int) {
	if page <= 0 {
		page = shared.DefaultPage
	}
	if pageSize <= 0 {
		pageSize = shared.DefaultPageSize
	}
	return page, pageSize
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
