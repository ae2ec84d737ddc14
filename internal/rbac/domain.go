package rbac

import "time"

// Role represents a named permission grouping.
type Role struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Permission represents an atomic capability. Permissions form a forest
// over ParentID.
type Permission struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Code        string `json:"code,omitempty"`
	ParentID    *int64 `json:"parentId,omitempty"`
}

// UserSummary is one row of the user administration list.
type UserSummary struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	Roles     []string   `json:"roles,omitempty"`
	Disabled  bool       `json:"disabled"`
}

// AssignableRole is a role annotated with whether a user holds it.
type AssignableRole struct {
	Role
	Assigned bool `json:"assigned"`
}

// AssignablePermission is a permission annotated with whether a role grants it.
type AssignablePermission struct {
	Permission
	Assigned bool `json:"assigned"`
}

// RoleInput is the body of role create and update calls.
type RoleInput struct {
	Name        string `json:"name" validate:"required,max=64"`
	Description string `json:"description,omitempty" validate:"max=255"`
}

// PermissionInput is the body of permission create and update calls.
type PermissionInput struct {
	Name        string `json:"name" validate:"required,max=64"`
	Description string `json:"description,omitempty" validate:"max=255"`
	Code        string `json:"code,omitempty" validate:"max=128"`
	ParentID    *int64 `json:"parentId,omitempty"`
}

// ListParams pages a role listing.
type ListParams struct {
	Page     int
	PageSize int
	Query    string
}

// UserListParams pages and filters the user listing.
type UserListParams struct {
	Page     int
	PageSize int
	Username string
}
