package view

import (
	"strings"

	"github.com/sentry-admin/console/internal/rbac"
	"github.com/sentry-admin/console/internal/shared"
)

// Viewer is the signed-in operator as shown in the page chrome.
type Viewer struct {
	ID        int64
	Username  string
	Email     string
	AvatarURL string
}

// NavItem is one entry of the top menu.
type NavItem struct {
	Label  string
	Path   string
	Active bool
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flashes     []shared.FlashMessage
	CurrentPath string
	Viewer      *Viewer
	Permissions []string
	Data        any
}

// Can reports whether the viewer holds at least one of codes.
func (d TemplateData) Can(codes ...string) bool {
	if len(codes) == 0 {
		return false
	}
	for _, granted := range d.Permissions {
		for _, c := range codes {
			if granted == c {
				return true
			}
		}
	}
	return false
}

type navEntry struct {
	label  string
	path   string
	prefix []string
	gate   []string
}

var navigation = []navEntry{
	{label: "Home", path: "/home"},
	{label: "Dashboard", path: "/dashboard", prefix: []string{"/error/"}},
	{label: "Bug Reports", path: "/bug-reports", prefix: []string{"/bug-reports/"}},
	{label: "Roles", path: "/rbac/roles", gate: rbac.RolesGate},
	{label: "Permissions", path: "/rbac/permissions", gate: rbac.PermissionsGate},
	{label: "Users", path: "/rbac/user-roles", gate: rbac.UserRolesGate},
	{label: "Assign Permissions", path: "/rbac/assign-permissions", gate: rbac.AssignGate},
}

// NavItems returns the menu entries visible to the viewer.
func (d TemplateData) NavItems() []NavItem {
	if d.Viewer == nil {
		return nil
	}
	items := make([]NavItem, 0, len(navigation))
	for _, n := range navigation {
		if len(n.gate) > 0 && !d.Can(n.gate...) {
			continue
		}
		active := d.CurrentPath == n.path
		for _, p := range n.prefix {
			if strings.HasPrefix(d.CurrentPath, p) {
				active = true
			}
		}
		items = append(items, NavItem{Label: n.label, Path: n.path, Active: active})
	}
	return items
}
