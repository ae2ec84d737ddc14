package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parent(id int64) *int64 { return &id }

func TestBuildPermissionTree(t *testing.T) {
	perms := []Permission{
		{ID: 1, Name: "Errors", Code: "error"},
		{ID: 2, Name: "Read errors", Code: "error:read", ParentID: parent(1)},
		{ID: 3, Name: "RBAC"},
		{ID: 4, Name: "Resolve errors", Code: "error:resolve", ParentID: parent(1)},
		{ID: 5, Name: "Roles", ParentID: parent(3)},
		{ID: 6, Name: "Read roles", Code: "rbac:role:read", ParentID: parent(5)},
		{ID: 7, Name: "Orphan", ParentID: parent(99)},
	}

	tree := BuildPermissionTree(perms)

	require.Len(t, tree, 2)
	assert.Equal(t, "Errors (error)", tree[0].Title())
	require.Len(t, tree[0].Children, 2)
	assert.Equal(t, "error:read", tree[0].Children[0].Key())
	assert.Equal(t, "error:resolve", tree[0].Children[1].Key())

	assert.Equal(t, "3", tree[1].Key())
	assert.Equal(t, "RBAC", tree[1].Title())
	require.Len(t, tree[1].Children, 1)
	require.Len(t, tree[1].Children[0].Children, 1)
	assert.Equal(t, "rbac:role:read", tree[1].Children[0].Children[0].Key())
}

func TestBuildPermissionTreeIgnoresCycles(t *testing.T) {
	perms := []Permission{
		{ID: 1, Name: "a", ParentID: parent(2)},
		{ID: 2, Name: "b", ParentID: parent(1)},
		{ID: 3, Name: "self", ParentID: parent(3)},
	}
	assert.Empty(t, BuildPermissionTree(perms))
}

func TestBuildPermissionTreeEmpty(t *testing.T) {
	assert.Empty(t, BuildPermissionTree(nil))
}
