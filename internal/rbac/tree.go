package rbac

import "strconv"

// PermissionNode is one permission with its children, in the order received.
type PermissionNode struct {
	Permission
	Children []PermissionNode
}

// Key identifies the node: its code when present, otherwise its id.
func (n PermissionNode) Key() string {
	if n.Code != "" {
		return n.Code
	}
	return strconv.FormatInt(n.ID, 10)
}

// Title renders "name (code)", or just the name when there is no code.
func (n PermissionNode) Title() string {
	if n.Code != "" {
		return n.Name + " (" + n.Code + ")"
	}
	return n.Name
}

// BuildPermissionTree arranges perms into a forest. Permissions without a
// parent are roots; permissions whose parent is absent from perms are not
// reachable and therefore dropped.
func BuildPermissionTree(perms []Permission) []PermissionNode {
	byParent := make(map[int64][]Permission)
	var roots []Permission
	for _, p := range perms {
		if p.ParentID == nil {
			roots = append(roots, p)
			continue
		}
		byParent[*p.ParentID] = append(byParent[*p.ParentID], p)
	}
	var build func(level []Permission) []PermissionNode
	build = func(level []Permission) []PermissionNode {
		if len(level) == 0 {
			return nil
		}
		nodes := make([]PermissionNode, 0, len(level))
		for _, p := range level {
			children := byParent[p.ID]
			// A node is expanded once; a repeated id would otherwise loop.
			delete(byParent, p.ID)
			nodes = append(nodes, PermissionNode{Permission: p, Children: build(children)})
		}
		return nodes
	}
	return build(roots)
}
