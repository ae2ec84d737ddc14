package rbac

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Direction says whether moved permissions are being granted or revoked.
type Direction int

const (
	// Grant moves permissions into the role.
	Grant Direction = iota
	// Revoke moves permissions out of the role.
	Revoke
)

// ParseDirection accepts "grant"/"right" and "revoke"/"left".
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "grant", "right":
		return Grant, true
	case "revoke", "left":
		return Revoke, true
	}
	return Grant, false
}

// Outcome of a permission toggle.
type Outcome int

const (
	// Confirmed means the backend accepted every change; the optimistic set stands.
	Confirmed Outcome = iota
	// RolledBack means at least one change failed; the pre-toggle set is restored.
	RolledBack
)

// ToggleResult carries the set of granted permission ids the view must show.
type ToggleResult struct {
	Outcome   Outcome
	Direction Direction
	Granted   []int64
	Err       error
}

// Message is the notification owed to the operator for the result.
func (r ToggleResult) Message() string {
	switch {
	case r.Outcome == Confirmed && r.Direction == Grant:
		return "Selected permissions granted"
	case r.Outcome == Confirmed:
		return "Selected permissions revoked"
	case r.Direction == Grant:
		return "Failed to grant permissions, please retry"
	default:
		return "Failed to revoke permissions, please retry"
	}
}

// PermissionToggler is the subset of API used by TogglePermissions.
type PermissionToggler interface {
	AssignRolePermission(ctx context.Context, roleID, permissionID int64) error
	RemoveRolePermission(ctx context.Context, roleID, permissionID int64) error
}

const maxToggleConcurrency = 8

// TogglePermissions applies an optimistic change of a role's permissions.
// target is the granted set after the change has been applied locally, moved
// the ids that changed. Every moved id is sent to the backend concurrently;
// any failure rolls the result back to the set before the change.
func TogglePermissions(ctx context.Context, api PermissionToggler, roleID int64, dir Direction, moved, target []int64) ToggleResult {
	result := ToggleResult{Outcome: Confirmed, Direction: dir, Granted: sortedIDs(target)}
	if len(moved) == 0 {
		return result
	}

	var g errgroup.Group
	g.SetLimit(maxToggleConcurrency)
	for _, id := range moved {
		g.Go(func() error {
			if dir == Grant {
				return api.AssignRolePermission(ctx, roleID, id)
			}
			return api.RemoveRolePermission(ctx, roleID, id)
		})
	}
	if err := g.Wait(); err != nil {
		result.Outcome = RolledBack
		result.Err = err
		result.Granted = rollback(dir, moved, target)
	}
	return result
}

// Apply returns the granted set after moving ids in direction dir. It is the
// optimistic target a form submits when the browser did not compute one.
func Apply(dir Direction, granted, moved []int64) []int64 {
	if dir == Grant {
		return rollback(Revoke, moved, granted)
	}
	return rollback(Grant, moved, granted)
}

func rollback(dir Direction, moved, target []int64) []int64 {
	movedSet := make(map[int64]struct{}, len(moved))
	for _, id := range moved {
		movedSet[id] = struct{}{}
	}
	out := make([]int64, 0, len(target)+len(moved))
	for _, id := range target {
		if _, ok := movedSet[id]; ok && dir == Grant {
			continue
		}
		out = append(out, id)
	}
	if dir == Revoke {
		present := make(map[int64]struct{}, len(out))
		for _, id := range out {
			present[id] = struct{}{}
		}
		for _, id := range moved {
			if _, ok := present[id]; !ok {
				out = append(out, id)
				present[id] = struct{}{}
			}
		}
	}
	return sortedIDs(out)
}

func sortedIDs(ids []int64) []int64 {
	out := append([]int64{}, ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
