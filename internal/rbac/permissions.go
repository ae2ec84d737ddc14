package rbac

import (
	"encoding/json"

	"github.com/sentry-admin/console/internal/shared"
)

// PermissionStore answers permission questions from the identity persisted in
// storage. Every call re-reads storage; nothing is cached.
type PermissionStore struct {
	store shared.Storage
}

// NewPermissionStore constructs a PermissionStore over store.
func NewPermissionStore(store shared.Storage) PermissionStore {
	return PermissionStore{store: store}
}

// UserPermissions returns the persisted permission codes, empty when the
// identity is missing or malformed.
func (p PermissionStore) UserPermissions() []string {
	if p.store == nil {
		return []string{}
	}
	raw := p.store.Get(shared.IdentityKey)
	if raw == "" {
		return []string{}
	}
	var blob struct {
		Permissions json.RawMessage `json:"permissions"`
	}
	if err := json.Unmarshal([]byte(raw), &blob); err != nil || len(blob.Permissions) == 0 {
		return []string{}
	}
	var codes []string
	if err := json.Unmarshal(blob.Permissions, &codes); err != nil || codes == nil {
		return []string{}
	}
	return codes
}

// Has reports whether code is granted.
func (p PermissionStore) Has(code string) bool {
	for _, granted := range p.UserPermissions() {
		if granted == code {
			return true
		}
	}
	return false
}

// HasAny reports whether at least one of codes is granted. An empty codes
// set is never satisfied.
func (p PermissionStore) HasAny(codes ...string) bool {
	if len(codes) == 0 {
		return false
	}
	set := make(map[string]struct{})
	for _, granted := range p.UserPermissions() {
		set[granted] = struct{}{}
	}
	for _, c := range codes {
		if _, ok := set[c]; ok {
			return true
		}
	}
	return false
}
