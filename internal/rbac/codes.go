package rbac

// Permission codes understood by the console. They are opaque to the console
// beyond exact string comparison.
const (
	ErrorRead    = "error:read"
	ErrorResolve = "error:resolve"

	RoleRead        = "rbac:role:read"
	RoleWrite       = "rbac:role:write"
	RoleAssignPerms = "rbac:role:assignPermissions"
	PermissionRead  = "rbac:permission:read"
	PermissionWrite = "rbac:permission:write"

	UserRead        = "user:read"
	UserCreate      = "user:create"
	UserDisable     = "user:disable"
	UserAssignRoles = "user:assignRoles"

	BugRead  = "bug:read"
	BugWrite = "bug:write"
)

// Gates lists the codes admitting each console section.
var (
	RolesGate       = []string{RoleRead, RoleWrite}
	PermissionsGate = []string{PermissionRead, PermissionWrite}
	UserRolesGate   = []string{UserRead, UserCreate, UserDisable, UserAssignRoles}
	AssignGate      = []string{RoleAssignPerms}
)
