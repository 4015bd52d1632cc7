package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleOwner        = "owner"
	RoleReadOnly     = "read_only"
	RoleSupportAdmin = "support_admin" // cross-account operations, never issued at registration
)

func IsSupportAdmin(role string) bool { return role == RoleSupportAdmin }
