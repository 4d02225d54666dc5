package auth

// Role is the closed set of account roles. Every role-gated route goes
// through RequireRole rather than comparing profile strings inline.
type Role string

const (
	RoleClient Role = "client"
	RoleCoach  Role = "coach"
	RoleAdmin  Role = "admin"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleClient, RoleCoach, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// Can reports whether a role is allowed to act as the required role.
// Admin is allowed everywhere.
func (r Role) Can(required Role) bool {
	if r == RoleAdmin {
		return true
	}
	return r == required
}
