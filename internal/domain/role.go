package domain

// Role identifies which supply-chain party is acting. The authentication
// collaborator supplies {username, role}; the core only ever reads the role.
type Role string

const (
	RoleCollector  Role = "collector"
	RoleProcessor  Role = "processor"
	RoleLaboratory Role = "laboratory"
	RoleRegulator  Role = "regulator"
)

func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleCollector, RoleProcessor, RoleLaboratory, RoleRegulator:
		return Role(raw), true
	}
	return "", false
}
