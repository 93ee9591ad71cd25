package constants

import "fmt"

// Role names as stored in user_roles.user_role_name
const (
	RoleUser     = "USER"
	RoleTenant   = "TENANT"
	RoleLandlord = "LANDLORD"
	RoleAdmin    = "ADMIN"
)

const ErrOnlyRolesCanAccess = "only %v may access %s"

func RoleError(feature string, roles ...string) string {
	return fmt.Sprintf(ErrOnlyRolesCanAccess, roles, feature)
}

var (
	AllRoles = []string{
		RoleUser,
		RoleTenant,
		RoleLandlord,
		RoleAdmin,
	}

	ManagerRoles = []string{
		RoleLandlord,
		RoleAdmin,
	}
)
