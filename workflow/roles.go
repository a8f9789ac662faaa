package workflow

import (
	"bitbucket.org/mmdatafocus/tracking_backend/models"
)

// SelectRoleForAction picks the role to attribute an action to: the first
// preferred role the user holds, else Admin if held, else the user's first
// role.
func SelectRoleForAction(userRoles []models.Role, preferred ...models.Role) models.Role {
	for _, want := range preferred {
		for _, have := range userRoles {
			if have == want {
				return have
			}
		}
	}
	for _, have := range userRoles {
		if have == models.RoleAdmin {
			return models.RoleAdmin
		}
	}
	if len(userRoles) == 0 {
		return ""
	}
	return userRoles[0]
}

// SelectRoleForStatus picks the role to attribute a scan to: the first
// non-admin role the user holds that may perform the transition, else Admin
// if held, else the user's first role.
func SelectRoleForStatus(userRoles []models.Role, target models.Status) models.Role {
	for _, have := range userRoles {
		if have != models.RoleAdmin && RoleCanPerform(have, target) {
			return have
		}
	}
	for _, have := range userRoles {
		if have == models.RoleAdmin {
			return models.RoleAdmin
		}
	}
	if len(userRoles) == 0 {
		return ""
	}
	return userRoles[0]
}

func hasRole(userRoles []models.Role, role models.Role) bool {
	for _, have := range userRoles {
		if have == role {
			return true
		}
	}
	return false
}
