package workflow

import (
	"bitbucket.org/mmdatafocus/tracking_backend/models"
)

// allowedTransitions is the normal-path adjacency of the custody flow.
// Anything outside it needs an admin override. DISPATCHED_TO_FACTORY has a
// direct shortcut to RECEIVED_AT_SHOP for items that skip factory-side
// receive bookkeeping.
var allowedTransitions = map[models.Status][]models.Status{
	models.StatusPurchased:           {models.StatusPackedReady},
	models.StatusPackedReady:         {models.StatusDispatchedToFactory},
	models.StatusDispatchedToFactory: {models.StatusReceivedAtFactory, models.StatusReceivedAtShop},
	models.StatusReceivedAtFactory:   {models.StatusReturnedFromFactory},
	models.StatusReturnedFromFactory: {models.StatusReceivedAtShop},
	models.StatusReceivedAtShop:      {models.StatusAddedToStock, models.StatusHandedToDelivery},
	models.StatusHandedToDelivery:    {models.StatusDeliveredToCustomer},
}

var terminalStatuses = map[models.Status]bool{
	models.StatusDeliveredToCustomer: true,
	models.StatusCancelled:           true,
}

// roleAllowedToStatus lists the target statuses each role may scan an item
// into. Admin may scan into any status.
var roleAllowedToStatus = map[models.Role][]models.Status{
	models.RoleAdmin:    models.AllStatuses,
	models.RolePurchase: {models.StatusPurchased},
	models.RolePacking:  {models.StatusPackedReady},
	models.RoleDispatch: {models.StatusDispatchedToFactory},
	models.RoleFactory:  {models.StatusReceivedAtFactory, models.StatusReturnedFromFactory},
	models.RoleQCStock:  {models.StatusReceivedAtShop, models.StatusAddedToStock, models.StatusHandedToDelivery},
	models.RoleDelivery: {models.StatusDeliveredToCustomer},
}

// statusHolderRole names which role holds custody of an item at each status.
var statusHolderRole = map[models.Status]models.Role{
	models.StatusPurchased:           models.RolePurchase,
	models.StatusPackedReady:         models.RoleDispatch,
	models.StatusDispatchedToFactory: models.RoleFactory,
	models.StatusReceivedAtFactory:   models.RoleFactory,
	models.StatusReturnedFromFactory: models.RoleQCStock,
	models.StatusReceivedAtShop:      models.RoleQCStock,
	models.StatusAddedToStock:        models.RoleQCStock,
	models.StatusHandedToDelivery:    models.RoleDelivery,
	models.StatusDeliveredToCustomer: models.RoleDelivery,
	models.StatusOnHold:              models.RoleAdmin,
	models.StatusCancelled:           models.RoleAdmin,
}

// AllowedNext returns the statuses reachable from current on the normal path.
func AllowedNext(current models.Status) []models.Status {
	return allowedTransitions[current]
}

func IsAllowed(current, target models.Status) bool {
	for _, next := range allowedTransitions[current] {
		if next == target {
			return true
		}
	}
	return false
}

func IsTerminal(status models.Status) bool {
	return terminalStatuses[status]
}

// RequiresOverride reports whether moving current -> target needs an admin
// override: any move into ON_HOLD or CANCELLED, any move off a terminal
// status, and any move outside the normal adjacency.
func RequiresOverride(current, target models.Status) bool {
	if target == models.StatusOnHold || target == models.StatusCancelled {
		return true
	}
	if terminalStatuses[current] {
		return true
	}
	return !IsAllowed(current, target)
}

func RoleCanPerform(role models.Role, target models.Status) bool {
	for _, status := range roleAllowedToStatus[role] {
		if status == target {
			return true
		}
	}
	return false
}

// HolderRoleFor returns the custody role an item lands on at the status.
func HolderRoleFor(status models.Status) models.Role {
	return statusHolderRole[status]
}
