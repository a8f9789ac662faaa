package workflow

import (
	"testing"

	"bitbucket.org/mmdatafocus/tracking_backend/models"
)

func TestSelectRoleForActionPrefersPreferred(t *testing.T) {
	roles := []models.Role{models.RoleAdmin, models.RolePurchase}
	if got := SelectRoleForAction(roles, models.RolePurchase); got != models.RolePurchase {
		t.Fatalf("got %s, want Purchase", got)
	}
}

func TestSelectRoleForActionFallsBackToAdmin(t *testing.T) {
	roles := []models.Role{models.RoleDelivery, models.RoleAdmin}
	if got := SelectRoleForAction(roles, models.RolePurchase); got != models.RoleAdmin {
		t.Fatalf("got %s, want Admin", got)
	}
}

func TestSelectRoleForActionFallsBackToFirstRole(t *testing.T) {
	roles := []models.Role{models.RoleDelivery, models.RoleQCStock}
	if got := SelectRoleForAction(roles, models.RolePurchase); got != models.RoleDelivery {
		t.Fatalf("got %s, want Delivery", got)
	}
}

func TestSelectRoleForStatusPicksCapableNonAdmin(t *testing.T) {
	roles := []models.Role{models.RoleAdmin, models.RoleQCStock}
	if got := SelectRoleForStatus(roles, models.StatusAddedToStock); got != models.RoleQCStock {
		t.Fatalf("got %s, want QC_Stock", got)
	}
}

func TestSelectRoleForStatusFallsBackToAdmin(t *testing.T) {
	roles := []models.Role{models.RoleAdmin, models.RolePurchase}
	if got := SelectRoleForStatus(roles, models.StatusDeliveredToCustomer); got != models.RoleAdmin {
		t.Fatalf("got %s, want Admin", got)
	}
}

func TestSelectRoleForStatusFallsBackToFirstRole(t *testing.T) {
	roles := []models.Role{models.RolePurchase, models.RolePacking}
	if got := SelectRoleForStatus(roles, models.StatusDeliveredToCustomer); got != models.RolePurchase {
		t.Fatalf("got %s, want Purchase", got)
	}
}
