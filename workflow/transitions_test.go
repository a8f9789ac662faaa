package workflow

import (
	"testing"

	"bitbucket.org/mmdatafocus/tracking_backend/models"
)

func TestAllowedNextCoversNormalPath(t *testing.T) {
	cases := []struct {
		from models.Status
		want []models.Status
	}{
		{models.StatusPurchased, []models.Status{models.StatusPackedReady}},
		{models.StatusPackedReady, []models.Status{models.StatusDispatchedToFactory}},
		{models.StatusDispatchedToFactory, []models.Status{models.StatusReceivedAtFactory, models.StatusReceivedAtShop}},
		{models.StatusReceivedAtFactory, []models.Status{models.StatusReturnedFromFactory}},
		{models.StatusReturnedFromFactory, []models.Status{models.StatusReceivedAtShop}},
		{models.StatusReceivedAtShop, []models.Status{models.StatusAddedToStock, models.StatusHandedToDelivery}},
		{models.StatusHandedToDelivery, []models.Status{models.StatusDeliveredToCustomer}},
	}
	for _, tc := range cases {
		got := AllowedNext(tc.from)
		if len(got) != len(tc.want) {
			t.Fatalf("AllowedNext(%s) = %v, want %v", tc.from, got, tc.want)
		}
		for i := range tc.want {
			if got[i] != tc.want[i] {
				t.Fatalf("AllowedNext(%s) = %v, want %v", tc.from, got, tc.want)
			}
		}
	}
}

func TestNoNormalPathOutOfSideAndTerminalStates(t *testing.T) {
	for _, from := range []models.Status{
		models.StatusAddedToStock,
		models.StatusDeliveredToCustomer,
		models.StatusOnHold,
		models.StatusCancelled,
	} {
		if next := AllowedNext(from); len(next) != 0 {
			t.Fatalf("AllowedNext(%s) = %v, want none", from, next)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	for _, status := range models.AllStatuses {
		want := status == models.StatusDeliveredToCustomer || status == models.StatusCancelled
		if got := IsTerminal(status); got != want {
			t.Fatalf("IsTerminal(%s) = %v, want %v", status, got, want)
		}
	}
}

func TestRequiresOverride(t *testing.T) {
	// Side states always need an override regardless of origin.
	for _, status := range models.AllStatuses {
		if !RequiresOverride(status, models.StatusOnHold) {
			t.Fatalf("move %s -> ON_HOLD should require override", status)
		}
		if !RequiresOverride(status, models.StatusCancelled) {
			t.Fatalf("move %s -> CANCELLED should require override", status)
		}
	}

	// Normal adjacency never needs an override.
	if RequiresOverride(models.StatusPurchased, models.StatusPackedReady) {
		t.Fatal("PURCHASED -> PACKED_READY should not require override")
	}
	if RequiresOverride(models.StatusDispatchedToFactory, models.StatusReceivedAtShop) {
		t.Fatal("factory-skip shortcut should not require override")
	}

	// Skipping steps does.
	if !RequiresOverride(models.StatusPurchased, models.StatusDispatchedToFactory) {
		t.Fatal("skipping PACKED_READY should require override")
	}

	// Backward moves do.
	if !RequiresOverride(models.StatusReceivedAtShop, models.StatusPackedReady) {
		t.Fatal("backward move should require override")
	}

	// Anything out of a terminal status does.
	if !RequiresOverride(models.StatusDeliveredToCustomer, models.StatusDeliveredToCustomer) {
		t.Fatal("terminal no-op should still require override")
	}
	if !RequiresOverride(models.StatusCancelled, models.StatusPurchased) {
		t.Fatal("move out of CANCELLED should require override")
	}
}

func TestRoleCanPerform(t *testing.T) {
	// Admin can target any status.
	for _, status := range models.AllStatuses {
		if !RoleCanPerform(models.RoleAdmin, status) {
			t.Fatalf("Admin should be allowed to target %s", status)
		}
	}

	cases := []struct {
		role    models.Role
		allowed []models.Status
	}{
		{models.RolePurchase, []models.Status{models.StatusPurchased}},
		{models.RolePacking, []models.Status{models.StatusPackedReady}},
		{models.RoleDispatch, []models.Status{models.StatusDispatchedToFactory}},
		{models.RoleFactory, []models.Status{models.StatusReceivedAtFactory, models.StatusReturnedFromFactory}},
		{models.RoleQCStock, []models.Status{models.StatusReceivedAtShop, models.StatusAddedToStock, models.StatusHandedToDelivery}},
		{models.RoleDelivery, []models.Status{models.StatusDeliveredToCustomer}},
	}
	for _, tc := range cases {
		allowedSet := map[models.Status]bool{}
		for _, status := range tc.allowed {
			allowedSet[status] = true
		}
		for _, status := range models.AllStatuses {
			if got := RoleCanPerform(tc.role, status); got != allowedSet[status] {
				t.Fatalf("RoleCanPerform(%s, %s) = %v, want %v", tc.role, status, got, allowedSet[status])
			}
		}
	}
}

func TestHolderRoleFor(t *testing.T) {
	cases := map[models.Status]models.Role{
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
	for status, want := range cases {
		if got := HolderRoleFor(status); got != want {
			t.Fatalf("HolderRoleFor(%s) = %s, want %s", status, got, want)
		}
	}
}
