package workflow

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/tracking_backend/models"
)

func statusPtr(s models.Status) *models.Status {
	return &s
}

func TestPlanScanNormalPath(t *testing.T) {
	decision, err := PlanScan(
		models.StatusPurchased, models.StatusPackedReady,
		[]models.Role{models.RolePacking}, nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Override {
		t.Fatal("normal adjacency should not be an override")
	}
	if decision.EventRole != models.RolePacking {
		t.Fatalf("event role = %s, want Packing", decision.EventRole)
	}
}

func TestPlanScanRejectsInvalidTransition(t *testing.T) {
	_, err := PlanScan(
		models.StatusPurchased, models.StatusReceivedAtFactory,
		[]models.Role{models.RoleFactory}, nil, "")
	// Skipping ahead is outside the adjacency, so it lands on the override
	// path and fails on the missing admin role first.
	if !errors.Is(err, ErrOverrideForbidden) {
		t.Fatalf("got %v, want ErrOverrideForbidden", err)
	}
}

func TestPlanScanRoleNotPermitted(t *testing.T) {
	_, err := PlanScan(
		models.StatusPurchased, models.StatusPackedReady,
		[]models.Role{models.RoleDelivery}, nil, "")
	if !errors.Is(err, ErrRoleNotPermitted) {
		t.Fatalf("got %v, want ErrRoleNotPermitted", err)
	}
}

func TestPlanScanOverrideNeedsAdmin(t *testing.T) {
	_, err := PlanScan(
		models.StatusReceivedAtShop, models.StatusCancelled,
		[]models.Role{models.RoleQCStock}, nil, "customer walked away")
	if !errors.Is(err, ErrOverrideForbidden) {
		t.Fatalf("got %v, want ErrOverrideForbidden", err)
	}
}

func TestPlanScanOverrideNeedsReason(t *testing.T) {
	_, err := PlanScan(
		models.StatusReceivedAtShop, models.StatusCancelled,
		[]models.Role{models.RoleAdmin}, nil, "  ")
	if !errors.Is(err, ErrOverrideReasonRequired) {
		t.Fatalf("got %v, want ErrOverrideReasonRequired", err)
	}
}

func TestPlanScanOverrideAttributedToAdmin(t *testing.T) {
	decision, err := PlanScan(
		models.StatusReceivedAtShop, models.StatusOnHold,
		[]models.Role{models.RoleAdmin, models.RoleQCStock}, nil, "sticker mismatch")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Override {
		t.Fatal("move into ON_HOLD must be an override")
	}
	if decision.EventRole != models.RoleAdmin {
		t.Fatalf("event role = %s, want Admin", decision.EventRole)
	}
}

func TestPlanScanTerminalRejectsEverythingButNoOp(t *testing.T) {
	for _, terminal := range []models.Status{models.StatusDeliveredToCustomer, models.StatusCancelled} {
		_, err := PlanScan(
			terminal, models.StatusPurchased,
			[]models.Role{models.RoleAdmin}, nil, "restart flow")
		if !errors.Is(err, ErrTerminalStatus) {
			t.Fatalf("%s -> PURCHASED: got %v, want ErrTerminalStatus", terminal, err)
		}

		// No-op to the same status stays on the override path and is
		// accepted for an admin with a reason.
		decision, err := PlanScan(
			terminal, terminal,
			[]models.Role{models.RoleAdmin}, nil, "duplicate scan cleanup")
		if err != nil {
			t.Fatalf("%s no-op: unexpected error: %v", terminal, err)
		}
		if !decision.Override {
			t.Fatalf("%s no-op should be an override", terminal)
		}
	}
}

func TestPlanScanHoldResolution(t *testing.T) {
	// The item was ON_HOLD from DISPATCHED_TO_FACTORY; the legal next steps
	// are RECEIVED_AT_FACTORY and the shop shortcut.
	prior := statusPtr(models.StatusDispatchedToFactory)

	decision, err := PlanScan(
		models.StatusOnHold, models.StatusReceivedAtFactory,
		[]models.Role{models.RoleAdmin}, prior, "hold cleared")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Override || decision.EventRole != models.RoleAdmin {
		t.Fatalf("hold resolution must be an admin override, got %+v", decision)
	}

	_, err = PlanScan(
		models.StatusOnHold, models.StatusDeliveredToCustomer,
		[]models.Role{models.RoleAdmin}, prior, "hold cleared")
	if !errors.Is(err, ErrInvalidHoldResolution) {
		t.Fatalf("got %v, want ErrInvalidHoldResolution", err)
	}
}

func TestPlanScanHoldResolutionNeedsAdminAndReason(t *testing.T) {
	prior := statusPtr(models.StatusPackedReady)

	_, err := PlanScan(
		models.StatusOnHold, models.StatusDispatchedToFactory,
		[]models.Role{models.RoleDispatch}, prior, "hold cleared")
	if !errors.Is(err, ErrOverrideForbidden) {
		t.Fatalf("got %v, want ErrOverrideForbidden", err)
	}

	_, err = PlanScan(
		models.StatusOnHold, models.StatusDispatchedToFactory,
		[]models.Role{models.RoleAdmin}, prior, "")
	if !errors.Is(err, ErrOverrideReasonRequired) {
		t.Fatalf("got %v, want ErrOverrideReasonRequired", err)
	}
}

func TestPlanScanHoldWithoutPriorStatus(t *testing.T) {
	_, err := PlanScan(
		models.StatusOnHold, models.StatusReceivedAtShop,
		[]models.Role{models.RoleAdmin}, nil, "hold cleared")
	if !errors.Is(err, ErrNoPriorStatus) {
		t.Fatalf("got %v, want ErrNoPriorStatus", err)
	}
}

func TestPlanScanExhaustiveOffTableOverride(t *testing.T) {
	// Every (from, to) pair outside the adjacency must either refuse the
	// non-admin caller or demand a reason from the admin.
	for _, from := range models.AllStatuses {
		if from == models.StatusOnHold {
			continue
		}
		for _, to := range models.AllStatuses {
			if IsAllowed(from, to) {
				continue
			}
			_, err := PlanScan(from, to, []models.Role{models.RoleQCStock}, nil, "reason")
			if IsTerminal(from) && to != from {
				if !errors.Is(err, ErrTerminalStatus) {
					t.Fatalf("%s -> %s: got %v, want ErrTerminalStatus", from, to, err)
				}
				continue
			}
			if !errors.Is(err, ErrOverrideForbidden) {
				t.Fatalf("%s -> %s: got %v, want ErrOverrideForbidden", from, to, err)
			}
		}
	}
}

func intPtr(n int) *int { return &n }

func TestPlanBatchAttachmentRequiresBatch(t *testing.T) {
	_, err := PlanBatchAttachment(BatchAttachState{}, false)
	if !errors.Is(err, ErrBatchRequired) {
		t.Fatalf("got %v, want ErrBatchRequired", err)
	}

	plan, err := PlanBatchAttachment(BatchAttachState{}, true)
	if err != nil {
		t.Fatalf("override without batch should be a no-op, got %v", err)
	}
	if plan.Attach || plan.SetBatchFactory {
		t.Fatalf("override without batch must plan no writes, got %+v", plan)
	}
}

func TestPlanBatchAttachmentClosedBatch(t *testing.T) {
	state := BatchAttachState{
		BatchProvided: true,
		BatchStatus:   models.BatchStatusClosed,
		FactoryID:     intPtr(3),
	}
	for _, override := range []bool{false, true} {
		if _, err := PlanBatchAttachment(state, override); !errors.Is(err, ErrBatchClosed) {
			t.Fatalf("override=%v: got %v, want ErrBatchClosed", override, err)
		}
	}
}

func TestPlanBatchAttachmentFactoryMismatch(t *testing.T) {
	state := BatchAttachState{
		BatchProvided:  true,
		BatchStatus:    models.BatchStatusCreated,
		BatchFactoryID: intPtr(1),
		FactoryID:      intPtr(2),
	}
	if _, err := PlanBatchAttachment(state, false); !errors.Is(err, ErrFactoryMismatch) {
		t.Fatalf("got %v, want ErrFactoryMismatch", err)
	}
}

func TestPlanBatchAttachmentBackfillsFactory(t *testing.T) {
	state := BatchAttachState{
		BatchProvided: true,
		BatchStatus:   models.BatchStatusCreated,
		FactoryID:     intPtr(4),
	}
	plan, err := PlanBatchAttachment(state, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !plan.SetBatchFactory {
		t.Fatal("first dispatch should stamp the factory onto the batch")
	}
	if !plan.Attach {
		t.Fatal("job should be attached")
	}
}

func TestPlanBatchAttachmentFactoryRequired(t *testing.T) {
	state := BatchAttachState{
		BatchProvided: true,
		BatchStatus:   models.BatchStatusCreated,
	}
	if _, err := PlanBatchAttachment(state, false); !errors.Is(err, ErrFactoryRequired) {
		t.Fatalf("got %v, want ErrFactoryRequired", err)
	}

	// Override dispatch may leave the factory unresolved.
	plan, err := PlanBatchAttachment(state, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !plan.Attach {
		t.Fatal("override without factory should still attach")
	}
}

func TestPlanBatchAttachmentDuplicateMembership(t *testing.T) {
	state := BatchAttachState{
		BatchProvided:  true,
		BatchStatus:    models.BatchStatusCreated,
		BatchFactoryID: intPtr(1),
		FactoryID:      intPtr(1),
		AlreadyMember:  true,
	}
	if _, err := PlanBatchAttachment(state, false); !errors.Is(err, ErrDuplicateBatchMembership) {
		t.Fatalf("got %v, want ErrDuplicateBatchMembership", err)
	}

	plan, err := PlanBatchAttachment(state, true)
	if err != nil {
		t.Fatalf("override should tolerate an existing membership, got %v", err)
	}
	if plan.Attach {
		t.Fatal("existing membership must not be attached twice")
	}
}
