package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/tracking_backend/config"
	"bitbucket.org/mmdatafocus/tracking_backend/models"
	"bitbucket.org/mmdatafocus/tracking_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("tracking-backend")

// Actor identifies the authenticated user performing a workflow action.
type Actor struct {
	UserID   int
	Username string
	Roles    []models.Role
}

func (a Actor) IsAdmin() bool {
	return hasRole(a.Roles, models.RoleAdmin)
}

type ScanInput struct {
	TargetStatus   models.Status
	BatchID        *int
	FactoryID      *int
	OverrideReason string
	Location       string
	DeviceID       string
	Remarks        string
	IncidentFlag   bool
}

// ScanDecision is the outcome of validating a scan before any write.
type ScanDecision struct {
	Override  bool
	EventRole models.Role
}

// PlanScan validates a requested transition against the transition tables and
// the acting user's roles. It is pure: all inputs are loaded by the caller.
// holdPrior carries the from_status of the latest ON_HOLD event and is only
// consulted when the current status is ON_HOLD.
func PlanScan(current, target models.Status, roles []models.Role, holdPrior *models.Status, overrideReason string) (ScanDecision, error) {
	decision := ScanDecision{EventRole: SelectRoleForStatus(roles, target)}
	isAdmin := hasRole(roles, models.RoleAdmin)

	if current == models.StatusOnHold {
		if holdPrior == nil {
			return decision, ErrNoPriorStatus
		}
		if !IsAllowed(*holdPrior, target) {
			return decision, ErrInvalidHoldResolution
		}
		decision.Override = true
	} else {
		decision.Override = RequiresOverride(current, target)
	}

	if IsTerminal(current) && target != current {
		return decision, ErrTerminalStatus
	}

	if decision.Override {
		if !isAdmin {
			return decision, ErrOverrideForbidden
		}
		if strings.TrimSpace(overrideReason) == "" {
			return decision, ErrOverrideReasonRequired
		}
		decision.EventRole = models.RoleAdmin
		return decision, nil
	}

	if !IsAllowed(current, target) {
		return decision, ErrInvalidTransition
	}
	permitted := false
	for _, role := range roles {
		if RoleCanPerform(role, target) {
			permitted = true
			break
		}
	}
	if !permitted {
		return decision, ErrRoleNotPermitted
	}
	return decision, nil
}

// ApplyScan runs the full scan: validates, applies batch side-effects for
// factory dispatch, mutates the job row and appends the status event, all in
// one transaction with the job row locked.
func ApplyScan(ctx context.Context, logger *logrus.Logger, jobCode string, input *ScanInput, actor Actor) (*models.StatusEvent, error) {
	if !input.TargetStatus.Valid() {
		return nil, ErrInvalidTransition
	}

	ctx, span := tracer.Start(ctx, "scan.apply", trace.WithAttributes(
		attribute.String("job_code", jobCode),
		attribute.String("to_status", string(input.TargetStatus)),
	))
	defer span.End()

	db := config.GetDB()
	var event *models.StatusEvent
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job, err := models.GetJobByCodeForUpdate(tx, jobCode)
		if err != nil {
			return err
		}
		current := job.CurrentStatus

		var holdPrior *models.Status
		if current == models.StatusOnHold {
			holdEvent, err := models.LatestHoldEvent(tx, job.ID)
			if err != nil {
				config.LogError(logger, "scan.go", "ApplyScan", "LatestHoldEvent", jobCode, err)
				return err
			}
			if holdEvent != nil {
				holdPrior = holdEvent.FromStatus
			}
		}

		decision, err := PlanScan(current, input.TargetStatus, actor.Roles, holdPrior, input.OverrideReason)
		if err != nil {
			return err
		}

		remarks := input.Remarks
		if input.TargetStatus == models.StatusDispatchedToFactory {
			batch, err := applyDispatchSideEffects(tx, job, input, decision.Override)
			if err != nil {
				return err
			}
			if batch != nil && remarks == "" {
				remarks = fmt.Sprintf("Batch dispatch %s", batch.BatchCode)
			}
		}

		now := time.Now().UTC()
		updates := map[string]interface{}{
			"current_status":         input.TargetStatus,
			"current_holder_role":    HolderRoleFor(input.TargetStatus),
			"current_holder_user_id": actor.UserID,
			"last_scan_at":           now,
		}
		if job.FactoryID != nil {
			updates["factory_id"] = *job.FactoryID
		}
		if err := tx.Model(job).Updates(updates).Error; err != nil {
			config.LogError(logger, "scan.go", "ApplyScan", "UpdateJob", jobCode, err)
			return err
		}

		event = &models.StatusEvent{
			JobID:           job.ID,
			FromStatus:      &current,
			ToStatus:        input.TargetStatus,
			ScannedByUserID: actor.UserID,
			ScannedByRole:   decision.EventRole,
			Timestamp:       now,
			Location:        input.Location,
			DeviceID:        input.DeviceID,
			Remarks:         remarks,
			IncidentFlag:    input.IncidentFlag,
			OverrideReason:  input.OverrideReason,
		}
		if err := tx.Create(event).Error; err != nil {
			config.LogError(logger, "scan.go", "ApplyScan", "CreateStatusEvent", jobCode, err)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	publishStatusFeed(ctx, logger, jobCode, event, actor)
	return event, nil
}

// BatchAttachState is the state consulted when a scan into
// DISPATCHED_TO_FACTORY attaches the job to a batch. ApplyScan loads it
// inside the transaction; the planner never touches the database.
type BatchAttachState struct {
	BatchProvided  bool
	BatchStatus    models.BatchStatus
	BatchFactoryID *int
	FactoryID      *int
	AlreadyMember  bool
}

// BatchAttachPlan lists the writes the dispatch side-effect performs.
type BatchAttachPlan struct {
	SetBatchFactory bool
	Attach          bool
}

// PlanBatchAttachment decides the batch side-effect of a dispatch scan. On
// the normal path a batch is mandatory and duplicate membership is an error;
// on the override path the batch is optional and an existing membership is
// left alone.
func PlanBatchAttachment(state BatchAttachState, override bool) (BatchAttachPlan, error) {
	var plan BatchAttachPlan
	if !state.BatchProvided {
		if override {
			return plan, nil
		}
		return plan, ErrBatchRequired
	}
	if state.BatchStatus == models.BatchStatusClosed {
		return plan, ErrBatchClosed
	}

	if state.FactoryID != nil {
		if state.BatchFactoryID != nil && *state.BatchFactoryID != *state.FactoryID {
			return plan, ErrFactoryMismatch
		}
		if state.BatchFactoryID == nil {
			plan.SetBatchFactory = true
		}
	} else if state.BatchFactoryID == nil && !override {
		return plan, ErrFactoryRequired
	}

	if state.AlreadyMember {
		if override {
			return plan, nil
		}
		return plan, ErrDuplicateBatchMembership
	}
	plan.Attach = true
	return plan, nil
}

// applyDispatchSideEffects loads the batch, factory and membership rows,
// plans the attachment and executes the planned writes.
func applyDispatchSideEffects(tx *gorm.DB, job *models.ItemJob, input *ScanInput, override bool) (*models.Batch, error) {
	if input.BatchID == nil {
		if _, err := PlanBatchAttachment(BatchAttachState{}, override); err != nil {
			return nil, err
		}
		return nil, nil
	}

	batch, err := models.GetBatchForUpdate(tx, *input.BatchID)
	if err != nil {
		return nil, err
	}

	state := BatchAttachState{
		BatchProvided:  true,
		BatchStatus:    batch.Status,
		BatchFactoryID: batch.FactoryID,
	}
	var factory *models.Factory
	if input.FactoryID != nil {
		factory, err = factoryForDispatch(tx, *input.FactoryID)
		if err != nil {
			return nil, err
		}
		state.FactoryID = &factory.ID
	}
	existing, err := models.GetBatchMembership(tx, batch.ID, job.ID)
	if err != nil {
		return nil, err
	}
	state.AlreadyMember = existing != nil

	plan, err := PlanBatchAttachment(state, override)
	if err != nil {
		return nil, err
	}

	if plan.SetBatchFactory {
		if err := tx.Model(batch).Update("factory_id", factory.ID).Error; err != nil {
			return nil, err
		}
		batch.FactoryID = &factory.ID
	}
	if plan.Attach {
		item := models.BatchItem{BatchID: batch.ID, JobID: job.ID}
		if err := tx.Create(&item).Error; err != nil {
			if isDuplicateKeyErr(err) {
				if !override {
					return nil, ErrDuplicateBatchMembership
				}
			} else {
				return nil, err
			}
		} else {
			if err := tx.Model(batch).Update("item_count", gorm.Expr("item_count + 1")).Error; err != nil {
				return nil, err
			}
			batch.ItemCount++
		}
	}

	if batch.FactoryID != nil {
		job.FactoryID = batch.FactoryID
	}
	return batch, nil
}

func factoryForDispatch(tx *gorm.DB, factoryID int) (*models.Factory, error) {
	var factory models.Factory
	if err := tx.Where("id = ?", factoryID).First(&factory).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if factory.IsActive != nil && !*factory.IsActive {
		return nil, ErrFactoryInactive
	}
	return &factory, nil
}

// RecordLabelPrint advances a PURCHASED job to PACKED_READY when the label is
// printed by a user holding Packing or Admin. Any other state is a no-op.
func RecordLabelPrint(ctx context.Context, logger *logrus.Logger, jobCode string, actor Actor) (bool, error) {
	if !hasRole(actor.Roles, models.RolePacking) && !actor.IsAdmin() {
		return false, nil
	}

	db := config.GetDB()
	advanced := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job, err := models.GetJobByCodeForUpdate(tx, jobCode)
		if err != nil {
			return err
		}
		if job.CurrentStatus != models.StatusPurchased {
			return nil
		}

		eventRole := SelectRoleForStatus(actor.Roles, models.StatusPackedReady)
		now := time.Now().UTC()
		updates := map[string]interface{}{
			"current_status":         models.StatusPackedReady,
			"current_holder_role":    HolderRoleFor(models.StatusPackedReady),
			"current_holder_user_id": actor.UserID,
			"last_scan_at":           now,
		}
		if err := tx.Model(job).Updates(updates).Error; err != nil {
			config.LogError(logger, "scan.go", "RecordLabelPrint", "UpdateJob", jobCode, err)
			return err
		}

		from := models.StatusPurchased
		event := models.StatusEvent{
			JobID:           job.ID,
			FromStatus:      &from,
			ToStatus:        models.StatusPackedReady,
			ScannedByUserID: actor.UserID,
			ScannedByRole:   eventRole,
			Timestamp:       now,
			Remarks:         "Label printed",
		}
		if err := tx.Create(&event).Error; err != nil {
			config.LogError(logger, "scan.go", "RecordLabelPrint", "CreateStatusEvent", jobCode, err)
			return err
		}
		advanced = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return advanced, nil
}

func publishStatusFeed(ctx context.Context, logger *logrus.Logger, jobCode string, event *models.StatusEvent, actor Actor) {
	if event == nil || !config.StatusFeedEnabled() {
		return
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	from := ""
	if event.FromStatus != nil {
		from = string(*event.FromStatus)
	}
	msg := config.StatusFeedMessage{
		EventId:       event.ID,
		JobCode:       jobCode,
		FromStatus:    from,
		ToStatus:      string(event.ToStatus),
		Role:          string(event.ScannedByRole),
		Username:      actor.Username,
		Timestamp:     event.Timestamp,
		Override:      event.OverrideReason != "",
		CorrelationId: correlationId,
	}
	if _, err := config.PublishStatusFeed(ctx, msg); err != nil {
		config.LogError(logger, "scan.go", "publishStatusFeed", "PublishStatusFeed", jobCode, err)
	}
}
