package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/tracking_backend/config"
	"bitbucket.org/mmdatafocus/tracking_backend/models"
	"bitbucket.org/mmdatafocus/tracking_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func decimalValue(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

func timeValue(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func intValue(i *int) interface{} {
	if i == nil {
		return nil
	}
	return *i
}

func decimalsEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	if !a.Valid {
		return true
	}
	return a.Decimal.Equal(b.Decimal)
}

func timesEqual(a, b *time.Time) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if a == nil {
		return true
	}
	return a.Equal(*b)
}

func photosEqual(a, b models.PhotoList) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// BuildJobChanges diffs the supplied edit against the job and returns the
// audit change set plus the column updates to apply. Only fields that
// actually changed appear in either map.
func BuildJobChanges(job *models.ItemJob, input *models.UpdateJobInput) (models.ChangeSet, map[string]interface{}, error) {
	changes := models.ChangeSet{}
	updates := map[string]interface{}{}

	setString := func(field string, current string, next *string) {
		if next == nil || current == *next {
			return
		}
		changes[field] = models.FieldChange{From: current, To: *next}
		updates[field] = *next
	}
	setDecimal := func(field string, current decimal.NullDecimal, next *decimal.NullDecimal) {
		if next == nil || decimalsEqual(current, *next) {
			return
		}
		changes[field] = models.FieldChange{From: decimalValue(current), To: decimalValue(*next)}
		updates[field] = *next
	}

	setString("customer_name", job.CustomerName, input.CustomerName)
	setString("customer_phone", job.CustomerPhone, input.CustomerPhone)
	setString("item_description", job.ItemDescription, input.ItemDescription)
	setDecimal("approximate_weight", job.ApproximateWeight, input.ApproximateWeight)
	setDecimal("purchase_value", job.PurchaseValue, input.PurchaseValue)
	setDecimal("diamond_cent", job.DiamondCent, input.DiamondCent)
	setString("work_narration", job.WorkNarration, input.WorkNarration)
	setString("notes", job.Notes, input.Notes)

	if input.VoucherNo != nil {
		voucherNo := strings.TrimSpace(*input.VoucherNo)
		if voucherNo == "" {
			return nil, nil, ErrVoucherRequired
		}
		if voucherNo != job.VoucherNo {
			changes["voucher_no"] = models.FieldChange{From: job.VoucherNo, To: voucherNo}
			updates["voucher_no"] = voucherNo
		}
	}
	if input.ItemSource != nil && *input.ItemSource != job.ItemSource {
		changes["item_source"] = models.FieldChange{From: string(job.ItemSource), To: string(*input.ItemSource)}
		updates["item_source"] = *input.ItemSource
	}
	if input.RepairType != nil && *input.RepairType != job.RepairType {
		changes["repair_type"] = models.FieldChange{From: string(job.RepairType), To: string(*input.RepairType)}
		updates["repair_type"] = *input.RepairType
	}
	if input.TargetReturnDate != nil && !timesEqual(job.TargetReturnDate, input.TargetReturnDate) {
		changes["target_return_date"] = models.FieldChange{From: timeValue(job.TargetReturnDate), To: timeValue(input.TargetReturnDate)}
		updates["target_return_date"] = *input.TargetReturnDate
	}
	if input.FactoryID != nil && (job.FactoryID == nil || *job.FactoryID != *input.FactoryID) {
		changes["factory_id"] = models.FieldChange{From: intValue(job.FactoryID), To: *input.FactoryID}
		updates["factory_id"] = *input.FactoryID
	}
	if input.Photos != nil {
		photos := normalizePhotos(*input.Photos)
		if !photosEqual(job.Photos, photos) {
			changes["photos"] = models.FieldChange{From: job.Photos, To: photos}
			updates["photos"] = photos
		}
	}

	return changes, updates, nil
}

// EditJob applies an admin edit with its audit record. The edit and the audit
// row commit together; an edit that changes nothing writes nothing.
func EditJob(ctx context.Context, logger *logrus.Logger, jobCode string, input *models.UpdateJobInput, actor Actor) (*models.ItemJob, error) {
	if strings.TrimSpace(input.Reason) == "" {
		return nil, ErrReasonRequired
	}
	eventRole := SelectRoleForAction(actor.Roles, models.RoleAdmin)

	if input.CustomerPhone != nil {
		if phone := strings.TrimSpace(*input.CustomerPhone); phone != "" {
			if err := utils.ValidatePhoneNumber(phone, utils.CountryCode); err != nil {
				return nil, fmt.Errorf("invalid customer phone: %w", err)
			}
		}
	}
	if input.FactoryID != nil {
		factory, err := models.GetFactoryById(ctx, *input.FactoryID)
		if err != nil {
			return nil, err
		}
		if factory.IsActive != nil && !*factory.IsActive {
			return nil, ErrFactoryInactive
		}
	}

	db := config.GetDB()
	var updated *models.ItemJob
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job, err := models.GetJobByCodeForUpdate(tx, jobCode)
		if err != nil {
			return err
		}

		changes, updates, err := BuildJobChanges(job, input)
		if err != nil {
			return err
		}
		updated = job
		if len(changes) == 0 {
			return nil
		}

		if err := tx.Model(job).Updates(updates).Error; err != nil {
			config.LogError(logger, "edit.go", "EditJob", "UpdateJob", jobCode, err)
			return err
		}

		audit := models.JobEditAudit{
			JobID:          job.ID,
			EditedByUserID: actor.UserID,
			EditedByRole:   eventRole,
			Reason:         input.Reason,
			Changes:        changes,
		}
		if err := tx.Create(&audit).Error; err != nil {
			config.LogError(logger, "edit.go", "EditJob", "CreateJobEditAudit", jobCode, err)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
