package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/tracking_backend/config"
	"bitbucket.org/mmdatafocus/tracking_backend/models"
	"bitbucket.org/mmdatafocus/tracking_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// normalizePhotos back-fills a missing key from the access URL and a missing
// URL from the key, so rows carry the storage object key no matter which
// form the client sent.
func normalizePhotos(photos models.PhotoList) models.PhotoList {
	out := make(models.PhotoList, 0, len(photos))
	for _, photo := range photos {
		if photo.Key == "" && photo.URL != "" {
			photo.Key = utils.ExtractObjectKeyFromURL(photo.URL)
		}
		if photo.URL == "" && photo.Key != "" {
			photo.URL = utils.BuildObjectAccessURL(photo.Key)
		}
		out = append(out, photo)
	}
	return out
}

// CreateJob registers a purchased item: allocates the job code, stores the
// job at PURCHASED and appends the synthetic "Job created" event, all in one
// transaction.
func CreateJob(ctx context.Context, logger *logrus.Logger, input *models.NewJob, actor Actor) (*models.ItemJob, error) {
	voucherNo := strings.TrimSpace(input.VoucherNo)
	if voucherNo == "" {
		return nil, ErrVoucherRequired
	}
	if phone := strings.TrimSpace(input.CustomerPhone); phone != "" {
		if err := utils.ValidatePhoneNumber(phone, utils.CountryCode); err != nil {
			return nil, fmt.Errorf("invalid customer phone: %w", err)
		}
	}
	eventRole := SelectRoleForAction(actor.Roles, models.RolePurchase)

	branch, err := models.DefaultBranch(ctx)
	if err != nil {
		config.LogError(logger, "job.go", "CreateJob", "DefaultBranch", nil, err)
		return nil, err
	}

	var factoryID *int
	if input.FactoryID != nil {
		factory, err := models.GetFactoryById(ctx, *input.FactoryID)
		if err != nil {
			return nil, err
		}
		if factory.IsActive != nil && !*factory.IsActive {
			return nil, ErrFactoryInactive
		}
		factoryID = &factory.ID
	}

	// Repair items default their sub-type from the source when not given.
	repairType := models.RepairType("")
	if input.RepairType != nil {
		repairType = *input.RepairType
	} else if input.ItemSource != nil {
		if *input.ItemSource == models.ItemSourceRepair {
			repairType = models.RepairTypeCustomer
		} else {
			repairType = models.RepairTypeStock
		}
	}
	itemSource := models.ItemSource("")
	if input.ItemSource != nil {
		itemSource = *input.ItemSource
	}

	db := config.GetDB()
	var job *models.ItemJob
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		code, err := NextJobCode(tx, now)
		if err != nil {
			config.LogError(logger, "job.go", "CreateJob", "NextJobCode", nil, err)
			return err
		}

		photos := normalizePhotos(input.Photos)
		job = &models.ItemJob{
			JobCode:             code,
			BranchID:            branch.ID,
			CustomerName:        input.CustomerName,
			CustomerPhone:       input.CustomerPhone,
			ItemDescription:     input.ItemDescription,
			ApproximateWeight:   input.ApproximateWeight,
			PurchaseValue:       input.PurchaseValue,
			VoucherNo:           voucherNo,
			ItemSource:          itemSource,
			RepairType:          repairType,
			WorkNarration:       input.WorkNarration,
			TargetReturnDate:    input.TargetReturnDate,
			FactoryID:           factoryID,
			DiamondCent:         input.DiamondCent,
			Photos:              photos,
			CurrentStatus:       models.StatusPurchased,
			CurrentHolderRole:   models.RolePurchase,
			CurrentHolderUserID: &actor.UserID,
			LastScanAt:          &now,
			Notes:               input.Notes,
		}
		if err := tx.Create(job).Error; err != nil {
			config.LogError(logger, "job.go", "CreateJob", "CreateItemJob", code, err)
			return err
		}

		event := models.StatusEvent{
			JobID:           job.ID,
			FromStatus:      nil,
			ToStatus:        models.StatusPurchased,
			ScannedByUserID: actor.UserID,
			ScannedByRole:   eventRole,
			Timestamp:       now,
			Remarks:         "Job created",
		}
		if err := tx.Create(&event).Error; err != nil {
			config.LogError(logger, "job.go", "CreateJob", "CreateStatusEvent", code, err)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}
