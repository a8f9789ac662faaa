package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/tracking_backend/config"
	"bitbucket.org/mmdatafocus/tracking_backend/models"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// dispatchedOrLater holds the statuses an item may be in once its batch is
// dispatched.
var dispatchedOrLater = map[models.Status]bool{
	models.StatusDispatchedToFactory: true,
	models.StatusReceivedAtFactory:   true,
	models.StatusReturnedFromFactory: true,
	models.StatusReceivedAtShop:      true,
	models.StatusAddedToStock:        true,
	models.StatusHandedToDelivery:    true,
	models.StatusDeliveredToCustomer: true,
}

// shopSideOrLater holds the statuses that count as "back at the shop" for
// closing a batch.
var shopSideOrLater = map[models.Status]bool{
	models.StatusReceivedAtShop:      true,
	models.StatusAddedToStock:        true,
	models.StatusHandedToDelivery:    true,
	models.StatusDeliveredToCustomer: true,
}

// AllDispatched reports whether every member status permits batch dispatch.
func AllDispatched(statuses []models.Status) bool {
	for _, status := range statuses {
		if !dispatchedOrLater[status] {
			return false
		}
	}
	return true
}

// AllReturned reports whether every member status permits closing the batch.
func AllReturned(statuses []models.Status) bool {
	for _, status := range statuses {
		if !shopSideOrLater[status] {
			return false
		}
	}
	return true
}

// batchLock takes a best-effort Redis lock around batch mutations so two
// operators working the same batch do not interleave. The row lock inside the
// transaction is the real guard; this only shrinks the retry window.
func batchLock(ctx context.Context, logger *logrus.Logger, batchID int, funcName string) func() {
	locker := config.GetRedisLock()
	if locker == nil {
		return func() {}
	}
	lock, err := locker.Obtain(ctx, fmt.Sprintf("batch:%d", batchID), 30*time.Second, nil)
	if err != nil {
		if !errors.Is(err, redislock.ErrNotObtained) {
			config.LogError(logger, "batch.go", funcName, "ObtainBatchLock", batchID, err)
		}
		return func() {}
	}
	return func() { _ = lock.Release(ctx) }
}

type NewBatch struct {
	Year               int        `json:"year"`
	Month              int        `json:"month"`
	ExpectedReturnDate *time.Time `json:"expected_return_date"`
}

// BatchCodeFor derives the month-scoped batch code, defaulting a zero year
// or month from now. The code doubles as the idempotency key for creation.
func BatchCodeFor(year, month int, now time.Time) string {
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	return fmt.Sprintf("BATCH-%d-%02d", year, month)
}

// CreateBatch creates the month's batch or returns the existing one. The
// month-scoped code makes creation idempotent; a duplicate-key race resolves
// to the row the other writer created.
func CreateBatch(ctx context.Context, logger *logrus.Logger, input *NewBatch, actor Actor) (*models.Batch, error) {
	now := time.Now().UTC()
	batchCode := BatchCodeFor(input.Year, input.Month, now)

	db := config.GetDB()
	var existing models.Batch
	err := db.WithContext(ctx).Where("batch_code = ?", batchCode).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	branch, err := models.DefaultBranch(ctx)
	if err != nil {
		config.LogError(logger, "batch.go", "CreateBatch", "DefaultBranch", batchCode, err)
		return nil, err
	}

	batch := models.Batch{
		BatchCode:          batchCode,
		BranchID:           branch.ID,
		CreatedBy:          actor.UserID,
		ExpectedReturnDate: input.ExpectedReturnDate,
		Status:             models.BatchStatusCreated,
	}
	if err := db.WithContext(ctx).Create(&batch).Error; err != nil {
		if isDuplicateKeyErr(err) {
			err = db.WithContext(ctx).Where("batch_code = ?", batchCode).First(&existing).Error
			if err != nil {
				return nil, err
			}
			return &existing, nil
		}
		config.LogError(logger, "batch.go", "CreateBatch", "CreateBatch", batchCode, err)
		return nil, err
	}
	return &batch, nil
}

// AddItemToBatch packs a PACKED_READY job into an open batch.
func AddItemToBatch(ctx context.Context, logger *logrus.Logger, batchID int, jobCode string, actor Actor) (*models.Batch, error) {
	release := batchLock(ctx, logger, batchID, "AddItemToBatch")
	defer release()

	db := config.GetDB()
	var batch *models.Batch
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		batch, err = models.GetBatchForUpdate(tx, batchID)
		if err != nil {
			return err
		}
		if batch.Status == models.BatchStatusClosed {
			return ErrBatchClosed
		}

		job, err := models.GetJobByCodeForUpdate(tx, jobCode)
		if err != nil {
			return err
		}
		if job.CurrentStatus != models.StatusPackedReady {
			return ErrInvalidTransition
		}

		existing, err := models.GetBatchMembership(tx, batch.ID, job.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrDuplicateBatchMembership
		}

		item := models.BatchItem{BatchID: batch.ID, JobID: job.ID}
		if err := tx.Create(&item).Error; err != nil {
			if isDuplicateKeyErr(err) {
				return ErrDuplicateBatchMembership
			}
			config.LogError(logger, "batch.go", "AddItemToBatch", "CreateBatchItem", jobCode, err)
			return err
		}
		if err := tx.Model(batch).Update("item_count", gorm.Expr("item_count + 1")).Error; err != nil {
			return err
		}
		batch.ItemCount++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

type BatchDispatchInput struct {
	FactoryID          *int       `json:"factory_id"`
	DispatchDate       *time.Time `json:"dispatch_date"`
	ExpectedReturnDate *time.Time `json:"expected_return_date"`
}

// DispatchBatch marks the batch DISPATCHED once every member item has been
// scanned out. The expected return date back-fills target_return_date onto
// member jobs that do not have one.
func DispatchBatch(ctx context.Context, logger *logrus.Logger, batchID int, input *BatchDispatchInput, actor Actor) (*models.Batch, error) {
	release := batchLock(ctx, logger, batchID, "DispatchBatch")
	defer release()

	db := config.GetDB()
	var batch *models.Batch
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		batch, err = models.GetBatchForUpdate(tx, batchID)
		if err != nil {
			return err
		}
		if batch.Status == models.BatchStatusClosed {
			return ErrBatchClosed
		}
		if batch.ItemCount == 0 {
			return ErrBatchEmpty
		}

		if input.FactoryID != nil {
			factory, err := factoryForDispatch(tx, *input.FactoryID)
			if err != nil {
				return err
			}
			if batch.FactoryID != nil && *batch.FactoryID != factory.ID {
				return ErrFactoryMismatch
			}
			batch.FactoryID = &factory.ID
		}
		if batch.FactoryID == nil {
			return ErrFactoryRequired
		}

		statuses, err := models.BatchMemberStatuses(tx, batch.ID)
		if err != nil {
			return err
		}
		if len(statuses) == 0 {
			return ErrBatchEmpty
		}
		if !AllDispatched(statuses) {
			return ErrItemsNotDispatched
		}

		dispatchDate := batch.DispatchDate
		if input.DispatchDate != nil {
			dispatchDate = input.DispatchDate
		} else if dispatchDate == nil {
			now := time.Now().UTC()
			dispatchDate = &now
		}
		updates := map[string]interface{}{
			"status":        models.BatchStatusDispatched,
			"factory_id":    *batch.FactoryID,
			"dispatch_date": dispatchDate,
		}
		if input.ExpectedReturnDate != nil {
			updates["expected_return_date"] = input.ExpectedReturnDate
		}
		if err := tx.Model(batch).Updates(updates).Error; err != nil {
			config.LogError(logger, "batch.go", "DispatchBatch", "UpdateBatch", batch.BatchCode, err)
			return err
		}
		batch.Status = models.BatchStatusDispatched
		batch.DispatchDate = dispatchDate
		if input.ExpectedReturnDate != nil {
			batch.ExpectedReturnDate = input.ExpectedReturnDate
			err = tx.Model(&models.ItemJob{}).
				Where("id IN (?) AND target_return_date IS NULL",
					tx.Table("batch_items").Select("job_id").Where("batch_id = ?", batch.ID)).
				Update("target_return_date", input.ExpectedReturnDate).Error
			if err != nil {
				config.LogError(logger, "batch.go", "DispatchBatch", "BackfillTargetReturnDate", batch.BatchCode, err)
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// CloseBatch closes the batch once every member item is back shop side.
// Closed batches never re-open.
func CloseBatch(ctx context.Context, logger *logrus.Logger, batchID int, actor Actor) (*models.Batch, error) {
	release := batchLock(ctx, logger, batchID, "CloseBatch")
	defer release()

	db := config.GetDB()
	var batch *models.Batch
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		batch, err = models.GetBatchForUpdate(tx, batchID)
		if err != nil {
			return err
		}
		if batch.Status == models.BatchStatusClosed {
			return nil
		}

		statuses, err := models.BatchMemberStatuses(tx, batch.ID)
		if err != nil {
			return err
		}
		if !AllReturned(statuses) {
			return ErrItemsNotReturned
		}

		if err := tx.Model(batch).Update("status", models.BatchStatusClosed).Error; err != nil {
			config.LogError(logger, "batch.go", "CloseBatch", "UpdateBatch", batch.BatchCode, err)
			return err
		}
		batch.Status = models.BatchStatusClosed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}
