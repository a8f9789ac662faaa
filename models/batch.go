package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/tracking_backend/config"
	"bitbucket.org/mmdatafocus/tracking_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Batch struct {
	ID                 int         `gorm:"primary_key" json:"id"`
	BatchCode          string      `gorm:"size:32;not null;unique;index" json:"batch_code"`
	BranchID           int         `gorm:"not null" json:"branch_id"`
	CreatedBy          int         `gorm:"not null" json:"created_by"`
	FactoryID          *int        `json:"factory_id"`
	Factory            *Factory    `json:"factory,omitempty"`
	DispatchDate       *time.Time  `json:"dispatch_date"`
	ExpectedReturnDate *time.Time  `json:"expected_return_date"`
	Status             BatchStatus `gorm:"type:varchar(30);not null;default:'CREATED'" json:"status"`
	ItemCount          int         `gorm:"not null;default:0" json:"item_count"`
	ManifestPdfURL     string      `gorm:"size:255" json:"manifest_pdf_url"`
	CreatedAt          time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
	Items              []BatchItem `json:"items,omitempty"`
}

type BatchItem struct {
	ID      int       `gorm:"primary_key" json:"id"`
	BatchID int       `gorm:"not null;uniqueIndex:uq_batch_item" json:"batch_id"`
	JobID   int       `gorm:"not null;uniqueIndex:uq_batch_item" json:"job_id"`
	Job     *ItemJob  `json:"job,omitempty"`
	AddedAt time.Time `gorm:"autoCreateTime" json:"added_at"`
}

func GetBatchByIdWithItems(ctx context.Context, id int) (*Batch, error) {
	db := config.GetDB()
	var batch Batch
	err := db.WithContext(ctx).
		Preload("Factory").
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("batch_items.added_at ASC")
		}).
		Preload("Items.Job").
		Where("id = ?", id).
		First(&batch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &batch, nil
}

// GetBatchForUpdate loads the batch row locked for the duration of tx.
func GetBatchForUpdate(tx *gorm.DB, id int) (*Batch, error) {
	var batch Batch
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&batch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &batch, nil
}

func GetBatchMembership(tx *gorm.DB, batchID, jobID int) (*BatchItem, error) {
	var item BatchItem
	err := tx.Where("batch_id = ? AND job_id = ?", batchID, jobID).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// BatchMemberStatuses returns the current status of every job in the batch.
func BatchMemberStatuses(tx *gorm.DB, batchID int) ([]Status, error) {
	var statuses []Status
	err := tx.Table("batch_items").
		Select("item_jobs.current_status").
		Joins("JOIN item_jobs ON item_jobs.id = batch_items.job_id").
		Where("batch_items.batch_id = ?", batchID).
		Scan(&statuses).Error
	if err != nil {
		return nil, err
	}
	return statuses, nil
}

type BatchFilter struct {
	Status    *BatchStatus
	FactoryID *int
	FromDate  *time.Time
	ToDate    *time.Time
	Limit     int
	Offset    int
}

func ListBatches(ctx context.Context, filter *BatchFilter) ([]Batch, error) {
	db := config.GetDB().WithContext(ctx).Model(&Batch{}).Preload("Factory")
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.FactoryID != nil {
		db = db.Where("factory_id = ?", *filter.FactoryID)
	}
	if filter.FromDate != nil {
		db = db.Where("created_at >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		db = db.Where("created_at <= ?", *filter.ToDate)
	}

	limit := clampLimit(filter.Limit, 200)
	var batches []Batch
	err := db.Order("created_at DESC").
		Offset(filter.Offset).
		Limit(limit).
		Find(&batches).Error
	if err != nil {
		return nil, err
	}
	return batches, nil
}
