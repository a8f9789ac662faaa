package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/tracking_backend/config"
	"bitbucket.org/mmdatafocus/tracking_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PhotoRef points at an uploaded photo: the storage object key plus the
// access and thumbnail URLs handed back by the upload flow.
type PhotoRef struct {
	Key          string `json:"key"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

type PhotoList []PhotoRef

func (p PhotoList) Value() (driver.Value, error) {
	if p == nil {
		return json.Marshal(PhotoList{})
	}
	return json.Marshal(p)
}

func (p *PhotoList) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	case nil:
		*p = nil
		return nil
	}
	return fmt.Errorf("cannot scan %T into PhotoList", value)
}

type ItemJob struct {
	ID                  int                  `gorm:"primary_key" json:"id"`
	JobCode             string               `gorm:"size:32;not null;unique;index" json:"job_code"`
	BranchID            int                  `gorm:"not null" json:"branch_id"`
	Branch              *Branch              `json:"branch,omitempty"`
	CustomerName        string               `gorm:"size:120" json:"customer_name"`
	CustomerPhone       string               `gorm:"size:40" json:"customer_phone"`
	ItemDescription     string               `gorm:"type:text;not null" json:"item_description"`
	ApproximateWeight   decimal.NullDecimal  `gorm:"type:decimal(12,3)" json:"approximate_weight"`
	PurchaseValue       decimal.NullDecimal  `gorm:"type:decimal(14,2)" json:"purchase_value"`
	VoucherNo           string               `gorm:"size:80;not null" json:"voucher_no"`
	ItemSource          ItemSource           `gorm:"type:varchar(20)" json:"item_source"`
	RepairType          RepairType           `gorm:"type:varchar(40)" json:"repair_type"`
	WorkNarration       string               `gorm:"type:text" json:"work_narration"`
	TargetReturnDate    *time.Time           `json:"target_return_date"`
	FactoryID           *int                 `json:"factory_id"`
	Factory             *Factory             `json:"factory,omitempty"`
	DiamondCent         decimal.NullDecimal  `gorm:"type:decimal(10,2)" json:"diamond_cent"`
	Photos              PhotoList            `gorm:"type:json" json:"photos"`
	CurrentStatus       Status               `gorm:"type:varchar(40);not null;index" json:"current_status"`
	CurrentHolderRole   Role                 `gorm:"type:varchar(20);not null" json:"current_holder_role"`
	CurrentHolderUserID *int                 `json:"current_holder_user_id"`
	CurrentHolderUser   *User                `gorm:"foreignKey:CurrentHolderUserID" json:"current_holder_user,omitempty"`
	LastScanAt          *time.Time           `json:"last_scan_at"`
	Notes               string               `gorm:"type:text" json:"notes"`
	CreatedAt           time.Time            `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt           time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ItemJob) TableName() string {
	return "item_jobs"
}

type NewJob struct {
	CustomerName      string              `json:"customer_name"`
	CustomerPhone     string              `json:"customer_phone"`
	ItemDescription   string              `json:"item_description" binding:"required"`
	ApproximateWeight decimal.NullDecimal `json:"approximate_weight"`
	PurchaseValue     decimal.NullDecimal `json:"purchase_value"`
	VoucherNo         string              `json:"voucher_no" binding:"required"`
	ItemSource        *ItemSource         `json:"item_source"`
	RepairType        *RepairType         `json:"repair_type"`
	WorkNarration     string              `json:"work_narration"`
	TargetReturnDate  *time.Time          `json:"target_return_date"`
	FactoryID         *int                `json:"factory_id"`
	DiamondCent       decimal.NullDecimal `json:"diamond_cent"`
	Photos            PhotoList           `json:"photos"`
	Notes             string              `json:"notes"`
}

type UpdateJobInput struct {
	Reason            string               `json:"reason" binding:"required"`
	CustomerName      *string              `json:"customer_name"`
	CustomerPhone     *string              `json:"customer_phone"`
	ItemDescription   *string              `json:"item_description"`
	ApproximateWeight *decimal.NullDecimal `json:"approximate_weight"`
	PurchaseValue     *decimal.NullDecimal `json:"purchase_value"`
	VoucherNo         *string              `json:"voucher_no"`
	ItemSource        *ItemSource          `json:"item_source"`
	RepairType        *RepairType          `json:"repair_type"`
	WorkNarration     *string              `json:"work_narration"`
	TargetReturnDate  *time.Time           `json:"target_return_date"`
	FactoryID         *int                 `json:"factory_id"`
	DiamondCent       *decimal.NullDecimal `json:"diamond_cent"`
	Photos            *PhotoList           `json:"photos"`
	Notes             *string              `json:"notes"`
}

const jobCodePrefix = "DJ"

// FormatJobCode builds a code like DJ-2026-000041.
func FormatJobCode(year int, seq int) string {
	return fmt.Sprintf("%s-%d-%06d", jobCodePrefix, year, seq)
}

// ParseJobCodeSequence extracts the numeric suffix of a job code.
// Returns 0 when the suffix is not numeric so a malformed row never
// poisons sequence generation.
func ParseJobCodeSequence(code string) int {
	parts := strings.Split(code, "-")
	if len(parts) == 0 {
		return 0
	}
	seq, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return 0
	}
	return seq
}

// MaxJobSequenceForYear scans the highest existing code for the year's
// prefix. Callers must hold the job-code advisory lock; the query alone
// is not race safe. The suffix is compared numerically because codes widen
// past six digits: as strings, DJ-2026-1000000 sorts below DJ-2026-999999.
func MaxJobSequenceForYear(tx *gorm.DB, year int) (int, error) {
	prefix := fmt.Sprintf("%s-%d-", jobCodePrefix, year)
	var last ItemJob
	err := tx.Where("job_code LIKE ?", prefix+"%").
		Order("CAST(SUBSTRING_INDEX(job_code, '-', -1) AS UNSIGNED) DESC").
		First(&last).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return ParseJobCodeSequence(last.JobCode), nil
}

func GetJobByCode(ctx context.Context, code string) (*ItemJob, error) {
	db := config.GetDB()
	var job ItemJob
	err := db.WithContext(ctx).
		Preload("Factory").
		Where("job_code = ?", code).
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &job, nil
}

// GetJobByCodeForUpdate loads the job row locked for the duration of tx.
// Scan and edit flows use this so concurrent mutations serialize on the row.
func GetJobByCodeForUpdate(tx *gorm.DB, code string) (*ItemJob, error) {
	var job ItemJob
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("job_code = ?", code).
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &job, nil
}

// clampLimit bounds a caller-supplied page size: zero or negative falls back
// to the default, anything above max is capped at max.
func clampLimit(limit, max int) int {
	if limit <= 0 {
		return config.SearchLimit
	}
	if limit > max {
		return max
	}
	return limit
}

type JobFilter struct {
	Status     *Status
	FromDate   *time.Time
	ToDate     *time.Time
	BatchID    *int
	Phone      string
	JobCode    string
	SortBy     string
	SortDir    string
	Limit      int
	Offset     int
}

var jobSortColumns = map[string]string{
	"created_at":          "item_jobs.created_at",
	"last_scan_at":        "item_jobs.last_scan_at",
	"job_code":            "item_jobs.job_code",
	"customer_name":       "item_jobs.customer_name",
	"current_status":      "item_jobs.current_status",
	"current_holder_role": "item_jobs.current_holder_role",
}

func ListJobs(ctx context.Context, filter *JobFilter) ([]ItemJob, error) {
	db := config.GetDB().WithContext(ctx).Model(&ItemJob{}).Preload("Factory")
	if filter.Status != nil {
		db = db.Where("item_jobs.current_status = ?", *filter.Status)
	}
	if filter.FromDate != nil {
		db = db.Where("item_jobs.created_at >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		db = db.Where("item_jobs.created_at <= ?", *filter.ToDate)
	}
	if filter.Phone != "" {
		db = db.Where("item_jobs.customer_phone LIKE ?", "%"+filter.Phone+"%")
	}
	if filter.JobCode != "" {
		db = db.Where("item_jobs.job_code LIKE ?", "%"+filter.JobCode+"%")
	}
	if filter.BatchID != nil {
		db = db.Joins("JOIN batch_items ON batch_items.job_id = item_jobs.id").
			Where("batch_items.batch_id = ?", *filter.BatchID)
	}

	column, ok := jobSortColumns[filter.SortBy]
	if !ok {
		column = "item_jobs.created_at"
	}
	direction := "DESC"
	if strings.EqualFold(filter.SortDir, "asc") {
		direction = "ASC"
	}
	db = db.Order(column + " " + direction)

	limit := clampLimit(filter.Limit, 200)
	var jobs []ItemJob
	if err := db.Offset(filter.Offset).Limit(limit).Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

type JobMetric struct {
	Status Status `json:"status"`
	Count  int64  `json:"count"`
}

func JobMetrics(ctx context.Context, statuses []Status, fromDate, toDate *time.Time) ([]JobMetric, error) {
	db := config.GetDB().WithContext(ctx).Model(&ItemJob{})
	if len(statuses) > 0 {
		db = db.Where("current_status IN ?", statuses)
	}
	if fromDate != nil {
		db = db.Where("created_at >= ?", *fromDate)
	}
	if toDate != nil {
		db = db.Where("created_at <= ?", *toDate)
	}
	var metrics []JobMetric
	err := db.Select("current_status AS status, COUNT(id) AS count").
		Group("current_status").
		Scan(&metrics).Error
	if err != nil {
		return nil, err
	}
	return metrics, nil
}

// ResolveFactoryName returns the job's assigned factory name, falling back to
// the factory of the most recent batch the job was packed into.
func ResolveFactoryName(ctx context.Context, job *ItemJob) (string, error) {
	if job.Factory != nil {
		return job.Factory.Name, nil
	}
	if job.FactoryID != nil {
		factory, err := GetFactoryById(ctx, *job.FactoryID)
		if err == nil {
			return factory.Name, nil
		}
		if !errors.Is(err, utils.ErrorRecordNotFound) {
			return "", err
		}
	}

	db := config.GetDB()
	var name string
	err := db.WithContext(ctx).
		Table("batch_items").
		Select("factories.name").
		Joins("JOIN batches ON batches.id = batch_items.batch_id").
		Joins("JOIN factories ON factories.id = batches.factory_id").
		Where("batch_items.job_id = ?", job.ID).
		Order("batch_items.added_at DESC").
		Limit(1).
		Scan(&name).Error
	if err != nil {
		return "", err
	}
	return name, nil
}
