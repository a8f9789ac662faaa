package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/tracking_backend/config"
	"gorm.io/gorm"
)

// StatusEvent is append-only. Rows are never updated or deleted; history is
// reconstructed by reading events in timestamp order.
type StatusEvent struct {
	ID              int       `gorm:"primary_key" json:"id"`
	JobID           int       `gorm:"not null;index" json:"job_id"`
	FromStatus      *Status   `gorm:"type:varchar(40)" json:"from_status"`
	ToStatus        Status    `gorm:"type:varchar(40);not null;index" json:"to_status"`
	ScannedByUserID int       `gorm:"not null;index" json:"scanned_by_user_id"`
	ScannedByRole   Role      `gorm:"type:varchar(20);not null" json:"scanned_by_role"`
	Timestamp       time.Time `gorm:"not null;index" json:"timestamp"`
	Location        string    `gorm:"size:120" json:"location"`
	DeviceID        string    `gorm:"size:120" json:"device_id"`
	Remarks         string    `gorm:"type:text" json:"remarks"`
	IncidentFlag    bool      `gorm:"not null;default:false" json:"incident_flag"`
	OverrideReason  string    `gorm:"type:text" json:"override_reason"`
}

func (StatusEvent) TableName() string {
	return "status_events"
}

// LatestHoldEvent returns the most recent event that put the job ON_HOLD,
// used to recover the status the job held before the hold.
func LatestHoldEvent(tx *gorm.DB, jobID int) (*StatusEvent, error) {
	var event StatusEvent
	err := tx.Where("job_id = ? AND to_status = ?", jobID, StatusOnHold).
		Order("timestamp DESC, id DESC").
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func ListJobEvents(ctx context.Context, jobID int) ([]StatusEvent, error) {
	db := config.GetDB()
	var events []StatusEvent
	err := db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("timestamp ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

type StatusEventFilter struct {
	JobID    *int
	UserID   *int
	Statuses []Status
	FromDate *time.Time
	ToDate   *time.Time
	Limit    int
	Offset   int
}

func ListStatusEvents(ctx context.Context, filter *StatusEventFilter) ([]StatusEvent, error) {
	db := config.GetDB().WithContext(ctx).Model(&StatusEvent{})
	if filter.JobID != nil {
		db = db.Where("job_id = ?", *filter.JobID)
	}
	if filter.UserID != nil {
		db = db.Where("scanned_by_user_id = ?", *filter.UserID)
	}
	if len(filter.Statuses) > 0 {
		db = db.Where("to_status IN ?", filter.Statuses)
	}
	if filter.FromDate != nil {
		db = db.Where("timestamp >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		db = db.Where("timestamp <= ?", *filter.ToDate)
	}

	limit := clampLimit(filter.Limit, 500)
	var events []StatusEvent
	err := db.Order("timestamp DESC, id DESC").
		Offset(filter.Offset).
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
