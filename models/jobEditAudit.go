package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/tracking_backend/config"
)

// FieldChange records one edited field as its before and after values.
type FieldChange struct {
	From interface{} `json:"from"`
	To   interface{} `json:"to"`
}

type ChangeSet map[string]FieldChange

func (c ChangeSet) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *ChangeSet) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	case nil:
		*c = nil
		return nil
	}
	return fmt.Errorf("cannot scan %T into ChangeSet", value)
}

type JobEditAudit struct {
	ID             int       `gorm:"primary_key" json:"id"`
	JobID          int       `gorm:"not null;index" json:"job_id"`
	EditedByUserID int       `gorm:"not null" json:"edited_by_user_id"`
	EditedByRole   Role      `gorm:"type:varchar(20);not null" json:"edited_by_role"`
	EditedAt       time.Time `gorm:"autoCreateTime;index" json:"edited_at"`
	Reason         string    `gorm:"type:text;not null" json:"reason"`
	Changes        ChangeSet `gorm:"type:json;not null" json:"changes"`
}

func (JobEditAudit) TableName() string {
	return "job_edit_audits"
}

type JobEditAuditFilter struct {
	JobID    *int
	UserID   *int
	FromDate *time.Time
	ToDate   *time.Time
	Limit    int
	Offset   int
}

func ListJobEditAudits(ctx context.Context, filter *JobEditAuditFilter) ([]JobEditAudit, error) {
	db := config.GetDB().WithContext(ctx).Model(&JobEditAudit{})
	if filter.JobID != nil {
		db = db.Where("job_id = ?", *filter.JobID)
	}
	if filter.UserID != nil {
		db = db.Where("edited_by_user_id = ?", *filter.UserID)
	}
	if filter.FromDate != nil {
		db = db.Where("edited_at >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		db = db.Where("edited_at <= ?", *filter.ToDate)
	}

	limit := clampLimit(filter.Limit, 200)
	var audits []JobEditAudit
	err := db.Order("edited_at DESC, id DESC").
		Offset(filter.Offset).
		Limit(limit).
		Find(&audits).Error
	if err != nil {
		return nil, err
	}
	return audits, nil
}
