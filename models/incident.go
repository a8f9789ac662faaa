package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/tracking_backend/config"
	"bitbucket.org/mmdatafocus/tracking_backend/utils"
	"gorm.io/gorm"
)

type Incident struct {
	ID              int            `gorm:"primary_key" json:"id"`
	JobID           *int           `gorm:"index" json:"job_id"`
	BatchID         *int           `gorm:"index" json:"batch_id"`
	Type            IncidentType   `gorm:"type:varchar(20);not null" json:"type"`
	Description     string         `gorm:"type:text;not null" json:"description"`
	ReportedBy      int            `gorm:"not null" json:"reported_by"`
	ResolvedAt      *time.Time     `json:"resolved_at"`
	ResolutionNotes string         `gorm:"type:text" json:"resolution_notes"`
	Attachments     PhotoList      `gorm:"type:json" json:"attachments"`
	Status          IncidentStatus `gorm:"type:varchar(20);not null;default:'OPEN'" json:"status"`
	CreatedAt       time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}

type NewIncident struct {
	JobCode     string       `json:"job_code"`
	BatchID     *int         `json:"batch_id"`
	Type        IncidentType `json:"type" binding:"required"`
	Description string       `json:"description" binding:"required"`
	Attachments PhotoList    `json:"attachments"`
}

func CreateIncident(ctx context.Context, input *NewIncident, reportedBy int) (*Incident, error) {
	if !input.Type.Valid() {
		return nil, errors.New("invalid incident type")
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, errors.New("incident description is required")
	}

	incident := Incident{
		Type:        input.Type,
		Description: input.Description,
		ReportedBy:  reportedBy,
		Attachments: input.Attachments,
		Status:      IncidentStatusOpen,
	}
	if input.JobCode != "" {
		job, err := GetJobByCode(ctx, input.JobCode)
		if err != nil {
			return nil, err
		}
		incident.JobID = &job.ID
	}
	if input.BatchID != nil {
		if err := utils.ValidateResourceId[Batch](ctx, *input.BatchID); err != nil {
			return nil, err
		}
		incident.BatchID = input.BatchID
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&incident).Error; err != nil {
		return nil, err
	}
	return &incident, nil
}

func ResolveIncident(ctx context.Context, id int, notes string) (*Incident, error) {
	db := config.GetDB()
	var incident Incident
	if err := db.WithContext(ctx).Where("id = ?", id).First(&incident).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if incident.Status == IncidentStatusResolved {
		return &incident, nil
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":           IncidentStatusResolved,
		"resolved_at":      now,
		"resolution_notes": notes,
	}
	if err := db.WithContext(ctx).Model(&incident).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &incident, nil
}

type IncidentFilter struct {
	Status  *IncidentStatus
	Type    *IncidentType
	JobID   *int
	BatchID *int
	Limit   int
	Offset  int
}

func ListIncidents(ctx context.Context, filter *IncidentFilter) ([]Incident, error) {
	db := config.GetDB().WithContext(ctx).Model(&Incident{})
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.Type != nil {
		db = db.Where("type = ?", *filter.Type)
	}
	if filter.JobID != nil {
		db = db.Where("job_id = ?", *filter.JobID)
	}
	if filter.BatchID != nil {
		db = db.Where("batch_id = ?", *filter.BatchID)
	}

	limit := clampLimit(filter.Limit, 200)
	var incidents []Incident
	err := db.Order("created_at DESC").
		Offset(filter.Offset).
		Limit(limit).
		Find(&incidents).Error
	if err != nil {
		return nil, err
	}
	return incidents, nil
}
