package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/tracking_backend/config"
	"bitbucket.org/mmdatafocus/tracking_backend/utils"
	"gorm.io/gorm"
)

type Factory struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Name        string    `gorm:"size:120;not null;unique" json:"name" binding:"required"`
	ContactInfo string    `gorm:"size:255" json:"contact_info"`
	IsActive    *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewFactory struct {
	Name        string `json:"name" binding:"required"`
	ContactInfo string `json:"contact_info"`
}

type UpdateFactoryInput struct {
	Name        *string `json:"name"`
	ContactInfo *string `json:"contact_info"`
	IsActive    *bool   `json:"is_active"`
}

func CreateFactory(ctx context.Context, input *NewFactory) (*Factory, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.New("factory name is required")
	}
	if existing, err := GetFactoryByName(ctx, name); err == nil && existing != nil {
		return nil, &utils.DuplicateValueError{Column: "name"}
	}

	db := config.GetDB()
	factory := Factory{
		Name:        name,
		ContactInfo: strings.TrimSpace(input.ContactInfo),
		IsActive:    utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&factory).Error; err != nil {
		return nil, err
	}
	return &factory, nil
}

func UpdateFactory(ctx context.Context, id int, input *UpdateFactoryInput) (*Factory, error) {
	db := config.GetDB()
	factory, err := GetFactoryById(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, errors.New("factory name is required")
		}
		if existing, err := GetFactoryByName(ctx, name); err == nil && existing.ID != id {
			return nil, &utils.DuplicateValueError{Column: "name"}
		}
		updates["name"] = name
	}
	if input.ContactInfo != nil {
		updates["contact_info"] = strings.TrimSpace(*input.ContactInfo)
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if len(updates) == 0 {
		return factory, nil
	}

	if err := db.WithContext(ctx).Model(factory).Updates(updates).Error; err != nil {
		return nil, err
	}
	// Cache invalidation is best effort; a miss heals at the TTL.
	_ = config.RemoveRedisKey(factoryCacheKey(id))
	return factory, nil
}

const factoryCacheTTL = 5 * time.Minute

func factoryCacheKey(id int) string {
	return fmt.Sprintf("factory:%d", id)
}

// GetFactoryById reads through the Redis cache. Factories change rarely but
// are consulted on every create, edit and dispatch scan.
func GetFactoryById(ctx context.Context, id int) (*Factory, error) {
	var cached Factory
	if hit, err := config.GetRedisObject(factoryCacheKey(id), &cached); err == nil && hit {
		return &cached, nil
	}

	db := config.GetDB()
	var factory Factory
	if err := db.WithContext(ctx).Where("id = ?", id).First(&factory).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	_ = config.SetRedisObject(factoryCacheKey(id), factory, factoryCacheTTL)
	return &factory, nil
}

// GetFactoryByName matches case-insensitively so "ABC Gems" and "abc gems"
// resolve to the same factory on scan.
func GetFactoryByName(ctx context.Context, name string) (*Factory, error) {
	db := config.GetDB()
	var factory Factory
	err := db.WithContext(ctx).
		Where("LOWER(name) = LOWER(?)", strings.TrimSpace(name)).
		First(&factory).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &factory, nil
}

func ListFactories(ctx context.Context, activeOnly bool) ([]Factory, error) {
	db := config.GetDB().WithContext(ctx)
	if activeOnly {
		db = db.Where("is_active = ?", true)
	}
	var factories []Factory
	if err := db.Order("name ASC").Find(&factories).Error; err != nil {
		return nil, err
	}
	return factories, nil
}
