package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/tracking_backend/config"
	"bitbucket.org/mmdatafocus/tracking_backend/utils"
	"gorm.io/gorm"
)

// RefreshToken rows back the rotating refresh flow. A token is single use:
// redeeming it revokes the row and issues a replacement jti.
type RefreshToken struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Jti       string    `gorm:"size:64;not null;unique;index" json:"jti"`
	UserID    int       `gorm:"not null;index" json:"user_id"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	Revoked   bool      `gorm:"not null;default:false" json:"revoked"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func CreateRefreshToken(ctx context.Context, userID int, jti string, expiresAt time.Time) error {
	db := config.GetDB()
	token := RefreshToken{
		Jti:       jti,
		UserID:    userID,
		ExpiresAt: expiresAt,
	}
	return db.WithContext(ctx).Create(&token).Error
}

func GetRefreshToken(ctx context.Context, jti string) (*RefreshToken, error) {
	db := config.GetDB()
	var token RefreshToken
	if err := db.WithContext(ctx).Where("jti = ?", jti).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &token, nil
}

func RevokeRefreshToken(ctx context.Context, jti string) error {
	db := config.GetDB()
	return db.WithContext(ctx).
		Model(&RefreshToken{}).
		Where("jti = ?", jti).
		Update("revoked", true).Error
}

func RevokeUserRefreshTokens(ctx context.Context, userID int) error {
	db := config.GetDB()
	return db.WithContext(ctx).
		Model(&RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true).Error
}
