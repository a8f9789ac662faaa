package models

import (
	"context"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/tracking_backend/config"
)

type Branch struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:120;not null;unique" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

const DefaultBranchName = "Main Branch"

var (
	defaultBranch   *Branch
	defaultBranchMu sync.Mutex
)

// EnsureDefaultBranch seeds the single-tenant default branch at startup.
// The unique name constraint makes the upsert idempotent under concurrent boot.
func EnsureDefaultBranch(ctx context.Context) (*Branch, error) {
	defaultBranchMu.Lock()
	defer defaultBranchMu.Unlock()

	if defaultBranch != nil {
		return defaultBranch, nil
	}

	db := config.GetDB()
	var branch Branch
	if err := db.WithContext(ctx).
		Where(Branch{Name: DefaultBranchName}).
		FirstOrCreate(&branch).Error; err != nil {
		return nil, err
	}
	defaultBranch = &branch
	return defaultBranch, nil
}

// DefaultBranch returns the branch resolved by EnsureDefaultBranch, falling
// back to a lookup when called before startup seeding (tests, seed commands).
func DefaultBranch(ctx context.Context) (*Branch, error) {
	defaultBranchMu.Lock()
	cached := defaultBranch
	defaultBranchMu.Unlock()
	if cached != nil {
		return cached, nil
	}
	return EnsureDefaultBranch(ctx)
}
