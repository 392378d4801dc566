package data

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

func RecordAttempt(ctx context.Context, db *gorm.DB, a *ClaimAttempt) error {
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// RecentAttempts returns up to limit attempts, newest first.
func RecentAttempts(ctx context.Context, db *gorm.DB, limit int) ([]ClaimAttempt, error) {
	var out []ClaimAttempt
	err := db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("recent attempts: %w", err)
	}
	return out, nil
}
