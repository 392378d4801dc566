package data

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LoadOrCreateIdentity returns the host identity, creating it on first use.
func LoadOrCreateIdentity(ctx context.Context, db *gorm.DB) (NodeIdentity, error) {
	var id NodeIdentity
	err := db.WithContext(ctx).Order("id").First(&id).Error
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return NodeIdentity{}, fmt.Errorf("load identity: %w", err)
	}

	id = NodeIdentity{MachineGUID: uuid.NewString(), NodeID: uuid.NewString()}
	if err := db.WithContext(ctx).Create(&id).Error; err != nil {
		return NodeIdentity{}, fmt.Errorf("create identity: %w", err)
	}
	return id, nil
}
