package data

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

const claimStateID = 1

type ClaimStore struct {
	db *gorm.DB
}

func NewClaimStore(db *gorm.DB) *ClaimStore {
	return &ClaimStore{db: db}
}

// Load returns the persisted claim; a host that was never claimed gets the
// zero record.
func (s *ClaimStore) Load(ctx context.Context) (ClaimState, error) {
	var st ClaimState
	err := s.db.WithContext(ctx).First(&st, claimStateID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ClaimState{ID: claimStateID}, nil
	}
	if err != nil {
		return ClaimState{}, fmt.Errorf("load claim state: %w", err)
	}
	return st, nil
}

// SaveClaim records a successful claim and clears any ban.
func (s *ClaimStore) SaveClaim(ctx context.Context, claimID, url string, rooms []string) (ClaimState, error) {
	st := ClaimState{
		ID:      claimStateID,
		Claimed: true,
		ClaimID: claimID,
		URL:     url,
		Rooms:   strings.Join(rooms, ","),
	}
	if err := s.db.WithContext(ctx).Save(&st).Error; err != nil {
		return ClaimState{}, fmt.Errorf("save claim state: %w", err)
	}
	return st, nil
}

// SetBanned marks the claim as rejected by the cloud.
func (s *ClaimStore) SetBanned(ctx context.Context, reason string) error {
	st, err := s.Load(ctx)
	if err != nil {
		return err
	}
	st.Banned = true
	st.Reason = Clip(reason, MaxReasonLen)
	if err := s.db.WithContext(ctx).Save(&st).Error; err != nil {
		return fmt.Errorf("save claim state: %w", err)
	}
	return nil
}
