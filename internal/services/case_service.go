package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/permtrackhq/permtrack/internal/models"
)

// CaseService provides the read-only case snapshots the engine works from.
type CaseService struct {
	db *gorm.DB
}

// NewCaseService constructs a CaseService.
func NewCaseService(db *gorm.DB) (*CaseService, error) {
	if db == nil {
		return nil, errors.New("case service: db is required")
	}
	return &CaseService{db: db}, nil
}

// ListActive returns every open case with its RFI/RFE entries and recruitment
// methods preloaded. Closed cases are excluded here; soft-deleted cases never
// come back from gorm at all.
func (s *CaseService) ListActive(ctx context.Context) ([]models.PermCase, error) {
	var cases []models.PermCase
	if err := s.db.WithContext(ctx).
		Preload("RFIEntries").
		Preload("RFEEntries").
		Preload("RecruitmentMethods").
		Where("case_status <> ?", models.CaseStatusClosed).
		Order("created_at ASC").
		Find(&cases).Error; err != nil {
		return nil, fmt.Errorf("case service: list active cases: %w", err)
	}
	return cases, nil
}

// ListActiveForUser returns the user's open cases for digest generation.
func (s *CaseService) ListActiveForUser(ctx context.Context, userID string) ([]models.PermCase, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("case service: user id is required")
	}

	var cases []models.PermCase
	if err := s.db.WithContext(ctx).
		Preload("RFIEntries").
		Preload("RFEEntries").
		Preload("RecruitmentMethods").
		Where("user_id = ? AND case_status <> ?", userID, models.CaseStatusClosed).
		Order("created_at ASC").
		Find(&cases).Error; err != nil {
		return nil, fmt.Errorf("case service: list cases for user: %w", err)
	}
	return cases, nil
}

// UpdatedSince returns the user's cases touched after the cutoff, used for
// the "recent changes" section of the weekly digest.
func (s *CaseService) UpdatedSince(ctx context.Context, userID string, cutoff time.Time) ([]models.PermCase, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("case service: user id is required")
	}

	var cases []models.PermCase
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND updated_at > ?", userID, cutoff).
		Order("updated_at DESC").
		Find(&cases).Error; err != nil {
		return nil, fmt.Errorf("case service: list updated cases: %w", err)
	}
	return cases, nil
}

// ListUsers returns all active users keyed by id for the reminder pass.
func (s *CaseService) ListUsers(ctx context.Context) (map[string]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("case service: list users: %w", err)
	}

	byID := make(map[string]models.User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}
	return byID, nil
}
