// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/rehabtrack/go-recovery-backend/internal/domain"
)

// EventsStats returns aggregate metadata for a user's dose events: the total
// number of rows and the maximum CreatedAt timestamp among them.
//
// Events are append-only, so (count, maxCreatedAt) changes exactly when the
// log grows, which makes the pair a weak-ETag source for the event query
// endpoint. When the user has no events, count is 0 and maxCreatedAt is nil.
func EventsStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxCreatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.DoseEvent{}).Where("user_id = ?", userID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}

// MedicinesStats returns aggregate metadata for a profile's medicines: the
// total number of rows and the maximum UpdatedAt timestamp among them. Used
// for conditional responses on the medicine list endpoint.
func MedicinesStats(ctx context.Context, db *gorm.DB, profileID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Medicine{}).Where("profile_id = ?", profileID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
