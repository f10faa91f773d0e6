// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the DoseEvent
// model.
//
// Dose events are append-only: the repository deliberately exposes no update
// or delete operation for them (audit-trail immutability).
//
// Query ordering: scheduled_date descending (most recent first), ties broken
// by insertion order (created_at, then id).
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rehabtrack/go-recovery-backend/internal/domain"
)

// InsertDoseEvent appends a dose event row. The event ID is a randomly
// generated UUID, CreatedAt is set to UTC, and ActualTime defaults to the
// recording time when unset. The passed value is updated in place and
// returned.
func InsertDoseEvent(ctx context.Context, db *gorm.DB, ev *domain.DoseEvent) (*domain.DoseEvent, error) {
	now := time.Now().UTC()
	ev.ID = uuid.NewString()
	ev.CreatedAt = now
	if ev.ActualTime.IsZero() {
		ev.ActualTime = now
	}
	if err := db.WithContext(ctx).Create(ev).Error; err != nil {
		return nil, err
	}
	return ev, nil
}

// GetDoseEvent fetches a single event by ID scoped to a user. Returns
// ErrNotFound when absent. Used to serve idempotent replays.
func GetDoseEvent(ctx context.Context, db *gorm.DB, id, userID string) (*domain.DoseEvent, error) {
	var ev domain.DoseEvent
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&ev).Error
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// ListDoseEvents returns all events for userID, optionally restricted to the
// inclusive [start, end] range on scheduled_date. A nil bound leaves that side
// open.
func ListDoseEvents(ctx context.Context, db *gorm.DB, userID string, start, end *time.Time) ([]domain.DoseEvent, error) {
	q := db.WithContext(ctx).Where("user_id = ?", userID)
	if start != nil {
		q = q.Where("scheduled_date >= ?", *start)
	}
	if end != nil {
		q = q.Where("scheduled_date <= ?", *end)
	}
	var out []domain.DoseEvent
	err := q.Order("scheduled_date DESC, created_at ASC, id ASC").Find(&out).Error
	return out, err
}

// ListDoseEventsWindow returns events for userID with scheduled_date in the
// half-open window [from, before). Used for per-day tallies.
func ListDoseEventsWindow(ctx context.Context, db *gorm.DB, userID string, from, before time.Time) ([]domain.DoseEvent, error) {
	var out []domain.DoseEvent
	err := db.WithContext(ctx).
		Where("user_id = ? AND scheduled_date >= ? AND scheduled_date < ?", userID, from, before).
		Order("scheduled_date DESC, created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// ListDoseEventsSince returns events for userID with scheduled_date at or
// after since, most recent first. Used by the streak computation.
func ListDoseEventsSince(ctx context.Context, db *gorm.DB, userID string, since time.Time) ([]domain.DoseEvent, error) {
	var out []domain.DoseEvent
	err := db.WithContext(ctx).
		Where("user_id = ? AND scheduled_date >= ?", userID, since).
		Order("scheduled_date DESC, created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}
