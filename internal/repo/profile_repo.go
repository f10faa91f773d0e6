// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// MedicalProfile aggregate and its embedded Medicine rows.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a profile or medicine is not found, functions return
//     gorm.ErrRecordNotFound (also exported here as ErrNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// The repository is wrapped by services.ProfileService, which enforces the
// business rules (name validation, defaulting, allow-listed updates).
package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rehabtrack/go-recovery-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// GetProfile fetches the medical profile owned by userID, with its medicines
// preloaded in insertion order. If no profile exists, it returns ErrNotFound.
func GetProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.MedicalProfile, error) {
	var p domain.MedicalProfile
	err := db.WithContext(ctx).
		Preload("Medicines", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC, id ASC")
		}).
		Where("user_id = ?", userID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProfile inserts an empty profile row for userID. The profile ID is a
// randomly generated UUID and CreatedAt is set to UTC.
func CreateProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.MedicalProfile, error) {
	p := &domain.MedicalProfile{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateProfileFields overwrites the three free-text fields of a profile.
func UpdateProfileFields(ctx context.Context, db *gorm.DB, profileID, surgeryDetails, healthStatus, notes string) error {
	res := db.WithContext(ctx).
		Model(&domain.MedicalProfile{}).
		Where("id = ?", profileID).
		Updates(map[string]any{
			"surgery_details": surgeryDetails,
			"health_status":   healthStatus,
			"notes":           notes,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListMedicines returns all medicines on a profile in insertion order.
func ListMedicines(ctx context.Context, db *gorm.DB, profileID string) ([]domain.Medicine, error) {
	var out []domain.Medicine
	err := db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// CreateMedicine appends a medicine row to a profile. The ID is a randomly
// generated UUID and CreatedAt is set to UTC. The passed value is updated in
// place and returned.
func CreateMedicine(ctx context.Context, db *gorm.DB, profileID string, m *domain.Medicine) (*domain.Medicine, error) {
	m.ID = uuid.NewString()
	m.ProfileID = profileID
	m.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// GetMedicine fetches a single medicine by its ID scoped to a profile.
// Returns ErrNotFound when absent.
func GetMedicine(ctx context.Context, db *gorm.DB, id, profileID string) (*domain.Medicine, error) {
	var m domain.Medicine
	err := db.WithContext(ctx).
		Where("id = ? AND profile_id = ?", id, profileID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMedicineFields applies a column map to a medicine scoped to a
// profile. If no rows are affected (medicine missing or not on this profile),
// it returns ErrNotFound. The caller is responsible for restricting the map
// to allowed columns.
func UpdateMedicineFields(ctx context.Context, db *gorm.DB, id, profileID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	// Map-based Updates bypass the model's json serializer, so the times
	// slice must be marshaled here before it reaches the driver.
	if v, ok := fields["times"].([]string); ok {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		fields["times"] = string(b)
	}
	res := db.WithContext(ctx).
		Model(&domain.Medicine{}).
		Where("id = ? AND profile_id = ?", id, profileID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteMedicine removes a medicine from a profile (soft delete). If no rows
// are affected, it returns ErrNotFound.
func DeleteMedicine(ctx context.Context, db *gorm.DB, id, profileID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND profile_id = ?", id, profileID).
		Delete(&domain.Medicine{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ReplaceMedicines drops every medicine on the profile and inserts the given
// list in order. IDs and timestamps are assigned here. Intended to run inside
// a transaction together with UpdateProfileFields.
func ReplaceMedicines(ctx context.Context, db *gorm.DB, profileID string, meds []domain.Medicine) ([]domain.Medicine, error) {
	tx := db.WithContext(ctx)
	if err := tx.Where("profile_id = ?", profileID).Delete(&domain.Medicine{}).Error; err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	for i := range meds {
		meds[i].ID = uuid.NewString()
		meds[i].ProfileID = profileID
		// Preserve submission order under a shared timestamp.
		meds[i].CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
	}
	if len(meds) == 0 {
		return []domain.Medicine{}, nil
	}
	if err := tx.Create(&meds).Error; err != nil {
		return nil, err
	}
	return meds, nil
}
