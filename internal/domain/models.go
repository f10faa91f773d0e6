// Package domain defines the persistence models for medical profiles,
// medication schedules, and dose events. These types are mapped with GORM
// and form the core data layer of the recovery tracker.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Dose event statuses. A dose outcome is always exactly one of these.
const (
	StatusTaken   = "taken"
	StatusSkipped = "skipped"
	StatusMissed  = "missed"
)

// ValidStatus reports whether s is one of the three recognized dose outcomes.
func ValidStatus(s string) bool {
	switch s {
	case StatusTaken, StatusSkipped, StatusMissed:
		return true
	}
	return false
}

// MedicalProfile is the single medical record a user maintains: surgery
// details, free-text health status and notes, plus the list of medication
// schedules the user is currently on. A user has at most one profile
// (enforced by unique index on UserID).
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: identifier of the profile owner; unique per user.
//   - SurgeryDetails / HealthStatus / Notes: free-text medical context,
//     fully replaced on each profile submission.
//   - Medicines: owned medication schedules; cascade-deleted with the profile.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker.
type MedicalProfile struct {
	ID             string         `json:"id"              gorm:"type:char(36);primaryKey"`
	UserID         string         `json:"user_id"         gorm:"type:varchar(64);not null;uniqueIndex:ux_profile_user"`
	SurgeryDetails string         `json:"surgery_details" gorm:"type:text"`
	HealthStatus   string         `json:"health_status"   gorm:"type:text"`
	Notes          string         `json:"notes"           gorm:"type:text"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-"               gorm:"index"`

	// Medicines are exclusively owned by the profile; they have no identity
	// outside it and are removed together with it.
	Medicines []Medicine `json:"medicines" gorm:"foreignKey:ProfileID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for MedicalProfile.
func (MedicalProfile) TableName() string { return "medical_profiles" }

// Medicine is one recurring medication schedule on a profile: what to take,
// how often, at which times of day, starting when, and for how long.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - ProfileID: foreign key to the owning profile (indexed).
//   - Name: required, non-empty medication name.
//   - Dosage / Frequency: free text (e.g. "500mg", "twice daily").
//   - Times: ordered times of day as "HH:MM" strings, stored as JSON.
//   - StartDate: first day of the schedule.
//   - DurationDays: schedule length in days (>= 0).
//   - Active: an inactive schedule generates no new dose instances.
//   - ReminderEnabled: whether the client should surface reminders.
type Medicine struct {
	ID              string         `json:"id"               gorm:"type:char(36);primaryKey"`
	ProfileID       string         `json:"-"                gorm:"type:char(36);not null;index:idx_profile_medicines"`
	Name            string         `json:"name"             gorm:"type:varchar(255);not null"`
	Dosage          string         `json:"dosage"           gorm:"type:varchar(255)"`
	Frequency       string         `json:"frequency"        gorm:"type:varchar(255)"`
	Times           []string       `json:"times"            gorm:"serializer:json;type:text"`
	StartDate       time.Time      `json:"start_date"`
	DurationDays    int            `json:"duration_days"    gorm:"not null;default:30"`
	Active          bool           `json:"active"           gorm:"not null;default:true"`
	ReminderEnabled bool           `json:"reminder_enabled" gorm:"not null;default:true"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-"                gorm:"index"`
}

// TableName returns the database table name for Medicine.
func (Medicine) TableName() string { return "medicines" }

// DoseEvent is one observed outcome for a scheduled dose instance. Events are
// append-only: they are never edited or deleted, forming the audit trail the
// adherence analytics are computed from.
//
// MedicineID deliberately carries no foreign-key constraint and MedicineName
// is a denormalized copy: historical events must survive schedule edits and
// deletion.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: identifier of the user the dose belongs to (indexed).
//   - MedicineID: the schedule this dose instance was derived from.
//   - MedicineName: medicine name at recording time.
//   - ScheduledDate / ScheduledTime: when the dose was due ("HH:MM" string).
//   - ActualTime: when the outcome was observed; defaults to recording time.
//   - Status: "taken", "skipped", or "missed" (enforced by DB constraint).
//   - CreatedAt: insertion timestamp; also the tie-breaker for query order.
type DoseEvent struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	UserID        string    `json:"user_id"        gorm:"type:varchar(64);not null;index:idx_user_events,priority:1"`
	MedicineID    string    `json:"medicine_id"    gorm:"type:char(36);not null"`
	MedicineName  string    `json:"medicine_name"  gorm:"type:varchar(255)"`
	ScheduledDate time.Time `json:"scheduled_date" gorm:"not null;index:idx_user_events,priority:2"`
	ScheduledTime string    `json:"scheduled_time" gorm:"type:varchar(5)"`
	ActualTime    time.Time `json:"actual_time"`
	Status        string    `json:"status"         gorm:"type:varchar(16);not null;check:status IN ('taken','skipped','missed')"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName returns the database table name for DoseEvent.
func (DoseEvent) TableName() string { return "dose_events" }
