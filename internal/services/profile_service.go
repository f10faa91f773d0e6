// Package services: ProfileService
//
// This file implements the ProfileService, which manages the medical profile
// and its medication schedules. It validates and normalizes medicine fields,
// applies schedule defaults, and coordinates repository operations for
// adding, updating, removing, and wholesale-replacing medicines.
//
// Updates go through an explicit allow-listed field set (MedicineUpdate):
// only known columns can ever be written, so a client cannot inject arbitrary
// fields into a stored schedule.
//
// Service-level errors (e.g., ErrMedicineNotFound) are returned for
// predictable cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/rehabtrack/go-recovery-backend/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// defaultDurationDays is the schedule length applied when none is supplied.
const defaultDurationDays = 30

// ProfileRepo defines the repository contract required by ProfileService.
// Implementations are responsible for persistence of the profile aggregate.
type ProfileRepo interface {
	// GetProfile fetches a user's profile with medicines preloaded.
	GetProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.MedicalProfile, error)

	// CreateProfile inserts an empty profile row for the user.
	CreateProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.MedicalProfile, error)

	// UpdateProfileFields overwrites the surgery/health/notes text fields.
	UpdateProfileFields(ctx context.Context, db *gorm.DB, profileID, surgeryDetails, healthStatus, notes string) error

	// ListMedicines returns the profile's medicines in insertion order.
	ListMedicines(ctx context.Context, db *gorm.DB, profileID string) ([]domain.Medicine, error)

	// CreateMedicine appends a medicine row to the profile.
	CreateMedicine(ctx context.Context, db *gorm.DB, profileID string, m *domain.Medicine) (*domain.Medicine, error)

	// GetMedicine fetches a medicine by ID scoped to the profile.
	GetMedicine(ctx context.Context, db *gorm.DB, id, profileID string) (*domain.Medicine, error)

	// UpdateMedicineFields applies a column map to a medicine.
	UpdateMedicineFields(ctx context.Context, db *gorm.DB, id, profileID string, fields map[string]any) error

	// DeleteMedicine removes a medicine from the profile.
	DeleteMedicine(ctx context.Context, db *gorm.DB, id, profileID string) error

	// ReplaceMedicines swaps the profile's medicine list for the given one.
	ReplaceMedicines(ctx context.Context, db *gorm.DB, profileID string, meds []domain.Medicine) ([]domain.Medicine, error)
}

// ProfileService provides profile-level operations: reading the profile,
// managing the medication schedule list, and the wholesale profile
// replacement used by the medical-info form. It enforces name rules,
// time-of-day validation, and schedule defaults.
type ProfileService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the profile repository used by this service.
	Repo ProfileRepo

	// NameMaxLen caps stored medicine names by rune length.
	NameMaxLen int
	// NameLocale selects the locale used for name title-casing.
	NameLocale language.Tag
}

// NewProfileService constructs a ProfileService with sane defaults for
// medicine-name handling.
func NewProfileService(db *gorm.DB, r ProfileRepo) *ProfileService {
	return &ProfileService{
		DB:         db,
		Repo:       r,
		NameMaxLen: 120,
		NameLocale: language.Und,
	}
}

// MedicineInput carries the fields a caller may supply when adding a
// medicine. Optional fields are pointers so that "absent" is distinguishable
// from a zero value; absent fields receive schedule defaults.
type MedicineInput struct {
	Name            string
	Dosage          string
	Frequency       string
	Times           []string
	StartDate       *time.Time
	DurationDays    *int
	Active          *bool
	ReminderEnabled *bool
}

// MedicineUpdate is the allow-listed field set for partial updates. Nil
// fields are left untouched. There is deliberately no dynamic merge of
// arbitrary payload keys.
type MedicineUpdate struct {
	Name            *string
	Dosage          *string
	Frequency       *string
	Times           []string
	StartDate       *time.Time
	DurationDays    *int
	Active          *bool
	ReminderEnabled *bool
}

// Get returns the user's medical profile with medicines preloaded.
func (s *ProfileService) Get(ctx context.Context, userID string) (*domain.MedicalProfile, error) {
	p, err := s.Repo.GetProfile(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListMedicines returns the user's medication schedules. A user without a
// profile simply has no medicines yet, so an empty list is returned rather
// than an error.
func (s *ProfileService) ListMedicines(ctx context.Context, userID string) ([]domain.Medicine, error) {
	p, err := s.Repo.GetProfile(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []domain.Medicine{}, nil
		}
		return nil, err
	}
	if p.Medicines == nil {
		return []domain.Medicine{}, nil
	}
	return p.Medicines, nil
}

// AddMedicine validates in, applies schedule defaults, and appends the
// medicine to the user's profile, creating the profile on first use.
//
// Defaults for omitted fields: times = empty, startDate = now, duration = 30
// days, active = true, reminderEnabled = true.
func (s *ProfileService) AddMedicine(ctx context.Context, userID string, in MedicineInput) (*domain.Medicine, error) {
	name := s.canonicalName(in.Name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if err := validateTimes(in.Times); err != nil {
		return nil, err
	}
	if in.DurationDays != nil && *in.DurationDays < 0 {
		return nil, ErrNegativeDuration
	}

	p, err := s.ensureProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	m := &domain.Medicine{
		Name:            name,
		Dosage:          strings.TrimSpace(in.Dosage),
		Frequency:       strings.TrimSpace(in.Frequency),
		Times:           normalizeTimes(in.Times),
		StartDate:       time.Now().UTC(),
		DurationDays:    defaultDurationDays,
		Active:          true,
		ReminderEnabled: true,
	}
	if in.StartDate != nil {
		m.StartDate = in.StartDate.UTC()
	}
	if in.DurationDays != nil {
		m.DurationDays = *in.DurationDays
	}
	if in.Active != nil {
		m.Active = *in.Active
	}
	if in.ReminderEnabled != nil {
		m.ReminderEnabled = *in.ReminderEnabled
	}

	return s.Repo.CreateMedicine(ctx, s.DB, p.ID, m)
}

// UpdateMedicine merges the allow-listed fields of upd into the matching
// schedule entry and returns the updated row. It fails with
// ErrProfileNotFound when the user has no profile and ErrMedicineNotFound
// when the id does not match an entry on it; the profile is left unchanged
// in both cases.
func (s *ProfileService) UpdateMedicine(ctx context.Context, userID, medicineID string, upd MedicineUpdate) (*domain.Medicine, error) {
	fields := map[string]any{}
	if upd.Name != nil {
		name := s.canonicalName(*upd.Name)
		if name == "" {
			return nil, ErrEmptyName
		}
		fields["name"] = name
	}
	if upd.Dosage != nil {
		fields["dosage"] = strings.TrimSpace(*upd.Dosage)
	}
	if upd.Frequency != nil {
		fields["frequency"] = strings.TrimSpace(*upd.Frequency)
	}
	if upd.Times != nil {
		if err := validateTimes(upd.Times); err != nil {
			return nil, err
		}
		fields["times"] = normalizeTimes(upd.Times)
	}
	if upd.StartDate != nil {
		fields["start_date"] = upd.StartDate.UTC()
	}
	if upd.DurationDays != nil {
		if *upd.DurationDays < 0 {
			return nil, ErrNegativeDuration
		}
		fields["duration_days"] = *upd.DurationDays
	}
	if upd.Active != nil {
		fields["active"] = *upd.Active
	}
	if upd.ReminderEnabled != nil {
		fields["reminder_enabled"] = *upd.ReminderEnabled
	}

	p, err := s.Repo.GetProfile(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	if err := s.Repo.UpdateMedicineFields(ctx, s.DB, medicineID, p.ID, fields); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMedicineNotFound
		}
		return nil, err
	}

	m, err := s.Repo.GetMedicine(ctx, s.DB, medicineID, p.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMedicineNotFound
		}
		return nil, err
	}
	return m, nil
}

// RemoveMedicine deletes the matching schedule entry from the user's
// profile. Historical dose events referencing the entry are kept.
func (s *ProfileService) RemoveMedicine(ctx context.Context, userID, medicineID string) error {
	p, err := s.Repo.GetProfile(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProfileNotFound
		}
		return err
	}
	if err := s.Repo.DeleteMedicine(ctx, s.DB, medicineID, p.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMedicineNotFound
		}
		return err
	}
	return nil
}

// ReplaceProfile overwrites the profile's surgery details, health status, and
// notes, and swaps the full medicine list for the supplied one. Entries with
// a blank name are silently dropped; the remaining entries get the same
// defaults as AddMedicine. The profile is created on first submission.
//
// The text updates and the list swap run in one transaction so a failed
// submission never leaves a half-replaced profile.
func (s *ProfileService) ReplaceProfile(ctx context.Context, userID, surgeryDetails, healthStatus, notes string, meds []MedicineInput) (*domain.MedicalProfile, error) {
	rows := make([]domain.Medicine, 0, len(meds))
	for _, in := range meds {
		name := s.canonicalName(in.Name)
		if name == "" {
			continue // blank entries are dropped, not rejected
		}
		if err := validateTimes(in.Times); err != nil {
			return nil, err
		}
		if in.DurationDays != nil && *in.DurationDays < 0 {
			return nil, ErrNegativeDuration
		}
		m := domain.Medicine{
			Name:            name,
			Dosage:          strings.TrimSpace(in.Dosage),
			Frequency:       strings.TrimSpace(in.Frequency),
			Times:           normalizeTimes(in.Times),
			StartDate:       time.Now().UTC(),
			DurationDays:    defaultDurationDays,
			Active:          true,
			ReminderEnabled: true,
		}
		if in.StartDate != nil {
			m.StartDate = in.StartDate.UTC()
		}
		if in.DurationDays != nil {
			m.DurationDays = *in.DurationDays
		}
		if in.Active != nil {
			m.Active = *in.Active
		}
		if in.ReminderEnabled != nil {
			m.ReminderEnabled = *in.ReminderEnabled
		}
		rows = append(rows, m)
	}

	p, err := s.ensureProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.Repo.UpdateProfileFields(ctx, tx, p.ID, strings.TrimSpace(surgeryDetails), strings.TrimSpace(healthStatus), strings.TrimSpace(notes)); err != nil {
			return err
		}
		_, err := s.Repo.ReplaceMedicines(ctx, tx, p.ID, rows)
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, userID)
}

// ensureProfile returns the user's profile, creating an empty one when the
// user has none yet.
func (s *ProfileService) ensureProfile(ctx context.Context, userID string) (*domain.MedicalProfile, error) {
	p, err := s.Repo.GetProfile(ctx, s.DB, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return s.Repo.CreateProfile(ctx, s.DB, userID)
}

// canonicalName trims, collapses whitespace, title-cases per the configured
// locale, and clips a medicine name.
func (s *ProfileService) canonicalName(name string) string {
	name = whitespaceRE.ReplaceAllString(strings.TrimSpace(name), " ")
	if name == "" {
		return ""
	}
	name = cases.Title(s.localeOrDefault()).String(name)
	if s.NameMaxLen > 0 && utf8.RuneCountInString(name) > s.NameMaxLen {
		name = string([]rune(name)[:s.NameMaxLen])
	}
	return name
}

// localeOrDefault returns the configured casing locale or English if unset.
func (s *ProfileService) localeOrDefault() language.Tag {
	if s.NameLocale == language.Und {
		return language.English
	}
	return s.NameLocale
}

// normalizeTimes trims entries and guarantees a non-nil slice.
func normalizeTimes(times []string) []string {
	out := make([]string, 0, len(times))
	for _, t := range times {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// validateTimes checks every entry is a well-formed "HH:MM" string.
func validateTimes(times []string) error {
	for _, t := range times {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !timeOfDayRE.MatchString(t) {
			return ErrInvalidTime
		}
	}
	return nil
}

// timeOfDayRE matches 24h "HH:MM" times like "08:00" or "23:45".
var timeOfDayRE = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
