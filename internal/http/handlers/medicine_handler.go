// Medicine HTTP handlers.
//
// This file exposes REST endpoints for medication schedules:
//   - GET    /medicines        (list, ETag support)
//   - POST   /medicines        (add)
//   - PUT    /medicines/{id}   (partial update, strict field set)
//   - DELETE /medicines/{id}   (remove)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rehabtrack/go-recovery-backend/internal/domain"
	"github.com/rehabtrack/go-recovery-backend/internal/repo"
	"github.com/rehabtrack/go-recovery-backend/internal/services"
	"github.com/rehabtrack/go-recovery-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// ProfileService defines profile and medication-schedule operations consumed
// by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ProfileService interface {
	// Get returns the user's medical profile with medicines preloaded.
	Get(ctx context.Context, userID string) (*domain.MedicalProfile, error)
	// ListMedicines returns the user's medication schedules.
	ListMedicines(ctx context.Context, userID string) ([]domain.Medicine, error)
	// AddMedicine appends a schedule entry, creating the profile on first use.
	AddMedicine(ctx context.Context, userID string, in services.MedicineInput) (*domain.Medicine, error)
	// UpdateMedicine merges allow-listed fields into a schedule entry.
	UpdateMedicine(ctx context.Context, userID, medicineID string, upd services.MedicineUpdate) (*domain.Medicine, error)
	// RemoveMedicine deletes a schedule entry; dose history is kept.
	RemoveMedicine(ctx context.Context, userID, medicineID string) error
	// ReplaceProfile overwrites the profile text fields and medicine list.
	ReplaceProfile(ctx context.Context, userID, surgeryDetails, healthStatus, notes string, meds []services.MedicineInput) (*domain.MedicalProfile, error)
}

// EventService defines dose-event recording and query operations.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type EventService interface {
	// Record appends a dose outcome to the user's event log.
	Record(ctx context.Context, userID string, in services.DoseEventInput) (*domain.DoseEvent, error)
	// Get returns a single event by ID, scoped to the user.
	Get(ctx context.Context, userID, eventID string) (*domain.DoseEvent, error)
	// List returns events, optionally restricted to a scheduled-date range.
	List(ctx context.Context, userID string, start, end *time.Time) ([]domain.DoseEvent, error)
}

// StatsService defines the adherence analytics consumed by HTTP handlers.
type StatsService interface {
	// Summarize assembles today's tally, the adherence rate, and streaks.
	Summarize(ctx context.Context, userID string) (*services.Summary, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for profiles, medicines, dose events, and
// adherence stats. It depends on abstract service interfaces to keep transport
// concerns separate from business logic.
type Handlers struct {
	profileSvc ProfileService
	eventSvc   EventService
	statsSvc   StatsService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(profileSvc ProfileService, eventSvc EventService, statsSvc StatsService) *Handlers {
	return &Handlers{profileSvc: profileSvc, eventSvc: eventSvc, statsSvc: statsSvc}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// MedicineRequest is the JSON payload for adding a medication schedule.
// Omitted optional fields receive schedule defaults (30-day duration, active,
// reminders on, start today).
type MedicineRequest struct {
	// Name of the medication (required, non-empty).
	Name string `json:"name" example:"Amoxicillin"`
	// Dosage free text.
	Dosage string `json:"dosage" example:"500mg"`
	// Frequency free text.
	Frequency string `json:"frequency" example:"twice daily"`
	// Times of day as HH:MM strings.
	Times []string `json:"times" example:"08:00,20:00"`
	// StartDate in YYYY-MM-DD or RFC3339 form; defaults to today.
	StartDate *string `json:"start_date" example:"2025-06-01"`
	// DurationDays of the schedule; defaults to 30.
	DurationDays *int `json:"duration_days" example:"14"`
	// Active toggles whether the schedule generates dose instances.
	Active *bool `json:"active"`
	// ReminderEnabled toggles client-side reminders.
	ReminderEnabled *bool `json:"reminder_enabled"`
}

// UpdateMedicineRequest is the JSON payload for a partial schedule update.
// Only the listed fields can be changed; unknown fields are rejected.
type UpdateMedicineRequest struct {
	Name            *string  `json:"name"`
	Dosage          *string  `json:"dosage"`
	Frequency       *string  `json:"frequency"`
	Times           []string `json:"times"`
	StartDate       *string  `json:"start_date"`
	DurationDays    *int     `json:"duration_days"`
	Active          *bool    `json:"active"`
	ReminderEnabled *bool    `json:"reminder_enabled"`
}

// ListMedicinesResponse wraps the user's medication schedules.
type ListMedicinesResponse struct {
	Medicines []domain.Medicine `json:"medicines"`
}

//
// Helpers
//

// toMedicineInput converts the request DTO into the service input, parsing
// the optional start date.
func toMedicineInput(req MedicineRequest) (services.MedicineInput, error) {
	in := services.MedicineInput{
		Name:            req.Name,
		Dosage:          req.Dosage,
		Frequency:       req.Frequency,
		Times:           req.Times,
		DurationDays:    req.DurationDays,
		Active:          req.Active,
		ReminderEnabled: req.ReminderEnabled,
	}
	if req.StartDate != nil && strings.TrimSpace(*req.StartDate) != "" {
		t, err := utils.ParseDate(*req.StartDate)
		if err != nil {
			return services.MedicineInput{}, err
		}
		in.StartDate = &t
	}
	return in, nil
}

// decodeStrict unmarshals the request body into dst, rejecting unknown fields.
func decodeStrict(c *gin.Context, dst any) error {
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// mapMedicineErr translates service errors into HTTP responses. Returns true
// when the error was handled.
func mapMedicineErr(c *gin.Context, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, services.ErrProfileNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "medical profile not found")
	case errors.Is(err, services.ErrMedicineNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "medicine not found")
	case errors.Is(err, services.ErrEmptyName),
		errors.Is(err, services.ErrInvalidTime),
		errors.Is(err, services.ErrNegativeDuration):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		return false
	}
	return true
}

//
// Handlers
//

// ListMedicines godoc
// @ID          listMedicines
// @Summary     List medication schedules
// @Description Returns the user's medication schedules. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Medicines
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
//
// @Success     200  {object} handlers.ListMedicinesResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /medicines [get]
func (h *Handlers) ListMedicines(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, ok := h.profileSvc.(*services.ProfileService); ok {
		db = svc.DB
	}
	if db != nil {
		if p, err := repo.GetProfile(ctx, db, uid); err == nil {
			count, maxTS, err := repo.MedicinesStats(ctx, db, p.ID)
			if err == nil {
				var ts int64
				if maxTS != nil {
					ts = maxTS.Unix()
				}
				etag := fmt.Sprintf(`W/"medicines:%s:%d:%d"`, uid, count, ts)
				c.Header("ETag", etag)
				if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
					c.Status(http.StatusNotModified)
					return
				}
			}
		}
	}

	items, err := h.profileSvc.ListMedicines(ctx, uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list medicines")
		return
	}
	ok(c, http.StatusOK, ListMedicinesResponse{Medicines: items})
}

// AddMedicine godoc
// @ID          addMedicine
// @Summary     Add a medication schedule
// @Description Appends a medication schedule to the user's profile, creating the profile on first use.
// @Tags        Medicines
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.MedicineRequest  true  "Medicine payload"
//
// @Success     201  {object} domain.Medicine
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /medicines [post]
func (h *Handlers) AddMedicine(c *gin.Context) {
	var req MedicineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	in, err := toMedicineInput(req)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "start_date must be YYYY-MM-DD or RFC3339")
		return
	}

	m, err := h.profileSvc.AddMedicine(c.Request.Context(), userID(c), in)
	if err != nil {
		if mapMedicineErr(c, err) {
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, "could not add medicine")
		return
	}
	ok(c, http.StatusCreated, m)
}

// UpdateMedicine godoc
// @ID          updateMedicine
// @Summary     Update a medication schedule
// @Description Applies a partial update to a schedule entry. Only the documented fields are accepted; unknown fields are rejected.
// @Tags        Medicines
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"   example(user123)
// @Param       id         path    string  true  "Medicine ID (UUID)"      format(uuid)
// @Param       body       body    handlers.UpdateMedicineRequest  true  "Fields to update"
//
// @Success     200  {object} domain.Medicine
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Medicine not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /medicines/{id} [put]
func (h *Handlers) UpdateMedicine(c *gin.Context) {
	medicineID := c.Param("id")
	if _, err := uuid.Parse(medicineID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "medicine id must be a UUID")
		return
	}

	var req UpdateMedicineRequest
	if err := decodeStrict(c, &req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid or unknown fields in body")
		return
	}

	upd := services.MedicineUpdate{
		Name:            req.Name,
		Dosage:          req.Dosage,
		Frequency:       req.Frequency,
		Times:           req.Times,
		DurationDays:    req.DurationDays,
		Active:          req.Active,
		ReminderEnabled: req.ReminderEnabled,
	}
	if req.StartDate != nil {
		t, err := utils.ParseDate(*req.StartDate)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "start_date must be YYYY-MM-DD or RFC3339")
			return
		}
		upd.StartDate = &t
	}

	m, err := h.profileSvc.UpdateMedicine(c.Request.Context(), userID(c), medicineID, upd)
	if err != nil {
		if mapMedicineErr(c, err) {
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, "could not update medicine")
		return
	}
	ok(c, http.StatusOK, m)
}

// DeleteMedicine godoc
// @ID          deleteMedicine
// @Summary     Remove a medication schedule
// @Description Deletes a schedule entry from the user's profile. Historical dose events are kept.
// @Tags        Medicines
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Medicine ID (UUID)"     format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Medicine not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /medicines/{id} [delete]
func (h *Handlers) DeleteMedicine(c *gin.Context) {
	medicineID := c.Param("id")
	if _, err := uuid.Parse(medicineID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "medicine id must be a UUID")
		return
	}

	if err := h.profileSvc.RemoveMedicine(c.Request.Context(), userID(c), medicineID); err != nil {
		if mapMedicineErr(c, err) {
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not delete medicine")
		return
	}
	noContent(c)
}
