// Medical profile HTTP handlers.
//
// This file exposes the profile form endpoints:
//   - GET /profile  (read the profile with medicines)
//   - PUT /profile  (create-or-replace the whole profile)
//
// The PUT payload tolerates a lenient medicines shape: clients may send a
// single medicine object or an array of them; both normalize to a list.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rehabtrack/go-recovery-backend/internal/domain"
	"github.com/rehabtrack/go-recovery-backend/internal/services"
)

// ReplaceProfileRequest is the JSON payload for the profile form submission.
// The whole profile is replaced: text fields are overwritten and the medicine
// list is swapped for the submitted one.
type ReplaceProfileRequest struct {
	SurgeryDetails string `json:"surgery_details" example:"Knee arthroscopy, 2025-05-12"`
	HealthStatus   string `json:"health_status"   example:"recovering, mild swelling"`
	Notes          string `json:"notes"`
	// Medicines accepts a single object or an array of MedicineRequest.
	Medicines json.RawMessage `json:"medicines" swaggertype:"array,object"`
}

// normalizeMedicines decodes the lenient medicines payload: absent or null
// means empty, a single object becomes a one-element list.
func normalizeMedicines(raw json.RawMessage) ([]MedicineRequest, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var list []MedicineRequest
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var one MedicineRequest
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, err
	}
	return []MedicineRequest{one}, nil
}

// GetProfile godoc
// @ID          getProfile
// @Summary     Read the medical profile
// @Description Returns the user's medical profile with medication schedules preloaded.
// @Tags        Profile
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {object} domain.MedicalProfile
// @Failure     404  {object} handlers.ErrorResponse "Profile not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /profile [get]
func (h *Handlers) GetProfile(c *gin.Context) {
	p, err := h.profileSvc.Get(c.Request.Context(), userID(c))
	if err != nil {
		if errors.Is(err, services.ErrProfileNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "medical profile not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not read profile")
		return
	}
	if p.Medicines == nil {
		p.Medicines = []domain.Medicine{}
	}
	ok(c, http.StatusOK, p)
}

// ReplaceProfile godoc
// @ID          replaceProfile
// @Summary     Create or replace the medical profile
// @Description Overwrites the profile's surgery details, health status, and notes, and swaps the medicine list for the submitted one. The profile is created on first submission. Medicine entries without a name are dropped.
// @Tags        Profile
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.ReplaceProfileRequest  true  "Profile payload"
//
// @Success     200  {object} domain.MedicalProfile
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /profile [put]
func (h *Handlers) ReplaceProfile(c *gin.Context) {
	var req ReplaceProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	medReqs, err := normalizeMedicines(req.Medicines)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "medicines must be an object or an array")
		return
	}
	meds := make([]services.MedicineInput, 0, len(medReqs))
	for _, mr := range medReqs {
		in, err := toMedicineInput(mr)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "start_date must be YYYY-MM-DD or RFC3339")
			return
		}
		meds = append(meds, in)
	}

	p, err := h.profileSvc.ReplaceProfile(c.Request.Context(), userID(c), req.SurgeryDetails, req.HealthStatus, req.Notes, meds)
	if err != nil {
		if mapMedicineErr(c, err) {
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, "could not save profile")
		return
	}
	ok(c, http.StatusOK, p)
}
