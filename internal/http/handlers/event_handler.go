// Dose event HTTP handlers.
//
// This file exposes the adherence log endpoints:
//   - POST /events  (record a dose outcome, idempotent via Idempotency-Key)
//   - GET  /events  (query the log, optional date range, ETag support)
//
// The log is append-only; there is deliberately no update or delete route.
package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/rehabtrack/go-recovery-backend/internal/domain"
	"github.com/rehabtrack/go-recovery-backend/internal/repo"
	"github.com/rehabtrack/go-recovery-backend/internal/services"
	"github.com/rehabtrack/go-recovery-backend/internal/utils"
)

// RecordEventRequest is the JSON payload for recording a dose outcome.
type RecordEventRequest struct {
	// MedicineID of the schedule the dose was derived from.
	MedicineID string `json:"medicine_id" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	// MedicineName at recording time (stored denormalized).
	MedicineName string `json:"medicine_name" example:"Amoxicillin"`
	// ScheduledDate in YYYY-MM-DD or RFC3339 form; defaults to now.
	ScheduledDate *string `json:"scheduled_date" example:"2025-06-03"`
	// ScheduledTime as an HH:MM string.
	ScheduledTime string `json:"scheduled_time" example:"08:00"`
	// ActualTime in RFC3339 form; defaults to the recording time.
	ActualTime *string `json:"actual_time"`
	// Status is one of "taken", "skipped", or "missed".
	Status string `json:"status" binding:"required" example:"taken"`
}

// ListEventsResponse wraps a query over the dose event log.
type ListEventsResponse struct {
	Events []domain.DoseEvent `json:"events"`
}

// weakEventsETag derives a weak ETag for an event query. The range params are
// part of the tag because they change the result set.
func weakEventsETag(uid, start, end string, count, ts int64) string {
	return fmt.Sprintf(`W/"events:%s:%s:%s:%d:%d"`, uid, start, end, count, ts)
}

// middlewareGetIdempotencyKey extracts an idempotency key if an upstream
// middleware has already validated/stashed it. The fallback behavior reads
// the "Idempotency-Key" header directly when no dedicated middleware exists.
func middlewareGetIdempotencyKey(c *gin.Context) (string, bool) {
	if v := strings.TrimSpace(c.GetHeader("Idempotency-Key")); v != "" {
		return v, true
	}
	return "", false
}

// RecordEvent godoc
// @ID          recordEvent
// @Summary     Record a dose outcome
// @Description Appends a dose event to the user's adherence log. The log is append-only: corrections are new events, not edits.
// @Description Supports idempotency via the Idempotency-Key header (same key → same stored event).
// @Tags        Events
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"
// @Param       body             body    handlers.RecordEventRequest  true  "Dose event payload"
//
// @Success     201  {object} domain.DoseEvent
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /events [post]
func (h *Handlers) RecordEvent(c *gin.Context) {
	ctx := c.Request.Context()

	var req RecordEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status required")
		return
	}

	in := services.DoseEventInput{
		MedicineID:    req.MedicineID,
		MedicineName:  req.MedicineName,
		ScheduledTime: req.ScheduledTime,
		Status:        req.Status,
	}
	if req.ScheduledDate != nil && strings.TrimSpace(*req.ScheduledDate) != "" {
		t, err := utils.ParseDate(*req.ScheduledDate)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "scheduled_date must be YYYY-MM-DD or RFC3339")
			return
		}
		in.ScheduledDate = t
	}
	if req.ActualTime != nil && strings.TrimSpace(*req.ActualTime) != "" {
		t, err := time.Parse(time.RFC3339, *req.ActualTime)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "actual_time must be RFC3339")
			return
		}
		in.ActualTime = t
	}

	currentUser := userID(c)

	// Idempotency replay path: serve the previously stored event if the key
	// already completed. Replay records are keyed by (user, medicine, key),
	// so a keyed request must identify the medicine.
	idemKey, _ := middlewareGetIdempotencyKey(c)
	if idemKey != "" && strings.TrimSpace(req.MedicineID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "medicine_id is required with Idempotency-Key")
		return
	}
	if idemKey != "" {
		if svc, okSvc := h.eventSvc.(*services.EventService); okSvc && svc.DB != nil {
			if rec, err := repo.GetIdempotency(ctx, svc.DB, currentUser, req.MedicineID, idemKey, time.Now().UTC()); err == nil && rec != nil {
				if prev, err2 := repo.GetDoseEvent(ctx, svc.DB, rec.EventID, currentUser); err2 == nil {
					c.Header("Idempotency-Replayed", "true")
					ok(c, http.StatusCreated, prev)
					return
				}
			}
		}
	}

	ev, err := h.eventSvc.Record(ctx, currentUser, in)
	if err != nil {
		if err == services.ErrInvalidStatus {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeRecordFailed, "could not record dose event")
		return
	}

	// Idempotency store path, best effort.
	if idemKey != "" {
		if svc, okSvc := h.eventSvc.(*services.EventService); okSvc && svc.DB != nil {
			ttl := 24 * time.Hour
			_, _ = repo.CreateIdempotency(ctx, svc.DB, currentUser, ev.MedicineID, idemKey, ev.ID, http.StatusCreated, ttl)
		}
	}

	ok(c, http.StatusCreated, ev)
}

// ListEvents godoc
// @ID          listEvents
// @Summary     Query the dose event log
// @Description Returns the user's dose events, most recent scheduled date first. Optional start/end bound the scheduled date; a bare end date is inclusive through the end of that day. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Events
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       start          query   string  false "Range start (YYYY-MM-DD)"    example(2025-06-01)
// @Param       end            query   string  false "Range end (YYYY-MM-DD)"      example(2025-06-30)
//
// @Success     200  {object} handlers.ListEventsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /events [get]
func (h *Handlers) ListEvents(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	var start, end *time.Time
	if s := strings.TrimSpace(c.Query("start")); s != "" {
		t, err := utils.ParseDate(s)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "start must be YYYY-MM-DD or RFC3339")
			return
		}
		start = &t
	}
	if s := strings.TrimSpace(c.Query("end")); s != "" {
		t, err := utils.ParseDate(s)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "end must be YYYY-MM-DD or RFC3339")
			return
		}
		// A bare date bound means "through the end of that day"; a precise
		// timestamp is taken as-is.
		if _, perr := time.Parse("2006-01-02", s); perr == nil {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		end = &t
	}
	if start != nil && end != nil && end.Before(*start) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "end must not be before start")
		return
	}

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, okSvc := h.eventSvc.(*services.EventService); okSvc {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.EventsStats(ctx, db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := weakEventsETag(uid, c.Query("start"), c.Query("end"), count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	events, err := h.eventSvc.List(ctx, uid, start, end)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list dose events")
		return
	}
	ok(c, http.StatusOK, ListEventsResponse{Events: events})
}
