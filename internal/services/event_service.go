// Package services: EventService
//
// This file implements EventService, which owns the append-only dose event
// log. Recording a dose outcome validates the status, stamps the event, and
// appends it; nothing in this service (or its repository) can rewrite or
// remove an event once stored.
//
// Observability: public methods are OpenTelemetry-instrumented, and
// successful recordings increment a per-status Prometheus counter.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/rehabtrack/go-recovery-backend/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var doseEventsRecorded = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dose_events_recorded_total",
		Help: "Dose events appended to the adherence log, by outcome status.",
	},
	[]string{"status"},
)

func init() {
	prometheus.MustRegister(doseEventsRecorded)
}

// EventRepo defines the repository contract required by EventService.
type EventRepo interface {
	InsertDoseEvent(ctx context.Context, db *gorm.DB, ev *domain.DoseEvent) (*domain.DoseEvent, error)
	GetDoseEvent(ctx context.Context, db *gorm.DB, id, userID string) (*domain.DoseEvent, error)
	ListDoseEvents(ctx context.Context, db *gorm.DB, userID string, start, end *time.Time) ([]domain.DoseEvent, error)
}

// EventService records and queries dose events.
type EventService struct {
	DB   *gorm.DB
	Repo EventRepo
}

// NewEventService constructs an EventService.
func NewEventService(db *gorm.DB, r EventRepo) *EventService {
	return &EventService{DB: db, Repo: r}
}

// DoseEventInput carries the caller-supplied fields of a dose event.
// ScheduledTime is the planned "HH:MM" slot; a zero ActualTime means
// "recorded now".
type DoseEventInput struct {
	MedicineID    string
	MedicineName  string
	ScheduledDate time.Time
	ScheduledTime string
	ActualTime    time.Time
	Status        string
}

// Record validates and appends a dose event for userID. An unrecognized
// status yields ErrInvalidStatus and leaves the log untouched. The medicine
// name is stored denormalized so history survives schedule edits.
func (s *EventService) Record(ctx context.Context, userID string, in DoseEventInput) (*domain.DoseEvent, error) {
	tr := otel.Tracer("services/EventService")
	ctx, span := tr.Start(ctx, "Record",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("dose.status", in.Status),
		),
	)
	defer span.End()

	status := strings.ToLower(strings.TrimSpace(in.Status))
	if !domain.ValidStatus(status) {
		return nil, ErrInvalidStatus
	}

	ev := &domain.DoseEvent{
		UserID:        userID,
		MedicineID:    strings.TrimSpace(in.MedicineID),
		MedicineName:  strings.TrimSpace(in.MedicineName),
		ScheduledDate: in.ScheduledDate.UTC(),
		ScheduledTime: strings.TrimSpace(in.ScheduledTime),
		ActualTime:    in.ActualTime,
		Status:        status,
	}
	if ev.ScheduledDate.IsZero() {
		ev.ScheduledDate = time.Now().UTC()
	}

	out, err := s.Repo.InsertDoseEvent(ctx, s.DB, ev)
	if err != nil {
		return nil, err
	}
	doseEventsRecorded.WithLabelValues(status).Inc()
	return out, nil
}

// Get returns a single event by ID, scoped to userID.
func (s *EventService) Get(ctx context.Context, userID, eventID string) (*domain.DoseEvent, error) {
	return s.Repo.GetDoseEvent(ctx, s.DB, eventID, userID)
}

// List returns the user's dose events, most recent scheduled date first,
// optionally restricted to an inclusive [start, end] range. Nil bounds leave
// the corresponding side open.
func (s *EventService) List(ctx context.Context, userID string, start, end *time.Time) ([]domain.DoseEvent, error) {
	tr := otel.Tracer("services/EventService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	events, err := s.Repo.ListDoseEvents(ctx, s.DB, userID, start, end)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []domain.DoseEvent{}
	}
	return events, nil
}
