// Package services: StatsService
//
// This file implements StatsService, the read-only adherence analytics over
// the dose event log. It derives three figures from raw events on every call
// (no materialized aggregates): today's per-status tally, the adherence rate,
// and the perfect-day streaks.
//
// Day boundaries differ by figure on purpose: the "today" tally follows the
// server's local calendar day (what the user perceives as today), while
// streaks bucket by UTC date so the grouping is stable across restarts and
// timezone changes.
package services

import (
	"context"
	"math"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/rehabtrack/go-recovery-backend/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// defaultStreakWindowDays bounds how far back the streak scan looks.
const defaultStreakWindowDays = 30

// StatsRepo defines the repository contract required by StatsService.
type StatsRepo interface {
	ListDoseEventsWindow(ctx context.Context, db *gorm.DB, userID string, from, before time.Time) ([]domain.DoseEvent, error)
	ListDoseEventsSince(ctx context.Context, db *gorm.DB, userID string, since time.Time) ([]domain.DoseEvent, error)
}

// StatsService computes adherence statistics from the dose event log.
type StatsService struct {
	DB   *gorm.DB
	Repo StatsRepo

	// WindowDays is the streak lookback window; 0 means the default of 30.
	WindowDays int

	// Now overrides the clock in tests; nil means time.Now.
	Now func() time.Time
}

// NewStatsService constructs a StatsService with the default lookback window.
func NewStatsService(db *gorm.DB, r StatsRepo) *StatsService {
	return &StatsService{DB: db, Repo: r, WindowDays: defaultStreakWindowDays}
}

// DailyTally counts a single day's dose outcomes by status.
type DailyTally struct {
	Taken   int `json:"taken"`
	Missed  int `json:"missed"`
	Skipped int `json:"skipped"`
	Total   int `json:"total"`
}

// Streak holds the consecutive perfect-day counters. Current is the run
// ending at the most recent day with events; Longest is the best run inside
// the lookback window. Longest is always >= Current.
type Streak struct {
	Current int `json:"current"`
	Longest int `json:"longest"`
}

// Summary is the adherence overview returned by the stats endpoint.
type Summary struct {
	Today         DailyTally `json:"today"`
	AdherenceRate int        `json:"adherence_rate"`
	Streak        Streak     `json:"streak"`
}

// Summarize assembles the full adherence overview for userID: today's tally,
// the adherence rate derived from it, and the streak counters.
//
// Tally errors propagate (today's numbers cannot be substituted), but streak
// computation degrades to zeros rather than failing the whole summary.
func (s *StatsService) Summarize(ctx context.Context, userID string) (*Summary, error) {
	tr := otel.Tracer("services/StatsService")
	ctx, span := tr.Start(ctx, "Summarize",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	today, err := s.TodayTally(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Summary{
		Today:         today,
		AdherenceRate: adherenceRate(today),
		Streak:        s.Streaks(ctx, userID),
	}, nil
}

// TodayTally counts the user's dose outcomes whose scheduled date falls on
// the current local calendar day.
func (s *StatsService) TodayTally(ctx context.Context, userID string) (DailyTally, error) {
	now := s.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	events, err := s.Repo.ListDoseEventsWindow(ctx, s.DB, userID, start, start.AddDate(0, 0, 1))
	if err != nil {
		return DailyTally{}, err
	}
	return tally(events), nil
}

// Streaks computes the current and longest perfect-day streaks over the
// lookback window. A day is perfect when every recorded dose that day was
// taken (and at least one was recorded); days without events are not
// evaluated.
//
// On any lookup error the streaks degrade to {0, 0}; adherence statistics
// are advisory and must not take the summary endpoint down.
func (s *StatsService) Streaks(ctx context.Context, userID string) Streak {
	window := s.WindowDays
	if window <= 0 {
		window = defaultStreakWindowDays
	}
	since := s.now().AddDate(0, 0, -window)

	events, err := s.Repo.ListDoseEventsSince(ctx, s.DB, userID, since)
	if err != nil {
		return Streak{}
	}
	return streaksFromEvents(events)
}

func (s *StatsService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// tally counts events by status.
func tally(events []domain.DoseEvent) DailyTally {
	var t DailyTally
	for _, ev := range events {
		switch ev.Status {
		case domain.StatusTaken:
			t.Taken++
		case domain.StatusSkipped:
			t.Skipped++
		case domain.StatusMissed:
			t.Missed++
		}
		t.Total++
	}
	return t
}

// adherenceRate is the taken share of today's doses as a rounded percentage.
// With nothing scheduled yet the user has missed nothing, so the rate is 100.
func adherenceRate(t DailyTally) int {
	if t.Total == 0 {
		return 100
	}
	return int(math.Round(float64(t.Taken) / float64(t.Total) * 100))
}

// streaksFromEvents buckets events by UTC calendar date and walks the days
// newest-first. A perfect day extends the running streak; an imperfect day
// ends it. The run that includes the most recent day becomes Current; the
// best run becomes Longest.
func streaksFromEvents(events []domain.DoseEvent) Streak {
	type dayCount struct{ taken, total int }
	days := make(map[string]*dayCount)
	for _, ev := range events {
		key := ev.ScheduledDate.UTC().Format("2006-01-02")
		d := days[key]
		if d == nil {
			d = &dayCount{}
			days[key] = d
		}
		d.total++
		if ev.Status == domain.StatusTaken {
			d.taken++
		}
	}
	if len(days) == 0 {
		return Streak{}
	}

	dates := make([]string, 0, len(days))
	for k := range days {
		dates = append(dates, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	var st Streak
	run := 0
	for _, date := range dates {
		d := days[date]
		if d.total > 0 && d.taken == d.total {
			run++
			if date == dates[0] {
				st.Current = run
			}
		} else {
			if run > st.Longest {
				st.Longest = run
			}
			run = 0
		}
	}
	if run > st.Longest {
		st.Longest = run
	}
	return st
}
