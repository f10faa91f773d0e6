package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/rehabtrack/go-recovery-backend/internal/domain"
)

// ----- Fake repo -----

type fakeStatsRepo struct {
	windowFrom   time.Time
	windowBefore time.Time
	windowOut    []domain.DoseEvent
	windowErr    error

	since    time.Time
	sinceOut []domain.DoseEvent
	sinceErr error
}

func (r *fakeStatsRepo) ListDoseEventsWindow(ctx context.Context, db *gorm.DB, userID string, from, before time.Time) ([]domain.DoseEvent, error) {
	r.windowFrom, r.windowBefore = from, before
	return r.windowOut, r.windowErr
}

func (r *fakeStatsRepo) ListDoseEventsSince(ctx context.Context, db *gorm.DB, userID string, since time.Time) ([]domain.DoseEvent, error) {
	r.since = since
	return r.sinceOut, r.sinceErr
}

func ev(day string, status string) domain.DoseEvent {
	d, _ := time.Parse("2006-01-02", day)
	return domain.DoseEvent{ScheduledDate: d, Status: status}
}

// ----- Tests -----

func TestTodayTally_CountsByStatus(t *testing.T) {
	r := &fakeStatsRepo{windowOut: []domain.DoseEvent{
		{Status: domain.StatusTaken},
		{Status: domain.StatusTaken},
		{Status: domain.StatusMissed},
		{Status: domain.StatusSkipped},
	}}
	s := NewStatsService(nil, r)

	got, err := s.TodayTally(context.Background(), "u1")
	if err != nil {
		t.Fatalf("TodayTally: %v", err)
	}
	want := DailyTally{Taken: 2, Missed: 1, Skipped: 1, Total: 4}
	if got != want {
		t.Fatalf("tally = %+v, want %+v", got, want)
	}
}

func TestTodayTally_WindowIsLocalCalendarDay(t *testing.T) {
	r := &fakeStatsRepo{}
	s := NewStatsService(nil, r)
	now := time.Date(2025, 6, 3, 14, 30, 0, 0, time.Local)
	s.Now = func() time.Time { return now }

	if _, err := s.TodayTally(context.Background(), "u1"); err != nil {
		t.Fatalf("TodayTally: %v", err)
	}

	wantFrom := time.Date(2025, 6, 3, 0, 0, 0, 0, time.Local)
	if !r.windowFrom.Equal(wantFrom) {
		t.Errorf("window from = %v, want %v", r.windowFrom, wantFrom)
	}
	if !r.windowBefore.Equal(wantFrom.AddDate(0, 0, 1)) {
		t.Errorf("window before = %v, want next midnight", r.windowBefore)
	}
}

func TestTodayTally_PropagatesError(t *testing.T) {
	r := &fakeStatsRepo{windowErr: errors.New("boom")}
	s := NewStatsService(nil, r)

	if _, err := s.TodayTally(context.Background(), "u1"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestAdherenceRate(t *testing.T) {
	cases := []struct {
		tally DailyTally
		want  int
	}{
		{DailyTally{}, 100}, // nothing due yet counts as fully adherent
		{DailyTally{Taken: 3, Total: 3}, 100},
		{DailyTally{Taken: 2, Missed: 1, Skipped: 1, Total: 4}, 50},
		{DailyTally{Taken: 1, Missed: 2, Total: 3}, 33},
		{DailyTally{Taken: 2, Missed: 1, Total: 3}, 67},
		{DailyTally{Missed: 5, Total: 5}, 0},
	}
	for _, c := range cases {
		if got := adherenceRate(c.tally); got != c.want {
			t.Errorf("adherenceRate(%+v) = %d, want %d", c.tally, got, c.want)
		}
	}
}

func TestStreaks_EmptyLog(t *testing.T) {
	s := NewStatsService(nil, &fakeStatsRepo{})
	if got := s.Streaks(context.Background(), "u1"); got != (Streak{}) {
		t.Fatalf("streaks = %+v, want zeros", got)
	}
}

func TestStreaks_PerfectLatestDay(t *testing.T) {
	r := &fakeStatsRepo{sinceOut: []domain.DoseEvent{
		ev("2025-06-03", domain.StatusTaken),
		ev("2025-06-03", domain.StatusTaken),
		ev("2025-06-02", domain.StatusTaken),
		ev("2025-06-01", domain.StatusTaken),
	}}
	s := NewStatsService(nil, r)

	got := s.Streaks(context.Background(), "u1")
	if got.Current != 1 {
		t.Errorf("current = %d, want 1", got.Current)
	}
	if got.Longest != 3 {
		t.Errorf("longest = %d, want 3", got.Longest)
	}
}

func TestStreaks_ImperfectLatestDayResetsCurrent(t *testing.T) {
	// Five perfect days, then the most recent day has a miss.
	events := []domain.DoseEvent{ev("2025-06-06", domain.StatusMissed)}
	for _, d := range []string{"2025-06-01", "2025-06-02", "2025-06-03", "2025-06-04", "2025-06-05"} {
		events = append(events, ev(d, domain.StatusTaken))
	}
	s := NewStatsService(nil, &fakeStatsRepo{sinceOut: events})

	got := s.Streaks(context.Background(), "u1")
	if got.Current != 0 {
		t.Errorf("current = %d, want 0", got.Current)
	}
	if got.Longest != 5 {
		t.Errorf("longest = %d, want 5", got.Longest)
	}
}

func TestStreaks_MixedDayBreaksRun(t *testing.T) {
	s := NewStatsService(nil, &fakeStatsRepo{sinceOut: []domain.DoseEvent{
		ev("2025-06-05", domain.StatusTaken),
		ev("2025-06-04", domain.StatusTaken),
		ev("2025-06-04", domain.StatusSkipped), // not a perfect day
		ev("2025-06-03", domain.StatusTaken),
		ev("2025-06-02", domain.StatusTaken),
		ev("2025-06-01", domain.StatusTaken),
	}})

	got := s.Streaks(context.Background(), "u1")
	if got.Current != 1 {
		t.Errorf("current = %d, want 1", got.Current)
	}
	if got.Longest != 3 {
		t.Errorf("longest = %d, want 3", got.Longest)
	}
	if got.Longest < got.Current {
		t.Errorf("longest must never be below current")
	}
}

func TestStreaks_LookupErrorDegradesToZeros(t *testing.T) {
	s := NewStatsService(nil, &fakeStatsRepo{sinceErr: errors.New("db down")})
	if got := s.Streaks(context.Background(), "u1"); got != (Streak{}) {
		t.Fatalf("streaks on error = %+v, want zeros", got)
	}
}

func TestStreaks_WindowBound(t *testing.T) {
	r := &fakeStatsRepo{}
	s := NewStatsService(nil, r)
	s.WindowDays = 7
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return now }

	s.Streaks(context.Background(), "u1")
	if !r.since.Equal(now.AddDate(0, 0, -7)) {
		t.Errorf("since = %v, want 7 days back", r.since)
	}
}

func TestSummarize_ComposesFigures(t *testing.T) {
	r := &fakeStatsRepo{
		windowOut: []domain.DoseEvent{
			{Status: domain.StatusTaken},
			{Status: domain.StatusTaken},
			{Status: domain.StatusTaken},
		},
		sinceOut: []domain.DoseEvent{
			ev("2025-06-03", domain.StatusTaken),
			ev("2025-06-02", domain.StatusTaken),
		},
	}
	s := NewStatsService(nil, r)

	sum, err := s.Summarize(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.Today.Taken != 3 || sum.Today.Total != 3 {
		t.Errorf("today = %+v", sum.Today)
	}
	if sum.AdherenceRate != 100 {
		t.Errorf("rate = %d, want 100", sum.AdherenceRate)
	}
	if sum.Streak.Longest != 2 {
		t.Errorf("longest = %d, want 2", sum.Streak.Longest)
	}
}

func TestSummarize_TallyErrorFails(t *testing.T) {
	s := NewStatsService(nil, &fakeStatsRepo{windowErr: errors.New("boom")})
	if _, err := s.Summarize(context.Background(), "u1"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSummarize_StreakErrorAbsorbed(t *testing.T) {
	s := NewStatsService(nil, &fakeStatsRepo{sinceErr: errors.New("boom")})

	sum, err := s.Summarize(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.Streak != (Streak{}) {
		t.Fatalf("streak = %+v, want zeros", sum.Streak)
	}
	if sum.AdherenceRate != 100 {
		t.Fatalf("rate with empty today = %d, want 100", sum.AdherenceRate)
	}
}
