package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rehabtrack/go-recovery-backend/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestGetProfile_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := GetProfile(context.Background(), db, "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestCreateAndGetProfile(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p, err := CreateProfile(ctx, db, "u1")
	if err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	if p.ID == "" {
		t.Fatalf("expected generated id")
	}

	got, err := GetProfile(ctx, db, "u1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.ID != p.ID {
		t.Fatalf("id mismatch: %s vs %s", got.ID, p.ID)
	}
}

func TestCreateMedicine_PreloadOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p, err := CreateProfile(ctx, db, "u1")
	if err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	for _, name := range []string{"First", "Second", "Third"} {
		if _, err := CreateMedicine(ctx, db, p.ID, &domain.Medicine{Name: name, Times: []string{"08:00"}}); err != nil {
			t.Fatalf("CreateMedicine(%s): %v", name, err)
		}
	}

	got, err := GetProfile(ctx, db, "u1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if len(got.Medicines) != 3 {
		t.Fatalf("medicines = %d, want 3", len(got.Medicines))
	}
	if got.Medicines[0].Name != "First" || got.Medicines[2].Name != "Third" {
		t.Fatalf("insertion order not preserved: %v", []string{got.Medicines[0].Name, got.Medicines[1].Name, got.Medicines[2].Name})
	}
	if len(got.Medicines[0].Times) != 1 || got.Medicines[0].Times[0] != "08:00" {
		t.Fatalf("times round-trip failed: %v", got.Medicines[0].Times)
	}
}

func TestUpdateMedicineFields_NotFound(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p, _ := CreateProfile(ctx, db, "u1")
	err := UpdateMedicineFields(ctx, db, uuid.NewString(), p.ID, map[string]any{"name": "X"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestUpdateMedicineFields_ScopedToProfile(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p1, _ := CreateProfile(ctx, db, "u1")
	p2, _ := CreateProfile(ctx, db, "u2")
	m, _ := CreateMedicine(ctx, db, p1.ID, &domain.Medicine{Name: "Mine"})

	// Another profile must not be able to touch it.
	err := UpdateMedicineFields(ctx, db, m.ID, p2.ID, map[string]any{"name": "Stolen"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-profile update should fail, got %v", err)
	}

	if err := UpdateMedicineFields(ctx, db, m.ID, p1.ID, map[string]any{"dosage": "500mg"}); err != nil {
		t.Fatalf("owner update: %v", err)
	}
	got, err := GetMedicine(ctx, db, m.ID, p1.ID)
	if err != nil {
		t.Fatalf("GetMedicine: %v", err)
	}
	if got.Dosage != "500mg" || got.Name != "Mine" {
		t.Fatalf("unexpected row after update: %+v", got)
	}
}

func TestUpdateMedicineFields_TimesRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p, _ := CreateProfile(ctx, db, "u1")
	m, _ := CreateMedicine(ctx, db, p.ID, &domain.Medicine{Name: "Amoxicillin", Times: []string{"08:00"}})

	err := UpdateMedicineFields(ctx, db, m.ID, p.ID, map[string]any{"times": []string{"09:00", "21:00"}})
	if err != nil {
		t.Fatalf("UpdateMedicineFields: %v", err)
	}

	got, err := GetMedicine(ctx, db, m.ID, p.ID)
	if err != nil {
		t.Fatalf("GetMedicine: %v", err)
	}
	if len(got.Times) != 2 || got.Times[0] != "09:00" || got.Times[1] != "21:00" {
		t.Fatalf("times = %v, want [09:00 21:00]", got.Times)
	}

	// Clearing the list must also round-trip.
	if err := UpdateMedicineFields(ctx, db, m.ID, p.ID, map[string]any{"times": []string{}}); err != nil {
		t.Fatalf("clear times: %v", err)
	}
	got, _ = GetMedicine(ctx, db, m.ID, p.ID)
	if len(got.Times) != 0 {
		t.Fatalf("times not cleared: %v", got.Times)
	}
}

func TestDeleteMedicine(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p, _ := CreateProfile(ctx, db, "u1")
	m, _ := CreateMedicine(ctx, db, p.ID, &domain.Medicine{Name: "Gone"})

	if err := DeleteMedicine(ctx, db, m.ID, p.ID); err != nil {
		t.Fatalf("DeleteMedicine: %v", err)
	}
	if _, err := GetMedicine(ctx, db, m.ID, p.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("medicine should be gone, got %v", err)
	}
	if err := DeleteMedicine(ctx, db, m.ID, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete: want ErrNotFound, got %v", err)
	}
}

func TestReplaceMedicines_SwapsListInOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p, _ := CreateProfile(ctx, db, "u1")
	CreateMedicine(ctx, db, p.ID, &domain.Medicine{Name: "Old"})

	out, err := ReplaceMedicines(ctx, db, p.ID, []domain.Medicine{
		{Name: "A"}, {Name: "B"}, {Name: "C"},
	})
	if err != nil {
		t.Fatalf("ReplaceMedicines: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("returned %d rows", len(out))
	}

	meds, err := ListMedicines(ctx, db, p.ID)
	if err != nil {
		t.Fatalf("ListMedicines: %v", err)
	}
	if len(meds) != 3 {
		t.Fatalf("stored %d rows, want 3 (old row must be gone)", len(meds))
	}
	for i, want := range []string{"A", "B", "C"} {
		if meds[i].Name != want {
			t.Fatalf("order mismatch at %d: %s", i, meds[i].Name)
		}
	}
}

func TestReplaceMedicines_EmptyListClears(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p, _ := CreateProfile(ctx, db, "u1")
	CreateMedicine(ctx, db, p.ID, &domain.Medicine{Name: "Old"})

	out, err := ReplaceMedicines(ctx, db, p.ID, nil)
	if err != nil {
		t.Fatalf("ReplaceMedicines: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("want empty, got %d", len(out))
	}
	meds, _ := ListMedicines(ctx, db, p.ID)
	if len(meds) != 0 {
		t.Fatalf("stored rows should be cleared, got %d", len(meds))
	}
}

func TestUpdateProfileFields(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p, _ := CreateProfile(ctx, db, "u1")
	if err := UpdateProfileFields(ctx, db, p.ID, "knee surgery", "stable", "notes"); err != nil {
		t.Fatalf("UpdateProfileFields: %v", err)
	}
	got, _ := GetProfile(ctx, db, "u1")
	if got.SurgeryDetails != "knee surgery" || got.HealthStatus != "stable" || got.Notes != "notes" {
		t.Fatalf("fields not updated: %+v", got)
	}

	if err := UpdateProfileFields(ctx, db, uuid.NewString(), "", "", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound for unknown profile, got %v", err)
	}
}
