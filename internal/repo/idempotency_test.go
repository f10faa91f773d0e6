package repo

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCreateIdempotency_Duplicate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := CreateIdempotency(ctx, db, "u1", "m1", "key-1", "e1", 201, time.Hour); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err := CreateIdempotency(ctx, db, "u1", "m1", "key-1", "e2", 201, time.Hour)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}

	// Same key is fine for a different medicine or user.
	if _, err := CreateIdempotency(ctx, db, "u1", "m2", "key-1", "e3", 201, time.Hour); err != nil {
		t.Fatalf("different medicine: %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, "u2", "m1", "key-1", "e4", 201, time.Hour); err != nil {
		t.Fatalf("different user: %v", err)
	}
}

func TestGetIdempotency(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := GetIdempotency(ctx, db, "u1", "m1", "nope", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing key: want ErrNotFound, got %v", err)
	}
	if _, err := GetIdempotency(ctx, db, "u1", "", "key", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("blank medicine id: want ErrNotFound, got %v", err)
	}

	if _, err := CreateIdempotency(ctx, db, "u1", "m1", "key-1", "e1", 201, time.Hour); err != nil {
		t.Fatalf("insert: %v", err)
	}
	rec, err := GetIdempotency(ctx, db, "u1", "m1", "key-1", now)
	if err != nil {
		t.Fatalf("GetIdempotency: %v", err)
	}
	if rec.EventID != "e1" || rec.Status != 201 {
		t.Fatalf("unexpected record: %+v", rec)
	}

	// Expired records must not replay.
	if _, err := GetIdempotency(ctx, db, "u1", "m1", "key-1", now.Add(2*time.Hour)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired: want ErrNotFound, got %v", err)
	}
}

func TestHasIdempotency(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	ok, err := HasIdempotency(ctx, db, "u1", "key-1", now)
	if err != nil || ok {
		t.Fatalf("empty table: ok=%v err=%v", ok, err)
	}

	if _, err := CreateIdempotency(ctx, db, "u1", "m1", "key-1", "e1", 201, time.Hour); err != nil {
		t.Fatalf("insert: %v", err)
	}
	ok, err = HasIdempotency(ctx, db, "u1", "key-1", now)
	if err != nil || !ok {
		t.Fatalf("stored key: ok=%v err=%v", ok, err)
	}
	ok, _ = HasIdempotency(ctx, db, "u2", "key-1", now)
	if ok {
		t.Fatalf("key must be scoped per user")
	}
}
