package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"winemap/internal/domain"
	"winemap/internal/storage/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return sqlite.New(db)
}

func report(id, userID string, createdAt int64) domain.Report {
	return domain.Report{
		ID:         id,
		UserID:     userID,
		UserName:   "Ann",
		WineryName: "Red Hill",
		Content:    "Nice",
		ImageURL:   "http://x/1.jpg",
		Rating:     4,
		CreatedAt:  createdAt,
	}
}

func TestUpsertGetByID_RoundTripWithLocation(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	want := report("r1", "u1", 1000)
	want.Location = &domain.Location{Lat: 32.08, Lng: 34.78, Name: "Tel Aviv"}
	if err := s.Upsert(ctx, want); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.GetByID(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserName != "Ann" || got.WineryName != "Red Hill" || got.Rating != 4 || got.CreatedAt != 1000 {
		t.Fatalf("unexpected row: %+v", got)
	}
	if got.Location == nil || got.Location.Name != "Tel Aviv" || got.Location.Lat != 32.08 || got.Location.Lng != 34.78 {
		t.Fatalf("location did not round-trip: %+v", got.Location)
	}
}

func TestUpsert_NoLocationStaysAbsent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, report("r1", "u1", 1000)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := s.GetByID(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Location != nil {
		t.Fatalf("expected absent location, got %+v", got.Location)
	}
}

func TestUpsert_ReplacesExistingRow(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, report("r1", "u1", 1000)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	upd := report("r1", "u1", 1000)
	upd.Content = "Even better second visit"
	upd.Rating = 5
	if err := s.Upsert(ctx, upd); err != nil {
		t.Fatalf("upsert again: %v", err)
	}

	all, err := s.GetAll(ctx)
	if err != nil {
		t.Fatalf("getAll: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 row after replace, got %d", len(all))
	}
	if all[0].Rating != 5 || all[0].Content != "Even better second visit" {
		t.Fatalf("replace did not stick: %+v", all[0])
	}
}

func TestGetAll_NewestFirst(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for _, r := range []domain.Report{
		report("r1", "u1", 100),
		report("r3", "u2", 300),
		report("r2", "u1", 200),
	} {
		if err := s.Upsert(ctx, r); err != nil {
			t.Fatalf("upsert %s: %v", r.ID, err)
		}
	}

	all, err := s.GetAll(ctx)
	if err != nil {
		t.Fatalf("getAll: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(all))
	}
	for i, want := range []string{"r3", "r2", "r1"} {
		if all[i].ID != want {
			t.Fatalf("order mismatch at %d: got %s want %s", i, all[i].ID, want)
		}
	}
}

func TestGetByUser_FiltersExactly(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for _, r := range []domain.Report{
		report("r1", "u1", 100),
		report("r2", "U1", 200), // case differs; must not match u1
		report("r3", "u1", 300),
	} {
		if err := s.Upsert(ctx, r); err != nil {
			t.Fatalf("upsert %s: %v", r.ID, err)
		}
	}

	rows, err := s.GetByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("getByUser: %v", err)
	}
	if len(rows) != 2 || rows[0].ID != "r3" || rows[1].ID != "r1" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestDeleteByID_Idempotent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, report("r1", "u1", 100)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.DeleteByID(ctx, "r1"); err != nil {
		t.Fatalf("delete existing: %v", err)
	}
	if _, err := s.GetByID(ctx, "r1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	// deleting an absent id is a no-op, not an error
	if err := s.DeleteByID(ctx, "never-existed"); err != nil {
		t.Fatalf("delete absent: %v", err)
	}
}

func TestReplaceAllForUser(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for _, r := range []domain.Report{
		report("old1", "u1", 100),
		report("old2", "u1", 200),
		report("other", "u2", 300),
	} {
		if err := s.Upsert(ctx, r); err != nil {
			t.Fatalf("seed %s: %v", r.ID, err)
		}
	}

	fresh := []domain.Report{report("new1", "u1", 400)}
	if err := s.ReplaceAllForUser(ctx, "u1", fresh); err != nil {
		t.Fatalf("replace: %v", err)
	}

	rows, err := s.GetByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("getByUser: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "new1" {
		t.Fatalf("expected only new1 for u1, got %+v", rows)
	}
	// u2 untouched
	if _, err := s.GetByID(ctx, "other"); err != nil {
		t.Fatalf("u2 row should survive: %v", err)
	}
}

func TestObserve_ReEmitsOnMutation(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Observe(ctx)

	snap := recv(t, ch)
	if len(snap) != 0 {
		t.Fatalf("expected empty initial snapshot, got %d rows", len(snap))
	}

	if err := s.Upsert(context.Background(), report("r1", "u1", 100)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	snap = recv(t, ch)
	if len(snap) != 1 || snap[0].ID != "r1" {
		t.Fatalf("expected snapshot with r1, got %+v", snap)
	}

	if err := s.DeleteByID(context.Background(), "r1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	snap = recv(t, ch)
	if len(snap) != 0 {
		t.Fatalf("expected empty snapshot after delete, got %+v", snap)
	}

	cancel()
	select {
	case _, open := <-ch:
		if open {
			// a final in-flight snapshot is fine; the channel must close next
			if _, open := <-ch; open {
				t.Fatal("channel still open after cancel")
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func recv(t *testing.T, ch <-chan []domain.Report) []domain.Report {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}
