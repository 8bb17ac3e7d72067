package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"winemap/internal/domain"
)

// Open opens (or creates) the embedded database at path and applies the
// schema. ":memory:" gives an ephemeral store for tests. The pool is pinned
// to a single connection: the store shares one connection across all calls
// and relies on its internal serialization.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}

// Store is the embedded record store. Every mutation signals table-level
// invalidation, which wakes active Observe subscriptions.
type Store struct {
	db *sql.DB

	mu   sync.Mutex
	subs map[int]chan struct{}
	next int
}

func New(db *sql.DB) *Store {
	return &Store{db: db, subs: make(map[int]chan struct{})}
}

func (s *Store) Upsert(ctx context.Context, r domain.Report) error {
	_, err := s.db.ExecContext(ctx, upsertReportSQL, upsertArgs(r)...)
	if err != nil {
		return err
	}
	s.notify()
	return nil
}

func (s *Store) GetAll(ctx context.Context) ([]domain.Report, error) {
	return s.query(ctx, selectAllSQL)
}

func (s *Store) GetByUser(ctx context.Context, userID string) ([]domain.Report, error) {
	return s.query(ctx, selectByUserSQL, userID)
}

func (s *Store) GetByID(ctx context.Context, id string) (domain.Report, error) {
	row := s.db.QueryRowContext(ctx, selectByIDSQL, id)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Report{}, domain.ErrNotFound
	}
	return r, err
}

func (s *Store) DeleteByID(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, deleteByIDSQL, id); err != nil {
		return err
	}
	s.notify()
	return nil
}

func (s *Store) ReplaceAllForUser(ctx context.Context, userID string, items []domain.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, deleteByUserSQL, userID); err != nil {
		return err
	}
	for _, r := range items {
		if _, err := tx.ExecContext(ctx, upsertReportSQL, upsertArgs(r)...); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.notify()
	return nil
}

// Observe emits the current snapshot immediately, then a fresh snapshot
// after each table mutation. Rapid mutations may coalesce into a single
// re-emission. The channel closes when ctx is done.
func (s *Store) Observe(ctx context.Context) <-chan []domain.Report {
	out := make(chan []domain.Report, 1)
	wake := s.subscribe()

	go func() {
		defer close(out)
		defer s.unsubscribeChan(wake)
		for {
			rows, err := s.GetAll(ctx)
			if err == nil {
				select {
				case out <- rows:
				case <-ctx.Done():
					return
				}
			}
			select {
			case <-wake:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (s *Store) subscribe() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{}, 1)
	s.subs[s.next] = ch
	s.next++
	return ch
}

func (s *Store) unsubscribeChan(ch chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.subs {
		if v == ch {
			delete(s.subs, k)
			return
		}
	}
}

func (s *Store) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default: // a wakeup is already pending; snapshots coalesce
		}
	}
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]domain.Report, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func upsertArgs(r domain.Report) []any {
	var locName, locLat, locLng any
	if r.Location != nil {
		locName = r.Location.Name
		locLat = r.Location.Lat
		locLng = r.Location.Lng
	}
	return []any{
		r.ID, r.UserID, r.UserName, r.WineryName, r.Content, r.ImageURL,
		r.Rating, r.CreatedAt, locName, locLat, locLng,
	}
}

type rowScanner interface{ Scan(dest ...any) error }

func scanReport(row rowScanner) (domain.Report, error) {
	var r domain.Report
	var locName sql.NullString
	var locLat, locLng sql.NullFloat64

	if err := row.Scan(
		&r.ID, &r.UserID, &r.UserName, &r.WineryName, &r.Content, &r.ImageURL,
		&r.Rating, &r.CreatedAt, &locName, &locLat, &locLng,
	); err != nil {
		return domain.Report{}, err
	}
	// Location only materializes when all three columns are populated.
	if locName.Valid && locLat.Valid && locLng.Valid {
		r.Location = &domain.Location{
			Lat:  locLat.Float64,
			Lng:  locLng.Float64,
			Name: locName.String,
		}
	}
	return r, nil
}
