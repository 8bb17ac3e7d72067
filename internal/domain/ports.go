package domain

import "context"

// ReportRepository is the uniform CRUD contract over review reports.
// Two interchangeable implementations exist: one backed by the local record
// store, one by the remote document store. The composition choosing between
// them is left to the caller; there is no automatic fail-over or merge.
type ReportRepository interface {
	SaveReport(ctx context.Context, d ReportDraft) error
	GetReportsForUser(ctx context.Context, userID string) ([]Report, error)
	GetAllReports(ctx context.Context) ([]Report, error)
	// UpdateReport applies a partial update. Implementations that cannot
	// update return ErrNotSupported rather than silently doing nothing.
	UpdateReport(ctx context.Context, id string, p ReportPatch) error
	DeleteReport(ctx context.Context, id string) error
}

// ReportStore is the embedded local record store.
// All multi-row reads are ordered by createdAt descending.
type ReportStore interface {
	Upsert(ctx context.Context, r Report) error
	GetAll(ctx context.Context) ([]Report, error)
	GetByUser(ctx context.Context, userID string) ([]Report, error)
	// GetByID returns ErrNotFound when no row matches.
	GetByID(ctx context.Context, id string) (Report, error)
	// DeleteByID is idempotent: deleting an absent id is not an error.
	DeleteByID(ctx context.Context, id string) error
	// ReplaceAllForUser transactionally replaces one user's rows.
	ReplaceAllForUser(ctx context.Context, userID string, items []Report) error
	// Observe emits a full snapshot immediately and again after every table
	// mutation, until ctx is done. The returned channel is closed on exit.
	Observe(ctx context.Context) <-chan []Report
}

// AuthClient adapts the remote auth provider.
type AuthClient interface {
	SignUp(ctx context.Context, email, password string) error
	SignIn(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
	CurrentUserUID() (string, bool)
	CurrentUserEmail() (string, bool)
	// UpdatePassword returns ErrNotAuthenticated when no user is signed in.
	UpdatePassword(ctx context.Context, newPassword string) error
	SaveUserProfile(ctx context.Context, uid, email string) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
