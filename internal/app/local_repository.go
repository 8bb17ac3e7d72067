package app

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"winemap/internal/domain"
)

// LocalReportRepository backs the repository contract with the embedded
// record store. It synthesizes ids and createdAt at save time.
type LocalReportRepository struct {
	store   domain.ReportStore
	now     func() time.Time
	randInt func(n int) int
}

func NewLocalReportRepository(store domain.ReportStore) *LocalReportRepository {
	return &LocalReportRepository{store: store, now: time.Now, randInt: rand.Intn}
}

func (r *LocalReportRepository) SaveReport(ctx context.Context, d domain.ReportDraft) error {
	ms := r.now().UnixMilli()
	rep := domain.Report{
		ID:         fmt.Sprintf("report_%d_%d", ms, 1000+r.randInt(9000)),
		UserID:     d.UserID,
		UserName:   d.UserName,
		WineryName: d.WineryName,
		Content:    d.Content,
		ImageURL:   d.ImageURL,
		Rating:     d.Rating,
		CreatedAt:  ms,
		Location:   d.Location,
	}
	return r.store.Upsert(ctx, rep)
}

func (r *LocalReportRepository) GetReportsForUser(ctx context.Context, userID string) ([]domain.Report, error) {
	return r.store.GetByUser(ctx, userID)
}

func (r *LocalReportRepository) GetAllReports(ctx context.Context) ([]domain.Report, error) {
	return r.store.GetAll(ctx)
}

// UpdateReport is not provided by the local backend; callers get an explicit
// ErrNotSupported instead of a silent no-op.
func (r *LocalReportRepository) UpdateReport(ctx context.Context, id string, p domain.ReportPatch) error {
	return fmt.Errorf("update report %s locally: %w", id, domain.ErrNotSupported)
}

func (r *LocalReportRepository) DeleteReport(ctx context.Context, id string) error {
	return r.store.DeleteByID(ctx, id)
}
