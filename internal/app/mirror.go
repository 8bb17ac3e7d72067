package app

import (
	"context"
	"fmt"

	"winemap/internal/domain"
)

// MirrorService refreshes the local record store from the remote backend,
// one direction only: the remote side is authoritative and the user's local
// rows are replaced wholesale. There is no merge, conflict resolution, or
// offline write queue.
type MirrorService struct {
	remote domain.ReportRepository
	store  domain.ReportStore
}

func NewMirrorService(remote domain.ReportRepository, store domain.ReportStore) *MirrorService {
	return &MirrorService{remote: remote, store: store}
}

// MirrorUser pulls the user's remote reports into the local cache and
// returns how many rows the cache now holds for that user.
func (m *MirrorService) MirrorUser(ctx context.Context, userID string) (int, error) {
	reports, err := m.remote.GetReportsForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("fetch remote reports for %s: %w", userID, err)
	}
	if err := m.store.ReplaceAllForUser(ctx, userID, reports); err != nil {
		return 0, fmt.Errorf("replace local reports for %s: %w", userID, err)
	}
	return len(reports), nil
}
