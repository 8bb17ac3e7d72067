package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"winemap/internal/domain"
)

const (
	allReportsKey  = "reports:all"
	userReportsKey = "reports:user:"
)

// QueryService is the cached read path over a ReportRepository. It remembers
// which per-user keys it has warmed, so writes that only know the report id
// can still evict every list that might carry the stale row.
type QueryService struct {
	repo     domain.ReportRepository
	cache    domain.Cache
	cacheTTL time.Duration

	mu       sync.Mutex
	userKeys map[string]struct{}
}

func NewQueryService(r domain.ReportRepository, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl, userKeys: make(map[string]struct{})}
}

func (s *QueryService) GetAllReports(ctx context.Context) ([]domain.Report, error) {
	return s.cached(ctx, allReportsKey, s.repo.GetAllReports)
}

func (s *QueryService) GetReportsForUser(ctx context.Context, userID string) ([]domain.Report, error) {
	key := userReportsKey + userID
	s.mu.Lock()
	s.userKeys[key] = struct{}{}
	s.mu.Unlock()
	return s.cached(ctx, key, func(ctx context.Context) ([]domain.Report, error) {
		return s.repo.GetReportsForUser(ctx, userID)
	})
}

func (s *QueryService) cached(ctx context.Context, key string, fetch func(context.Context) ([]domain.Report, error)) ([]domain.Report, error) {
	var out []domain.Report
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}
	rs, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	// copy slice to avoid aliasing the repo's backing array
	cp := make([]domain.Report, len(rs))
	copy(cp, rs)

	// size guard before caching
	if b, _ := json.Marshal(cp); len(b) < 1_000_000 {
		_ = s.cache.Set(ctx, key, cp, int(s.cacheTTL.Seconds()))
	}
	return cp, nil
}

// InvalidateUser evicts the per-user list and the all-reports list; every
// write affects both.
func (s *QueryService) InvalidateUser(ctx context.Context, userID string) {
	key := userReportsKey + userID
	s.mu.Lock()
	delete(s.userKeys, key)
	s.mu.Unlock()
	_ = s.cache.Del(ctx, key)
	_ = s.cache.Del(ctx, allReportsKey)
}

// InvalidateAll evicts the all-reports list and every per-user list this
// service has warmed; used when the owning user is unknown (update and
// delete address reports by id only).
func (s *QueryService) InvalidateAll(ctx context.Context) {
	s.mu.Lock()
	keys := make([]string, 0, len(s.userKeys))
	for k := range s.userKeys {
		keys = append(keys, k)
	}
	s.userKeys = make(map[string]struct{})
	s.mu.Unlock()

	_ = s.cache.Del(ctx, allReportsKey)
	for _, k := range keys {
		_ = s.cache.Del(ctx, k)
	}
}
