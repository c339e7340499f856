package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rental_insights/internal/domain"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

func propertyKey(id string) string { return "property:" + id }

// listVersionKey holds a token bumped on every write; list pages cached
// under an older token are never read again and age out by TTL.
const listVersionKey = "properties:version"

func listKey(version string, limit int, cursor string) string {
	return fmt.Sprintf("properties:%s:%d:%s", version, limit, cursor)
}

type QueryService struct {
	repo     domain.PropertyRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(r domain.PropertyRepository, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl}
}

func (s *QueryService) GetProperty(ctx context.Context, id string) (domain.Property, error) {
	key := propertyKey(id)
	var p domain.Property
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &p); ok {
			return p, nil
		}
	}
	p, err := s.repo.GetProperty(ctx, id)
	if err != nil {
		return domain.Property{}, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, p, int(s.cacheTTL.Seconds()))
	}
	return p, nil
}

func (s *QueryService) ListProperties(ctx context.Context, q domain.PropertiesQuery) (domain.PropertiesPage, error) {
	if q.Limit <= 0 {
		q.Limit = defaultPageLimit
	}
	if q.Limit > maxPageLimit {
		q.Limit = maxPageLimit
	}
	cursor := ""
	if q.Cursor != nil {
		cursor = *q.Cursor
	}
	var key string
	var out domain.PropertiesPage
	if s.cache != nil {
		var version string
		_, _ = s.cache.Get(ctx, listVersionKey, &version)
		key = listKey(version, q.Limit, cursor)
		if ok, _ := s.cache.Get(ctx, key, &out); ok {
			return out, nil
		}
	}

	pg, err := s.repo.ListProperties(ctx, q)
	if err != nil {
		return domain.PropertiesPage{}, err
	}

	// copy slice to avoid aliasing the repo's backing array
	cp := domain.PropertiesPage{NextCursor: pg.NextCursor, Items: make([]domain.Property, len(pg.Items))}
	copy(cp.Items, pg.Items)

	if s.cache != nil {
		if b, _ := json.Marshal(cp); len(b) < 1_000_000 {
			_ = s.cache.Set(ctx, key, cp, int(s.cacheTTL.Seconds()))
		}
	}
	return cp, nil
}
