package app_test

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"rental_insights/internal/domain"
)

// ---- fakes ----

type fakeRepo struct {
	mu      sync.Mutex
	byID    map[string]domain.Property
	runs    []domain.IngestRun
	upserts int
	getErr  error
}

func newFakeRepo() *fakeRepo { return &fakeRepo{byID: map[string]domain.Property{}} }

func (f *fakeRepo) UpsertProperty(ctx context.Context, p domain.Property) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	f.byID[p.ID] = p
	return nil
}
func (f *fakeRepo) DeleteProperty(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}
func (f *fakeRepo) LogIngest(ctx context.Context, run domain.IngestRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return nil
}
func (f *fakeRepo) GetProperty(ctx context.Context, id string) (domain.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return domain.Property{}, f.getErr
	}
	p, ok := f.byID[id]
	if !ok {
		return domain.Property{}, domain.ErrNotFound
	}
	return p, nil
}
func (f *fakeRepo) GetPropertyByStandardName(ctx context.Context, std string) (domain.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return domain.Property{}, f.getErr
	}
	for _, p := range f.byID {
		if domain.NameKey(p.StandardName) == domain.NameKey(std) {
			return p, nil
		}
	}
	return domain.Property{}, domain.ErrNotFound
}
func (f *fakeRepo) ListProperties(ctx context.Context, q domain.PropertiesQuery) (domain.PropertiesPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.byID))
	for id := range f.byID {
		if q.Cursor == nil || id > *q.Cursor {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	var pg domain.PropertiesPage
	for _, id := range ids {
		if len(pg.Items) == q.Limit {
			last := pg.Items[len(pg.Items)-1].ID
			pg.NextCursor = &last
			break
		}
		pg.Items = append(pg.Items, f.byID[id])
	}
	return pg, nil
}

// fakeCache round-trips through JSON like the redis adapter does.
type fakeCache struct {
	store map[string][]byte
	dels  []string
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}
func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}
func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.dels = append(c.dels, key)
	delete(c.store, key)
	return nil
}

type fakeScraper struct {
	snap  domain.ListingSnapshot
	err   error
	calls []string
}

func (s *fakeScraper) GetListing(ctx context.Context, url string) (domain.ListingSnapshot, error) {
	s.calls = append(s.calls, url)
	return s.snap, s.err
}

// ---- helpers ----

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func ptr[T any](v T) *T { return &v }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}
