package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental_insights/internal/app"
	"rental_insights/internal/domain"
)

type fakeIngester struct {
	mu       sync.Mutex
	rows     int
	texts    []string
	fallback []string
	listed   []string
	scraped  []string

	inFlight, maxInFlight int32
}

func (f *fakeIngester) enter() func() {
	n := atomic.AddInt32(&f.inFlight, 1)
	for {
		m := atomic.LoadInt32(&f.maxInFlight)
		if n <= m || atomic.CompareAndSwapInt32(&f.maxInFlight, m, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	return func() { atomic.AddInt32(&f.inFlight, -1) }
}

func (f *fakeIngester) IngestTransactions(ctx context.Context, rows []map[string]string, w *domain.DateRange) (app.TransactionsResult, error) {
	defer f.enter()()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows += len(rows)
	return app.TransactionsResult{}, nil
}

func (f *fakeIngester) IngestEarnings(ctx context.Context, text, fallback string) (app.EarningsResult, error) {
	defer f.enter()()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	f.fallback = append(f.fallback, fallback)
	return app.EarningsResult{}, nil
}

func (f *fakeIngester) IngestListing(ctx context.Context, name, url string, snap domain.ListingSnapshot) (domain.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed = append(f.listed, name)
	return domain.Property{}, nil
}

func (f *fakeIngester) ScrapeListing(ctx context.Context, name, url string) (domain.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if url == "" {
		return domain.Property{}, domain.ErrNoListingURL
	}
	f.scraped = append(f.scraped, name)
	return domain.Property{}, nil
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestRunner_BoundedFanOut(t *testing.T) {
	dir := t.TempDir()
	var jobs []job
	for _, n := range []string{"a.csv", "b.csv", "c.csv", "d.csv"} {
		jobs = append(jobs, job{kind: jobTransactions, path: writeFile(t, dir, n, "Date,Amount\n2024-01-01,10\n")})
	}
	jobs = append(jobs, job{kind: jobEarnings, path: writeFile(t, dir, "e.txt", "Gross earnings $10.00\n")})

	ing := &fakeIngester{}
	r := &runner{ing: ing, property: "Cabin", workers: 2}
	failed := r.run(context.Background(), jobs)

	assert.Equal(t, 0, failed)
	assert.Equal(t, 4, ing.rows)
	assert.Equal(t, []string{"Cabin"}, ing.fallback)
	assert.LessOrEqual(t, atomic.LoadInt32(&ing.maxInFlight), int32(2))
}

func TestRunner_ListingFileAndFailures(t *testing.T) {
	dir := t.TempDir()
	listings := writeFile(t, dir, "l.json", `[
	  {"propertyName":"Loft","url":"https://example.com/rooms/1","snapshot":{"rating":4.9}},
	  {"propertyName":"Barn","url":"https://example.com/rooms/2"}
	]`)
	broken := writeFile(t, dir, "bad.json", `{`)
	noURL := writeFile(t, dir, "nourl.json", `[{"propertyName":"Shed"}]`)

	ing := &fakeIngester{}
	r := &runner{ing: ing, workers: 1}
	failed := r.run(context.Background(), []job{
		{kind: jobListing, path: listings},
		{kind: jobListing, path: broken},
		{kind: jobListing, path: noURL},
		{kind: jobTransactions, path: filepath.Join(dir, "missing.csv")},
	})

	assert.Equal(t, 3, failed)
	assert.Equal(t, []string{"Loft"}, ing.listed)
	assert.Equal(t, []string{"Barn"}, ing.scraped)
}

func TestParseWindow(t *testing.T) {
	w, err := parseWindow("", "")
	require.NoError(t, err)
	assert.Nil(t, w)

	w, err = parseWindow("2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, 31, w.Days())

	_, err = parseWindow("2024-02-01", "2024-01-01")
	assert.True(t, errors.Is(err, domain.ErrInvalidWindow))
	_, err = parseWindow("2024-01-01", "")
	assert.ErrorIs(t, err, domain.ErrInvalidWindow)
}

func TestBuildJobs(t *testing.T) {
	jobs := buildJobs(flags{transactions: []string{"a.csv"}, earnings: []string{"b.txt"}, listings: []string{"c.json"}})
	require.Len(t, jobs, 3)
	assert.Equal(t, jobTransactions, jobs[0].kind)
	assert.Equal(t, jobEarnings, jobs[1].kind)
	assert.Equal(t, jobListing, jobs[2].kind)
}
