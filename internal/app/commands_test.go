package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"rental_insights/internal/app"
	"rental_insights/internal/domain"
)

func newService(repo *fakeRepo, cache domain.Cache, sc domain.ListingScraper) *app.IngestionService {
	return app.NewIngestionService(repo, cache, sc, newMerger())
}

var unitRows = []map[string]string{
	{"Date": "2024-01-05", "Type": "Reservation", "Confirmation code": "C1", "Listing": "beach-house", "Gross earnings": "100", "Nights": "2"},
	{"Date": "2024-01-06", "Type": "Reservation", "Confirmation code": "C1", "Listing": "Beach House", "Gross earnings": "20"},
	{"Date": "2024-01-08", "Type": "Reservation", "Confirmation code": "C2", "Listing": "The Beach House (Malibu)", "Amount": "80", "Nights": "1"},
}

func TestIngestTransactions_AliasesCollapseToOneProperty(t *testing.T) {
	repo := newFakeRepo()
	cache := &fakeCache{}
	var observed []string
	svc := newService(repo, cache, nil).WithObserver(func(source, status string, seen, dropped int) {
		observed = append(observed, source+":"+status)
	})

	res, err := svc.IngestTransactions(context.Background(), unitRows, nil)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(res.Properties) != 1 {
		t.Fatalf("properties: %+v", res.Properties)
	}
	p := res.Properties[0]
	csv := p.DataSources.CSV
	if p.StandardName != "Beach House" || csv == nil || csv.Metrics.BookingCount != 2 || !csv.Metrics.TotalRevenue.Equal(dec("200")) {
		t.Fatalf("unexpected property: %+v", p)
	}
	if len(repo.runs) != 1 || repo.runs[0].Status != "ok" || repo.runs[0].RowsSeen != 3 {
		t.Fatalf("audit: %+v", repo.runs)
	}
	if len(observed) != 1 || observed[0] != "csv:ok" {
		t.Fatalf("observer: %v", observed)
	}
	if len(cache.dels) == 0 || cache.dels[0] != "property:"+p.ID {
		t.Fatalf("cache not invalidated: %v", cache.dels)
	}
}

func TestIngestTransactions_CaseVariantsShareOneProperty(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, &fakeCache{}, nil)
	ctx := context.Background()

	rows := []map[string]string{
		{"Date": "2024-02-01", "Type": "Reservation", "Confirmation code": "L1", "Listing": "Lake Cabin", "Gross earnings": "100", "Nights": "1"},
		{"Date": "2024-02-03", "Type": "Reservation", "Confirmation code": "L2", "Listing": "lake cabin", "Gross earnings": "300", "Nights": "3"},
	}
	res, err := svc.IngestTransactions(ctx, rows, nil)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(res.Properties) != 1 || len(repo.byID) != 1 {
		t.Fatalf("case variants split: %d results, %d stored", len(res.Properties), len(repo.byID))
	}
	p := res.Properties[0]
	if p.Metrics.Revenue.Value != 400 || p.DataSources.CSV.Metrics.BookingCount != 2 {
		t.Fatalf("revenue: %+v", p.Metrics.Revenue)
	}

	// a later upload spelled differently lands on the same row
	again := []map[string]string{
		{"Date": "2024-03-01", "Type": "Reservation", "Confirmation code": "L3", "Listing": "LAKE-CABIN", "Gross earnings": "50", "Nights": "1"},
	}
	res, err = svc.IngestTransactions(ctx, again, nil)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(repo.byID) != 1 || res.Properties[0].ID != p.ID || res.Properties[0].StandardName != "Lake Cabin" {
		t.Fatalf("identity drifted: %+v", res.Properties[0])
	}
}

func TestIngestTransactions_StampsWindowForOccupancy(t *testing.T) {
	repo := newFakeRepo()
	w := &domain.DateRange{Start: day("2024-01-01"), End: day("2024-01-31")}
	res, err := newService(repo, nil, nil).IngestTransactions(context.Background(), unitRows, w)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	p := res.Properties[0]
	if p.DataSources.CSV.Window == nil || p.DataSources.CSV.Window.Days() != 31 {
		t.Fatalf("window not stamped: %+v", p.DataSources.CSV.Window)
	}
	// 3 nights over 31 days
	if o := p.Metrics.Occupancy; o.Value != 9.68 || o.Confidence != domain.ConfidenceHigh {
		t.Fatalf("occupancy: %+v", o)
	}
	w.End = day("2024-12-31")
	if p.DataSources.CSV.Window.Days() != 31 {
		t.Fatalf("window aliases the caller's value")
	}
}

func TestIngest_SourcesAccumulateAndRecompute(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, &fakeCache{}, nil)
	ctx := context.Background()

	if _, err := svc.IngestEarnings(ctx, sampleSummary, ""); err != nil {
		t.Fatalf("earnings: %v", err)
	}
	pdfOnly, _ := repo.GetPropertyByStandardName(ctx, "Beach House")
	if pdfOnly.Metrics.Revenue.Source != domain.SourcePDF {
		t.Fatalf("revenue before csv: %+v", pdfOnly.Metrics.Revenue)
	}

	if _, err := svc.IngestTransactions(ctx, unitRows, nil); err != nil {
		t.Fatalf("transactions: %v", err)
	}
	merged, _ := repo.GetPropertyByStandardName(ctx, "Beach House")
	if merged.ID != pdfOnly.ID || !merged.CreatedAt.Equal(pdfOnly.CreatedAt) {
		t.Fatalf("identity changed: %s vs %s", merged.ID, pdfOnly.ID)
	}
	if merged.DataSources.PDF == nil || merged.DataSources.CSV == nil {
		t.Fatalf("sources not kept: %+v", merged.DataSources)
	}
	if merged.Metrics.Revenue.Source != domain.SourceCSV || merged.DataCompleteness != 70 {
		t.Fatalf("csv should win after upload: %+v (%d)", merged.Metrics.Revenue, merged.DataCompleteness)
	}
	if merged.Health <= pdfOnly.Health {
		t.Fatalf("health %d should rise above %d", merged.Health, pdfOnly.Health)
	}
	// Mayfair Loft came from the summary only
	if len(repo.byID) != 2 {
		t.Fatalf("properties stored: %d", len(repo.byID))
	}
}

func TestIngestEarnings_EmptyText(t *testing.T) {
	repo := newFakeRepo()
	res, err := newService(repo, nil, nil).IngestEarnings(context.Background(), "nothing useful", "")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(res.Properties) != 0 || !res.Summary.IsEmpty() {
		t.Fatalf("expected empty result: %+v", res)
	}
	if len(repo.runs) != 1 || repo.runs[0].Status != "empty" {
		t.Fatalf("audit: %+v", repo.runs)
	}
}

func TestIngestTransactions_InvalidWindow(t *testing.T) {
	repo := newFakeRepo()
	w := &domain.DateRange{Start: day("2024-02-01"), End: day("2024-01-01")}
	_, err := newService(repo, nil, nil).IngestTransactions(context.Background(), unitRows, w)
	if !errors.Is(err, domain.ErrInvalidWindow) {
		t.Fatalf("want ErrInvalidWindow, got %v", err)
	}
	if len(repo.runs) != 1 || repo.runs[0].Status != "failed" {
		t.Fatalf("audit: %+v", repo.runs)
	}
}

func TestIngest_StorageErrorPropagates(t *testing.T) {
	repo := newFakeRepo()
	boom := errors.New("db down")
	repo.getErr = boom
	_, err := newService(repo, nil, nil).IngestTransactions(context.Background(), unitRows, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("want wrapped storage error, got %v", err)
	}
}

func TestRefreshListing(t *testing.T) {
	repo := newFakeRepo()
	sc := &fakeScraper{snap: domain.ListingSnapshot{NightlyPrice: ptr(210.0), Rating: ptr(4.8), ReviewCount: ptr(30)}}
	svc := newService(repo, &fakeCache{}, sc)
	ctx := context.Background()

	p, err := svc.IngestListing(ctx, "Beach House", "https://example.com/rooms/1", domain.ListingSnapshot{})
	if err != nil {
		t.Fatalf("listing: %v", err)
	}

	got, err := svc.RefreshListing(ctx, p.ID)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(sc.calls) != 1 || sc.calls[0] != "https://example.com/rooms/1" {
		t.Fatalf("scraper calls: %v", sc.calls)
	}
	if got.Metrics.Pricing.Value != 210 || got.Metrics.Satisfaction.Value != 4.8 || got.ID != p.ID {
		t.Fatalf("refreshed: %+v", got.Metrics)
	}
}

func TestRefreshListing_Errors(t *testing.T) {
	repo := newFakeRepo()
	sc := &fakeScraper{err: domain.ErrNotFound}
	svc := newService(repo, nil, sc)
	ctx := context.Background()

	if _, err := svc.RefreshListing(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown id: %v", err)
	}

	p, _ := svc.IngestListing(ctx, "No Url", "", domain.ListingSnapshot{})
	if _, err := svc.RefreshListing(ctx, p.ID); !errors.Is(err, domain.ErrNoListingURL) {
		t.Fatalf("missing url: %v", err)
	}

	q, _ := svc.IngestListing(ctx, "Gone", "https://example.com/rooms/404", domain.ListingSnapshot{})
	if _, err := svc.RefreshListing(ctx, q.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("scraper 404: %v", err)
	}
}

func TestDeleteProperty(t *testing.T) {
	repo := newFakeRepo()
	cache := &fakeCache{}
	svc := newService(repo, cache, nil)
	ctx := context.Background()

	p, _ := svc.IngestListing(ctx, "Beach House", "", domain.ListingSnapshot{})
	if err := svc.DeleteProperty(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetProperty(ctx, p.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("still stored: %v", err)
	}
	if err := svc.DeleteProperty(ctx, p.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestIngest_ConcurrentUploadsDoNotLoseSources(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, nil, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _, _ = svc.IngestTransactions(ctx, unitRows, nil) }()
	go func() {
		defer wg.Done()
		_, _ = svc.IngestListing(ctx, "Beach House", "https://example.com/rooms/1", domain.ListingSnapshot{Rating: ptr(4.5)})
	}()
	wg.Wait()

	p, err := repo.GetPropertyByStandardName(ctx, "Beach House")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if p.DataSources.CSV == nil || p.DataSources.Scraped == nil {
		t.Fatalf("lost a source: %+v", p.DataSources)
	}
}
