package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"rental_insights/internal/domain"
)

var ErrNoScraper = errors.New("no listing scraper configured")

// IngestObserver receives one call per ingestion event.
type IngestObserver func(source, status string, rowsSeen, rowsDropped int)

type TransactionsResult struct {
	Parsed     domain.ParsedTransactions `json:"parsed"`
	Properties []domain.Property         `json:"properties"`
}

type EarningsResult struct {
	Summary    domain.EarningsSummary `json:"summary"`
	Properties []domain.Property      `json:"properties"`
}

type IngestionService struct {
	repo    domain.PropertyRepository
	cache   domain.Cache
	scraper domain.ListingScraper
	merger  *Merger
	now     Clock
	observe IngestObserver

	// read-merge-write of a property is one critical section
	mu sync.Mutex
}

func NewIngestionService(r domain.PropertyRepository, cache domain.Cache, sc domain.ListingScraper, m *Merger) *IngestionService {
	return &IngestionService{repo: r, cache: cache, scraper: sc, merger: m, now: m.now}
}

func (s *IngestionService) WithObserver(fn IngestObserver) *IngestionService {
	s.observe = fn
	return s
}

// IngestTransactions parses one transaction export and merges its
// per-property metrics into the store.
func (s *IngestionService) IngestTransactions(ctx context.Context, rows []map[string]string, window *domain.DateRange) (TransactionsResult, error) {
	parsed, err := ParseTransactions(rows, window)
	if err != nil {
		s.record(ctx, domain.IngestRun{Source: domain.SourceCSV, RowsSeen: len(rows), Status: "failed", Detail: err.Error()})
		return TransactionsResult{}, err
	}

	uploadedAt := s.now()
	grouped := s.merger.GroupByStandardName(parsed.PropertyMetrics)
	updates := make(map[string]domain.DataSources, len(grouped))
	for std, pm := range grouped {
		src := &domain.CSVSource{Metrics: pm, UploadedAt: uploadedAt}
		if window != nil {
			w := *window
			src.Window = &w
		}
		updates[std] = domain.DataSources{CSV: src}
	}

	props, err := s.apply(ctx, updates, "")
	run := domain.IngestRun{
		Source:      domain.SourceCSV,
		RowsSeen:    parsed.RowsSeen,
		RowsDropped: parsed.RowsDropped,
		Properties:  len(props),
	}
	if err != nil {
		run.Status, run.Detail = "failed", err.Error()
		s.record(ctx, run)
		return TransactionsResult{}, err
	}
	run.Status = statusFor(len(props))
	s.record(ctx, run)

	log.Info().Str("source", "csv").Int("rows", parsed.RowsSeen).Int("dropped", parsed.RowsDropped).
		Int("properties", len(props)).Msg("transactions ingested")
	return TransactionsResult{Parsed: parsed, Properties: props}, nil
}

// IngestEarnings reads an earnings summary. fallbackName attributes a summary
// without a per-listing section to one property.
func (s *IngestionService) IngestEarnings(ctx context.Context, text, fallbackName string) (EarningsResult, error) {
	summary := ParseEarningsSummary(text)
	records := s.merger.PDFRecords(summary, fallbackName)

	uploadedAt := s.now()
	updates := make(map[string]domain.DataSources, len(records))
	for std, rec := range records {
		updates[std] = domain.DataSources{PDF: &domain.PDFSource{Record: rec, UploadedAt: uploadedAt}}
	}

	props, err := s.apply(ctx, updates, "")
	run := domain.IngestRun{Source: domain.SourcePDF, Properties: len(props)}
	if err != nil {
		run.Status, run.Detail = "failed", err.Error()
		s.record(ctx, run)
		return EarningsResult{}, err
	}
	run.Status = statusFor(len(props))
	s.record(ctx, run)

	log.Info().Str("source", "pdf").Int("listings", len(summary.Properties)).
		Int("properties", len(props)).Msg("earnings summary ingested")
	return EarningsResult{Summary: summary, Properties: props}, nil
}

// IngestListing merges a scraped snapshot into the named property.
func (s *IngestionService) IngestListing(ctx context.Context, name, url string, snap domain.ListingSnapshot) (domain.Property, error) {
	std := s.merger.StandardName(name)
	if std == "" {
		return domain.Property{}, domain.ErrEmptyName
	}
	updates := map[string]domain.DataSources{
		std: {Scraped: &domain.ScrapedSource{Snapshot: snap, ScrapedAt: s.now()}},
	}
	props, err := s.apply(ctx, updates, url)
	run := domain.IngestRun{Source: domain.SourceScraped, Properties: len(props)}
	if err != nil {
		run.Status, run.Detail = "failed", err.Error()
		s.record(ctx, run)
		return domain.Property{}, err
	}
	run.Status = "ok"
	s.record(ctx, run)
	return props[0], nil
}

// ScrapeListing fetches a snapshot for url through the scraper service and
// merges it into the named property.
func (s *IngestionService) ScrapeListing(ctx context.Context, name, url string) (domain.Property, error) {
	if url == "" {
		return domain.Property{}, domain.ErrNoListingURL
	}
	if s.scraper == nil {
		return domain.Property{}, ErrNoScraper
	}
	snap, err := s.scraper.GetListing(ctx, url)
	if err != nil {
		s.record(ctx, domain.IngestRun{Source: domain.SourceScraped, Status: "failed", Detail: err.Error()})
		return domain.Property{}, fmt.Errorf("get listing %s: %w", url, err)
	}
	return s.IngestListing(ctx, name, url, snap)
}

// RefreshListing re-scrapes the URL already stored on a property.
func (s *IngestionService) RefreshListing(ctx context.Context, id string) (domain.Property, error) {
	p, err := s.repo.GetProperty(ctx, id)
	if err != nil {
		return domain.Property{}, err
	}
	if p.AirbnbURL == nil || *p.AirbnbURL == "" {
		return domain.Property{}, domain.ErrNoListingURL
	}
	return s.ScrapeListing(ctx, p.Name, *p.AirbnbURL)
}

// DeleteProperty removes a property on the owner's request. The pipeline
// itself never deletes.
func (s *IngestionService) DeleteProperty(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.DeleteProperty(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// apply merges each update into the stored property of the same standard
// name and writes the result. Properties are returned in name order.
func (s *IngestionService) apply(ctx context.Context, updates map[string]domain.DataSources, url string) ([]domain.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Property, 0, len(updates))
	for _, std := range SortedNames(updates) {
		var existing *domain.Property
		cur, err := s.repo.GetPropertyByStandardName(ctx, std)
		switch {
		case err == nil:
			existing = &cur
		case errors.Is(err, domain.ErrNotFound):
		default:
			return out, fmt.Errorf("load %q: %w", std, err)
		}

		sources := updates[std]
		if existing != nil {
			sources = existing.DataSources.Overlay(sources)
		}
		p, err := s.merger.Merge(existing, std, sources, url)
		if err != nil {
			return out, fmt.Errorf("merge %q: %w", std, err)
		}
		if err := s.repo.UpsertProperty(ctx, p); err != nil {
			return out, fmt.Errorf("upsert %q: %w", std, err)
		}
		s.invalidate(ctx, p.ID)
		out = append(out, p)
	}
	return out, nil
}

func (s *IngestionService) record(ctx context.Context, run domain.IngestRun) {
	if err := s.repo.LogIngest(ctx, run); err != nil {
		log.Warn().Err(err).Str("source", string(run.Source)).Msg("ingest audit write failed")
	}
	if s.observe != nil {
		s.observe(string(run.Source), run.Status, run.RowsSeen, run.RowsDropped)
	}
}

func statusFor(n int) string {
	if n == 0 {
		return "empty"
	}
	return "ok"
}

// invalidate drops the property view and bumps the list version, which
// retires every cached page at once.
func (s *IngestionService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, propertyKey(id))
	if err := s.cache.Set(ctx, listVersionKey, uuid.NewString(), 0); err != nil {
		log.Warn().Err(err).Msg("list cache version bump failed")
	}
}
