package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"rental_insights/internal/adapters/upload"
	"rental_insights/internal/app"
	"rental_insights/internal/domain"
)

// ingester is the part of app.IngestionService the CLI drives.
type ingester interface {
	IngestTransactions(ctx context.Context, rows []map[string]string, window *domain.DateRange) (app.TransactionsResult, error)
	IngestEarnings(ctx context.Context, text, fallbackName string) (app.EarningsResult, error)
	IngestListing(ctx context.Context, name, url string, snap domain.ListingSnapshot) (domain.Property, error)
	ScrapeListing(ctx context.Context, name, url string) (domain.Property, error)
}

type jobKind string

const (
	jobTransactions jobKind = "transactions"
	jobEarnings     jobKind = "earnings"
	jobListing      jobKind = "listing"
)

type job struct {
	kind jobKind
	path string
}

// listingEntry is one element of a --listing file.
type listingEntry struct {
	PropertyName string                  `json:"propertyName"`
	URL          string                  `json:"url"`
	Snapshot     *domain.ListingSnapshot `json:"snapshot"`
}

type runner struct {
	ing      ingester
	window   *domain.DateRange
	property string
	workers  int
}

// run executes every job with at most r.workers in flight. One failed file
// does not stop the others; the count of failures is returned.
func (r *runner) run(ctx context.Context, jobs []job) int {
	workers := r.workers
	if workers < 1 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	g, gctx := errgroup.WithContext(ctx)
	var failed int32

	for _, j := range jobs {
		j := j

		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(gctx, 1); err != nil {
			log.Error().Err(err).Msg("semaphore acquire failed")
			atomic.AddInt32(&failed, 1)
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			if err := r.one(gctx, j); err != nil {
				atomic.AddInt32(&failed, 1)
				log.Warn().Str("kind", string(j.kind)).Str("path", j.path).Err(err).Msg("ingest failed")
				return nil
			}
			log.Info().Str("kind", string(j.kind)).Str("path", j.path).Msg("ingest ok")
			return nil
		})
	}
	_ = g.Wait()
	return int(failed)
}

func (r *runner) one(ctx context.Context, j job) error {
	switch j.kind {
	case jobTransactions:
		f, err := os.Open(j.path)
		if err != nil {
			return err
		}
		defer f.Close()
		rows, err := upload.ReadRows(f)
		if err != nil {
			return fmt.Errorf("read csv: %w", err)
		}
		_, err = r.ing.IngestTransactions(ctx, rows, r.window)
		return err

	case jobEarnings:
		text, err := os.ReadFile(j.path)
		if err != nil {
			return err
		}
		_, err = r.ing.IngestEarnings(ctx, string(text), r.property)
		return err

	case jobListing:
		data, err := os.ReadFile(j.path)
		if err != nil {
			return err
		}
		var entries []listingEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("decode listings: %w", err)
		}
		for _, e := range entries {
			if e.Snapshot != nil {
				_, err = r.ing.IngestListing(ctx, e.PropertyName, e.URL, *e.Snapshot)
			} else {
				_, err = r.ing.ScrapeListing(ctx, e.PropertyName, e.URL)
			}
			if err != nil {
				return fmt.Errorf("listing %q: %w", e.PropertyName, err)
			}
		}
		return nil
	}
	return fmt.Errorf("unknown job kind %q", j.kind)
}
