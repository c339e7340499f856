package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"rental_insights/internal/adapters/observability"
	redisad "rental_insights/internal/adapters/redis"
	"rental_insights/internal/adapters/scraper"
	"rental_insights/internal/app"
	"rental_insights/internal/domain"
	"rental_insights/internal/shared"
	mysqlrepo "rental_insights/internal/storage/mysql"
)

type flags struct {
	transactions []string
	earnings     []string
	listings     []string
	start, end   string
	property     string
	workers      int
}

func main() {
	var f flags
	cmd := &cobra.Command{
		Use:   "ingestor",
		Short: "Ingest transaction exports, earnings summaries and listing snapshots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd.Context(), f)
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringSliceVar(&f.transactions, "transactions", nil, "transaction CSV export (repeatable)")
	cmd.Flags().StringSliceVar(&f.earnings, "earnings", nil, "earnings summary text (repeatable)")
	cmd.Flags().StringSliceVar(&f.listings, "listing", nil, "JSON array of {propertyName,url,snapshot} (repeatable)")
	cmd.Flags().StringVar(&f.start, "start", "", "reporting window start, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.end, "end", "", "reporting window end, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.property, "property", "", "property for earnings summaries without a listing section")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "files ingested in parallel (default INGEST_WORKERS)")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func parseWindow(start, end string) (*domain.DateRange, error) {
	if start == "" && end == "" {
		return nil, nil
	}
	s, err1 := time.Parse("2006-01-02", start)
	e, err2 := time.Parse("2006-01-02", end)
	if err1 != nil || err2 != nil || e.Before(s) {
		return nil, fmt.Errorf("--start/--end %q..%q: %w", start, end, domain.ErrInvalidWindow)
	}
	return &domain.DateRange{Start: s, End: e}, nil
}

func buildJobs(f flags) []job {
	jobs := make([]job, 0, len(f.transactions)+len(f.earnings)+len(f.listings))
	for _, p := range f.transactions {
		jobs = append(jobs, job{kind: jobTransactions, path: p})
	}
	for _, p := range f.earnings {
		jobs = append(jobs, job{kind: jobEarnings, path: p})
	}
	for _, p := range f.listings {
		jobs = append(jobs, job{kind: jobListing, path: p})
	}
	return jobs
}

func runIngest(ctx context.Context, f flags) error {
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	window, err := parseWindow(f.start, f.end)
	if err != nil {
		return err
	}
	jobs := buildJobs(f)
	if len(jobs) == 0 {
		return fmt.Errorf("nothing to ingest: pass --transactions, --earnings or --listing")
	}
	workers := f.workers
	if workers <= 0 {
		workers = cfg.Workers
	}

	aliases, err := shared.LoadAliases(cfg.AliasesFile)
	if err != nil {
		return err
	}

	log.Info().
		Int("jobs", len(jobs)).
		Int("workers", workers).
		Int("aliases", aliases.Len()).
		Msg("ingestor starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		return fmt.Errorf("sql.Open: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()

	var listings domain.ListingScraper
	if cfg.ScraperBase != "" {
		client, err := scraper.New(cfg.ScraperBase, cfg.ScraperKey, cfg.ScraperRPS)
		if err != nil {
			return fmt.Errorf("scraper client: %w", err)
		}
		listings = client
	}

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	merger := app.NewMerger(aliases, time.Now, app.DefaultMergerOptions())
	ing := app.NewIngestionService(repo, cache, listings, merger).WithObserver(observability.ObserveIngest)

	r := &runner{ing: ing, window: window, property: f.property, workers: workers}
	if failed := r.run(ctx, jobs); failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(jobs))
	}
	log.Info().Msg("ingestion completed")
	return nil
}
