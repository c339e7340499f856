package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "rental_insights/internal/adapters/http_server"
	"rental_insights/internal/adapters/observability"
	redisad "rental_insights/internal/adapters/redis"
	"rental_insights/internal/adapters/scraper"
	"rental_insights/internal/app"
	"rental_insights/internal/domain"
	"rental_insights/internal/shared"
	mysqlrepo "rental_insights/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	aliases, err := shared.LoadAliases(cfg.AliasesFile)
	if err != nil {
		log.Fatal().Err(err).Msg("load aliases failed")
	}
	log.Info().Int("aliases", aliases.Len()).Msg("alias table loaded")

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()
	if err := cache.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("redis unreachable; serving without cache hits")
	}

	var listings domain.ListingScraper
	if cfg.ScraperBase != "" {
		client, err := scraper.New(cfg.ScraperBase, cfg.ScraperKey, cfg.ScraperRPS)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize scraper client")
		}
		listings = client
	}

	merger := app.NewMerger(aliases, time.Now, app.DefaultMergerOptions())
	q := app.NewQueryService(repo, cache, cfg.CacheTTL)
	ing := app.NewIngestionService(repo, cache, listings, merger).WithObserver(observability.ObserveIngest)

	// http
	reg := observability.InitRegistry()
	srv := server.New(cfg.RequestTimeout)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, I: ing, MaxUpload: cfg.MaxUploadBytes})
	observability.Serve(cfg.MetricsAddr, reg)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdown); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}
