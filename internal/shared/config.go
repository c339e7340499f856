package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv         string
	HTTPAddr       string
	MetricsAddr    string
	MySQLDSN       string
	RedisAddr      string
	RedisDB        int
	RedisPass      string
	ScraperBase    string
	ScraperKey     string
	ScraperRPS     int
	Workers        int
	CacheTTL       time.Duration
	RequestTimeout time.Duration
	MaxUploadBytes int64
	AliasesFile    string
}

// Load reads the process environment, after merging an optional .env file
// from the working directory.
func Load() Config {
	_ = godotenv.Load()

	c := Config{
		AppEnv:         env("APP_ENV", "prod"),
		HTTPAddr:       env("HTTP_ADDR", ":8080"),
		MetricsAddr:    env("METRICS_ADDR", ""),
		MySQLDSN:       env("MYSQL_DSN", "root:root@tcp(localhost:3306)/rental?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:      env("REDIS_ADDR", "localhost:6379"),
		RedisPass:      env("REDIS_PASSWORD", ""),
		RedisDB:        atoi("REDIS_DB", 0),
		ScraperBase:    env("SCRAPER_BASE_URL", ""),
		ScraperKey:     env("SCRAPER_API_KEY", ""),
		ScraperRPS:     atoi("SCRAPER_RPS", 2),
		Workers:        atoi("INGEST_WORKERS", 4),
		CacheTTL:       time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
		RequestTimeout: time.Duration(atoi("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
		MaxUploadBytes: int64(atoi("MAX_UPLOAD_BYTES", 10<<20)),
		AliasesFile:    env("ALIASES_FILE", ""),
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.ScraperBase == "" {
		log.Warn().Msg("SCRAPER_BASE_URL is empty; listing scrapes are disabled")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warn().Str("key", k).Str("value", v).Msg("ignoring non-integer env value")
	}
	return def
}
