// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig aggregates every configuration concern the pipeline needs,
// the way the teacher's AppConfig aggregates ServerConfig/WorkerConfig/
// DNSValidatorConfig/etc (§4.0 Configuration).
type AppConfig struct {
	Server    ServerConfig
	Worker    WorkerConfig
	Budget    BudgetConfig
	External  ExternalServicesConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig

	loadedFromEnvFile string
}

// ServerConfig controls the operational HTTP surface (§6 "operational
// surface"; §1 explicitly excludes an admin REST API beyond this).
type ServerConfig struct {
	ListenAddr    string
	MetricsAddr   string
	JaegerURL     string
	ServiceName   string
}

// WorkerConfig controls the named-queue worker pool (§5).
type WorkerConfig struct {
	Queues            []string
	ConcurrencyPerQueue int
}

// BudgetConfig carries the per-product and per-session ceilings (§4.10).
type BudgetConfig struct {
	MaxURLsPerProduct       int
	MaxSearchesPerProduct   int
	MaxEnrichmentTime       time.Duration
	SessionMaxSearches      int
	SessionMaxSources       int
	SessionMaxTime          time.Duration
}

// ExternalServicesConfig carries credentials and endpoints for the three
// out-of-scope external collaborators (§6 Environment).
type ExternalServicesConfig struct {
	SerpAPIKey             string
	SerpAPIHost            string
	ScrapingBeeKey         string
	AIEnhancementToken     string
	AIEnhancementServiceURL string
	SearchTimeout          time.Duration
	FetchTimeout           time.Duration
	ExtractTimeout         time.Duration
}

// DatabaseConfig holds Postgres connection settings, following the
// teacher's loadDatabaseConfig shape (internal/config/env_config.go).
type DatabaseConfig struct {
	Host               string
	Port               int
	Name               string
	User               string
	Password           string
	SSLMode            string
	MaxConnections     int
	MaxIdleConnections int
}

// DSN builds a libpq connection string from the config.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode)
}

// URL builds a postgres:// connection URL from the config, for drivers
// (golang-migrate's among them) that expect URL form rather than libpq
// key=value pairs.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User), url.QueryEscape(d.Password), d.Host, d.Port, d.Name, d.SSLMode)
}

// RedisConfig backs the Budget Tracker (§4.10) and the named-queue broker (§5).
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SchedulerConfig controls the beat dispatcher's tick periods (§4.9).
type SchedulerConfig struct {
	CheckDueSchedulesEvery time.Duration
	EnrichSkeletonsEvery   time.Duration
	EnrichSkeletonsLimit   int
	ProcessEnrichmentQueueEvery time.Duration
	ProcessEnrichmentQueueMax  int
}

// Load builds an AppConfig from the process environment, optionally
// loading a local .env file first so developer machines don't need real
// exported env vars.
func Load(envFilePath string) (*AppConfig, error) {
	loadedFrom := ""
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err == nil {
			loadedFrom = envFilePath
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading env file %s: %w", envFilePath, err)
		}
	}

	cfg := &AppConfig{
		loadedFromEnvFile: loadedFrom,
		Server: ServerConfig{
			ListenAddr:  getEnvOrDefault("LISTEN_ADDR", ":8080"),
			MetricsAddr: getEnvOrDefault("METRICS_ADDR", ":9090"),
			JaegerURL:   getEnvOrDefault("JAEGER_ENDPOINT", ""),
			ServiceName: getEnvOrDefault("SERVICE_NAME", "product-pipeline"),
		},
		Worker: WorkerConfig{
			// checkDueSchedules only ever pushes onto default/discovery/crawl
			// (models.ScheduleCategoryEnum.Queue()); search has no queue
			// consumer and enrichment is drained by the Scheduler's own
			// process_enrichment_queue beat, so neither belongs here.
			Queues:              []string{"default", "discovery", "crawl"},
			ConcurrencyPerQueue: getEnvAsInt("WORKER_CONCURRENCY", 4),
		},
		Budget: BudgetConfig{
			MaxURLsPerProduct:     getEnvAsInt("BUDGET_MAX_URLS_PER_PRODUCT", 5),
			MaxSearchesPerProduct: getEnvAsInt("BUDGET_MAX_SEARCHES_PER_PRODUCT", 3),
			MaxEnrichmentTime:     getEnvAsDuration("BUDGET_MAX_ENRICHMENT_TIME", 120*time.Second),
			SessionMaxSearches:    getEnvAsInt("BUDGET_SESSION_MAX_SEARCHES", 6),
			SessionMaxSources:     getEnvAsInt("BUDGET_SESSION_MAX_SOURCES", 8),
			SessionMaxTime:        getEnvAsDuration("BUDGET_SESSION_MAX_TIME", 180*time.Second),
		},
		External: ExternalServicesConfig{
			SerpAPIKey:              getEnvOrDefault("SERPAPI_KEY", ""),
			SerpAPIHost:             getEnvOrDefault("SERPAPI_HOST", "https://serpapi.com"),
			ScrapingBeeKey:          getEnvOrDefault("SCRAPINGBEE_KEY", ""),
			AIEnhancementToken:      getEnvOrDefault("AI_ENHANCEMENT_SERVICE_TOKEN", ""),
			AIEnhancementServiceURL: getEnvOrDefault("AI_ENHANCEMENT_SERVICE_URL", ""),
			SearchTimeout:           getEnvAsDuration("SEARCH_TIMEOUT", 30*time.Second),
			FetchTimeout:            getEnvAsDuration("FETCH_TIMEOUT", 30*time.Second),
			ExtractTimeout:          getEnvAsDuration("EXTRACT_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:               getEnvOrDefault("DATABASE_HOST", "localhost"),
			Port:               getEnvAsInt("DATABASE_PORT", 5432),
			Name:               getEnvOrDefault("DATABASE_NAME", "productpipeline"),
			User:               getEnvOrDefault("DATABASE_USER", "productpipeline"),
			Password:           getEnvOrDefault("DATABASE_PASSWORD", ""),
			SSLMode:            getEnvOrDefault("DATABASE_SSL_MODE", "disable"),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 25),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Scheduler: SchedulerConfig{
			CheckDueSchedulesEvery:      getEnvAsDuration("SCHEDULER_CHECK_DUE_EVERY", 5*time.Minute),
			EnrichSkeletonsEvery:        getEnvAsDuration("SCHEDULER_ENRICH_SKELETONS_EVERY", 30*time.Minute),
			EnrichSkeletonsLimit:        getEnvAsInt("SCHEDULER_ENRICH_SKELETONS_LIMIT", 50),
			ProcessEnrichmentQueueEvery: getEnvAsDuration("SCHEDULER_PROCESS_ENRICHMENT_QUEUE_EVERY", 10*time.Minute),
			ProcessEnrichmentQueueMax:   getEnvAsInt("SCHEDULER_PROCESS_ENRICHMENT_QUEUE_MAX", 100),
		},
	}
	return cfg, nil
}

// LoadedFromEnvFile returns the path of the .env file actually loaded, or
// "" if none was found (mirrors the teacher's loadedFromPath tracking).
func (c *AppConfig) LoadedFromEnvFile() string { return c.loadedFromEnvFile }

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
