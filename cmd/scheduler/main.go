// Command scheduler runs the Scheduler's three beats (§4.9) without the
// operational HTTP surface, for deployments that split discovery/enrichment
// dispatch from the api server process (§5 worker pool topology).
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/shelfmark/productpipeline/internal/budget"
	"github.com/shelfmark/productpipeline/internal/competition"
	"github.com/shelfmark/productpipeline/internal/config"
	"github.com/shelfmark/productpipeline/internal/discovery"
	"github.com/shelfmark/productpipeline/internal/domainintel"
	"github.com/shelfmark/productpipeline/internal/externalservices"
	"github.com/shelfmark/productpipeline/internal/logging"
	"github.com/shelfmark/productpipeline/internal/models"
	"github.com/shelfmark/productpipeline/internal/productwriter"
	"github.com/shelfmark/productpipeline/internal/queue"
	"github.com/shelfmark/productpipeline/internal/scheduler"
	"github.com/shelfmark/productpipeline/internal/smartcrawler"
	"github.com/shelfmark/productpipeline/internal/store/cached"
	"github.com/shelfmark/productpipeline/internal/store/postgres"
	"github.com/shelfmark/productpipeline/internal/tracing"
	"github.com/shelfmark/productpipeline/internal/verification"
	"github.com/shelfmark/productpipeline/internal/worker"
)

func main() {
	log := logging.For("scheduler-cmd")
	defer logging.Sync()

	cfg, err := config.Load(".env")
	if err != nil {
		log.Error("loading config", err)
		os.Exit(1)
	}

	tp, err := tracing.Init(cfg.Server.ServiceName+"-scheduler", cfg.Server.JaegerURL)
	if err != nil {
		log.Error("initializing tracing", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutting down tracer provider", "error", err.Error())
		}
	}()

	db, err := sqlx.Connect("pgx", cfg.Database.DSN())
	if err != nil {
		log.Error("connecting to postgres", err)
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConnections)

	products := postgres.NewProductStore(db)
	brands := postgres.NewBrandStore(db)
	schedules := postgres.NewScheduleStore(db)
	jobs := postgres.NewJobStore(db)
	results := postgres.NewDiscoveryResultStore(db)
	crawledSources := postgres.NewCrawledSourceStore(db)
	qualityGateConfigStore := postgres.NewQualityGateConfigStore(db)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Error("connecting to redis", err)
		os.Exit(1)
	}

	q := queue.New(rdb)
	tracker := budget.New(rdb, budget.DefaultCeilings(), 24*time.Hour)

	configCache := cached.NewConfigCache()
	fieldGroups := func(pt models.ProductTypeEnum) []models.FieldGroup {
		return configCache.FieldGroups(pt, func() []models.FieldGroup {
			cfg, err := qualityGateConfigStore.Load(context.Background(), nil)
			if err != nil {
				log.Warn("loading quality gate config for field groups, using defaults", "error", err.Error())
				return models.DefaultFieldGroups(pt)
			}
			if groups, ok := cfg.FieldGroups[pt]; ok {
				return groups
			}
			return models.DefaultFieldGroups(pt)
		})
	}
	gateConfig := func(pt models.ProductTypeEnum) models.ProductTypeConfig {
		whole := configCache.QualityGateConfig(func() *models.QualityGateConfig {
			cfg, err := qualityGateConfigStore.Load(context.Background(), nil)
			if err != nil {
				log.Warn("loading quality gate config, using defaults", "error", err.Error())
				return nil
			}
			return cfg
		})
		if whole == nil {
			return models.DefaultProductTypeConfig(pt)
		}
		if ptCfg, ok := whole.ProductTypes[pt]; ok {
			return ptCfg
		}
		return models.DefaultProductTypeConfig(pt)
	}

	domains := domainintel.New()
	if seedPath := os.Getenv("DOMAIN_SEED_FILE"); seedPath != "" {
		if err := domainintel.LoadSeedFile(domains, seedPath); err != nil {
			log.Warn("loading domain seed file, continuing with empty sets", "path", seedPath, "error", err.Error())
		}
	}
	blacklist := domainintel.NewSessionBlacklist()

	search := externalservices.NewSearchClient(cfg.External.SerpAPIHost, cfg.External.SerpAPIKey, logging.For("externalservices.search"))
	fetch := externalservices.NewRodFetcher(logging.For("externalservices.fetch"))
	extract := externalservices.NewExtractorClient(cfg.External.AIEnhancementServiceURL, cfg.External.AIEnhancementToken, logging.For("externalservices.extract"))

	crawl := smartcrawler.New(domains, crawledSources, search, fetch, extract, tracker, blacklist)

	dispatcher := &scheduler.QueueDispatcher{Queue: q}
	writer := productwriter.New(products, brands, products, fieldGroups, gateConfig, dispatcher)

	competitionOrch := competition.New(domains, products, writer, fetch, q)
	discoveryOrch := discovery.New(domains, search, fetch, extract, crawl, writer, tracker, products, schedules, jobs, results)
	verifyPipeline := verification.New(products, search, crawl)

	sched := scheduler.New(schedules, jobs, products, q, discoveryOrch, competitionOrch, scheduler.Config{
		CheckDueInterval:        cfg.Scheduler.CheckDueSchedulesEvery,
		EnrichSkeletonsInterval: cfg.Scheduler.EnrichSkeletonsEvery,
		ProcessQueueInterval:    cfg.Scheduler.ProcessEnrichmentQueueEvery,
		EnrichSkeletonsLimit:    cfg.Scheduler.EnrichSkeletonsLimit,
		ProcessQueueMaxURLs:     cfg.Scheduler.ProcessEnrichmentQueueMax,
	})
	sched.Verification = verifyPipeline

	// workerPool is the consumer side of checkDueSchedules' producer: it pops
	// "run_schedule" jobs off the discovery/crawl/default queues and hands
	// each to sched.RunScheduledJob (§5).
	workerPool := worker.New(q, sched, cfg.Worker.Queues, cfg.Worker.ConcurrencyPerQueue)

	ctx, cancel := context.WithCancel(context.Background())
	var background sync.WaitGroup
	background.Add(2)
	go func() {
		defer background.Done()
		if err := sched.Start(ctx); err != nil {
			log.Error("scheduler beats stopped", err)
		}
	}()
	go func() {
		defer background.Done()
		workerPool.Start(ctx)
	}()
	log.Info("scheduler beats and worker pool started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	cancel()
	background.Wait()
	log.Info("shutdown complete")
}
