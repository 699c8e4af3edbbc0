// Command apiserver boots the full product discovery/enrichment pipeline:
// every store, external collaborator, and orchestrator described in
// internal/, the Scheduler's three beats, and the operational HTTP surface
// (§6), following the teacher's cmd/apiserver construct-everything-in-main
// shape but without its auth/session/campaign-specific services.
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
	"github.com/shelfmark/productpipeline/internal/httpapi"
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
	log := logging.For("apiserver")
	defer logging.Sync()

	cfg, err := config.Load(".env")
	if err != nil {
		log.Error("loading config", err)
		os.Exit(1)
	}

	tp, err := tracing.Init(cfg.Server.ServiceName, cfg.Server.JaegerURL)
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
	log.Info("connected to postgres", "host", cfg.Database.Host, "database", cfg.Database.Name)

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
	log.Info("connected to redis", "addr", cfg.Redis.Addr)

	q := queue.New(rdb)
	tracker := budget.New(rdb, budget.Ceilings{
		MaxURLsPerProduct:     cfg.Budget.MaxURLsPerProduct,
		MaxSearchesPerProduct: cfg.Budget.MaxSearchesPerProduct,
		MaxEnrichmentTime:     cfg.Budget.MaxEnrichmentTime,
		SessionMaxSearches:    cfg.Budget.SessionMaxSearches,
		SessionMaxSources:     cfg.Budget.SessionMaxSources,
		SessionMaxTime:        cfg.Budget.SessionMaxTime,
	}, 24*time.Hour)

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

	server := httpapi.New(cfg.Server.ListenAddr, httpapi.Deps{
		DB:          db.DB,
		Scheduler:   sched,
		ServiceName: cfg.Server.ServiceName,
	})
	sched.Progress = server.Hub

	// workerPool is the consumer side of checkDueSchedules' producer: it pops
	// "run_schedule" jobs off the discovery/crawl/default queues and hands
	// each to sched.RunScheduledJob (§5).
	workerPool := worker.New(q, sched, cfg.Worker.Queues, cfg.Worker.ConcurrencyPerQueue)

	schedCtx, schedCancel := context.WithCancel(context.Background())
	var background sync.WaitGroup
	background.Add(2)
	go func() {
		defer background.Done()
		if err := sched.Start(schedCtx); err != nil {
			log.Error("scheduler beats stopped", err)
		}
	}()
	go func() {
		defer background.Done()
		workerPool.Start(schedCtx)
	}()
	log.Info("scheduler beats and worker pool started")

	if err := server.Start(); err != nil {
		log.Error("starting http server", err)
		schedCancel()
		os.Exit(1)
	}
	log.Info("api server started", "addr", server.Addr())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	schedCancel()
	background.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown did not complete cleanly", "error", err.Error())
	}

	log.Info("shutdown complete")
}
