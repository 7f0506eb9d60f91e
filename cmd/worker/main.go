package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	r "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/you/prospect/internal/blob"
	"github.com/you/prospect/internal/config"
	"github.com/you/prospect/internal/crawler"
	"github.com/you/prospect/internal/deces"
	"github.com/you/prospect/internal/geocode"
	"github.com/you/prospect/internal/harvest"
	"github.com/you/prospect/internal/queue"
	"github.com/you/prospect/internal/ratelimit"
	"github.com/you/prospect/internal/storage"
	"github.com/you/prospect/internal/worker"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log = log.With(zap.String("proc", "worker"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("open postgres", zap.Error(err))
	}
	defer db.Close()

	rdb := r.NewClient(&r.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	q := queue.New(rdb)
	store := storage.New(db)

	sources, err := config.LoadSources(cfg.SourcesPath)
	if err != nil {
		log.Fatal("load scrape sources", zap.Error(err))
	}

	// One shared limiter per external service.
	dpeClient := harvest.NewClient(ratelimit.New(cfg.DPEInterval), log.Named("dpe"))
	bodaccClient := harvest.NewClient(ratelimit.New(cfg.BodaccInterval), log.Named("bodacc"))
	geoClient := harvest.NewClient(ratelimit.New(cfg.GeocodeInterval), log.Named("geocode"))

	s3, err := blob.NewS3Store(ctx, cfg.S3Bucket, cfg.S3Endpoint)
	if err != nil {
		log.Fatal("init object storage", zap.Error(err))
	}

	chrome := crawler.NewChromeFetcher(ctx, log.Named("chrome"))
	defer chrome.Close()

	deps := &worker.Deps{
		DPE:      harvest.NewDPEHarvester(dpeClient, cfg.DPEBaseURL, log.Named("dpe")),
		Bodacc:   harvest.NewLiquidationHarvester(bodaccClient, cfg.BodaccBaseURL, log.Named("bodacc")),
		Crawler:  crawler.New(chrome, log.Named("crawler")),
		Geocoder: geocode.New(geoClient, cfg.GeocodeBaseURL, log.Named("geocode")),
		Deces:    deces.New(deces.NewHTTPSource(cfg.DecesIndexURL, cfg.DecesBaseURL), s3, store, log.Named("deces")),
		Store:    store,
		Sources:  sources,
		Log:      log,
	}

	pool := worker.NewPool(q, cfg.WorkersPerQueue, log)
	deps.RegisterAll(pool)

	log.Info("worker pool started", zap.Int("workers_per_queue", cfg.WorkersPerQueue))
	if err := pool.Run(ctx); err != nil {
		log.Fatal("worker pool", zap.Error(err))
	}
	log.Info("worker pool drained")
}
