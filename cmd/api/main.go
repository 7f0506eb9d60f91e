package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose"
	r "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/you/prospect/internal/config"
	"github.com/you/prospect/internal/domain"
	"github.com/you/prospect/internal/queue"
	"github.com/you/prospect/internal/storage"
	"github.com/you/prospect/internal/worker"
)

var monitoredQueues = []string{
	worker.QueueDPE,
	worker.QueueBodacc,
	worker.QueueScraping,
	worker.QueueDeces,
	worker.QueueGeocoding,
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log = log.With(zap.String("proc", "api"))

	ctx := context.Background()

	migrate(cfg.PostgresDSN, log)

	db, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("open postgres", zap.Error(err))
	}
	defer db.Close()

	rdb := r.NewClient(&r.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	store := storage.New(db)
	q := queue.New(rdb)

	rtr := chi.NewRouter()

	rtr.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
		defer cancel()

		status := map[string]string{"queue": "ok", "storage": "ok"}
		code := http.StatusOK
		if err := q.Ping(ctx); err != nil {
			status["queue"] = err.Error()
			code = http.StatusServiceUnavailable
		}
		if err := store.Ping(ctx); err != nil {
			status["storage"] = err.Error()
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, status)
	})

	rtr.Get("/v1/queues", func(w http.ResponseWriter, req *http.Request) {
		out := make(map[string]queue.Depths, len(monitoredQueues))
		for _, name := range monitoredQueues {
			d, err := q.Depths(req.Context(), name)
			if err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
				return
			}
			out[name] = d
		}
		writeJSON(w, http.StatusOK, out)
	})

	// Ad-hoc enqueue: same payload contract as the scheduler.
	rtr.Post("/v1/jobs", func(w http.ResponseWriter, req *http.Request) {
		var in struct {
			Queue   string          `json:"queue"`
			Type    domain.JobType  `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
			return
		}
		if _, err := domain.DecodePayload(in.Type, in.Payload); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		job := &domain.Job{
			ID:          uuid.NewString(),
			Queue:       in.Queue,
			Type:        in.Type,
			Payload:     in.Payload,
			MaxAttempts: 3,
			Backoff:     domain.Backoff{BaseDelay: 5 * time.Second},
			EnqueuedAt:  time.Now().UTC(),
		}
		if err := q.Enqueue(req.Context(), job); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"id": job.ID})
	})

	log.Info("api listening", zap.String("addr", cfg.APIAddr))
	if err := http.ListenAndServe(cfg.APIAddr, rtr); err != nil {
		log.Fatal("serve", zap.Error(err))
	}
}

func migrate(dsn string, log *zap.Logger) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatal("open postgres for migrations", zap.Error(err))
	}
	defer db.Close()
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatal("goose dialect", zap.Error(err))
	}
	if err := goose.Up(db, "migrations"); err != nil {
		log.Fatal("run migrations", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
