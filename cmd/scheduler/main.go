package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	r "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/you/prospect/internal/config"
	"github.com/you/prospect/internal/queue"
	"github.com/you/prospect/internal/sched"
	"github.com/you/prospect/internal/worker"
)

var allQueues = []string{
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
	log = log.With(zap.String("proc", "scheduler"))

	rdb := r.NewClient(&r.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	q := queue.New(rdb)

	s := sched.New(q, log)
	if err := sched.RegisterCalendar(s, cfg.Departments); err != nil {
		log.Fatal("register calendar", zap.Error(err))
	}
	s.Start()
	log.Info("scheduler started", zap.Strings("departments", cfg.Departments))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Promote due delayed jobs onto the ready lists.
	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			now := time.Now().UTC().Unix()
			for _, name := range allQueues {
				if err := q.MoveDue(ctx, name, now, 200); err != nil {
					log.Error("move due failed", zap.String("queue", name), zap.Error(err))
				}
			}
		case <-ctx.Done():
			<-s.Stop().Done()
			log.Info("scheduler stopped")
			return
		}
	}
}
