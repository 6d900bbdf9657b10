// vgrab-worker drains the Redis work queue and processes jobs. Run one or
// more of these processes alongside a vgrab server in redis mode.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/vgrab/vgrab/internal/adapter/media"
	"github.com/vgrab/vgrab/internal/adapter/redisq"
	"github.com/vgrab/vgrab/internal/cleanup"
	"github.com/vgrab/vgrab/internal/config"
	"github.com/vgrab/vgrab/internal/domain"
	"github.com/vgrab/vgrab/internal/pipeline"
	"github.com/vgrab/vgrab/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}
	if cfg.Backend != config.BackendRedis {
		log.Fatalf("vgrab-worker requires the redis backend, got %q", cfg.Backend)
	}
	if err := cfg.EnsureTmpDir(); err != nil {
		log.Fatalf("failed to create tmp dir: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := redisq.New(ctx, redisq.Options{
		URL:       cfg.RedisURL,
		Queue:     cfg.Queue,
		ResultTTL: cfg.ResultTTL,
	})
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer store.Close()

	svc := domain.NewJobService(store, cfg.AllowedDomains)
	ytdlp := media.NewYTDLP("")
	pipe := pipeline.New(ytdlp, ytdlp, media.NewFFmpeg(""), cfg.TmpDir, cfg.MaxFileSizeMB)

	// Dispatch targets are bound here, at startup, so a missing handler is
	// a boot failure rather than a silently dropped work item.
	registry := worker.NewRegistry()
	registry.Register(redisq.TaskProcessJob, func(ctx context.Context, jobID string) {
		worker.ProcessJob(ctx, svc, pipe, jobID)
	})

	drainer := worker.NewDrainer(svc, store, registry)
	sweeper := cleanup.NewSweeper(cfg.TmpDir, cfg.CleanupTTL, cfg.CleanupInterval)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		drainer.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down", sig)

	cancel()
	wg.Wait()
	log.Println("shutdown complete")
}
