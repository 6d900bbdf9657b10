package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpAdapter "github.com/vgrab/vgrab/internal/adapter/http"
	"github.com/vgrab/vgrab/internal/adapter/media"
	"github.com/vgrab/vgrab/internal/adapter/memory"
	"github.com/vgrab/vgrab/internal/adapter/redisq"
	"github.com/vgrab/vgrab/internal/cleanup"
	"github.com/vgrab/vgrab/internal/config"
	"github.com/vgrab/vgrab/internal/domain"
	"github.com/vgrab/vgrab/internal/pipeline"
	"github.com/vgrab/vgrab/internal/ratelimit"
	"github.com/vgrab/vgrab/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}
	if err := cfg.EnsureTmpDir(); err != nil {
		log.Fatalf("failed to create tmp dir: %v", err)
	}

	log.Printf("starting vgrab on port %d (backend: %s)", cfg.Port, cfg.Backend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store domain.JobStore
	var queue <-chan string

	switch cfg.Backend {
	case config.BackendRedis:
		rs, err := redisq.New(ctx, redisq.Options{
			URL:       cfg.RedisURL,
			Queue:     cfg.Queue,
			ResultTTL: cfg.ResultTTL,
		})
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		store = rs
	default:
		ms := memory.New(cfg.QueueCapacity)
		store = ms
		queue = ms.Queue()
	}
	defer store.Close()

	svc := domain.NewJobService(store, cfg.AllowedDomains)
	limiter := ratelimit.New(cfg.RateLimit, cfg.RateWindow)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := httpAdapter.NewServer(svc, limiter, addr)

	// In memory mode this process is also the worker and the sweeper. In
	// redis mode independent vgrab-worker processes drain the queue.
	if cfg.Backend == config.BackendMemory {
		ytdlp := media.NewYTDLP("")
		pipe := pipeline.New(ytdlp, ytdlp, media.NewFFmpeg(""), cfg.TmpDir, cfg.MaxFileSizeMB)
		go worker.New(svc, pipe, queue).Run(ctx)
		go cleanup.NewSweeper(cfg.TmpDir, cfg.CleanupTTL, cfg.CleanupInterval).Run(ctx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("HTTP server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	sig := <-sigCh
	log.Printf("received signal %v, shutting down", sig)

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("shutdown complete")
}
