package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"mangareader/internal/config"
	"mangareader/internal/db"
	"mangareader/internal/handlers"
)

func main() {
	cfg := config.Load()
	mysql, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("mysql init error: %v", err)
	}
	defer mysql.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Rendered pages only reach readers through Redis; without it the worker
	// would warm nothing but its own memory.
	redis, err := db.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("redis init error: %v", err)
	}
	defer redis.Close()

	srv := handlers.NewServer(cfg, mysql, redis)
	worker := handlers.NewWarmupWorker(srv)

	log.Printf("warmup worker started")
	worker.Run(ctx)
	log.Printf("warmup worker stopped")
}
