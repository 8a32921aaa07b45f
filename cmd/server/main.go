package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"mangareader/internal/config"
	"mangareader/internal/db"
	"mangareader/internal/handlers"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	secret := strings.TrimSpace(cfg.JWTSecret)
	if secret == "" || secret == "change-me" {
		log.Fatal("JWT_SECRET must be set to a non-default value")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mysql, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("mysql error: %v", err)
	}
	defer mysql.Close()
	redis, err := db.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("redis error: %v", err)
	}
	defer redis.Close()

	srv := handlers.NewServer(cfg, mysql, redis)
	flushed := srv.StartViewFlusher(ctx)
	if cfg.WarmupWorkerEnabled {
		worker := handlers.NewWarmupWorker(srv)
		go worker.Run(ctx)
		log.Printf("warmup worker enabled in server")
	}

	r := gin.Default()
	srv.RegisterRoutes(r)

	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		log.Fatalf("listen %s: %v", cfg.HTTPAddr, err)
	}
	log.Printf("server listening on %s", cfg.HTTPAddr)
	if err := serve(ctx, &http.Server{Handler: r}, ln); err != nil {
		log.Printf("server error: %v", err)
	}
	stop()
	<-flushed
	log.Printf("server stopped")
}

// serve runs httpSrv on ln until ctx is done, then drains in-flight requests.
func serve(ctx context.Context, httpSrv *http.Server, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.Serve(ln)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
