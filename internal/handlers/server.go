package handlers

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"mangareader/internal/auth"
	"mangareader/internal/config"
	"mangareader/internal/pages"
)

const (
	userSessionTTL  = 7 * 24 * time.Hour
	adminSessionTTL = 8 * time.Hour
)

type Server struct {
	Cfg             config.Config
	DB              *sql.DB
	Redis           *redis.Client
	Pages           *pages.Service
	JWTSecret       []byte
	Hub             *Hub
	viewCounters    sync.Map
	commentLimiters sync.Map
}

func NewServer(cfg config.Config, db *sql.DB, redis *redis.Client) *Server {
	srv := &Server{
		Cfg:   cfg,
		DB:    db,
		Redis: redis,
		Pages: pages.NewService(redis, pages.Options{
			PixelRatio:    cfg.PagePixelRatio,
			JPEGQuality:   cfg.PageJPEGQuality,
			CacheTTL:      time.Duration(cfg.PageCacheTTLSec) * time.Second,
			LRUSize:       cfg.PageLRUSize,
			OriginTimeout: time.Duration(cfg.OriginTimeoutMS) * time.Millisecond,
		}),
		JWTSecret: []byte(cfg.JWTSecret),
		Hub:       NewHub(),
	}
	return srv
}

func (s *Server) SignToken(userID int64, username string, isAdmin bool) (string, error) {
	sessionID := newSessionID()
	if err := s.saveSession(userID, sessionID, userSessionTTL); err != nil {
		return "", err
	}
	return auth.GenerateToken(s.JWTSecret, userID, username, isAdmin, sessionID, userSessionTTL)
}

func (s *Server) SignAdminToken() (string, error) {
	sessionID := newSessionID()
	if err := s.saveSession(0, sessionID, adminSessionTTL); err != nil {
		return "", err
	}
	return auth.GenerateToken(s.JWTSecret, 0, "admin", true, sessionID, adminSessionTTL)
}

func (s *Server) saveSession(userID int64, sessionID string, ttl time.Duration) error {
	if s.Redis == nil {
		return nil
	}
	return s.Redis.Set(context.Background(), sessionKey(userID), sessionID, ttl).Err()
}

func (s *Server) validateSession(userID int64, sessionID string) error {
	if s.Redis == nil {
		return nil
	}
	val, err := s.Redis.Get(context.Background(), sessionKey(userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return errInvalidSession
		}
		return err
	}
	if val != sessionID {
		return errInvalidSession
	}
	return nil
}

func (s *Server) dropSession(userID int64) {
	if s.Redis == nil {
		return
	}
	_ = s.Redis.Del(context.Background(), sessionKey(userID)).Err()
}
