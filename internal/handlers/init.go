package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"mangareader/internal/db"
)

// InitReset wipes every table, the page caches and all sessions. It is meant
// for staging environments and refuses to run without INIT_SECRET.
func (s *Server) InitReset(c *gin.Context) {
	secret := s.Cfg.InitSecret
	if secret == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "init secret not configured"})
		return
	}
	provided := c.GetHeader("X-Init-Secret")
	if provided == "" {
		provided = c.Query("secret")
	}
	if provided == "" {
		provided = c.PostForm("secret")
	}
	if provided != secret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid init secret"})
		return
	}

	if s.Redis != nil {
		ctx := context.Background()
		patterns := []string{"page:*", "session:uid:*", "views:*"}
		for _, pattern := range patterns {
			var cursor uint64
			for {
				keys, next, err := s.Redis.Scan(ctx, cursor, pattern, 1000).Result()
				if err != nil {
					c.JSON(http.StatusInternalServerError, gin.H{"error": "redis scan error"})
					return
				}
				if len(keys) > 0 {
					_ = s.Redis.Del(ctx, keys...).Err()
				}
				cursor = next
				if cursor == 0 {
					break
				}
			}
		}
	}
	s.Pages.Purge()

	if s.DB != nil {
		// TRUNCATE ignores transactions, so foreign keys are switched off around it.
		if _, err := s.DB.Exec("SET FOREIGN_KEY_CHECKS = 0"); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error: disable fk checks"})
			return
		}
		for _, table := range db.Tables {
			if _, err := s.DB.Exec("TRUNCATE TABLE " + table); err != nil {
				_, _ = s.DB.Exec("SET FOREIGN_KEY_CHECKS = 1")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "db error: truncate " + table})
				return
			}
		}
		if _, err := s.DB.Exec("SET FOREIGN_KEY_CHECKS = 1"); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error: enable fk checks"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
