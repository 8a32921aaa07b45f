package handlers

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mangareader/internal/pages"
)

// GetPageImage serves the descrambled page. Scrambled and plain pages take the
// same path; the descrambler leaves plain pages untouched.
func (s *Server) GetPageImage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	page, err := s.loadPage(id)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "page not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}

	ratio := s.Cfg.PagePixelRatio
	if v := c.Query("ratio"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed >= 1 && parsed <= 4 {
			ratio = parsed
		}
	}
	format := pages.NormalizeFormat(c.Query("format"))

	data, err := s.Pages.Render(c.Request.Context(), page, format, ratio)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			c.Status(http.StatusGatewayTimeout)
		case errors.Is(err, pages.ErrOrigin):
			log.Printf("page %d origin error: %v", page.ID, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "origin unavailable"})
		default:
			log.Printf("page %d render error: %v", page.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "render error"})
		}
		return
	}
	if page.Index == 0 {
		s.bumpViews(page.ChapterID)
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, pages.ContentType(format), data)
}
