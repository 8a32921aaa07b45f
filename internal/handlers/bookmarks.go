package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mangareader/internal/models"
)

type saveBookmarkRequest struct {
	MangaID   int64 `json:"manga_id"`
	ChapterID int64 `json:"chapter_id"`
	PageIndex int   `json:"page_index"`
}

func (s *Server) ListBookmarks(c *gin.Context) {
	uid := c.GetInt64("uid")
	rows, err := s.DB.Query(`SELECT b.manga_id, m.title, m.cover_url, b.chapter_id, b.page_index, b.updated_at
		FROM bookmarks b JOIN manga m ON m.id = b.manga_id
		WHERE b.user_id = ? ORDER BY b.updated_at DESC`, uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	defer rows.Close()
	items := make([]models.Bookmark, 0)
	for rows.Next() {
		var b models.Bookmark
		if err := rows.Scan(&b.MangaID, &b.Title, &b.CoverURL, &b.ChapterID, &b.PageIndex, &b.UpdatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		items = append(items, b)
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// SaveBookmark records reading progress; one bookmark per manga per user.
func (s *Server) SaveBookmark(c *gin.Context) {
	var req saveBookmarkRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.MangaID <= 0 || req.PageIndex < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.ChapterID > 0 {
		var mangaID int64
		err := s.DB.QueryRow(`SELECT manga_id FROM chapters WHERE id = ?`, req.ChapterID).Scan(&mangaID)
		if err == sql.ErrNoRows || (err == nil && mangaID != req.MangaID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "chapter does not belong to manga"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
	}
	now := time.Now().UTC()
	_, err := s.DB.Exec(`INSERT INTO bookmarks (user_id, manga_id, chapter_id, page_index, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE chapter_id = VALUES(chapter_id), page_index = VALUES(page_index), updated_at = VALUES(updated_at)`,
		c.GetInt64("uid"), req.MangaID, req.ChapterID, req.PageIndex, now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) DeleteBookmark(c *gin.Context) {
	mangaID, ok := paramID(c, "mangaId")
	if !ok {
		return
	}
	if _, err := s.DB.Exec(`DELETE FROM bookmarks WHERE user_id = ? AND manga_id = ?`, c.GetInt64("uid"), mangaID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
