package handlers

import (
	"database/sql"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"mangareader/internal/models"
)

const maxCommentLen = 2000

type createCommentRequest struct {
	Body string `json:"body"`
}

func (s *Server) ListComments(c *gin.Context) {
	chapterID, ok := paramID(c, "id")
	if !ok {
		return
	}
	limit := queryInt(c, "limit", 50, 1, 200)
	before := int64(math.MaxInt64)
	if v, err := strconv.ParseInt(c.Query("before"), 10, 64); err == nil && v > 0 {
		before = v
	}
	rows, err := s.DB.Query(`SELECT cm.id, cm.chapter_id, cm.user_id, u.username, cm.body, cm.created_at
		FROM comments cm JOIN users u ON u.id = cm.user_id
		WHERE cm.chapter_id = ? AND cm.id < ?
		ORDER BY cm.id DESC LIMIT ?`, chapterID, before, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	defer rows.Close()
	items := make([]models.Comment, 0, limit)
	for rows.Next() {
		var cm models.Comment
		if err := rows.Scan(&cm.ID, &cm.ChapterID, &cm.UserID, &cm.Username, &cm.Body, &cm.CreatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		items = append(items, cm)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) CreateComment(c *gin.Context) {
	chapterID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	body := strings.TrimSpace(req.Body)
	if body == "" || utf8.RuneCountInString(body) > maxCommentLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "comment must be 1-2000 characters"})
		return
	}
	var one int
	if err := s.DB.QueryRow(`SELECT 1 FROM chapters WHERE id = ?`, chapterID).Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "chapter not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	uid := c.GetInt64("uid")
	if !s.commentLimiter(uid).Allow() {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many comments"})
		return
	}
	now := time.Now().UTC()
	res, err := s.DB.Exec(`INSERT INTO comments (chapter_id, user_id, body, created_at) VALUES (?, ?, ?, ?)`, chapterID, uid, body, now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	id, _ := res.LastInsertId()
	comment := models.Comment{
		ID:        id,
		ChapterID: chapterID,
		UserID:    uid,
		Username:  c.GetString("username"),
		Body:      body,
		CreatedAt: now,
	}
	s.Hub.SendToChapter(chapterID, mustJSON(WSMessage{Type: "comment", Data: comment}))
	c.JSON(http.StatusOK, comment)
}

func (s *Server) DeleteComment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var authorID, chapterID int64
	if err := s.DB.QueryRow(`SELECT user_id, chapter_id FROM comments WHERE id = ?`, id).Scan(&authorID, &chapterID); err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "comment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	if authorID != c.GetInt64("uid") && !c.GetBool("admin") {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your comment"})
		return
	}
	if _, err := s.DB.Exec(`DELETE FROM comments WHERE id = ?`, id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	s.Hub.SendToChapter(chapterID, mustJSON(WSMessage{Type: "comment_deleted", Data: gin.H{"id": id}}))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) commentLimiter(uid int64) *rate.Limiter {
	perMin := s.Cfg.CommentRatePerMin
	if perMin <= 0 {
		perMin = 6
	}
	val, _ := s.commentLimiters.LoadOrStore(uid, rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), perMin))
	return val.(*rate.Limiter)
}
