package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-sql-driver/mysql"
	_ "golang.org/x/image/webp"

	"mangareader/internal/models"
	"mangareader/internal/scramble"
)

type adminLoginRequest struct {
	Password string `json:"password"`
}

type mangaRequest struct {
	Title       *string `json:"title"`
	Author      *string `json:"author"`
	Description *string `json:"description"`
	CoverURL    *string `json:"cover_url"`
	Status      *string `json:"status"`
}

type chapterRequest struct {
	Number float64 `json:"number"`
	Title  string  `json:"title"`
}

type registerPageRequest struct {
	ChapterID int64  `json:"chapter_id"`
	Index     int    `json:"index"`
	OriginURL string `json:"origin_url"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	GridSize  int    `json:"grid_size"`
	Seed      int32  `json:"seed"`
}

func (s *Server) AdminLogin(c *gin.Context) {
	var req adminLoginRequest
	_ = c.ShouldBindJSON(&req)
	if req.Password == "" {
		req.Password = strings.TrimSpace(c.PostForm("password"))
	}
	if req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password required"})
		return
	}
	if strings.TrimSpace(s.Cfg.AdminPassword) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "admin password not configured"})
		return
	}
	if s.Cfg.AdminPassword != req.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid password"})
		return
	}
	token, err := s.SignAdminToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) CreateManga(c *gin.Context) {
	var req mangaRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title required"})
		return
	}
	status := models.MangaOngoing
	if req.Status != nil {
		status = models.MangaStatus(strings.ToUpper(*req.Status))
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
	}
	now := time.Now().UTC()
	res, err := s.DB.Exec(`INSERT INTO manga (title, author, description, cover_url, status, views, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		strings.TrimSpace(*req.Title), deref(req.Author), deref(req.Description), deref(req.CoverURL), string(status), now, now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	id, _ := res.LastInsertId()
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// UpdateManga patches only the fields present in the body.
func (s *Server) UpdateManga(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req mangaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	sets := make([]string, 0, 6)
	args := make([]any, 0, 7)
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title required"})
			return
		}
		sets, args = append(sets, "title = ?"), append(args, title)
	}
	if req.Author != nil {
		sets, args = append(sets, "author = ?"), append(args, *req.Author)
	}
	if req.Description != nil {
		sets, args = append(sets, "description = ?"), append(args, *req.Description)
	}
	if req.CoverURL != nil {
		sets, args = append(sets, "cover_url = ?"), append(args, *req.CoverURL)
	}
	if req.Status != nil {
		status := models.MangaStatus(strings.ToUpper(*req.Status))
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		sets, args = append(sets, "status = ?"), append(args, string(status))
	}
	if len(sets) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}
	sets, args = append(sets, "updated_at = ?"), append(args, time.Now().UTC(), id)
	res, err := s.DB.Exec(`UPDATE manga SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "manga not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) DeleteManga(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	s.forgetPages(`SELECT p.id FROM pages p JOIN chapters ch ON ch.id = p.chapter_id WHERE ch.manga_id = ?`, id)
	res, err := s.DB.Exec(`DELETE FROM manga WHERE id = ?`, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "manga not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) CreateChapter(c *gin.Context) {
	mangaID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req chapterRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Number < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	now := time.Now().UTC()
	res, err := s.DB.Exec(`INSERT INTO chapters (manga_id, number, title, views, created_at) VALUES (?, ?, ?, 0, ?)`,
		mangaID, req.Number, strings.TrimSpace(req.Title), now)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) {
			switch myErr.Number {
			case mysqlDuplicate:
				c.JSON(http.StatusConflict, gin.H{"error": "chapter number exists"})
				return
			case mysqlNoParent:
				c.JSON(http.StatusNotFound, gin.H{"error": "manga not found"})
				return
			}
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	id, _ := res.LastInsertId()
	if _, err := s.DB.Exec(`UPDATE manga SET updated_at = ? WHERE id = ?`, now, mangaID); err != nil {
		log.Printf("manga %d touch error: %v", mangaID, err)
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (s *Server) DeleteChapter(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	s.forgetPages(`SELECT id FROM pages WHERE chapter_id = ?`, id)
	res, err := s.DB.Exec(`DELETE FROM chapters WHERE id = ?`, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "chapter not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// UploadPage stores a page image scrambled with a fresh seed. The image is
// cropped to a multiple of the grid first so every tile has the same size and
// the stored copy descrambles losslessly. Images too small for the requested
// grid are stored as-is with grid 0.
func (s *Server) UploadPage(c *gin.Context) {
	chapterID, ok := paramID(c, "id")
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(s.Cfg.MaxUploadMB)<<20)
	index, err := strconv.Atoi(c.PostForm("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid index"})
		return
	}
	gridSize := s.Cfg.DefaultGridSize
	if v := c.PostForm("grid_size"); v != "" {
		gridSize, err = strconv.Atoi(v)
		if err != nil || gridSize < 0 || gridSize > 64 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid grid_size"})
			return
		}
	}
	fh, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image unreadable"})
		return
	}
	defer f.Close()
	src, _, err := image.Decode(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported image"})
		return
	}

	src = cropToGrid(src, gridSize)
	seed := newSeed()
	var out image.Image = src
	canvas := scramble.NewCanvas(1)
	if scramble.Scramble(src, canvas, gridSize, float64(seed)) {
		out = canvas.Image()
	} else {
		gridSize, seed = 0, 0
	}

	name := fmt.Sprintf("p%03d-%08x.png", index, uint32(newSeed()))
	if err := s.writeMedia(chapterID, name, out); err != nil {
		log.Printf("chapter %d page %d write error: %v", chapterID, index, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
		return
	}
	b := out.Bounds()
	page := models.Page{
		ChapterID: chapterID,
		Index:     index,
		OriginURL: s.Cfg.PublicBaseURL + "/media/chapters/" + strconv.FormatInt(chapterID, 10) + "/" + name,
		Width:     b.Dx(),
		Height:    b.Dy(),
		GridSize:  gridSize,
		Seed:      seed,
	}
	s.savePage(c, page)
}

// RegisterPage records a page already scrambled and hosted elsewhere.
func (s *Server) RegisterPage(c *gin.Context) {
	var req registerPageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ChapterID <= 0 || req.Index < 0 || req.GridSize < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if !strings.HasPrefix(req.OriginURL, "http://") && !strings.HasPrefix(req.OriginURL, "https://") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "origin_url must be http(s)"})
		return
	}
	s.savePage(c, models.Page{
		ChapterID: req.ChapterID,
		Index:     req.Index,
		OriginURL: req.OriginURL,
		Width:     req.Width,
		Height:    req.Height,
		GridSize:  req.GridSize,
		Seed:      req.Seed,
	})
}

// savePage upserts by (chapter, index). A replaced page gets a new version so
// cached renders of the old image are never served again.
func (s *Server) savePage(c *gin.Context, page models.Page) {
	res, err := s.DB.Exec(`INSERT INTO pages (chapter_id, page_index, origin_url, width, height, grid_size, seed, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1)
		ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id), origin_url = VALUES(origin_url), width = VALUES(width),
		height = VALUES(height), grid_size = VALUES(grid_size), seed = VALUES(seed), version = version + 1`,
		page.ChapterID, page.Index, page.OriginURL, page.Width, page.Height, page.GridSize, page.Seed)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlNoParent {
			c.JSON(http.StatusNotFound, gin.H{"error": "chapter not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	id, _ := res.LastInsertId()
	s.Pages.Forget(id)
	if _, err := s.DB.Exec(`UPDATE chapters SET warmed_at = NULL WHERE id = ?`, page.ChapterID); err != nil {
		log.Printf("chapter %d warm reset error: %v", page.ChapterID, err)
	}
	saved, err := s.loadPage(id)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"id": id})
		return
	}
	c.JSON(http.StatusOK, saved)
}

// cropToGrid trims the right and bottom remainder so both sides divide by
// gridSize. Images smaller than the grid come back unchanged.
func cropToGrid(img image.Image, gridSize int) image.Image {
	b := img.Bounds()
	if gridSize < 2 || b.Dx() < gridSize || b.Dy() < gridSize {
		return img
	}
	w, h := b.Dx()-b.Dx()%gridSize, b.Dy()-b.Dy()%gridSize
	if w == b.Dx() && h == b.Dy() {
		return img
	}
	r := image.Rect(b.Min.X, b.Min.Y, b.Min.X+w, b.Min.Y+h)
	if sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(r)
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

func (s *Server) writeMedia(chapterID int64, name string, img image.Image) error {
	dir := filepath.Join(s.Cfg.MediaDir, "chapters", strconv.FormatInt(chapterID, 10))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := png.Encode(tmp, img); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, name))
}

func (s *Server) forgetPages(query string, id int64) {
	rows, err := s.DB.Query(query, id)
	if err != nil {
		log.Printf("page cache forget error: %v", err)
		return
	}
	defer rows.Close()
	for rows.Next() {
		var pageID int64
		if rows.Scan(&pageID) == nil {
			s.Pages.Forget(pageID)
		}
	}
}

func (s *Server) GetStats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	counts := gin.H{}
	for _, table := range []string{"manga", "chapters", "pages", "users", "comments"} {
		var n int64
		if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil && err != sql.ErrNoRows {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		counts[table] = n
	}
	c.JSON(http.StatusOK, gin.H{
		"online":    s.Hub.OnlineCount(),
		"counts":    counts,
		"top_today": s.topChaptersToday(ctx, 10),
	})
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}
