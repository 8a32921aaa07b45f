package handlers

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"mangareader/internal/models"
)

const mangaColumns = `id, title, author, description, cover_url, status, views, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanManga(row rowScanner) (models.Manga, error) {
	var m models.Manga
	var status string
	err := row.Scan(&m.ID, &m.Title, &m.Author, &m.Description, &m.CoverURL, &status, &m.Views, &m.CreatedAt, &m.UpdatedAt)
	m.Status = models.MangaStatus(status)
	return m, err
}

func (s *Server) ListManga(c *gin.Context) {
	page := queryInt(c, "page", 1, 1, 10000)
	size := queryInt(c, "size", 20, 1, 100)
	pattern := "%" + escapeLike(strings.TrimSpace(c.Query("q"))) + "%"

	var total int64
	if err := s.DB.QueryRow(`SELECT COUNT(*) FROM manga WHERE title LIKE ?`, pattern).Scan(&total); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	rows, err := s.DB.Query(`SELECT `+mangaColumns+` FROM manga WHERE title LIKE ?
		ORDER BY updated_at DESC, id DESC LIMIT ? OFFSET ?`, pattern, size, (page-1)*size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	defer rows.Close()
	items := make([]models.Manga, 0, size)
	for rows.Next() {
		m, err := scanManga(rows)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		items = append(items, m)
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "page": page, "size": size})
}

func (s *Server) GetManga(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	m, err := scanManga(s.DB.QueryRow(`SELECT `+mangaColumns+` FROM manga WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "manga not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	chapters, err := s.listChapters(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"manga": m, "chapters": chapters})
}

func (s *Server) listChapters(mangaID int64) ([]models.Chapter, error) {
	rows, err := s.DB.Query(`SELECT c.id, c.manga_id, c.number, c.title, c.views, c.created_at,
		(SELECT COUNT(*) FROM pages p WHERE p.chapter_id = c.id)
		FROM chapters c WHERE c.manga_id = ? ORDER BY c.number ASC`, mangaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	chapters := make([]models.Chapter, 0)
	for rows.Next() {
		var ch models.Chapter
		if err := rows.Scan(&ch.ID, &ch.MangaID, &ch.Number, &ch.Title, &ch.Views, &ch.CreatedAt, &ch.PageCount); err != nil {
			return nil, err
		}
		chapters = append(chapters, ch)
	}
	return chapters, rows.Err()
}

func (s *Server) GetChapter(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var ch models.Chapter
	row := s.DB.QueryRow(`SELECT id, manga_id, number, title, views, created_at FROM chapters WHERE id = ?`, id)
	if err := row.Scan(&ch.ID, &ch.MangaID, &ch.Number, &ch.Title, &ch.Views, &ch.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "chapter not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	pageList, err := s.listPages(ch.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	ch.PageCount = len(pageList)
	c.JSON(http.StatusOK, gin.H{
		"chapter": ch,
		"pages":   pageList,
		"prev_id": s.neighbourChapter(ch, false),
		"next_id": s.neighbourChapter(ch, true),
	})
}

const pageColumns = `id, chapter_id, page_index, origin_url, width, height, grid_size, seed, version`

func (s *Server) scanPage(row rowScanner) (models.Page, error) {
	var p models.Page
	err := row.Scan(&p.ID, &p.ChapterID, &p.Index, &p.OriginURL, &p.Width, &p.Height, &p.GridSize, &p.Seed, &p.Version)
	if err == nil {
		p.ImageURL = s.pageImageURL(p)
	}
	return p, err
}

func (s *Server) listPages(chapterID int64) ([]models.Page, error) {
	rows, err := s.DB.Query(`SELECT `+pageColumns+` FROM pages WHERE chapter_id = ? ORDER BY page_index ASC`, chapterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]models.Page, 0)
	for rows.Next() {
		p, err := s.scanPage(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func (s *Server) loadPage(id int64) (models.Page, error) {
	return s.scanPage(s.DB.QueryRow(`SELECT `+pageColumns+` FROM pages WHERE id = ?`, id))
}

func (s *Server) pageImageURL(p models.Page) string {
	return s.Cfg.PublicBaseURL + "/api/pages/" + strconv.FormatInt(p.ID, 10) + "/image?v=" + strconv.Itoa(p.Version)
}

// neighbourChapter returns the id of the adjacent chapter by number, or 0.
func (s *Server) neighbourChapter(ch models.Chapter, next bool) int64 {
	query := `SELECT id FROM chapters WHERE manga_id = ? AND number < ? ORDER BY number DESC LIMIT 1`
	if next {
		query = `SELECT id FROM chapters WHERE manga_id = ? AND number > ? ORDER BY number ASC LIMIT 1`
	}
	var id int64
	if err := s.DB.QueryRow(query, ch.MangaID, ch.Number).Scan(&id); err != nil {
		return 0
	}
	return id
}

func escapeLike(val string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(val)
}
