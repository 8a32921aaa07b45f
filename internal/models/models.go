package models

import "time"

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Nickname  string    `json:"nickname"`
	AvatarURL string    `json:"avatar_url"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

type MangaStatus string

const (
	MangaOngoing   MangaStatus = "ONGOING"
	MangaCompleted MangaStatus = "COMPLETED"
	MangaHiatus    MangaStatus = "HIATUS"
)

func (s MangaStatus) Valid() bool {
	switch s {
	case MangaOngoing, MangaCompleted, MangaHiatus:
		return true
	}
	return false
}

type Manga struct {
	ID          int64       `json:"id"`
	Title       string      `json:"title"`
	Author      string      `json:"author"`
	Description string      `json:"description"`
	CoverURL    string      `json:"cover_url"`
	Status      MangaStatus `json:"status"`
	Views       int64       `json:"views"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type Chapter struct {
	ID        int64      `json:"id"`
	MangaID   int64      `json:"manga_id"`
	Number    float64    `json:"number"`
	Title     string     `json:"title"`
	PageCount int        `json:"page_count"`
	Views     int64      `json:"views"`
	WarmedAt  *time.Time `json:"warmed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Page is one chapter image. GridSize below 2 means the origin image is not
// scrambled. Version changes whenever the origin image is replaced.
type Page struct {
	ID        int64  `json:"id"`
	ChapterID int64  `json:"chapter_id"`
	Index     int    `json:"index"`
	OriginURL string `json:"-"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	GridSize  int    `json:"grid_size"`
	Seed      int32  `json:"seed"`
	Version   int    `json:"version"`
	ImageURL  string `json:"image_url"`
}

type Comment struct {
	ID        int64     `json:"id"`
	ChapterID int64     `json:"chapter_id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type Bookmark struct {
	MangaID   int64     `json:"manga_id"`
	Title     string    `json:"title"`
	CoverURL  string    `json:"cover_url"`
	ChapterID int64     `json:"chapter_id"`
	PageIndex int       `json:"page_index"`
	UpdatedAt time.Time `json:"updated_at"`
}
