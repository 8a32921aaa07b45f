package handlers

import (
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetManga_NotFound(t *testing.T) {
	_, mock, r := newTestServer(t)
	mock.ExpectQuery(`FROM manga WHERE id = \?`).WithArgs(int64(9)).WillReturnError(sql.ErrNoRows)

	w := doRequest(r, http.MethodGet, "/api/manga/9", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetManga_InvalidID(t *testing.T) {
	_, _, r := newTestServer(t)
	w := doRequest(r, http.MethodGet, "/api/manga/abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetManga_WithChapters(t *testing.T) {
	_, mock, r := newTestServer(t)
	now := time.Now()
	mock.ExpectQuery(`FROM manga WHERE id = \?`).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "author", "description", "cover_url", "status", "views", "created_at", "updated_at"}).
			AddRow(1, "Night Shift", "K. Aoi", "", "", "ONGOING", 12, now, now))
	mock.ExpectQuery(`FROM chapters c WHERE c.manga_id = \?`).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "manga_id", "number", "title", "views", "created_at", "pages"}).
			AddRow(4, 1, 1.0, "Arrival", 5, now, 18).
			AddRow(5, 1, 1.5, "Extra", 0, now, 6))

	w := doRequest(r, http.MethodGet, "/api/manga/1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decodeJSON(t, w)
	assert.Equal(t, "Night Shift", out["manga"].(map[string]any)["title"])
	chapters := out["chapters"].([]any)
	require.Len(t, chapters, 2)
	assert.EqualValues(t, 18, chapters[0].(map[string]any)["page_count"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetChapter_PagesAndNeighbours(t *testing.T) {
	_, mock, r := newTestServer(t)
	now := time.Now()
	mock.ExpectQuery(`FROM chapters WHERE id = \?`).WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "manga_id", "number", "title", "views", "created_at"}).
			AddRow(5, 1, 2.0, "Two", 0, now))
	mock.ExpectQuery(`FROM pages WHERE chapter_id = \?`).WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(pageRowColumns).
			AddRow(50, 5, 0, "http://origin/0.png", 800, 1200, 4, 42, 2))
	mock.ExpectQuery(`number < \?`).WithArgs(int64(1), 2.0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))
	mock.ExpectQuery(`number > \?`).WithArgs(int64(1), 2.0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := doRequest(r, http.MethodGet, "/api/chapters/5", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decodeJSON(t, w)
	assert.EqualValues(t, 4, out["prev_id"])
	assert.EqualValues(t, 0, out["next_id"])
	page := out["pages"].([]any)[0].(map[string]any)
	assert.Equal(t, "http://reader.test/api/pages/50/image?v=2", page["image_url"])
	assert.EqualValues(t, 42, page["seed"])
	assert.NotContains(t, page, "origin_url")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister(t *testing.T) {
	_, mock, r := newTestServer(t)
	mock.ExpectExec(`INSERT INTO users`).WillReturnResult(sqlmock.NewResult(7, 1))

	w := doRequest(r, http.MethodPost, "/api/auth/register", jsonBody(t, map[string]string{
		"username": "reader_1",
		"password": "correct horse",
	}), nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decodeJSON(t, w)
	assert.NotEmpty(t, out["token"])
	assert.EqualValues(t, 7, out["user"].(map[string]any)["id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister_Validation(t *testing.T) {
	_, _, r := newTestServer(t)
	cases := []map[string]string{
		{"username": "ab", "password": "long enough"},
		{"username": "bad name!", "password": "long enough"},
		{"username": "reader", "password": "short"},
	}
	for _, body := range cases {
		w := doRequest(r, http.MethodPost, "/api/auth/register", jsonBody(t, body), nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	_, mock, r := newTestServer(t)
	mock.ExpectExec(`INSERT INTO users`).WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	w := doRequest(r, http.MethodPost, "/api/auth/register", jsonBody(t, map[string]string{
		"username": "reader_1",
		"password": "correct horse",
	}), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUpdateManga_PartialFields(t *testing.T) {
	_, mock, r := newTestServer(t)
	mock.ExpectExec(`UPDATE manga SET status = \?, updated_at = \? WHERE id = \?`).
		WithArgs("COMPLETED", sqlmock.AnyArg(), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := doRequest(r, http.MethodPut, "/api/admin/manga/3", jsonBody(t, map[string]string{"status": "completed"}),
		map[string]string{"X-Admin-Token": "admin-token"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateManga_InvalidStatus(t *testing.T) {
	_, _, r := newTestServer(t)
	w := doRequest(r, http.MethodPut, "/api/admin/manga/3", jsonBody(t, map[string]string{"status": "cancelled"}),
		map[string]string{"X-Admin-Token": "admin-token"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateChapter_MissingManga(t *testing.T) {
	_, mock, r := newTestServer(t)
	mock.ExpectExec(`INSERT INTO chapters`).WillReturnError(&mysql.MySQLError{Number: 1452})

	w := doRequest(r, http.MethodPost, "/api/admin/manga/3/chapters", jsonBody(t, map[string]any{"number": 1}),
		map[string]string{"X-Admin-Token": "admin-token"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%\_a\\b`, escapeLike(`100%_a\b`))
}
