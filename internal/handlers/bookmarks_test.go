package handlers

import (
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestSaveBookmark_Upserts(t *testing.T) {
	srv, mock, r := newTestServer(t)
	mock.ExpectQuery(`SELECT manga_id FROM chapters WHERE id = \?`).WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"manga_id"}).AddRow(2))
	mock.ExpectExec(`INSERT INTO bookmarks .* ON DUPLICATE KEY UPDATE`).
		WithArgs(int64(8), int64(2), int64(5), 11, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := doRequest(r, http.MethodPost, "/api/user/bookmarks",
		jsonBody(t, map[string]any{"manga_id": 2, "chapter_id": 5, "page_index": 11}),
		bearer(userToken(t, srv, 8, "reader", false)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveBookmark_ChapterFromOtherManga(t *testing.T) {
	srv, mock, r := newTestServer(t)
	mock.ExpectQuery(`SELECT manga_id FROM chapters WHERE id = \?`).WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"manga_id"}).AddRow(9))

	w := doRequest(r, http.MethodPost, "/api/user/bookmarks",
		jsonBody(t, map[string]any{"manga_id": 2, "chapter_id": 5}),
		bearer(userToken(t, srv, 8, "reader", false)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteBookmark(t *testing.T) {
	srv, mock, r := newTestServer(t)
	mock.ExpectExec(`DELETE FROM bookmarks WHERE user_id = \? AND manga_id = \?`).WithArgs(int64(8), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := doRequest(r, http.MethodDelete, "/api/user/bookmarks/2", nil, bearer(userToken(t, srv, 8, "reader", false)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
