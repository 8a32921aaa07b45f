package handlers

import (
	"bytes"
	"context"
	"database/sql/driver"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturedArg matches any value and keeps it for later assertions.
type capturedArg struct {
	value driver.Value
}

func (a *capturedArg) Match(v driver.Value) bool {
	a.value = v
	return true
}

func multipartPage(t *testing.T, fields map[string]string, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "page.png")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadPage_StoresScrambledImage(t *testing.T) {
	srv, mock, r := newTestServer(t)
	src := patternImage(32, 48)
	body, contentType := multipartPage(t, map[string]string{"index": "2"}, encodePNG(t, src))

	mock.ExpectExec(`INSERT INTO pages .* ON DUPLICATE KEY UPDATE`).
		WithArgs(int64(3), 2, sqlmock.AnyArg(), 32, 48, 4, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(70, 1))
	mock.ExpectExec(`UPDATE chapters SET warmed_at = NULL WHERE id = \?`).WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM pages WHERE id = \?`).WithArgs(int64(70)).
		WillReturnRows(sqlmock.NewRows(pageRowColumns).AddRow(70, 3, 2, "http://reader.test/media/x.png", 32, 48, 4, 1, 1))

	w := doRequest(r, http.MethodPost, "/api/admin/chapters/3/pages", body, map[string]string{
		"X-Admin-Token": "admin-token",
		"Content-Type":  contentType,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())

	files, err := filepath.Glob(filepath.Join(srv.Cfg.MediaDir, "chapters", "3", "p002-*.png"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	f, err := os.Open(files[0])
	require.NoError(t, err)
	defer f.Close()
	stored, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), stored.Bounds())
	moved := 0
	for y := 0; y < 48; y++ {
		for x := 0; x < 32; x++ {
			if src.At(x, y) != stored.At(x, y) {
				moved++
			}
		}
	}
	assert.Positive(t, moved, "stored image should be scrambled")
}

func TestUploadPage_NonDivisibleRendersExactly(t *testing.T) {
	srv, mock, r := newTestServer(t)
	src := patternImage(35, 50)
	body, contentType := multipartPage(t, map[string]string{"index": "1"}, encodePNG(t, src))

	seed := &capturedArg{}
	mock.ExpectExec(`INSERT INTO pages`).
		WithArgs(int64(3), 1, sqlmock.AnyArg(), 32, 48, 4, seed).
		WillReturnResult(sqlmock.NewResult(72, 1))
	mock.ExpectExec(`UPDATE chapters SET warmed_at = NULL`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM pages WHERE id = \?`).WillReturnRows(sqlmock.NewRows(pageRowColumns).
		AddRow(72, 3, 1, "http://reader.test/media/z.png", 32, 48, 4, 0, 1))

	w := doRequest(r, http.MethodPost, "/api/admin/chapters/3/pages", body, map[string]string{
		"X-Admin-Token": "admin-token",
		"Content-Type":  contentType,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
	storedSeed, ok := seed.value.(int64)
	require.True(t, ok, "seed argument %T", seed.value)

	files, err := filepath.Glob(filepath.Join(srv.Cfg.MediaDir, "chapters", "3", "p001-*.png"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	f, err := os.Open(files[0])
	require.NoError(t, err)
	defer f.Close()
	stored, err := png.Decode(f)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 32, 48), stored.Bounds())

	rendered, err := srv.Pages.Descramble(context.Background(), stored, 4, float64(int32(storedSeed)), 1)
	require.NoError(t, err)
	for y := 0; y < 48; y++ {
		for x := 0; x < 32; x++ {
			require.Equal(t, src.At(x, y), rendered.At(x, y), "pixel %d,%d", x, y)
		}
	}
}

func TestCropToGrid(t *testing.T) {
	img := patternImage(17, 17)
	assert.Equal(t, image.Rect(0, 0, 16, 16), cropToGrid(img, 4).Bounds())
	assert.Equal(t, img.Bounds(), cropToGrid(img, 0).Bounds())
	assert.Equal(t, img.Bounds(), cropToGrid(img, 20).Bounds())
	even := patternImage(16, 16)
	assert.Same(t, even, cropToGrid(even, 4))

	offset := patternImage(20, 20).SubImage(image.Rect(3, 2, 20, 20))
	cropped := cropToGrid(offset, 4)
	assert.Equal(t, image.Rect(3, 2, 19, 18), cropped.Bounds())
	assert.Equal(t, offset.At(3, 2), cropped.At(3, 2))
}

func TestUploadPage_TooSmallStoredPlain(t *testing.T) {
	_, mock, r := newTestServer(t)
	body, contentType := multipartPage(t, map[string]string{"index": "0", "grid_size": "8"}, encodePNG(t, patternImage(4, 4)))

	mock.ExpectExec(`INSERT INTO pages`).
		WithArgs(int64(3), 0, sqlmock.AnyArg(), 4, 4, 0, int32(0)).
		WillReturnResult(sqlmock.NewResult(71, 1))
	mock.ExpectExec(`UPDATE chapters SET warmed_at = NULL`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM pages WHERE id = \?`).WillReturnRows(sqlmock.NewRows(pageRowColumns).
		AddRow(71, 3, 0, "http://reader.test/media/y.png", 4, 4, 0, 0, 1))

	w := doRequest(r, http.MethodPost, "/api/admin/chapters/3/pages", body, map[string]string{
		"X-Admin-Token": "admin-token",
		"Content-Type":  contentType,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadPage_RequiresImage(t *testing.T) {
	_, _, r := newTestServer(t)
	body, contentType := multipartPage(t, map[string]string{"index": "0"}, nil)
	w := doRequest(r, http.MethodPost, "/api/admin/chapters/3/pages", body, map[string]string{
		"X-Admin-Token": "admin-token",
		"Content-Type":  contentType,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterPage_RejectsNonHTTPOrigin(t *testing.T) {
	_, _, r := newTestServer(t)
	w := doRequest(r, http.MethodPost, "/api/admin/pages", jsonBody(t, map[string]any{
		"chapter_id": 3, "index": 0, "origin_url": "file:///etc/passwd", "grid_size": 4, "seed": 1,
	}), map[string]string{"X-Admin-Token": "admin-token"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInitReset_Guarded(t *testing.T) {
	srv, _, r := newTestServer(t)
	w := doRequest(r, http.MethodPost, "/api/admin/init/reset", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	srv.Cfg.InitSecret = "s3cret"
	w = doRequest(r, http.MethodPost, "/api/admin/init/reset", nil, map[string]string{"X-Init-Secret": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestInitReset_TruncatesTables(t *testing.T) {
	srv, mock, r := newTestServer(t)
	srv.Cfg.InitSecret = "s3cret"
	mock.ExpectExec(`SET FOREIGN_KEY_CHECKS = 0`).WillReturnResult(sqlmock.NewResult(0, 0))
	for _, table := range []string{"bookmarks", "comments", "pages", "chapters", "manga", "users"} {
		mock.ExpectExec(`TRUNCATE TABLE ` + table).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectExec(`SET FOREIGN_KEY_CHECKS = 1`).WillReturnResult(sqlmock.NewResult(0, 0))

	w := doRequest(r, http.MethodPost, "/api/admin/init/reset", nil, map[string]string{"X-Init-Secret": "s3cret"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
