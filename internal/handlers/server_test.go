package handlers

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"mangareader/internal/auth"
	"mangareader/internal/config"
	"mangareader/internal/scramble"
)

func testConfig(t *testing.T) config.Config {
	return config.Config{
		JWTSecret:         "test-secret",
		AdminToken:        "admin-token",
		AdminPassword:     "admin-pass",
		PublicBaseURL:     "http://reader.test",
		MediaDir:          t.TempDir(),
		DefaultGridSize:   4,
		PagePixelRatio:    1,
		PageJPEGQuality:   90,
		PageLRUSize:       16,
		OriginTimeoutMS:   2000,
		CommentRatePerMin: 2,
		MaxUploadMB:       4,
		WarmupConcurrency: 2,
	}
}

func newTestServer(t *testing.T) (*Server, sqlmock.Sqlmock, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	srv := NewServer(testConfig(t), db, nil)
	r := gin.New()
	srv.RegisterRoutes(r)
	return srv, mock, r
}

func userToken(t *testing.T, srv *Server, uid int64, name string, admin bool) string {
	t.Helper()
	token, err := auth.GenerateToken(srv.JWTSecret, uid, name, admin, "sid-test", time.Hour)
	require.NoError(t, err)
	return token
}

func doRequest(r http.Handler, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func patternImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 7), B: uint8(x + y), A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func scrambledOrigin(t *testing.T, img image.Image, grid int, seed int32, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	canvas := scramble.NewCanvas(1)
	require.True(t, scramble.Scramble(img, canvas, grid, float64(seed)))
	body := encodePNG(t, canvas.Image())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

var pageRowColumns = []string{"id", "chapter_id", "page_index", "origin_url", "width", "height", "grid_size", "seed", "version"}
