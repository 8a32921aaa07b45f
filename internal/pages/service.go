package pages

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	_ "golang.org/x/image/webp"

	"mangareader/internal/models"
	"mangareader/internal/scramble"
)

var ErrOrigin = errors.New("origin fetch failed")

const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
)

var renderTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pages_render_total",
	Help: "Page renders by where the bytes came from",
}, []string{"source"})

type Options struct {
	PixelRatio    float64
	JPEGQuality   int
	CacheTTL      time.Duration
	LRUSize       int
	OriginTimeout time.Duration
}

type Service struct {
	HTTP        *http.Client
	Redis       *redis.Client
	PixelRatio  float64
	JPEGQuality int
	CacheTTL    time.Duration
	lru         *lru.Cache[string, []byte]
}

func NewService(rdb *redis.Client, opts Options) *Service {
	if opts.LRUSize <= 0 {
		opts.LRUSize = 256
	}
	if opts.OriginTimeout <= 0 {
		opts.OriginTimeout = 8 * time.Second
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = 90
	}
	if opts.PixelRatio <= 0 {
		opts.PixelRatio = 1
	}
	cache, err := lru.New[string, []byte](opts.LRUSize)
	if err != nil {
		log.Printf("page lru init error: %v", err)
	}
	return &Service{
		HTTP:        &http.Client{Timeout: opts.OriginTimeout},
		Redis:       rdb,
		PixelRatio:  opts.PixelRatio,
		JPEGQuality: opts.JPEGQuality,
		CacheTTL:    opts.CacheTTL,
		lru:         cache,
	}
}

// Fetch downloads and decodes an origin image.
func (s *Service) Fetch(ctx context.Context, url string) (image.Image, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", ErrOrigin, url, err)
	}
	req.Header.Set("Accept", "image/webp,image/png,image/jpeg,image/*")
	resp, err := s.HTTP.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", ErrOrigin, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: %s: status %s", ErrOrigin, url, resp.Status)
	}
	img, format, err := image.Decode(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: decode %s: %v", ErrOrigin, url, err)
	}
	return img, format, nil
}

// Descramble paints img onto a fresh canvas at the given pixel ratio. Pages
// that are not scrambled are copied as-is. The canvas is closed as soon as ctx
// is done, so a request torn down mid-render never writes to it again.
func (s *Service) Descramble(ctx context.Context, img image.Image, gridSize int, seed float64, ratio float64) (image.Image, error) {
	canvas := scramble.NewCanvas(ratio)
	stop := context.AfterFunc(ctx, canvas.Close)
	defer stop()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !scramble.Descramble(img, canvas, gridSize, seed) {
		if canvas.PixelRatio() == 1 {
			return img, nil
		}
		b := img.Bounds()
		canvas.Resize(b.Dx(), b.Dy())
		canvas.CopyTile(img, b, image.Rect(0, 0, b.Dx(), b.Dy()))
	}
	if canvas.Closed() {
		return nil, ctx.Err()
	}
	return canvas.Image(), nil
}

// Render returns the encoded, descrambled page. Results are cached in-process
// and in Redis, keyed by page version so replaced images never serve stale.
func (s *Service) Render(ctx context.Context, page models.Page, format string, ratio float64) ([]byte, error) {
	format = NormalizeFormat(format)
	if ratio <= 0 {
		ratio = s.PixelRatio
	}
	key := CacheKey(page, ratio, format)

	if s.lru != nil {
		if data, ok := s.lru.Get(key); ok {
			renderTotal.WithLabelValues("lru").Inc()
			return data, nil
		}
	}
	if s.Redis != nil {
		data, err := s.Redis.Get(ctx, key).Bytes()
		if err == nil {
			s.remember(key, data)
			renderTotal.WithLabelValues("redis").Inc()
			return data, nil
		}
		if err != redis.Nil {
			log.Printf("page cache read error key=%s: %v", key, err)
		}
	}

	src, _, err := s.Fetch(ctx, page.OriginURL)
	if err != nil {
		return nil, err
	}
	out, err := s.Descramble(ctx, src, page.GridSize, float64(page.Seed), ratio)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, out, format, s.JPEGQuality); err != nil {
		return nil, err
	}
	data := buf.Bytes()

	if s.Redis != nil {
		if err := s.Redis.Set(ctx, key, data, s.CacheTTL).Err(); err != nil {
			log.Printf("page cache write error key=%s: %v", key, err)
		}
	}
	s.remember(key, data)
	renderTotal.WithLabelValues("origin").Inc()
	return data, nil
}

// Forget drops every in-process entry for a page. Redis entries age out by TTL
// and are unreachable once the page version changes.
func (s *Service) Forget(pageID int64) {
	if s.lru == nil {
		return
	}
	prefix := "page:" + strconv.FormatInt(pageID, 10) + ":"
	for _, key := range s.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			s.lru.Remove(key)
		}
	}
}

// Purge empties the in-process cache.
func (s *Service) Purge() {
	if s.lru != nil {
		s.lru.Purge()
	}
}

func (s *Service) remember(key string, data []byte) {
	if s.lru != nil {
		s.lru.Add(key, data)
	}
}

func CacheKey(page models.Page, ratio float64, format string) string {
	return "page:" + strconv.FormatInt(page.ID, 10) +
		":v" + strconv.Itoa(page.Version) +
		":r" + strconv.FormatFloat(ratio, 'f', -1, 64) +
		":" + format
}

func NormalizeFormat(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "png":
		return FormatPNG
	default:
		return FormatJPEG
	}
}

func ContentType(format string) string {
	if NormalizeFormat(format) == FormatPNG {
		return "image/png"
	}
	return "image/jpeg"
}

func Encode(w io.Writer, img image.Image, format string, quality int) error {
	if NormalizeFormat(format) == FormatPNG {
		return png.Encode(w, img)
	}
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}
