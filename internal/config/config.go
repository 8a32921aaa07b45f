package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr            string
	MySQLDSN            string
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	JWTSecret           string
	AdminToken          string
	AdminPassword       string
	AdminUsernames      map[string]bool
	InitSecret          string
	MediaDir            string
	PublicBaseURL       string
	DefaultGridSize     int
	PagePixelRatio      float64
	PageJPEGQuality     int
	PageCacheTTLSec     int
	PageLRUSize         int
	OriginTimeoutMS     int
	CommentRatePerMin   int
	MaxUploadMB         int
	WarmupWorkerEnabled bool
	WarmupConcurrency   int
}

func Load() Config {
	loadDotEnv(".env")
	cfg := Config{
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		MySQLDSN:            getEnv("MYSQL_DSN", "root:password@tcp(127.0.0.1:3306)/mangareader?parseTime=true&charset=utf8mb4"),
		RedisAddr:           getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		JWTSecret:           getEnv("JWT_SECRET", "change-me"),
		AdminToken:          getEnv("ADMIN_TOKEN", ""),
		AdminPassword:       getEnv("ADMIN_PASSWORD", ""),
		InitSecret:          getEnv("INIT_SECRET", ""),
		MediaDir:            getEnv("MEDIA_DIR", "./media"),
		PublicBaseURL:       strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://127.0.0.1:8080"), "/"),
		DefaultGridSize:     getEnvInt("DEFAULT_GRID_SIZE", 4),
		PagePixelRatio:      getEnvFloat("PAGE_PIXEL_RATIO", 1),
		PageJPEGQuality:     getEnvInt("PAGE_JPEG_QUALITY", 90),
		PageCacheTTLSec:     getEnvInt("PAGE_CACHE_TTL_SEC", 3600),
		PageLRUSize:         getEnvInt("PAGE_LRU_SIZE", 256),
		OriginTimeoutMS:     getEnvInt("ORIGIN_TIMEOUT_MS", 8000),
		CommentRatePerMin:   getEnvInt("COMMENT_RATE_PER_MIN", 6),
		MaxUploadMB:         getEnvInt("MAX_UPLOAD_MB", 20),
		WarmupWorkerEnabled: getEnvBool("WARMUP_WORKER_ENABLED", false),
		WarmupConcurrency:   getEnvInt("WARMUP_CONCURRENCY", 4),
	}
	if cfg.DefaultGridSize < 2 {
		cfg.DefaultGridSize = 2
	}
	if cfg.DefaultGridSize > 16 {
		cfg.DefaultGridSize = 16
	}
	if cfg.PagePixelRatio < 1 {
		cfg.PagePixelRatio = 1
	}
	if cfg.PagePixelRatio > 4 {
		cfg.PagePixelRatio = 4
	}
	if cfg.PageJPEGQuality < 30 {
		cfg.PageJPEGQuality = 30
	}
	if cfg.PageJPEGQuality > 100 {
		cfg.PageJPEGQuality = 100
	}
	if cfg.PageLRUSize <= 0 {
		cfg.PageLRUSize = 256
	}
	if cfg.CommentRatePerMin <= 0 {
		cfg.CommentRatePerMin = 6
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 20
	}
	if cfg.WarmupConcurrency <= 0 {
		cfg.WarmupConcurrency = 1
	}
	cfg.AdminUsernames = parseCSVSet(getEnv("ADMIN_USERNAMES", ""))
	return cfg
}

func parseCSVSet(val string) map[string]bool {
	set := make(map[string]bool)
	for _, item := range strings.Split(val, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		set[item] = true
	}
	return set
}

func getEnv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func loadDotEnv(path string) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		val = strings.Trim(val, "\"")
		if key == "" {
			continue
		}
		if os.Getenv(key) == "" {
			_ = os.Setenv(key, val)
		}
	}
}

func getEnvInt(key string, def int) int {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return parsed
}

func getEnvFloat(key string, def float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getEnvBool(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if val == "" {
		return def
	}
	switch val {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
