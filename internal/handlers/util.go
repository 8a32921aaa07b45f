package handlers

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

func getBearerToken(r *http.Request) string {
	val := r.Header.Get("Authorization")
	if val == "" {
		return ""
	}
	const prefix = "Bearer "
	if len(val) <= len(prefix) {
		return ""
	}
	if val[:len(prefix)] != prefix {
		return ""
	}
	return val[len(prefix):]
}

func sessionKey(userID int64) string {
	return "session:uid:" + strconv.FormatInt(userID, 10)
}

func dailyViewsKey(day time.Time) string {
	return "views:chapters:" + day.UTC().Format("20060102")
}

var errInvalidSession = errors.New("invalid session")

func newSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "fallback-session"
	}
	return hex.EncodeToString(b)
}

// newSeed draws a scramble seed for uploaded pages.
func newSeed() int32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return int32(time.Now().UnixNano())
	}
	return int32(binary.BigEndian.Uint32(b[:]))
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def, min, max int) int {
	val, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
