package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-sql-driver/mysql"
	"golang.org/x/crypto/bcrypt"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userRow struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Nickname  string `json:"nickname"`
	AvatarURL string `json:"avatar_url"`
	IsAdmin   bool   `json:"is_admin"`
}

const (
	maxNicknameLen  = 32
	minPasswordLen  = 8
	mysqlDuplicate  = 1062
	mysqlNoParent   = 1452
	userSelectQuery = `SELECT id, username, nickname, avatar_url, is_admin FROM users`
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,32}$`)

func (s *Server) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if !usernamePattern.MatchString(req.Username) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid username"})
		return
	}
	if len(req.Password) < minPasswordLen || len(req.Password) > 72 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must be 8-72 bytes"})
		return
	}
	nickname, err := normalizeNickname(req.Nickname)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash error"})
		return
	}
	isAdmin := s.Cfg.AdminUsernames[req.Username]
	res, err := s.DB.Exec(`INSERT INTO users (username, password_hash, nickname, avatar_url, is_admin, created_at, updated_at)
		VALUES (?, ?, ?, '', ?, NOW(), NOW())`, req.Username, string(hash), nickname, boolToInt(isAdmin))
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlDuplicate {
			c.JSON(http.StatusConflict, gin.H{"error": "username taken"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	id, _ := res.LastInsertId()
	user := &userRow{ID: id, Username: req.Username, Nickname: nickname, IsAdmin: isAdmin}
	token, err := s.SignToken(user.ID, user.Username, user.IsAdmin)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	row := s.DB.QueryRow(`SELECT id, username, nickname, avatar_url, is_admin, password_hash FROM users WHERE username = ?`, strings.TrimSpace(req.Username))
	var u userRow
	var isAdmin int
	var hash string
	if err := row.Scan(&u.ID, &u.Username, &u.Nickname, &u.AvatarURL, &isAdmin, &hash); err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	u.IsAdmin = isAdmin == 1
	token, err := s.SignToken(u.ID, u.Username, u.IsAdmin)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": u})
}

func (s *Server) Logout(c *gin.Context) {
	s.dropSession(c.GetInt64("uid"))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) GetMe(c *gin.Context) {
	user, err := s.getUserByID(c.GetInt64("uid"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) getUserByID(uid int64) (*userRow, error) {
	row := s.DB.QueryRow(userSelectQuery+` WHERE id = ?`, uid)
	var u userRow
	var isAdmin int
	if err := row.Scan(&u.ID, &u.Username, &u.Nickname, &u.AvatarURL, &isAdmin); err != nil {
		return nil, err
	}
	u.IsAdmin = isAdmin == 1
	return &u, nil
}

func normalizeNickname(val string) (string, error) {
	name := strings.TrimSpace(val)
	if name == "" {
		return "", nil
	}
	if len([]rune(name)) > maxNicknameLen {
		return "", errors.New("nickname too long")
	}
	return name, nil
}
