package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mangareader/internal/auth"
)

// AuthRequired accepts only an Authorization bearer token. The websocket feed
// reads its optional token from the query string itself.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := s.bearerClaims(c, false)
		if !ok {
			return
		}
		c.Set("uid", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("admin", claims.IsAdmin)
		c.Set("sid", claims.SessionID)
		c.Next()
	}
}

// AdminRequired lets the static X-Admin-Token through, or a live admin JWT.
func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.Cfg.AdminToken != "" && c.GetHeader("X-Admin-Token") == s.Cfg.AdminToken {
			c.Set("admin", true)
			c.Next()
			return
		}
		claims, ok := s.bearerClaims(c, true)
		if !ok {
			return
		}
		c.Set("uid", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("admin", true)
		c.Next()
	}
}

// bearerClaims parses and checks the session behind the request's bearer
// token, aborting the request when it is unusable.
func (s *Server) bearerClaims(c *gin.Context, adminOnly bool) (*auth.Claims, bool) {
	token := getBearerToken(c.Request)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return nil, false
	}
	claims, err := auth.ParseToken(s.JWTSecret, token)
	switch {
	case err != nil && adminOnly:
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin required"})
		return nil, false
	case err != nil:
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return nil, false
	case adminOnly && !claims.IsAdmin:
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin required"})
		return nil, false
	}
	if err := s.validateSession(claims.UserID, claims.SessionID); err != nil {
		status := http.StatusUnauthorized
		if err != errInvalidSession {
			status = http.StatusServiceUnavailable
		}
		c.AbortWithStatusJSON(status, gin.H{"error": "session invalid"})
		return nil, false
	}
	return claims, true
}
