package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"mangareader/internal/auth"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// HandleChapterWS streams comment events for one chapter. A token is optional;
// anonymous readers receive the same feed.
func (s *Server) HandleChapterWS(c *gin.Context) {
	chapterID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var userID int64
	token := c.Query("token")
	if token == "" {
		token = getBearerToken(c.Request)
	}
	if token != "" {
		claims, err := auth.ParseToken(s.JWTSecret, token)
		if err != nil || s.validateSession(claims.UserID, claims.SessionID) != nil {
			c.Status(http.StatusUnauthorized)
			return
		}
		userID = claims.UserID
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	client := NewWSClient(chapterID, userID, conn)
	s.Hub.Register(client)
	defer func() {
		s.Hub.Unregister(client)
		_ = conn.Close()
		close(client.SendCh)
	}()

	go client.WritePump()

	client.Send(mustJSON(WSMessage{
		Type: "hello",
		Data: map[string]interface{}{
			"server_time": time.Now().UnixMilli(),
			"chapter_id":  chapterID,
			"watchers":    s.Hub.Watchers(chapterID),
		},
	}))

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var inbound struct {
			Type string `json:"type"`
			Ts   int64  `json:"ts"`
		}
		if err := json.Unmarshal(msg, &inbound); err != nil {
			continue
		}
		if inbound.Type == "ping" {
			client.Send(mustJSON(WSMessage{
				Type: "pong",
				Data: map[string]interface{}{
					"ts":          inbound.Ts,
					"server_time": time.Now().UnixMilli(),
				},
			}))
		}
	}
}

func mustJSON(v interface{}) []byte {
	data, _ := json.Marshal(v)
	return data
}
