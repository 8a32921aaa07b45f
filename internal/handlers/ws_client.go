package handlers

import (
	"github.com/gorilla/websocket"
)

type WSClient struct {
	ChapterID int64
	UserID    int64
	Conn      *websocket.Conn
	SendCh    chan []byte
}

func NewWSClient(chapterID, userID int64, conn *websocket.Conn) *WSClient {
	return &WSClient{
		ChapterID: chapterID,
		UserID:    userID,
		Conn:      conn,
		SendCh:    make(chan []byte, 32),
	}
}

// Send never blocks; a slow reader loses messages instead of stalling the hub.
func (c *WSClient) Send(payload []byte) {
	select {
	case c.SendCh <- payload:
	default:
	}
}

func (c *WSClient) WritePump() {
	for msg := range c.SendCh {
		if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
