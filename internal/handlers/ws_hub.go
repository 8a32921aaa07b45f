package handlers

import (
	"sync"
)

// Hub fans comment events out to the sockets watching each chapter.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*WSClient]bool
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[int64]map[*WSClient]bool),
	}
}

func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client.ChapterID] == nil {
		h.clients[client.ChapterID] = make(map[*WSClient]bool)
	}
	h.clients[client.ChapterID][client] = true
}

func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client.ChapterID] != nil {
		delete(h.clients[client.ChapterID], client)
		if len(h.clients[client.ChapterID]) == 0 {
			delete(h.clients, client.ChapterID)
		}
	}
}

func (h *Hub) SendToChapter(chapterID int64, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[chapterID] {
		client.Send(payload)
	}
}

func (h *Hub) Watchers(chapterID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[chapterID])
}

func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}
