package sse

import (
	"context"
	"encoding/json"
	"sync"

	fr "github.com/captain-yun7/facefalcon-sub000/internal/integrations/facerecognition"
	"github.com/captain-yun7/facefalcon-sub000/internal/integrations/provider"

	log "github.com/sirupsen/logrus"
)

// Ereignistypen im Stream
const (
	EventStatus   = "status"
	EventFallback = "fallback"
)

// Client repräsentiert einen einzelnen verbundenen SSE-Client
type Client chan Message

// Message ist ein serialisiertes Ereignis
type Message struct {
	Event string
	Data  []byte
}

// Hub verteilt Router-Ereignisse an alle verbundenen Clients
type Hub struct {
	clients map[Client]bool

	broadcast  chan Message
	register   chan Client
	unregister chan Client
	done       chan struct{}

	mu sync.Mutex
}

// NewHub erstellt eine neue Hub-Instanz
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 100),
		register:   make(chan Client),
		unregister: make(chan Client),
		done:       make(chan struct{}),
		clients:    make(map[Client]bool),
	}
}

// Run startet die Verarbeitungsschleife des Hubs und endet mit dem Kontext
func (h *Hub) Run(ctx context.Context) {
	log.Info("SSE hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client)
			}
			h.mu.Unlock()
			log.Info("SSE hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mu.Unlock()
			log.Debugf("SSE client registered. Total clients: %d", clientCount)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client)
				log.Debugf("SSE client unregistered. Total clients: %d", len(h.clients))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client <- message:
				default:
					// Langsame Clients werden getrennt
					log.Warn("SSE client channel full, removing client")
					delete(h.clients, client)
					close(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Register registriert einen neuen Client am Hub. Läuft der Hub nicht mehr, wird der Kanal sofort geschlossen.
func (h *Hub) Register(client Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client)
	}
}

// Unregister meldet einen Client vom Hub ab
func (h *Hub) Unregister(client Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount gibt die Anzahl der verbundenen Clients zurück
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast serialisiert ein Ereignis und stellt es zum Senden in die Queue
func (h *Hub) Broadcast(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("Failed to marshal %s event for SSE: %v", event, err)
		return
	}
	select {
	case h.broadcast <- Message{Event: event, Data: data}:
	default:
		log.Warn("SSE broadcast channel full, message dropped")
	}
}

// PublishStatus sendet das Ergebnis einer Statusabfrage
func (h *Hub) PublishStatus(status fr.HealthStatus) {
	h.Broadcast(EventStatus, status)
}

// PublishFallback sendet einen Wechsel auf den Ersatzdienst
func (h *Hub) PublishFallback(event provider.FallbackEvent) {
	h.Broadcast(EventFallback, event)
}
