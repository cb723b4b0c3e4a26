// Package ws pushes order and table events to kitchen displays and waiter
// tablets. Clients join the room of one sucursal and only receive its events.
package ws

import (
	"context"
	"encoding/json"
	"sync"

	"mesapos/internal/dto"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// sucursalEvento routes an event to one branch room.
type sucursalEvento struct {
	sucursalID uuid.UUID
	mensaje    []byte
}

// Hub maintains the set of active clients per sucursal and broadcasts to them.
type Hub struct {
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan sucursalEvento
	// done is closed when Run returns; register and unregister give up then.
	done chan struct{}

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan sucursalEvento, 256),
		done:       make(chan struct{}),
	}
}

// Run is the hub's main loop; it returns when ctx is cancelled and closes
// every client send channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, clients := range h.rooms {
				for c := range clients {
					close(c.send)
				}
				delete(h.rooms, id)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.sucursalID] == nil {
				h.rooms[client.sucursalID] = make(map[*Client]bool)
			}
			h.rooms[client.sucursalID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()

		case ev := <-h.broadcast:
			h.mu.Lock()
			for client := range h.rooms[ev.sucursalID] {
				select {
				case client.send <- ev.mensaje:
				default:
					// slow consumer: drop it, the display reconnects and refetches
					h.removeLocked(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// subscribe reports false when the hub is no longer running.
func (h *Hub) subscribe(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unsubscribe(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// removeLocked must be called with mu held.
func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.rooms[client.sucursalID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.sucursalID)
	}
}

// Publicar broadcasts ev to the room of its sucursal. It never blocks: when
// the broadcast buffer is full the event is dropped and logged.
func (h *Hub) Publicar(ev dto.Evento) {
	sucursalID, err := uuid.Parse(ev.SucursalID)
	if err != nil {
		log.Warn().Str("sucursal_id", ev.SucursalID).Msg("ws: event without valid sucursal")
		return
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("type", ev.Type).Msg("ws: marshal event")
		return
	}
	select {
	case h.broadcast <- sucursalEvento{sucursalID: sucursalID, mensaje: msg}:
	default:
		log.Warn().Str("type", ev.Type).Str("sucursal_id", ev.SucursalID).Msg("ws: broadcast buffer full, event dropped")
	}
}

// Conectados returns how many clients listen on a sucursal.
func (h *Hub) Conectados(sucursalID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sucursalID])
}
