// Package realtime fans committed ledger transitions out to websocket
// subscribers.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"escrow/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBuffer     = 64
	broadcastQueue = 1024
)

// Client is one websocket subscriber. A zero Campaign subscribes to every
// campaign.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	Campaign domain.Pubkey
}

// Hub owns the subscriber set. All mutation happens on the Run goroutine.
type Hub struct {
	clients    map[domain.Pubkey]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan domain.Event
	done       chan struct{}
	logger     zerolog.Logger
	upgrader   websocket.Upgrader
}

// NewHub builds a hub. allowedOrigins limits browser upgrades; empty allows
// any origin.
func NewHub(logger zerolog.Logger, allowedOrigins []string) *Hub {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Hub{
		clients:    make(map[domain.Pubkey]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan domain.Event, broadcastQueue),
		done:       make(chan struct{}),
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

// Publish queues ev for delivery. It never blocks; when the queue is full
// the event is dropped and logged.
func (h *Hub) Publish(ev domain.Event) {
	select {
	case h.broadcast <- ev:
	default:
		h.logger.Warn().Str("signature", ev.Signature).Msg("realtime queue full, event dropped")
	}
}

// Run serves register, unregister and broadcast until ctx is done. It must be
// called once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}
			h.clients = make(map[domain.Pubkey]map[*Client]struct{})
			return

		case c := <-h.register:
			set, ok := h.clients[c.Campaign]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[c.Campaign] = set
			}
			set[c] = struct{}{}
			h.logger.Debug().Str("campaign", c.Campaign.String()).Msg("websocket client registered")

		case c := <-h.unregister:
			h.remove(c)

		case ev := <-h.broadcast:
			payload, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error().Err(err).Msg("marshal event")
				continue
			}
			h.deliver(h.clients[ev.Campaign], payload)
			h.deliver(h.clients[domain.Pubkey{}], payload)
		}
	}
}

func (h *Hub) deliver(set map[*Client]struct{}, payload []byte) {
	for c := range set {
		select {
		case c.send <- payload:
		default:
			// Slow consumer.
			h.remove(c)
		}
	}
}

func (h *Hub) remove(c *Client) {
	set, ok := h.clients[c.Campaign]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.Campaign)
	}
	h.logger.Debug().Str("campaign", c.Campaign.String()).Msg("websocket client unregistered")
}

// Serve upgrades the request and streams events for campaign. A zero
// campaign streams every event.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, campaign domain.Pubkey) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), Campaign: campaign}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages and detects disconnects.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug().Err(err).Msg("websocket read error")
			}
			return
		}
	}
}

var _ domain.EventSink = (*Hub)(nil)
