package realtime

import (
	"DentalClinic/scheduling"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

// Client is one open calendar connection of a tenant.
type Client struct {
	id     string
	tenant string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once
}

// ServeWS upgrades the request and serves the connection until it closes.
// tenant must already be resolved by the caller.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, tenant string) error {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &Client{
		id:     uuid.New().String(),
		tenant: tenant,
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}
	h.register(c)
	go c.writePump()
	go c.readPump()
	return nil
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.origins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if _, ok := h.origins["*"]; ok {
		return true
	}
	_, ok := h.origins[origin]
	return ok
}

// readPump turns inbound frames into calendar queries.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug().Err(err).Str("client", c.id).Msg("connection closed unexpectedly")
			}
			return
		}
		var q scheduling.ViewQuery
		if len(data) > 0 {
			if err := json.Unmarshal(data, &q); err != nil {
				c.hub.logger.Debug().Err(err).Str("client", c.id).Msg("ignoring malformed calendar query")
				continue
			}
		}
		c.hub.query(c, q)
	}
}

// writePump is the only writer of the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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

func (c *Client) close() {
	c.once.Do(func() {
		_ = c.conn.Close()
	})
}
