package notification

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shenikar/emergency_response_system/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 32
)

// Client - websocket-подписчик на события инцидентов
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan Event
	actor     models.Actor
	incidents map[uuid.UUID]struct{}
}

// NewClient создает клиента. Пустой список инцидентов - подписка на все события,
// которые actor вправе видеть.
func NewClient(hub *Hub, conn *websocket.Conn, actor models.Actor, incidents []uuid.UUID) *Client {
	c := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan Event, sendBufferSize),
		actor:     actor,
		incidents: make(map[uuid.UUID]struct{}, len(incidents)),
	}
	for _, id := range incidents {
		c.incidents[id] = struct{}{}
	}
	return c
}

// Wants - нужно ли отправлять клиенту событие по инциденту
func (c *Client) Wants(incidentID uuid.UUID) bool {
	if len(c.incidents) == 0 {
		return true
	}
	_, ok := c.incidents[incidentID]
	return ok
}

// Run регистрирует клиента и запускает read/write pumps
func (c *Client) Run() {
	c.hub.Register(c)
	go c.writePump()
	go c.readPump()
}

// readPump нужен только для обработки pong и обнаружения закрытия соединения
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.WithError(err).WithField("user_id", c.actor.ID).Warn("Unexpected websocket close")
			}
			return
		}
	}
}

// writePump читает события из канала send и пишет их в соединение
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Канал закрыт хабом
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			payload, err := json.Marshal(event)
			if err != nil {
				c.hub.logger.WithError(err).Error("Failed to encode incident event for websocket")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
