package notification

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/shenikar/emergency_response_system/internal/models"
	"github.com/sirupsen/logrus"
)

// VisibilityPolicy решает, может ли пользователь видеть инцидент в его текущем состоянии
type VisibilityPolicy interface {
	CanView(actor models.Actor, incident *models.Incident) bool
}

// Hub рассылает события подключенным websocket-клиентам.
// События приходят из Redis Pub/Sub, поэтому доходят до клиентов любого экземпляра сервиса.
type Hub struct {
	redisClient *redis.Client
	policy      VisibilityPolicy
	logger      *logrus.Logger

	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
	done       chan struct{}
}

func NewHub(redisClient *redis.Client, policy VisibilityPolicy, logger *logrus.Logger) *Hub {
	return &Hub{
		redisClient: redisClient,
		policy:      policy,
		logger:      logger,
		clients:     make(map[*Client]struct{}),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan Event, 64),
		done:        make(chan struct{}),
	}
}

// Register добавляет клиента в рассылку
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		close(c.send)
	}
}

// Unregister удаляет клиента; безопасно вызывать после остановки хаба
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast передает событие в цикл рассылки
func (h *Hub) Broadcast(event Event) {
	select {
	case h.broadcast <- event:
	case <-h.done:
	}
}

// Run - основной цикл хаба; завершается при отмене контекста
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for c := range h.clients {
			close(c.send)
			delete(h.clients, c)
		}
		h.logger.Info("Notification hub stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.logger.WithField("user_id", c.actor.ID).Debug("Websocket client registered")
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.logger.WithField("user_id", c.actor.ID).Debug("Websocket client unregistered")
			}
		case event := <-h.broadcast:
			for c := range h.clients {
				if !c.Wants(event.IncidentID) {
					continue
				}
				// права проверяются по состоянию инцидента после изменения
				if !h.canView(c, event) {
					h.logger.WithField("user_id", c.actor.ID).WithField("incident_id", event.IncidentID).
						Debug("Skipping event the client may no longer view")
					continue
				}
				select {
				case c.send <- event:
				default:
					// медленный клиент отключается, чтобы не блокировать остальных
					delete(h.clients, c)
					close(c.send)
					h.logger.WithField("user_id", c.actor.ID).Warn("Dropping slow websocket client")
				}
			}
		}
	}
}

func (h *Hub) canView(c *Client, event Event) bool {
	if event.Incident == nil {
		return false
	}
	return h.policy.CanView(c.actor, event.Incident)
}

// Subscribe слушает канал Redis Pub/Sub и передает события в хаб
func (h *Hub) Subscribe(ctx context.Context) {
	go func() {
		pubsub := h.redisClient.Subscribe(ctx, eventsChannel)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					h.logger.WithError(err).Error("Failed to unmarshal incident event from Redis")
					continue
				}
				h.Broadcast(event)
			}
		}
	}()
}
