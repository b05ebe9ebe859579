package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/emergency_response_system/internal/models"
)

const (
	webhookQueueKey = "webhook_events"
	eventsChannel   = "incident_events"
)

// EventType - тип изменения инцидента
type EventType string

const (
	EventIncidentCreated    EventType = "incident.created"
	EventIncidentUpdated    EventType = "incident.updated"
	EventIncidentAssigned   EventType = "incident.assigned"
	EventIncidentMediaAdded EventType = "incident.media_added"
)

// Event - событие об изменении инцидента для вебхуков и подключенных клиентов
type Event struct {
	Type       EventType             `json:"type"`
	IncidentID uuid.UUID             `json:"incidentId"`
	Status     models.IncidentStatus `json:"status"`
	ActorID    uuid.UUID             `json:"actorId"`
	Timestamp  time.Time             `json:"timestamp"`
	Incident   *models.Incident      `json:"incident,omitempty"`
}

// NewIncidentEvent собирает событие по состоянию инцидента после изменения
func NewIncidentEvent(eventType EventType, incident *models.Incident, actorID uuid.UUID, at time.Time) Event {
	return Event{
		Type:       eventType,
		IncidentID: incident.ID,
		Status:     incident.Status,
		ActorID:    actorID,
		Timestamp:  at,
		Incident:   incident,
	}
}

// Publisher - интерфейс для публикации событий
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// RedisPublisher кладет событие в очередь вебхуков и в канал Pub/Sub для websocket-клиентов
type RedisPublisher struct {
	redisClient *redis.Client
}

// NewRedisPublisher создает новый RedisPublisher
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{
		redisClient: client,
	}
}

// Publish публикует событие одной транзакцией: LPUSH в очередь и PUBLISH в канал
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal incident event: %w", err)
	}

	pipe := p.redisClient.TxPipeline()
	pipe.LPush(ctx, webhookQueueKey, payload)
	pipe.Publish(ctx, eventsChannel, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish incident event to Redis: %w", err)
	}
	return nil
}
