package service

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shenikar/emergency_response_system/internal/models"
)

const (
	timelineReported = "reported"
	timelineResolved = "resolved"
)

// BuildTimeline строит хронологию инцидента: событие создания, журнал изменений
// и отметку о решении. Хранимый инцидент не изменяется.
func BuildTimeline(incident *models.Incident) []models.TimelineEvent {
	events := make([]models.TimelineEvent, 0, len(incident.Updates)+2)

	reporter := incident.ReportedBy
	events = append(events, models.TimelineEvent{
		Status:    timelineReported,
		Message:   "Incident reported",
		Actor:     &reporter,
		Timestamp: incident.CreatedAt,
	})

	for _, u := range incident.Updates {
		actor := u.UpdatedBy
		events = append(events, models.TimelineEvent{
			Status:    string(u.Status),
			Message:   u.Message,
			Actor:     &actor,
			Timestamp: u.Timestamp,
		})
	}

	if incident.ResolvedAt != nil {
		var actor *uuid.UUID
		if n := len(incident.Updates); n > 0 {
			last := incident.Updates[n-1].UpdatedBy
			actor = &last
		}
		events = append(events, models.TimelineEvent{
			Status:    timelineResolved,
			Message:   "Incident resolved",
			Actor:     actor,
			Timestamp: *incident.ResolvedAt,
		})
	}

	// стабильная сортировка: синтетические и реальные события могут совпадать по времени
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	return events
}
