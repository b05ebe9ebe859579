package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/emergency_response_system/internal/models"
)

// transition описывает смену статуса в результате одной мутации
type transition struct {
	From    models.IncidentStatus
	To      models.IncidentStatus
	Changed bool
}

func validPoint(p models.Point) bool {
	return p.Longitude >= -180 && p.Longitude <= 180 && p.Latitude >= -90 && p.Latitude <= 90
}

// validateNewIncident проверяет инцидент перед созданием
func validateNewIncident(incident *models.Incident) error {
	verr := &ValidationError{}

	incident.Title = strings.TrimSpace(incident.Title)
	incident.Description = strings.TrimSpace(incident.Description)

	if incident.Title == "" {
		verr.add("title", "title is required")
	}
	if incident.Description == "" {
		verr.add("description", "description is required")
	}
	if !incident.Type.Valid() {
		verr.add("type", "invalid incident type")
	}
	if incident.Priority != "" && !incident.Priority.Valid() {
		verr.add("priority", "invalid priority")
	}
	if !validPoint(incident.Location) {
		verr.add("location.coordinates", "invalid coordinates")
	}
	return verr.errOrNil()
}

// validatePatch проверяет частичное обновление. Выполняется до любых изменений.
func validatePatch(patch models.IncidentPatch) error {
	verr := &ValidationError{}

	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		verr.add("title", "title must not be empty")
	}
	if patch.Description != nil && strings.TrimSpace(*patch.Description) == "" {
		verr.add("description", "description must not be empty")
	}
	if patch.Type != nil && !patch.Type.Valid() {
		verr.add("type", "invalid incident type")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		verr.add("status", "invalid status")
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		verr.add("priority", "invalid priority")
	}
	if patch.Location != nil && !validPoint(*patch.Location) {
		verr.add("location.coordinates", "invalid coordinates")
	}
	return verr.errOrNil()
}

// applyPatch применяет проверенное обновление к инциденту.
// Любой переход статуса допустим; смена статуса фиксируется в журнале,
// а resolvedAt выставляется только при первом переходе в resolved.
func applyPatch(incident *models.Incident, patch models.IncidentPatch, actorID uuid.UUID, now time.Time) transition {
	tr := transition{From: incident.Status, To: incident.Status}

	if patch.Status != nil {
		next := *patch.Status
		if next != incident.Status {
			incident.Updates = append(incident.Updates, models.IncidentUpdate{
				Message:   fmt.Sprintf("Status changed from %s to %s", incident.Status, next),
				Status:    next,
				UpdatedBy: actorID,
				Timestamp: now,
			})
			tr.To = next
			tr.Changed = true
		}
		if next == models.StatusResolved && incident.ResolvedAt == nil {
			resolvedAt := now
			incident.ResolvedAt = &resolvedAt
		}
		incident.Status = next
	}

	if patch.Title != nil {
		incident.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		incident.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Type != nil {
		incident.Type = *patch.Type
	}
	if patch.Priority != nil {
		incident.Priority = *patch.Priority
	}
	if patch.Location != nil {
		incident.Location = *patch.Location
	}
	if patch.Address != nil {
		addr := *patch.Address
		incident.Address = &addr
	}

	return tr
}

func assignmentMessage(count int) string {
	if count == 1 {
		return "1 responder assigned to incident"
	}
	return fmt.Sprintf("%d responders assigned to incident", count)
}

// applyAssignment заменяет список назначенных спасателей и переводит инцидент в active
func applyAssignment(incident *models.Incident, responders []uuid.UUID, actorID uuid.UUID, now time.Time) transition {
	tr := transition{From: incident.Status, To: models.StatusActive, Changed: incident.Status != models.StatusActive}

	incident.AssignedTo = append([]uuid.UUID(nil), responders...)
	incident.Status = models.StatusActive
	incident.Updates = append(incident.Updates, models.IncidentUpdate{
		Message:   assignmentMessage(len(responders)),
		Status:    models.StatusActive,
		UpdatedBy: actorID,
		Timestamp: now,
	})

	return tr
}

// applyMedia добавляет вложение; статус и журнал не меняются
func applyMedia(incident *models.Incident, media models.MediaAttachment) {
	incident.Media = append(incident.Media, media)
}

// uniqueIDs убирает повторы, сохраняя порядок
func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
