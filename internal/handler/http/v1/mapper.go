package v1

import (
	"github.com/google/uuid"
	"github.com/shenikar/emergency_response_system/internal/models"
)

const geoJSONPoint = "Point"

func pointFromCoordinates(coords []float64) models.Point {
	return models.Point{Longitude: coords[0], Latitude: coords[1]}
}

func addressFromDTO(dto *AddressRequest) *models.Address {
	if dto == nil {
		return nil
	}
	return &models.Address{
		Formatted: dto.Formatted,
		City:      dto.City,
		State:     dto.State,
		Country:   dto.Country,
	}
}

// CreateRequestToIncident преобразует DTO создания в доменную модель
func CreateRequestToIncident(req CreateIncidentRequest) *models.Incident {
	return &models.Incident{
		Title:       req.Title,
		Description: req.Description,
		Type:        models.IncidentType(req.Type),
		Priority:    models.Priority(req.Priority),
		Location:    pointFromCoordinates(req.Location.Coordinates),
		Address:     addressFromDTO(req.Address),
	}
}

// UpdateRequestToPatch преобразует DTO обновления в патч; непереданные поля остаются nil
func UpdateRequestToPatch(req UpdateIncidentRequest) models.IncidentPatch {
	patch := models.IncidentPatch{
		Title:       req.Title,
		Description: req.Description,
		Address:     addressFromDTO(req.Address),
	}
	if req.Type != nil {
		t := models.IncidentType(*req.Type)
		patch.Type = &t
	}
	if req.Status != nil {
		s := models.IncidentStatus(*req.Status)
		patch.Status = &s
	}
	if req.Priority != nil {
		p := models.Priority(*req.Priority)
		patch.Priority = &p
	}
	if req.Location != nil {
		point := pointFromCoordinates(req.Location.Coordinates)
		patch.Location = &point
	}
	return patch
}

// AssignRequestToIDs разбирает идентификаторы; формат уже проверен валидатором
func AssignRequestToIDs(req AssignRespondersRequest) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(req.Responders))
	for _, raw := range req.Responders {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func MediaRequestToAttachment(req AddMediaRequest) models.MediaAttachment {
	return models.MediaAttachment{
		Kind:    models.MediaKind(req.Type),
		URL:     req.URL,
		Caption: req.Caption,
	}
}

func pointToResponse(p models.Point) LocationResponse {
	return LocationResponse{Type: geoJSONPoint, Coordinates: [2]float64{p.Longitude, p.Latitude}}
}

// ModelToIncidentResponse преобразует доменную модель в DTO для ответа
func ModelToIncidentResponse(model *models.Incident) *IncidentResponse {
	resp := &IncidentResponse{
		ID:            model.ID,
		Title:         model.Title,
		Description:   model.Description,
		Type:          string(model.Type),
		Status:        string(model.Status),
		Priority:      string(model.Priority),
		Location:      pointToResponse(model.Location),
		ReportedBy:    model.ReportedBy,
		ReporterEmail: model.ReporterEmail,
		AssignedTo:    make([]uuid.UUID, len(model.AssignedTo)),
		Media:         make([]MediaResponse, 0, len(model.Media)),
		Updates:       make([]IncidentUpdateResponse, 0, len(model.Updates)),
		ResolvedAt:    model.ResolvedAt,
		Version:       model.Version,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}
	copy(resp.AssignedTo, model.AssignedTo)
	if model.Address != nil {
		resp.Address = &AddressResponse{
			Formatted: model.Address.Formatted,
			City:      model.Address.City,
			State:     model.Address.State,
			Country:   model.Address.Country,
		}
	}
	for _, m := range model.Media {
		resp.Media = append(resp.Media, MediaResponse{Type: string(m.Kind), URL: m.URL, Caption: m.Caption})
	}
	for _, u := range model.Updates {
		resp.Updates = append(resp.Updates, IncidentUpdateResponse{
			Message:   u.Message,
			Status:    string(u.Status),
			UpdatedBy: u.UpdatedBy,
			Timestamp: u.Timestamp,
		})
	}
	return resp
}

// ModelsToIncidentResponses преобразует слайс моделей в слайс DTO
func ModelsToIncidentResponses(models []*models.Incident) []*IncidentResponse {
	responses := make([]*IncidentResponse, len(models))
	for i, model := range models {
		responses[i] = ModelToIncidentResponse(model)
	}
	return responses
}

func ModelToIncidentDetailResponse(model *models.Incident, timeline []models.TimelineEvent) *IncidentDetailResponse {
	resp := &IncidentDetailResponse{
		IncidentResponse: *ModelToIncidentResponse(model),
		Timeline:         make([]TimelineEventResponse, len(timeline)),
	}
	for i, ev := range timeline {
		resp.Timeline[i] = TimelineEventResponse{
			Status:    ev.Status,
			Message:   ev.Message,
			Actor:     ev.Actor,
			Timestamp: ev.Timestamp,
		}
	}
	return resp
}

func PageToListResponse(page *models.IncidentPage) *IncidentListResponse {
	return &IncidentListResponse{
		Incidents:   ModelsToIncidentResponses(page.Incidents),
		CurrentPage: page.CurrentPage,
		TotalPages:  page.TotalPages,
		Total:       page.Total,
	}
}

func bucketsToResponse(buckets []models.CountBucket) []CountResponse {
	resp := make([]CountResponse, len(buckets))
	for i, b := range buckets {
		resp[i] = CountResponse{Key: b.Key, Count: b.Count}
	}
	return resp
}

func StatsToResponse(stats *models.IncidentStats) *StatsResponse {
	return &StatsResponse{
		ByType:                   bucketsToResponse(stats.ByType),
		ByStatus:                 bucketsToResponse(stats.ByStatus),
		Trend:                    bucketsToResponse(stats.Trend),
		AverageResolutionMinutes: stats.AverageResolutionMinutes,
		WindowDays:               stats.WindowDays,
	}
}

// ModelToUserResponse не раскрывает хеш пароля
func ModelToUserResponse(user *models.User) *UserResponse {
	resp := &UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      string(user.Role),
		Status:    string(user.Status),
		CreatedAt: user.CreatedAt,
	}
	if user.Location != nil {
		loc := pointToResponse(*user.Location)
		resp.Location = &loc
	}
	return resp
}

func ModelsToUserResponses(users []*models.User) []*UserResponse {
	responses := make([]*UserResponse, len(users))
	for i, u := range users {
		responses[i] = ModelToUserResponse(u)
	}
	return responses
}
