package v1

import (
	"time"

	"github.com/google/uuid"
)

// LocationRequest - точка в формате GeoJSON: coordinates = [longitude, latitude]
// @Description Точка в формате GeoJSON
type LocationRequest struct {
	Type        string    `json:"type,omitempty" example:"Point"`
	Coordinates []float64 `json:"coordinates" validate:"required,lnglat" example:"-122.4,37.8"`
}

// AddressRequest DTO адреса
// @Description DTO адреса
type AddressRequest struct {
	Formatted string `json:"formatted,omitempty" validate:"max=500"`
	City      string `json:"city,omitempty" validate:"max=100"`
	State     string `json:"state,omitempty" validate:"max=100"`
	Country   string `json:"country,omitempty" validate:"max=100"`
}

// CreateIncidentRequest DTO для создания инцидента
// @Description DTO для создания инцидента
type CreateIncidentRequest struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description" validate:"required,max=5000"`
	Type        string          `json:"type" validate:"required,oneof=emergency medical fire security other"`
	Priority    string          `json:"priority,omitempty" validate:"omitempty,oneof=low medium high critical"`
	Location    LocationRequest `json:"location"`
	Address     *AddressRequest `json:"address,omitempty"`
}

// UpdateIncidentRequest DTO для частичного обновления инцидента
// @Description DTO для частичного обновления инцидента. Передаются только изменяемые поля.
type UpdateIncidentRequest struct {
	Title       *string          `json:"title,omitempty" validate:"omitnil,min=1,max=200"`
	Description *string          `json:"description,omitempty" validate:"omitnil,min=1,max=5000"`
	Type        *string          `json:"type,omitempty" validate:"omitnil,oneof=emergency medical fire security other"`
	Status      *string          `json:"status,omitempty" validate:"omitnil,oneof=pending active resolved closed"`
	Priority    *string          `json:"priority,omitempty" validate:"omitnil,oneof=low medium high critical"`
	Location    *LocationRequest `json:"location,omitempty"`
	Address     *AddressRequest  `json:"address,omitempty"`
}

// AssignRespondersRequest DTO для назначения спасателей
// @Description DTO для назначения спасателей
type AssignRespondersRequest struct {
	Responders []string `json:"responders" validate:"required,min=1,dive,uuid"`
}

// AddMediaRequest DTO для добавления вложения
// @Description DTO для добавления вложения
type AddMediaRequest struct {
	Type    string `json:"type" validate:"required,oneof=image video"`
	URL     string `json:"url" validate:"required,url,max=2048"`
	Caption string `json:"caption,omitempty" validate:"max=500"`
}

// RegisterRequest DTO для регистрации
// @Description DTO для регистрации
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Role     string `json:"role,omitempty" validate:"omitempty,oneof=user responder moderator"`
}

// LoginRequest DTO для входа
// @Description DTO для входа
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ResponderLocationRequest DTO для обновления местоположения спасателя
// @Description DTO для обновления местоположения спасателя
type ResponderLocationRequest struct {
	Coordinates []float64 `json:"coordinates" validate:"required,lnglat" example:"-122.4,37.8"`
}

// ResponderStatusRequest DTO для смены статуса спасателя
// @Description DTO для смены статуса спасателя
type ResponderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive"`
}

// LocationResponse - точка в формате GeoJSON
type LocationResponse struct {
	Type        string     `json:"type" example:"Point"`
	Coordinates [2]float64 `json:"coordinates"`
}

type AddressResponse struct {
	Formatted string `json:"formatted,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Country   string `json:"country,omitempty"`
}

type MediaResponse struct {
	Type    string `json:"type"`
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

type IncidentUpdateResponse struct {
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	UpdatedBy uuid.UUID `json:"updatedBy"`
	Timestamp time.Time `json:"timestamp"`
}

// IncidentResponse DTO для ответа с информацией об инциденте
// @Description DTO для ответа с информацией об инциденте
type IncidentResponse struct {
	ID            uuid.UUID                `json:"id"`
	Title         string                   `json:"title"`
	Description   string                   `json:"description"`
	Type          string                   `json:"type"`
	Status        string                   `json:"status"`
	Priority      string                   `json:"priority"`
	Location      LocationResponse         `json:"location"`
	Address       *AddressResponse         `json:"address,omitempty"`
	ReportedBy    uuid.UUID                `json:"reportedBy"`
	ReporterEmail string                   `json:"reporterEmail,omitempty"`
	AssignedTo    []uuid.UUID              `json:"assignedTo"`
	Media         []MediaResponse          `json:"media"`
	Updates       []IncidentUpdateResponse `json:"updates"`
	ResolvedAt    *time.Time               `json:"resolvedAt,omitempty"`
	Version       int                      `json:"version"`
	CreatedAt     time.Time                `json:"createdAt"`
	UpdatedAt     time.Time                `json:"updatedAt"`
}

type TimelineEventResponse struct {
	Status    string     `json:"status"`
	Message   string     `json:"message"`
	Actor     *uuid.UUID `json:"actor,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// IncidentDetailResponse DTO инцидента с хронологией
// @Description DTO инцидента с хронологией
type IncidentDetailResponse struct {
	IncidentResponse
	Timeline []TimelineEventResponse `json:"timeline"`
}

// IncidentListResponse DTO страницы инцидентов
// @Description DTO страницы инцидентов
type IncidentListResponse struct {
	Incidents   []*IncidentResponse `json:"incidents"`
	CurrentPage int                 `json:"currentPage"`
	TotalPages  int                 `json:"totalPages"`
	Total       int                 `json:"total"`
}

type CountResponse struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// StatsResponse DTO для ответа со статистикой
// @Description DTO для ответа со статистикой
type StatsResponse struct {
	ByType                   []CountResponse `json:"byType"`
	ByStatus                 []CountResponse `json:"byStatus"`
	Trend                    []CountResponse `json:"trend"`
	AverageResolutionMinutes float64         `json:"averageResolutionMinutes"`
	WindowDays               int             `json:"windowDays"`
}

// UserResponse DTO пользователя
// @Description DTO пользователя
type UserResponse struct {
	ID        uuid.UUID         `json:"id"`
	Name      string            `json:"name"`
	Email     string            `json:"email"`
	Role      string            `json:"role"`
	Status    string            `json:"status"`
	Location  *LocationResponse `json:"location,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// AuthResponse DTO ответа на регистрацию и вход
// @Description DTO ответа на регистрацию и вход
type AuthResponse struct {
	Token string        `json:"token"`
	User  *UserResponse `json:"user"`
}

// ErrorResponse DTO ошибки
// @Description DTO ошибки; fields заполняется при ошибке валидации
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
