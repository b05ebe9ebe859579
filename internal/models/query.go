package models

import (
	"time"

	"github.com/google/uuid"
)

// GeoFilter - поиск в радиусе от точки
type GeoFilter struct {
	Center       Point
	RadiusMeters int
}

// IncidentFilter - параметры выборки списка инцидентов
type IncidentFilter struct {
	Type     IncidentType
	Status   IncidentStatus
	Priority Priority
	Near     *GeoFilter
	Page     int
	Limit    int
}

// Visibility - ограничение выборки, вычисленное политикой доступа для конкретного пользователя.
// При All == true остальные поля игнорируются.
type Visibility struct {
	All bool
	// UserID - пользователь, от имени которого строится выборка
	UserID uuid.UUID
	// IncludeReported - инциденты, созданные пользователем
	IncludeReported bool
	// IncludeAssigned - инциденты, назначенные пользователю
	IncludeAssigned bool
	// IncludeStatuses - инциденты в указанных статусах видны всем
	IncludeStatuses []IncidentStatus
}

// IncidentPage - страница результатов
type IncidentPage struct {
	Incidents   []*Incident
	CurrentPage int
	TotalPages  int
	Total       int
}

// TimelineEvent - элемент хронологии инцидента
type TimelineEvent struct {
	Status    string     `json:"status"`
	Message   string     `json:"message"`
	Actor     *uuid.UUID `json:"actor,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// CountBucket - пара "значение - количество" для агрегатов
type CountBucket struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// IncidentStats - агрегаты для аналитики
type IncidentStats struct {
	ByType                   []CountBucket `json:"byType"`
	ByStatus                 []CountBucket `json:"byStatus"`
	Trend                    []CountBucket `json:"trend"`
	AverageResolutionMinutes float64       `json:"averageResolutionMinutes"`
	WindowDays               int           `json:"windowDays"`
}
