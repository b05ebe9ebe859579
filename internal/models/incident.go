package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// IncidentType - категория происшествия
type IncidentType string

const (
	TypeEmergency IncidentType = "emergency"
	TypeMedical   IncidentType = "medical"
	TypeFire      IncidentType = "fire"
	TypeSecurity  IncidentType = "security"
	TypeOther     IncidentType = "other"
)

// IncidentStatus - стадия жизненного цикла инцидента
type IncidentStatus string

const (
	StatusPending  IncidentStatus = "pending"
	StatusActive   IncidentStatus = "active"
	StatusResolved IncidentStatus = "resolved"
	StatusClosed   IncidentStatus = "closed"
)

// Priority - приоритет инцидента
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// MediaKind - тип вложения
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

var (
	IncidentTypes    = []IncidentType{TypeEmergency, TypeMedical, TypeFire, TypeSecurity, TypeOther}
	IncidentStatuses = []IncidentStatus{StatusPending, StatusActive, StatusResolved, StatusClosed}
	Priorities       = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
)

func (t IncidentType) Valid() bool {
	for _, v := range IncidentTypes {
		if v == t {
			return true
		}
	}
	return false
}

func (s IncidentStatus) Valid() bool {
	for _, v := range IncidentStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func (p Priority) Valid() bool {
	for _, v := range Priorities {
		if v == p {
			return true
		}
	}
	return false
}

func (k MediaKind) Valid() bool {
	return k == MediaImage || k == MediaVideo
}

// Point - географическая точка (WGS84)
type Point struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// Address - адрес, полученный геокодированием на клиенте
type Address struct {
	Formatted string `json:"formatted,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Country   string `json:"country,omitempty"`
}

// MediaAttachment - фото или видео, приложенное к инциденту
type MediaAttachment struct {
	Kind    MediaKind `json:"type"`
	URL     string    `json:"url"`
	Caption string    `json:"caption,omitempty"`
}

// IncidentUpdate - запись журнала изменений. Журнал только дополняется.
type IncidentUpdate struct {
	Message   string         `json:"message"`
	Status    IncidentStatus `json:"status"`
	UpdatedBy uuid.UUID      `json:"updatedBy"`
	Timestamp time.Time      `json:"timestamp"`
}

type Incident struct {
	ID            uuid.UUID         `json:"id"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Type          IncidentType      `json:"type"`
	Status        IncidentStatus    `json:"status"`
	Priority      Priority          `json:"priority"`
	Location      Point             `json:"location"`
	Address       *Address          `json:"address,omitempty"`
	ReportedBy    uuid.UUID         `json:"reportedBy"`
	ReporterEmail string            `json:"reporterEmail"`
	AssignedTo    []uuid.UUID       `json:"assignedTo"`
	Media         []MediaAttachment `json:"media"`
	Updates       []IncidentUpdate  `json:"updates"`
	ResolvedAt    *time.Time        `json:"resolvedAt,omitempty"`
	Version       int               `json:"version"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// IsAssigned проверяет, назначен ли пользователь на инцидент
func (i *Incident) IsAssigned(userID uuid.UUID) bool {
	return slices.Contains(i.AssignedTo, userID)
}

// Clone возвращает глубокую копию, чтобы изменения не затрагивали исходную запись до сохранения
func (i *Incident) Clone() *Incident {
	c := *i
	if i.Address != nil {
		addr := *i.Address
		c.Address = &addr
	}
	if i.ResolvedAt != nil {
		t := *i.ResolvedAt
		c.ResolvedAt = &t
	}
	c.AssignedTo = slices.Clone(i.AssignedTo)
	c.Media = slices.Clone(i.Media)
	c.Updates = slices.Clone(i.Updates)
	return &c
}

// IncidentPatch - частичное обновление. nil означает "поле не передано".
// Автор и журнал изменений через патч не меняются.
type IncidentPatch struct {
	Title       *string
	Description *string
	Type        *IncidentType
	Status      *IncidentStatus
	Priority    *Priority
	Location    *Point
	Address     *Address
}
