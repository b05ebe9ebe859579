package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/emergency_response_system/internal/access"
	"github.com/shenikar/emergency_response_system/internal/config"
	"github.com/shenikar/emergency_response_system/internal/metrics"
	"github.com/shenikar/emergency_response_system/internal/models"
	"github.com/shenikar/emergency_response_system/internal/notification"
	"github.com/sirupsen/logrus"
)

const (
	defaultPageSize    = 10
	maxPageSize        = 100
	defaultSearchLimit = 20
)

// IncidentRepository определяет контракт для работы с бд инцидентов
type IncidentRepository interface {
	Create(ctx context.Context, incident *models.Incident) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	// Update сохраняет инцидент, если в бд все еще версия incident.Version;
	// при успехе увеличивает версию, иначе возвращает ErrConflict
	Update(ctx context.Context, incident *models.Incident) error
	List(ctx context.Context, filter models.IncidentFilter, visibility models.Visibility) ([]*models.Incident, int, error)
	Search(ctx context.Context, query string, visibility models.Visibility, limit int) ([]*models.Incident, error)
	Stats(ctx context.Context, since time.Time) (*models.IncidentStats, error)
	CountByStatus(ctx context.Context) (map[models.IncidentStatus]int, error)

	GetIncidentFromCache(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	SetIncidentCache(ctx context.Context, incident *models.Incident) error
	InvalidateIncidentCache(ctx context.Context, id uuid.UUID) error
}

// IncidentService определяет контракт для бизнес-логики управления инцидентами
type IncidentService interface {
	CreateIncident(ctx context.Context, actor models.Actor, incident *models.Incident) error
	GetIncident(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Incident, []models.TimelineEvent, error)
	ListIncidents(ctx context.Context, actor models.Actor, filter models.IncidentFilter) (*models.IncidentPage, error)
	SearchIncidents(ctx context.Context, actor models.Actor, query string, limit int) ([]*models.Incident, error)
	UpdateIncident(ctx context.Context, actor models.Actor, id uuid.UUID, patch models.IncidentPatch) (*models.Incident, error)
	AssignResponders(ctx context.Context, actor models.Actor, id uuid.UUID, responderIDs []uuid.UUID) (*models.Incident, error)
	AddMedia(ctx context.Context, actor models.Actor, id uuid.UUID, media models.MediaAttachment) (*models.Incident, error)
	GetStats(ctx context.Context, actor models.Actor) (*models.IncidentStats, error)
}

type incidentService struct {
	repo      IncidentRepository
	users     UserRepository
	policy    *access.Policy
	publisher notification.Publisher
	metrics   *metrics.Metrics
	logger    *logrus.Logger
	cfg       *config.Config
	now       func() time.Time
}

func NewIncidentService(
	repo IncidentRepository,
	users UserRepository,
	policy *access.Policy,
	publisher notification.Publisher,
	m *metrics.Metrics,
	logger *logrus.Logger,
	cfg *config.Config,
) IncidentService {
	return &incidentService{
		repo:      repo,
		users:     users,
		policy:    policy,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateIncident создает инцидент от имени пользователя в статусе pending
func (s *incidentService) CreateIncident(ctx context.Context, actor models.Actor, incident *models.Incident) error {
	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "CreateIncident",
		"user_id": actor.ID,
	})
	log.Info("Attempting to create a new incident")

	if !s.policy.Allowed(actor.Role, access.ObjIncident, access.ActCreate) {
		return ErrForbidden
	}
	if err := validateNewIncident(incident); err != nil {
		log.WithError(err).Warn("Incident validation failed")
		return err
	}

	incident.ReportedBy = actor.ID
	incident.ReporterEmail = actor.Email
	incident.Status = models.StatusPending
	if incident.Priority == "" {
		incident.Priority = models.PriorityMedium
	}
	incident.AssignedTo = []uuid.UUID{}
	incident.Media = []models.MediaAttachment{}
	incident.Updates = []models.IncidentUpdate{}
	incident.ResolvedAt = nil

	if err := s.repo.Create(ctx, incident); err != nil {
		log.WithError(err).Error("Failed to create incident in repository")
		return fmt.Errorf("service: could not create incident: %w", err)
	}

	log.WithField("incident_id", incident.ID).Info("Incident created successfully")
	s.notify(ctx, notification.EventIncidentCreated, incident, actor.ID)
	return nil
}

// GetIncident получает инцидент по ID вместе с хронологией.
// Инцидент вне области видимости пользователя считается ненайденным.
func (s *incidentService) GetIncident(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Incident, []models.TimelineEvent, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "GetIncident",
		"incident_id": id,
	})
	log.Info("Fetching incident by ID")

	incident, err := s.repo.GetIncidentFromCache(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to read incident cache, falling back to database")
		incident = nil
	}

	if incident == nil {
		incident, err = s.repo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, ErrIncidentNotFound) {
				log.Warn("Incident not found")
				return nil, nil, ErrIncidentNotFound
			}
			log.WithError(err).Error("Failed to get incident in repository")
			return nil, nil, fmt.Errorf("service: could not get incident: %w", err)
		}
		if err := s.repo.SetIncidentCache(ctx, incident); err != nil {
			log.WithError(err).Warn("Failed to cache incident")
		}
	}

	if !s.policy.CanView(actor, incident) {
		log.WithField("user_id", actor.ID).Warn("Incident is outside of user visibility")
		return nil, nil, ErrIncidentNotFound
	}

	log.Info("Incident fetched successfully")
	return incident, BuildTimeline(incident), nil
}

// ListIncidents возвращает страницу инцидентов с учетом фильтров и области видимости
func (s *incidentService) ListIncidents(ctx context.Context, actor models.Actor, filter models.IncidentFilter) (*models.IncidentPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Near != nil && filter.Near.RadiusMeters <= 0 {
		filter.Near.RadiusMeters = s.cfg.DefaultRadiusMeters
	}

	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "ListIncidents",
		"user_id": actor.ID,
		"page":    filter.Page,
		"limit":   filter.Limit,
	})
	log.Info("Listing incidents")

	if err := validateFilter(filter); err != nil {
		log.WithError(err).Warn("Invalid incident filter")
		return nil, err
	}

	incidents, total, err := s.repo.List(ctx, filter, s.policy.Visibility(actor))
	if err != nil {
		log.WithError(err).Error("Failed to list incidents from repository")
		return nil, fmt.Errorf("service: could not list incidents: %w", err)
	}

	totalPages := (total + filter.Limit - 1) / filter.Limit

	log.WithField("count", len(incidents)).Info("Incidents listed successfully")
	return &models.IncidentPage{
		Incidents:   incidents,
		CurrentPage: filter.Page,
		TotalPages:  totalPages,
		Total:       total,
	}, nil
}

// SearchIncidents - полнотекстовый поиск по заголовку, описанию и адресу
func (s *incidentService) SearchIncidents(ctx context.Context, actor models.Actor, query string, limit int) ([]*models.Incident, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, newValidationError("q", "search query is required")
	}
	if limit < 1 {
		limit = defaultSearchLimit
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "SearchIncidents",
		"user_id": actor.ID,
	})
	log.Info("Searching incidents")

	incidents, err := s.repo.Search(ctx, query, s.policy.Visibility(actor), limit)
	if err != nil {
		log.WithError(err).Error("Failed to search incidents in repository")
		return nil, fmt.Errorf("service: could not search incidents: %w", err)
	}

	log.WithField("count", len(incidents)).Info("Incident search completed")
	return incidents, nil
}

// UpdateIncident применяет частичное обновление и ведет журнал смены статусов
func (s *incidentService) UpdateIncident(ctx context.Context, actor models.Actor, id uuid.UUID, patch models.IncidentPatch) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "UpdateIncident",
		"incident_id": id,
		"user_id":     actor.ID,
	})
	log.Info("Attempting to update incident")

	if err := validatePatch(patch); err != nil {
		log.WithError(err).Warn("Incident update validation failed")
		return nil, err
	}

	existing, err := s.load(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Attempted to update a non-existent incident")
		return nil, err
	}

	if !s.policy.CanModify(actor, existing) {
		log.Warn("User is not allowed to update incident")
		return nil, ErrForbidden
	}

	updated := existing.Clone()
	tr := applyPatch(updated, patch, actor.ID, s.now())

	// патч без изменений не трогает версию и не рассылает событие
	if reflect.DeepEqual(updated, existing) {
		log.Info("Incident update changes nothing, skipping save")
		return existing, nil
	}

	if err := s.save(ctx, updated); err != nil {
		log.WithError(err).Error("Failed to update incident in repository")
		return nil, err
	}

	if tr.Changed {
		s.metrics.ObserveTransition(tr.From, tr.To)
		log.WithFields(logrus.Fields{"from": tr.From, "to": tr.To}).Info("Incident status changed")
	}

	log.Info("Incident updated successfully")
	s.notify(ctx, notification.EventIncidentUpdated, updated, actor.ID)
	return updated, nil
}

// AssignResponders заменяет назначенных спасателей и переводит инцидент в active.
// Каждый спасатель должен существовать, иметь роль responder и статус active.
func (s *incidentService) AssignResponders(ctx context.Context, actor models.Actor, id uuid.UUID, responderIDs []uuid.UUID) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "AssignResponders",
		"incident_id": id,
		"user_id":     actor.ID,
	})
	log.Info("Attempting to assign responders")

	if !s.policy.CanAssign(actor) {
		log.Warn("User is not allowed to assign responders")
		return nil, ErrForbidden
	}

	responderIDs = uniqueIDs(responderIDs)
	if len(responderIDs) == 0 {
		return nil, newValidationError("responders", "at least one responder is required")
	}

	existing, err := s.load(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Attempted to assign responders to a non-existent incident")
		return nil, err
	}

	if err := s.verifyResponders(ctx, responderIDs); err != nil {
		log.WithError(err).Warn("Responder verification failed")
		return nil, err
	}

	updated := existing.Clone()
	tr := applyAssignment(updated, responderIDs, actor.ID, s.now())

	if err := s.save(ctx, updated); err != nil {
		log.WithError(err).Error("Failed to save responder assignment")
		return nil, err
	}

	s.metrics.IncidentAssignments.Inc()
	if tr.Changed {
		s.metrics.ObserveTransition(tr.From, tr.To)
	}

	log.WithField("responders", len(responderIDs)).Info("Responders assigned successfully")
	s.notify(ctx, notification.EventIncidentAssigned, updated, actor.ID)
	return updated, nil
}

// AddMedia добавляет вложение к инциденту
func (s *incidentService) AddMedia(ctx context.Context, actor models.Actor, id uuid.UUID, media models.MediaAttachment) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "AddMedia",
		"incident_id": id,
		"user_id":     actor.ID,
	})
	log.Info("Attempting to add media to incident")

	verr := &ValidationError{}
	if !media.Kind.Valid() {
		verr.add("type", "invalid media type")
	}
	if strings.TrimSpace(media.URL) == "" {
		verr.add("url", "invalid media URL")
	}
	if err := verr.errOrNil(); err != nil {
		return nil, err
	}

	existing, err := s.load(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Attempted to add media to a non-existent incident")
		return nil, err
	}

	if !s.policy.CanModify(actor, existing) {
		log.Warn("User is not allowed to add media to incident")
		return nil, ErrForbidden
	}

	updated := existing.Clone()
	applyMedia(updated, media)

	if err := s.save(ctx, updated); err != nil {
		log.WithError(err).Error("Failed to save incident media")
		return nil, err
	}

	log.Info("Media added successfully")
	s.notify(ctx, notification.EventIncidentMediaAdded, updated, actor.ID)
	return updated, nil
}

// GetStats возвращает агрегаты по инцидентам за последние StatsTimeWindowDays дней
func (s *incidentService) GetStats(ctx context.Context, actor models.Actor) (*models.IncidentStats, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "GetStats",
		"user_id": actor.ID,
	})

	if !s.policy.Allowed(actor.Role, access.ObjIncident, access.ActStats) {
		return nil, ErrForbidden
	}

	window := s.cfg.StatsTimeWindowDays
	if window < 1 {
		window = 30
	}
	since := s.now().AddDate(0, 0, -window)

	stats, err := s.repo.Stats(ctx, since)
	if err != nil {
		log.WithError(err).Error("Failed to get stats from repository")
		return nil, fmt.Errorf("service: could not get stats: %w", err)
	}
	stats.WindowDays = window
	return stats, nil
}

// load читает актуальную запись из бд, минуя кеш: от нее зависит версия при сохранении
func (s *incidentService) load(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	incident, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrIncidentNotFound) {
			return nil, ErrIncidentNotFound
		}
		return nil, fmt.Errorf("service: could not get incident: %w", err)
	}
	return incident, nil
}

// save сохраняет изменения и кладет новую версию в кеш.
// Кеш не принимает версии старше записанной, так что запоздавшее чтение его не откатит.
func (s *incidentService) save(ctx context.Context, incident *models.Incident) error {
	if err := s.repo.Update(ctx, incident); err != nil {
		if errors.Is(err, ErrConflict) {
			return ErrConflict
		}
		return fmt.Errorf("service: could not update incident: %w", err)
	}
	log := s.logger.WithField("incident_id", incident.ID)
	if err := s.repo.SetIncidentCache(ctx, incident); err != nil {
		log.WithError(err).Warn("Failed to refresh incident cache, invalidating")
		if err := s.repo.InvalidateIncidentCache(ctx, incident.ID); err != nil {
			log.WithError(err).Warn("Failed to invalidate incident cache")
		}
	}
	return nil
}

// verifyResponders проверяет, что все спасатели доступны для назначения
func (s *incidentService) verifyResponders(ctx context.Context, ids []uuid.UUID) error {
	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("service: could not load responders: %w", err)
	}

	byID := make(map[uuid.UUID]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	var unavailable []string
	for _, id := range ids {
		u, ok := byID[id]
		if !ok || u.Role != models.RoleResponder || u.Status != models.UserActive {
			unavailable = append(unavailable, id.String())
		}
	}
	if len(unavailable) > 0 {
		return fmt.Errorf("%w: %s", ErrResponderUnavailable, strings.Join(unavailable, ", "))
	}
	return nil
}

// notify публикует событие. Ошибка доставки не влияет на результат запроса.
func (s *incidentService) notify(ctx context.Context, eventType notification.EventType, incident *models.Incident, actorID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.NotifyTimeout)
	defer cancel()

	event := notification.NewIncidentEvent(eventType, incident, actorID, s.now())
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.metrics.NotificationFailures.Inc()
		s.logger.WithError(err).WithFields(logrus.Fields{
			"incident_id": incident.ID,
			"event_type":  eventType,
		}).Warn("Failed to publish incident event")
	}
}

func validateFilter(f models.IncidentFilter) error {
	verr := &ValidationError{}
	if f.Type != "" && !f.Type.Valid() {
		verr.add("type", "invalid incident type")
	}
	if f.Status != "" && !f.Status.Valid() {
		verr.add("status", "invalid status")
	}
	if f.Priority != "" && !f.Priority.Valid() {
		verr.add("priority", "invalid priority")
	}
	if f.Near != nil && !validPoint(f.Near.Center) {
		verr.add("lat/lng", "invalid coordinates")
	}
	return verr.errOrNil()
}
