package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shenikar/emergency_response_system/internal/access"
	"github.com/shenikar/emergency_response_system/internal/config"
	"github.com/shenikar/emergency_response_system/internal/models"
	"github.com/shenikar/emergency_response_system/internal/notification"
	"github.com/shenikar/emergency_response_system/internal/service"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	incidentService  service.IncidentService
	authService      service.AuthService
	responderService service.ResponderService
	policy           *access.Policy
	hub              *notification.Hub
	logger           *logrus.Logger
	validate         *validator.Validate
	cfg              *config.Config
}

func NewHandler(
	incidentService service.IncidentService,
	authService service.AuthService,
	responderService service.ResponderService,
	policy *access.Policy,
	hub *notification.Hub,
	logger *logrus.Logger,
	cfg *config.Config,
) *Handler {
	return &Handler{
		incidentService:  incidentService,
		authService:      authService,
		responderService: responderService,
		policy:           policy,
		hub:              hub,
		logger:           logger,
		validate:         newValidator(),
		cfg:              cfg,
	}
}

// respondError переводит ошибку сервиса в HTTP-ответ. Детали непредвиденных ошибок
// только логируются, клиент получает общее сообщение.
func (h *Handler) respondError(c *gin.Context, log *logrus.Entry, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, service.ErrResponderUnavailable),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrEmailTaken):
		log.WithError(err).Warn("Request rejected")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrForbidden):
		log.WithError(err).Warn("Access denied")
		c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrIncidentNotFound), errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrConflict):
		log.WithError(err).Warn("Concurrent modification")
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	default:
		log.WithError(err).Error("Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

// bindJSON разбирает и валидирует тело запроса; при ошибке ответ уже отправлен
func (h *Handler) bindJSON(c *gin.Context, log *logrus.Entry, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: validationFields(err)})
		return false
	}
	return true
}

func parseIncidentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid incident ID", Fields: map[string]string{"id": "must be a valid UUID"}})
		return uuid.Nil, false
	}
	return id, true
}

// @Summary Create a new incident
// @Description Create a new incident. The caller becomes the reporter, status starts as pending.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param incident body CreateIncidentRequest true "Incident creation request"
// @Success 201 {object} IncidentResponse
// @Failure 400 {object} ErrorResponse "Invalid request body or validation error"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /incidents [post]
func (h *Handler) createIncident(c *gin.Context) {
	var input CreateIncidentRequest
	actor := actorFrom(c)
	log := h.logger.WithField("method", "createIncident").WithField("user_id", actor.ID)

	if !h.bindJSON(c, log, &input) {
		return
	}

	model := CreateRequestToIncident(input)
	if err := h.incidentService.CreateIncident(c.Request.Context(), actor, model); err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusCreated, ModelToIncidentResponse(model))
}

// @Summary Get a list of incidents
// @Description Paginated list of incidents visible to the caller, newest first.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param type query string false "Incident type"
// @Param status query string false "Incident status"
// @Param priority query string false "Incident priority"
// @Param lat query number false "Latitude of the search center"
// @Param lng query number false "Longitude of the search center"
// @Param radius query int false "Search radius in meters" default(10000)
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Number of items per page" default(10)
// @Success 200 {object} IncidentListResponse
// @Failure 400 {object} ErrorResponse "Invalid filter"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /incidents [get]
func (h *Handler) listIncidents(c *gin.Context) {
	actor := actorFrom(c)
	log := h.logger.WithField("method", "listIncidents").WithField("user_id", actor.ID)

	filter, fields := parseIncidentFilter(c)
	if len(fields) > 0 {
		log.WithField("fields", fields).Warn("Invalid list query")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: fields})
		return
	}

	page, err := h.incidentService.ListIncidents(c.Request.Context(), actor, filter)
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, PageToListResponse(page))
}

// parseIncidentFilter читает параметры списка. Геофильтр применяется, только если переданы lat и lng.
func parseIncidentFilter(c *gin.Context) (models.IncidentFilter, map[string]string) {
	fields := make(map[string]string)
	filter := models.IncidentFilter{
		Type:     models.IncidentType(c.Query("type")),
		Status:   models.IncidentStatus(c.Query("status")),
		Priority: models.Priority(c.Query("priority")),
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "10"))

	rawLat, hasLat := c.GetQuery("lat")
	rawLng, hasLng := c.GetQuery("lng")
	if !hasLat && !hasLng {
		return filter, fields
	}
	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil {
		fields["lat"] = "must be a number"
	}
	lng, err := strconv.ParseFloat(rawLng, 64)
	if err != nil {
		fields["lng"] = "must be a number"
	}
	radius := 0
	if raw := c.Query("radius"); raw != "" {
		if radius, err = strconv.Atoi(raw); err != nil || radius < 0 {
			fields["radius"] = "must be a non-negative integer"
		}
	}
	filter.Near = &models.GeoFilter{
		Center:       models.Point{Longitude: lng, Latitude: lat},
		RadiusMeters: radius,
	}
	return filter, fields
}

// @Summary Search incidents
// @Description Full-text search over title, description and address, ranked by relevance.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param q query string true "Search text"
// @Param limit query int false "Maximum number of results" default(20)
// @Success 200 {array} IncidentResponse
// @Failure 400 {object} ErrorResponse "Empty query"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /incidents/search [get]
func (h *Handler) searchIncidents(c *gin.Context) {
	actor := actorFrom(c)
	log := h.logger.WithField("method", "searchIncidents").WithField("user_id", actor.ID)
	limit, _ := strconv.Atoi(c.Query("limit"))

	incidents, err := h.incidentService.SearchIncidents(c.Request.Context(), actor, c.Query("q"), limit)
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelsToIncidentResponses(incidents))
}

// @Summary Get incident by ID
// @Description Get a single incident with its derived timeline.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} IncidentDetailResponse
// @Failure 400 {object} ErrorResponse "Invalid incident ID"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Incident not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /incidents/{id} [get]
func (h *Handler) getIncident(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}
	actor := actorFrom(c)
	log := h.logger.WithField("method", "getIncident").WithField("id", id)

	incident, timeline, err := h.incidentService.GetIncident(c.Request.Context(), actor, id)
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentDetailResponse(incident, timeline))
}

// @Summary Update an existing incident
// @Description Partial update. Allowed for the reporter, an assigned responder or a moderator.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Param incident body UpdateIncidentRequest true "Incident update request"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} ErrorResponse "Invalid incident ID or request body"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 404 {object} ErrorResponse "Incident not found"
// @Failure 409 {object} ErrorResponse "Concurrent modification"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /incidents/{id} [patch]
func (h *Handler) updateIncident(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}
	actor := actorFrom(c)
	log := h.logger.WithField("method", "updateIncident").WithField("id", id)

	var input UpdateIncidentRequest
	if !h.bindJSON(c, log, &input) {
		return
	}

	incident, err := h.incidentService.UpdateIncident(c.Request.Context(), actor, id, UpdateRequestToPatch(input))
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Assign responders
// @Description Replace the assigned responders and move the incident to active. Moderators only.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Param assignment body AssignRespondersRequest true "Responder IDs"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} ErrorResponse "Validation error or unavailable responders"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 404 {object} ErrorResponse "Incident not found"
// @Failure 409 {object} ErrorResponse "Concurrent modification"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /incidents/{id}/assign [post]
func (h *Handler) assignResponders(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}
	actor := actorFrom(c)
	log := h.logger.WithField("method", "assignResponders").WithField("id", id)

	var input AssignRespondersRequest
	if !h.bindJSON(c, log, &input) {
		return
	}
	responderIDs, err := AssignRequestToIDs(input)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: map[string]string{"responders": "must be a valid UUID"}})
		return
	}

	incident, err := h.incidentService.AssignResponders(c.Request.Context(), actor, id, responderIDs)
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Add media to an incident
// @Description Append a photo or video link to the incident.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Param media body AddMediaRequest true "Media attachment"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} ErrorResponse "Validation error"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 404 {object} ErrorResponse "Incident not found"
// @Failure 409 {object} ErrorResponse "Concurrent modification"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /incidents/{id}/media [post]
func (h *Handler) addMedia(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}
	actor := actorFrom(c)
	log := h.logger.WithField("method", "addMedia").WithField("id", id)

	var input AddMediaRequest
	if !h.bindJSON(c, log, &input) {
		return
	}

	incident, err := h.incidentService.AddMedia(c.Request.Context(), actor, id, MediaRequestToAttachment(input))
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Get incident statistics
// @Description Counts by type and status, daily trend and average resolution time. Moderators only.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} StatsResponse
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /incidents/stats [get]
func (h *Handler) getStats(c *gin.Context) {
	actor := actorFrom(c)
	log := h.logger.WithField("method", "getStats").WithField("user_id", actor.ID)

	stats, err := h.incidentService.GetStats(c.Request.Context(), actor)
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, StatsToResponse(stats))
}

// @Summary Get application health status
// @Description Get health status of the application
// @Tags System
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string "Status OK"
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
