package v1

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shenikar/emergency_response_system/internal/access"
	"github.com/shenikar/emergency_response_system/internal/notification"
)

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(h.cfg.WSAllowedOrigins) == 0 {
				return true
			}
			return slices.Contains(h.cfg.WSAllowedOrigins, origin)
		},
	}
}

// @Summary Subscribe to incident events
// @Description Websocket stream of incident events. Pass ?incident=<id> (repeatable) to watch
// @Description specific incidents; only moderators may subscribe to all incidents.
// @Tags Events
// @Security BearerAuth
// @Param incident query []string false "Incident IDs to watch" collectionFormat(multi)
// @Param token query string false "Access token, for clients that cannot set headers"
// @Success 101 "Switching Protocols"
// @Failure 400 {object} ErrorResponse "Missing or invalid incident filter"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Incident not found"
// @Router /ws [get]
func (h *Handler) streamEvents(c *gin.Context) {
	actor := actorFrom(c)
	log := h.logger.WithField("method", "streamEvents").WithField("user_id", actor.ID)

	rawIDs := c.QueryArray("incident")
	ids := make([]uuid.UUID, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid incident ID", Fields: map[string]string{"incident": "must be a valid UUID"}})
			return
		}
		ids = append(ids, id)
	}

	if len(ids) == 0 && !h.policy.Allowed(actor.Role, access.ObjIncident, access.ActViewAll) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "incident filter is required", Fields: map[string]string{"incident": "is required"}})
		return
	}
	// подписка разрешена только на инциденты, которые пользователь может читать
	for _, id := range ids {
		if _, _, err := h.incidentService.GetIncident(c.Request.Context(), actor, id); err != nil {
			h.respondError(c, log.WithField("id", id), err)
			return
		}
	}

	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade уже записал ответ клиенту
		log.WithError(err).Warn("Failed to upgrade connection")
		return
	}

	notification.NewClient(h.hub, conn, actor, ids).Run()
	log.WithField("incidents", len(ids)).Info("Websocket client subscribed")
}
