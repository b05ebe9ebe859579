package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shenikar/emergency_response_system/internal/models"
)

// @Summary List available responders
// @Description Active users with the responder role. Moderators only.
// @Tags Responders
// @Produce json
// @Security BearerAuth
// @Success 200 {array} UserResponse
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /responders/available [get]
func (h *Handler) listAvailableResponders(c *gin.Context) {
	actor := actorFrom(c)
	log := h.logger.WithField("method", "listAvailableResponders").WithField("user_id", actor.ID)

	responders, err := h.responderService.ListAvailable(c.Request.Context(), actor)
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelsToUserResponses(responders))
}

// @Summary Update responder location
// @Description Store the caller's current position. Responders only.
// @Tags Responders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param location body ResponderLocationRequest true "Coordinates [longitude, latitude]"
// @Success 200 {object} UserResponse
// @Failure 400 {object} ErrorResponse "Validation error"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /responders/location [post]
func (h *Handler) updateResponderLocation(c *gin.Context) {
	actor := actorFrom(c)
	log := h.logger.WithField("method", "updateResponderLocation").WithField("user_id", actor.ID)

	var input ResponderLocationRequest
	if !h.bindJSON(c, log, &input) {
		return
	}

	user, err := h.responderService.UpdateLocation(c.Request.Context(), actor, pointFromCoordinates(input.Coordinates))
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToUserResponse(user))
}

// @Summary Update responder availability
// @Description Switch the caller between active and inactive. Responders only.
// @Tags Responders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param status body ResponderStatusRequest true "Availability status"
// @Success 200 {object} UserResponse
// @Failure 400 {object} ErrorResponse "Validation error"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /responders/status [patch]
func (h *Handler) updateResponderStatus(c *gin.Context) {
	actor := actorFrom(c)
	log := h.logger.WithField("method", "updateResponderStatus").WithField("user_id", actor.ID)

	var input ResponderStatusRequest
	if !h.bindJSON(c, log, &input) {
		return
	}

	user, err := h.responderService.UpdateStatus(c.Request.Context(), actor, models.UserStatus(input.Status))
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToUserResponse(user))
}
