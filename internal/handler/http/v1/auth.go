package v1

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shenikar/emergency_response_system/internal/models"
	"github.com/shenikar/emergency_response_system/internal/service"
	"github.com/sirupsen/logrus"
)

const (
	ctxUserKey  = "user"
	ctxActorKey = "actor"
)

// AuthMiddleware - middleware для аутентификации по JWT.
// Токен берется из заголовка Authorization: Bearer, для websocket допускается ?token=.
// Пользователь перечитывается из бд на каждый запрос, поэтому смена роли действует сразу.
func AuthMiddleware(authService service.AuthService, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
		if token == "" {
			token = c.Query("token")
		}

		if token == "" {
			log.WithField("path", c.FullPath()).Warn("Token missing from request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "authorization token required"})
			return
		}

		user, err := authService.Authenticate(c.Request.Context(), token)
		if err != nil {
			log.WithError(err).WithField("path", c.FullPath()).Warn("Authentication failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: service.ErrUnauthorized.Error()})
			return
		}

		c.Set(ctxUserKey, user)
		c.Set(ctxActorKey, models.ActorFromUser(user))
		c.Next()
	}
}

// actorFrom возвращает инициатора запроса, установленного AuthMiddleware
func actorFrom(c *gin.Context) models.Actor {
	if v, ok := c.Get(ctxActorKey); ok {
		if actor, ok := v.(models.Actor); ok {
			return actor
		}
	}
	return models.Actor{}
}

// @Summary Register a new user
// @Description Create an account and return an access token. Role defaults to user.
// @Tags Auth
// @Accept json
// @Produce json
// @Param user body RegisterRequest true "Registration request"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} ErrorResponse "Validation error or email already taken"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /auth/register [post]
func (h *Handler) register(c *gin.Context) {
	var input RegisterRequest
	log := h.logger.WithField("method", "register")

	if !h.bindJSON(c, log, &input) {
		return
	}

	user, token, err := h.authService.Register(c.Request.Context(), models.Registration{
		Name:     input.Name,
		Email:    input.Email,
		Password: input.Password,
		Role:     models.Role(input.Role),
	})
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusCreated, AuthResponse{Token: token, User: ModelToUserResponse(user)})
}

// @Summary Log in
// @Description Exchange email and password for an access token.
// @Tags Auth
// @Accept json
// @Produce json
// @Param credentials body LoginRequest true "Login request"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} ErrorResponse "Invalid credentials"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /auth/login [post]
func (h *Handler) login(c *gin.Context) {
	var input LoginRequest
	log := h.logger.WithField("method", "login")

	if !h.bindJSON(c, log, &input) {
		return
	}

	user, token, err := h.authService.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, AuthResponse{Token: token, User: ModelToUserResponse(user)})
}

// @Summary Current user
// @Description Get the authenticated user.
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} UserResponse
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Router /auth/me [get]
func (h *Handler) me(c *gin.Context) {
	v, ok := c.Get(ctxUserKey)
	user, _ := v.(*models.User)
	if !ok || user == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: service.ErrUnauthorized.Error()})
		return
	}
	c.JSON(http.StatusOK, ModelToUserResponse(user))
}
