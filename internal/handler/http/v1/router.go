package v1

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	// Публичные маршруты
	auth := api.Group("/auth")
	{
		auth.POST("/register", h.register)
		auth.POST("/login", h.login)
	}
	api.GET("/system/health", h.healthCheck)

	authorized := api.Group("", AuthMiddleware(h.authService, h.logger))
	authorized.GET("/auth/me", h.me)

	incidents := authorized.Group("/incidents")
	{
		incidents.POST("", h.createIncident)
		incidents.GET("", h.listIncidents)
		incidents.GET("/search", h.searchIncidents)
		incidents.GET("/stats", h.getStats)
		incidents.GET("/:id", h.getIncident)
		incidents.PATCH("/:id", h.updateIncident)
		incidents.POST("/:id/assign", h.assignResponders)
		incidents.POST("/:id/media", h.addMedia)
	}

	responders := authorized.Group("/responders")
	{
		responders.GET("/available", h.listAvailableResponders)
		responders.POST("/location", h.updateResponderLocation)
		responders.PATCH("/status", h.updateResponderStatus)
	}

	// Поток событий по websocket
	authorized.GET("/ws", h.streamEvents)
}
