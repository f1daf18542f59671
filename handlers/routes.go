package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes wires the HTTP surface onto the router.
func (h *DiagnosisHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v3")
	{
		api.POST("/session", h.CreateSession)
		api.GET("/session/:id", h.GetSession)
		api.DELETE("/session/:id", h.EndSession)
		api.PUT("/session/:id/intake", h.UpdateIntake)
		api.PUT("/session/:id/form-collapsed", h.SetFormCollapsed)
		api.POST("/session/:id/diagnose", h.Diagnose)
		api.POST("/session/:id/chat", h.Chat)
		api.GET("/session/:id/records", h.GetSessionRecords)
		api.GET("/records/:seq", h.GetRecord)
		api.GET("/stats", h.GetStats)
	}
}
