// Package api wires the console HTTP routes.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orgdesk/modelgate/internal/gateway"
	"github.com/orgdesk/modelgate/internal/http/api/handlers"
	"github.com/orgdesk/modelgate/internal/pricing"
	"github.com/orgdesk/modelgate/internal/report"
	"github.com/orgdesk/modelgate/internal/store"
)

// RegisterRoutes registers the gateway and reporting routes.
func RegisterRoutes(r *gin.Engine, gw *gateway.Gateway, usageStore *store.Store, prices *pricing.Table, exporter *report.Exporter) {
	if r == nil {
		return
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	chatHandler := handlers.NewChatHandler(gw)
	assistantHandler := handlers.NewAssistantHandler(gw)
	reportsHandler := handlers.NewReportsHandler(usageStore, prices, exporter)

	apiGroup := r.Group("/api")
	apiGroup.GET("/ai/providers", chatHandler.Providers)
	apiGroup.POST("/ai/chat", chatHandler.Chat)
	apiGroup.POST("/assistant", assistantHandler.Intent)

	reports := apiGroup.Group("/reports")
	reports.GET("/usage", reportsHandler.Summary)
	reports.GET("/usage/records", reportsHandler.Records)
	reports.GET("/usage/export/doc", reportsHandler.ExportDocument)
	reports.GET("/usage/export/sheet", reportsHandler.ExportSpreadsheet)
}
