package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orgdesk/modelgate/internal/pricing"
	"github.com/orgdesk/modelgate/internal/report"
	"github.com/orgdesk/modelgate/internal/store"
)

// ReportsHandler serves usage reports and file exports.
type ReportsHandler struct {
	store    *store.Store
	prices   *pricing.Table
	exporter *report.Exporter
}

// NewReportsHandler constructs a ReportsHandler.
func NewReportsHandler(usageStore *store.Store, prices *pricing.Table, exporter *report.Exporter) *ReportsHandler {
	return &ReportsHandler{store: usageStore, prices: prices, exporter: exporter}
}

// Summary handles GET /api/reports/usage.
func (h *ReportsHandler) Summary(c *gin.Context) {
	records, errAll := h.store.All(c.Request.Context())
	if errAll != nil {
		respondError(c, http.StatusInternalServerError, CodeReportError, "load usage records failed")
		return
	}
	respondOK(c, report.Aggregate(records, h.prices), "usage report ready")
}

// Records handles GET /api/reports/usage/records.
func (h *ReportsHandler) Records(c *gin.Context) {
	records, errAll := h.store.All(c.Request.Context())
	if errAll != nil {
		respondError(c, http.StatusInternalServerError, CodeReportError, "load usage records failed")
		return
	}
	respondOK(c, records, "usage records ready")
}

// ExportDocument handles GET /api/reports/usage/export/doc.
func (h *ReportsHandler) ExportDocument(c *gin.Context) {
	records, errAll := h.store.All(c.Request.Context())
	if errAll != nil {
		respondError(c, http.StatusInternalServerError, CodeReportError, "load usage records failed")
		return
	}

	summary := report.Aggregate(records, h.prices)
	filename, payload := h.exporter.Document(summary, time.Now())

	c.Header("Content-Disposition", `attachment; filename="`+url.PathEscape(filename)+`"`)
	c.Data(http.StatusOK, "application/msword; charset=utf-8", payload)
}

// ExportSpreadsheet handles GET /api/reports/usage/export/sheet.
func (h *ReportsHandler) ExportSpreadsheet(c *gin.Context) {
	records, errAll := h.store.All(c.Request.Context())
	if errAll != nil {
		respondError(c, http.StatusInternalServerError, CodeReportError, "load usage records failed")
		return
	}

	summary := report.Aggregate(records, h.prices)
	filename, payload, errRender := h.exporter.Spreadsheet(summary, records, time.Now())
	if errRender != nil {
		respondError(c, http.StatusInternalServerError, CodeReportError, "render spreadsheet failed")
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+url.PathEscape(filename)+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", payload)
}
