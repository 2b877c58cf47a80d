package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/ohsms/internal/application/service"
	"github.com/garyjia/ohsms/internal/application/workflow"
	"github.com/garyjia/ohsms/internal/domain/entity"
	domainwf "github.com/garyjia/ohsms/internal/domain/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	logger   Logger
	now      func() time.Time
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{
		services: services,
		logger:   logger,
		now:      time.Now,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// ActionRequest is the body of a workflow action
type ActionRequest struct {
	Note string `json:"note"`
}

// NoteRequest is the body of a stage note update
type NoteRequest struct {
	Text string `json:"text"`
}

// NoteResponse carries a single stage note
type NoteResponse struct {
	ReportID string `json:"report_id"`
	Stage    int    `json:"stage"`
	Note     string `json:"note"`
}

// AuditLogRequest represents query parameters for the audit log
type AuditLogRequest struct {
	Limit int `form:"limit"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: h.now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// ListStages handles GET /api/workflow/stages
func (h *Handlers) ListStages(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Success: true, Data: domainwf.Stages()})
}

// SubmitNormal handles POST /api/reports/normal
func (h *Handlers) SubmitNormal(c *gin.Context) {
	var req service.NormalSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	report, err := h.services.Reports.SubmitNormal(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: report})
}

// SubmitConfidential handles POST /api/reports/confidential. The follow-up
// key appears in this response only.
func (h *Handlers) SubmitConfidential(c *gin.Context) {
	var req service.ConfidentialSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	receipt, err := h.services.Reports.SubmitConfidential(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: receipt})
}

// SubmitUrgent handles POST /api/reports/urgent
func (h *Handlers) SubmitUrgent(c *gin.Context) {
	var req service.UrgentSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	report, err := h.services.Reports.SubmitUrgent(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: report})
}

// ListReports handles GET /api/reports
func (h *Handlers) ListReports(c *gin.Context) {
	reports, err := h.services.Reports.ListReports(c.Request.Context())
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: reports})
}

// Summary handles GET /api/reports/summary
func (h *Handlers) Summary(c *gin.Context) {
	summary, err := h.services.Reports.Summary(c.Request.Context())
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: summary})
}

// ExportReports handles GET /api/reports/export
func (h *Handlers) ExportReports(c *gin.Context) {
	ctx := c.Request.Context()
	reports, err := h.services.Reports.ListReports(ctx)
	if err != nil {
		h.writeError(c, err, nil)
		return
	}

	exporter := h.services.Exporter
	var buf bytes.Buffer
	if err := exporter.Export(ctx, reports, &buf); err != nil {
		h.writeError(c, fmt.Errorf("failed to export reports: %w", err), nil)
		return
	}

	filename := fmt.Sprintf("incident-register-%s%s", h.now().Format("20060102"), exporter.FileExtension())
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, exporter.ContentType(), buf.Bytes())
}

// GetReport handles GET /api/reports/:id
func (h *Handlers) GetReport(c *gin.Context) {
	report, err := h.services.Reports.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: report})
}

// ListAuditLog handles GET /api/reports/:id/audit-log
func (h *Handlers) ListAuditLog(c *gin.Context) {
	var req AuditLogRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}

	entries, err := h.services.Reports.ListAuditLog(c.Request.Context(), c.Param("id"), req.Limit)
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// ApplyAction returns the handler for POST /api/reports/:id/<action>.
// An empty body is accepted as an empty note.
func (h *Handlers) ApplyAction(action domainwf.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ActionRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, "invalid request body")
				return
			}
		}

		report, err := h.services.Engine.Apply(c.Request.Context(), c.Param("id"), action, req.Note)
		if err != nil {
			h.writeError(c, err, reportData(report))
			return
		}
		c.JSON(http.StatusOK, Response{Success: true, Data: report})
	}
}

// UpdateAssignment handles PUT /api/reports/:id/assignment
func (h *Handlers) UpdateAssignment(c *gin.Context) {
	var req workflow.Assignment
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	report, err := h.services.Engine.UpdateAssignment(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: report})
}

// NoteIndicators handles GET /api/reports/:id/notes
func (h *Handlers) NoteIndicators(c *gin.Context) {
	indicators, err := h.services.Notes.NoteIndicators(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: indicators})
}

// GetNote handles GET /api/reports/:id/stages/:stage/note
func (h *Handlers) GetNote(c *gin.Context) {
	stage, ok := h.stageParam(c)
	if !ok {
		return
	}

	reportID := c.Param("id")
	note, err := h.services.Notes.GetNote(c.Request.Context(), reportID, stage)
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    NoteResponse{ReportID: reportID, Stage: stage, Note: note},
	})
}

// SetNote handles PUT /api/reports/:id/stages/:stage/note
func (h *Handlers) SetNote(c *gin.Context) {
	stage, ok := h.stageParam(c)
	if !ok {
		return
	}

	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	receipt, err := h.services.Notes.SetNote(c.Request.Context(), c.Param("id"), stage, req.Text)
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: receipt})
}

// HasNote handles GET /api/reports/:id/stages/:stage/has-note
func (h *Handlers) HasNote(c *gin.Context) {
	stage, ok := h.stageParam(c)
	if !ok {
		return
	}

	has, err := h.services.Notes.HasNote(c.Request.Context(), c.Param("id"), stage)
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"stage": stage, "has_note": has}})
}

// Activity handles GET /api/activity
func (h *Handlers) Activity(c *gin.Context) {
	entries, err := h.services.Activity.BuildAudit(c.Request.Context())
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// TrackConfidential handles GET /api/track/:key
func (h *Handlers) TrackConfidential(c *gin.Context) {
	view, err := h.services.Reports.TrackConfidential(c.Request.Context(), c.Param("key"))
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: view})
}

// stageParam parses :stage. Non-numeric values are reported as an invalid stage.
func (h *Handlers) stageParam(c *gin.Context) (int, bool) {
	stage, err := strconv.Atoi(c.Param("stage"))
	if err != nil {
		h.writeError(c, fmt.Errorf("%w: %q", workflow.ErrInvalidStage, c.Param("stage")), nil)
		return 0, false
	}
	return stage, true
}

// reportData avoids encoding a typed nil report as "data": null
func reportData(report *entity.Report) interface{} {
	if report == nil {
		return nil
	}
	return report
}
