package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rutaescolar/planner-api/internal/service"
	"github.com/rutaescolar/planner-api/pkg/response"
)

type exportService interface {
	IncidentReport(format string) (service.ExportArtifact, error)
	ScheduleExport(format string) (service.ExportArtifact, error)
}

// ExportHandler serves report and schedule downloads.
type ExportHandler struct {
	service exportService
}

// NewExportHandler builds a new handler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// Incidents godoc
// @Summary Download the validation report
// @Tags Export
// @Produce json
// @Param format query string false "csv, json or pdf" default(json)
// @Success 200 {file} binary
// @Router /exports/incidents [get]
func (h *ExportHandler) Incidents(c *gin.Context) {
	artifact, err := h.service.IncidentReport(c.DefaultQuery("format", service.FormatJSON))
	if err != nil {
		response.Error(c, err)
		return
	}
	serveArtifact(c, artifact)
}

// Schedule godoc
// @Summary Download the live schedule
// @Tags Export
// @Produce json
// @Param format query string false "csv, json or pdf" default(json)
// @Success 200 {file} binary
// @Router /exports/schedule [get]
func (h *ExportHandler) Schedule(c *gin.Context) {
	artifact, err := h.service.ScheduleExport(c.DefaultQuery("format", service.FormatJSON))
	if err != nil {
		response.Error(c, err)
		return
	}
	serveArtifact(c, artifact)
}

func serveArtifact(c *gin.Context, artifact service.ExportArtifact) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", artifact.Filename))
	c.Data(http.StatusOK, artifact.ContentType, artifact.Bytes)
}
