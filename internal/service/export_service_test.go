package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rutaescolar/planner-api/internal/models"
	appErrors "github.com/rutaescolar/planner-api/pkg/errors"
)

type exportSourceStub struct {
	report *models.GlobalValidationReport
	stale  bool
	data   models.ScheduleData
}

func (s *exportSourceStub) Report() (*models.GlobalValidationReport, bool) {
	return s.report, s.stale
}

func (s *exportSourceStub) ActiveDay() string { return "monday" }

func (s *exportSourceStub) Snapshot() models.ScheduleData { return s.data }

func exportTestSource() *exportSourceStub {
	return &exportSourceStub{
		report: &models.GlobalValidationReport{
			Summary: models.ReportSummary{IncidentsTotal: 1, IncidentsError: 1},
			Incidents: []models.ReportIncident{{
				Day:           "monday",
				BusID:         "B001",
				RouteA:        "r1",
				RouteB:        "r2",
				IssueType:     models.IncidentInsufficientTime,
				Severity:      models.SeverityError,
				Message:       "no llega a tiempo",
				TimeAvailable: 10,
				TravelTime:    25,
			}},
		},
		data: models.ScheduleData{
			Day:  "monday",
			Mode: "draft",
			Buses: []models.ScheduleBusData{
				{BusID: "B001", Items: []models.ScheduleItemData{
					{RouteID: "r1", RouteCode: "A", StartTime: "08:00", EndTime: "09:00", Origin: "Cochera", Destination: "CEIP Norte"},
				}},
			},
			Stats: models.ScheduleStats{TotalBuses: 1, TotalRoutes: 1},
		},
	}
}

func TestIncidentReportCSV(t *testing.T) {
	svc := NewExportService(exportTestSource(), "")

	artifact, err := svc.IncidentReport(FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", artifact.ContentType)
	assert.Contains(t, artifact.Filename, "incidencias_monday")

	body := string(artifact.Bytes)
	assert.True(t, strings.HasPrefix(body, "\ufeff"), "csv starts with a BOM for Excel")
	assert.Contains(t, body, "B001")
	assert.Contains(t, body, "no llega a tiempo")
	assert.Contains(t, body, models.IncidentInsufficientTime)
}

func TestIncidentReportJSONIncludesStaleness(t *testing.T) {
	source := exportTestSource()
	source.stale = true
	svc := NewExportService(source, "")

	artifact, err := svc.IncidentReport(FormatJSON)
	require.NoError(t, err)
	assert.Contains(t, string(artifact.Bytes), `"stale": true`)
}

func TestIncidentReportPDF(t *testing.T) {
	svc := NewExportService(exportTestSource(), "Planificador")

	artifact, err := svc.IncidentReport(FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", artifact.ContentType)
	assert.True(t, strings.HasPrefix(string(artifact.Bytes), "%PDF"))
}

func TestIncidentReportWithoutCachedReport(t *testing.T) {
	svc := NewExportService(&exportSourceStub{}, "")

	_, err := svc.IncidentReport(FormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestIncidentReportUnknownFormat(t *testing.T) {
	svc := NewExportService(exportTestSource(), "")

	_, err := svc.IncidentReport("xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestScheduleExportCSV(t *testing.T) {
	svc := NewExportService(exportTestSource(), "")

	artifact, err := svc.ScheduleExport(FormatCSV)
	require.NoError(t, err)

	body := string(artifact.Bytes)
	assert.Contains(t, body, "B001")
	assert.Contains(t, body, "CEIP Norte")
	assert.Contains(t, body, "08:00")
}
