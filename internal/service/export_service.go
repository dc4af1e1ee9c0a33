package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rutaescolar/planner-api/internal/models"
	appErrors "github.com/rutaescolar/planner-api/pkg/errors"
	"github.com/rutaescolar/planner-api/pkg/export"
)

// Export formats accepted by the download endpoints.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatPDF  = "pdf"
)

type exportSource interface {
	Report() (*models.GlobalValidationReport, bool)
	ActiveDay() string
	Snapshot() models.ScheduleData
}

// ExportArtifact is a rendered download.
type ExportArtifact struct {
	Bytes       []byte
	ContentType string
	Filename    string
}

// ExportService renders the cached validation report and the live schedule
// into downloadable artifacts.
type ExportService struct {
	source exportSource
	csv    *export.CSVExporter
	json   *export.JSONExporter
	pdf    *export.PDFExporter
	title  string
}

func NewExportService(source exportSource, title string) *ExportService {
	if title == "" {
		title = "Planificador de Rutas Escolares"
	}
	return &ExportService{
		source: source,
		csv:    export.NewCSVExporter(),
		json:   export.NewJSONExporter(),
		pdf:    export.NewPDFExporter(),
		title:  title,
	}
}

// IncidentReport renders the cached whole-schedule validation report. A stale
// cache still exports, flagged in the subtitle, so planners can download what
// they last saw.
func (s *ExportService) IncidentReport(format string) (ExportArtifact, error) {
	report, stale := s.source.Report()
	if report == nil {
		return ExportArtifact{}, appErrors.Clone(appErrors.ErrNotFound, "no hay informe de validación")
	}

	day := s.source.ActiveDay()
	stamp := time.Now().Format("2006-01-02")

	switch format {
	case FormatJSON:
		payload := struct {
			Day       string                  `json:"day"`
			Stale     bool                    `json:"stale"`
			Summary   models.ReportSummary    `json:"summary"`
			Incidents []models.ReportIncident `json:"incidents"`
		}{Day: day, Stale: stale, Summary: report.Summary, Incidents: report.Incidents}
		raw, err := s.json.Render(payload)
		if err != nil {
			return ExportArtifact{}, err
		}
		return ExportArtifact{Bytes: raw, ContentType: "application/json", Filename: fmt.Sprintf("incidencias_%s_%s.json", day, stamp)}, nil

	case FormatCSV:
		raw, err := s.csv.Render(incidentDataset(report))
		if err != nil {
			return ExportArtifact{}, err
		}
		return ExportArtifact{Bytes: raw, ContentType: "text/csv", Filename: fmt.Sprintf("incidencias_%s_%s.csv", day, stamp)}, nil

	case FormatPDF:
		subtitle := fmt.Sprintf("Día: %s · Incidencias: %d (%d errores)", day, report.Summary.IncidentsTotal, report.Summary.IncidentsError)
		if stale {
			subtitle += " · informe desactualizado"
		}
		raw, err := s.pdf.Render(incidentDataset(report), s.title, subtitle)
		if err != nil {
			return ExportArtifact{}, err
		}
		return ExportArtifact{Bytes: raw, ContentType: "application/pdf", Filename: fmt.Sprintf("incidencias_%s_%s.pdf", day, stamp)}, nil
	}
	return ExportArtifact{}, appErrors.Clone(appErrors.ErrValidation, "formato no soportado: "+format)
}

// ScheduleExport renders the live schedule snapshot.
func (s *ExportService) ScheduleExport(format string) (ExportArtifact, error) {
	data := s.source.Snapshot()
	stamp := time.Now().Format("2006-01-02")

	switch format {
	case FormatJSON:
		raw, err := s.json.Render(data)
		if err != nil {
			return ExportArtifact{}, err
		}
		return ExportArtifact{Bytes: raw, ContentType: "application/json", Filename: fmt.Sprintf("horario_%s_%s.json", data.Day, stamp)}, nil

	case FormatCSV:
		raw, err := s.csv.Render(scheduleDataset(data))
		if err != nil {
			return ExportArtifact{}, err
		}
		return ExportArtifact{Bytes: raw, ContentType: "text/csv", Filename: fmt.Sprintf("horario_%s_%s.csv", data.Day, stamp)}, nil

	case FormatPDF:
		subtitle := fmt.Sprintf("Día: %s · Buses: %d · Rutas: %d", data.Day, data.Stats.TotalBuses, data.Stats.TotalRoutes)
		raw, err := s.pdf.Render(scheduleDataset(data), s.title, subtitle)
		if err != nil {
			return ExportArtifact{}, err
		}
		return ExportArtifact{Bytes: raw, ContentType: "application/pdf", Filename: fmt.Sprintf("horario_%s_%s.pdf", data.Day, stamp)}, nil
	}
	return ExportArtifact{}, appErrors.Clone(appErrors.ErrValidation, "formato no soportado: "+format)
}

func incidentDataset(report *models.GlobalValidationReport) export.Dataset {
	headers := []string{"Bus", "Ruta A", "Ruta B", "Tipo", "Severidad", "Mensaje", "Tiempo disponible", "Tiempo de viaje"}
	rows := make([]map[string]string, 0, len(report.Incidents))
	for _, inc := range report.Incidents {
		rows = append(rows, map[string]string{
			"Bus":               inc.BusID,
			"Ruta A":            inc.RouteA,
			"Ruta B":            inc.RouteB,
			"Tipo":              inc.IssueType,
			"Severidad":         inc.Severity,
			"Mensaje":           inc.Message,
			"Tiempo disponible": strconv.Itoa(inc.TimeAvailable),
			"Tiempo de viaje":   strconv.Itoa(inc.TravelTime),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func scheduleDataset(data models.ScheduleData) export.Dataset {
	headers := []string{"Bus", "Orden", "Ruta", "Inicio", "Fin", "Origen", "Destino", "Tipo", "Posicionamiento"}
	var rows []map[string]string
	for _, bus := range data.Buses {
		for _, item := range bus.Items {
			rows = append(rows, map[string]string{
				"Bus":             bus.BusID,
				"Orden":           strconv.Itoa(item.Order + 1),
				"Ruta":            firstOf(item.RouteCode, item.RouteID),
				"Inicio":          item.StartTime,
				"Fin":             item.EndTime,
				"Origen":          item.Origin,
				"Destino":         item.Destination,
				"Tipo":            item.Type,
				"Posicionamiento": strconv.Itoa(item.DeadheadMinutes),
			})
		}
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func firstOf(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
