package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/rutaescolar/planner-api/internal/dto"
	"github.com/rutaescolar/planner-api/internal/feasibility"
	"github.com/rutaescolar/planner-api/internal/models"
	"github.com/rutaescolar/planner-api/internal/service"
	appErrors "github.com/rutaescolar/planner-api/pkg/errors"
	"github.com/rutaescolar/planner-api/pkg/response"
)

type workspaceService interface {
	LoadSchedule(day, mode string, buses []models.RawBus, available []models.RawRoute)
	SwitchDay(ctx context.Context, day string) error
	DropRoute(ctx context.Context, route models.Route, targetBusID string) (service.OperationResult, error)
	MoveToTransfer(routeID string) (service.OperationResult, error)
	MoveFromTransfer(ctx context.Context, routeID, targetBusID string) (service.OperationResult, error)
	CreateBusWithRoute(routeID string) (service.OperationResult, error)
	AddBus() string
	RemoveRoute(busID, routeID string) (service.OperationResult, error)
	RemoveBus(busID string) (service.OperationResult, error)
	Buses() []models.Bus
	AvailableRoutes() []models.Route
	TransferRoutes() []models.Route
	Validation() map[string]models.ValidationResult
	ValidateSchedule(ctx context.Context, persist bool) (*models.GlobalValidationReport, error)
	Report() (*models.GlobalValidationReport, bool)
	SaveDraft(ctx context.Context) (models.ScheduleData, error)
	Publish(ctx context.Context) (string, error)
	Snapshot() models.ScheduleData
	Stats() service.WorkspaceStats
	ActiveDay() string
	Refresher() *service.PositioningRefresher
	FeasibilityState() feasibility.State
}

type reassigner interface {
	Reassign(ctx context.Context, trigger string) (*service.ReassignmentSummary, error)
	AutoReassignIfCritical(ctx context.Context, report *models.GlobalValidationReport) (*service.ReassignmentSummary, error)
}

// VersionReader lists and fetches archived schedule versions.
type VersionReader interface {
	ListVersions(ctx context.Context, day string, limit int) ([]models.PublishedVersion, error)
	GetVersion(ctx context.Context, id string) (*models.ScheduleData, error)
}

// WorkspaceHandler exposes the schedule editing endpoints.
type WorkspaceHandler struct {
	service    workspaceService
	reassigner reassigner
	versions   VersionReader
	validate   *validator.Validate
}

// NewWorkspaceHandler builds a new handler. Reassigner and versions are
// optional; their endpoints return 503 when absent.
func NewWorkspaceHandler(svc workspaceService, reassigner reassigner, versions VersionReader) *WorkspaceHandler {
	validate := validator.New()
	_ = validate.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday":
			return true
		}
		return false
	})
	return &WorkspaceHandler{service: svc, reassigner: reassigner, versions: versions, validate: validate}
}

// bind unmarshals and validates a request body, writing the 400 itself.
func (h *WorkspaceHandler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid request payload"))
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid request payload"))
		return false
	}
	return true
}

// Get godoc
// @Summary Current workspace state
// @Tags Workspace
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /workspace [get]
func (h *WorkspaceHandler) Get(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.view(), nil)
}

// Load godoc
// @Summary Load a schedule into the workspace
// @Tags Workspace
// @Accept json
// @Produce json
// @Param payload body dto.LoadScheduleRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Router /workspace/load [post]
func (h *WorkspaceHandler) Load(c *gin.Context) {
	var req dto.LoadScheduleRequest
	if !h.bind(c, &req) {
		return
	}
	h.service.LoadSchedule(req.Day, req.Mode, req.Buses, req.AvailableRoutes)
	response.JSON(c, http.StatusOK, h.view(), nil)
}

// SwitchDay godoc
// @Summary Switch the active day
// @Tags Workspace
// @Accept json
// @Produce json
// @Param payload body dto.SwitchDayRequest true "Day payload"
// @Success 200 {object} response.Envelope
// @Router /workspace/day [put]
func (h *WorkspaceHandler) SwitchDay(c *gin.Context) {
	var req dto.SwitchDayRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.service.SwitchDay(c.Request.Context(), req.Day); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.view(), nil)
}

// DropRoute godoc
// @Summary Place a route onto a bus
// @Tags Workspace
// @Accept json
// @Produce json
// @Param payload body dto.DropRouteRequest true "Drop payload"
// @Success 200 {object} response.Envelope
// @Router /workspace/routes/drop [post]
func (h *WorkspaceHandler) DropRoute(c *gin.Context) {
	var req dto.DropRouteRequest
	if !h.bind(c, &req) {
		return
	}

	var route models.Route
	if req.Route != nil {
		route = service.NormalizeRoute(*req.Route)
	} else {
		route = models.Route{ID: req.RouteID}
	}
	if route.ID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "route_id is required"))
		return
	}

	result, err := h.service.DropRoute(c.Request.Context(), route, req.TargetBusID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respondOperation(c, result)
}

// ToTransfer godoc
// @Summary Park a route in the transfer area
// @Tags Workspace
// @Accept json
// @Produce json
// @Param payload body dto.TransferRequest true "Transfer payload"
// @Success 200 {object} response.Envelope
// @Router /workspace/routes/transfer [post]
func (h *WorkspaceHandler) ToTransfer(c *gin.Context) {
	var req dto.TransferRequest
	if !h.bind(c, &req) {
		return
	}
	result, err := h.service.MoveToTransfer(req.RouteID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respondOperation(c, result)
}

// FromTransfer godoc
// @Summary Place a parked route onto a bus
// @Tags Workspace
// @Accept json
// @Produce json
// @Param payload body dto.FromTransferRequest true "Placement payload"
// @Success 200 {object} response.Envelope
// @Router /workspace/routes/from-transfer [post]
func (h *WorkspaceHandler) FromTransfer(c *gin.Context) {
	var req dto.FromTransferRequest
	if !h.bind(c, &req) {
		return
	}
	result, err := h.service.MoveFromTransfer(c.Request.Context(), req.RouteID, req.TargetBusID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respondOperation(c, result)
}

// CreateBus godoc
// @Summary Create a bus seeded with one route
// @Tags Workspace
// @Accept json
// @Produce json
// @Param payload body dto.CreateBusRequest true "Seed payload"
// @Success 200 {object} response.Envelope
// @Router /workspace/buses/with-route [post]
func (h *WorkspaceHandler) CreateBus(c *gin.Context) {
	var req dto.CreateBusRequest
	if !h.bind(c, &req) {
		return
	}
	result, err := h.service.CreateBusWithRoute(req.RouteID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respondOperation(c, result)
}

// AddBus godoc
// @Summary Add an empty bus
// @Tags Workspace
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /workspace/buses [post]
func (h *WorkspaceHandler) AddBus(c *gin.Context) {
	busID := h.service.AddBus()
	response.Created(c, gin.H{"bus_id": busID})
}

// RemoveRoute godoc
// @Summary Unassign a route from a bus
// @Tags Workspace
// @Produce json
// @Param busId path string true "Bus id"
// @Param routeId path string true "Route id"
// @Success 200 {object} response.Envelope
// @Router /workspace/buses/{busId}/routes/{routeId} [delete]
func (h *WorkspaceHandler) RemoveRoute(c *gin.Context) {
	result, err := h.service.RemoveRoute(c.Param("busId"), c.Param("routeId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respondOperation(c, result)
}

// RemoveBus godoc
// @Summary Remove a bus, unassigning its routes
// @Tags Workspace
// @Produce json
// @Param busId path string true "Bus id"
// @Success 200 {object} response.Envelope
// @Router /workspace/buses/{busId} [delete]
func (h *WorkspaceHandler) RemoveBus(c *gin.Context) {
	result, err := h.service.RemoveBus(c.Param("busId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respondOperation(c, result)
}

// Validate godoc
// @Summary Run the whole-schedule validation
// @Tags Validation
// @Accept json
// @Produce json
// @Param payload body dto.ValidateRequest false "Validation options"
// @Success 200 {object} response.Envelope
// @Router /workspace/validate [post]
func (h *WorkspaceHandler) Validate(c *gin.Context) {
	var req dto.ValidateRequest
	_ = c.ShouldBindJSON(&req)

	report, err := h.service.ValidateSchedule(c.Request.Context(), req.Persist)
	if err != nil {
		response.Error(c, err)
		return
	}

	var summary *service.ReassignmentSummary
	if h.reassigner != nil {
		summary, err = h.reassigner.AutoReassignIfCritical(c.Request.Context(), report)
		if err != nil {
			response.Error(c, err)
			return
		}
		if summary != nil {
			// The fleet changed; the caller needs the post-move report.
			report, _ = h.service.Report()
		}
	}
	response.JSON(c, http.StatusOK, gin.H{"report": report, "reassignment": summary}, nil)
}

// Report godoc
// @Summary Last validation report
// @Tags Validation
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /workspace/report [get]
func (h *WorkspaceHandler) Report(c *gin.Context) {
	report, stale := h.service.Report()
	if report == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "no hay informe de validación"))
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"report": report, "stale": stale}, nil)
}

// Reassign godoc
// @Summary Relocate routes implicated in critical incidents
// @Tags Validation
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /workspace/reassign [post]
func (h *WorkspaceHandler) Reassign(c *gin.Context) {
	if h.reassigner == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrServiceUnavailable, "reasignación no disponible"))
		return
	}
	summary, err := h.reassigner.Reassign(c.Request.Context(), "manual")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Refresh godoc
// @Summary Force a positioning refresh
// @Tags Workspace
// @Accept json
// @Produce json
// @Param payload body dto.RefreshRequest false "Refresh targets"
// @Success 200 {object} response.Envelope
// @Router /workspace/refresh [post]
func (h *WorkspaceHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	_ = c.ShouldBindJSON(&req)

	var ids []string
	if len(req.BusIDs) > 0 {
		ids = req.BusIDs
	}
	result := h.service.Refresher().Refresh(c.Request.Context(), ids)
	response.JSON(c, http.StatusOK, result, nil)
}

// SaveDraft godoc
// @Summary Persist the current draft
// @Tags Workspace
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /workspace/draft [post]
func (h *WorkspaceHandler) SaveDraft(c *gin.Context) {
	data, err := h.service.SaveDraft(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"day": data.Day, "stats": data.Stats}, nil)
}

// Publish godoc
// @Summary Archive the schedule as an immutable version
// @Tags Workspace
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /workspace/publish [post]
func (h *WorkspaceHandler) Publish(c *gin.Context) {
	versionID, err := h.service.Publish(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.PublishResponse{VersionID: versionID})
}

// Versions godoc
// @Summary List archived versions for the active day
// @Tags Workspace
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /workspace/versions [get]
func (h *WorkspaceHandler) Versions(c *gin.Context) {
	if h.versions == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrServiceUnavailable, "archivo no disponible"))
		return
	}
	day := c.Query("day")
	if day == "" {
		day = h.service.ActiveDay()
	}
	versions, err := h.versions.ListVersions(c.Request.Context(), day, 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, versions, nil)
}

// Version godoc
// @Summary Fetch one archived version
// @Tags Workspace
// @Produce json
// @Param id path string true "Version id"
// @Success 200 {object} response.Envelope
// @Router /workspace/versions/{id} [get]
func (h *WorkspaceHandler) Version(c *gin.Context) {
	if h.versions == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrServiceUnavailable, "archivo no disponible"))
		return
	}
	data, err := h.versions.GetVersion(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrNotFound.Code, http.StatusNotFound, "versión no encontrada"))
		return
	}
	response.JSON(c, http.StatusOK, data, nil)
}

// Stats godoc
// @Summary Workspace counters
// @Tags Workspace
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /workspace/stats [get]
func (h *WorkspaceHandler) Stats(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Stats(), nil)
}

func (h *WorkspaceHandler) respondOperation(c *gin.Context, result service.OperationResult) {
	response.JSON(c, http.StatusOK, gin.H{"result": result, "workspace": h.view()}, nil)
}

func (h *WorkspaceHandler) view() dto.WorkspaceView {
	_, stale := h.service.Report()
	return dto.WorkspaceView{
		Day:             h.service.ActiveDay(),
		Buses:           h.service.Buses(),
		AvailableRoutes: h.service.AvailableRoutes(),
		TransferRoutes:  h.service.TransferRoutes(),
		Validation:      h.service.Validation(),
		ReportStale:     stale,
		Feasibility:     string(h.service.FeasibilityState()),
	}
}
