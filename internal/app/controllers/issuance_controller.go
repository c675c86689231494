package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/yigit/campuspass/internal/app/models/dto"
	"github.com/yigit/campuspass/internal/middleware"
)

// IssuanceController issues tickets and triggers their delivery
type IssuanceController struct {
	issuance IssuanceService
	runner   DeliveryRunner
	logger   zerolog.Logger
}

// NewIssuanceController creates a new IssuanceController
func NewIssuanceController(issuance IssuanceService, runner DeliveryRunner, logger zerolog.Logger) *IssuanceController {
	return &IssuanceController{
		issuance: issuance,
		runner:   runner,
		logger:   logger,
	}
}

// Generate issues one ticket for a student
// @Summary Issue a ticket
// @Description Issues a signed ticket for one student. Event and type fall back to the configured defaults.
// @Tags issuance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.GenerateTicketRequest true "Student and event"
// @Success 201 {object} dto.APIResponse{data=models.Ticket} "Ticket issued"
// @Failure 400 {object} dto.ErrorResponse "Invalid request data"
// @Failure 404 {object} dto.ErrorResponse "Student not found"
// @Router /tickets/generate [post]
func (c *IssuanceController) Generate(ctx *gin.Context) {
	var req dto.GenerateTicketRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	ticket, err := c.issuance.IssueSingle(ctx.Request.Context(), req.StudentID, req.EventName, req.TicketType)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(ticket))
}

// GenerateAll issues tickets for every paid student without one
// @Summary Issue tickets in bulk
// @Description Issues one ticket for every paid student holding none. Per-student failures are reported, not returned.
// @Tags issuance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.GenerateAllRequest false "Event and ticket type"
// @Success 200 {object} dto.APIResponse{data=dto.IssuanceReport} "Issuance report"
// @Failure 409 {object} dto.ErrorResponse "A batch is already in progress"
// @Router /tickets/generate-all [post]
func (c *IssuanceController) GenerateAll(ctx *gin.Context) {
	var req dto.GenerateAllRequest
	if ctx.Request.ContentLength != 0 {
		if !middleware.BindJSON(ctx, &req) {
			return
		}
	}

	report, err := c.issuance.IssueForAllPaidWithoutTicket(ctx.Request.Context(), req.EventName, req.TicketType)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(report))
}

// SendAll starts a background delivery run
// @Summary Email all pending tickets
// @Description Starts a delivery run for every valid, unsent ticket of every paid student and returns its id. Poll the run for the report.
// @Tags delivery
// @Produce json
// @Security BearerAuth
// @Success 202 {object} dto.APIResponse{data=dto.DeliveryRun} "Run started"
// @Failure 409 {object} dto.ErrorResponse "A run is already in progress"
// @Router /tickets/send-all [post]
func (c *IssuanceController) SendAll(ctx *gin.Context) {
	run, err := c.runner.Start(ctx.Request.Context())
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	c.logger.Info().Str("runID", run.RunID).Int64("operatorID", middleware.OperatorID(ctx)).Msg("Delivery run requested")
	ctx.Header("Location", "/api/v1/tickets/send-all/"+run.RunID)
	ctx.JSON(http.StatusAccepted, dto.NewSuccessResponse(run))
}

// SendStatus returns the status of a delivery run
// @Summary Delivery run status
// @Tags delivery
// @Produce json
// @Security BearerAuth
// @Param runId path string true "Run ID"
// @Success 200 {object} dto.APIResponse{data=dto.DeliveryRun} "Run status, with the report once finished"
// @Failure 404 {object} dto.ErrorResponse "Unknown run"
// @Router /tickets/send-all/{runId} [get]
func (c *IssuanceController) SendStatus(ctx *gin.Context) {
	run, err := c.runner.Get(ctx.Param("runId"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(run))
}
