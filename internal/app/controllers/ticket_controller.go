package controllers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/yigit/campuspass/internal/app/models/dto"
	"github.com/yigit/campuspass/internal/middleware"
	"github.com/yigit/campuspass/internal/pkg/helpers"
)

// TicketController handles ticket records
type TicketController struct {
	tickets TicketService
	logger  zerolog.Logger
}

// NewTicketController creates a new TicketController
func NewTicketController(tickets TicketService, logger zerolog.Logger) *TicketController {
	return &TicketController{
		tickets: tickets,
		logger:  logger,
	}
}

func ticketID(ctx *gin.Context) (int64, bool) {
	id, ok := helpers.ParseIDParam(ctx, "id")
	if !ok {
		middleware.BadRequest(ctx, "Invalid ticket ID", "Ticket ID must be a positive number")
	}
	return id, ok
}

// List returns one page of tickets
// @Summary List tickets
// @Tags tickets
// @Produce json
// @Security BearerAuth
// @Param studentId query int false "Owner student ID"
// @Param isValid query bool false "Validity"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(10)
// @Success 200 {object} dto.APIResponse{data=dto.TicketListResponse} "Tickets"
// @Router /tickets [get]
func (c *TicketController) List(ctx *gin.Context) {
	page, size := helpers.ParsePaginationParams(ctx)
	filter := dto.TicketFilter{
		IsValid: helpers.ParseOptionalBool(ctx, "isValid"),
		Page:    page,
		Size:    size,
	}
	if raw := ctx.Query("studentId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			middleware.BadRequest(ctx, "Invalid student ID", "studentId must be a positive number")
			return
		}
		filter.StudentID = id
	}

	resp, err := c.tickets.List(ctx.Request.Context(), filter)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(resp))
}

// Create adds a ticket by hand
// @Summary Create a ticket
// @Description Creates a signed ticket for an existing student. A code is generated when omitted.
// @Tags tickets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateTicketRequest true "Ticket information"
// @Success 201 {object} dto.APIResponse{data=models.Ticket} "Ticket created"
// @Failure 400 {object} dto.ErrorResponse "Invalid request data"
// @Failure 404 {object} dto.ErrorResponse "Student not found"
// @Failure 409 {object} dto.ErrorResponse "Ticket code already exists"
// @Router /tickets [post]
func (c *TicketController) Create(ctx *gin.Context) {
	var req dto.CreateTicketRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	ticket, err := c.tickets.Create(ctx.Request.Context(), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(ticket))
}

// Get returns one ticket
// @Summary Get a ticket
// @Tags tickets
// @Produce json
// @Security BearerAuth
// @Param id path int true "Ticket ID" Format(int64) minimum(1)
// @Success 200 {object} dto.APIResponse{data=models.Ticket} "Ticket"
// @Failure 404 {object} dto.ErrorResponse "Ticket not found"
// @Router /tickets/{id} [get]
func (c *TicketController) Get(ctx *gin.Context) {
	id, ok := ticketID(ctx)
	if !ok {
		return
	}

	ticket, err := c.tickets.GetByID(ctx.Request.Context(), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(ticket))
}

// Update changes the provided fields of a ticket
// @Summary Update a ticket
// @Description Changes only the provided fields. The token and the delivery state are never touched.
// @Tags tickets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Ticket ID" Format(int64) minimum(1)
// @Param request body dto.UpdateTicketRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=models.Ticket} "Ticket updated"
// @Failure 404 {object} dto.ErrorResponse "Ticket or student not found"
// @Router /tickets/{id} [put]
func (c *TicketController) Update(ctx *gin.Context) {
	id, ok := ticketID(ctx)
	if !ok {
		return
	}
	var req dto.UpdateTicketRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	ticket, err := c.tickets.Update(ctx.Request.Context(), id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(ticket))
}

// Delete removes a ticket
// @Summary Delete a ticket
// @Tags tickets
// @Produce json
// @Security BearerAuth
// @Param id path int true "Ticket ID" Format(int64) minimum(1)
// @Success 200 {object} dto.APIResponse{data=dto.SuccessResponse} "Ticket deleted"
// @Failure 404 {object} dto.ErrorResponse "Ticket not found"
// @Router /tickets/{id} [delete]
func (c *TicketController) Delete(ctx *gin.Context) {
	id, ok := ticketID(ctx)
	if !ok {
		return
	}

	if err := c.tickets.Delete(ctx.Request.Context(), id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.SuccessResponse{Message: "Ticket deleted"}))
}

// QRCode renders the QR code of a ticket as PNG
// @Summary Ticket QR code
// @Tags tickets
// @Produce png
// @Security BearerAuth
// @Param id path int true "Ticket ID" Format(int64) minimum(1)
// @Success 200 {file} binary "PNG image"
// @Failure 404 {object} dto.ErrorResponse "Ticket not found"
// @Router /tickets/{id}/qrcode [get]
func (c *TicketController) QRCode(ctx *gin.Context) {
	id, ok := ticketID(ctx)
	if !ok {
		return
	}

	png, ticket, err := c.tickets.QRCode(ctx.Request.Context(), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", ticket.TicketCode+".png"))
	ctx.Data(http.StatusOK, "image/png", png)
}

// CountInvalid returns the number of tickets and how many were used
// @Summary Ticket counts
// @Tags tickets
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.TicketCounts} "Counts"
// @Router /tickets/count-invalid [get]
func (c *TicketController) CountInvalid(ctx *gin.Context) {
	counts, err := c.tickets.Counts(ctx.Request.Context())
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(counts))
}
