package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/campuspass/internal/app/models/dto"
	"github.com/yigit/campuspass/internal/middleware"
)

// GateController validates tickets at the entrance
type GateController struct {
	validation ValidationService
}

// NewGateController creates a new GateController
func NewGateController(validation ValidationService) *GateController {
	return &GateController{validation: validation}
}

// Validate consumes a scanned ticket
// @Summary Validate a ticket
// @Description Verifies the scanned QR payload and consumes the ticket. Ticket problems yield an INVALID result with status 200.
// @Tags gate
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.ValidateTicketRequest true "Scanned token"
// @Success 200 {object} dto.APIResponse{data=dto.ValidationResult} "Verdict"
// @Failure 400 {object} dto.ErrorResponse "Missing token"
// @Failure 503 {object} dto.ErrorResponse "Datastore unavailable"
// @Router /tickets/validate [post]
func (c *GateController) Validate(ctx *gin.Context) {
	var req dto.ValidateTicketRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	result, err := c.validation.Validate(ctx.Request.Context(), req.Token, req.EventName, middleware.OperatorID(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(result))
}
