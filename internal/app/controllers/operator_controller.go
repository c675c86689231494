package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yigit/campuspass/internal/app/models"
	"github.com/yigit/campuspass/internal/app/models/dto"
	"github.com/yigit/campuspass/internal/middleware"
	"github.com/yigit/campuspass/internal/pkg/helpers"
)

// OperatorController handles back-office account administration
type OperatorController struct {
	operators OperatorService
}

// NewOperatorController creates a new OperatorController
func NewOperatorController(operators OperatorService) *OperatorController {
	return &OperatorController{operators: operators}
}

func operatorID(ctx *gin.Context) (int64, bool) {
	id, ok := helpers.ParseIDParam(ctx, "id")
	if !ok {
		middleware.BadRequest(ctx, "Invalid operator ID", "Operator ID must be a positive number")
	}
	return id, ok
}

// List returns one page of operators
// @Summary List operators
// @Tags operators
// @Produce json
// @Security BearerAuth
// @Param search query string false "Search over email and names"
// @Param role query string false "Role" Enums(ADMIN, STAFF)
// @Param isActive query bool false "Activity flag"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(10)
// @Success 200 {object} dto.APIResponse{data=dto.OperatorListResponse} "Operators"
// @Failure 400 {object} dto.ErrorResponse "Invalid filter"
// @Router /operators [get]
func (c *OperatorController) List(ctx *gin.Context) {
	page, size := helpers.ParsePaginationParams(ctx)
	filter := dto.OperatorFilter{
		Search:   strings.TrimSpace(ctx.Query("search")),
		Role:     models.RoleType(strings.ToUpper(strings.TrimSpace(ctx.Query("role")))),
		IsActive: helpers.ParseOptionalBool(ctx, "isActive"),
		Page:     page,
		Size:     size,
	}

	resp, err := c.operators.List(ctx.Request.Context(), filter)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(resp))
}

// Create adds a back-office account
// @Summary Create an operator
// @Tags operators
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateOperatorRequest true "Operator information"
// @Success 201 {object} dto.APIResponse{data=dto.OperatorResponse} "Operator created"
// @Failure 400 {object} dto.ErrorResponse "Invalid request data"
// @Failure 409 {object} dto.ErrorResponse "Email already in use"
// @Router /operators [post]
func (c *OperatorController) Create(ctx *gin.Context) {
	var req dto.CreateOperatorRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	op, err := c.operators.Create(ctx.Request.Context(), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(op))
}

// Get returns one operator
// @Summary Get an operator
// @Tags operators
// @Produce json
// @Security BearerAuth
// @Param id path int true "Operator ID" Format(int64) minimum(1)
// @Success 200 {object} dto.APIResponse{data=dto.OperatorResponse} "Operator"
// @Failure 404 {object} dto.ErrorResponse "Operator not found"
// @Router /operators/{id} [get]
func (c *OperatorController) Get(ctx *gin.Context) {
	id, ok := operatorID(ctx)
	if !ok {
		return
	}

	op, err := c.operators.GetByID(ctx.Request.Context(), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(op))
}

// Update changes the provided fields of an operator
// @Summary Update an operator
// @Description Changes only the provided fields. Operators cannot disable or demote their own account.
// @Tags operators
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Operator ID" Format(int64) minimum(1)
// @Param request body dto.UpdateOperatorRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=dto.OperatorResponse} "Operator updated"
// @Failure 400 {object} dto.ErrorResponse "Invalid request data"
// @Failure 403 {object} dto.ErrorResponse "Change would lock the caller out"
// @Failure 404 {object} dto.ErrorResponse "Operator not found"
// @Router /operators/{id} [put]
func (c *OperatorController) Update(ctx *gin.Context) {
	id, ok := operatorID(ctx)
	if !ok {
		return
	}
	var req dto.UpdateOperatorRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	op, err := c.operators.Update(ctx.Request.Context(), middleware.OperatorID(ctx), id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(op))
}

// Deactivate disables an operator account
// @Summary Deactivate an operator
// @Tags operators
// @Produce json
// @Security BearerAuth
// @Param id path int true "Operator ID" Format(int64) minimum(1)
// @Success 200 {object} dto.APIResponse{data=dto.SuccessResponse} "Operator deactivated"
// @Failure 403 {object} dto.ErrorResponse "Cannot deactivate own account"
// @Failure 404 {object} dto.ErrorResponse "Operator not found"
// @Router /operators/{id} [delete]
func (c *OperatorController) Deactivate(ctx *gin.Context) {
	id, ok := operatorID(ctx)
	if !ok {
		return
	}

	if err := c.operators.Deactivate(ctx.Request.Context(), middleware.OperatorID(ctx), id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.SuccessResponse{Message: "Operator deactivated"}))
}
