package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/campuspass/internal/app/models/dto"
	"github.com/yigit/campuspass/internal/middleware"
)

// StatsController serves dashboard statistics
type StatsController struct {
	stats StatsService
}

// NewStatsController creates a new StatsController
func NewStatsController(stats StatsService) *StatsController {
	return &StatsController{stats: stats}
}

func respond[T any](ctx *gin.Context, fetch func(context.Context) (T, error)) {
	data, err := fetch(ctx.Request.Context())
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Students counts students by level and payment status
// @Summary Student statistics
// @Tags stats
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.StudentStats}
// @Router /stats/students [get]
func (c *StatsController) Students(ctx *gin.Context) {
	respond(ctx, c.stats.Students)
}

// Tickets summarizes tickets by validity, delivery and type
// @Summary Ticket statistics
// @Tags stats
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.TicketStats}
// @Router /stats/tickets [get]
func (c *StatsController) Tickets(ctx *gin.Context) {
	respond(ctx, c.stats.Tickets)
}

// StudentTickets relates students to the tickets they hold
// @Summary Student ticket statistics
// @Tags stats
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.StudentTicketStats}
// @Router /stats/students-tickets [get]
func (c *StatsController) StudentTickets(ctx *gin.Context) {
	respond(ctx, c.stats.StudentTickets)
}

// Report combines every statistic
// @Summary Full statistics report
// @Tags stats
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.StatsReport}
// @Router /stats/report [get]
func (c *StatsController) Report(ctx *gin.Context) {
	respond(ctx, c.stats.Report)
}
