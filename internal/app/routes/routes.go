package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yigit/campuspass/internal/app/controllers"
	"github.com/yigit/campuspass/internal/app/models"
	"github.com/yigit/campuspass/internal/app/models/dto"
	"github.com/yigit/campuspass/internal/middleware"
	"github.com/yigit/campuspass/internal/pkg/websocket"
)

// Handlers groups everything the router mounts
type Handlers struct {
	Auth      *controllers.AuthController
	Students  *controllers.StudentController
	Tickets   *controllers.TicketController
	Issuance  *controllers.IssuanceController
	Gate      *controllers.GateController
	Stats     *controllers.StatsController
	Operators *controllers.OperatorController
	GateFeed  *websocket.Handler

	// LoginLimiter runs before the login handler when set
	LoginLimiter gin.HandlerFunc

	// Health reports whether the datastore answers
	Health func(ctx context.Context) error
	// Metrics is mounted at MetricsPath when set
	Metrics     http.Handler
	MetricsPath string
}

// SetupRouter configures all application routes
func SetupRouter(router *gin.Engine, h Handlers, authMiddleware *middleware.AuthMiddleware) {
	router.GET("/health", healthHandler(h.Health))
	if h.Metrics != nil {
		router.GET(h.MetricsPath, gin.WrapH(h.Metrics))
	}

	// API version group
	v1 := router.Group("/api/v1")
	v1.GET("/health", healthHandler(h.Health))

	// --- Public Auth routes ---
	if h.LoginLimiter != nil {
		v1.POST("/auth/login", h.LoginLimiter, h.Auth.Login)
	} else {
		v1.POST("/auth/login", h.Auth.Login)
	}

	// --- Authenticated Routes Group ---
	authenticated := v1.Group("")
	authenticated.Use(authMiddleware.JWTAuth())
	authenticated.GET("/auth/me", h.Auth.Profile)

	// Gate routes are open to every operator
	gate := authenticated.Group("")
	gate.Use(authMiddleware.RoleRequired(models.RoleAdmin, models.RoleStaff))
	{
		gate.POST("/tickets/validate", h.Gate.Validate)
		gate.GET("/gate/ws", h.GateFeed.HandleConnection)
	}

	admin := authenticated.Group("")
	admin.Use(authMiddleware.RoleRequired(models.RoleAdmin))

	students := admin.Group("/students")
	{
		students.GET("", h.Students.List)
		students.POST("", h.Students.Create)
		students.POST("/import", h.Students.Import)
		students.GET("/:id", h.Students.Get)
		students.PUT("/:id", h.Students.Update)
		students.DELETE("/:id", h.Students.Delete)
		students.PATCH("/:id/payment", h.Students.SetPayment)
	}

	tickets := admin.Group("/tickets")
	{
		tickets.GET("", h.Tickets.List)
		tickets.POST("", h.Tickets.Create)
		tickets.GET("/count-invalid", h.Tickets.CountInvalid)
		tickets.POST("/generate", h.Issuance.Generate)
		tickets.POST("/generate-all", h.Issuance.GenerateAll)
		tickets.POST("/send-all", h.Issuance.SendAll)
		tickets.GET("/send-all/:runId", h.Issuance.SendStatus)
		tickets.GET("/:id", h.Tickets.Get)
		tickets.PUT("/:id", h.Tickets.Update)
		tickets.DELETE("/:id", h.Tickets.Delete)
		tickets.GET("/:id/qrcode", h.Tickets.QRCode)
	}

	stats := admin.Group("/stats")
	{
		stats.GET("/students", h.Stats.Students)
		stats.GET("/tickets", h.Stats.Tickets)
		stats.GET("/students-tickets", h.Stats.StudentTickets)
		stats.GET("/report", h.Stats.Report)
	}

	operators := admin.Group("/operators")
	{
		operators.GET("", h.Operators.List)
		operators.POST("", h.Operators.Create)
		operators.GET("/:id", h.Operators.Get)
		operators.PUT("/:id", h.Operators.Update)
		operators.DELETE("/:id", h.Operators.Deactivate)
	}
}

func healthHandler(check func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				errorDetail := dto.NewErrorDetail(dto.ErrorCodeServiceUnavailable, "Database unreachable")
				c.JSON(http.StatusServiceUnavailable, dto.NewErrorResponse(errorDetail))
				return
			}
		}
		c.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{"status": "ok"}))
	}
}
