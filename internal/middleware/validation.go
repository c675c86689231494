package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/campuspass/internal/app/models/dto"
)

// BindJSON binds and validates the request body into obj. On failure it
// writes a 400 listing every failing field and returns false.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		errorDetail := dto.HandleValidationError(err)
		c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return false
	}
	return true
}

// BadRequest aborts with a 400 carrying message and details
func BadRequest(c *gin.Context, message string, details interface{}) {
	errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, message)
	if details != nil {
		errorDetail = errorDetail.WithDetails(details)
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
}
