package dto

import (
	"time"

	"github.com/yigit/campuspass/internal/app/models"
)

// LoginRequest represents operator login credentials
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email" example:"admin@univ-tol.mg"`
	Password string `json:"password" binding:"required" example:"changeme"`
}

// LoginResponse carries the session token of an authenticated operator
type LoginResponse struct {
	AccessToken string           `json:"accessToken"`
	TokenType   string           `json:"tokenType" example:"Bearer"`
	ExpiresIn   int              `json:"expiresIn" example:"86400"`
	Operator    OperatorResponse `json:"operator"`
}

// OperatorResponse is the public view of an operator
type OperatorResponse struct {
	ID          int64           `json:"id" example:"1"`
	Email       string          `json:"email" example:"admin@univ-tol.mg"`
	FirstName   string          `json:"firstName" example:"System"`
	LastName    string          `json:"lastName" example:"Administrator"`
	RoleType    models.RoleType `json:"roleType" example:"ADMIN" enums:"ADMIN,STAFF"`
	IsActive    bool            `json:"isActive" example:"true"`
	LastLoginAt *time.Time      `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// NewOperatorResponse maps an operator to its public view
func NewOperatorResponse(op *models.Operator) OperatorResponse {
	return OperatorResponse{
		ID:          op.ID,
		Email:       op.Email,
		FirstName:   op.FirstName,
		LastName:    op.LastName,
		RoleType:    op.RoleType,
		IsActive:    op.IsActive,
		LastLoginAt: op.LastLoginAt,
		CreatedAt:   op.CreatedAt,
	}
}
