package dto

import "github.com/yigit/campuspass/internal/app/models"

// CreateOperatorRequest adds a back-office account
type CreateOperatorRequest struct {
	Email     string          `json:"email" binding:"required,email,max=255" example:"gate1@univ-tol.mg"`
	Password  string          `json:"password" binding:"required,min=8,max=72" example:"s3cretpass"`
	FirstName string          `json:"firstName" binding:"max=100" example:"Hery"`
	LastName  string          `json:"lastName" binding:"max=100" example:"RANDRIA"`
	RoleType  models.RoleType `json:"roleType" binding:"required,oneof=ADMIN STAFF" example:"STAFF"`
}

// UpdateOperatorRequest changes only the provided fields
type UpdateOperatorRequest struct {
	FirstName *string          `json:"firstName,omitempty" binding:"omitempty,max=100"`
	LastName  *string          `json:"lastName,omitempty" binding:"omitempty,max=100"`
	RoleType  *models.RoleType `json:"roleType,omitempty" binding:"omitempty,oneof=ADMIN STAFF"`
	IsActive  *bool            `json:"isActive,omitempty"`
	Password  *string          `json:"password,omitempty" binding:"omitempty,min=8,max=72"`
}

// OperatorFilter narrows operator listings
type OperatorFilter struct {
	Search   string
	Role     models.RoleType
	IsActive *bool
	Page     int
	Size     int
}

// OperatorListResponse is one page of operators
type OperatorListResponse struct {
	Operators  []OperatorResponse `json:"operators"`
	Pagination PaginationInfo     `json:"pagination"`
}
