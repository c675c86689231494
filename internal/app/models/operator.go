package models

import (
	"time"
)

// Operator defines a back-office account based on the 'operators' table
type Operator struct {
	ID          int64      `json:"id" db:"id" example:"1"`
	Email       string     `json:"email" db:"email" example:"admin@univ-tol.mg"`
	Password    string     `json:"-" db:"password"` // bcrypt hash
	FirstName   string     `json:"firstName" db:"first_name" example:"System"`
	LastName    string     `json:"lastName" db:"last_name" example:"Administrator"`
	RoleType    RoleType   `json:"roleType" db:"role_type" example:"ADMIN"`
	IsActive    bool       `json:"isActive" db:"is_active" example:"true"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty" db:"last_login_at"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
}
