package dto

import "github.com/yigit/campuspass/internal/app/models"

// CreateStudentRequest registers a student. Payment starts as unpaid.
type CreateStudentRequest struct {
	Matricule string            `json:"matricule" binding:"required,max=50,matricule" example:"2301-045"`
	LastName  string            `json:"lastName" binding:"required,max=100" example:"RAKOTO"`
	FirstName string            `json:"firstName" binding:"required,max=100" example:"Jean Paul"`
	Level     models.StudyLevel `json:"level" binding:"required,studylevel" example:"L3"`
	Email     string            `json:"email" binding:"required,email,max=255" example:"rakoto.jean.paul@univ-tol.mg"`
}

// UpdateStudentRequest changes only the provided fields. Setting hasPaid
// also sets the validity of every ticket of the student.
type UpdateStudentRequest struct {
	Matricule *string            `json:"matricule,omitempty" binding:"omitempty,max=50,matricule"`
	LastName  *string            `json:"lastName,omitempty" binding:"omitempty,min=1,max=100"`
	FirstName *string            `json:"firstName,omitempty" binding:"omitempty,min=1,max=100"`
	Level     *models.StudyLevel `json:"level,omitempty" binding:"omitempty,studylevel"`
	Email     *string            `json:"email,omitempty" binding:"omitempty,email,max=255"`
	HasPaid   *bool              `json:"hasPaid,omitempty"`
}

// PaymentStatusRequest sets the payment flag of a student
type PaymentStatusRequest struct {
	HasPaid *bool `json:"hasPaid" binding:"required" example:"true"`
}

// StudentFilter narrows student listings
type StudentFilter struct {
	Search  string
	Level   models.StudyLevel
	HasPaid *bool
	Page    int
	Size    int
}

// StudentListResponse is one page of students
type StudentListResponse struct {
	Students   []models.Student `json:"students"`
	Pagination PaginationInfo   `json:"pagination"`
}
