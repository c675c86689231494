package models

import (
	"strings"
	"time"
)

// Student defines the student model based on the 'students' table
type Student struct {
	ID        int64      `json:"id" db:"id" example:"1"`
	Matricule string     `json:"matricule" db:"matricule" example:"2301-045"`
	LastName  string     `json:"lastName" db:"last_name" example:"RAKOTO"`
	FirstName string     `json:"firstName" db:"first_name" example:"Jean Paul"`
	Level     StudyLevel `json:"level" db:"level" example:"L3"`
	Email     string     `json:"email" db:"email" example:"rakoto.jean.paul@univ-tol.mg"`
	HasPaid   bool       `json:"hasPaid" db:"has_paid" example:"true"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time  `json:"updatedAt" db:"updated_at"`
	Tickets   []Ticket   `json:"tickets,omitempty"` // Relation, no db tag
}

// DisplayName is "first last", the name printed on ticket emails.
func (s *Student) DisplayName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}
