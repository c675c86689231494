package dto

import (
	"time"

	"github.com/yigit/campuspass/internal/app/models"
)

// Validation results
const (
	ValidationValid   = "VALID"
	ValidationInvalid = "INVALID"
)

// ValidateTicketRequest is a scanned QR payload. EventName, when set, must
// match the event the ticket was issued for.
type ValidateTicketRequest struct {
	Token     string `json:"token" binding:"required"`
	EventName string `json:"eventName,omitempty" binding:"omitempty,max=100" example:"RECPTNOV2025"`
}

// ValidatedTicket is the ticket snapshot returned after a successful scan
type ValidatedTicket struct {
	ID          int64             `json:"id"`
	StudentID   int64             `json:"studentId"`
	TicketCode  string            `json:"ticketCode"`
	PurchasedAt time.Time         `json:"purchasedAt"`
	IsValid     bool              `json:"isValid"`
	EventName   string            `json:"eventName"`
	TicketType  models.TicketType `json:"ticketType"`
}

// ValidatedStudent identifies the ticket holder at the gate
type ValidatedStudent struct {
	Matricule string            `json:"matricule"`
	LastName  string            `json:"lastName"`
	FirstName string            `json:"firstName"`
	Level     models.StudyLevel `json:"level"`
}

// ValidationResult is the gate verdict
type ValidationResult struct {
	Result  string            `json:"result" enums:"VALID,INVALID"`
	Message string            `json:"message"`
	Ticket  *ValidatedTicket  `json:"ticket,omitempty"`
	Student *ValidatedStudent `json:"student,omitempty"`
}

// Valid reports whether the ticket was accepted
func (r *ValidationResult) Valid() bool {
	return r.Result == ValidationValid
}
