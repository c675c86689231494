package dto

import (
	"time"

	"github.com/yigit/campuspass/internal/app/models"
)

// CreateTicketRequest creates a ticket by hand. A code is generated when omitted.
type CreateTicketRequest struct {
	StudentID   int64             `json:"studentId" binding:"required,min=1" example:"1"`
	TicketCode  string            `json:"ticketCode,omitempty" binding:"omitempty,max=50"`
	PurchasedAt *time.Time        `json:"purchasedAt,omitempty"`
	EventName   string            `json:"eventName,omitempty" binding:"omitempty,max=100" example:"RECPTNOV2025"`
	TicketType  models.TicketType `json:"ticketType,omitempty" binding:"omitempty,tickettype" example:"payant"`
}

// UpdateTicketRequest changes only the provided fields. The token and the
// delivery state are never touched.
type UpdateTicketRequest struct {
	StudentID   *int64             `json:"studentId,omitempty" binding:"omitempty,min=1"`
	TicketCode  *string            `json:"ticketCode,omitempty" binding:"omitempty,min=1,max=50"`
	PurchasedAt *time.Time         `json:"purchasedAt,omitempty"`
	IsValid     *bool              `json:"isValid,omitempty"`
	EventName   *string            `json:"eventName,omitempty" binding:"omitempty,min=1,max=100"`
	TicketType  *models.TicketType `json:"ticketType,omitempty" binding:"omitempty,tickettype"`
}

// TicketFilter narrows ticket listings
type TicketFilter struct {
	StudentID int64
	IsValid   *bool
	Page      int
	Size      int
}

// TicketListResponse is one page of tickets
type TicketListResponse struct {
	Tickets    []models.Ticket `json:"tickets"`
	Pagination PaginationInfo  `json:"pagination"`
}

// GenerateTicketRequest issues one ticket for a student
type GenerateTicketRequest struct {
	StudentID  int64             `json:"studentId" binding:"required,min=1" example:"1"`
	EventName  string            `json:"eventName,omitempty" binding:"omitempty,max=100" example:"RECPTNOV2025"`
	TicketType models.TicketType `json:"ticketType,omitempty" binding:"omitempty,tickettype" example:"payant"`
}

// GenerateAllRequest issues tickets for every paid student that has none
type GenerateAllRequest struct {
	EventName  string            `json:"eventName,omitempty" binding:"omitempty,max=100" example:"RECPTNOV2025"`
	TicketType models.TicketType `json:"ticketType,omitempty" binding:"omitempty,tickettype" example:"payant"`
}

// Issuance detail statuses
const (
	IssuanceSuccess = "success"
	IssuanceFailed  = "failed"
)

// IssuanceDetail is the outcome for one student of a bulk issuance
type IssuanceDetail struct {
	StudentID   int64  `json:"studentId"`
	Matricule   string `json:"matricule"`
	StudentName string `json:"studentName"`
	Email       string `json:"email"`
	TicketID    int64  `json:"ticketId,omitempty"`
	TicketCode  string `json:"ticketCode,omitempty"`
	Status      string `json:"status" enums:"success,failed"`
	Error       string `json:"error,omitempty"`
}

// IssuanceReport summarizes a bulk issuance
type IssuanceReport struct {
	Total        int              `json:"total"`
	SuccessCount int              `json:"successCount"`
	FailedCount  int              `json:"failedCount"`
	EventName    string           `json:"eventName"`
	TicketType   string           `json:"ticketType"`
	Details      []IssuanceDetail `json:"details"`
}

// TicketCounts is the quick ticket summary
type TicketCounts struct {
	Total    int64 `json:"total"`
	NotValid int64 `json:"notValid"`
}
