package dto

import (
	"time"

	"github.com/yigit/campuspass/internal/pkg/mailer"
)

// DeliveryItem is the outcome of one ticket in a delivery run
type DeliveryItem struct {
	TicketID       int64            `json:"ticketId"`
	TicketCode     string           `json:"ticketCode"`
	StudentID      int64            `json:"studentId"`
	Matricule      string           `json:"matricule"`
	StudentName    string           `json:"studentName"`
	Email          string           `json:"email,omitempty"`
	MessageID      string           `json:"messageId,omitempty"`
	SentAt         *time.Time       `json:"sentAt,omitempty"`
	ErrorType      mailer.ErrorType `json:"errorType,omitempty"`
	ErrorMessage   string           `json:"errorMessage,omitempty"`
	ErrorCode      string           `json:"errorCode,omitempty"`
	ServerResponse string           `json:"serverResponse,omitempty"`
}

// DeliverySummary counts the outcomes of a run
type DeliverySummary struct {
	TotalProcessed  int `json:"totalProcessed"`
	SuccessfulSends int `json:"successfulSends"`
	FailedSends     int `json:"failedSends"`
	MissingEmails   int `json:"missingEmails"`
	InvalidEmails   int `json:"invalidEmails"`
	// SuccessRate is a rounded percentage
	SuccessRate int `json:"successRate"`
}

// DeliveryReport is the full result of a delivery run
type DeliveryReport struct {
	Summary       DeliverySummary `json:"summary"`
	Successful    []DeliveryItem  `json:"successful"`
	Failed        []DeliveryItem  `json:"failed"`
	MissingEmails []DeliveryItem  `json:"missingEmails"`
	InvalidEmails []DeliveryItem  `json:"invalidEmails"`
	ProcessedAt   time.Time       `json:"processedAt"`
}

// Delivery run statuses
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// DeliveryRun is the status of a background delivery run
type DeliveryRun struct {
	RunID      string          `json:"runId"`
	Status     string          `json:"status" enums:"running,completed,failed"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt *time.Time      `json:"finishedAt,omitempty"`
	Report     *DeliveryReport `json:"report,omitempty"`
	Error      string          `json:"error,omitempty"`
}
