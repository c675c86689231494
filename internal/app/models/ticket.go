package models

import "time"

// Ticket defines the ticket model based on the 'tickets' table.
// IsValid flips to false exactly once, when the ticket is scanned at the gate.
// IsSent flips to true exactly once, after the mailer confirmed delivery.
type Ticket struct {
	ID          int64      `json:"id" db:"id" example:"42"`
	StudentID   int64      `json:"studentId" db:"student_id" example:"1"`
	TicketCode  string     `json:"ticketCode" db:"ticket_code" example:"TICK-4F9Z2K1Q-M3X8P2QA"`
	PurchasedAt time.Time  `json:"purchasedAt" db:"purchased_at"`
	IsValid     bool       `json:"isValid" db:"is_valid" example:"true"`
	EventName   string     `json:"eventName" db:"event_name" example:"RECPTNOV2025"`
	TicketType  TicketType `json:"ticketType" db:"ticket_type" example:"payant"`
	Token       string     `json:"-" db:"token"`
	IsSent      bool       `json:"isSent" db:"is_sent"`
	SentAt      *time.Time `json:"sentAt,omitempty" db:"sent_at"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
	Student     *Student   `json:"student,omitempty"` // Relation, no db tag
}

// PendingDelivery groups a paid student with tickets that are valid but not yet emailed.
type PendingDelivery struct {
	Student Student
	Tickets []Ticket
}
