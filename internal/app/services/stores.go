package services

import (
	"context"
	"time"

	"github.com/yigit/campuspass/internal/app/models"
	"github.com/yigit/campuspass/internal/app/models/dto"
	"github.com/yigit/campuspass/internal/pkg/websocket"
)

// StudentStore persists students
type StudentStore interface {
	Create(ctx context.Context, student *models.Student) error
	GetByID(ctx context.Context, id int64) (*models.Student, error)
	ExistsByMatricule(ctx context.Context, matricule string) (bool, error)
	List(ctx context.Context, filter dto.StudentFilter) ([]models.Student, int64, error)
	Update(ctx context.Context, student *models.Student) error
	SetPaid(ctx context.Context, id int64, paid bool) error
	Delete(ctx context.Context, id int64) error
	FindPaidWithoutTickets(ctx context.Context) ([]models.Student, error)
}

// TicketStore persists tickets
type TicketStore interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	SetToken(ctx context.Context, id int64, token string) error
	GetByID(ctx context.Context, id int64) (*models.Ticket, error)
	ListByStudent(ctx context.Context, studentID int64) ([]models.Ticket, error)
	List(ctx context.Context, filter dto.TicketFilter) ([]models.Ticket, int64, error)
	Update(ctx context.Context, ticket *models.Ticket) error
	Delete(ctx context.Context, id int64) error
	DeleteByStudent(ctx context.Context, studentID int64) (int64, error)
	SetValidityForStudent(ctx context.Context, studentID int64, valid bool) (int64, error)
	Counts(ctx context.Context) (dto.TicketCounts, error)
}

// DeliveryStore is the slice of ticket storage used by delivery runs
type DeliveryStore interface {
	FindPendingDeliveries(ctx context.Context) ([]models.PendingDelivery, error)
	MarkSent(ctx context.Context, ticketID int64, at time.Time) (bool, error)
}

// ValidationStore consumes tickets at the gate
type ValidationStore interface {
	Consume(ctx context.Context, ticketID int64, ticketCode string) (*models.Ticket, error)
}

// StatsStore runs aggregate queries
type StatsStore interface {
	StudentsByLevel(ctx context.Context) ([]dto.LevelPaymentStats, error)
	TicketStats(ctx context.Context) (dto.TicketStats, error)
	StudentTicketStats(ctx context.Context) (dto.StudentTicketStats, error)
}

// OperatorStore persists back-office accounts
type OperatorStore interface {
	Create(ctx context.Context, op *models.Operator) error
	GetByEmail(ctx context.Context, email string) (*models.Operator, error)
	GetByID(ctx context.Context, id int64) (*models.Operator, error)
	Count(ctx context.Context) (int64, error)
	List(ctx context.Context, filter dto.OperatorFilter) ([]models.Operator, int64, error)
	Update(ctx context.Context, op *models.Operator) error
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
}

// TokenIssuer signs ticket tokens
type TokenIssuer interface {
	Issue(ticketID, studentID int64, ticketCode, eventName string) (string, error)
}

// CodeGenerator produces ticket codes
type CodeGenerator interface {
	Next() (string, error)
}

// QRRenderer turns a token into PNG bytes
type QRRenderer interface {
	Render(token string) ([]byte, error)
}

// ScanPublisher receives gate scan events
type ScanPublisher interface {
	Publish(event websocket.ScanEvent)
}
