// Package controllers handles HTTP request handling
package controllers

import (
	"context"
	"io"

	"github.com/yigit/campuspass/internal/app/models"
	"github.com/yigit/campuspass/internal/app/models/dto"
)

// The controllers depend on these narrow views of the services so that
// handlers can be tested against stubs.

// AuthService logs operators in
type AuthService interface {
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error)
	GetProfile(ctx context.Context, operatorID int64) (*dto.OperatorResponse, error)
}

// StudentService manages the student registry
type StudentService interface {
	Create(ctx context.Context, req *dto.CreateStudentRequest) (*models.Student, error)
	GetByID(ctx context.Context, id int64) (*models.Student, error)
	List(ctx context.Context, filter dto.StudentFilter) (*dto.StudentListResponse, error)
	Update(ctx context.Context, id int64, req *dto.UpdateStudentRequest) (*models.Student, error)
	SetPaymentStatus(ctx context.Context, id int64, paid bool) (*models.Student, error)
	Delete(ctx context.Context, id int64) error
}

// ImportService loads students from spreadsheets
type ImportService interface {
	Import(ctx context.Context, r io.Reader) (*dto.ImportResult, error)
}

// TicketService manages tickets by hand
type TicketService interface {
	List(ctx context.Context, filter dto.TicketFilter) (*dto.TicketListResponse, error)
	GetByID(ctx context.Context, id int64) (*models.Ticket, error)
	Create(ctx context.Context, req *dto.CreateTicketRequest) (*models.Ticket, error)
	Update(ctx context.Context, id int64, req *dto.UpdateTicketRequest) (*models.Ticket, error)
	Delete(ctx context.Context, id int64) error
	QRCode(ctx context.Context, id int64) ([]byte, *models.Ticket, error)
	Counts(ctx context.Context) (dto.TicketCounts, error)
}

// IssuanceService issues signed tickets
type IssuanceService interface {
	IssueSingle(ctx context.Context, studentID int64, eventName string, ticketType models.TicketType) (*models.Ticket, error)
	IssueForAllPaidWithoutTicket(ctx context.Context, eventName string, ticketType models.TicketType) (*dto.IssuanceReport, error)
}

// DeliveryRunner starts and tracks background delivery runs
type DeliveryRunner interface {
	Start(ctx context.Context) (*dto.DeliveryRun, error)
	Get(runID string) (*dto.DeliveryRun, error)
}

// ValidationService admits ticket holders
type ValidationService interface {
	Validate(ctx context.Context, token, expectedEvent string, operatorID int64) (*dto.ValidationResult, error)
}

// StatsService serves dashboard statistics
type StatsService interface {
	Students(ctx context.Context) (*dto.StudentStats, error)
	Tickets(ctx context.Context) (*dto.TicketStats, error)
	StudentTickets(ctx context.Context) (*dto.StudentTicketStats, error)
	Report(ctx context.Context) (*dto.StatsReport, error)
}

// OperatorService manages back-office accounts
type OperatorService interface {
	List(ctx context.Context, filter dto.OperatorFilter) (*dto.OperatorListResponse, error)
	GetByID(ctx context.Context, id int64) (*dto.OperatorResponse, error)
	Create(ctx context.Context, req *dto.CreateOperatorRequest) (*dto.OperatorResponse, error)
	Update(ctx context.Context, actorID, id int64, req *dto.UpdateOperatorRequest) (*dto.OperatorResponse, error)
	Deactivate(ctx context.Context, actorID, id int64) error
}
