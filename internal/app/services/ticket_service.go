package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/yigit/campuspass/internal/app/models"
	"github.com/yigit/campuspass/internal/app/models/dto"
	"github.com/yigit/campuspass/internal/pkg/helpers"
)

// TicketService manages tickets by hand, next to the batch engines
type TicketService struct {
	tickets  TicketStore
	students StudentStore
	issuance *IssuanceService
	renderer QRRenderer
	logger   zerolog.Logger
}

// NewTicketService creates a new TicketService
func NewTicketService(tickets TicketStore, students StudentStore, issuance *IssuanceService, renderer QRRenderer, logger zerolog.Logger) *TicketService {
	return &TicketService{
		tickets:  tickets,
		students: students,
		issuance: issuance,
		renderer: renderer,
		logger:   logger,
	}
}

// List returns one page of tickets with a summary of their students
func (s *TicketService) List(ctx context.Context, filter dto.TicketFilter) (*dto.TicketListResponse, error) {
	filter.Page, filter.Size = normalizePage(filter.Page, filter.Size)
	tickets, total, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &dto.TicketListResponse{
		Tickets:    tickets,
		Pagination: helpers.NewPaginationInfo(total, filter.Page, filter.Size),
	}, nil
}

// GetByID returns one ticket
func (s *TicketService) GetByID(ctx context.Context, id int64) (*models.Ticket, error) {
	return s.tickets.GetByID(ctx, id)
}

// Create adds a ticket for an existing student. Without a code one is
// generated; the token is signed in the same transaction as the insert.
func (s *TicketService) Create(ctx context.Context, req *dto.CreateTicketRequest) (*models.Ticket, error) {
	eventName, ticketType, err := s.issuance.resolve(req.EventName, req.TicketType)
	if err != nil {
		return nil, err
	}
	student, err := s.students.GetByID(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}

	draft := models.Ticket{
		StudentID:  student.ID,
		EventName:  eventName,
		TicketType: ticketType,
		IsValid:    true,
	}
	if req.PurchasedAt != nil {
		draft.PurchasedAt = *req.PurchasedAt
	}

	var ticket *models.Ticket
	if code := strings.TrimSpace(req.TicketCode); code == "" {
		ticket, err = s.issuance.issueFor(ctx, draft)
	} else {
		draft.TicketCode = code
		if draft.PurchasedAt.IsZero() {
			draft.PurchasedAt = s.issuance.now()
		}
		ticket = &draft
		err = s.issuance.createSigned(ctx, ticket)
	}
	if err != nil {
		return nil, err
	}

	ticket.Student = student
	s.logger.Info().Int64("ticketID", ticket.ID).Str("ticketCode", ticket.TicketCode).Msg("Ticket created")
	return ticket, nil
}

// Update applies the provided fields. Token and delivery state stay untouched.
func (s *TicketService) Update(ctx context.Context, id int64, req *dto.UpdateTicketRequest) (*models.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.StudentID != nil && *req.StudentID != ticket.StudentID {
		if _, err := s.students.GetByID(ctx, *req.StudentID); err != nil {
			return nil, err
		}
		ticket.StudentID = *req.StudentID
	}
	if req.TicketCode != nil {
		ticket.TicketCode = strings.TrimSpace(*req.TicketCode)
	}
	if req.PurchasedAt != nil {
		ticket.PurchasedAt = *req.PurchasedAt
	}
	if req.IsValid != nil {
		ticket.IsValid = *req.IsValid
	}
	if req.EventName != nil {
		ticket.EventName = strings.TrimSpace(*req.EventName)
	}
	if req.TicketType != nil {
		ticket.TicketType = *req.TicketType
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("ticketID", id).Msg("Ticket updated")
	return s.tickets.GetByID(ctx, id)
}

// Delete removes a ticket
func (s *TicketService) Delete(ctx context.Context, id int64) error {
	if err := s.tickets.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("ticketID", id).Msg("Ticket deleted")
	return nil
}

// QRCode renders the PNG of a ticket's token
func (s *TicketService) QRCode(ctx context.Context, id int64) ([]byte, *models.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	png, err := s.renderer.Render(ticket.Token)
	if err != nil {
		return nil, nil, err
	}
	return png, ticket, nil
}

// Counts returns the quick ticket summary
func (s *TicketService) Counts(ctx context.Context) (dto.TicketCounts, error) {
	return s.tickets.Counts(ctx)
}
